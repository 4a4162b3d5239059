// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inspect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	dtypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	dclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/openconfig/calicotest/exec/run"
	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/image"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	log "k8s.io/klog/v2"
)

//go:generate mockgen -destination=mocks/mock_docker.go -package=mocks github.com/openconfig/calicotest/inspect DockerAPI

// DockerAPI is the part of the Docker Engine API a DockerRunner uses.
type DockerAPI interface {
	ImageInspectWithRaw(ctx context.Context, image string) (dtypes.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, ref string, options dtypes.ImagePullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, container string, options dtypes.ContainerStartOptions) error
	ContainerWait(ctx context.Context, container string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, container string, options dtypes.ContainerLogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, container string, options dtypes.ContainerRemoveOptions) error
}

// A Runner runs a command in a throwaway container of an image.
type Runner interface {
	Run(ctx context.Context, ref image.Reference, cmd []string, opts ...harness.ExecOption) (*run.Result, error)
}

// DockerRunner runs containers through the Docker Engine API.
type DockerRunner struct {
	Client DockerAPI
	// Platform selects the image variant, the host's if empty.
	Platform image.Platform
}

var newDockerClient = func() (DockerAPI, error) {
	return dclient.NewClientWithOpts(dclient.FromEnv, dclient.WithAPIVersionNegotiation())
}

// NewDockerRunner returns a DockerRunner using the environment's Docker
// daemon.
func NewDockerRunner(p image.Platform) (*DockerRunner, error) {
	c, err := newDockerClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerRunner{Client: c, Platform: p}, nil
}

// pull pulls ref for p unless it is already present for p.
func (d *DockerRunner) pull(ctx context.Context, ref string, p *ocispec.Platform) error {
	img, _, err := d.Client.ImageInspectWithRaw(ctx, ref)
	switch {
	case err == nil && img.Os == p.OS && img.Architecture == p.Architecture:
		return nil
	case err == nil:
		log.Infof("Local %s is %s/%s, want %s/%s", ref, img.Os, img.Architecture, p.OS, p.Architecture)
	case !dclient.IsErrNotFound(err):
		return fmt.Errorf("failed to inspect %s: %w", ref, err)
	}
	log.Infof("Pulling %s", ref)
	rc, err := d.Client.ImagePull(ctx, ref, dtypes.ImagePullOptions{Platform: p.OS + "/" + p.Architecture})
	if err != nil {
		return fmt.Errorf("failed to pull %s: %w", ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull %s: %w", ref, err)
	}
	return nil
}

// Run runs cmd as the entrypoint of a new container of ref and returns its
// output.  The container is removed afterwards.  Standard input is not
// supported.
func (d *DockerRunner) Run(ctx context.Context, ref image.Reference, cmd []string, opts ...harness.ExecOption) (*run.Result, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("no command")
	}
	o := harness.NewExecOptions(opts...)
	if len(o.Input) > 0 {
		return nil, fmt.Errorf("input is not supported when running in a container")
	}
	p := d.Platform
	if p == "" {
		var err error
		if p, err = image.HostPlatform(); err != nil {
			return nil, err
		}
	}
	spec, err := p.Spec()
	if err != nil {
		return nil, err
	}
	if err := d.pull(ctx, ref.String(), &spec); err != nil {
		return nil, err
	}
	if !o.Quiet {
		log.Infof("Running %q in %s", strings.Join(cmd, " "), ref)
	}
	created, err := d.Client.ContainerCreate(ctx, &container.Config{
		Image:      ref.String(),
		Entrypoint: cmd[:1],
		Cmd:        cmd[1:],
	}, &container.HostConfig{}, nil, &spec, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container of %s: %w", ref, err)
	}
	id := created.ID
	defer func() {
		if err := d.Client.ContainerRemove(context.Background(), id, dtypes.ContainerRemoveOptions{Force: true}); err != nil {
			log.Warningf("Failed to remove container %s: %v", id, err)
		}
	}()
	if err := d.Client.ContainerStart(ctx, id, dtypes.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container of %s: %w", ref, err)
	}
	res := &run.Result{}
	waitCh, errCh := d.Client.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case w := <-waitCh:
		if w.Error != nil {
			return nil, fmt.Errorf("failed waiting on container of %s: %s", ref, w.Error.Message)
		}
		res.ExitCode = int(w.StatusCode)
	case err := <-errCh:
		return nil, fmt.Errorf("failed waiting on container of %s: %w", ref, err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	logs, err := d.Client.ContainerLogs(ctx, id, dtypes.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read output of %s: %w", ref, err)
	}
	defer logs.Close()
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("failed to read output of %s: %w", ref, err)
	}
	res.Stdout, res.Stderr = stdout.Bytes(), stderr.Bytes()
	if !o.Quiet {
		log.V(1).Infof("%s exited with %d", cmd[0], res.ExitCode)
	}
	if !o.Check {
		return res, nil
	}
	return res, harness.CheckExit(cmd, o.ExitCode, res.ExitCode, res.Stderr)
}
