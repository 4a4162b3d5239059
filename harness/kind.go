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

package harness

import (
	"context"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/cenkalti/backoff/v4"
	"github.com/openconfig/calicotest/exec/run"
	"github.com/openconfig/gnmi/errlist"
	"github.com/pborman/uuid"
	log "k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

// DefaultPodSubnet is the pod network of kind clusters.  It matches the
// default IP pool of the Calico Installation.
const DefaultPodSubnet = "192.168.0.0/16"

var (
	execLookPath   = osexec.LookPath
	pullRetryDelay = 5 * time.Second
	newUUID        = uuid.New
)

// Kind is an ephemeral kind cluster.  The cluster is created without a CNI
// so Calico can be installed into it.
type Kind struct {
	// ClusterName names the cluster.  A name of the form calico-XXXXXXXX is
	// generated if empty.
	ClusterName string
	// Image is the node image, the kind default if empty.
	Image string
	// Version is the minimum kind version, e.g. v0.20.0.
	Version string
	// Retain keeps the nodes if creation fails and the cluster on Close.
	Retain bool
	// Recycle reuses an existing cluster with the same name.
	Recycle bool
	// Wait is how long kind waits for the control plane.
	Wait    time.Duration
	Kubecfg string
	// PodSubnet defaults to DefaultPodSubnet.
	PodSubnet string
	// Images are pulled on the host and loaded into the cluster nodes.
	Images []string
}

type kindNetworking struct {
	DisableDefaultCNI bool   `json:"disableDefaultCNI"`
	PodSubnet         string `json:"podSubnet"`
}

type kindConfig struct {
	Kind       string         `json:"kind"`
	APIVersion string         `json:"apiVersion"`
	Networking kindNetworking `json:"networking"`
}

// Config returns the kind configuration file for k.
func (k *Kind) Config() ([]byte, error) {
	subnet := k.PodSubnet
	if subnet == "" {
		subnet = DefaultPodSubnet
	}
	return yaml.Marshal(kindConfig{
		Kind:       "Cluster",
		APIVersion: "kind.x-k8s.io/v1alpha4",
		Networking: kindNetworking{
			DisableDefaultCNI: true,
			PodSubnet:         subnet,
		},
	})
}

// Name implements Instance.
func (k *Kind) Name() string {
	if k.ClusterName == "" {
		k.ClusterName = "calico-" + strings.SplitN(newUUID(), "-", 2)[0]
	}
	return k.ClusterName
}

func (k *Kind) kubeContext() string {
	return "kind-" + k.Name()
}

// Kubeconfig implements Instance.
func (k *Kind) Kubeconfig() (string, string) {
	return k.Kubecfg, k.kubeContext()
}

// Exec implements Instance.
func (k *Kind) Exec(cmd []string, opts ...ExecOption) (*run.Result, error) {
	return execute(clusterFlags(cmd, k.Kubecfg, k.kubeContext()), opts)
}

func (k *Kind) checkDependencies() error {
	var errs errlist.List
	for _, bin := range []string{"kind", "kubectl", "helm"} {
		if _, err := execLookPath(bin); err != nil {
			errs.Add(fmt.Errorf("install dependency %q to deploy", bin))
		}
	}
	if errs.Err() != nil {
		return errs.Err()
	}
	if k.Version == "" {
		return nil
	}
	wantV, err := ParseVersion(k.Version)
	if err != nil {
		return fmt.Errorf("failed to parse desired kind version: %w", err)
	}
	stdout, err := run.OutCommand("kind", "version")
	if err != nil {
		return fmt.Errorf("failed to get kind version: %w", err)
	}
	vKindFields := strings.Fields(string(stdout))
	if len(vKindFields) < 2 {
		return fmt.Errorf("failed to parse kind version from: %s", stdout)
	}
	gotV, err := ParseVersion(vKindFields[1])
	if err != nil {
		return fmt.Errorf("kind version check failed: %w", err)
	}
	if gotV.LT(wantV) {
		return fmt.Errorf("kind version check failed: got %s, want %s. install with `go install sigs.k8s.io/kind@%s`", gotV, wantV, wantV)
	}
	log.Infof("kind version valid: got %s want %s", gotV, wantV)
	return nil
}

// Create creates the cluster and loads k.Images into it.
func (k *Kind) Create(ctx context.Context) error {
	if err := k.checkDependencies(); err != nil {
		return fmt.Errorf("failed to check for dependencies: %w", err)
	}
	if err := k.create(); err != nil {
		return fmt.Errorf("failed to create kind cluster: %w", err)
	}
	if len(k.Images) != 0 {
		log.Infof("Loading container images")
		if err := k.loadImages(ctx); err != nil {
			return fmt.Errorf("failed to load container images: %w", err)
		}
	}
	return nil
}

func (k *Kind) create() error {
	name := k.Name()
	if k.Recycle {
		log.Infof("Attempting to recycle existing cluster %q...", name)
		if _, err := k.Exec([]string{"kubectl", "cluster-info"}); err == nil {
			log.Infof("Recycling existing cluster %q", name)
			return nil
		}
	}
	cfg, err := k.Config()
	if err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "calicotest-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	cfgFile := filepath.Join(dir, "kind-config.yaml")
	if err := os.WriteFile(cfgFile, cfg, 0o644); err != nil {
		return err
	}
	args := []string{"create", "cluster", "--name", name, "--config", cfgFile}
	if k.Image != "" {
		args = append(args, "--image", k.Image)
	}
	if k.Retain {
		args = append(args, "--retain")
	}
	if k.Wait != 0 {
		args = append(args, "--wait", k.Wait.String())
	}
	if k.Kubecfg != "" {
		args = append(args, "--kubeconfig", k.Kubecfg)
	}
	log.Infof("Creating kind cluster with: %v", args)
	if res, err := run.Run(nil, "kind", args...); err != nil {
		msg := []string{}
		// Only lines prefixed with "ERROR" or "Command Output" describe the failure.
		for _, line := range strings.Split(string(res.Combined()), "\n") {
			if strings.HasPrefix(line, "ERROR") || strings.HasPrefix(line, "Command Output") {
				msg = append(msg, line)
			}
		}
		return fmt.Errorf("%w: %v", err, strings.Join(msg, ", "))
	}
	log.Infof("Deployed kind cluster: %s", name)
	return nil
}

func (k *Kind) loadImages(ctx context.Context) error {
	for _, img := range k.Images {
		log.Infof("Loading %q", img)
		pull := func() error {
			out, err := run.OutCommand("docker", "pull", img)
			if err == nil {
				return nil
			}
			if strings.Contains(string(out), "not found") || strings.Contains(string(out), "does not exist") {
				return backoff.Permanent(fmt.Errorf("container not found: %w", err))
			}
			return err
		}
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(pullRetryDelay), 3), ctx)
		notify := func(err error, d time.Duration) {
			log.Warningf("Failed to pull %q: %v (retrying in %v)", img, err, d)
		}
		if err := backoff.RetryNotify(pull, b, notify); err != nil {
			return err
		}
		if err := run.LogCommand("kind", "load", "docker-image", img, "--name", k.Name()); err != nil {
			return fmt.Errorf("failed to load %q: %w", img, err)
		}
	}
	log.Infof("Loaded all container images")
	return nil
}

// Delete deletes the cluster.
func (k *Kind) Delete() error {
	if err := run.LogCommand("kind", "delete", "cluster", "--name", k.Name()); err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}
	return nil
}

// Close implements Instance.  The cluster is deleted unless k.Retain is set.
func (k *Kind) Close() error {
	if k.Retain {
		log.Infof("Retaining kind cluster %q", k.Name())
		return nil
	}
	return k.Delete()
}

// ParseVersion parses a version of the form v1.2.3.  Prerelease and build
// suffixes are dropped.
func ParseVersion(s string) (semver.Version, error) {
	if !strings.HasPrefix(s, "v") {
		return semver.Version{}, fmt.Errorf("missing prefix on major version")
	}
	v, err := semver.Parse(s[1:])
	if err != nil {
		return semver.Version{}, err
	}
	v.Pre = nil
	v.Build = nil
	return v, nil
}
