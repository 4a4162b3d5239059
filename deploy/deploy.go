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

// Package deploy brings up a cluster described by a deployment file and
// installs Calico into it.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/openconfig/calicotest/calico"
	"github.com/openconfig/calicotest/events"
	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/metrics"
	"github.com/openconfig/calicotest/pods"
	"github.com/openconfig/gnmi/errlist"
	kversion "k8s.io/apimachinery/pkg/version"
	log "k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

var (
	healthTimeout = 5 * time.Minute

	// Stubs for testing.
	execLookPath = exec.LookPath
	newClientset = harness.Clientset
)

// A Cluster is the cluster of a deployment.
type Cluster interface {
	Deploy(context.Context) error
	Delete() error
	Healthy() error
	// Instance returns the instance that runs commands against the
	// cluster.
	Instance() harness.Instance
}

// A CNI is the network plugin installed into the cluster.
type CNI interface {
	Deploy(context.Context, harness.Instance) error
	Healthy(context.Context, harness.Instance) error
}

// A Deployment is a cluster and the CNI installed into it.
type Deployment struct {
	Cluster Cluster `deploy:"cluster"`
	CNI     CNI     `deploy:"cni"`

	// If Progress is true then pod state changes are written to standard
	// output while deploying.
	Progress bool
	// Report selects where the deployment is reported, if at all.
	Report metrics.Options
}

// run returns the description of the deployment that is reported.
func (d *Deployment) run() *metrics.Run {
	r := &metrics.Run{Kind: metrics.RunDeploy}
	switch d.Cluster.(type) {
	case *KindSpec:
		r.Harness = string(harness.TypeKind)
	case *ExternalSpec:
		r.Harness = string(harness.TypeExternal)
	}
	if c, ok := d.CNI.(*CalicoSpec); ok {
		if s, err := c.scenario(); err == nil {
			r.Target = string(s.Variant)
			r.CalicoVersion = s.CalicoVersion
			r.OperatorVersion = s.OperatorVersion
			r.Platform = string(s.Platform)
		}
	}
	return r
}

func (d *Deployment) String() string {
	b, _ := json.MarshalIndent(d, "", "\t")
	return string(b)
}

func (d *Deployment) checkDependencies() error {
	var errs errlist.List
	for _, bin := range []string{"kubectl", "helm"} {
		if _, err := execLookPath(bin); err != nil {
			errs.Add(fmt.Errorf("install dependency %q to deploy", bin))
		}
	}
	return errs.Err()
}

type kubeVersion struct {
	ClientVersion    *kversion.Info `json:"clientVersion,omitempty"`
	KustomizeVersion string         `json:"kustomizeVersion,omitempty"`
	ServerVersion    *kversion.Info `json:"serverVersion,omitempty"`
}

// Deploy deploys the cluster and then the CNI.  Pods and events in the
// Calico namespaces are watched while the CNI deploys, and a pod that can
// never start fails the deployment.
func (d *Deployment) Deploy(ctx context.Context) (rerr error) {
	if d.Cluster == nil || d.CNI == nil {
		return fmt.Errorf("deployment requires a cluster and a cni")
	}
	finish := metrics.Start(ctx, d.Report, d.run())
	defer func() { finish(rerr) }()
	if err := d.checkDependencies(); err != nil {
		return fmt.Errorf("failed to check for dependencies: %w", err)
	}
	log.Infof("Deploying cluster...")
	if err := d.Cluster.Deploy(ctx); err != nil {
		return fmt.Errorf("failed to deploy cluster: %w", err)
	}
	log.Infof("Cluster deployed")
	if err := d.Cluster.Healthy(); err != nil {
		return fmt.Errorf("failed to check if cluster is healthy: %w", err)
	}
	log.Infof("Cluster healthy")
	inst := d.Cluster.Instance()

	log.Infof("Validating kubectl version")
	if err := validateKubectlVersion(inst); err != nil {
		return fmt.Errorf("kubectl version outside of supported range: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	namespaces := []string{calico.SystemNamespace, calico.APIServerNamespace, calico.OperatorNamespace}
	kClient, err := newClientset(inst)
	if err != nil {
		log.Warningf("Failed to create client for watchers: %v", err)
	} else {
		if w, err := pods.NewWatcher(ctx, kClient, cancel, namespaces...); err != nil {
			log.Warningf("Failed to start pod watcher: %v", err)
		} else {
			w.SetProgress(d.Progress)
			defer func() {
				cancel()
				rerr = w.Cleanup(rerr)
			}()
		}
		if w, err := events.NewWatcher(ctx, kClient, cancel, namespaces...); err != nil {
			log.Warningf("Failed to start event watcher: %v", err)
		} else {
			w.SetProgress(d.Progress)
			defer func() {
				cancel()
				rerr = w.Cleanup(rerr)
			}()
		}
	}

	log.Infof("Deploying CNI...")
	if err := d.CNI.Deploy(ctx, inst); err != nil {
		return fmt.Errorf("failed to deploy CNI: %w", err)
	}
	tCtx, tCancel := context.WithTimeout(ctx, healthTimeout)
	defer tCancel()
	if err := d.CNI.Healthy(tCtx, inst); err != nil {
		return fmt.Errorf("failed to check if CNI is healthy: %w", err)
	}
	log.Infof("CNI healthy")
	return nil
}

func validateKubectlVersion(inst harness.Execer) error {
	res, err := inst.Exec([]string{"kubectl", "version", "--output=yaml"}, harness.Quiet())
	if err != nil {
		return fmt.Errorf("failed get kubectl version: %w", err)
	}
	log.V(1).Info("Found k8s versions:\n", string(res.Stdout))
	var kv kubeVersion
	if err := yaml.Unmarshal(res.Stdout, &kv); err != nil {
		return fmt.Errorf("failed get kubectl version: %w", err)
	}
	if kv.ClientVersion == nil || kv.ServerVersion == nil {
		return fmt.Errorf("failed get kubectl version: missing client or server version")
	}
	client, err := harness.ParseVersion(kv.ClientVersion.GitVersion)
	if err != nil {
		return fmt.Errorf("failed to parse k8s client version: %w", err)
	}
	server, err := harness.ParseVersion(kv.ServerVersion.GitVersion)
	if err != nil {
		return fmt.Errorf("failed to parse k8s server version: %w", err)
	}
	// kubectl supports one minor version of skew with the server.
	if d := int64(client.Minor) - int64(server.Minor); client.Major != server.Major || d > 1 || d < -1 {
		log.Warningf("Kube client %s and server %s versions are not within expected range.", client, server)
	}
	return nil
}

// Delete deletes the cluster.
func (d *Deployment) Delete() error {
	log.Infof("Deleting cluster...")
	if err := d.Cluster.Delete(); err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}
	log.Infof("Cluster deleted")
	return nil
}

// Healthy checks the cluster and the CNI without changing either.
func (d *Deployment) Healthy(ctx context.Context) error {
	if err := d.Cluster.Healthy(); err != nil {
		return fmt.Errorf("failed to check cluster is healthy: %w", err)
	}
	log.Infof("Cluster healthy")
	tCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := d.CNI.Healthy(tCtx, d.Cluster.Instance()); err != nil {
		return fmt.Errorf("failed to check CNI is healthy: %w", err)
	}
	log.Infof("CNI healthy")
	return nil
}
