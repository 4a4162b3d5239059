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

package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/openconfig/calicotest/buildmeta"
	"github.com/openconfig/calicotest/calico"
	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/image"
	"github.com/openconfig/calicotest/inspect"
	"github.com/openconfig/calicotest/load"
	"github.com/openconfig/calicotest/poll"
	"github.com/openconfig/calicotest/workload"
	log "k8s.io/klog/v2"
)

func init() {
	load.Register("External", &load.Spec{
		Type: ExternalSpec{},
		Tag:  "cluster",
	})
	load.Register("Kind", &load.Spec{
		Type: KindSpec{},
		Tag:  "cluster",
	})
	load.Register("Calico", &load.Spec{
		Type: CalicoSpec{},
		Tag:  "cni",
		Validate: func(_ *load.Config, spec interface{}) error {
			return spec.(*CalicoSpec).validate()
		},
	})
}

func clusterInfo(inst harness.Execer) error {
	if _, err := inst.Exec([]string{"kubectl", "cluster-info"}); err != nil {
		return fmt.Errorf("cluster not healthy: %w", err)
	}
	return nil
}

// ExternalSpec is an existing cluster.
type ExternalSpec struct {
	Kubecfg string `yaml:"kubecfg" deploy:"yaml"`
	Context string `yaml:"context"`
}

func (e *ExternalSpec) Deploy(ctx context.Context) error {
	log.Infof("Deploy is a no-op for the external cluster type")
	return nil
}

func (e *ExternalSpec) Delete() error {
	log.Infof("Delete is a no-op for the external cluster type")
	return nil
}

func (e *ExternalSpec) Healthy() error {
	return clusterInfo(e.Instance())
}

func (e *ExternalSpec) Instance() harness.Instance {
	if e.Kubecfg == "" {
		return &harness.Local{Context: e.Context}
	}
	return &harness.External{Kubecfg: e.Kubecfg, Context: e.Context}
}

// KindSpec is a kind cluster created without a CNI.
type KindSpec struct {
	Name      string        `yaml:"name"`
	Image     string        `yaml:"image"`
	Version   string        `yaml:"version"`
	Retain    bool          `yaml:"retain"`
	Recycle   bool          `yaml:"recycle"`
	Wait      time.Duration `yaml:"wait"`
	Kubecfg   string        `yaml:"kubecfg"`
	PodSubnet string        `yaml:"podSubnet"`
	Images    []string      `yaml:"images"`

	kind *harness.Kind
}

func (k *KindSpec) cluster() *harness.Kind {
	if k.kind == nil {
		k.kind = &harness.Kind{
			ClusterName: k.Name,
			Image:       k.Image,
			Version:     k.Version,
			Retain:      k.Retain,
			Recycle:     k.Recycle,
			Wait:        k.Wait,
			Kubecfg:     k.Kubecfg,
			PodSubnet:   k.PodSubnet,
			Images:      k.Images,
		}
	}
	return k.kind
}

func (k *KindSpec) Deploy(ctx context.Context) error {
	return k.cluster().Create(ctx)
}

func (k *KindSpec) Delete() error {
	return k.cluster().Delete()
}

func (k *KindSpec) Healthy() error {
	return clusterInfo(k.cluster())
}

func (k *KindSpec) Instance() harness.Instance {
	return k.cluster()
}

// CalicoSpec installs Calico through the operator chart.
type CalicoSpec struct {
	// Variant is custom or deferred, custom if empty.
	Variant         string `yaml:"variant"`
	CalicoVersion   string `yaml:"calicoVersion"`
	OperatorVersion string `yaml:"operatorVersion"`
	// Platform defaults to the host's.
	Platform string `yaml:"platform"`
	// Metadata is the build metadata file.  $BUILT_ROCKS_METADATA is read
	// if empty.
	Metadata string `yaml:"metadata" deploy:"yaml"`
	// Insecure reaches the image registry over plain HTTP.
	Insecure bool `yaml:"insecure"`
	// Checker is kubectl or client, kubectl if empty.
	Checker  string        `yaml:"checker"`
	Interval time.Duration `yaml:"interval"`
	Attempts int           `yaml:"attempts"`
}

func (c *CalicoSpec) validate() error {
	switch calico.Variant(c.Variant) {
	case "", calico.Custom, calico.Deferred:
	default:
		return fmt.Errorf("unknown variant %q", c.Variant)
	}
	switch c.Checker {
	case "", "kubectl", "client":
	default:
		return fmt.Errorf("unknown checker %q", c.Checker)
	}
	if c.Platform != "" {
		if _, err := image.ParsePlatform(c.Platform); err != nil {
			return err
		}
	}
	if c.Interval != 0 || c.Attempts != 0 {
		return c.policy().Validate()
	}
	return nil
}

func (c *CalicoSpec) policy() poll.RetryPolicy {
	p := poll.DefaultPolicy
	if c.Interval != 0 {
		p.Interval = c.Interval
	}
	if c.Attempts != 0 {
		p.MaxAttempts = c.Attempts
	}
	return p
}

func (c *CalicoSpec) scenario() (*calico.Scenario, error) {
	p, err := image.HostPlatform()
	if c.Platform != "" {
		p, err = image.ParsePlatform(c.Platform)
	}
	if err != nil {
		return nil, err
	}
	calicoVersion, operatorVersion := c.CalicoVersion, c.OperatorVersion
	if calicoVersion == "" {
		calicoVersion = calico.DefaultCalicoVersion
	}
	if operatorVersion == "" {
		operatorVersion = calico.DefaultOperatorVersion
	}
	s := calico.CustomInstallation(calicoVersion, operatorVersion, p)
	if c.Variant != "" {
		s.Variant = calico.Variant(c.Variant)
	}
	s.OperatorPolicy = c.policy()
	return s, nil
}

func (c *CalicoSpec) resolver() *buildmeta.Resolver {
	if c.Metadata != "" {
		return buildmeta.New(buildmeta.FileSource{Path: c.Metadata})
	}
	return buildmeta.New(buildmeta.EnvSource{})
}

func (c *CalicoSpec) checker(inst harness.Instance) (poll.Checker, error) {
	if c.Checker != "client" {
		return workload.NewKubectlChecker(inst), nil
	}
	cs, err := newClientset(inst)
	if err != nil {
		return nil, err
	}
	return workload.NewClientChecker(cs), nil
}

// Deploy installs Calico into the cluster of inst and waits for it.
func (c *CalicoSpec) Deploy(ctx context.Context, inst harness.Instance) error {
	s, err := c.scenario()
	if err != nil {
		return err
	}
	chk, err := c.checker(inst)
	if err != nil {
		return err
	}
	return s.Run(ctx, inst, c.resolver(), &inspect.Registry{Insecure: c.Insecure}, chk)
}

// Healthy checks that the workloads of the installation are ready.
func (c *CalicoSpec) Healthy(ctx context.Context, inst harness.Instance) error {
	s, err := c.scenario()
	if err != nil {
		return err
	}
	chk, err := c.checker(inst)
	if err != nil {
		return err
	}
	sels := []workload.Selector{calico.OperatorSelector}
	if s.Variant == calico.Custom {
		sels = append(sels, calico.WorkloadSelectors...)
	}
	return poll.AwaitAll(ctx, chk, s.OperatorPolicy, sels...)
}
