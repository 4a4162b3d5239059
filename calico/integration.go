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

package calico

import (
	"context"
	"fmt"

	"github.com/openconfig/calicotest/buildmeta"
	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/helm"
	"github.com/openconfig/calicotest/image"
	"github.com/openconfig/calicotest/manifest"
	"github.com/openconfig/calicotest/poll"
	"github.com/openconfig/calicotest/workload"
	log "k8s.io/klog/v2"
)

// A Variant is a way of installing Calico through the operator.
type Variant string

const (
	// Custom disables the chart's Installation and APIServer and applies
	// its own, pinning every image to its digest with an ImageSet.
	Custom = Variant("custom")
	// Deferred installs the operator alone and leaves the installation to
	// a later step.
	Deferred = Variant("deferred")
)

// A Scenario installs a Calico release in a cluster and waits for it.
type Scenario struct {
	Variant         Variant
	CalicoVersion   string
	OperatorVersion string
	Platform        image.Platform
	// OperatorPolicy is used waiting on the operator, WorkloadPolicy on
	// the Calico workloads.
	OperatorPolicy poll.RetryPolicy
	WorkloadPolicy poll.RetryPolicy
}

func newScenario(v Variant, calicoVersion, operatorVersion string, p image.Platform) *Scenario {
	return &Scenario{
		Variant:         v,
		CalicoVersion:   calicoVersion,
		OperatorVersion: operatorVersion,
		Platform:        p,
		OperatorPolicy:  poll.DefaultPolicy,
		WorkloadPolicy:  WorkloadPolicy,
	}
}

// CustomInstallation returns the Custom scenario.
func CustomInstallation(calicoVersion, operatorVersion string, p image.Platform) *Scenario {
	return newScenario(Custom, calicoVersion, operatorVersion, p)
}

// DeferredInstallation returns the Deferred scenario.
func DeferredInstallation(calicoVersion, operatorVersion string, p image.Platform) *Scenario {
	return newScenario(Deferred, calicoVersion, operatorVersion, p)
}

// OperatorSelector is the operator's Deployment.
var OperatorSelector = workload.DeploymentIn(OperatorNamespace, "tigera-operator")

// WorkloadSelectors are the Deployments a Custom installation brings up.
var WorkloadSelectors = []workload.Selector{
	workload.DeploymentIn(SystemNamespace, "calico-kube-controllers"),
	workload.DeploymentIn(SystemNamespace, "calico-typha"),
	workload.DeploymentIn(APIServerNamespace, "calico-apiserver"),
}

// HelmOptions returns the install of the operator chart using the operator
// and calicoctl images of op and ctl.
func HelmOptions(op, ctl image.Reference) helm.InstallOptions {
	return helm.InstallOptions{
		Name:      ReleaseName,
		Chart:     ChartName,
		Repo:      ChartRepo,
		Namespace: OperatorNamespace,
		Values: []string{
			"tigeraOperator.image=" + op.Path(),
			"tigeraOperator.version=" + op.Tag,
			"tigeraOperator.registry=" + op.Registry,
			"calicoctl.image=" + ctl.Registry + "/" + ctl.Path(),
			"calicoctl.tag=" + ctl.Tag,
			"installation.enabled=false",
			"apiServer.enabled=false",
		},
	}
}

// ImageDigests returns the digest of each of Images at calicoVersion and of
// the operator at operatorVersion.
func ImageDigests(ctx context.Context, r Resolver, d Digester, calicoVersion, operatorVersion string, p image.Platform) ([]manifest.ImageDigest, error) {
	type component struct{ name, version string }
	var all []component
	for _, img := range Images {
		all = append(all, component{img, calicoVersion})
	}
	all = append(all, component{Operator, operatorVersion})
	var digests []manifest.ImageDigest
	for _, c := range all {
		info, err := r.Resolve(c.name, c.version, p)
		if err != nil {
			return nil, err
		}
		dg, err := d.Digest(ctx, info.Image)
		if err != nil {
			return nil, err
		}
		digests = append(digests, manifest.ImageDigest{Image: c.name, Digest: dg})
	}
	return digests, nil
}

// Manifests returns the resources a Custom installation applies, in order.
func Manifests(ctx context.Context, r Resolver, d Digester, op *buildmeta.BuildMetaInfo, calicoVersion, operatorVersion string, p image.Platform) ([]interface{}, error) {
	digests, err := ImageDigests(ctx, r, d, calicoVersion, operatorVersion, p)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		manifest.NewInstallation(op.Image.Registry, op.Image.Repository),
		manifest.NewImageSet(calicoVersion, digests),
		manifest.NewAPIServer(),
	}, nil
}

// Run installs s in inst and waits for it to be ready.  Readiness is checked
// with c.
func (s *Scenario) Run(ctx context.Context, inst harness.Execer, r Resolver, d Digester, c poll.Checker) error {
	switch s.Variant {
	case Custom, Deferred:
	default:
		return fmt.Errorf("unknown scenario %q", s.Variant)
	}
	op, err := r.Resolve(Operator, s.OperatorVersion, s.Platform)
	if err != nil {
		return err
	}
	ctl, err := r.Resolve(Ctl, s.CalicoVersion, s.Platform)
	if err != nil {
		return err
	}
	log.Infof("Running %s installation of Calico %s with operator %s", s.Variant, s.CalicoVersion, s.OperatorVersion)
	if err := helm.Install(inst, HelmOptions(op.Image, ctl.Image)); err != nil {
		return err
	}
	if err := poll.AwaitReady(ctx, c, OperatorSelector, s.OperatorPolicy); err != nil {
		return err
	}
	if s.Variant == Deferred {
		return nil
	}
	objs, err := Manifests(ctx, r, d, op, s.CalicoVersion, s.OperatorVersion, s.Platform)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		if err := manifest.Apply(inst, obj); err != nil {
			return err
		}
	}
	return poll.AwaitAll(ctx, c, s.WorkloadPolicy, WorkloadSelectors...)
}

// Uninstall removes the operator release from inst.  Resources the operator
// created are removed with it.
func Uninstall(inst harness.Execer) error {
	log.Infof("Uninstalling %s from %s", ReleaseName, OperatorNamespace)
	return helm.Uninstall(inst, ReleaseName, OperatorNamespace)
}
