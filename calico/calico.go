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

// Package calico holds the checks run against a packaged Calico release: the
// per image sanity checks and the install scenarios run in a cluster.
package calico

import (
	"context"
	"time"

	"github.com/openconfig/calicotest/buildmeta"
	"github.com/openconfig/calicotest/image"
	"github.com/openconfig/calicotest/poll"
)

// Default versions under test.
const (
	DefaultCalicoVersion   = "v3.28.0"
	DefaultOperatorVersion = "v1.34.0"
)

// Packaged component names.
const (
	Operator = "calico-tigera-operator"
	Ctl      = "calico-ctl"
)

// Images are the packaged Calico images the operator deploys.  The operator
// rejects an ImageSet listing any other image.
var Images = []string{
	"calico-node",
	"calico-cni",
	"calico-typha",
	"calico-kube-controllers",
	"calico-csi",
	"calico-apiserver",
	"calico-pod2daemon-flexvol",
	"calico-key-cert-provisioner",
	"calico-node-driver-registrar",
}

// Namespaces and chart of an operator install.
const (
	OperatorNamespace  = "default"
	SystemNamespace    = "calico-system"
	APIServerNamespace = "calico-apiserver"

	ReleaseName = "calico"
	ChartName   = "tigera-operator"
	ChartRepo   = "https://docs.tigera.io/calico/charts"
)

// WorkloadPolicy is the retry policy for the Calico workloads, which take
// longer than the operator to come up.
var WorkloadPolicy = poll.RetryPolicy{Interval: 10 * time.Second, MaxAttempts: 12}

// A Resolver returns the build metadata of a packaged component.
// *buildmeta.Resolver is a Resolver.
type Resolver interface {
	Resolve(component, version string, platform image.Platform) (*buildmeta.BuildMetaInfo, error)
}

// A Digester returns the manifest digest of an image.
// *inspect.Registry is a Digester.
type Digester interface {
	Digest(ctx context.Context, ref image.Reference) (string, error)
}

// A PathChecker checks the filesystem of an image.
// *inspect.Registry is a PathChecker.
type PathChecker interface {
	EnsureContainsPaths(ctx context.Context, ref image.Reference, p image.Platform, paths []string) error
}
