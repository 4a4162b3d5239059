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

// Package workload checks whether Kubernetes workloads are ready.
//
// A workload is ready when every replica it wants is available, ready and
// up to date and none are unavailable.  There is no partial credit.
package workload

import (
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
)

// A Kind is a kind of workload.
type Kind string

const (
	Deployment = Kind("deployment")
	DaemonSet  = Kind("daemonset")
)

// A Selector names a single workload.
type Selector struct {
	Kind      Kind
	Namespace string
	Name      string
}

// DeploymentIn is shorthand for the Deployment name in namespace ns.
func DeploymentIn(ns, name string) Selector {
	return Selector{Kind: Deployment, Namespace: ns, Name: name}
}

// DaemonSetIn is shorthand for the DaemonSet name in namespace ns.
func DaemonSetIn(ns, name string) Selector {
	return Selector{Kind: DaemonSet, Namespace: ns, Name: name}
}

// String returns s as kind/namespace/name.
func (s Selector) String() string {
	return string(s.Kind) + "/" + s.Namespace + "/" + s.Name
}

// ParseSelector parses kind/namespace/name.  The kind may be omitted, in
// which case it defaults to deployment.
func ParseSelector(str string) (Selector, error) {
	parts := strings.Split(str, "/")
	switch len(parts) {
	case 2:
		parts = append([]string{string(Deployment)}, parts...)
	case 3:
	default:
		return Selector{}, fmt.Errorf("invalid workload %q: want [kind/]namespace/name", str)
	}
	s := Selector{Kind: Kind(strings.ToLower(parts[0])), Namespace: parts[1], Name: parts[2]}
	switch s.Kind {
	case Deployment, DaemonSet:
	default:
		return Selector{}, fmt.Errorf("invalid workload %q: unsupported kind %q", str, parts[0])
	}
	if s.Namespace == "" || s.Name == "" {
		return Selector{}, fmt.Errorf("invalid workload %q: empty namespace or name", str)
	}
	return s, nil
}

// NotReadyError is returned by a check of a workload that exists but is not
// ready.
type NotReadyError struct {
	Selector Selector
	Status   string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s not ready: %s", e.Selector, e.Status)
}

// DeploymentReady returns nil if d is ready.
func DeploymentReady(d *appsv1.Deployment) error {
	var r int32 = 1
	if d.Spec.Replicas != nil {
		r = *d.Spec.Replicas
	}
	if d.Status.AvailableReplicas == r &&
		d.Status.ReadyReplicas == r &&
		d.Status.UnavailableReplicas == 0 &&
		d.Status.Replicas == r &&
		d.Status.UpdatedReplicas == r {
		return nil
	}
	return &NotReadyError{
		Selector: DeploymentIn(d.Namespace, d.Name),
		Status: fmt.Sprintf("want %d replicas, got %d (ready %d, available %d, updated %d, unavailable %d)",
			r, d.Status.Replicas, d.Status.ReadyReplicas, d.Status.AvailableReplicas,
			d.Status.UpdatedReplicas, d.Status.UnavailableReplicas),
	}
}

// DaemonSetReady returns nil if ds is ready.
func DaemonSetReady(ds *appsv1.DaemonSet) error {
	if ds.Status.NumberReady == ds.Status.DesiredNumberScheduled && ds.Status.NumberUnavailable == 0 {
		return nil
	}
	return &NotReadyError{
		Selector: DaemonSetIn(ds.Namespace, ds.Name),
		Status: fmt.Sprintf("want %d ready, got %d (unavailable %d)",
			ds.Status.DesiredNumberScheduled, ds.Status.NumberReady, ds.Status.NumberUnavailable),
	}
}

func unsupported(sel Selector) error {
	return fmt.Errorf("unsupported workload kind %q", sel.Kind)
}
