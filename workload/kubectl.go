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

package workload

import (
	"context"
	"fmt"

	"github.com/openconfig/calicotest/harness"
	appsv1 "k8s.io/api/apps/v1"
	"sigs.k8s.io/yaml"
)

// KubectlChecker checks workloads by running kubectl through a harness
// instance.
type KubectlChecker struct {
	Inst harness.Execer
}

// NewKubectlChecker returns a KubectlChecker running kubectl in inst.
func NewKubectlChecker(inst harness.Execer) *KubectlChecker {
	return &KubectlChecker{Inst: inst}
}

// Check returns nil if the workload named by sel is ready.
func (c *KubectlChecker) Check(ctx context.Context, sel Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch sel.Kind {
	case Deployment, DaemonSet:
	default:
		return unsupported(sel)
	}
	res, err := c.Inst.Exec([]string{"kubectl", "get", string(sel.Kind), sel.Name, "-n", sel.Namespace, "-o", "json"}, harness.Quiet())
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", sel, err)
	}
	switch sel.Kind {
	case Deployment:
		var d appsv1.Deployment
		if err := yaml.Unmarshal(res.Stdout, &d); err != nil {
			return fmt.Errorf("failed to decode %s: %w", sel, err)
		}
		return DeploymentReady(&d)
	default:
		var ds appsv1.DaemonSet
		if err := yaml.Unmarshal(res.Stdout, &ds); err != nil {
			return fmt.Errorf("failed to decode %s: %w", sel, err)
		}
		return DaemonSetReady(&ds)
	}
}
