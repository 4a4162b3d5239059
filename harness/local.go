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
	"fmt"

	"github.com/openconfig/calicotest/exec/run"
	log "k8s.io/klog/v2"
)

// Local runs commands on the host against whatever cluster the host's
// kubectl and helm are configured for.
type Local struct {
	Kubecfg string
	Context string
}

func (l *Local) Name() string { return "local" }

// Exec implements Instance.
func (l *Local) Exec(cmd []string, opts ...ExecOption) (*run.Result, error) {
	return execute(clusterFlags(cmd, l.Kubecfg, l.Context), opts)
}

func (l *Local) Kubeconfig() (string, string) { return l.Kubecfg, l.Context }

func (l *Local) Close() error { return nil }

// External is an existing cluster reached through a kubeconfig.  Its
// lifecycle is managed elsewhere.
type External struct {
	Kubecfg string
	Context string
}

func (e *External) Name() string {
	if e.Context != "" {
		return fmt.Sprintf("external(%s)", e.Context)
	}
	return "external"
}

// Exec implements Instance.
func (e *External) Exec(cmd []string, opts ...ExecOption) (*run.Result, error) {
	return execute(clusterFlags(cmd, e.Kubecfg, e.Context), opts)
}

func (e *External) Kubeconfig() (string, string) { return e.Kubecfg, e.Context }

// Close implements Instance.  The cluster is left running.
func (e *External) Close() error {
	log.Infof("Leaving external cluster %s running", e.Name())
	return nil
}
