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

// Package helm builds helm command lines.
package helm

import (
	"fmt"

	"github.com/openconfig/calicotest/harness"
	log "k8s.io/klog/v2"
)

// InstallOptions describes a helm install.
type InstallOptions struct {
	Name  string
	Chart string
	Repo  string
	// Namespace is created if it does not exist.
	Namespace string
	// Values are key=value pairs passed with --set, in order.
	Values []string
}

// InstallCommand returns the helm command line for o.
func InstallCommand(o InstallOptions) []string {
	cmd := []string{"helm", "install", o.Name, o.Chart}
	if o.Repo != "" {
		cmd = append(cmd, "--repo", o.Repo)
	}
	if o.Namespace != "" {
		cmd = append(cmd, "--namespace", o.Namespace, "--create-namespace")
	}
	for _, v := range o.Values {
		cmd = append(cmd, "--set", v)
	}
	return cmd
}

// UninstallCommand returns the helm command line to remove release name.
func UninstallCommand(name, namespace string) []string {
	cmd := []string{"helm", "uninstall", name}
	if namespace != "" {
		cmd = append(cmd, "--namespace", namespace)
	}
	return cmd
}

// Install runs the install described by o in inst.
func Install(inst harness.Execer, o InstallOptions) error {
	log.Infof("Installing chart %q as %q", o.Chart, o.Name)
	if _, err := inst.Exec(InstallCommand(o)); err != nil {
		return fmt.Errorf("failed to install %q: %w", o.Name, err)
	}
	return nil
}

// Uninstall removes release name from inst.
func Uninstall(inst harness.Execer, name, namespace string) error {
	if _, err := inst.Exec(UninstallCommand(name, namespace)); err != nil {
		return fmt.Errorf("failed to uninstall %q: %w", name, err)
	}
	return nil
}
