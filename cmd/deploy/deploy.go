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

// Package deploy provides the commands that manage a cluster described by a
// deployment file.
package deploy

import (
	"fmt"

	"github.com/openconfig/calicotest/deploy"
	"github.com/openconfig/calicotest/load"
	"github.com/openconfig/calicotest/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	log "k8s.io/klog/v2"
)

// ClusterSpec selects the cluster kind, e.g. Kind or External.
type ClusterSpec struct {
	Kind string    `yaml:"kind"`
	Spec yaml.Node `yaml:"spec"`
}

// CNISpec selects the CNI kind, e.g. Calico.
type CNISpec struct {
	Kind string    `yaml:"kind"`
	Spec yaml.Node `yaml:"spec"`
}

// DeploymentConfig is the YAML form of a deploy.Deployment.
type DeploymentConfig struct {
	Cluster ClusterSpec `yaml:"cluster"`
	CNI     CNISpec     `yaml:"cni"`
}

// New returns the deploy command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <deployment yaml>",
		Short: "Deploy a cluster and install Calico into it.",
		Args:  cobra.ExactArgs(1),
		RunE:  deployFn,
	}
	cmd.Flags().Bool("progress", false, "Display pod state changes while deploying")
	return cmd
}

// NewTeardown returns the teardown command.
func NewTeardown() *cobra.Command {
	return &cobra.Command{
		Use:   "teardown <deployment yaml>",
		Short: "Delete the cluster of a deployment.",
		Args:  cobra.ExactArgs(1),
		RunE:  teardownFn,
	}
}

// NewHealthy returns the healthy command.
func NewHealthy() *cobra.Command {
	return &cobra.Command{
		Use:   "healthy <deployment yaml>",
		Short: "Check that the cluster and Calico of a deployment are healthy.",
		Args:  cobra.ExactArgs(1),
		RunE:  healthyFn,
	}
}

// newDeployment reads the deployment file at path.  Files named by the
// deployment need not exist if ignoreMissing is set.
func newDeployment(path string, ignoreMissing bool) (*deploy.Deployment, error) {
	log.Infof("Reading deployment config: %q", path)
	c, err := load.NewConfig(path, &DeploymentConfig{})
	if err != nil {
		return nil, err
	}
	c.IgnoreMissingFiles = ignoreMissing
	d := &deploy.Deployment{}
	if err := c.Decode(d); err != nil {
		return nil, err
	}
	if d.Cluster == nil {
		return nil, fmt.Errorf("%s: no cluster", path)
	}
	if d.CNI == nil {
		return nil, fmt.Errorf("%s: no cni", path)
	}
	return d, nil
}

func deployFn(cmd *cobra.Command, args []string) error {
	d, err := newDeployment(args[0], false)
	if err != nil {
		return err
	}
	if d.Progress, err = cmd.Flags().GetBool("progress"); err != nil {
		return err
	}
	d.Report = metrics.Options{
		Enabled:   viper.GetBool("report.enabled"),
		ProjectID: viper.GetString("report.project"),
		TopicID:   viper.GetString("report.topic"),
	}
	if err := d.Deploy(cmd.Context()); err != nil {
		return err
	}
	log.Infof("Deployment complete, ready for tests")
	return nil
}

func teardownFn(cmd *cobra.Command, args []string) error {
	d, err := newDeployment(args[0], true)
	if err != nil {
		return err
	}
	return d.Delete()
}

func healthyFn(cmd *cobra.Command, args []string) error {
	d, err := newDeployment(args[0], true)
	if err != nil {
		return err
	}
	if err := d.Healthy(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "healthy")
	return nil
}
