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

// Package cmd implements the calico_cli commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openconfig/calicotest/calico"
	"github.com/openconfig/calicotest/cmd/deploy"
	"github.com/openconfig/calicotest/poll"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/client-go/util/homedir"
)

// New returns a new root command.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:   "calico_cli",
		Short: "Calico release verification CLI",
		Long: `Calico release verification CLI.  Resolves packaged Calico images
from build metadata, checks their contents and installs them into a
Kubernetes cluster through the Tigera operator.`,
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	cfgFile := root.PersistentFlags().String("config_file", defaultCfgFile(), "Path to config file")
	fs := root.PersistentFlags()
	fs.String("kubecfg", defaultKubeCfg(), "kubeconfig file")
	fs.String("context", "", "kubeconfig context")
	fs.String("harness", "local", "Cluster to run in: local, kind or external")
	fs.String("kind_name", "", "Name of the kind cluster, generated if empty")
	fs.String("kind_image", "", "Node image of the kind cluster")
	fs.Bool("kind_retain", false, "Keep the kind cluster when done")
	fs.Bool("kind_recycle", false, "Reuse an existing kind cluster of the same name")
	fs.Duration("kind_wait", 0, "How long kind waits for the control plane")
	fs.String("metadata", "", "Build metadata file, $BUILT_ROCKS_METADATA if empty")
	fs.String("platform", "", "Image platform, the host's if empty")
	fs.Duration("poll_interval", poll.DefaultPolicy.Interval, "Time between readiness checks")
	fs.Int("poll_attempts", poll.DefaultPolicy.MaxAttempts, "Readiness checks before giving up")
	fs.String("calico_version", calico.DefaultCalicoVersion, "Calico version under test")
	fs.String("operator_version", calico.DefaultOperatorVersion, "Tigera operator version under test")
	fs.String("checker", "kubectl", "How readiness is checked: kubectl or client")
	fs.String("runner", "api", "How containers are run: api or cli")
	fs.Bool("insecure", false, "Allow plain HTTP registries")
	fs.Bool("report_usage", false, "Report runs to a PubSub topic")
	fs.String("report_usage_project_id", "", "GCP project of the PubSub topic")
	fs.String("report_usage_topic_id", "", "PubSub topic runs are reported to")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd, *cfgFile)
	}
	root.AddCommand(newResolveCmd())
	root.AddCommand(newVersionsCmd())
	root.AddCommand(newDigestCmd())
	root.AddCommand(newPathsCmd())
	root.AddCommand(newWaitCmd())
	root.AddCommand(newManifestCmd())
	root.AddCommand(newSanityCmd())
	root.AddCommand(newIntegrationCmd())
	root.AddCommand(deploy.New())
	root.AddCommand(deploy.NewTeardown())
	root.AddCommand(deploy.NewHealthy())
	return root
}

// flagKeys maps flags whose config key differs from the flag name.
var flagKeys = map[string]string{
	"kind_name":               "kind.name",
	"kind_image":              "kind.image",
	"kind_retain":             "kind.retain",
	"kind_recycle":            "kind.recycle",
	"kind_wait":               "kind.wait",
	"poll_interval":           "poll.interval",
	"poll_attempts":           "poll.attempts",
	"calico_version":          "calico.version",
	"operator_version":        "operator.version",
	"insecure":                "registry.insecure",
	"report_usage":            "report.enabled",
	"report_usage_project_id": "report.project",
	"report_usage_topic_id":   "report.topic",
}

// initConfig reads cfgFile if it exists and binds the flags and the
// CALICOTEST_ environment to the config keys.
func initConfig(cmd *cobra.Command, cfgFile string) error {
	viper.SetConfigType("yaml")
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("error reading config: %w", err)
			}
		}
	}
	viper.SetEnvPrefix("CALICOTEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExecuteContext executes the root command.
func ExecuteContext(ctx context.Context) error {
	return New().ExecuteContext(ctx)
}

func defaultCfgFile() string {
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".config", "calicotest", "config.yaml")
	}
	return ""
}

func defaultKubeCfg() string {
	if v := os.Getenv("KUBECONFIG"); v != "" {
		return v
	}
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".kube", "config")
	}
	return ""
}
