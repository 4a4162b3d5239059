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

package cmd

import (
	"fmt"

	"github.com/openconfig/calicotest/buildmeta"
	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/image"
	"github.com/openconfig/calicotest/inspect"
	"github.com/openconfig/calicotest/metrics"
	"github.com/openconfig/calicotest/poll"
	"github.com/openconfig/calicotest/workload"
	"github.com/spf13/viper"
)

// harnessConfig returns the cluster instance configuration.
func harnessConfig() (harness.Config, error) {
	cfg := harness.Config{
		Type:    harness.Type(viper.GetString("harness")),
		Kubecfg: viper.GetString("kubecfg"),
		Context: viper.GetString("context"),
	}
	switch cfg.Type {
	case harness.TypeLocal, harness.TypeExternal:
	case harness.TypeKind:
		cfg.Kind = harness.Kind{
			ClusterName: viper.GetString("kind.name"),
			Image:       viper.GetString("kind.image"),
			Retain:      viper.GetBool("kind.retain"),
			Recycle:     viper.GetBool("kind.recycle"),
			Wait:        viper.GetDuration("kind.wait"),
		}
	default:
		return harness.Config{}, fmt.Errorf("unknown harness %q", cfg.Type)
	}
	return cfg, nil
}

// metadataSource returns the configured build metadata.
func metadataSource() buildmeta.Source {
	if p := viper.GetString("metadata"); p != "" {
		return buildmeta.FileSource{Path: p}
	}
	return buildmeta.EnvSource{}
}

func resolver() *buildmeta.Resolver {
	return buildmeta.New(metadataSource())
}

// platform returns the configured platform or the host's.
func platform() (image.Platform, error) {
	if s := viper.GetString("platform"); s != "" {
		return image.ParsePlatform(s)
	}
	return image.HostPlatform()
}

func retryPolicy() (poll.RetryPolicy, error) {
	p := poll.RetryPolicy{
		Interval:    viper.GetDuration("poll.interval"),
		MaxAttempts: viper.GetInt("poll.attempts"),
	}
	return p, p.Validate()
}

// report returns where runs are reported.
func report() metrics.Options {
	return metrics.Options{
		Enabled:   viper.GetBool("report.enabled"),
		ProjectID: viper.GetString("report.project"),
		TopicID:   viper.GetString("report.topic"),
	}
}

func registry() *inspect.Registry {
	return &inspect.Registry{Insecure: viper.GetBool("registry.insecure")}
}

// runner returns the configured container runner.  The cli runner runs
// docker on the host.
func runner(p image.Platform) (inspect.Runner, error) {
	switch r := viper.GetString("runner"); r {
	case "api", "":
		return newDockerRunner(p)
	case "cli":
		return &inspect.CLIRunner{Inst: &harness.Local{}, Platform: p}, nil
	default:
		return nil, fmt.Errorf("unknown runner %q", r)
	}
}

var newDockerRunner = func(p image.Platform) (inspect.Runner, error) {
	return inspect.NewDockerRunner(p)
}

// checker returns the configured readiness checker for inst.
func checker(inst harness.Instance) (poll.Checker, error) {
	switch c := viper.GetString("checker"); c {
	case "kubectl", "":
		return workload.NewKubectlChecker(inst), nil
	case "client":
		cs, err := harness.Clientset(inst)
		if err != nil {
			return nil, err
		}
		return workload.NewClientChecker(cs), nil
	default:
		return nil, fmt.Errorf("unknown checker %q", c)
	}
}
