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

	"github.com/openconfig/calicotest/calico"
	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/metrics"
	"github.com/openconfig/calicotest/poll"
	"github.com/openconfig/calicotest/workload"
	"github.com/openconfig/gnmi/errlist"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	log "k8s.io/klog/v2"
)

// newInstance and newClientset are replaced in tests.
var (
	newInstance  = harness.New
	newClientset = harness.Clientset
)

func newWaitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait <[kind/]namespace/name>...",
		Short: "Wait for workloads to be ready.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  waitFn,
	}
	cmd.Flags().Bool("watch", false, "Watch the workloads until ready instead of polling; the retry policy is ignored")
	return cmd
}

func waitFn(cmd *cobra.Command, args []string) error {
	var sels []workload.Selector
	for _, a := range args {
		sel, err := workload.ParseSelector(a)
		if err != nil {
			return err
		}
		sels = append(sels, sel)
	}
	policy, err := retryPolicy()
	if err != nil {
		return err
	}
	hcfg, err := harnessConfig()
	if err != nil {
		return err
	}
	if hcfg.Type == harness.TypeKind {
		return fmt.Errorf("%s: wait needs an existing cluster, not kind", cmd.Use)
	}
	inst, err := newInstance(cmd.Context(), hcfg)
	if err != nil {
		return err
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}
	if watch {
		cs, err := newClientset(inst)
		if err != nil {
			return err
		}
		c := workload.NewClientChecker(cs)
		for _, sel := range sels {
			if err := c.Wait(cmd.Context(), sel); err != nil {
				return err
			}
		}
	} else {
		c, err := checker(inst)
		if err != nil {
			return err
		}
		if err := poll.AwaitAll(cmd.Context(), c, policy, sels...); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ready")
	return nil
}

func newSanityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sanity [component]...",
		Short: "Run the sanity checks of packaged images, all if none are named.",
		RunE:  sanityFn,
	}
}

func sanityFn(cmd *cobra.Command, args []string) error {
	checks := calico.SanityChecks
	if len(args) > 0 {
		checks = nil
		for _, a := range args {
			c, ok := calico.LookupSanityCheck(a)
			if !ok {
				return fmt.Errorf("%s: no sanity check for %q", cmd.Use, a)
			}
			checks = append(checks, c)
		}
	}
	p, err := platform()
	if err != nil {
		return err
	}
	run, err := runner(p)
	if err != nil {
		return err
	}
	r := resolver()
	reg := registry()
	calicoVersion := viper.GetString("calico.version")
	operatorVersion := viper.GetString("operator.version")
	var errs errlist.List
	for _, c := range checks {
		v := c.Version(calicoVersion, operatorVersion)
		finish := metrics.Start(cmd.Context(), report(), &metrics.Run{
			Kind:            metrics.RunSanity,
			Target:          c.Component,
			CalicoVersion:   calicoVersion,
			OperatorVersion: operatorVersion,
			Platform:        string(p),
		})
		err := calico.RunSanity(cmd.Context(), r, run, reg, c, v, p)
		finish(err)
		if err != nil {
			log.Errorf("%s %s: %v", c.Component, v, err)
			errs.Add(fmt.Errorf("%s: %w", c.Component, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "PASS %s %s\n", c.Component, v)
	}
	return errs.Err()
}

func newIntegrationCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "integration [custom|deferred]",
		Short:     "Install Calico through the operator and wait for it.",
		ValidArgs: []string{string(calico.Custom), string(calico.Deferred)},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		RunE:      integrationFn,
	}
}

func integrationFn(cmd *cobra.Command, args []string) (rerr error) {
	variant := calico.Custom
	if len(args) > 0 {
		variant = calico.Variant(args[0])
	}
	p, err := platform()
	if err != nil {
		return err
	}
	policy, err := retryPolicy()
	if err != nil {
		return err
	}
	hcfg, err := harnessConfig()
	if err != nil {
		return err
	}
	s := calico.CustomInstallation(viper.GetString("calico.version"), viper.GetString("operator.version"), p)
	s.Variant = variant
	s.OperatorPolicy = policy
	finish := metrics.Start(cmd.Context(), report(), &metrics.Run{
		Kind:            metrics.RunIntegration,
		Target:          string(variant),
		Harness:         string(hcfg.Type),
		CalicoVersion:   s.CalicoVersion,
		OperatorVersion: s.OperatorVersion,
		Platform:        string(p),
	})
	defer func() { finish(rerr) }()
	inst, err := newInstance(cmd.Context(), hcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := inst.Close(); err != nil {
			log.Warningf("Failed to close %s: %v", inst.Name(), err)
		}
	}()
	c, err := checker(inst)
	if err != nil {
		return err
	}
	if err := s.Run(cmd.Context(), inst, resolver(), registry(), c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "PASS %s installation on %s\n", variant, inst.Name())
	return nil
}
