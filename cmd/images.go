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
	"strings"

	"github.com/kr/pretty"
	"github.com/openconfig/calicotest/calico"
	"github.com/openconfig/calicotest/image"
	"github.com/openconfig/calicotest/manifest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <component> [version]",
		Short: "Show the build metadata of a packaged component.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  resolveFn,
	}
}

// componentVersion returns version if set, otherwise the configured
// version of component.
func componentVersion(component, version string) string {
	if version != "" {
		return version
	}
	if component == calico.Operator {
		return viper.GetString("operator.version")
	}
	return viper.GetString("calico.version")
}

func resolveFn(cmd *cobra.Command, args []string) error {
	p, err := platform()
	if err != nil {
		return err
	}
	var version string
	if len(args) > 1 {
		version = args[1]
	}
	info, err := resolver().Resolve(args[0], componentVersion(args[0], version), p)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Use, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", pretty.Sprint(info))
	return nil
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <component>",
		Short: "List the built versions of a packaged component, newest first.",
		Args:  cobra.ExactArgs(1),
		RunE:  versionsFn,
	}
}

func versionsFn(cmd *cobra.Command, args []string) error {
	p, err := platform()
	if err != nil {
		return err
	}
	vs, err := resolver().Versions(args[0], p)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Use, err)
	}
	for _, v := range vs {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return nil
}

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <image>",
		Short: "Show the manifest digest of an image.",
		Args:  cobra.ExactArgs(1),
		RunE:  digestFn,
	}
}

func digestFn(cmd *cobra.Command, args []string) error {
	ref, err := image.Parse(args[0])
	if err != nil {
		return err
	}
	d, err := registry().Digest(cmd.Context(), ref)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), d)
	return nil
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths <image> <path>...",
		Short: "Check that paths exist in an image.",
		Args:  cobra.MinimumNArgs(2),
		RunE:  pathsFn,
	}
}

func pathsFn(cmd *cobra.Command, args []string) error {
	ref, err := image.Parse(args[0])
	if err != nil {
		return err
	}
	p, err := platform()
	if err != nil {
		return err
	}
	if err := registry().EnsureContainsPaths(cmd.Context(), ref, p, args[1:]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s contains %s\n", ref, strings.Join(args[1:], ", "))
	return nil
}

func newManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "manifest [installation|imageset|apiserver]...",
		Short:     "Print the operator resources of a custom installation.",
		ValidArgs: []string{"installation", "imageset", "apiserver"},
		Args:      cobra.OnlyValidArgs,
		RunE:      manifestFn,
	}
}

func manifestFn(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"installation", "imageset", "apiserver"}
	}
	p, err := platform()
	if err != nil {
		return err
	}
	r := resolver()
	calicoVersion := viper.GetString("calico.version")
	operatorVersion := viper.GetString("operator.version")
	var objs []interface{}
	for _, a := range args {
		switch a {
		case "installation":
			op, err := r.Resolve(calico.Operator, operatorVersion, p)
			if err != nil {
				return err
			}
			objs = append(objs, manifest.NewInstallation(op.Image.Registry, op.Image.Repository))
		case "imageset":
			digests, err := calico.ImageDigests(cmd.Context(), r, registry(), calicoVersion, operatorVersion, p)
			if err != nil {
				return err
			}
			objs = append(objs, manifest.NewImageSet(calicoVersion, digests))
		case "apiserver":
			objs = append(objs, manifest.NewAPIServer())
		}
	}
	b, err := manifest.Marshal(objs...)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}
