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

package calico

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/image"
	"github.com/openconfig/calicotest/inspect"
	"github.com/openconfig/gnmi/errlist"
	log "k8s.io/klog/v2"
)

// A Stream is the output stream a command check reads.
type Stream string

const (
	Stdout = Stream("stdout")
	Stderr = Stream("stderr")
)

// A CommandCheck runs Argv in the image and looks for Contains in Stream.
type CommandCheck struct {
	Argv     []string
	Stream   Stream
	Contains string
	// IgnoreExitCode accepts any exit code.  Some binaries exit non-zero
	// after printing their help.
	IgnoreExitCode bool
}

// A SanityCheck lists what must hold for one packaged image.
type SanityCheck struct {
	Component string
	// OperatorVersioned images follow the operator's version instead of
	// Calico's.
	OperatorVersioned bool
	Paths             []string
	Commands          []CommandCheck
}

// Version returns the version of c's image given the release versions.
func (c SanityCheck) Version(calicoVersion, operatorVersion string) string {
	if c.OperatorVersioned {
		return operatorVersion
	}
	return calicoVersion
}

func help(stream Stream, contains string, argv ...string) CommandCheck {
	return CommandCheck{Argv: append(argv, "--help"), Stream: stream, Contains: contains}
}

func helpAnyExit(stream Stream, contains string, argv ...string) CommandCheck {
	c := help(stream, contains, argv...)
	c.IgnoreExitCode = true
	return c
}

// SanityChecks are the checks of every packaged image.
var SanityChecks = []SanityCheck{{
	Component: "calico-apiserver",
	Commands: []CommandCheck{
		help(Stdout, "run a calico api server", "/code/apiserver"),
	},
}, {
	Component: "calico-cni",
	Paths: []string{
		"/opt/cni/bin/calico",
		"/opt/cni/bin/install",
		"/opt/cni/bin/calico-ipam",
	},
	Commands: []CommandCheck{
		help(Stderr, "Usage of Calico:", "/opt/cni/bin/calico"),
		help(Stderr, "Usage of calico-ipam:", "/opt/cni/bin/calico-ipam"),
	},
}, {
	Component: "calico-csi",
	Commands: []CommandCheck{
		help(Stderr, "Kubelet communicates with the CSI plugin", "/usr/bin/csi-driver"),
	},
}, {
	Component: Ctl,
	Commands: []CommandCheck{
		help(Stdout, "The calicoctl command line tool is used to", "/usr/bin/ctl"),
	},
}, {
	Component: "calico-kube-controllers",
	Commands: []CommandCheck{
		help(Stderr, "Usage of /usr/bin/kube-controllers", "/usr/bin/kube-controllers"),
		helpAnyExit(Stderr, "Usage of check-status:", "/usr/bin/check-status"),
	},
}, {
	Component: "calico-node",
	Paths: []string{
		"/etc/rc.local",
		"/etc/nsswitch.conf",
		"/etc/calico/felix.cfg",
		"/etc/service/available/cni/run",
		"/usr/lib/calico/bpf/filter.o",
		"/sbin/start_runit",
		"/sbin/restart-calico-confd",
		"/bin/bird",
		"/bin/bird6",
		"/bin/birdcl",
		"/bin/birdcl6",
		"/bin/bpftool",
		"/bin/calico-node",
		"/bin/mountns",
	},
	Commands: []CommandCheck{
		helpAnyExit(Stderr, "Usage of Calico:", "/bin/calico-node"),
		help(Stderr, "Usage: bird", "/bin/bird"),
		help(Stderr, "Usage: bird6", "/bin/bird6"),
		help(Stderr, "Usage: bpftool", "/bin/bpftool"),
	},
}, {
	Component: "calico-pod2daemon-flexvol",
	Commands: []CommandCheck{
		help(Stdout, "flexvoldrv [command]", "/usr/local/bin/flexvol"),
		helpAnyExit(Stdout, "usage: /usr/local/bin/flexvol.sh", "/usr/local/bin/flexvol.sh"),
	},
}, {
	Component: "calico-typha",
	Paths: []string{
		"/etc/calico/typha.cfg",
		"/usr/bin/calico-typha",
	},
	Commands: []CommandCheck{
		help(Stdout, "Typha, Calico's fan-out proxy.", "/usr/bin/calico-typha"),
	},
}, {
	Component: "calico-key-cert-provisioner",
	Commands: []CommandCheck{
		help(Stderr, "Usage of /usr/bin/key-cert-provisioner", "/usr/bin/key-cert-provisioner"),
	},
}, {
	Component: "calico-node-driver-registrar",
	Commands: []CommandCheck{
		help(Stderr, "Usage of node-driver-registrar", "node-driver-registrar"),
	},
}, {
	Component:         Operator,
	OperatorVersioned: true,
	Commands: []CommandCheck{
		help(Stderr, "Usage of /usr/bin/operator", "/usr/bin/operator"),
	},
}}

// LookupSanityCheck returns the check of component.
func LookupSanityCheck(component string) (SanityCheck, bool) {
	for _, c := range SanityChecks {
		if c.Component == component {
			return c, true
		}
	}
	return SanityCheck{}, false
}

// OutputMismatchError is returned when a command's output lacks the expected
// text.
type OutputMismatchError struct {
	Image  image.Reference
	Argv   []string
	Stream Stream
	Want   string
	Got    string
}

func (e *OutputMismatchError) Error() string {
	return fmt.Sprintf("%q in %s: %s does not contain %q", strings.Join(e.Argv, " "), e.Image, e.Stream, e.Want)
}

// RunSanity resolves the image of check at version and platform, checks its
// paths and runs its commands.  All failures are reported.
func RunSanity(ctx context.Context, r Resolver, runner inspect.Runner, paths PathChecker, check SanityCheck, version string, platform image.Platform) error {
	info, err := r.Resolve(check.Component, version, platform)
	if err != nil {
		return err
	}
	log.Infof("Checking %s %s (%s): %s", check.Component, version, platform, info.Image)
	var errs errlist.List
	if len(check.Paths) > 0 {
		errs.Add(paths.EnsureContainsPaths(ctx, info.Image, platform, check.Paths))
	}
	for _, c := range check.Commands {
		if err := ctx.Err(); err != nil {
			errs.Add(err)
			break
		}
		errs.Add(runCommandCheck(ctx, runner, info.Image, c))
	}
	return errs.Err()
}

func runCommandCheck(ctx context.Context, runner inspect.Runner, ref image.Reference, c CommandCheck) error {
	var opts []harness.ExecOption
	if c.IgnoreExitCode {
		opts = append(opts, harness.CheckExitCode(false))
	}
	res, err := runner.Run(ctx, ref, c.Argv, opts...)
	if err != nil {
		return err
	}
	out := res.Stdout
	if c.Stream == Stderr {
		out = res.Stderr
	}
	if !bytes.Contains(out, []byte(c.Contains)) {
		return &OutputMismatchError{Image: ref, Argv: c.Argv, Stream: c.Stream, Want: c.Contains, Got: string(out)}
	}
	return nil
}
