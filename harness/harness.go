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

// Package harness provides the cluster instances tests run against.
//
// An Instance runs commands against one cluster.  Commands that talk to the
// cluster (kubectl and helm) are pointed at the instance's cluster, so callers
// can write them as they would by hand.
package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/openconfig/calicotest/exec"
	"github.com/openconfig/calicotest/exec/run"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	log "k8s.io/klog/v2"
)

// An Execer runs commands.  By default an exit code other than 0 returns
// an *UnexpectedExitCodeError.
type Execer interface {
	Exec(cmd []string, opts ...ExecOption) (*run.Result, error)
}

// An Instance is a cluster under test.  Its Exec runs commands against the
// cluster.
type Instance interface {
	Execer
	// Name identifies the instance in logs.
	Name() string
	// Kubeconfig returns the kubeconfig path and context for the cluster.
	// Either may be empty to use the client defaults.
	Kubeconfig() (path, context string)
	// Close releases the instance.  Ephemeral clusters are deleted.
	Close() error
}

// ExecOptions are the resolved options of an Exec call.
type ExecOptions struct {
	Input    []byte
	ExitCode int
	Check    bool
	Quiet    bool
}

// An ExecOption modifies how Exec runs a command.
type ExecOption func(*ExecOptions)

// NewExecOptions applies opts to the defaults.  Implementations of Execer
// that do not run through the host use it to honor opts.
func NewExecOptions(opts ...ExecOption) ExecOptions {
	o := ExecOptions{Check: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithInput sends b to the standard input of the command.
func WithInput(b []byte) ExecOption {
	return func(o *ExecOptions) { o.Input = b }
}

// WithExitCode sets the exit code the command is expected to return.
func WithExitCode(code int) ExecOption {
	return func(o *ExecOptions) { o.ExitCode = code }
}

// CheckExitCode enables or disables checking the exit code.  It is enabled
// by default.
func CheckExitCode(check bool) ExecOption {
	return func(o *ExecOptions) { o.Check = check }
}

// Quiet disables logging the output of the command.
func Quiet() ExecOption {
	return func(o *ExecOptions) { o.Quiet = true }
}

// UnexpectedExitCodeError is returned when a command exits with a code other
// than the one expected.
type UnexpectedExitCodeError struct {
	Cmd    []string
	Want   int
	Got    int
	Stderr string
}

func (e *UnexpectedExitCodeError) Error() string {
	msg := fmt.Sprintf("%q exited with %d, want %d", strings.Join(e.Cmd, " "), e.Got, e.Want)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// CheckExit returns an *UnexpectedExitCodeError if got is not want.
func CheckExit(cmd []string, want, got int, stderr []byte) error {
	if got == want {
		return nil
	}
	return &UnexpectedExitCodeError{Cmd: cmd, Want: want, Got: got, Stderr: string(stderr)}
}

// execute runs cmd on the host and applies opts.
func execute(cmd []string, opts []ExecOption) (*run.Result, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("no command")
	}
	o := NewExecOptions(opts...)
	runner := run.Run
	if o.Quiet {
		runner = run.Quiet
	}
	log.V(1).Infof("Running %q", strings.Join(cmd, " "))
	res, err := runner(o.Input, cmd[0], cmd[1:]...)
	if err != nil && exec.ExitCode(err) < 0 {
		return res, err
	}
	if !o.Check {
		return res, nil
	}
	return res, CheckExit(cmd, o.ExitCode, res.ExitCode, res.Stderr)
}

// withFlags returns cmd with flags inserted after the command name when the
// command is tool.
func withFlags(cmd []string, tool string, flags ...string) []string {
	if len(cmd) == 0 || cmd[0] != tool || len(flags) == 0 {
		return cmd
	}
	out := make([]string, 0, len(cmd)+len(flags))
	out = append(out, cmd[0])
	out = append(out, flags...)
	return append(out, cmd[1:]...)
}

// clusterFlags points kubectl and helm in cmd at kubecfg and kctx.
func clusterFlags(cmd []string, kubecfg, kctx string) []string {
	var kubectl, helm []string
	if kubecfg != "" {
		kubectl = append(kubectl, "--kubeconfig", kubecfg)
		helm = append(helm, "--kubeconfig", kubecfg)
	}
	if kctx != "" {
		kubectl = append(kubectl, "--context", kctx)
		helm = append(helm, "--kube-context", kctx)
	}
	cmd = withFlags(cmd, "kubectl", kubectl...)
	return withFlags(cmd, "helm", helm...)
}

// Clientset returns a Kubernetes client for inst.
func Clientset(inst Instance) (kubernetes.Interface, error) {
	path, kctx := inst.Kubeconfig()
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		rules.ExplicitPath = path
	}
	cc := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{CurrentContext: kctx})
	rCfg, err := cc.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig for %s: %w", inst.Name(), err)
	}
	c, err := kubernetes.NewForConfig(rCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", inst.Name(), err)
	}
	return c, nil
}

// Type selects an Instance implementation.
type Type string

const (
	TypeLocal    = Type("local")
	TypeKind     = Type("kind")
	TypeExternal = Type("external")
)

// Config describes the instance New returns.
type Config struct {
	Type    Type
	Kubecfg string
	Context string
	Kind    Kind
}

// New returns the instance described by cfg.  A kind cluster is created
// before New returns.
func New(ctx context.Context, cfg Config) (Instance, error) {
	switch cfg.Type {
	case TypeLocal, "":
		return &Local{Kubecfg: cfg.Kubecfg, Context: cfg.Context}, nil
	case TypeExternal:
		if cfg.Kubecfg == "" {
			return nil, fmt.Errorf("external instance requires a kubeconfig")
		}
		return &External{Kubecfg: cfg.Kubecfg, Context: cfg.Context}, nil
	case TypeKind:
		k := cfg.Kind
		if k.Kubecfg == "" {
			k.Kubecfg = cfg.Kubecfg
		}
		if err := k.Create(ctx); err != nil {
			return nil, err
		}
		return &k, nil
	default:
		return nil, fmt.Errorf("unknown instance type %q", cfg.Type)
	}
}
