package harness

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	kexec "github.com/openconfig/calicotest/exec"
	fexec "github.com/openconfig/calicotest/exec/fake"
	"github.com/openconfig/gnmi/errdiff"
)

func setCommands(t *testing.T, resp []fexec.Response) {
	t.Helper()
	fexec.LogCommand = func(s string) {
		t.Logf("%s: %s", t.Name(), s)
	}
	cmds := fexec.Commands(resp)
	orig := kexec.Command
	kexec.Command = cmds.Command
	t.Cleanup(func() {
		kexec.Command = orig
		if err := cmds.Done(); err != nil {
			t.Error(err)
		}
	})
}

func TestExec(t *testing.T) {
	tests := []struct {
		desc       string
		inst       Instance
		cmd        []string
		opts       []ExecOption
		resp       []fexec.Response
		wantStdout string
		wantCode   int
		wantErr    string
	}{{
		desc: "local",
		inst: &Local{},
		cmd:  []string{"kubectl", "get", "pods", "-A"},
		resp: []fexec.Response{
			{Cmd: "kubectl", Args: []string{"get", "pods", "-A"}, Stdout: "No resources found"},
		},
		wantStdout: "No resources found",
	}, {
		desc: "external kubectl",
		inst: &External{Kubecfg: "/tmp/kubeconfig", Context: "prod"},
		cmd:  []string{"kubectl", "get", "nodes"},
		resp: []fexec.Response{
			{Cmd: "kubectl", Args: []string{"--kubeconfig", "/tmp/kubeconfig", "--context", "prod", "get", "nodes"}},
		},
	}, {
		desc: "external helm",
		inst: &External{Kubecfg: "/tmp/kubeconfig", Context: "prod"},
		cmd:  []string{"helm", "install", "calico", "tigera-operator"},
		resp: []fexec.Response{
			{Cmd: "helm", Args: []string{"--kubeconfig", "/tmp/kubeconfig", "--kube-context", "prod", "install", "calico", "tigera-operator"}},
		},
	}, {
		desc: "kind kubectl with input",
		inst: &Kind{ClusterName: "calico-test"},
		cmd:  []string{"kubectl", "apply", "-f", "-"},
		opts: []ExecOption{WithInput([]byte("kind: APIServer\n"))},
		resp: []fexec.Response{
			{Cmd: "kubectl", Args: []string{"--context", "kind-calico-test", "apply", "-f", "-"}, Stdin: "kind: APIServer\n"},
		},
	}, {
		desc: "kind leaves other commands",
		inst: &Kind{ClusterName: "calico-test"},
		cmd:  []string{"docker", "ps"},
		resp: []fexec.Response{
			{Cmd: "docker", Args: []string{"ps"}},
		},
	}, {
		desc: "unexpected exit code",
		inst: &Local{},
		cmd:  []string{"kubectl", "get", "deployment", "missing"},
		resp: []fexec.Response{
			{Cmd: "kubectl", Args: []string{"get", "deployment", "missing"}, Stderr: "NotFound", ExitCode: 1},
		},
		wantCode: 1,
		wantErr:  `"kubectl get deployment missing" exited with 1, want 0: NotFound`,
	}, {
		desc: "expected exit code",
		inst: &Local{},
		cmd:  []string{"check-status", "--help"},
		opts: []ExecOption{WithExitCode(2)},
		resp: []fexec.Response{
			{Cmd: "check-status", Args: []string{"--help"}, ExitCode: 2},
		},
		wantCode: 2,
	}, {
		desc: "exit code not checked",
		inst: &Local{},
		cmd:  []string{"calico-node", "--help"},
		opts: []ExecOption{CheckExitCode(false), Quiet()},
		resp: []fexec.Response{
			{Cmd: "calico-node", Args: []string{"--help"}, Stderr: "Usage of Calico:", ExitCode: 2},
		},
		wantCode: 2,
	}, {
		desc: "wrong exit code",
		inst: &Local{},
		cmd:  []string{"check-status", "--help"},
		opts: []ExecOption{WithExitCode(2)},
		resp: []fexec.Response{
			{Cmd: "check-status", Args: []string{"--help"}},
		},
		wantErr: "exited with 0, want 2",
	}, {
		desc: "command failed to start",
		inst: &Local{},
		cmd:  []string{"helm", "version"},
		opts: []ExecOption{CheckExitCode(false)},
		resp: []fexec.Response{
			{Cmd: "helm", Args: []string{"version"}, Err: "executable file not found"},
		},
		wantCode: -1,
		wantErr:  "executable file not found",
	}, {
		desc:    "empty command",
		inst:    &Local{},
		wantErr: "no command",
	}}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			setCommands(t, tt.resp)
			got, err := tt.inst.Exec(tt.cmd, tt.opts...)
			if s := errdiff.Substring(err, tt.wantErr); s != "" {
				t.Fatalf("Exec() unexpected error: %s", s)
			}
			if got == nil {
				return
			}
			if string(got.Stdout) != tt.wantStdout {
				t.Errorf("Exec() got stdout %q, want %q", got.Stdout, tt.wantStdout)
			}
			if got.ExitCode != tt.wantCode {
				t.Errorf("Exec() got exit code %d, want %d", got.ExitCode, tt.wantCode)
			}
		})
	}
}

func TestUnexpectedExitCodeError(t *testing.T) {
	setCommands(t, []fexec.Response{
		{Cmd: "docker", Args: []string{"run", "img"}, ExitCode: 125},
	})
	_, err := (&Local{}).Exec([]string{"docker", "run", "img"})
	var uerr *UnexpectedExitCodeError
	if !errors.As(err, &uerr) {
		t.Fatalf("Exec() got error %v, want *UnexpectedExitCodeError", err)
	}
	want := &UnexpectedExitCodeError{Cmd: []string{"docker", "run", "img"}, Want: 0, Got: 125}
	if s := cmp.Diff(want, uerr); s != "" {
		t.Errorf("Exec() unexpected error diff (-want +got):\n%s", s)
	}
}

func TestKindConfig(t *testing.T) {
	for _, tt := range []struct {
		desc string
		k    *Kind
		want string
	}{{
		desc: "default",
		k:    &Kind{},
		want: `apiVersion: kind.x-k8s.io/v1alpha4
kind: Cluster
networking:
  disableDefaultCNI: true
  podSubnet: 192.168.0.0/16
`,
	}, {
		desc: "subnet",
		k:    &Kind{PodSubnet: "10.244.0.0/16"},
		want: `apiVersion: kind.x-k8s.io/v1alpha4
kind: Cluster
networking:
  disableDefaultCNI: true
  podSubnet: 10.244.0.0/16
`,
	}} {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := tt.k.Config()
			if err != nil {
				t.Fatalf("Config() unexpected error: %v", err)
			}
			if s := cmp.Diff(tt.want, string(got)); s != "" {
				t.Errorf("Config() unexpected diff (-want +got):\n%s", s)
			}
		})
	}
}

func TestKindName(t *testing.T) {
	orig := newUUID
	defer func() {
		newUUID = orig
	}()
	newUUID = func() string { return "1234abcd-5678-90ef-1234-567890abcdef" }
	k := &Kind{}
	if got, want := k.Name(), "calico-1234abcd"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
	newUUID = func() string { return "ffffffff-5678-90ef-1234-567890abcdef" }
	if got, want := k.Name(), "calico-1234abcd"; got != want {
		t.Errorf("Name() changed to %q, want %q", got, want)
	}
	path, kctx := k.Kubeconfig()
	if path != "" || kctx != "kind-calico-1234abcd" {
		t.Errorf("Kubeconfig() = %q, %q", path, kctx)
	}
}

func TestKindCreate(t *testing.T) {
	tests := []struct {
		desc     string
		k        *Kind
		lookPath func(string) (string, error)
		resp     []fexec.Response
		wantErr  string
	}{{
		desc: "create",
		k:    &Kind{ClusterName: "calico-test"},
		resp: []fexec.Response{
			{Cmd: "kind", Args: []string{"create", "cluster", "--name", "calico-test", "--config", ".*/kind-config.yaml"}},
		},
	}, {
		desc: "create with options",
		k: &Kind{
			ClusterName: "calico-test",
			Version:     "v0.20.0",
			Image:       "kindest/node:v1.29.2",
			Retain:      true,
			Kubecfg:     "/tmp/kubeconfig",
			Images:      []string{"ghcr.io/canonical/calico-node:v3.28.0"},
		},
		resp: []fexec.Response{
			{Cmd: "kind", Args: []string{"version"}, Stdout: "kind v0.22.0 go1.21.7 linux/amd64"},
			{Cmd: "kind", Args: []string{"create", "cluster", "--name", "calico-test", "--config", ".*/kind-config.yaml", "--image", "kindest/node:v1.29.2", "--retain", "--kubeconfig", "/tmp/kubeconfig"}},
			{Cmd: "docker", Args: []string{"pull", "ghcr.io/canonical/calico-node:v3.28.0"}, Stderr: "connection reset", ExitCode: 1},
			{Cmd: "docker", Args: []string{"pull", "ghcr.io/canonical/calico-node:v3.28.0"}},
			{Cmd: "kind", Args: []string{"load", "docker-image", "ghcr.io/canonical/calico-node:v3.28.0", "--name", "calico-test"}},
		},
	}, {
		desc: "recycle",
		k:    &Kind{ClusterName: "calico-test", Recycle: true},
		resp: []fexec.Response{
			{Cmd: "kubectl", Args: []string{"--context", "kind-calico-test", "cluster-info"}},
		},
	}, {
		desc: "recycle with kubeconfig",
		k:    &Kind{ClusterName: "calico-test", Recycle: true, Kubecfg: "/tmp/kubeconfig"},
		resp: []fexec.Response{
			{Cmd: "kubectl", Args: []string{"--kubeconfig", "/tmp/kubeconfig", "--context", "kind-calico-test", "cluster-info"}},
		},
	}, {
		desc: "recycle creates missing cluster",
		k:    &Kind{ClusterName: "calico-test", Recycle: true, Kubecfg: "/tmp/kubeconfig"},
		resp: []fexec.Response{
			{Cmd: "kubectl", Args: []string{"--kubeconfig", "/tmp/kubeconfig", "--context", "kind-calico-test", "cluster-info"}, Stderr: `error: context "kind-calico-test" does not exist`, ExitCode: 1},
			{Cmd: "kind", Args: []string{"create", "cluster", "--name", "calico-test", "--config", ".*/kind-config.yaml", "--kubeconfig", "/tmp/kubeconfig"}},
		},
	}, {
		desc: "missing dependency",
		k:    &Kind{ClusterName: "calico-test"},
		lookPath: func(bin string) (string, error) {
			if bin == "helm" {
				return "", fmt.Errorf("not found")
			}
			return "/usr/bin/" + bin, nil
		},
		wantErr: `install dependency "helm"`,
	}, {
		desc: "kind too old",
		k:    &Kind{ClusterName: "calico-test", Version: "v0.20.0"},
		resp: []fexec.Response{
			{Cmd: "kind", Args: []string{"version"}, Stdout: "kind v0.17.0 go1.19.2 linux/amd64"},
		},
		wantErr: "kind version check failed",
	}, {
		desc: "create fails",
		k:    &Kind{ClusterName: "calico-test"},
		resp: []fexec.Response{
			{Cmd: "kind", Args: []string{"create", "cluster", "--name", "calico-test", "--config", ".*/kind-config.yaml"}, Stderr: "Creating cluster\nERROR: failed to create cluster: node(s) already exist\n", ExitCode: 1},
		},
		wantErr: "ERROR: failed to create cluster: node(s) already exist",
	}, {
		desc: "image not found",
		k:    &Kind{ClusterName: "calico-test", Images: []string{"ghcr.io/canonical/calico-node:v0.0.0"}},
		resp: []fexec.Response{
			{Cmd: "kind", Args: []string{"create", "cluster", "--name", "calico-test", "--config", ".*/kind-config.yaml"}},
			{Cmd: "docker", Args: []string{"pull", "ghcr.io/canonical/calico-node:v0.0.0"}, Stderr: "manifest for ghcr.io/canonical/calico-node:v0.0.0 not found", ExitCode: 1},
		},
		wantErr: "container not found",
	}}
	origLookPath := execLookPath
	origDelay := pullRetryDelay
	defer func() {
		execLookPath = origLookPath
		pullRetryDelay = origDelay
	}()
	pullRetryDelay = 0
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			setCommands(t, tt.resp)
			execLookPath = tt.lookPath
			if execLookPath == nil {
				execLookPath = func(bin string) (string, error) { return "/usr/bin/" + bin, nil }
			}
			err := tt.k.Create(context.Background())
			if s := errdiff.Substring(err, tt.wantErr); s != "" {
				t.Fatalf("Create() unexpected error: %s", s)
			}
		})
	}
}

func TestKindClose(t *testing.T) {
	t.Run("delete", func(t *testing.T) {
		setCommands(t, []fexec.Response{
			{Cmd: "kind", Args: []string{"delete", "cluster", "--name", "calico-test"}},
		})
		if err := (&Kind{ClusterName: "calico-test"}).Close(); err != nil {
			t.Errorf("Close() unexpected error: %v", err)
		}
	})
	t.Run("retain", func(t *testing.T) {
		setCommands(t, nil)
		if err := (&Kind{ClusterName: "calico-test", Retain: true}).Close(); err != nil {
			t.Errorf("Close() unexpected error: %v", err)
		}
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		desc    string
		cfg     Config
		want    Instance
		wantErr string
	}{{
		desc: "default",
		want: &Local{},
	}, {
		desc: "local",
		cfg:  Config{Type: TypeLocal, Kubecfg: "/tmp/kubeconfig"},
		want: &Local{Kubecfg: "/tmp/kubeconfig"},
	}, {
		desc: "external",
		cfg:  Config{Type: TypeExternal, Kubecfg: "/tmp/kubeconfig", Context: "prod"},
		want: &External{Kubecfg: "/tmp/kubeconfig", Context: "prod"},
	}, {
		desc:    "external without kubeconfig",
		cfg:     Config{Type: TypeExternal},
		wantErr: "requires a kubeconfig",
	}, {
		desc:    "unknown",
		cfg:     Config{Type: "minikube"},
		wantErr: `unknown instance type "minikube"`,
	}}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := New(context.Background(), tt.cfg)
			if s := errdiff.Substring(err, tt.wantErr); s != "" {
				t.Fatalf("New() unexpected error: %s", s)
			}
			if s := cmp.Diff(tt.want, got); s != "" {
				t.Errorf("New() unexpected diff (-want +got):\n%s", s)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		desc    string
		in      string
		want    string
		wantErr string
	}{{
		desc: "release",
		in:   "v1.28.2",
		want: "1.28.2",
	}, {
		desc: "prerelease and build stripped",
		in:   "v1.29.0-rc.1+k3s1",
		want: "1.29.0",
	}, {
		desc:    "no prefix",
		in:      "1.28.2",
		wantErr: "missing prefix",
	}, {
		desc:    "not semver",
		in:      "v1.28",
		wantErr: "No Major.Minor.Patch",
	}}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if s := errdiff.Substring(err, tt.wantErr); s != "" {
				t.Fatalf("ParseVersion() unexpected error: %s", s)
			}
			if err != nil {
				return
			}
			if got.String() != tt.want {
				t.Errorf("ParseVersion() got %s, want %s", got, tt.want)
			}
		})
	}
}
