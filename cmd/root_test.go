package cmd

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/poll"
	"github.com/spf13/viper"
)

// execute runs the root command with args and returns what it wrote to
// standard output.  Configuration is reset and read from an empty home.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KUBECONFIG", "")
	root := New()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGetKubeCfg(t *testing.T) {
	tests := []struct {
		desc       string
		kubeconfig string
		home       string
		want       string
	}{{
		desc:       "KUBECONFIG set",
		kubeconfig: "/etc/kube/config",
		home:       "/fakeuser",
		want:       "/etc/kube/config",
	}, {
		desc: "home dir",
		home: "/fakeuser",
		want: "/fakeuser/.kube/config",
	}, {
		desc: "unknown",
		want: "",
	}}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Setenv("KUBECONFIG", tt.kubeconfig)
			t.Setenv("HOME", tt.home)
			if got := defaultKubeCfg(); got != tt.want {
				t.Errorf("defaultKubeCfg() got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInitConfig(t *testing.T) {
	if _, err := execute(t, "versions", "calico-node",
		"--config_file", "testdata/config.yaml",
		"--metadata", "testdata/metadata.yaml",
		"--platform", "amd64",
		"--context", "override"); err != nil {
		t.Fatalf("versions failed: %v", err)
	}
	got, err := harnessConfig()
	if err != nil {
		t.Fatalf("harnessConfig() failed: %v", err)
	}
	want := harness.Config{Type: harness.TypeExternal, Kubecfg: "/etc/calicotest/kubeconfig", Context: "override"}
	if s := cmp.Diff(want, got); s != "" {
		t.Errorf("harnessConfig() unexpected diff (-want +got):\n%s", s)
	}
	p, err := retryPolicy()
	if err != nil {
		t.Fatalf("retryPolicy() failed: %v", err)
	}
	if want := (poll.RetryPolicy{Interval: time.Second, MaxAttempts: 3}); p != want {
		t.Errorf("retryPolicy() got %+v, want %+v", p, want)
	}
	if got, want := viper.GetString("calico.version"), "v3.27.3"; got != want {
		t.Errorf("calico.version got %q, want %q", got, want)
	}
	if got, want := viper.GetString("operator.version"), "v1.34.0"; got != want {
		t.Errorf("operator.version got %q, want %q", got, want)
	}
}

func TestInitConfigEnv(t *testing.T) {
	t.Setenv("CALICOTEST_CALICO_VERSION", "v3.26.1")
	t.Setenv("CALICOTEST_CHECKER", "client")
	if _, err := execute(t, "versions", "calico-node", "--metadata", "testdata/metadata.yaml", "--platform", "amd64"); err != nil {
		t.Fatalf("versions failed: %v", err)
	}
	if got, want := viper.GetString("calico.version"), "v3.26.1"; got != want {
		t.Errorf("calico.version got %q, want %q", got, want)
	}
	if got, want := viper.GetString("checker"), "client"; got != want {
		t.Errorf("checker got %q, want %q", got, want)
	}
}
