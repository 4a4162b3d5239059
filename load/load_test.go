package load

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/openconfig/gnmi/errdiff"
	"gopkg.in/yaml.v3"
)

type testSpec struct {
	Kind string    `yaml:"kind"`
	Spec yaml.Node `yaml:"spec"`
}

type testConfig struct {
	Cluster testSpec `yaml:"cluster"`
	CNI     testSpec `yaml:"cni"`
}

type testCluster struct {
	Name  string `yaml:"name"`
	Nodes int    `yaml:"nodes"`
}

type testCNI struct {
	Variant  string `yaml:"variant"`
	Metadata string `yaml:"metadata" deploy:"yaml"`
}

type testDeployment struct {
	Cluster *testCluster `deploy:"cluster"`
	CNI     *testCNI     `deploy:"cni"`
}

func init() {
	Register("TestCluster", &Spec{Type: testCluster{}, Tag: "cluster"})
	Register("TestCNI", &Spec{Type: testCNI{}, Tag: "cni"})
}

func TestDecode(t *testing.T) {
	abs, err := filepath.Abs("testdata")
	if err != nil {
		t.Fatalf("Abs() failed: %v", err)
	}
	tests := []struct {
		desc       string
		path       string
		ignoreMiss bool
		want       *testDeployment
		wantErr    string
	}{{
		desc: "cluster and cni",
		path: "testdata/deploy.yaml",
		want: &testDeployment{
			Cluster: &testCluster{Name: "calico-test", Nodes: 2},
			CNI:     &testCNI{Variant: "custom", Metadata: filepath.Join(abs, "metadata.yaml")},
		},
	}, {
		desc:    "unknown kind",
		path:    "testdata/unknown-kind.yaml",
		wantErr: "kind Kubeadm not supported",
	}, {
		desc:    "kind without spec",
		path:    "testdata/missing-spec.yaml",
		wantErr: "kind without spec",
	}, {
		desc:    "spec without kind",
		path:    "testdata/spec-without-kind.yaml",
		wantErr: "spec without kind",
	}, {
		desc:    "missing metadata file",
		path:    "testdata/bad-metadata.yaml",
		wantErr: "does-not-exist.yaml",
	}, {
		desc:       "missing metadata file ignored",
		path:       "testdata/bad-metadata.yaml",
		ignoreMiss: true,
		want: &testDeployment{
			CNI: &testCNI{Variant: "custom", Metadata: filepath.Join(abs, "does-not-exist.yaml")},
		},
	}}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			c, err := NewConfig(tt.path, &testConfig{})
			if err != nil {
				t.Fatalf("NewConfig() failed: %v", err)
			}
			c.IgnoreMissingFiles = tt.ignoreMiss
			got := &testDeployment{}
			err = c.Decode(got)
			if s := errdiff.Substring(err, tt.wantErr); s != "" {
				t.Fatalf("Decode() unexpected error: %s", s)
			}
			if tt.want == nil {
				return
			}
			if s := cmp.Diff(tt.want, got); s != "" {
				t.Errorf("Decode() unexpected diff (-want +got):\n%s", s)
			}
		})
	}
}

func TestNewConfigErrors(t *testing.T) {
	tests := []struct {
		desc    string
		path    string
		wantErr string
	}{{
		desc:    "unknown field",
		path:    "testdata/unknown-field.yaml",
		wantErr: "field ingress not found",
	}, {
		desc:    "no file",
		path:    "testdata/nope.yaml",
		wantErr: "no such file",
	}}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := NewConfig(tt.path, &testConfig{})
			if s := errdiff.Substring(err, tt.wantErr); s != "" {
				t.Errorf("NewConfig() unexpected error: %s", s)
			}
		})
	}
}

func TestDecodeNotStruct(t *testing.T) {
	c, err := NewConfig("testdata/deploy.yaml", &testConfig{})
	if err != nil {
		t.Fatalf("NewConfig() failed: %v", err)
	}
	var d testDeployment
	if s := errdiff.Substring(c.Decode(d), "is not a pointer to struct"); s != "" {
		t.Errorf("Decode() unexpected error: %s", s)
	}
}
