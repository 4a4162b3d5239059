package image

import (
	"errors"
	"testing"

	specs "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/openconfig/gnmi/errdiff"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    Platform
		wantErr string
	}{
		{in: "amd64", want: AMD64},
		{in: "x86_64", want: AMD64},
		{in: "linux/amd64", want: AMD64},
		{in: "arm64", want: ARM64},
		{in: "aarch64", want: ARM64},
		{in: "linux/arm64", want: ARM64},
		{in: "linux/arm64/v8", want: ARM64},
		{in: "ppc64le", wantErr: `unsupported platform "ppc64le"`},
		{in: "s390x", wantErr: "unsupported platform"},
		{in: "windows/amd64", wantErr: "unsupported platform"},
		{in: "", wantErr: "unsupported platform"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePlatform(tt.in)
			if s := errdiff.Substring(err, tt.wantErr); s != "" {
				t.Fatalf("ParsePlatform(%q) unexpected error: %s", tt.in, s)
			}
			if err != nil {
				var uerr *UnsupportedPlatformError
				if !errors.As(err, &uerr) {
					t.Errorf("ParsePlatform(%q) got error %T, want *UnsupportedPlatformError", tt.in, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParsePlatform(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHostPlatform(t *testing.T) {
	tests := []struct {
		desc    string
		spec    specs.Platform
		want    Platform
		wantErr string
	}{{
		desc: "amd64",
		spec: specs.Platform{OS: "linux", Architecture: "amd64"},
		want: AMD64,
	}, {
		desc: "arm64",
		spec: specs.Platform{OS: "darwin", Architecture: "arm64", Variant: "v8"},
		want: ARM64,
	}, {
		desc:    "riscv64",
		spec:    specs.Platform{OS: "linux", Architecture: "riscv64"},
		wantErr: "unsupported platform",
	}}
	orig := defaultSpec
	defer func() {
		defaultSpec = orig
	}()
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			defaultSpec = func() specs.Platform { return tt.spec }
			got, err := HostPlatform()
			if s := errdiff.Substring(err, tt.wantErr); s != "" {
				t.Fatalf("HostPlatform() unexpected error: %s", s)
			}
			if got != tt.want {
				t.Errorf("HostPlatform() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlatformSpec(t *testing.T) {
	for _, p := range Platforms {
		s, err := p.Spec()
		if err != nil {
			t.Fatalf("%s.Spec() unexpected error: %v", p, err)
		}
		if s.OS != "linux" || s.Architecture != string(p) {
			t.Errorf("%s.Spec() = %+v", p, s)
		}
	}
	if _, err := Platform("386").Spec(); err == nil {
		t.Errorf("Platform(386).Spec() got nil error")
	}
}
