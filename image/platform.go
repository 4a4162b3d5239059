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

package image

import (
	"fmt"
	"strings"

	"github.com/containerd/platforms"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// A Platform is a CPU architecture images are built for.
type Platform string

const (
	AMD64 = Platform("amd64")
	ARM64 = Platform("arm64")
)

// Platforms lists every supported platform.
var Platforms = []Platform{AMD64, ARM64}

// UnsupportedPlatformError is returned for architectures other than amd64
// and arm64.
type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q", e.Platform)
}

// Validate returns an error if p is not a supported platform.
func (p Platform) Validate() error {
	switch p {
	case AMD64, ARM64:
		return nil
	default:
		return &UnsupportedPlatformError{Platform: string(p)}
	}
}

// Spec returns the OCI platform for p.
func (p Platform) Spec() (specs.Platform, error) {
	if err := p.Validate(); err != nil {
		return specs.Platform{}, err
	}
	return specs.Platform{OS: "linux", Architecture: string(p)}, nil
}

var defaultSpec = platforms.DefaultSpec

// HostPlatform returns the platform of the machine running the tests.
func HostPlatform() (Platform, error) {
	return fromSpec(defaultSpec())
}

// ParsePlatform parses an architecture (amd64, x86_64, arm64, aarch64) or an
// os/arch pair with a linux OS.
func ParsePlatform(s string) (Platform, error) {
	spec := s
	if !strings.Contains(spec, "/") {
		spec = "linux/" + spec
	}
	p, err := platforms.Parse(spec)
	if err != nil || p.OS != "linux" {
		return "", &UnsupportedPlatformError{Platform: s}
	}
	arch, err := fromSpec(p)
	if err != nil {
		return "", &UnsupportedPlatformError{Platform: s}
	}
	return arch, nil
}

func fromSpec(p specs.Platform) (Platform, error) {
	p = platforms.Normalize(p)
	switch p.Architecture {
	case "amd64":
		return AMD64, nil
	case "arm64":
		return ARM64, nil
	default:
		return "", &UnsupportedPlatformError{Platform: platforms.Format(p)}
	}
}
