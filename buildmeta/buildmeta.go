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

// Package buildmeta resolves the pre-built image of a component for a given
// version and platform.
//
// Resolution is a lookup over a Source.  Nothing is cached: every call to
// Resolve reads the source again, so resolving the same triple twice against
// an unchanged source yields equal results.
package buildmeta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blang/semver"
	"github.com/openconfig/calicotest/image"
	log "k8s.io/klog/v2"
)

// BuildMetaInfo is the resolved build of one component.
type BuildMetaInfo struct {
	Name             string
	Version          string
	Platform         image.Platform
	Image            image.Reference
	SourceRepository string
	SourceCommit     string
	Digest           string
}

// NotFoundError is returned when a source has no build for the requested
// component, version and platform.
type NotFoundError struct {
	Name     string
	Version  string
	Platform image.Platform
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no build metadata for %s %s (%s)", e.Name, e.Version, e.Platform)
}

// A Resolver resolves build metadata from Source.
type Resolver struct {
	Source Source
}

// New returns a Resolver reading from src.
func New(src Source) *Resolver {
	return &Resolver{Source: src}
}

// Resolve returns the build of component at version for platform.  Versions
// are matched exactly as written in the source.
func (r *Resolver) Resolve(component, version string, platform image.Platform) (*BuildMetaInfo, error) {
	if err := platform.Validate(); err != nil {
		return nil, err
	}
	es, err := r.Source.Entries()
	if err != nil {
		return nil, err
	}
	for _, e := range es {
		if e.Name != component || e.Version != version || e.Arch != string(platform) {
			continue
		}
		ref, err := image.Parse(e.Image)
		if err != nil {
			return nil, fmt.Errorf("build metadata for %s %s: %w", component, version, err)
		}
		log.V(1).Infof("Resolved %s %s (%s) to %s", component, version, platform, ref)
		return &BuildMetaInfo{
			Name:             e.Name,
			Version:          e.Version,
			Platform:         platform,
			Image:            ref,
			SourceRepository: e.SourceRepository,
			SourceCommit:     e.SourceCommit,
			Digest:           e.Digest,
		}, nil
	}
	return nil, &NotFoundError{Name: component, Version: version, Platform: platform}
}

// Versions returns the versions of component built for platform, newest
// first.  Entries with versions that do not parse are skipped.
func (r *Resolver) Versions(component string, platform image.Platform) ([]string, error) {
	es, err := r.Source.Entries()
	if err != nil {
		return nil, err
	}
	type version struct {
		s string
		v semver.Version
	}
	var vs []version
	seen := map[string]bool{}
	for _, e := range es {
		if e.Name != component || e.Arch != string(platform) || seen[e.Version] {
			continue
		}
		v, err := parseVersion(e.Version)
		if err != nil {
			log.Warningf("Skipping %s: invalid version %q: %v", e.Name, e.Version, err)
			continue
		}
		seen[e.Version] = true
		vs = append(vs, version{s: e.Version, v: v})
	}
	sort.SliceStable(vs, func(i, j int) bool {
		return vs[i].v.GT(vs[j].v)
	})
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.s
	}
	return out, nil
}

func parseVersion(s string) (semver.Version, error) {
	if !strings.HasPrefix(s, "v") {
		return semver.Version{}, fmt.Errorf("missing prefix on major version")
	}
	return semver.Parse(s[1:])
}
