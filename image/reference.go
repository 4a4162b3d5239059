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

// Package image describes container image references and the platforms
// images are built for.
package image

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// A Reference is a fully qualified, tagged image reference of the form
// registry/repository/name:tag.  Repository may itself contain slashes.
type Reference struct {
	Registry   string
	Repository string
	Name       string
	Tag        string
}

// String returns r in the form it was parsed from.
func (r Reference) String() string {
	return r.Registry + "/" + r.Repository + "/" + r.Name + ":" + r.Tag
}

// Path returns r without its registry and tag, e.g. myrepo/calico-node.
func (r Reference) Path() string {
	return r.Repository + "/" + r.Name
}

// WithTag returns a copy of r with its tag replaced.
func (r Reference) WithTag(tag string) Reference {
	r.Tag = tag
	return r
}

// MalformedReferenceError is returned by Parse.
type MalformedReferenceError struct {
	Ref    string
	Reason string
}

func (e *MalformedReferenceError) Error() string {
	return fmt.Sprintf("malformed image reference %q: %s", e.Ref, e.Reason)
}

// Parse parses s as registry/repository/name:tag.
//
// Digests are not accepted.  The tag is everything after the last colon and
// must not contain a slash, so a registry port (localhost:5000/x/y:v1) is
// allowed.  The remaining path must have at least three non-empty segments:
// the registry, one or more repository segments and the image name.
func Parse(s string) (Reference, error) {
	bad := func(format string, args ...interface{}) (Reference, error) {
		return Reference{}, &MalformedReferenceError{Ref: s, Reason: fmt.Sprintf(format, args...)}
	}
	if strings.Contains(s, "@") {
		return bad("digest references are not supported")
	}
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return bad("missing tag")
	}
	rest, tag := s[:i], s[i+1:]
	switch {
	case tag == "":
		return bad("empty tag")
	case strings.Contains(tag, "/"):
		return bad("missing tag")
	}
	segs := strings.Split(rest, "/")
	if len(segs) < 3 {
		return bad("want registry/repository/name, got %d path segments", len(segs))
	}
	for n, seg := range segs {
		if seg == "" {
			return bad("empty path segment %d", n)
		}
	}
	name := segs[len(segs)-1]
	if strings.Contains(name, ":") {
		return bad("more than one tag in %q", name)
	}
	if _, err := reference.Parse(s); err != nil {
		return bad("%v", err)
	}
	return Reference{
		Registry:   segs[0],
		Repository: strings.Join(segs[1:len(segs)-1], "/"),
		Name:       name,
		Tag:        tag,
	}, nil
}

// MustParse is like Parse but panics on error.  It is intended for
// references that are known to be valid, such as constants.
func MustParse(s string) Reference {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}
