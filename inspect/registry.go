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

// Package inspect looks inside container images: their digests, their
// filesystems and the output of commands run in them.
package inspect

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/openconfig/calicotest/image"
	"github.com/openconfig/gnmi/errlist"
	log "k8s.io/klog/v2"
)

// A Registry reads images from their registries.
type Registry struct {
	// Insecure allows plain HTTP registries.
	Insecure bool
	// Keychain provides credentials, authn.DefaultKeychain if nil.
	Keychain authn.Keychain
}

// DefaultRegistry is used by the package level functions.
var DefaultRegistry = &Registry{}

// Digest returns the manifest digest of ref from DefaultRegistry.
func Digest(ctx context.Context, ref image.Reference) (string, error) {
	return DefaultRegistry.Digest(ctx, ref)
}

// EnsureContainsPaths checks paths in ref with DefaultRegistry.
func EnsureContainsPaths(ctx context.Context, ref image.Reference, p image.Platform, paths []string) error {
	return DefaultRegistry.EnsureContainsPaths(ctx, ref, p, paths)
}

func (r *Registry) parse(ref image.Reference) (name.Reference, error) {
	var opts []name.Option
	if r.Insecure {
		opts = append(opts, name.Insecure)
	}
	n, err := name.ParseReference(ref.String(), opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	return n, nil
}

func (r *Registry) options(ctx context.Context) []remote.Option {
	kc := r.Keychain
	if kc == nil {
		kc = authn.DefaultKeychain
	}
	return []remote.Option{remote.WithContext(ctx), remote.WithAuthFromKeychain(kc)}
}

// Digest returns the digest of the manifest ref points to.
func (r *Registry) Digest(ctx context.Context, ref image.Reference) (string, error) {
	n, err := r.parse(ref)
	if err != nil {
		return "", err
	}
	desc, err := remote.Head(n, r.options(ctx)...)
	if err != nil {
		return "", fmt.Errorf("failed to get digest of %s: %w", ref, err)
	}
	log.V(1).Infof("Digest of %s is %s", ref, desc.Digest)
	return desc.Digest.String(), nil
}

// MissingPathError lists the paths not found in an image.
type MissingPathError struct {
	Image image.Reference
	Path  string
}

func (e *MissingPathError) Error() string {
	return fmt.Sprintf("%s does not contain %s", e.Image, e.Path)
}

// EnsureContainsPaths returns an error for each of paths that is not in the
// filesystem of the p variant of ref.  Symbolic links inside the image are
// followed.
func (r *Registry) EnsureContainsPaths(ctx context.Context, ref image.Reference, p image.Platform, paths []string) error {
	spec, err := p.Spec()
	if err != nil {
		return err
	}
	n, err := r.parse(ref)
	if err != nil {
		return err
	}
	opts := append(r.options(ctx), remote.WithPlatform(v1.Platform{OS: spec.OS, Architecture: spec.Architecture}))
	img, err := remote.Image(n, opts...)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", ref, err)
	}
	fs, err := readFS(mutate.Extract(img))
	if err != nil {
		return fmt.Errorf("failed to read filesystem of %s: %w", ref, err)
	}
	var errs errlist.List
	for _, want := range paths {
		if !fs.exists(want) {
			errs.Add(&MissingPathError{Image: ref, Path: want})
		}
	}
	return errs.Err()
}

// fileSystem is the set of paths in a flattened image.
type fileSystem struct {
	files    map[string]bool
	symlinks map[string]string
}

func readFS(rc io.ReadCloser) (*fileSystem, error) {
	defer rc.Close()
	fs := &fileSystem{files: map[string]bool{"/": true}, symlinks: map[string]string{}}
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fs, nil
		}
		if err != nil {
			return nil, err
		}
		p := clean(hdr.Name)
		fs.files[p] = true
		for d := path.Dir(p); d != "/"; d = path.Dir(d) {
			fs.files[d] = true
		}
		if hdr.Typeflag == tar.TypeSymlink {
			fs.symlinks[p] = hdr.Linkname
		}
	}
}

func clean(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "./"))
}

// maxLinks bounds symbolic link resolution.
const maxLinks = 40

// resolve returns p with every symbolic link in it followed.
func (fs *fileSystem) resolve(p string) (string, bool) {
	links := 0
	parts := strings.Split(strings.TrimPrefix(clean(p), "/"), "/")
	cur := "/"
	for len(parts) > 0 {
		next := path.Join(cur, parts[0])
		parts = parts[1:]
		target, ok := fs.symlinks[next]
		if !ok {
			cur = next
			continue
		}
		if links++; links > maxLinks {
			return "", false
		}
		if !path.IsAbs(target) {
			target = path.Join(cur, target)
		}
		rest := strings.Split(strings.TrimPrefix(clean(target), "/"), "/")
		parts = append(rest, parts...)
		cur = "/"
	}
	return cur, true
}

func (fs *fileSystem) exists(p string) bool {
	if fs.files[clean(p)] && fs.symlinks[clean(p)] == "" {
		return true
	}
	r, ok := fs.resolve(p)
	return ok && fs.files[r]
}
