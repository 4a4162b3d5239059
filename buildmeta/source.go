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

package buildmeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable read by EnvSource.
const EnvVar = "BUILT_ROCKS_METADATA"

// An Entry describes one pre-built image as recorded by the build pipeline.
// JSON is a subset of YAML so the same tags decode both.
type Entry struct {
	Name             string `yaml:"name"`
	Version          string `yaml:"version"`
	Arch             string `yaml:"arch"`
	Image            string `yaml:"image"`
	SourceRepository string `yaml:"source-repository,omitempty"`
	SourceCommit     string `yaml:"source-commit,omitempty"`
	Digest           string `yaml:"digest,omitempty"`
}

// A Source provides the entries known to the build pipeline.  Sources are
// read on every resolution.
type Source interface {
	Entries() ([]Entry, error)
}

// StaticSource is a fixed list of entries.
type StaticSource []Entry

// Entries implements Source.
func (s StaticSource) Entries() ([]Entry, error) {
	return s, nil
}

// EnvSource reads entries from the environment variable Var, EnvVar if
// empty.
type EnvSource struct {
	Var string
}

var lookupEnv = os.LookupEnv

// Entries implements Source.
func (s EnvSource) Entries() ([]Entry, error) {
	name := s.Var
	if name == "" {
		name = EnvVar
	}
	v, ok := lookupEnv(name)
	if !ok || v == "" {
		return nil, fmt.Errorf("build metadata: %s is not set", name)
	}
	es, err := decode([]byte(v))
	if err != nil {
		return nil, fmt.Errorf("build metadata from %s: %w", name, err)
	}
	return es, nil
}

// FileSource reads entries from a YAML or JSON file.
type FileSource struct {
	Path string
}

// Entries implements Source.
func (s FileSource) Entries() ([]Entry, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("build metadata: %w", err)
	}
	es, err := decode(b)
	if err != nil {
		return nil, fmt.Errorf("build metadata from %s: %w", s.Path, err)
	}
	return es, nil
}

func decode(b []byte) ([]Entry, error) {
	var es []Entry
	dec := yaml.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&es); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return es, nil
}
