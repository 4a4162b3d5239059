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

// Package load reads deployment configurations and fills in a deployment
// structure from them.  Every field of the YAML configuration must have a
// yaml tag.
//
// A YAML mapping with both a "kind" and a "spec" key selects a registered
// Spec by kind.  The spec is decoded into a new value of the Spec's Type and
// stored in the deployment field whose deploy tag matches the Spec's Tag.
//
// String fields tagged deploy:"yaml" name YAML files.  They are made
// absolute relative to the configuration file and must hold valid YAML.
//
// Typical usage:
//
//	var config DeploymentConfig
//	var deployment Deployment
//	c, err := load.NewConfig(file, &config)
//	if err != nil {
//		...
//	}
//	if err := c.Decode(&deployment); err != nil {
//		...
//	}
package load

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// TagName is the struct tag read by Decode.
const TagName = "deploy"

var yamlNodeType = reflect.TypeOf(yaml.Node{})

// open is replaced in tests.
var open = func(path string) (io.ReadCloser, error) { return os.Open(path) }

// A Spec is a registered kind.  Type is a value of the structure the spec
// decodes into, e.g. KindSpec{}.  Tag names the deployment field the decoded
// value is stored in.  Validate, if set, is called on the decoded value.
type Spec struct {
	Type     interface{}
	Tag      string
	Validate func(c *Config, spec interface{}) error
}

var (
	specMu sync.Mutex
	specs  = map[string]*Spec{}
)

// Register registers spec as kind.
func Register(kind string, spec *Spec) {
	specMu.Lock()
	defer specMu.Unlock()
	specs[kind] = spec
}

func lookup(kind string) (*Spec, bool) {
	specMu.Lock()
	defer specMu.Unlock()
	s, ok := specs[kind]
	return s, ok
}

// A Config is a deployment configuration read from a file.
type Config struct {
	Path       string      // path of the configuration file
	Dir        string      // absolute directory of Path
	Config     interface{} // the decoded configuration
	Deployment interface{} // set by Decode

	// IgnoreMissingFiles accepts deploy:"yaml" fields naming files that
	// do not exist.
	IgnoreMissingFiles bool
}

// NewConfig decodes the YAML file at path into config.  Unknown fields are
// an error.
func NewConfig(path string, config interface{}) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fp, err := open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	d := yaml.NewDecoder(fp)
	d.KnownFields(true)
	if err := d.Decode(config); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Config{Path: path, Dir: filepath.Dir(abs), Config: config}, nil
}

// Decode fills in deployment, a pointer to a struct, from c.
func (c *Config) Decode(deployment interface{}) error {
	c.Deployment = deployment
	return c.decode(reflect.ValueOf(c.Config), []string{"root"}, "")
}

func (c *Config) decode(v reflect.Value, path []string, tag reflect.StructTag) error {
	switch v.Kind() {
	case reflect.String:
		if v.String() != "" && tag.Get(TagName) == "yaml" {
			if err := c.checkYAMLFile(v); err != nil {
				return fmt.Errorf("%s: %w", strings.Join(path, "."), err)
			}
		}
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			if err := c.decode(v.Index(i), append(path, fmt.Sprintf("[%d]", i)), tag); err != nil {
				return err
			}
		}
	case reflect.Map:
		itr := v.MapRange()
		for itr.Next() {
			if itr.Key().Kind() != reflect.String {
				continue
			}
			if err := c.decode(itr.Value(), append(path, fmt.Sprintf("[%s]", itr.Key().String())), tag); err != nil {
				return err
			}
		}
	case reflect.Pointer:
		if !v.IsNil() {
			return c.decode(v.Elem(), path, tag)
		}
	case reflect.Struct:
		return c.decodeStruct(v, path)
	}
	return nil
}

// decodeStruct decodes the fields of v and, if v has kind and spec fields,
// the spec they select.
func (c *Config) decodeStruct(v reflect.Value, path []string) error {
	t := v.Type()
	var kind string
	var spec *yaml.Node
	for i := 0; i < t.NumField(); i++ {
		sf, sv := t.Field(i), v.Field(i)
		fpath := append(path, sf.Name)
		switch sf.Tag.Get("yaml") {
		case "":
		case "kind":
			if kind != "" {
				return fmt.Errorf("multiple kinds in %v", t)
			}
			if sf.Type.Kind() != reflect.String {
				return fmt.Errorf("%s: kind must be a string", strings.Join(fpath, "."))
			}
			kind = sv.String()
		case "spec":
			if sf.Type != yamlNodeType {
				return fmt.Errorf("%s is not of type %v", strings.Join(fpath, "."), yamlNodeType)
			}
			if node := sv.Interface().(yaml.Node); node.Kind != 0 {
				spec = &node
			}
		default:
			if err := c.decode(sv, fpath, sf.Tag); err != nil {
				return err
			}
		}
	}
	switch {
	case kind == "" && spec == nil:
		return nil
	case kind == "":
		return fmt.Errorf("spec without kind: %s", strings.Join(path, "."))
	case spec == nil:
		return fmt.Errorf("kind without spec: %s", strings.Join(path, "."))
	}
	return c.decodeSpec(kind, spec, append(path, kind))
}

func (c *Config) decodeSpec(kind string, spec *yaml.Node, path []string) error {
	st, ok := lookup(kind)
	if !ok {
		return fmt.Errorf("%s: kind %s not supported", strings.Join(path[:len(path)-1], "."), kind)
	}
	val := reflect.New(reflect.TypeOf(st.Type))
	if err := spec.Decode(val.Interface()); err != nil {
		return fmt.Errorf("%s: %w", strings.Join(path, "."), err)
	}
	if err := c.decode(val.Elem(), path, ""); err != nil {
		return err
	}
	fv, err := findField(c.Deployment, st.Tag)
	if err != nil {
		return err
	}
	ft := fv.Type()
	isSlice := ft.Kind() == reflect.Slice
	if isSlice {
		ft = ft.Elem()
	}
	if !val.Type().AssignableTo(ft) {
		return fmt.Errorf("%v is not assignable to %v", val.Type(), ft)
	}
	if isSlice {
		fv.Set(reflect.Append(fv, val))
	} else {
		fv.Set(val)
	}
	if st.Validate != nil {
		return st.Validate(c, val.Interface())
	}
	return nil
}

// checkYAMLFile makes the path in v absolute and checks that it names a
// regular file holding YAML.
func (c *Config) checkYAMLFile(v reflect.Value) error {
	path := v.String()
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.Dir, path)
	}
	v.SetString(path)
	fi, err := os.Stat(path)
	switch {
	case err != nil && c.IgnoreMissingFiles:
		return nil
	case err != nil:
		return err
	case !fi.Mode().IsRegular():
		return fmt.Errorf("%s: not a regular file", path)
	}
	fp, err := open(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	var doc interface{}
	if err := yaml.NewDecoder(fp).Decode(&doc); err != nil && err != io.EOF {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// findField returns the field of s, a pointer to struct, tagged with tag.
func findField(s interface{}, tag string) (reflect.Value, error) {
	t := reflect.TypeOf(s)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%T is not a pointer to struct", s)
	}
	t = t.Elem()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get(TagName) == tag {
			return reflect.ValueOf(s).Elem().Field(i), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("field %s not found", tag)
}
