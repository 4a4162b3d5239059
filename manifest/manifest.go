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

// Package manifest builds the operator.tigera.io resources that configure a
// Calico installation and applies them with kubectl.
//
// The resources are applied as built.  Nothing here validates, merges or
// diffs them against what is in the cluster.
package manifest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/openconfig/calicotest/harness"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	log "k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

// APIVersion is the API group version of the operator resources.
const APIVersion = "operator.tigera.io/v1"

// Defaults of the Calico IP pool.
const (
	DefaultPoolName      = "default-ipv4-ippool"
	DefaultCIDR          = "192.168.0.0/16"
	DefaultBlockSize     = 26
	DefaultEncapsulation = "VXLANCrossSubnet"
	DefaultNodeSelector  = "all()"
)

// Metadata is the object metadata of a resource.
type Metadata struct {
	Name string `json:"name"`
}

// An IPPool is a pool Calico assigns pod addresses from.
type IPPool struct {
	Name          string `json:"name"`
	BlockSize     int    `json:"blockSize"`
	CIDR          string `json:"cidr"`
	Encapsulation string `json:"encapsulation"`
	NATOutgoing   string `json:"natOutgoing"`
	NodeSelector  string `json:"nodeSelector"`
}

// CalicoNetwork configures Calico networking.
type CalicoNetwork struct {
	IPPools []IPPool `json:"ipPools"`
}

// InstallationSpec configures where Calico images come from and how Calico
// networking is set up.
type InstallationSpec struct {
	// Images are <registry>/<imagePath>/<imagePrefix><imageName>:<tag>.
	Registry      string         `json:"registry,omitempty"`
	ImagePath     string         `json:"imagePath,omitempty"`
	ImagePrefix   string         `json:"imagePrefix,omitempty"`
	CalicoNetwork *CalicoNetwork `json:"calicoNetwork,omitempty"`
}

// Installation is the operator's Installation resource.
type Installation struct {
	metav1.TypeMeta `json:",inline"`
	Metadata        Metadata         `json:"metadata"`
	Spec            InstallationSpec `json:"spec"`
}

// NewInstallation returns the default Installation pulling images from
// registry/imagePath with the calico- prefix.
func NewInstallation(registry, imagePath string) *Installation {
	return &Installation{
		TypeMeta: metav1.TypeMeta{APIVersion: APIVersion, Kind: "Installation"},
		Metadata: Metadata{Name: "default"},
		Spec: InstallationSpec{
			Registry:    registry,
			ImagePath:   imagePath,
			ImagePrefix: "calico-",
			CalicoNetwork: &CalicoNetwork{
				IPPools: []IPPool{{
					Name:          DefaultPoolName,
					BlockSize:     DefaultBlockSize,
					CIDR:          DefaultCIDR,
					Encapsulation: DefaultEncapsulation,
					NATOutgoing:   "Disabled",
					NodeSelector:  DefaultNodeSelector,
				}},
			},
		},
	}
}

// An ImageDigest pins an image to a digest.
type ImageDigest struct {
	Image  string `json:"image"`
	Digest string `json:"digest"`
}

// ImageSetSpec lists the pinned images.
type ImageSetSpec struct {
	Images []ImageDigest `json:"images"`
}

// ImageSet is the operator's ImageSet resource.  The operator uses it to
// pin the images of a Calico version to digests.
type ImageSet struct {
	metav1.TypeMeta `json:",inline"`
	Metadata        Metadata     `json:"metadata"`
	Spec            ImageSetSpec `json:"spec"`
}

// UpstreamName returns the upstream image name of a packaged component:
// calico-tigera-X is tigera/X and calico-X is calico/X.
func UpstreamName(component string) string {
	switch {
	case strings.HasPrefix(component, "calico-tigera-"):
		return "tigera/" + strings.TrimPrefix(component, "calico-tigera-")
	case strings.HasPrefix(component, "calico-"):
		return "calico/" + strings.TrimPrefix(component, "calico-")
	default:
		return component
	}
}

// NewImageSet returns the ImageSet for calicoVersion.  The Image of each
// entry of images is a packaged component name and is replaced with its
// upstream name.
func NewImageSet(calicoVersion string, images []ImageDigest) *ImageSet {
	is := &ImageSet{
		TypeMeta: metav1.TypeMeta{APIVersion: APIVersion, Kind: "ImageSet"},
		Metadata: Metadata{Name: "calico-" + calicoVersion},
		Spec:     ImageSetSpec{Images: []ImageDigest{}},
	}
	for _, img := range images {
		is.Spec.Images = append(is.Spec.Images, ImageDigest{Image: UpstreamName(img.Image), Digest: img.Digest})
	}
	return is
}

// APIServerSpec is empty; the operator defaults everything.
type APIServerSpec struct{}

// APIServer is the operator's APIServer resource.
type APIServer struct {
	metav1.TypeMeta `json:",inline"`
	Metadata        Metadata      `json:"metadata"`
	Spec            APIServerSpec `json:"spec"`
}

// NewAPIServer returns the default APIServer.
func NewAPIServer() *APIServer {
	return &APIServer{
		TypeMeta: metav1.TypeMeta{APIVersion: APIVersion, Kind: "APIServer"},
		Metadata: Metadata{Name: "default"},
	}
}

// Marshal renders objs as a multi-document YAML stream.
func Marshal(objs ...interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objs {
		b, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %w", err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// Apply renders objs and applies them in inst with kubectl.
func Apply(inst harness.Execer, objs ...interface{}) error {
	b, err := Marshal(objs...)
	if err != nil {
		return err
	}
	log.V(1).Infof("Applying:\n%s", b)
	if _, err := inst.Exec([]string{"kubectl", "apply", "-f", "-"}, harness.WithInput(b)); err != nil {
		return fmt.Errorf("failed to apply manifest: %w", err)
	}
	return nil
}
