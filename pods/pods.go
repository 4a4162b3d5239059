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

// Package pods reports the status of pods in a cluster, either as a snapshot
// or as a stream of changes.
package pods

import (
	"context"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
)

// A PodStatus represents the status of a single Pod.
type PodStatus struct {
	Name           string
	UID            types.UID
	Namespace      string
	Phase          corev1.PodPhase
	Ready          bool // all containers are ready
	Containers     []ContainerStatus
	InitContainers []ContainerStatus
}

func (p *PodStatus) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "{Name: %q", p.Name)
	if p.Namespace != "" {
		fmt.Fprintf(&buf, ", Namespace: %q", p.Namespace)
	}
	if p.Phase != "" {
		fmt.Fprintf(&buf, ", Phase: %q", p.Phase)
	}
	if p.Ready {
		fmt.Fprint(&buf, ", Ready")
	}
	for _, c := range p.Containers {
		fmt.Fprintf(&buf, ", %s", c.String())
	}
	fmt.Fprint(&buf, "}")
	return buf.String()
}

// Equal reports whether p and q describe the same state of the same pod.
func (p *PodStatus) Equal(q *PodStatus) bool {
	if p.UID != q.UID ||
		p.Name != q.Name ||
		p.Namespace != q.Namespace ||
		p.Phase != q.Phase ||
		p.Ready != q.Ready ||
		len(p.Containers) != len(q.Containers) ||
		len(p.InitContainers) != len(q.InitContainers) {
		return false
	}
	for i := range p.Containers {
		if p.Containers[i] != q.Containers[i] {
			return false
		}
	}
	for i := range p.InitContainers {
		if p.InitContainers[i] != q.InitContainers[i] {
			return false
		}
	}
	return true
}

// Values for Phase.
const (
	PodPending   = corev1.PodPending
	PodRunning   = corev1.PodRunning
	PodSucceeded = corev1.PodSucceeded
	PodFailed    = corev1.PodFailed
)

// A ContainerStatus contains the status of a single container in the pod.
type ContainerStatus struct {
	Name    string
	Image   string // requested image
	Ready   bool
	Reason  string // if not empty, the reason it isn't ready
	Message string
}

func (c ContainerStatus) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "{Name: %q", c.Name)
	if c.Image != "" {
		fmt.Fprintf(&buf, ", Image: %q", c.Image)
	}
	if c.Ready {
		fmt.Fprint(&buf, ", Ready")
	}
	if c.Reason != "" {
		fmt.Fprintf(&buf, ", Reason: %q", c.Reason)
	}
	if c.Message != "" {
		fmt.Fprintf(&buf, ", Message: %q", c.Message)
	}
	fmt.Fprint(&buf, "}")
	return buf.String()
}

// GetPodStatus returns the status of the pods in namespace, all namespaces
// if empty.
func GetPodStatus(ctx context.Context, client kubernetes.Interface, namespace string) ([]*PodStatus, error) {
	pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	var statuses []*PodStatus
	for i := range pods.Items {
		statuses = append(statuses, PodToStatus(&pods.Items[i]))
	}
	return statuses, nil
}

// WatchPodStatus returns a channel on which changes to the pods in namespace
// are written, and a function that stops the watch.  The channel is closed
// when the watch ends.
func WatchPodStatus(ctx context.Context, client kubernetes.Interface, namespace string) (chan *PodStatus, func(), error) {
	w, err := client.CoreV1().Pods(namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, nil, err
	}
	kch := w.ResultChan()
	ch := make(chan *PodStatus, 2)
	go func() {
		defer close(ch)
		// seen drops updates that do not change the status.
		seen := map[types.UID]*PodStatus{}
		for event := range kch {
			pod, ok := event.Object.(*corev1.Pod)
			if !ok {
				continue
			}
			s := PodToStatus(pod)
			if old, ok := seen[s.UID]; ok && s.Equal(old) {
				continue
			}
			seen[s.UID] = s
			ch <- s
		}
	}()
	return ch, w.Stop, nil
}

func containerStatuses(css []corev1.ContainerStatus) []ContainerStatus {
	var out []ContainerStatus
	for _, cs := range css {
		c := ContainerStatus{
			Name:  cs.Name,
			Ready: cs.Ready,
			Image: cs.Image,
		}
		if w := cs.State.Waiting; w != nil {
			c.Reason = w.Reason
			c.Message = w.Message
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PodToStatus returns the status of pod.
func PodToStatus(pod *corev1.Pod) *PodStatus {
	s := &PodStatus{
		Name:           pod.Name,
		Namespace:      pod.Namespace,
		UID:            pod.UID,
		Phase:          pod.Status.Phase,
		Containers:     containerStatuses(pod.Status.ContainerStatuses),
		InitContainers: containerStatuses(pod.Status.InitContainerStatuses),
	}
	s.Ready = len(s.Containers) > 0
	for _, c := range s.Containers {
		if !c.Ready {
			s.Ready = false
			break
		}
	}
	return s
}
