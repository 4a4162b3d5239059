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

package workload

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	log "k8s.io/klog/v2"
)

// ClientChecker checks workloads through the Kubernetes API.
type ClientChecker struct {
	Client kubernetes.Interface
}

// NewClientChecker returns a ClientChecker using c.
func NewClientChecker(c kubernetes.Interface) *ClientChecker {
	return &ClientChecker{Client: c}
}

// Check returns nil if the workload named by sel is ready.
func (c *ClientChecker) Check(ctx context.Context, sel Selector) error {
	switch sel.Kind {
	case Deployment:
		d, err := c.Client.AppsV1().Deployments(sel.Namespace).Get(ctx, sel.Name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", sel, err)
		}
		return DeploymentReady(d)
	case DaemonSet:
		ds, err := c.Client.AppsV1().DaemonSets(sel.Namespace).Get(ctx, sel.Name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", sel, err)
		}
		return DaemonSetReady(ds)
	default:
		return unsupported(sel)
	}
}

// Wait watches the workload named by sel until it is ready or ctx is done.
// Unlike polling with Check, Wait has no attempt budget.
func (c *ClientChecker) Wait(ctx context.Context, sel Selector) error {
	log.Infof("Waiting on %s to be healthy", sel)
	opts := metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("metadata.name", sel.Name).String(),
	}
	var ready func(obj interface{}) (bool, error)
	var start func() (watch.Interface, error)
	switch sel.Kind {
	case Deployment:
		start = func() (watch.Interface, error) {
			return c.Client.AppsV1().Deployments(sel.Namespace).Watch(ctx, opts)
		}
		ready = func(obj interface{}) (bool, error) {
			d, ok := obj.(*appsv1.Deployment)
			if !ok {
				return false, fmt.Errorf("invalid object type: %T", obj)
			}
			return DeploymentReady(d) == nil, nil
		}
	case DaemonSet:
		start = func() (watch.Interface, error) {
			return c.Client.AppsV1().DaemonSets(sel.Namespace).Watch(ctx, opts)
		}
		ready = func(obj interface{}) (bool, error) {
			ds, ok := obj.(*appsv1.DaemonSet)
			if !ok {
				return false, fmt.Errorf("invalid object type: %T", obj)
			}
			return DaemonSetReady(ds) == nil, nil
		}
	default:
		return unsupported(sel)
	}
	w, err := start()
	if err != nil {
		return fmt.Errorf("failed to create watcher for %s: %w", sel, err)
	}
	defer w.Stop()
	ch := w.ResultChan()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled before %s healthy", sel)
		case e, ok := <-ch:
			if !ok {
				return fmt.Errorf("watch channel closed before %s healthy", sel)
			}
			ok, err := ready(e.Object)
			if err != nil {
				return err
			}
			if ok {
				log.Infof("%s healthy", sel)
				return nil
			}
		}
	}
}
