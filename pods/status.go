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

package pods

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	log "k8s.io/klog/v2"
)

// PodFailedError is reported when a watched pod enters the Failed phase.
type PodFailedError struct {
	Namespace, Name string
}

func (e *PodFailedError) Error() string {
	return fmt.Sprintf("pod %s/%s failed to deploy", e.Namespace, e.Name)
}

// ImageNotFoundError is reported when a container image of a watched pod
// does not exist in its registry.
type ImageNotFoundError struct {
	Namespace, Pod, Container, Image string
}

func (e *ImageNotFoundError) Error() string {
	return fmt.Sprintf("NS:%s POD:%s CONTAINER:%s IMAGE:%s not found", e.Namespace, e.Pod, e.Container, e.Image)
}

// A Watcher watches pod and container updates while a deployment is in
// progress and cancels the deployment when a pod can never become ready.
type Watcher struct {
	ctx        context.Context
	errCh      chan error
	wstop      func()
	cancel     func()
	namespaces map[string]bool
	podStates  map[types.UID]string
	cStates    map[string]string
	ch         chan *PodStatus
	stdout     io.Writer
	warningf   func(string, ...any)

	mu               sync.Mutex
	progress         bool
	currentNamespace string
	currentPod       types.UID
}

// NewWatcher returns a Watcher of the pods in namespaces, all namespaces if
// none are given.  cancel is called when the Watcher determines a pod has
// permanently failed.  The Watcher exits when ctx is canceled, a failure is
// found, or Cleanup is called.
func NewWatcher(ctx context.Context, client kubernetes.Interface, cancel func(), namespaces ...string) (*Watcher, error) {
	if client == nil {
		return nil, fmt.Errorf("no client")
	}
	ch, stop, err := WatchPodStatus(ctx, client, "")
	if err != nil {
		return nil, err
	}
	w := newWatcher(ctx, cancel, ch, stop, namespaces...)
	go w.watch()
	return w, nil
}

func newWatcher(ctx context.Context, cancel func(), ch chan *PodStatus, stop func(), namespaces ...string) *Watcher {
	w := &Watcher{
		ctx:        ctx,
		ch:         ch,
		wstop:      stop,
		cancel:     cancel,
		stdout:     os.Stdout,
		namespaces: map[string]bool{},
		podStates:  map[types.UID]string{},
		cStates:    map[string]string{},
		warningf:   log.Warningf,
	}
	for _, ns := range namespaces {
		w.namespaces[ns] = true
	}
	// At most one error is written.
	w.errCh = make(chan error, 1)
	w.display("Displaying state changes for pods and containers")
	return w
}

// SetProgress determines if state changes are displayed while watching.
func (w *Watcher) SetProgress(value bool) {
	w.mu.Lock()
	w.progress = value
	w.mu.Unlock()
}

func (w *Watcher) stop() {
	w.mu.Lock()
	stop := w.wstop
	w.wstop = nil
	w.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Cleanup stops the Watcher.  If the Watcher found a failure, err is logged
// and the failure is returned, otherwise err is returned.
func (w *Watcher) Cleanup(err error) error {
	w.stop()
	select {
	case werr := <-w.errCh:
		if err != nil {
			w.warningf("Deploy() failed: %v", err)
		}
		w.warningf("Deployment failed: %v", werr)
		return werr
	default:
	}
	return err
}

func (w *Watcher) watch() {
	defer w.stop()
	for {
		select {
		case s, ok := <-w.ch:
			if !ok || !w.updatePod(s) {
				return
			}
		case <-w.ctx.Done():
			return
		}
	}
}

var timeNow = func() string { return time.Now().Format("15:04:05 ") }

func (w *Watcher) display(format string, v ...any) {
	w.mu.Lock()
	progress := w.progress
	w.mu.Unlock()
	if progress {
		fmt.Fprintf(w.stdout, timeNow()+format+"\n", v...)
	}
}

func (w *Watcher) fail(err error) bool {
	w.errCh <- err
	w.cancel()
	return false
}

func podState(s *PodStatus) string {
	if s.Ready {
		return "READY"
	}
	switch s.Phase {
	case PodPending:
		return "pending"
	case PodRunning:
		return "running"
	case PodSucceeded:
		return "success"
	case PodFailed:
		return "failed"
	}
	return ""
}

// updatePod records s and returns false if the watch should end.
func (w *Watcher) updatePod(s *PodStatus) bool {
	if len(w.namespaces) > 0 && !w.namespaces[s.Namespace] {
		return true
	}
	newNamespace := s.Namespace != w.currentNamespace
	newState := podState(s)

	showPodState := func(oldState, newState string) {
		if w.currentPod == s.UID && oldState == newState {
			return
		}
		w.currentPod = s.UID
		if newNamespace {
			w.currentNamespace = s.Namespace
			w.display("NS: %s", s.Namespace)
			newNamespace = false
		}
		if newState == "" {
			w.display("    POD: %s", s.Name)
		} else {
			w.display("    POD: %s is now %s", s.Name, newState)
		}
	}
	showContainer := func(c *ContainerStatus, state string) {
		id := s.Namespace + ":" + s.Name + ":" + c.Name
		if w.cStates[id] != state {
			showPodState("", "")
			w.cStates[id] = state
			w.display("         CONTAINER: %s is now %s", c.Name, state)
		}
	}

	if oldState := w.podStates[s.UID]; oldState != newState {
		showPodState(oldState, newState)
		w.podStates[s.UID] = newState
	}
	if newState == "failed" {
		return w.fail(&PodFailedError{Namespace: s.Namespace, Name: s.Name})
	}

	for _, c := range append(s.Containers, s.InitContainers...) {
		c := c
		if c.Ready {
			showContainer(&c, "READY")
			continue
		}
		fullName := fmt.Sprintf("NS:%s POD:%s CONTAINER:%s", s.Namespace, s.Name, c.Name)
		switch {
		case c.Reason == "ErrImagePull" && strings.Contains(c.Message, "code = NotFound"):
			showContainer(&c, "FAILED")
			w.warningf("%s: %s", fullName, c.Message)
			return w.fail(&ImageNotFoundError{Namespace: s.Namespace, Pod: s.Name, Container: c.Name, Image: c.Image})
		case c.Reason == "ErrImagePull", c.Reason == "ImagePullBackOff":
			showContainer(&c, c.Reason)
			log.Infof("%s in %s", fullName, c.Reason)
		default:
			showContainer(&c, c.Reason)
		}
	}
	return true
}
