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

package events

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"k8s.io/client-go/kubernetes"
	log "k8s.io/klog/v2"
)

// fatalMessages are event messages after which the deployment can not
// succeed.
var fatalMessages = []string{
	"Insufficient memory",
	"Insufficient cpu",
	"exceeded quota",
}

// FailedError is reported for an event with a fatal message.
type FailedError struct {
	Event *EventStatus
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s %s failed due to %s: %s", e.Event.Namespace, e.Event.Object, e.Event.Reason, e.Event.Message)
}

// A Watcher watches warning events while a deployment is in progress and
// cancels the deployment on an event it can not recover from.
type Watcher struct {
	ctx        context.Context
	errCh      chan error
	wstop      func()
	cancel     func()
	namespaces map[string]bool
	ch         chan *EventStatus
	stdout     io.Writer
	warningf   func(string, ...any)

	mu       sync.Mutex
	progress bool
}

// NewWatcher returns a Watcher of the events in namespaces, all namespaces
// if none are given.  cancel is called when a fatal event is seen.
func NewWatcher(ctx context.Context, client kubernetes.Interface, cancel func(), namespaces ...string) (*Watcher, error) {
	ch, stop, err := WatchEventStatus(ctx, client, "")
	if err != nil {
		return nil, err
	}
	w := newWatcher(ctx, cancel, ch, stop, namespaces...)
	go w.watch()
	return w, nil
}

func newWatcher(ctx context.Context, cancel func(), ch chan *EventStatus, stop func(), namespaces ...string) *Watcher {
	w := &Watcher{
		ctx:        ctx,
		ch:         ch,
		wstop:      stop,
		cancel:     cancel,
		stdout:     os.Stdout,
		namespaces: map[string]bool{},
		warningf:   log.Warningf,
		errCh:      make(chan error, 1),
	}
	for _, ns := range namespaces {
		w.namespaces[ns] = true
	}
	return w
}

// SetProgress determines if warning events are displayed while watching.
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

// Cleanup stops the Watcher.  If the Watcher saw a fatal event, err is
// logged and the failure is returned, otherwise err is returned.
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
			if !ok || !w.checkEvent(s) {
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

// checkEvent records s and returns false if the watch should end.
func (w *Watcher) checkEvent(s *EventStatus) bool {
	if s.Type != EventWarning || (len(w.namespaces) > 0 && !w.namespaces[s.Namespace]) {
		return true
	}
	w.display("NS: %s %s %s: %s", s.Namespace, s.Object, s.Reason, s.Message)
	for _, m := range fatalMessages {
		if strings.Contains(s.Message, m) {
			w.errCh <- &FailedError{Event: s}
			w.cancel()
			return false
		}
	}
	return true
}
