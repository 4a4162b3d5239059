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

// Package events reports the Kubernetes events of a cluster as they happen.
package events

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
)

// An EventStatus is a single event.
type EventStatus struct {
	Name      string
	UID       types.UID
	Namespace string
	Type      string // Normal or Warning
	Reason    string
	Message   string
	// Object is the kind/name of the object the event is about.
	Object string
}

func (e *EventStatus) String() string {
	return fmt.Sprintf("{Name: %q, Namespace: %q, Type: %q, Reason: %q, Object: %q}", e.Name, e.Namespace, e.Type, e.Reason, e.Object)
}

// Values for Type.
const (
	EventNormal  = corev1.EventTypeNormal
	EventWarning = corev1.EventTypeWarning
)

// GetEventStatus returns the events in namespace, all namespaces if empty.
func GetEventStatus(ctx context.Context, client kubernetes.Interface, namespace string) ([]*EventStatus, error) {
	events, err := client.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	var statuses []*EventStatus
	for i := range events.Items {
		statuses = append(statuses, EventToStatus(&events.Items[i]))
	}
	return statuses, nil
}

// WatchEventStatus returns a channel on which events in namespace created
// after the call are written, and a function that stops the watch.
func WatchEventStatus(ctx context.Context, client kubernetes.Interface, namespace string) (chan *EventStatus, func(), error) {
	if client == nil {
		return nil, nil, errors.New("WatchEventStatus: nil client")
	}
	w, err := client.CoreV1().Events(namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, nil, err
	}
	kch := w.ResultChan()
	ch := make(chan *EventStatus, 2)
	start := metav1.Now()
	go func() {
		defer close(ch)
		for event := range kch {
			e, ok := event.Object.(*corev1.Event)
			if !ok || e.CreationTimestamp.Before(&start) {
				continue
			}
			ch <- EventToStatus(e)
		}
	}()
	return ch, w.Stop, nil
}

// EventToStatus returns the status of event.
func EventToStatus(event *corev1.Event) *EventStatus {
	s := &EventStatus{
		Name:      event.Name,
		Namespace: event.Namespace,
		UID:       event.UID,
		Type:      event.Type,
		Reason:    event.Reason,
		Message:   event.Message,
	}
	if o := event.InvolvedObject; o.Name != "" {
		s.Object = o.Kind + "/" + o.Name
	}
	return s
}
