package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	kfake "k8s.io/client-go/kubernetes/fake"
)

func newEvent(ns, name, typ, reason, msg string) *corev1.Event {
	return &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         ns,
			UID:               types.UID("uid-" + name),
			CreationTimestamp: metav1.NewTime(time.Now().Add(time.Hour)),
		},
		InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "calico-node-x7p2q"},
		Type:           typ,
		Reason:         reason,
		Message:        msg,
	}
}

func TestEventToStatus(t *testing.T) {
	e := newEvent("calico-system", "calico-node.1", EventWarning, "FailedScheduling", "0/1 nodes are available: 1 Insufficient cpu.")
	want := &EventStatus{
		Name:      "calico-node.1",
		UID:       "uid-calico-node.1",
		Namespace: "calico-system",
		Type:      EventWarning,
		Reason:    "FailedScheduling",
		Message:   "0/1 nodes are available: 1 Insufficient cpu.",
		Object:    "Pod/calico-node-x7p2q",
	}
	if s := cmp.Diff(want, EventToStatus(e)); s != "" {
		t.Errorf("EventToStatus() unexpected diff (-want +got):\n%s", s)
	}
	e.InvolvedObject = corev1.ObjectReference{}
	if got := EventToStatus(e).Object; got != "" {
		t.Errorf("EventToStatus() got object %q, want none", got)
	}
}

func TestGetEventStatus(t *testing.T) {
	client := kfake.NewSimpleClientset(
		newEvent("calico-system", "a", EventNormal, "Scheduled", "assigned"),
		newEvent("kube-system", "b", EventNormal, "Scheduled", "assigned"),
	)
	got, err := GetEventStatus(context.Background(), client, "calico-system")
	if err != nil {
		t.Fatalf("GetEventStatus() failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "a" {
		t.Errorf("GetEventStatus() got %v, want event a", got)
	}
}

func TestWatchEventStatus(t *testing.T) {
	if _, _, err := WatchEventStatus(context.Background(), nil, ""); err == nil {
		t.Fatalf("WatchEventStatus(nil) got nil error")
	}
	ctx := context.Background()
	client := kfake.NewSimpleClientset()
	ch, stop, err := WatchEventStatus(ctx, client, "")
	if err != nil {
		t.Fatalf("WatchEventStatus() failed: %v", err)
	}
	defer stop()
	old := newEvent("calico-system", "old", EventNormal, "Pulled", "pulled")
	old.CreationTimestamp = metav1.NewTime(time.Now().Add(-time.Hour))
	if _, err := client.CoreV1().Events("calico-system").Create(ctx, old, metav1.CreateOptions{}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if _, err := client.CoreV1().Events("calico-system").Create(ctx, newEvent("calico-system", "new", EventWarning, "BackOff", "back-off"), metav1.CreateOptions{}); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	select {
	case s := <-ch:
		if s.Name != "new" {
			t.Errorf("WatchEventStatus() got %s, want event new", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("WatchEventStatus() timed out")
	}
}
