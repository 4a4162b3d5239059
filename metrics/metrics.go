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

// Package metrics reports verification runs to a PubSub topic.
package metrics

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/pborman/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	log "k8s.io/klog/v2"
)

const (
	defaultProjectID = "calicotest"
	defaultTopicID   = "calicotest-runs"
)

// Kinds of runs.
const (
	RunDeploy      = "deploy"
	RunSanity      = "sanity"
	RunIntegration = "integration"
)

// A Run describes what is being verified.
type Run struct {
	// Kind is one of RunDeploy, RunSanity or RunIntegration.
	Kind string
	// Target is the component or installation variant under test.
	Target          string
	Harness         string
	CalicoVersion   string
	OperatorVersion string
	Platform        string
}

func (r *Run) fields() map[string]interface{} {
	f := map[string]interface{}{"kind": r.Kind}
	for k, v := range map[string]string{
		"target":          r.Target,
		"harness":         r.Harness,
		"calicoVersion":   r.CalicoVersion,
		"operatorVersion": r.OperatorVersion,
		"platform":        r.Platform,
	} {
		if v != "" {
			f[k] = v
		}
	}
	return f
}

// An Event is the message published for the start or end of a run.  Start
// and end events of the same run share a UUID.
type Event struct {
	UUID      string
	Timestamp *timestamppb.Timestamp
	// Start is set on the start event, End on the end event.
	Start *Run
	End   *RunEnd
}

// RunEnd is the result of a run.
type RunEnd struct {
	Error string
}

// Struct returns e as the protobuf Struct that is published.  The timestamp
// is written in RFC 3339 form.
func (e *Event) Struct() (*structpb.Struct, error) {
	if err := e.Timestamp.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid timestamp for event %s: %w", e.UUID, err)
	}
	f := map[string]interface{}{
		"uuid":      e.UUID,
		"timestamp": e.Timestamp.AsTime().Format(time.RFC3339Nano),
	}
	if e.Start != nil {
		f["start"] = e.Start.fields()
	}
	if e.End != nil {
		end := map[string]interface{}{}
		if e.End.Error != "" {
			end["error"] = e.End.Error
		}
		f["end"] = end
	}
	return structpb.NewStruct(f)
}

// Reporter publishes run events using PubSub.
type Reporter struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewReporter creates a new Reporter with a PubSub client for the given
// project and topic.  The topic must exist.
func NewReporter(ctx context.Context, projectID, topicID string) (*Reporter, error) {
	if projectID == "" {
		projectID = defaultProjectID
	}
	if topicID == "" {
		topicID = defaultTopicID
	}
	c, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create new pubsub client: %w", err)
	}
	t := c.Topic(topicID)
	ok, err := t.Exists(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to check if topic %q exists: %w", topicID, err)
	}
	if !ok {
		c.Close()
		return nil, fmt.Errorf("topic %q does not exist in project %q", topicID, projectID)
	}
	return &Reporter{client: c, topic: t}, nil
}

// Close stops the topic and closes the PubSub client.
func (r *Reporter) Close() error {
	r.topic.Stop()
	return r.client.Close()
}

func (r *Reporter) publishEvent(ctx context.Context, event *Event) error {
	st, err := event.Struct()
	if err != nil {
		return err
	}
	msg, err := proto.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.UUID, err)
	}
	id, err := r.topic.Publish(ctx, &pubsub.Message{
		Data:       msg,
		Attributes: map[string]string{"uuid": event.UUID},
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	log.V(2).Infof("Published event %s with message ID: %s", event.UUID, id)
	return nil
}

// ReportRunStart reports that run has started and returns the UUID of the
// reported event.
func (r *Reporter) ReportRunStart(ctx context.Context, run *Run) (string, error) {
	event := newEvent(uuid.New())
	event.Start = run
	if err := r.publishEvent(ctx, event); err != nil {
		return "", fmt.Errorf("failed to report %s start event with ID %s: %w", run.Kind, event.UUID, err)
	}
	log.V(1).Infof("Reported %s start event with ID %s", run.Kind, event.UUID)
	return event.UUID, nil
}

// ReportRunEnd reports that the run with the given id ended with runErr.
func (r *Reporter) ReportRunEnd(ctx context.Context, id string, runErr error) error {
	event := newEvent(id)
	event.End = &RunEnd{}
	if runErr != nil {
		event.End.Error = runErr.Error()
	}
	if err := r.publishEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to report end event with ID %s: %w", event.UUID, err)
	}
	log.V(1).Infof("Reported end event with ID %s", event.UUID)
	return nil
}

// Options select where runs are reported.
type Options struct {
	Enabled   bool
	ProjectID string
	TopicID   string
}

// newReporter is replaced in tests.
var newReporter = NewReporter

// Start reports the start of run when reporting is enabled and returns the
// function that reports its end.  Reporting failures are only logged.
func Start(ctx context.Context, o Options, run *Run) func(error) {
	if !o.Enabled {
		return func(error) {}
	}
	r, err := newReporter(ctx, o.ProjectID, o.TopicID)
	if err != nil {
		log.Warningf("Unable to create metrics reporter: %v", err)
		return func(error) {}
	}
	id, err := r.ReportRunStart(ctx, run)
	if err != nil {
		log.Warningf("Unable to report %s start event: %v", run.Kind, err)
		return func(error) { r.Close() }
	}
	return func(rerr error) {
		defer r.Close()
		if err := r.ReportRunEnd(ctx, id, rerr); err != nil {
			log.Warningf("Unable to report %s end event: %v", run.Kind, err)
		}
	}
}

func newEvent(id string) *Event {
	if id == "" {
		id = uuid.New()
	}
	return &Event{
		UUID:      id,
		Timestamp: timestamppb.Now(),
	}
}
