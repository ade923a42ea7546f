// Package notify delivers workflow transition events to outlets and editors.
// The engine calls a Sink after a transition has committed; a failing sink
// never undoes the transition.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	TextApproved      Kind = "text_approved"
	PhotoRequested    Kind = "photo_requested"
	FullyApproved     Kind = "fully_approved"
	RevisionRequested Kind = "revision_requested"
	Completed         Kind = "completed"

	SubmissionCreated Kind = "submission_created"
	PhotoSubmitted    Kind = "photo_submitted"
	Resubmitted       Kind = "resubmitted"
	TaskCreated       Kind = "task_created"
	TaskClaimed       Kind = "task_claimed"
)

// Event describes one transition. Submission fields are zero for task events.
type Event struct {
	Kind           Kind      `json:"kind"`
	At             time.Time `json:"at"`
	TaskID         int64     `json:"task_id"`
	SubmissionID   int64     `json:"submission_id,omitempty"`
	AuthorID       int64     `json:"author_id,omitempty"`
	Outlet         string    `json:"outlet,omitempty"`
	Status         string    `json:"status,omitempty"`
	RevisionTarget string    `json:"revision_target,omitempty"`
	Comment        string    `json:"comment,omitempty"`
	Link           string    `json:"link,omitempty"`
}

type Sink interface {
	Notify(ctx context.Context, evt Event) error
}

type SinkFunc func(ctx context.Context, evt Event) error

func (f SinkFunc) Notify(ctx context.Context, evt Event) error { return f(ctx, evt) }

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Fanout delivers to every sink and reports all failures together.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) Notify(_ context.Context, evt Event) error {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	fields := logrus.Fields{"kind": evt.Kind, "task_id": evt.TaskID}
	if evt.SubmissionID != 0 {
		fields["submission_id"] = evt.SubmissionID
		fields["status"] = evt.Status
	}
	if evt.Outlet != "" {
		fields["outlet"] = evt.Outlet
	}
	if evt.RevisionTarget != "" {
		fields["revision_target"] = evt.RevisionTarget
	}
	log.WithFields(fields).Info("notification")
	return nil
}

// Memory keeps delivered events in order.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Notify(_ context.Context, evt Event) error {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Kinds lists the kinds of delivered events, oldest first.
func (m *Memory) Kinds() []Kind {
	events := m.Events()
	kinds := make([]Kind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (m *Memory) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}
