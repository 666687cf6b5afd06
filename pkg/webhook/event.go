// Package webhook delivers repository events to configured HTTP endpoints.
package webhook

import (
	"encoding"
	"errors"
)

// Event is a webhook event.
type Event int

const (
	// EventPush is a push event.
	EventPush Event = 1

	// EventRepository is a repository create or delete event.
	EventRepository Event = 2

	// EventWorkflowRun is a workflow trigger event.
	EventWorkflowRun Event = 3
)

var eventStrings = map[Event]string{
	EventPush:        "push",
	EventRepository:  "repository",
	EventWorkflowRun: "workflow_run",
}

// String returns the string representation of the event.
func (e Event) String() string {
	return eventStrings[e]
}

var stringEvent = map[string]Event{
	"push":         EventPush,
	"repository":   EventRepository,
	"workflow_run": EventWorkflowRun,
}

// ErrInvalidEvent is returned when the event is invalid.
var ErrInvalidEvent = errors.New("invalid event")

// ParseEvent parses an event string and returns the event.
func ParseEvent(s string) (Event, error) {
	e, ok := stringEvent[s]
	if !ok {
		return -1, ErrInvalidEvent
	}

	return e, nil
}

var _ encoding.TextMarshaler = Event(0)
var _ encoding.TextUnmarshaler = (*Event)(nil)

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Event) UnmarshalText(text []byte) error {
	event, err := ParseEvent(string(text))
	if err != nil {
		return err
	}

	*e = event
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (e Event) MarshalText() (text []byte, err error) {
	s := e.String()
	if s == "" {
		return nil, ErrInvalidEvent
	}

	return []byte(s), nil
}
