// Package analytics publishes entity change events. Publication is
// best-effort: callers use the Send helpers, which log failures instead of
// returning them.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType names what happened to the entity.
type EventType string

const (
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is one published change.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	Resource   string         `json:"resource"` // e.g. "workspace"
	ResourceID uuid.UUID      `json:"resource_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Name returns the dotted event name, e.g. "workspace.updated".
func (e Event) Name() string {
	return e.Resource + "." + string(e.Type)
}

// Publisher transports events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

func newEvent(t EventType, resource string, id uuid.UUID, props map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Resource:   resource,
		ResourceID: id,
		Properties: props,
		Timestamp:  time.Now().UTC(),
	}
}

// SendUpdateEvent publishes an update event and logs any failure.
func SendUpdateEvent(ctx context.Context, p Publisher, resource string, id uuid.UUID, props map[string]any) {
	notify(ctx, p, newEvent(EventUpdated, resource, id, props))
}

// SendDeleteEvent publishes a delete event and logs any failure.
func SendDeleteEvent(ctx context.Context, p Publisher, resource string, id uuid.UUID, props map[string]any) {
	notify(ctx, p, newEvent(EventDeleted, resource, id, props))
}

func notify(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish analytics event",
			"event", event.Name(),
			"resource_id", event.ResourceID,
			"error", err)
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// LogPublisher writes events to the structured log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	slog.Info("Analytics event",
		"event", event.Name(),
		"resource_id", event.ResourceID,
		"properties", event.Properties)
	return nil
}

func (LogPublisher) Close() error { return nil }
