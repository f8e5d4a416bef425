package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryPublisher buffers events in process. Used by single-node setups
// that consume events locally.
type MemoryPublisher struct {
	events chan Event
	mu     sync.RWMutex
	closed bool
}

// NewMemoryPublisher creates a new in-memory publisher
func NewMemoryPublisher(bufferSize int) *MemoryPublisher {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	slog.Info("Initialized in-memory analytics publisher", "buffer_size", bufferSize)
	return &MemoryPublisher{events: make(chan Event, bufferSize)}
}

// Publish buffers the event. It never waits: a full buffer drops the event.
func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	select {
	case p.events <- event:
		slog.Debug("Event buffered", "event", event.Name(), "resource_id", event.ResourceID)
		return nil
	default:
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("event buffer is full, dropped %s for %s", event.Name(), event.ResourceID)
	}
}

// Events returns the channel events are delivered on.
func (p *MemoryPublisher) Events() <-chan Event {
	return p.events
}

// Close stops accepting events and closes the channel.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	return nil
}
