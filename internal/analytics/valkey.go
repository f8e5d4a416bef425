package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

// DefaultValkeyKey is the list events are pushed onto.
const DefaultValkeyKey = "tenancy:events"

const valkeyQueueSize = 256

// ValkeyPublisher pushes JSON events onto a Valkey list for downstream
// consumers. Publish only queues the event; a background goroutine does the
// RPUSH so a slow server never holds up the caller.
type ValkeyPublisher struct {
	client  valkey.Client
	key     string
	timeout time.Duration

	queue  chan []byte
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewValkeyPublisher connects to Valkey and verifies the connection.
func NewValkeyPublisher(addr, key string) (*ValkeyPublisher, error) {
	if key == "" {
		key = DefaultValkeyKey
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pingCmd := client.B().Ping().Build()
	if err := client.Do(ctx, pingCmd).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	p := &ValkeyPublisher{
		client:  client,
		key:     key,
		timeout: 2 * time.Second,
		queue:   make(chan []byte, valkeyQueueSize),
		done:    make(chan struct{}),
	}
	go p.run()

	slog.Info("Initialized Valkey analytics publisher",
		"address", addr,
		"key", key)
	return p, nil
}

// Publish queues the event for delivery. A full queue drops the event.
func (p *ValkeyPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	select {
	case p.queue <- data:
		return nil
	default:
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("event queue is full, dropped %s for %s", event.Name(), event.ResourceID)
	}
}

// run appends queued events to the list (RPUSH keeps FIFO order).
func (p *ValkeyPublisher) run() {
	defer close(p.done)
	for data := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		cmd := p.client.B().Rpush().Key(p.key).Element(string(data)).Build()
		if err := p.client.Do(ctx, cmd).Error(); err != nil {
			slog.Warn("Failed to push event to Valkey", "key", p.key, "error", err)
		}
		cancel()
	}
}

// Close flushes queued events and releases the Valkey connection.
func (p *ValkeyPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	p.client.Close()
	return nil
}
