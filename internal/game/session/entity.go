// Package session tracks connected players: the entity each one controls and
// the bridge that carries their outbound notifications.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultBridgeBuffer is the event buffer used when none is given.
const DefaultBridgeBuffer = 64

// Bridge routes pushed event bytes to a Go channel, bridging the notification
// publisher to the player's transport stream.
type Bridge struct {
	entityID string
	events   chan []byte
	mu       sync.Mutex
	closed   bool
	dropped  atomic.Uint64
}

// NewBridge creates a Bridge for the given entity.
//
// Precondition: entityID must be non-empty.
// Postcondition: Returns a Bridge with an open events channel.
func NewBridge(entityID string, bufferSize int) *Bridge {
	if bufferSize <= 0 {
		bufferSize = DefaultBridgeBuffer
	}
	return &Bridge{
		entityID: entityID,
		events:   make(chan []byte, bufferSize),
	}
}

// EntityID returns the entity the bridge serves.
func (b *Bridge) EntityID() string {
	return b.entityID
}

// Push enqueues data without blocking.
//
// Postcondition: data is enqueued, or an error is returned if the bridge is
// closed or its buffer is full. A full buffer counts as a drop.
func (b *Bridge) Push(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("bridge %s is closed", b.entityID)
	}
	select {
	case b.events <- data:
		return nil
	default:
		b.dropped.Add(1)
		return fmt.Errorf("bridge %s event buffer full", b.entityID)
	}
}

// Events returns the read-only events channel. It is closed by Close.
func (b *Bridge) Events() <-chan []byte {
	return b.events
}

// Dropped reports how many pushes were rejected because the buffer was full.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Close marks the bridge closed and closes the events channel. It is idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.events)
	}
	return nil
}

// IsClosed reports whether the bridge has been closed.
func (b *Bridge) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
