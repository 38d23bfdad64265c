// Package projection builds local projections from observed events.
// Handles delivery cursors used only for diagnostics, never for ordering
// guarantees. Does not emit events or interact with the transport directly.
package projection

import (
	"context"
	"sync"
	"time"

	"edu-relay/domain"
	"edu-relay/domain/event"

	"github.com/google/uuid"
)

// Cursor records how far delivery has progressed in one room.
type Cursor struct {
	Delivered uint64
	LastID    uuid.UUID
	LastAt    time.Time
}

// Timeline is a permanent fan-out sink maintaining a per-room delivery
// cursor, advanced once per broadcast.
type Timeline struct {
	mu      sync.Mutex
	cursors map[domain.RoomID]Cursor
}

func NewTimeline() *Timeline {
	return &Timeline{cursors: make(map[domain.RoomID]Cursor)}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	broadcast, ok := e.(event.MessageBroadcast)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cursor := t.cursors[broadcast.Message.Room]
	cursor.Delivered++
	cursor.LastID = broadcast.Message.ID
	cursor.LastAt = broadcast.Message.CreatedAt
	t.cursors[broadcast.Message.Room] = cursor
	return nil
}

// CursorFor returns the current cursor for a room, zero-valued when the room
// has seen no broadcast yet.
func (t *Timeline) CursorFor(roomID domain.RoomID) Cursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursors[roomID]
}
