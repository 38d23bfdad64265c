// Package domain contains core concepts of the relay.
// This file defines Message events and related rules.
// Messages are immutable once persisted and ordered within their room
// by creation time, ties broken by insertion order into the store.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event.
type Message struct {
	ID         uuid.UUID // server-assigned identifier
	Room       RoomID
	SenderID   string
	SenderName string
	Content    string
	CreatedAt  time.Time // server-assigned ordering key
}
