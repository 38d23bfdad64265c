package domain

import "time"

// RoomID is an opaque room identifier, e.g. "physics-101".
type RoomID string

// Room groups an ordered message history and a set of connected sessions.
// A Room is created implicitly by the first join and lives for the
// process lifetime.
type Room struct {
	ID        RoomID
	Name      string
	CreatedAt time.Time
}

func NewRoom(id RoomID, name string) *Room {
	if name == "" {
		name = string(id)
	}
	return &Room{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}
