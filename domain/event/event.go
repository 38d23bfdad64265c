package event

import (
	"edu-relay/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessageBroadcast is emitted once per successfully persisted message and
// fanned out to every session currently joined to the room.
type MessageBroadcast struct {
	Message domain.Message
}

func (e MessageBroadcast) RoomID() domain.RoomID {
	return e.Message.Room
}

// HistoryLoaded carries the one-time replay batch delivered to a joining
// session only. Messages are ordered oldest-to-newest.
type HistoryLoaded struct {
	Room     domain.RoomID
	Messages []domain.Message
}

func (e HistoryLoaded) RoomID() domain.RoomID {
	return e.Room
}

// ReplayFailed tells the joining session its history read did not complete.
// Live delivery proceeds regardless.
type ReplayFailed struct {
	Room   domain.RoomID
	Reason string
}

func (e ReplayFailed) RoomID() domain.RoomID {
	return e.Room
}

// MessageIDs extracts the identifiers of a replay batch, used to
// deduplicate across the join/replay boundary.
func (e HistoryLoaded) MessageIDs() map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(e.Messages))
	for _, m := range e.Messages {
		ids[m.ID] = struct{}{}
	}
	return ids
}
