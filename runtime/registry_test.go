package runtime

import (
	"context"
	"testing"

	"edu-relay/domain"
	"edu-relay/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Room_One_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()
	roomID := domain.RoomID("go-101")
	sink := Sink{name: "a"}

	// Given no session is connected
	// And no room has members
	req.Empty(registry.Memberships)
	req.Empty(registry.RoomMembers)

	// When a session joins a room
	added := registry.Subscribe(sessionID, roomID, sink)

	// Then
	req.True(added)
	req.Len(registry.Memberships, 1)
	req.Contains(registry.Memberships[sessionID], roomID)

	req.Len(registry.RoomMembers, 1)
	req.Contains(registry.RoomMembers[roomID], sessionID)

	req.Len(registry.SinksForRoom(roomID), 1)
	req.Contains(registry.SinksForRoom(roomID), sink)
}

func TestRegistry_Subscribe_One_Room_Multiple_Sessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID1 := uuid.NewString()
	sessionID2 := uuid.NewString()
	roomID := domain.RoomID("go-101")
	sink1 := Sink{name: "a"}
	sink2 := Sink{name: "b"}

	// When sessions join a room
	registry.Subscribe(sessionID1, roomID, sink1)
	registry.Subscribe(sessionID2, roomID, sink2)

	// Then
	req.Len(registry.Memberships, 2)
	req.Len(registry.RoomMembers[roomID], 2)

	req.Len(registry.SinksForRoom(roomID), 2)
	req.Contains(registry.SinksForRoom(roomID), sink1)
	req.Contains(registry.SinksForRoom(roomID), sink2)
}

func TestRegistry_Subscribe_Twice_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()
	roomID := domain.RoomID("go-101")

	// Given a session already joined the room
	req.True(registry.Subscribe(sessionID, roomID, Sink{name: "first"}))

	// When the same session joins the same room again
	added := registry.Subscribe(sessionID, roomID, Sink{name: "second"})

	// Then the existing membership is untouched
	req.False(added)
	req.Len(registry.RoomMembers[roomID], 1)
	req.Contains(registry.SinksForRoom(roomID), Sink{name: "first"})
}

func TestRegistry_Unsubscribe_One_Room_One_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()
	roomID := domain.RoomID("go-101")
	sink := Sink{name: "a"}

	// Given a session joined a room
	registry.Subscribe(sessionID, roomID, sink)

	// When the session leaves the room
	registry.Unsubscribe(sessionID, roomID)

	// Then no membership is left
	// And the empty member set is reclaimed
	req.Empty(registry.Memberships)
	req.Empty(registry.RoomMembers)

	// And no sink is connected to the room
	req.Nil(registry.SinksForRoom(roomID))
}

func TestRegistry_Unsubscribe_One_Room_Multiple_Sessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID1 := uuid.NewString()
	sessionID2 := uuid.NewString()
	roomID := domain.RoomID("go-101")
	sink1 := Sink{name: "a"}
	sink2 := Sink{name: "b"}

	// Given sessions joined a room
	registry.Subscribe(sessionID1, roomID, sink1)
	registry.Subscribe(sessionID2, roomID, sink2)

	// When one session leaves the room
	registry.Unsubscribe(sessionID1, roomID)

	// Then only one membership is left
	req.Len(registry.Memberships, 1)
	req.Len(registry.RoomMembers[roomID], 1)

	req.Len(registry.SinksForRoom(roomID), 1)
	req.Contains(registry.SinksForRoom(roomID), sink2)
}

func TestRegistry_UnsubscribeAll_Removes_Every_Membership(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()
	otherSessionID := uuid.NewString()
	roomID1 := domain.RoomID("go-101")
	roomID2 := domain.RoomID("maths-2")

	// Given a session joined two rooms
	// And another session joined one of them
	registry.Subscribe(sessionID, roomID1, Sink{name: "a"})
	registry.Subscribe(sessionID, roomID2, Sink{name: "a"})
	registry.Subscribe(otherSessionID, roomID1, Sink{name: "b"})

	// When the session disconnects
	registry.UnsubscribeAll(sessionID)

	// Then every membership it held is gone
	req.NotContains(registry.Memberships, sessionID)
	req.Nil(registry.SinksForRoom(roomID2))

	// And the other session is untouched
	req.Len(registry.SinksForRoom(roomID1), 1)
	req.Contains(registry.SinksForRoom(roomID1), Sink{name: "b"})
}
