package runtime

import (
	"sync"

	"edu-relay/contract"
	"edu-relay/domain"
)

// Registry maintains, for each room, the set of currently joined sessions.
// Each membership carries its own sink because a session joining a room gets
// a dedicated replay gate for that room.
type Registry struct {
	mu          sync.RWMutex
	RoomMembers map[domain.RoomID]map[string]contract.EventSink
	Memberships map[string]map[domain.RoomID]struct{} // session -> joined rooms
}

func NewRegistry() *Registry {
	return &Registry{
		RoomMembers: make(map[domain.RoomID]map[string]contract.EventSink),
		Memberships: make(map[string]map[domain.RoomID]struct{}),
	}
}

// SinksForRoom returns a copy-on-read snapshot of the sinks currently joined
// to a room, so a fan-out in progress is never corrupted by concurrent
// membership changes. Returns nil if the room doesn't exist or has no members.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[roomID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for _, sink := range members {
		sinks = append(sinks, sink)
	}
	return sinks
}

// Subscribe adds a session to a room's membership set, initializing the room
// entry on the fly. It is idempotent: joining a room the session is already a
// member of leaves the set unchanged and reports false, so the caller never
// wires a second delivery path for the same membership.
func (r *Registry) Subscribe(sessionID string, roomID domain.RoomID, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.RoomMembers[roomID]; !ok {
		r.RoomMembers[roomID] = make(map[string]contract.EventSink)
	}
	if _, joined := r.RoomMembers[roomID][sessionID]; joined {
		return false
	}
	r.RoomMembers[roomID][sessionID] = sink

	if _, ok := r.Memberships[sessionID]; !ok {
		r.Memberships[sessionID] = make(map[domain.RoomID]struct{})
	}
	r.Memberships[sessionID][roomID] = struct{}{}
	return true
}

// Unsubscribe removes a session from one room. It cleans up empty sets
// to prevent memory leaks over time; room metadata kept elsewhere is
// unaffected.
func (r *Registry) Unsubscribe(sessionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(sessionID, roomID)
}

// UnsubscribeAll disconnects a session: every room membership it holds is
// removed so no dangling references remain.
func (r *Registry) UnsubscribeAll(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.Memberships[sessionID] {
		r.unsubscribeLocked(sessionID, roomID)
	}
}

func (r *Registry) unsubscribeLocked(sessionID string, roomID domain.RoomID) {
	if members, ok := r.RoomMembers[roomID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.RoomMembers, roomID)
		}
	}
	if rooms, ok := r.Memberships[sessionID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.Memberships, sessionID)
		}
	}
}
