package app

import (
	"sync"

	"github.com/hwos/streamrelay/internal/core"
)

// RoomCount pairs a room with its membership size after a change.
type RoomCount struct {
	Key   core.StreamKey
	Count int
}

// RoomManager tracks which chat clients are joined to which stream-key room.
// Membership is in-memory and ephemeral; nothing is persisted.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[core.StreamKey]map[core.ClientID]struct{}
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[core.StreamKey]map[core.ClientID]struct{})}
}

// Join adds the client to the room, creating it lazily, and returns the new
// member count.
func (m *RoomManager) Join(client core.ClientID, key core.StreamKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[key]
	if !ok {
		room = make(map[core.ClientID]struct{})
		m.rooms[key] = room
	}
	room[client] = struct{}{}
	return len(room)
}

// Leave removes the client from the room, pruning it when empty, and returns
// the remaining member count.
func (m *RoomManager) Leave(client core.ClientID, key core.StreamKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[key]
	if !ok {
		return 0
	}
	delete(room, client)
	if len(room) == 0 {
		delete(m.rooms, key)
		return 0
	}
	return len(room)
}

// Members returns a snapshot of the room's membership.
func (m *RoomManager) Members(key core.StreamKey) []core.ClientID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room := m.rooms[key]
	out := make([]core.ClientID, 0, len(room))
	for client := range room {
		out = append(out, client)
	}
	return out
}

func (m *RoomManager) Count(key core.StreamKey) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[key])
}

// DropClient removes the client from every room it joined and returns the
// affected rooms with their remaining counts, so the caller can notify them.
func (m *RoomManager) DropClient(client core.ClientID) []RoomCount {
	m.mu.Lock()
	defer m.mu.Unlock()
	var affected []RoomCount
	for key, room := range m.rooms {
		if _, ok := room[client]; !ok {
			continue
		}
		delete(room, client)
		affected = append(affected, RoomCount{Key: key, Count: len(room)})
		if len(room) == 0 {
			delete(m.rooms, key)
		}
	}
	return affected
}
