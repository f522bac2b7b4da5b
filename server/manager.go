package server

import (
	"sort"
	"sync"
)

const DefaultRoom = "harbor-1"

// RoomManager owns the lifecycle of every room.
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	defaults Settings
}

var (
	defaultManager *RoomManager
	once           sync.Once
)

func NewRoomManager(defaults Settings) *RoomManager {
	return &RoomManager{rooms: make(map[string]*Room), defaults: defaults}
}

// GetRoomManager returns the process-wide manager. ConfigureDefault must run
// before the first call for its settings to apply.
func GetRoomManager() *RoomManager {
	once.Do(func() {
		if defaultManager == nil {
			defaultManager = NewRoomManager(Settings{})
		}
	})
	return defaultManager
}

// ConfigureDefault replaces the process-wide manager's room defaults.
func ConfigureDefault(s Settings) {
	m := GetRoomManager()
	m.mu.Lock()
	m.defaults = s
	m.mu.Unlock()
}

// GetOrCreateRoom returns the room, creating and starting it if needed.
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		r = NewRoom(id, m.defaults)
		m.rooms[id] = r
		r.StartTicker()
	}
	return r
}

// Room looks up an existing room without creating it.
func (m *RoomManager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Rooms returns every room, ordered by id.
func (m *RoomManager) Rooms() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StopAll stops every room and forgets it.
func (m *RoomManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		r.Stop()
		delete(m.rooms, id)
	}
}
