package room

import (
	"sync"

	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/metrics"
)

// Store holds all live rooms by id.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{rooms: map[string]*Room{}}
}

// Create makes a room with a fresh id and returns it.
func (s *Store) Create() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := auth.GenerateRoomID()
	for s.rooms[id] != nil {
		id = auth.GenerateRoomID()
	}
	r := newRoom(id)
	s.rooms[id] = r
	metrics.ActiveRooms.Set(float64(len(s.rooms)))
	return r
}

// Get returns the room with id, or nil.
func (s *Store) Get(id string) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[id]
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
