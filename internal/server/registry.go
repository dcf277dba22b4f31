package server

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/headsoccer/server/internal/room"
)

// roomRegistry is the process-wide room table (spec §2's "Room
// lifecycle and matchmaker"). Grounded on the teacher's Matchmaker room
// map, split out from matchmaking concerns per spec §9's "mixed-concern
// mega-class" redesign flag — pairing and room ownership are now two
// collaborators, not one type.
type roomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*room.Room
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{rooms: make(map[string]*room.Room)}
}

func (rr *roomRegistry) create(newRoom func(id string) *room.Room) (*room.Room, error) {
	id := uuid.NewString()
	r := newRoom(id)

	rr.mu.Lock()
	defer rr.mu.Unlock()
	if _, exists := rr.rooms[id]; exists {
		return nil, fmt.Errorf("room id collision: %s", id)
	}
	rr.rooms[id] = r
	return r, nil
}

func (rr *roomRegistry) get(id string) (*room.Room, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	r, ok := rr.rooms[id]
	return r, ok
}

func (rr *roomRegistry) remove(id string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.rooms, id)
}

func (rr *roomRegistry) count() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.rooms)
}
