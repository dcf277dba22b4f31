// Package broadcast implements the Broadcaster of spec §4.5 (component
// J): per-tick fan-out of a room's snapshot to its connected members,
// throttled so an unchanged snapshot is not re-sent. Grounded on the
// teacher's room.go broadcast-on-every-tick call site, generalized with
// a delta check since the teacher always sends (its room has no pause
// state to skip).
package broadcast

import (
	"reflect"
	"sync"

	"github.com/headsoccer/server/internal/protocol"
)

// RoomSender delivers an encoded event to every member of a room. The
// connection manager implements this.
type RoomSender interface {
	BroadcastToRoom(roomID, event string, payload interface{})
}

// Broadcaster fans out gameState snapshots, holding the last sent
// snapshot per room so an identical one (e.g. two ticks while Paused)
// is not re-encoded and re-sent (spec §2's "delta throttling").
// Satisfies internal/room.Broadcaster.
type Broadcaster struct {
	sender RoomSender

	mu   sync.Mutex
	last map[string]protocol.GameStateSnapshot
}

// New creates a Broadcaster over sender.
func New(sender RoomSender) *Broadcaster {
	return &Broadcaster{
		sender: sender,
		last:   make(map[string]protocol.GameStateSnapshot),
	}
}

// Emit sends snapshot to roomID's members if it differs from the last
// one sent for that room (ignoring Timestamp, which always changes).
// Spec §8 guarantees at most one snapshot per room per tick and that
// tick-N snapshots precede tick-(N+1) ones; throttling here only
// skips wire traffic for byte-identical simulation states; tick order
// is unaffected since Emit is always called synchronously from the
// room's own tick goroutine (spec §5).
func (b *Broadcaster) Emit(roomID string, snapshot protocol.GameStateSnapshot) {
	b.mu.Lock()
	prev, ok := b.last[roomID]
	unchanged := ok && sameExceptTimestamp(prev, snapshot)
	b.last[roomID] = snapshot
	b.mu.Unlock()

	if unchanged {
		return
	}
	b.sender.BroadcastToRoom(roomID, protocol.EventGameState, snapshot)
}

// Forget drops a room's last-snapshot cache entry, called when a room
// is destroyed to avoid an unbounded map.
func (b *Broadcaster) Forget(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.last, roomID)
}

func sameExceptTimestamp(a, b protocol.GameStateSnapshot) bool {
	a.Timestamp, b.Timestamp = 0, 0
	return reflect.DeepEqual(a, b)
}
