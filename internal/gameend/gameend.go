// Package gameend implements the Game-End Pipeline of spec §4.2/§9
// (component K): on a room's terminal transition it finalizes the
// result, flushes it to the external store, notifies the room's
// members, and releases the room after a short retention window that
// covers any still-in-flight reconnect. Grounded on the teacher's
// CleanupEmptyRooms sweep, converted from a poll into an event-driven
// one-shot triggered by internal/room's onTerminal callback.
package gameend

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/entities"
	"github.com/headsoccer/server/internal/protocol"
	"github.com/headsoccer/server/internal/room"
	"github.com/headsoccer/server/internal/store"
)

// RoomSender delivers the terminal gameEnded event to a room's members.
type RoomSender interface {
	BroadcastToRoom(roomID, event string, payload interface{})
}

// Releaser removes a room from whatever registry holds it, once the
// retention window has elapsed.
type Releaser interface {
	ReleaseRoom(roomID string)
}

// Result is the persisted record of one finished match (spec §6.4
// "sessions").
type Result struct {
	RoomID      string  `json:"roomId"`
	Winner      string  `json:"winner,omitempty"`
	WinnerSet   bool    `json:"winnerSet"`
	WinReason   string  `json:"winReason"`
	ScoreLeft   int     `json:"scoreLeft"`
	ScoreRight  int     `json:"scoreRight"`
	DurationSec float64 `json:"durationSeconds"`
	EndedAtUnix int64   `json:"endedAtUnix"`
}

// Pipeline is the component K singleton-free value (spec §9 "no
// internal global singleton"): constructed once by the server and
// handed to every room via room.SetOnTerminal(pipeline.Handle).
type Pipeline struct {
	cfg      *config.ServerConfig
	store    store.Store
	sender   RoomSender
	releaser Releaser

	// retentionTTLSeconds is how long a finished match's Result stays
	// in the store, and how long the room itself stays registered
	// before release, covering a reconnecting client's read of the
	// final snapshot (spec §3 "retained briefly for reconnect grace").
	retentionTTLSeconds int
}

// New creates a Pipeline.
func New(cfg *config.ServerConfig, st store.Store, sender RoomSender, releaser Releaser) *Pipeline {
	return &Pipeline{
		cfg:                 cfg,
		store:               st,
		sender:              sender,
		releaser:            releaser,
		retentionTTLSeconds: 60,
	}
}

// Handle is the room.onTerminal callback: finalize, persist, notify,
// then schedule release. Matches the signature room.SetOnTerminal
// requires so it can be registered directly.
func (p *Pipeline) Handle(r *room.Room, winner entities.Seat, winnerSet bool, reason entities.WinReason) {
	snapshot := r.Snapshot()

	result := Result{
		RoomID:      r.ID(),
		WinnerSet:   winnerSet,
		WinReason:   reason.String(),
		ScoreLeft:   snapshot.Score.Left,
		ScoreRight:  snapshot.Score.Right,
		DurationSec: snapshot.GameTime,
		EndedAtUnix: time.Now().Unix(),
	}
	if winnerSet {
		result.Winner = winner.String()
	}

	p.persist(result)

	p.sender.BroadcastToRoom(r.ID(), protocol.EventGameEnded, protocol.PayloadGameEnded{
		Winner:    result.Winner,
		WinReason: result.WinReason,
		Score:     snapshot.Score,
		DurationS: result.DurationSec,
	})

	roomID := r.ID()
	time.AfterFunc(time.Duration(p.retentionTTLSeconds)*time.Second, func() {
		p.releaser.ReleaseRoom(roomID)
	})
}

func (p *Pipeline) persist(result Result) {
	if p.store == nil {
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		log.Printf("gameend: failed to marshal result for room %s: %v", result.RoomID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.SetEx(ctx, "match:"+result.RoomID, p.retentionTTLSeconds, string(body)); err != nil {
		log.Printf("gameend: failed to persist result for room %s: %v", result.RoomID, err)
	}
}
