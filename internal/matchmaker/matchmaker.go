// Package matchmaker implements the Matchmaker of spec §4.5: one FIFO
// queue per game mode, strict pair-the-two-oldest pairing, and a
// ready-up protocol that reserves a room before either player commits
// to it.
package matchmaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/entities"
	"github.com/headsoccer/server/internal/store"
)

// Notifier delivers matchmaking events to a player's connection. The
// connection manager implements this; kept narrow so matchmaker has no
// import-cycle back to connmgr (spec §9 "narrow interfaces").
type Notifier interface {
	Notify(playerID, event string, payload interface{})
}

// RoomFactory creates and registers a new room, returning its ID. The
// server wires this to the room registry at startup.
type RoomFactory interface {
	CreateRoom() (roomID string, err error)
}

// RoomStarter starts a reserved room once both players are seated and
// ready. Implemented by whatever owns the room registry.
type RoomStarter interface {
	SeatAndStart(roomID string, playerIDs [2]string) error
}

// Result is the generic Accepted/Rejected outcome (spec §9).
type Result struct {
	Accepted bool
	Code     string
	Reason   string

	Position      int
	EstimatedWait time.Duration
	QueueID       string
	QueueTime     time.Duration
}

func rejected(code, reason string) Result {
	return Result{Code: code, Reason: reason}
}

// Matchmaker owns the per-mode queues and in-flight PendingMatches.
type Matchmaker struct {
	mu sync.Mutex

	cfg   *config.ServerConfig
	store store.Store
	notif Notifier
	rooms RoomStarter
	fac   RoomFactory

	queues  map[entities.GameMode][]*entities.MatchRequest
	playing map[string]*entities.PendingMatch // keyed by playerID
	pending map[string]*entities.PendingMatch // keyed by matchID

	stopChan chan struct{}
}

// New creates a Matchmaker. store persists queue membership under
// "matchmaking:<mode>" sorted sets (spec §6.4); the in-memory queues
// slice remains the source of truth for ordering and pairing, mirroring
// the teacher's pattern of a mutex-guarded map as the single
// authoritative index.
func New(cfg *config.ServerConfig, st store.Store, notif Notifier, fac RoomFactory, starter RoomStarter) *Matchmaker {
	return &Matchmaker{
		cfg:      cfg,
		store:    st,
		notif:    notif,
		rooms:    starter,
		fac:      fac,
		queues:   make(map[entities.GameMode][]*entities.MatchRequest),
		playing:  make(map[string]*entities.PendingMatch),
		pending:  make(map[string]*entities.PendingMatch),
		stopChan: make(chan struct{}),
	}
}

// Join enqueues playerID into mode's queue (spec §4.5 join()).
func (m *Matchmaker) Join(playerID string, mode entities.GameMode, prefs map[string]string) Result {
	if !entities.ValidGameMode(mode) {
		return rejected("INVALID_MODE", fmt.Sprintf("unknown game mode %q", mode))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, inMatch := m.playing[playerID]; inMatch {
		return rejected("IN_GAME", "player already has a pending or active match")
	}
	for modeQ, q := range m.queues {
		for _, req := range q {
			if req.PlayerID == playerID {
				_ = modeQ
				return rejected("ALREADY_QUEUED", "player is already queued")
			}
		}
	}

	req := &entities.MatchRequest{
		PlayerID:    playerID,
		GameMode:    mode,
		Preferences: prefs,
		EnqueuedAt:  time.Now(),
		QueueID:     uuid.NewString(),
	}
	m.queues[mode] = append(m.queues[mode], req)
	position := len(m.queues[mode])

	if m.store != nil {
		ctx := context.Background()
		if err := m.store.ZAdd(ctx, queueKey(mode), store.ZMember{
			Score:  float64(req.EnqueuedAt.UnixNano()),
			Member: playerID,
		}); err != nil {
			_ = err // queue persistence is best-effort; in-memory slice remains authoritative
		}
	}

	m.notif.Notify(playerID, "queue_joined", map[string]interface{}{
		"gameMode": mode,
		"position": position,
		"queueId":  req.QueueID,
	})

	m.tryPairLocked(mode)

	return Result{Accepted: true, Position: position, QueueID: req.QueueID, EstimatedWait: estimateWait(position)}
}

// Leave removes playerID from its queue (spec §4.5 leave()).
func (m *Matchmaker) Leave(playerID, reason string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	for mode, q := range m.queues {
		for i, req := range q {
			if req.PlayerID != playerID {
				continue
			}
			m.queues[mode] = append(q[:i], q[i+1:]...)
			if m.store != nil {
				_ = m.store.ZRem(context.Background(), queueKey(mode), playerID)
			}
			m.notif.Notify(playerID, "queue_left", map[string]interface{}{"reason": reason})
			return Result{Accepted: true, QueueTime: time.Since(req.EnqueuedAt)}
		}
	}
	return rejected("NOT_QUEUED", "player is not in any matchmaking queue")
}

// tryPairLocked pops the two oldest entries of mode's queue once at
// least two are waiting, and reserves a room for them (spec §4.5
// tryPair()). Caller must hold m.mu.
func (m *Matchmaker) tryPairLocked(mode entities.GameMode) {
	q := m.queues[mode]
	if len(q) < 2 {
		return
	}
	a, b := q[0], q[1]
	m.queues[mode] = q[2:]
	if m.store != nil {
		_ = m.store.ZRem(context.Background(), queueKey(mode), a.PlayerID, b.PlayerID)
	}

	roomID, err := m.fac.CreateRoom()
	if err != nil {
		// Can't reserve a room right now; put both players back at the
		// front of the queue rather than lose their place.
		m.queues[mode] = append([]*entities.MatchRequest{a, b}, m.queues[mode]...)
		return
	}

	match := &entities.PendingMatch{
		MatchID:     uuid.NewString(),
		PlayerIDs:   [2]string{a.PlayerID, b.PlayerID},
		RoomID:      roomID,
		ReadyStates: make(map[string]bool),
		CreatedAt:   time.Now(),
		Status:      entities.PendingAwaitingReady,
		GameMode:    mode,
	}
	m.pending[match.MatchID] = match
	m.playing[a.PlayerID] = match
	m.playing[b.PlayerID] = match

	m.notif.Notify(a.PlayerID, "match_found", map[string]interface{}{
		"matchId":      match.MatchID,
		"opponent":     b.PlayerID,
		"gameMode":     mode,
		"roomId":       roomID,
		"readyTimeout": m.cfg.ReadyTimeoutMs / 1000,
	})
	m.notif.Notify(b.PlayerID, "match_found", map[string]interface{}{
		"matchId":      match.MatchID,
		"opponent":     a.PlayerID,
		"gameMode":     mode,
		"roomId":       roomID,
		"readyTimeout": m.cfg.ReadyTimeoutMs / 1000,
	})
}

// SetReady updates playerID's ready flag in their PendingMatch. Once
// both are ready, asks the Room Engine to seat and start the reserved
// room (spec §4.5 setReady()).
func (m *Matchmaker) SetReady(playerID string, ready bool) Result {
	m.mu.Lock()
	match, ok := m.playing[playerID]
	if !ok || match.Status != entities.PendingAwaitingReady {
		m.mu.Unlock()
		return rejected("NOT_PENDING", "player has no pending match awaiting ready-up")
	}
	match.ReadyStates[playerID] = ready

	for _, pid := range match.PlayerIDs {
		m.notif.Notify(pid, "player_ready_update", map[string]interface{}{
			"matchId":  match.MatchID,
			"playerId": playerID,
			"ready":    ready,
		})
	}

	if !match.BothReady() {
		m.mu.Unlock()
		return accepted()
	}

	match.Status = entities.PendingStarted
	delete(m.pending, match.MatchID)
	for _, pid := range match.PlayerIDs {
		delete(m.playing, pid)
	}
	roomID, playerIDs := match.RoomID, match.PlayerIDs
	m.mu.Unlock()

	if err := m.rooms.SeatAndStart(roomID, playerIDs); err != nil {
		for _, pid := range playerIDs {
			m.notif.Notify(pid, "matchmaking_error", map[string]interface{}{"code": "ROOM_START_FAILED"})
		}
		return rejected("ROOM_START_FAILED", err.Error())
	}

	for _, pid := range playerIDs {
		m.notif.Notify(pid, "room_assigned", map[string]interface{}{"roomId": roomID})
	}
	return accepted()
}

func accepted() Result { return Result{Accepted: true} }

// RunSweeper starts the background goroutine that cancels PendingMatches
// whose readyTimeout has elapsed (spec §5 "ready-up timeout").
func (m *Matchmaker) RunSweeper() {
	go m.sweepLoop()
}

// Stop halts the sweeper goroutine.
func (m *Matchmaker) Stop() {
	close(m.stopChan)
}

func (m *Matchmaker) sweepLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

// sweepExpired cancels any PendingMatch older than ReadyTimeoutMs using
// the drop_all policy: both players are removed from the match and must
// re-queue from scratch (spec §4.5, documented choice recorded in
// SPEC_FULL.md's open-question decisions).
func (m *Matchmaker) sweepExpired() {
	deadline := time.Duration(m.cfg.ReadyTimeoutMs) * time.Millisecond

	m.mu.Lock()
	var expired []*entities.PendingMatch
	for id, match := range m.pending {
		if match.Status == entities.PendingAwaitingReady && time.Since(match.CreatedAt) >= deadline {
			match.Status = entities.PendingCancelled
			expired = append(expired, match)
			delete(m.pending, id)
			for _, pid := range match.PlayerIDs {
				delete(m.playing, pid)
			}
		}
	}
	m.mu.Unlock()

	for _, match := range expired {
		for _, pid := range match.PlayerIDs {
			m.notif.Notify(pid, "match_cancelled", map[string]interface{}{
				"reason": "ready_timeout",
				"policy": "drop_all",
			})
		}
	}
}

func queueKey(mode entities.GameMode) string {
	return "matchmaking:" + string(mode)
}

// estimateWait is a rough FIFO estimate: one pairing opportunity is
// assumed per two positions ahead in the queue.
func estimateWait(position int) time.Duration {
	return time.Duration(position/2) * 5 * time.Second
}
