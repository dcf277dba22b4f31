// Package room implements the Room Engine of spec §4.2: it owns one
// RoomState and its fixed-timestep tick driver, and exposes the
// join/leave/ready/start/input/pause/resume/forceEnd/snapshot
// operations as the sole mutators of that state.
//
// Thread safety follows spec §5: a room's state is mutated exclusively
// by its own tick-driver goroutine plus the handful of public methods
// below, all of which take the room's mutex. Per §5 "no per-tick
// locking of room state is required" refers to the simulator's inner
// loop; the coarse mutex here only guards cross-goroutine entry
// (join/leave/input arriving from the connection manager's goroutines).
package room

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/entities"
	"github.com/headsoccer/server/internal/physics"
	"github.com/headsoccer/server/internal/protocol"
)

// Broadcaster is the narrow interface the Room Engine calls into once
// per tick to fan out a snapshot (component J, spec §4.5/§6.3). Kept as
// an interface here so internal/broadcast can depend on internal/room's
// exported types without an import cycle back.
type Broadcaster interface {
	Emit(roomID string, snapshot protocol.GameStateSnapshot)
}

// Result is the generic Accepted/Rejected outcome for an operation that
// can fail for a named reason (spec §9: rejections are values).
type Result struct {
	Accepted bool
	Reason   string
	Code     string
}

func accepted() Result        { return Result{Accepted: true} }
func rejected(code, reason string) Result {
	return Result{Accepted: false, Code: code, Reason: reason}
}

// Room owns one match's RoomState and tick driver.
type Room struct {
	mu    sync.RWMutex
	state *entities.RoomState

	sim *physics.Simulator
	cfg *config.ServerConfig

	broadcaster Broadcaster

	running  atomic.Bool
	stopChan chan struct{}

	// onTerminal fires exactly once, the first time the room reaches a
	// terminal status, regardless of cause (goal/time limit, forced
	// end, disconnect forfeit, abandonment). This is the Game-End
	// Pipeline's (component K) trigger point.
	onTerminal     func(room *Room, winner entities.Seat, winnerSet bool, reason entities.WinReason)
	terminalNotified bool
}

// New creates a Room in WAITING status with no players seated yet.
func New(id string, cfg *config.ServerConfig, broadcaster Broadcaster) *Room {
	state := &entities.RoomState{
		ID:        id,
		Status:    entities.StatusWaiting,
		CreatedAt: time.Now(),
	}
	r := &Room{
		state:       state,
		sim:         physics.New(cfg),
		cfg:         cfg,
		broadcaster: broadcaster,
		stopChan:    make(chan struct{}),
	}
	r.sim.Spawn(state)
	return r
}

// ID returns the room's identifier.
func (r *Room) ID() string {
	return r.state.ID
}

// SetOnTerminal registers the Game-End Pipeline's callback, invoked
// exactly once when the room first reaches Finished or Abandoned
// (spec §4.2, component K's trigger point).
func (r *Room) SetOnTerminal(cb func(room *Room, winner entities.Seat, winnerSet bool, reason entities.WinReason)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTerminal = cb
}

// notifyTerminalLocked fires onTerminal at most once per room. Caller
// must hold r.mu.
func (r *Room) notifyTerminalLocked() {
	if r.terminalNotified || !r.state.Status.Terminal() {
		return
	}
	r.terminalNotified = true
	cb := r.onTerminal
	winner, winnerSet, reason := r.state.Winner, r.state.WinnerSet, r.state.WinReason
	if cb == nil {
		return
	}
	go cb(r, winner, winnerSet, reason)
}

// Join seats a player. Accepts only while Waiting and only when a seat
// is free; assigns Left then Right (spec §4.2 join()).
func (r *Room) Join(playerID, character string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status != entities.StatusWaiting {
		return rejected("ROOM_NOT_WAITING", "room is not accepting players")
	}

	var seat entities.Seat
	switch {
	case r.state.Players[0] == nil:
		seat = entities.SeatLeft
	case r.state.Players[1] == nil:
		seat = entities.SeatRight
	default:
		return rejected("ROOM_FULL", "room already has two players")
	}

	player := entities.NewPlayerState(playerID, character, seat)
	if seat == entities.SeatLeft {
		r.state.Players[0] = player
	} else {
		r.state.Players[1] = player
	}
	r.sim.Spawn(r.state)

	log.Printf("room %s: player %s joined seat %s", r.state.ID, playerID, seat)
	return accepted()
}

// Leave removes a player. While Playing, transitions to Paused with
// reason playerLeft; if no players remain, Abandoned (spec §4.2
// leave()).
func (r *Room) Leave(playerID, reason string) entities.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, seat := r.state.PlayerByID(playerID)
	if seat == entities.SeatNone {
		return r.state.Status
	}
	if seat == entities.SeatLeft {
		r.state.Players[0] = nil
	} else {
		r.state.Players[1] = nil
	}

	switch {
	case r.state.SeatedCount() == 0:
		r.state.Status = entities.StatusAbandoned
		r.state.EndedAt = time.Now()
	case r.state.Status == entities.StatusPlaying:
		r.state.Status = entities.StatusPaused
		r.state.Pause = &entities.PauseInfo{Reason: "playerLeft", Since: time.Now(), RequestedBy: playerID}
	case r.state.Status == entities.StatusWaiting || r.state.Status == entities.StatusReady:
		r.state.Status = entities.StatusWaiting
		r.state.ReadyStates = [2]bool{}
	}

	r.notifyTerminalLocked()

	log.Printf("room %s: player %s left (%s), status now %s", r.state.ID, playerID, reason, r.state.Status)
	return r.state.Status
}

// SetReady records a player's ready-up flag. Idempotent: setting the
// same value twice leaves state unchanged after the first call
// (spec §8 round-trip property). When both seated players are ready,
// transitions Waiting -> Ready (spec §4.2 setReady()).
func (r *Room) SetReady(playerID string, ready bool) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, seat := r.state.PlayerByID(playerID)
	if seat == entities.SeatNone {
		return rejected("NOT_SEATED", "player is not seated in this room")
	}
	if r.state.Status != entities.StatusWaiting && r.state.Status != entities.StatusReady {
		return rejected("INVALID_STATE", "room is not awaiting ready-up")
	}

	idx := 0
	if seat == entities.SeatRight {
		idx = 1
	}
	r.state.ReadyStates[idx] = ready

	if r.state.BothReady() {
		r.state.Status = entities.StatusReady
	} else if r.state.Status == entities.StatusReady {
		r.state.Status = entities.StatusWaiting
	}
	return accepted()
}

// Start transitions Ready -> Playing and records startedAt
// (spec §4.2 start()).
func (r *Room) Start() Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status != entities.StatusReady {
		return rejected("INVALID_STATE", "room is not ready to start")
	}
	r.state.Status = entities.StatusPlaying
	r.state.StartedAt = time.Now()
	return accepted()
}

// Input records the latest intent frame for playerId, to be consumed
// by the next tick. Only the most recent intent per player per tick is
// retained (spec §4.2 input()).
func (r *Room) Input(playerID string, intent entities.IntentFrame) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, seat := r.state.PlayerByID(playerID)
	if seat == entities.SeatNone {
		return rejected("NOT_SEATED", "player is not seated in this room")
	}
	p.Intent = intent
	return accepted()
}

// Pause transitions Playing -> Paused (spec §4.2 pause()).
func (r *Room) Pause(requestedBy, reason string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status != entities.StatusPlaying {
		return rejected("INVALID_STATE", "room is not playing")
	}
	r.state.Status = entities.StatusPaused
	r.state.Pause = &entities.PauseInfo{Reason: reason, Since: time.Now(), RequestedBy: requestedBy}
	return accepted()
}

// Resume transitions Paused -> Playing. Only the original pauser may
// resume; a pause with no recorded requester may be resumed by anyone
// (spec §4.2 resume()). A pause that outlasts its timeout is force-ended
// by the tick driver, not resumed.
func (r *Room) Resume(requestedBy string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status != entities.StatusPaused {
		return rejected("INVALID_STATE", "room is not paused")
	}
	if r.state.Pause != nil && r.state.Pause.RequestedBy != "" && r.state.Pause.RequestedBy != requestedBy {
		return rejected("NOT_PAUSER", "only the requester of the pause may resume")
	}
	r.state.Status = entities.StatusPlaying
	r.state.Pause = nil
	return accepted()
}

// ForceEnd transitions the room to Finished with the given winReason;
// winner is derived from score (Draw if equal) unless explicitly
// overridden by the caller through winner/winnerSet (spec §4.2
// forceEnd()).
func (r *Room) ForceEnd(reason entities.WinReason, winner entities.Seat, winnerSet bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forceEndLocked(reason, winner, winnerSet)
	r.notifyTerminalLocked()
}

func (r *Room) forceEndLocked(reason entities.WinReason, winner entities.Seat, winnerSet bool) {
	r.state.Status = entities.StatusFinished
	r.state.WinReason = reason
	r.state.EndedAt = time.Now()
	if winnerSet {
		r.state.Winner = winner
		r.state.WinnerSet = true
	} else {
		r.state.Winner = r.deriveWinnerFromScoreLocked()
		r.state.WinnerSet = true
	}
}

func (r *Room) deriveWinnerFromScoreLocked() entities.Seat {
	switch {
	case r.state.Score.Left > r.state.Score.Right:
		return entities.SeatLeft
	case r.state.Score.Right > r.state.Score.Left:
		return entities.SeatRight
	default:
		return entities.SeatNone
	}
}

// Status returns the room's current lifecycle status.
func (r *Room) Status() entities.RoomStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Status
}

// SeatOf returns the seat playerID occupies, if seated in this room.
func (r *Room) SeatOf(playerID string) (entities.Seat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, seat := r.state.PlayerByID(playerID)
	return seat, seat != entities.SeatNone
}

// LastGoalInfo reports how long ago (in ms of simulated game time) the
// last goal was scored, for handlers that need to corroborate a
// client's goal_attempt against the authoritative simulation.
func (r *Room) LastGoalInfo() (msSinceGoal float64, everScored bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state.LastGoalMs == 0 && r.state.Score.Left == 0 && r.state.Score.Right == 0 {
		return 0, false
	}
	return r.state.GameTimeMs - r.state.LastGoalMs, true
}

// IsEmpty reports whether no player is seated.
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.SeatedCount() == 0
}

// Snapshot returns a rounded, broadcast-ready view of the room
// (spec §4.2 snapshot(), §6.3 wire shape).
func (r *Room) Snapshot() protocol.GameStateSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return buildSnapshot(r.state)
}

func buildSnapshot(state *entities.RoomState) protocol.GameStateSnapshot {
	players := make([]protocol.PlayerSnapshot, 0, 2)
	for _, p := range state.Players {
		if p == nil {
			continue
		}
		players = append(players, protocol.PlayerSnapshot{
			ID:           p.ID,
			X:            round1(float64(p.Position.X)),
			Y:            round1(float64(p.Position.Y)),
			VX:           round1(float64(p.Velocity.X)),
			VY:           round1(float64(p.Velocity.Y)),
			Facing:       int(p.Facing),
			Kicking:      p.Kicking,
			OnGround:     p.OnGround,
			Character:    p.Character,
			KickCooldown: round1(float64(p.KickCooldownMs)),
		})
	}

	trail := state.Ball.Trail()
	wireTrail := make([]protocol.Vec2, len(trail))
	for i, t := range trail {
		wireTrail[i] = protocol.Vec2{X: round1(float64(t.X)), Y: round1(float64(t.Y))}
	}

	return protocol.GameStateSnapshot{
		Players: players,
		Ball: protocol.BallSnapshot{
			X:        round1(float64(state.Ball.Position.X)),
			Y:        round1(float64(state.Ball.Position.Y)),
			VX:       round1(float64(state.Ball.Velocity.X)),
			VY:       round1(float64(state.Ball.Velocity.Y)),
			Rotation: round2(float64(state.Ball.Rotation)),
			Trail:    wireTrail,
		},
		Score: protocol.ScoreSnapshot{
			Left:  int(state.Score.Left),
			Right: int(state.Score.Right),
		},
		GameTime:  round1(state.GameTimeMs / 1000),
		GameState: state.Status.String(),
		Timestamp: time.Now().UnixMilli(),
	}
}

func round1(v float64) float64 {
	return float64(int64(v*10+sign(v)*0.5)) / 10
}

func round2(v float64) float64 {
	return float64(int64(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
