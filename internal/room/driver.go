package room

import (
	"log"
	"time"

	"github.com/headsoccer/server/internal/entities"
)

// RunLoop starts the tick-driver goroutine in its own goroutine
// (spec §4.2 tick driver, §5 "a room worker suspends only between
// ticks on a tick clock"). Safe to call multiple times — subsequent
// calls are no-ops, mirroring the teacher's atomic start guard. Named
// distinctly from the state-machine's Start() operation above, which
// only transitions Ready -> Playing.
func (r *Room) RunLoop() {
	if r.running.Swap(true) {
		return
	}
	go r.tickLoop()
}

// StopLoop stops the tick-driver goroutine.
func (r *Room) StopLoop() {
	if !r.running.Swap(false) {
		return
	}
	close(r.stopChan)
}

// tickLoop drives the fixed-timestep simulation at cfg.TickHz. Per
// spec §4.2: a tick budget overrun must be logged and the engine must
// not catch up with multiple simulation steps — exactly one step per
// wall-tick, always.
func (r *Room) tickLoop() {
	interval := r.cfg.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case tickStart := <-ticker.C:
			r.runOneTick()
			if elapsed := time.Since(tickStart); elapsed > interval {
				log.Printf("room %s: tick budget overrun: %s > %s", r.state.ID, elapsed, interval)
			}
		}
	}
}

// runOneTick integrates at most one simulation step, advances
// gameTimeMs, checks pause/disconnect timeouts, and asks the
// broadcaster to emit — the (i)/(ii)/(iii) order of spec §4.2.
func (r *Room) runOneTick() {
	r.mu.Lock()

	switch r.state.Status {
	case entities.StatusPlaying:
		r.sim.Tick(r.state)
	case entities.StatusPaused:
		r.checkPauseTimeoutLocked()
	}

	r.notifyTerminalLocked()

	snapshot := buildSnapshot(r.state)
	roomID := r.state.ID

	r.mu.Unlock()

	if r.broadcaster != nil {
		r.broadcaster.Emit(roomID, snapshot)
	}
}

// checkPauseTimeoutLocked force-ends the room once its pause has
// outlasted the applicable timeout. A disconnect pause (reason
// "playerLeft") uses the shorter disconnectGraceMs and ends with
// winReason Disconnection, winner being whoever remains seated
// (spec §5 "Disconnect grace", E6). Any other pause (a manual
// pause_request) uses pauseTimeoutMs and ends with TechnicalIssue,
// winner being the non-pauser (spec §4.2 "Pause auto-resume").
func (r *Room) checkPauseTimeoutLocked() {
	if r.state.Pause == nil {
		return
	}
	elapsed := time.Since(r.state.Pause.Since)

	if r.state.Pause.Reason == "playerLeft" {
		if elapsed < time.Duration(r.cfg.DisconnectGraceMs)*time.Millisecond {
			return
		}
		winner, winnerSet := r.remainingPlayerSeatLocked()
		r.forceEndLocked(entities.WinReasonDisconnection, winner, winnerSet)
		return
	}

	if elapsed < time.Duration(r.cfg.PauseTimeoutMs)*time.Millisecond {
		return
	}
	winner := entities.SeatNone
	winnerSet := false
	if pauser := r.state.Pause.RequestedBy; pauser != "" {
		if _, seat := r.state.PlayerByID(pauser); seat != entities.SeatNone {
			winner = seat.Opposite()
			winnerSet = true
		}
	}
	r.forceEndLocked(entities.WinReasonTechnicalIssue, winner, winnerSet)
}

// remainingPlayerSeatLocked returns the seat of whichever player is
// still present, for the disconnect-forfeit path.
func (r *Room) remainingPlayerSeatLocked() (entities.Seat, bool) {
	if r.state.Players[0] != nil {
		return entities.SeatLeft, true
	}
	if r.state.Players[1] != nil {
		return entities.SeatRight, true
	}
	return entities.SeatNone, false
}
