package room

import (
	"testing"
	"time"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/entities"
)

func testCfg() *config.ServerConfig {
	return config.DefaultServerConfig()
}

func TestRoom_JoinSeatsLeftThenRight(t *testing.T) {
	r := New("r1", testCfg(), nil)

	res := r.Join("alice", "ninja")
	if !res.Accepted {
		t.Fatalf("expected first join to be accepted, got %+v", res)
	}
	seat, ok := r.SeatOf("alice")
	if !ok || seat != entities.SeatLeft {
		t.Fatalf("expected alice seated left, got seat=%v ok=%v", seat, ok)
	}

	res = r.Join("bob", "samurai")
	if !res.Accepted {
		t.Fatalf("expected second join to be accepted, got %+v", res)
	}
	seat, ok = r.SeatOf("bob")
	if !ok || seat != entities.SeatRight {
		t.Fatalf("expected bob seated right, got seat=%v ok=%v", seat, ok)
	}
}

func TestRoom_JoinRejectsWhenFull(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")

	res := r.Join("carol", "monk")
	if res.Accepted {
		t.Fatalf("expected third join to be rejected")
	}
	if res.Code != "ROOM_FULL" {
		t.Errorf("expected code ROOM_FULL, got %q", res.Code)
	}
}

func TestRoom_JoinRejectsOnceNotWaiting(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")
	r.SetReady("alice", true)
	r.SetReady("bob", true)
	r.Start()

	res := r.Join("carol", "monk")
	if res.Accepted {
		t.Fatalf("expected join to be rejected once room is no longer waiting")
	}
	if res.Code != "ROOM_NOT_WAITING" {
		t.Errorf("expected code ROOM_NOT_WAITING, got %q", res.Code)
	}
}

func TestRoom_SetReadyTransitionsToReady(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")

	if r.Status() != entities.StatusWaiting {
		t.Fatalf("expected room to start in WAITING, got %v", r.Status())
	}

	r.SetReady("alice", true)
	if r.Status() != entities.StatusWaiting {
		t.Fatalf("expected room to remain WAITING with only one player ready")
	}

	r.SetReady("bob", true)
	if r.Status() != entities.StatusReady {
		t.Fatalf("expected room to be READY once both players ready up, got %v", r.Status())
	}
}

func TestRoom_SetReadyTogglingBackDropsReadyStatus(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")
	r.SetReady("alice", true)
	r.SetReady("bob", true)

	r.SetReady("alice", false)
	if r.Status() != entities.StatusWaiting {
		t.Fatalf("expected un-readying to drop room back to WAITING, got %v", r.Status())
	}
}

func TestRoom_StartRequiresReady(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")

	if res := r.Start(); res.Accepted {
		t.Fatalf("expected Start to be rejected before both players are ready")
	}

	r.SetReady("alice", true)
	r.SetReady("bob", true)
	if res := r.Start(); !res.Accepted {
		t.Fatalf("expected Start to succeed once both ready, got %+v", res)
	}
	if r.Status() != entities.StatusPlaying {
		t.Fatalf("expected PLAYING after Start, got %v", r.Status())
	}
}

func TestRoom_LeaveWhilePlayingPausesRoom(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")
	r.SetReady("alice", true)
	r.SetReady("bob", true)
	r.Start()

	status := r.Leave("bob", "connection_lost")
	if status != entities.StatusPaused {
		t.Fatalf("expected PAUSED after one player leaves mid-game, got %v", status)
	}
}

func TestRoom_LeaveLastPlayerAbandonsRoom(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")
	r.SetReady("alice", true)
	r.SetReady("bob", true)
	r.Start()

	r.Leave("alice", "left")
	status := r.Leave("bob", "left")
	if status != entities.StatusAbandoned {
		t.Fatalf("expected ABANDONED once both players leave, got %v", status)
	}
}

func TestRoom_PauseRequiresPlaying(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")

	if res := r.Pause("alice", "manual"); res.Accepted {
		t.Fatalf("expected Pause to be rejected before the room is playing")
	}
}

func TestRoom_ResumeOnlyByOriginalPauser(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")
	r.SetReady("alice", true)
	r.SetReady("bob", true)
	r.Start()
	r.Pause("alice", "manual")

	if res := r.Resume("bob"); res.Accepted {
		t.Fatalf("expected Resume by non-pauser to be rejected")
	}
	if res := r.Resume("alice"); !res.Accepted {
		t.Fatalf("expected Resume by the original pauser to succeed, got %+v", res)
	}
	if r.Status() != entities.StatusPlaying {
		t.Fatalf("expected PLAYING after resume, got %v", r.Status())
	}
}

func TestRoom_ForceEndDerivesWinnerFromScore(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")
	r.SetReady("alice", true)
	r.SetReady("bob", true)
	r.Start()

	r.ForceEnd(entities.WinReasonMutualAgreement, entities.SeatNone, false)

	if r.Status() != entities.StatusFinished {
		t.Fatalf("expected FINISHED after ForceEnd, got %v", r.Status())
	}
	snap := r.Snapshot()
	if snap.Score.Left != 0 || snap.Score.Right != 0 {
		t.Fatalf("expected 0-0 score in this scenario, got %+v", snap.Score)
	}
}

func TestRoom_OnTerminalFiresExactlyOnce(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")
	r.Join("bob", "samurai")
	r.SetReady("alice", true)
	r.SetReady("bob", true)
	r.Start()

	calls := make(chan struct{}, 4)
	r.SetOnTerminal(func(room *Room, winner entities.Seat, winnerSet bool, reason entities.WinReason) {
		calls <- struct{}{}
	})

	r.ForceEnd(entities.WinReasonForfeit, entities.SeatLeft, true)
	r.ForceEnd(entities.WinReasonForfeit, entities.SeatLeft, true) // second call must be a no-op

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatalf("expected onTerminal to fire at least once")
	}
	select {
	case <-calls:
		t.Fatalf("expected onTerminal to fire exactly once, got a second call")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoom_InputRejectsUnseatedPlayer(t *testing.T) {
	r := New("r1", testCfg(), nil)
	r.Join("alice", "ninja")

	res := r.Input("ghost", entities.IntentFrame{Left: true})
	if res.Accepted {
		t.Fatalf("expected Input from an unseated player to be rejected")
	}
}

func TestRoom_IsEmpty(t *testing.T) {
	r := New("r1", testCfg(), nil)
	if !r.IsEmpty() {
		t.Fatalf("expected a fresh room to be empty")
	}
	r.Join("alice", "ninja")
	if r.IsEmpty() {
		t.Fatalf("expected room to be non-empty once a player has joined")
	}
}
