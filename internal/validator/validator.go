// Package validator implements the per-message plausibility gate and
// anti-cheat signal observation of spec §4.4. It never panics and
// always returns a value the caller can safely apply — either the
// submission as given, or a corrected one.
package validator

import (
	"math"
	"sync"
	"time"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/entities"
)

// Verdict is the outcome of validating one submission (spec §9:
// rejections are values, not exceptions).
type Verdict int

const (
	Accept Verdict = iota
	Reject
	Correct
)

// Severity is an anti-cheat observation's severity (spec §4.4).
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Signal is an anti-cheat observation; signals are observational only
// in the core and never by themselves cause a kick (spec §4.3: repeated
// violations are monitored, not auto-banned).
type Signal struct {
	Kind     string
	Severity Severity
	PlayerID string
}

// MovementResult is the outcome of validating a player's claimed
// position/velocity update (spec §4.4).
type MovementResult struct {
	Verdict        Verdict
	CorrectedPos   entities.Vec2
	CorrectedVel   entities.Vec2
	Signals        []Signal
	Reason         string
}

// Validator holds the configured plausibility thresholds.
type Validator struct {
	cfg *config.ServerConfig

	mu           sync.Mutex
	inputWindows map[string][]int64 // playerID -> input timestamps (ms) within the trailing second
}

// New creates a Validator bound to cfg's thresholds (spec §6.5).
func New(cfg *config.ServerConfig) *Validator {
	return &Validator{cfg: cfg, inputWindows: make(map[string][]int64)}
}

// ValidatePlayerMovement checks a claimed player position/velocity
// update against field bounds, implied speed and timestamp drift
// (spec §4.4). prevPos/prevTime are the server's last-known values for
// this player; if prevTime is zero no previous state exists yet.
func (v *Validator) ValidatePlayerMovement(playerID string, claimedPos, claimedVel entities.Vec2, clientTimestampMs int64, prevPos entities.Vec2, prevTimeMs int64, nowMs int64) MovementResult {
	result := MovementResult{Verdict: Accept, CorrectedPos: claimedPos, CorrectedVel: claimedVel}

	margin := float32(v.cfg.BoundsMargin)
	minX, maxX := -margin, float32(config.FieldWidth)+margin
	minY, maxY := -margin, float32(config.FloorY)+margin

	outOfBounds := claimedPos.X < minX || claimedPos.X > maxX || claimedPos.Y < minY || claimedPos.Y > maxY
	if outOfBounds {
		result.Verdict = Correct
		result.Reason = "position_out_of_bounds"
		result.CorrectedPos = clampVec(claimedPos, minX, maxX, minY, maxY)
	}

	drift := nowMs - clientTimestampMs
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(v.cfg.MaxTimeDriftMs) {
		result.Verdict = Correct
		result.Reason = "timestamp_drift"
		result.CorrectedPos = prevPos
		result.CorrectedVel = entities.Vec2{}
	}

	if prevTimeMs > 0 {
		dtSec := float64(clientTimestampMs-prevTimeMs) / 1000
		if dtSec > 0 {
			impliedSpeed := distance(prevPos, claimedPos) / dtSec
			if impliedSpeed > v.cfg.MaxPlayerSpeed {
				result.Verdict = Correct
				result.Reason = "implied_speed_exceeded"
				result.CorrectedPos = prevPos
				result.Signals = append(result.Signals, Signal{Kind: "impossible_movement", Severity: SeverityMedium, PlayerID: playerID})
			}
		}
	}

	speed := float64(vecLen(claimedVel))
	if speed > v.cfg.MaxPlayerSpeed {
		scale := float32(v.cfg.MaxPlayerSpeed / speed)
		result.CorrectedVel = claimedVel.Scale(scale)
		if result.Verdict == Accept {
			result.Verdict = Correct
			result.Reason = "velocity_exceeded"
		}
	}

	return result
}

// BallUpdateResult is the outcome of validating a client-submitted ball
// physics update (spec §4.4). Neither ValidateBallUpdate nor the router
// or the ball_update handler checks that the submitter is the ball's
// lastTouchedBy; the handler only observes the result and never applies
// it.
type BallUpdateResult struct {
	Verdict      Verdict
	CorrectedPos entities.Vec2
	CorrectedVel entities.Vec2
	Reason       string
}

// ValidateBallUpdate checks a claimed ball position/velocity against
// field bounds and the configured speed ceiling (spec §4.4).
func (v *Validator) ValidateBallUpdate(claimedPos, claimedVel entities.Vec2) BallUpdateResult {
	result := BallUpdateResult{Verdict: Accept, CorrectedPos: claimedPos, CorrectedVel: claimedVel}

	margin := float32(v.cfg.BoundsMargin)
	minX, maxX := -margin, float32(config.FieldWidth)+margin
	minY, maxY := -margin, float32(config.FieldHeight)+margin

	if claimedPos.X < minX || claimedPos.X > maxX || claimedPos.Y < minY || claimedPos.Y > maxY {
		result.Verdict = Correct
		result.Reason = "ball_out_of_bounds"
		result.CorrectedPos = clampVec(claimedPos, minX, maxX, minY, maxY)
	}

	speed := float64(vecLen(claimedVel))
	if speed > v.cfg.MaxBallSpeed {
		result.Verdict = Correct
		if result.Reason == "" {
			result.Reason = "ball_speed_exceeded"
		}
		scale := float32(v.cfg.MaxBallSpeed / speed)
		result.CorrectedVel = claimedVel.Scale(scale)
	}

	return result
}

// GoalResult is the outcome of validating a claimed goal (spec §4.4).
type GoalResult struct {
	Verdict  Verdict
	OwnGoal  bool
	Reason   string
}

// ValidateGoalAttempt checks that the ball actually crossed the goal
// line this frame, stayed within the goal-mouth vertical band, and that
// the claimed scorer is a seated player (spec §4.4, §8 boundary
// behavior). scorerSeat is the seat attempting to claim the goal;
// goalSide is the side whose net the ball entered.
func (v *Validator) ValidateGoalAttempt(prevBallX, currBallX, currBallY float32, goalSide entities.Seat, scorerSeat entities.Seat) GoalResult {
	r := float32(config.BallRadius)
	inVerticalBand := currBallY+r >= float32(config.FieldHeight-config.GoalHeight)
	if !inVerticalBand {
		return GoalResult{Verdict: Reject, Reason: "not_in_goal_mouth"}
	}

	var crossed bool
	switch goalSide {
	case entities.SeatLeft:
		crossed = prevBallX-r > float32(config.GoalWidth) && currBallX+r <= float32(config.GoalWidth)
	case entities.SeatRight:
		crossed = prevBallX+r < float32(config.FieldWidth-config.GoalWidth) && currBallX-r >= float32(config.FieldWidth-config.GoalWidth)
	default:
		return GoalResult{Verdict: Reject, Reason: "invalid_goal_side"}
	}
	if !crossed {
		return GoalResult{Verdict: Reject, Reason: "ball_did_not_cross_line"}
	}

	if scorerSeat == entities.SeatNone {
		return GoalResult{Verdict: Reject, Reason: "scorer_not_seated"}
	}

	// An own-goal is when the scoring player's seat matches the side
	// whose net the ball entered (they kicked it into their own goal).
	ownGoal := scorerSeat == goalSide

	return GoalResult{Verdict: Accept, OwnGoal: ownGoal}
}

// ValidateGameState checks that a proposed score/time transition is
// monotonic and rises by at most 1 on at most one side per step
// (spec §4.4, §8 invariants 1-2).
func (v *Validator) ValidateGameState(prevScore, nextScore entities.Score, prevGameTimeMs, nextGameTimeMs float64) Verdict {
	if nextGameTimeMs < prevGameTimeMs {
		return Reject
	}
	leftDelta := int(nextScore.Left) - int(prevScore.Left)
	rightDelta := int(nextScore.Right) - int(prevScore.Right)
	if leftDelta < 0 || rightDelta < 0 {
		return Reject
	}
	if leftDelta > 1 || rightDelta > 1 {
		return Reject
	}
	if leftDelta > 0 && rightDelta > 0 {
		return Reject
	}
	return Accept
}

// InputRateSignal observes whether a player's input rate is approaching
// the configured ceiling (spec §4.4: "Input-rate anomaly when observed
// rate >= 0.9*maxInputRate"). observedRate is events/sec over the
// trailing window.
func (v *Validator) InputRateSignal(playerID string, observedRate float64) *Signal {
	threshold := 0.9 * float64(v.cfg.MaxInputRate)
	if observedRate >= threshold {
		return &Signal{Kind: "input_rate_anomaly", Severity: SeverityLow, PlayerID: playerID}
	}
	return nil
}

// CheckInputRate enforces the maxInputRate plausibility ceiling over a
// trailing 1-second sliding window (spec §4.4, §8 boundary property 3,
// E4). It is distinct from internal/ratelimit's per-minute token
// buckets, which gate the movement event class as a whole rather than
// this per-message anti-cheat signal. An input that would push the
// window past the limit is rejected outright, not recorded, so a
// sustained flood stays capped at the ceiling instead of the window
// sliding forward with it.
func (v *Validator) CheckInputRate(playerID string, nowMs int64) (rejected bool, signal *Signal) {
	v.mu.Lock()
	defer v.mu.Unlock()

	cutoff := nowMs - 1000
	kept := v.inputWindows[playerID][:0]
	for _, t := range v.inputWindows[playerID] {
		if t > cutoff {
			kept = append(kept, t)
		}
	}

	if len(kept) >= v.cfg.MaxInputRate {
		v.inputWindows[playerID] = kept
		return true, nil
	}

	kept = append(kept, nowMs)
	v.inputWindows[playerID] = kept
	return false, v.InputRateSignal(playerID, float64(len(kept)))
}

// ReleaseInputWindow forgets a player's sliding window, called on
// disconnect so the map doesn't accumulate entries for players who never
// come back.
func (v *Validator) ReleaseInputWindow(playerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inputWindows, playerID)
}

func clampVec(v entities.Vec2, minX, maxX, minY, maxY float32) entities.Vec2 {
	out := v
	if out.X < minX {
		out.X = minX
	} else if out.X > maxX {
		out.X = maxX
	}
	if out.Y < minY {
		out.Y = minY
	} else if out.Y > maxY {
		out.Y = maxY
	}
	return out
}

func distance(a, b entities.Vec2) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Hypot(dx, dy)
}

func vecLen(v entities.Vec2) float32 {
	return float32(math.Hypot(float64(v.X), float64(v.Y)))
}

// NowMs is a small clock seam so callers (and tests) can supply a
// monotonic millisecond clock without this package importing time
// beyond what's needed for the type.
func NowMs(t time.Time) int64 {
	return t.UnixMilli()
}
