// Package physics implements the deterministic, fixed-timestep
// rigid-body simulation of one room tick (spec §4.1).
//
// Tick is pure with respect to wall-clock time: given a RoomState and
// the current input intents for each seated player, it advances the
// room by exactly one Δt. It never reads the system clock and never
// panics on malformed input — callers (the validator, the router) are
// responsible for pre-validating anything that reaches here; a missing
// intent is simply treated as "no keys pressed" (spec §4.1 failure
// semantics).
package physics

import (
	"math"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/entities"
)

// Simulator advances a RoomState by one fixed timestep at a time. It
// holds no per-room state of its own — all state lives on the
// RoomState it is given (spec §4.1: deterministic given state+inputs).
type Simulator struct {
	cfg *config.ServerConfig
}

// New creates a Simulator bound to cfg's tick rate, score limit, time
// limit and goal-cooldown settings.
func New(cfg *config.ServerConfig) *Simulator {
	return &Simulator{cfg: cfg}
}

// Spawn initializes a room's ball and players to kickoff positions, all
// velocities zero (spec §4.1 spawn()).
func (s *Simulator) Spawn(room *entities.RoomState) {
	room.Ball = entities.NewBallState(config.FieldWidth/2, config.InitialBallY)

	if left := room.Players[0]; left != nil {
		left.Position = entities.Vec2{X: config.FieldWidth / 4, Y: config.SeatedY}
		left.Velocity = entities.Vec2{}
		left.OnGround = true
		left.Facing = 1
	}
	if right := room.Players[1]; right != nil {
		right.Position = entities.Vec2{X: config.FieldWidth * 3 / 4, Y: config.SeatedY}
		right.Velocity = entities.Vec2{}
		right.OnGround = true
		right.Facing = -1
	}
}

// Tick advances room by exactly one Δt. Per-tick order follows spec
// §4.1 precisely: cooldowns, player movement, ball movement,
// player-player collision, player-ball collision, kicks, goal check,
// end-condition check.
func (s *Simulator) Tick(room *entities.RoomState) {
	dt := s.cfg.DeltaSeconds()
	dtMs := dt * 1000

	for _, p := range room.Players {
		if p == nil {
			continue
		}
		s.stepKickCooldown(p, dtMs)
		s.stepPlayer(p, dt)
	}

	s.stepBall(room.Ball, dt)

	if room.Players[0] != nil && room.Players[1] != nil {
		s.resolvePlayerPlayerCollision(room.Players[0], room.Players[1])
	}

	for _, p := range room.Players {
		if p == nil {
			continue
		}
		s.resolvePlayerBallCollision(p, room.Ball)
	}

	// Kick resolution: left-seat-first (spec §4.1 step 6).
	for _, p := range room.Players {
		if p == nil {
			continue
		}
		s.resolveKick(p, room.Ball)
	}

	room.GameTimeMs += dtMs
	room.TickCount++

	s.checkGoal(room)
	s.checkEndCondition(room)
}

func (s *Simulator) stepKickCooldown(p *entities.PlayerState, dtMs float64) {
	p.KickCooldownMs -= float32(dtMs)
	if p.KickCooldownMs < 0 {
		p.KickCooldownMs = 0
	}
}

func (s *Simulator) stepPlayer(p *entities.PlayerState, dt float64) {
	intent := p.Intent

	if intent.Left {
		p.Velocity.X -= float32(config.MoveAccel * dt)
		p.Facing = -1
	}
	if intent.Right {
		p.Velocity.X += float32(config.MoveAccel * dt)
		p.Facing = 1
	}
	if intent.Up && p.OnGround {
		p.Velocity.Y = config.JumpVelocity
		p.OnGround = false
	}

	if intent.Kick && p.KickCooldownMs <= 0 {
		p.Kicking = true
	}

	if !p.OnGround {
		p.Velocity.Y += float32(config.Gravity * dt)
		p.Velocity = p.Velocity.Scale(config.AirDrag)
	} else {
		p.Velocity.X *= config.GroundDrag
	}

	p.Position = p.Position.Add(p.Velocity.Scale(float32(dt)))

	clampPlayerToField(p)
}

func clampPlayerToField(p *entities.PlayerState) {
	minX := float32(config.PlayerRadius)
	maxX := float32(config.FieldWidth - config.PlayerRadius)
	if p.Position.X < minX {
		p.Position.X = minX
		p.Velocity.X = 0
	} else if p.Position.X > maxX {
		p.Position.X = maxX
		p.Velocity.X = 0
	}

	ceilY := float32(config.PlayerRadius)
	floorY := float32(config.FloorY - config.PlayerRadius)
	if p.Position.Y < ceilY {
		p.Position.Y = ceilY
		if p.Velocity.Y < 0 {
			p.Velocity.Y = 0
		}
	}
	if p.Position.Y >= floorY {
		p.Position.Y = floorY
		if p.Velocity.Y > 0 {
			p.Velocity.Y = 0
		}
		p.OnGround = true
	} else {
		p.OnGround = false
	}
}

func (s *Simulator) stepBall(b *entities.BallState, dt float64) {
	b.Velocity.Y += float32(config.Gravity * dt)
	b.Velocity.X *= config.BallAirDragX
	b.Velocity.Y *= config.BallAirDragY

	b.Position = b.Position.Add(b.Velocity.Scale(float32(dt)))

	bounceBallOffWalls(b)

	b.PushTrail()
	b.Rotation += b.RotationSpeed * float32(dt)
	b.RotationSpeed = b.Velocity.X * 0.05
}

// bounceBallOffWalls bounces the ball off the floor, ceiling and side
// walls, but lets it pass through the goal mouths (spec §4.1 step 3:
// "the region y >= fieldHeight - goalHeight on left/right edges").
func bounceBallOffWalls(b *entities.BallState) {
	r := float32(config.BallRadius)

	minX := r
	maxX := float32(config.FieldWidth) - r
	inGoalMouthY := b.Position.Y+r >= float32(config.FieldHeight-config.GoalHeight)

	if b.Position.X < minX && !inGoalMouthY {
		b.Position.X = minX
		b.Velocity.X = -b.Velocity.X * config.Restitution
		b.Velocity.Y *= config.Friction
	} else if b.Position.X > maxX && !inGoalMouthY {
		b.Position.X = maxX
		b.Velocity.X = -b.Velocity.X * config.Restitution
		b.Velocity.Y *= config.Friction
	}

	ceilY := r
	floorY := float32(config.FloorY) - r
	if b.Position.Y < ceilY {
		b.Position.Y = ceilY
		b.Velocity.Y = -b.Velocity.Y * config.Restitution
		b.Velocity.X *= config.Friction
	}
	if b.Position.Y > floorY {
		b.Position.Y = floorY
		b.Velocity.Y = -b.Velocity.Y * config.Restitution
		b.Velocity.X *= config.Friction
	}

	speed := math.Hypot(float64(b.Velocity.X), float64(b.Velocity.Y))
	if speed > config.BallSpeedCeiling {
		scale := float32(config.BallSpeedCeiling / speed)
		b.Velocity = b.Velocity.Scale(scale)
	}
}

// resolvePlayerPlayerCollision separates two overlapping players along
// their center axis by equal halves and swaps 0.5x of each other's
// velocity (spec §4.1 step 4).
func (s *Simulator) resolvePlayerPlayerCollision(a, bP *entities.PlayerState) {
	dx := float64(a.Position.X - bP.Position.X)
	dy := float64(a.Position.Y - bP.Position.Y)
	dist := math.Hypot(dx, dy)
	minDist := 2 * config.PlayerRadius
	if dist == 0 || dist >= minDist {
		return
	}

	overlap := minDist - dist
	nx := float32(dx / dist)
	ny := float32(dy / dist)

	half := float32(overlap / 2)
	a.Position.X += nx * half
	a.Position.Y += ny * half
	bP.Position.X -= nx * half
	bP.Position.Y -= ny * half

	aVel, bVel := a.Velocity, bP.Velocity
	a.Velocity = aVel.Scale(config.PlayerPlayerSwapFactor).Add(bVel.Scale(config.PlayerPlayerSwapFactor))
	bP.Velocity = bVel.Scale(config.PlayerPlayerSwapFactor).Add(aVel.Scale(config.PlayerPlayerSwapFactor))
}

// resolvePlayerBallCollision does a minimum-translation separation of
// the ball away from the player and adds 0.3x of the player's velocity
// to the ball (spec §4.1 step 5).
func (s *Simulator) resolvePlayerBallCollision(p *entities.PlayerState, b *entities.BallState) {
	dx := float64(b.Position.X - p.Position.X)
	dy := float64(b.Position.Y - p.Position.Y)
	dist := math.Hypot(dx, dy)
	minDist := config.PlayerRadius + config.BallRadius
	if dist == 0 || dist >= minDist {
		return
	}

	overlap := minDist - dist
	nx := float32(dx / dist)
	ny := float32(dy / dist)

	b.Position.X += nx * float32(overlap)
	b.Position.Y += ny * float32(overlap)

	b.Velocity = b.Velocity.Add(p.Velocity.Scale(config.PlayerBallPushFactor))
	b.LastTouchedBy = p.ID
}

// resolveKick applies a kick impulse if the player's kicking flag is
// set and the ball is within range (spec §4.1 step 6). Consumes the
// kicking flag and starts the cooldown regardless of whether the kick
// actually connects, matching "reset the player kicking flag to
// consumed state and set cooldown" applying once intent is sampled.
func (s *Simulator) resolveKick(p *entities.PlayerState, b *entities.BallState) {
	if !p.Kicking {
		return
	}
	p.Kicking = false
	p.KickCooldownMs = config.KickCooldownInit

	dx := float64(b.Position.X - p.Position.X)
	dy := float64(b.Position.Y - p.Position.Y)
	dist := math.Hypot(dx, dy)
	if dist > config.KickRange {
		return
	}

	b.Velocity.X += float32(config.KickPower) * float32(p.Facing)
	b.Velocity.Y += float32(config.KickUpwardBias)
	b.LastTouchedBy = p.ID
}

// checkGoal scores a goal when the goal cooldown has elapsed and the
// ball's full circumference is inside a goal mouth (spec §4.1 step 7).
// Left-seat-first: in the impossible case both conditions match in one
// tick, left is checked first (spec §4.1 numeric policy).
func (s *Simulator) checkGoal(room *entities.RoomState) {
	if room.GameTimeMs-room.LastGoalMs < float64(s.cfg.GoalCooldownMs) {
		return
	}

	b := room.Ball
	r := float32(config.BallRadius)

	// "Full circumference inside the goal mouth": the ball's whole body
	// must be within the vertical band of the mouth and have crossed
	// fully past the goal line into the goalWidth-deep recess.
	inVerticalBand := b.Position.Y-r >= float32(config.FieldHeight-config.GoalHeight)

	leftGoal := b.Position.X+r <= float32(config.GoalWidth) && inVerticalBand
	rightGoal := b.Position.X-r >= float32(config.FieldWidth-config.GoalWidth) && inVerticalBand

	switch {
	case leftGoal:
		room.Score.Right++
		room.LastGoalMs = room.GameTimeMs
		s.resetBall(room)
	case rightGoal:
		room.Score.Left++
		room.LastGoalMs = room.GameTimeMs
		s.resetBall(room)
	}
}

func (s *Simulator) resetBall(room *entities.RoomState) {
	room.Ball.Position = entities.Vec2{X: config.FieldWidth / 2, Y: config.InitialBallY}
	room.Ball.Velocity = entities.Vec2{}
}

// checkEndCondition marks the room Finished once a score or time limit
// is reached (spec §4.1 step 8).
func (s *Simulator) checkEndCondition(room *entities.RoomState) {
	limit := uint16(s.cfg.ScoreLimit)
	timeLimitMs := float64(s.cfg.TimeLimitSec) * 1000

	switch {
	case room.Score.Left >= limit:
		s.finish(room, entities.SeatLeft, entities.WinReasonScoreLimit)
	case room.Score.Right >= limit:
		s.finish(room, entities.SeatRight, entities.WinReasonScoreLimit)
	case room.GameTimeMs >= timeLimitMs:
		winner := entities.SeatNone
		switch {
		case room.Score.Left > room.Score.Right:
			winner = entities.SeatLeft
		case room.Score.Right > room.Score.Left:
			winner = entities.SeatRight
		}
		s.finish(room, winner, entities.WinReasonTimeLimit)
	}
}

func (s *Simulator) finish(room *entities.RoomState, winner entities.Seat, reason entities.WinReason) {
	room.Status = entities.StatusFinished
	room.Winner = winner
	room.WinnerSet = true
	room.WinReason = reason
}
