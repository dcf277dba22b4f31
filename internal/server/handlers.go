package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/headsoccer/server/internal/connmgr"
	"github.com/headsoccer/server/internal/entities"
	"github.com/headsoccer/server/internal/protocol"
	"github.com/headsoccer/server/internal/room"
	"github.com/headsoccer/server/internal/validator"
)

// registerHandlers wires every ingress event of spec §6.1 to its
// behavior. Grounded on the teacher's handleMessage type-switch,
// generalized into per-event registrations against the router.
func (s *Server) registerHandlers() {
	s.router.On("authenticate", s.handleAuthenticate)
	s.router.On("join_matchmaking", s.handleJoinMatchmaking)
	s.router.On("leave_matchmaking", s.handleLeaveMatchmaking)
	s.router.On("ready_up", s.handleReadyUp)
	s.router.On("player_input", s.handlePlayerInput)
	s.router.On("player_movement", s.handlePlayerInput)
	s.router.On("ball_update", s.handleBallUpdate)
	s.router.On("goal_attempt", s.handleGoalAttempt)
	s.router.On("chat_message", s.handleChatMessage)
	s.router.On("pause_request", s.handlePauseRequest)
	s.router.On("resume_request", s.handleResumeRequest)
	s.router.On("forfeit_game", s.handleForfeitGame)
	s.router.On("request_game_end", s.handleRequestGameEnd)
	s.router.On("join_room", s.handleJoinRoom)
	s.router.On("leave_room", s.handleLeaveRoom)
	s.router.On("ping_latency", s.handlePingLatency)
}

func (s *Server) errorTo(conn *connmgr.Connection, code, message string) {
	conn.Send(s.proto.MustEncode(protocol.EventErrorGeneric, protocol.PayloadEventError{Code: code, Message: message}))
}

// roomHandle pairs a resolved room with the requesting player's id, so
// a handler doesn't need to re-derive either after requireRoom.
type roomHandle struct {
	room     *room.Room
	playerID string
}

// requireRoom resolves the room the connection's player is currently
// seated in, or reports the error (spec §7 "Authorization" category).
func (s *Server) requireRoom(conn *connmgr.Connection) (*roomHandle, bool) {
	playerID := conn.PlayerID()
	if playerID == "" {
		s.errorTo(conn, "UNAUTHENTICATED", "connection has not authenticated")
		return nil, false
	}
	roomID := conn.RoomID()
	if roomID == "" {
		s.errorTo(conn, "NOT_IN_ROOM", "connection is not seated in a room")
		return nil, false
	}
	r, ok := s.rooms.get(roomID)
	if !ok {
		s.errorTo(conn, "ROOM_GONE", "room no longer exists")
		return nil, false
	}
	return &roomHandle{room: r, playerID: playerID}, true
}

func (s *Server) handleAuthenticate(conn *connmgr.Connection, payload json.RawMessage) {
	var p protocol.PayloadAuthenticate
	if err := s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p); err != nil {
		s.errorTo(conn, "BAD_PAYLOAD", "malformed authenticate payload")
		return
	}

	reconnected := s.conns.BindPlayer(conn, p.PlayerID)
	if p.CharacterID != "" {
		s.setCharacter(p.PlayerID, p.CharacterID)
	}

	if reconnected {
		conn.Send(s.proto.MustEncode(protocol.EventReconnected, map[string]interface{}{"playerId": p.PlayerID}))
		return
	}
	conn.Send(s.proto.MustEncode(protocol.EventAuthenticated, map[string]interface{}{"playerId": p.PlayerID, "username": p.Username}))
}

func (s *Server) handleJoinMatchmaking(conn *connmgr.Connection, payload json.RawMessage) {
	playerID := conn.PlayerID()
	if playerID == "" {
		s.errorTo(conn, "UNAUTHENTICATED", "must authenticate before matchmaking")
		return
	}
	var p protocol.PayloadJoinMatchmaking
	if err := s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p); err != nil {
		s.errorTo(conn, "BAD_PAYLOAD", "malformed join_matchmaking payload")
		return
	}

	res := s.mm.Join(playerID, entities.GameMode(p.GameMode), p.Preferences)
	if !res.Accepted {
		conn.Send(s.proto.MustEncode(protocol.EventMatchmakingError, map[string]interface{}{"code": res.Code, "reason": res.Reason}))
	}
}

func (s *Server) handleLeaveMatchmaking(conn *connmgr.Connection, payload json.RawMessage) {
	playerID := conn.PlayerID()
	if playerID == "" {
		return
	}
	var p protocol.PayloadLeaveMatchmaking
	_ = s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p)

	res := s.mm.Leave(playerID, p.Reason)
	if !res.Accepted {
		conn.Send(s.proto.MustEncode(protocol.EventMatchmakingError, map[string]interface{}{"code": res.Code, "reason": res.Reason}))
	}
}

func (s *Server) handleReadyUp(conn *connmgr.Connection, payload json.RawMessage) {
	playerID := conn.PlayerID()
	if playerID == "" {
		return
	}
	var p protocol.PayloadReadyUp
	_ = s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p)
	s.mm.SetReady(playerID, p.ReadyOrDefault())
}

func (s *Server) handlePlayerInput(conn *connmgr.Connection, payload json.RawMessage) {
	roomID, playerID := conn.RoomID(), conn.PlayerID()
	if roomID == "" || playerID == "" {
		return
	}
	r, ok := s.rooms.get(roomID)
	if !ok {
		return
	}

	nowMs := time.Now().UnixMilli()
	if rejected, signal := s.validate.CheckInputRate(playerID, nowMs); rejected {
		conn.Send(s.proto.MustEncode(protocol.EventRateLimitExceeded, protocol.PayloadRateLimitExceeded{
			EventClass:   "input",
			RetryAfterMs: 1000,
		}))
		return
	} else if signal != nil {
		log.Printf("room %s: anti-cheat signal %s (severity %d) for player %s", roomID, signal.Kind, signal.Severity, signal.PlayerID)
	}

	var p protocol.PayloadPlayerInput
	if err := s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p); err != nil {
		return
	}

	if p.Keys != nil {
		r.Input(playerID, entities.IntentFrame{
			Left: p.Keys.Left, Right: p.Keys.Right, Up: p.Keys.Up, Kick: p.Keys.Kick,
			SequenceID: p.SequenceID, TimestampMs: p.Timestamp,
		})
		return
	}

	if p.Position == nil || p.Velocity == nil {
		return
	}
	claimedPos := entities.Vec2{X: float32(p.Position.X), Y: float32(p.Position.Y)}
	claimedVel := entities.Vec2{X: float32(p.Velocity.X), Y: float32(p.Velocity.Y)}
	prevPos, prevTimeMs := conn.LastClaimedMovement()
	result := s.validate.ValidatePlayerMovement(playerID, claimedPos, claimedVel, p.Timestamp, prevPos, prevTimeMs, nowMs)
	conn.SetLastClaimedMovement(result.CorrectedPos, p.Timestamp)

	for _, sig := range result.Signals {
		log.Printf("room %s: anti-cheat signal %s (severity %d) for player %s", roomID, sig.Kind, sig.Severity, sig.PlayerID)
	}

	if result.Verdict == validator.Accept {
		conn.Send(s.proto.MustEncode(protocol.EventMovementAck, protocol.PayloadMovementAck{
			SequenceID:     p.SequenceID,
			ServerPosition: protocol.Vec2{X: float64(result.CorrectedPos.X), Y: float64(result.CorrectedPos.Y)},
		}))
		return
	}
	conn.Send(s.proto.MustEncode(protocol.EventMovementRejected, protocol.PayloadMovementRejected{
		Reason:         result.Reason,
		CorrectedState: protocol.Vec2{X: float64(result.CorrectedPos.X), Y: float64(result.CorrectedPos.Y)},
	}))
}

// handleBallUpdate validates a client-submitted ball physics claim
// against the plausibility thresholds (spec §4.4) but never applies it:
// the simulator (internal/physics) is the sole authority over ball
// state every tick (spec §4.1), so this is observation-only, matching
// §7's "room continues with server-authoritative value."
func (s *Server) handleBallUpdate(conn *connmgr.Connection, payload json.RawMessage) {
	roomID := conn.RoomID()
	if roomID == "" {
		return
	}
	var p protocol.PayloadBallUpdate
	if err := s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p); err != nil {
		return
	}
	claimedPos := entities.Vec2{X: float32(p.Position.X), Y: float32(p.Position.Y)}
	claimedVel := entities.Vec2{X: float32(p.Velocity.X), Y: float32(p.Velocity.Y)}
	s.validate.ValidateBallUpdate(claimedPos, claimedVel)
}

// handleGoalAttempt corroborates a client's goal claim against the
// authoritative simulation's own recent scoring rather than trusting or
// re-applying the claim (spec §4.4/§7).
func (s *Server) handleGoalAttempt(conn *connmgr.Connection, payload json.RawMessage) {
	roomID, playerID := conn.RoomID(), conn.PlayerID()
	if roomID == "" || playerID == "" {
		return
	}
	r, ok := s.rooms.get(roomID)
	if !ok {
		return
	}

	msSinceGoal, everScored := r.LastGoalInfo()
	snapshot := r.Snapshot()

	if !everScored || msSinceGoal > 250 {
		conn.Send(s.proto.MustEncode(protocol.EventGoalRejected, map[string]interface{}{"reason": "no_recent_goal"}))
		return
	}
	conn.Send(s.proto.MustEncode(protocol.EventGoalConfirmed, protocol.PayloadGoalConfirmed{
		Score:     snapshot.Score,
		GameEnded: snapshot.GameState == entities.StatusFinished.String(),
	}))
}

func (s *Server) handleChatMessage(conn *connmgr.Connection, payload json.RawMessage) {
	roomID, playerID := conn.RoomID(), conn.PlayerID()
	if roomID == "" || playerID == "" {
		return
	}
	var p protocol.PayloadChatMessage
	if err := s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p); err != nil {
		return
	}
	s.conns.BroadcastToRoom(roomID, protocol.EventChatMessage, protocol.PayloadChatBroadcast{
		SenderID:  playerID,
		Message:   p.Message,
		Type:      p.Type,
		Timestamp: p.Timestamp,
	})
}

func (s *Server) handlePauseRequest(conn *connmgr.Connection, payload json.RawMessage) {
	hdl, ok := s.requireRoom(conn)
	if !ok {
		return
	}
	var p protocol.PayloadPauseRequest
	_ = s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p)

	res := hdl.room.Pause(hdl.playerID, p.Reason)
	if !res.Accepted {
		s.errorTo(conn, res.Code, res.Reason)
		return
	}
	s.conns.BroadcastToRoom(conn.RoomID(), protocol.EventGamePaused, protocol.PayloadGamePaused{Reason: p.Reason, RequestedBy: hdl.playerID})
}

func (s *Server) handleResumeRequest(conn *connmgr.Connection, payload json.RawMessage) {
	hdl, ok := s.requireRoom(conn)
	if !ok {
		return
	}
	res := hdl.room.Resume(hdl.playerID)
	if !res.Accepted {
		s.errorTo(conn, res.Code, res.Reason)
		return
	}
	s.conns.BroadcastToRoom(conn.RoomID(), protocol.EventGameResumed, map[string]interface{}{})
}

func (s *Server) handleForfeitGame(conn *connmgr.Connection, payload json.RawMessage) {
	hdl, ok := s.requireRoom(conn)
	if !ok {
		return
	}
	seat, seated := hdl.room.SeatOf(hdl.playerID)
	if !seated {
		return
	}
	hdl.room.ForceEnd(entities.WinReasonForfeit, seat.Opposite(), true)
}

func (s *Server) handleRequestGameEnd(conn *connmgr.Connection, payload json.RawMessage) {
	hdl, ok := s.requireRoom(conn)
	if !ok {
		return
	}
	var p protocol.PayloadRequestGameEnd
	if err := s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p); err != nil {
		return
	}
	switch p.Reason {
	case "mutual_agreement":
		if !p.Confirmed {
			return
		}
		hdl.room.ForceEnd(entities.WinReasonMutualAgreement, entities.SeatNone, false)
	case "admin_request":
		if p.AdminCode == "" {
			s.errorTo(conn, "MISSING_ADMIN_CODE", "admin_request requires adminCode")
			return
		}
		hdl.room.ForceEnd(entities.WinReasonTechnicalIssue, entities.SeatNone, false)
	case "time_up":
		// The simulator itself already ends the room once gameTimeMs
		// reaches the time limit; nothing to do here.
	}
}

func (s *Server) handleJoinRoom(conn *connmgr.Connection, payload json.RawMessage) {
	playerID := conn.PlayerID()
	if playerID == "" {
		s.errorTo(conn, "UNAUTHENTICATED", "must authenticate before joining a room")
		return
	}
	var p protocol.PayloadJoinRoom
	if err := s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p); err != nil || p.RoomID == "" {
		s.errorTo(conn, "BAD_PAYLOAD", "join_room requires roomId")
		return
	}
	if _, ok := s.rooms.get(p.RoomID); !ok {
		s.errorTo(conn, "ROOM_NOT_FOUND", "no such room")
		return
	}
	s.conns.AddToRoom(p.RoomID, conn)
	conn.Send(s.proto.MustEncode(protocol.EventRoomAssigned, protocol.PayloadRoomAssigned{RoomID: p.RoomID}))
}

func (s *Server) handleLeaveRoom(conn *connmgr.Connection, payload json.RawMessage) {
	roomID, playerID := conn.RoomID(), conn.PlayerID()
	if roomID == "" {
		return
	}
	if r, ok := s.rooms.get(roomID); ok && playerID != "" {
		r.Leave(playerID, "left_voluntarily")
	}
	s.conns.RemoveFromRoom(roomID, conn)
}

func (s *Server) handlePingLatency(conn *connmgr.Connection, payload json.RawMessage) {
	var p protocol.PayloadPingLatency
	if err := s.proto.DecodePayload(protocol.Envelope{Payload: payload}, &p); err != nil {
		return
	}
	conn.Send(s.proto.MustEncode(protocol.EventPongLatency, protocol.PayloadPongLatency{
		ClientTime: p.ClientTime,
		ServerTime: time.Now().UnixMilli(),
	}))
}
