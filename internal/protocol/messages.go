package protocol

// Event names, wire-format labels only (spec §9: keep string names only
// as labels, dispatch happens on a typed/enumerated event internally).
const (
	// Ingress (client -> server)
	EventAuthenticate     = "authenticate"
	EventJoinMatchmaking  = "join_matchmaking"
	EventLeaveMatchmaking = "leave_matchmaking"
	EventReadyUp          = "ready_up"
	EventPlayerInput      = "player_input"
	EventPlayerMovement   = "player_movement"
	EventBallUpdate       = "ball_update"
	EventGoalAttempt      = "goal_attempt"
	EventChatMessage      = "chat_message"
	EventPauseRequest     = "pause_request"
	EventResumeRequest    = "resume_request"
	EventForfeitGame      = "forfeit_game"
	EventRequestGameEnd   = "request_game_end"
	EventLeaveRoom        = "leave_room"
	EventJoinRoom         = "join_room"
	EventPingLatency      = "ping_latency"

	// Egress (server -> client)
	EventConnected          = "connected"
	EventAuthenticated      = "authenticated"
	EventReconnected        = "reconnected"
	EventAuthError          = "auth_error"
	EventQueueJoined        = "queue_joined"
	EventQueueLeft          = "queue_left"
	EventMatchmakingError   = "matchmaking_error"
	EventMatchFound         = "match_found"
	EventPlayerReadyUpdate  = "player_ready_update"
	EventMatchCancelled     = "match_cancelled"
	EventRoomAssigned       = "room_assigned"
	EventGameStarted        = "gameStarted"
	EventGameState          = "gameState"
	EventGamePaused         = "gamePaused"
	EventGameResumed        = "gameResumed"
	EventGameEnded          = "gameEnded"
	EventMovementAck        = "movement_ack"
	EventMovementRejected   = "movement_rejected"
	EventGoalConfirmed      = "goal_confirmed"
	EventGoalRejected       = "goal_rejected"
	EventRateLimitExceeded  = "rate_limit_exceeded"
	EventValidationError    = "validation_error"
	EventErrorGeneric       = "event_error"
	EventPongLatency        = "pong_latency"
	EventServerShutdown     = "server_shutdown"
)

// Keys holds the held-key bit flags of a player_input message
// (spec §6.1).
type Keys struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Up    bool `json:"up"`
	Kick  bool `json:"kick"`
}

// PayloadAuthenticate is the authenticate ingress payload.
type PayloadAuthenticate struct {
	PlayerID    string `json:"playerId"`
	Username    string `json:"username"`
	Token       string `json:"token,omitempty"`
	CharacterID string `json:"characterId,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// PayloadJoinMatchmaking is the join_matchmaking ingress payload.
type PayloadJoinMatchmaking struct {
	GameMode    string            `json:"gameMode"`
	Region      string            `json:"region,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Timestamp   int64             `json:"timestamp,omitempty"`
}

// PayloadLeaveMatchmaking is the leave_matchmaking ingress payload.
type PayloadLeaveMatchmaking struct {
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PayloadReadyUp is the ready_up ingress payload.
type PayloadReadyUp struct {
	Ready     *bool `json:"ready,omitempty"`
	Timestamp int64 `json:"timestamp,omitempty"`
}

// ReadyOrDefault returns the Ready flag, defaulting to true when absent
// (spec §6.1: "{ready?: bool = true}").
func (p PayloadReadyUp) ReadyOrDefault() bool {
	if p.Ready == nil {
		return true
	}
	return *p.Ready
}

// Vec2 is the wire shape of a 2-D position or velocity.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PayloadPlayerInput is the player_input / player_movement ingress
// payload. Intent form (Keys) takes precedence over movement form
// (Position/Velocity) when both are supplied (spec §6.1).
type PayloadPlayerInput struct {
	Keys        *Keys  `json:"keys,omitempty"`
	Position    *Vec2  `json:"position,omitempty"`
	Velocity    *Vec2  `json:"velocity,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	SequenceID  uint64 `json:"sequenceId,omitempty"`
}

// PayloadBallUpdate is the ball_update ingress payload.
type PayloadBallUpdate struct {
	Position  Vec2    `json:"position"`
	Velocity  Vec2    `json:"velocity"`
	Timestamp int64   `json:"timestamp"`
	Spin      float64 `json:"spin,omitempty"`
}

// PayloadGoalAttempt is the goal_attempt ingress payload.
type PayloadGoalAttempt struct {
	Position  Vec2    `json:"position"`
	Power     float64 `json:"power"`
	Direction Vec2    `json:"direction"`
	Timestamp int64   `json:"timestamp"`
}

// PayloadChatMessage is the chat_message ingress payload.
type PayloadChatMessage struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Target    string `json:"target,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PayloadChatBroadcast is the chat_message egress payload, relayed to
// recipients with the sender's identity attached.
type PayloadChatBroadcast struct {
	SenderID  string `json:"senderId"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// PayloadPauseRequest is the pause_request ingress payload.
type PayloadPauseRequest struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PayloadForfeitGame is the forfeit_game ingress payload.
type PayloadForfeitGame struct {
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PayloadRequestGameEnd is the request_game_end ingress payload.
type PayloadRequestGameEnd struct {
	Reason     string `json:"reason"`
	Confirmed  bool   `json:"confirmed,omitempty"`
	AdminCode  string `json:"adminCode,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

// PayloadJoinRoom is the join_room / leave_room ingress payload.
type PayloadJoinRoom struct {
	RoomID    string `json:"roomId,omitempty"`
	MatchID   string `json:"matchId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PayloadPingLatency is the ping_latency ingress payload.
type PayloadPingLatency struct {
	ClientTime int64 `json:"clientTime"`
}

// --- Egress payloads ---

// PayloadConnected is the connected egress payload.
type PayloadConnected struct {
	SocketID   string `json:"socketId"`
	ServerTime int64  `json:"serverTime"`
}

// PayloadMatchFound is the match_found egress payload.
type PayloadMatchFound struct {
	MatchID      string `json:"matchId"`
	Opponent     string `json:"opponent"`
	GameMode     string `json:"gameMode"`
	RoomID       string `json:"roomId"`
	ReadyTimeout int    `json:"readyTimeout"`
}

// PayloadMatchCancelled is the match_cancelled egress payload.
type PayloadMatchCancelled struct {
	Reason string `json:"reason"`
	Policy string `json:"policy"`
}

// PayloadRoomAssigned is the room_assigned egress payload.
type PayloadRoomAssigned struct {
	RoomID string `json:"roomId"`
}

// PlayerSnapshot is one player's entry in a gameState broadcast
// (spec §6.3).
type PlayerSnapshot struct {
	ID            string  `json:"id"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	VX            float64 `json:"vx"`
	VY            float64 `json:"vy"`
	Facing        int     `json:"facing"`
	Kicking       bool    `json:"kicking"`
	OnGround      bool    `json:"onGround"`
	Character     string  `json:"character"`
	KickCooldown  float64 `json:"kickCooldown"`
}

// BallSnapshot is the ball's entry in a gameState broadcast (spec §6.3).
type BallSnapshot struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	VX       float64 `json:"vx"`
	VY       float64 `json:"vy"`
	Rotation float64 `json:"rotation"`
	Trail    []Vec2  `json:"trail"`
}

// ScoreSnapshot is the score entry in a gameState broadcast.
type ScoreSnapshot struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// GameStateSnapshot is the full gameState broadcast payload
// (spec §6.3), emitted at tick cadence to every room member.
type GameStateSnapshot struct {
	Players   []PlayerSnapshot `json:"players"`
	Ball      BallSnapshot     `json:"ball"`
	Score     ScoreSnapshot    `json:"score"`
	GameTime  float64          `json:"gameTime"`
	GameState string           `json:"gameState"`
	Timestamp int64            `json:"timestamp"`
}

// PayloadMovementAck is the movement_ack egress payload.
type PayloadMovementAck struct {
	SequenceID     uint64 `json:"sequenceId"`
	ServerPosition Vec2   `json:"serverPosition"`
}

// PayloadMovementRejected is the movement_rejected egress payload.
type PayloadMovementRejected struct {
	Reason        string `json:"reason"`
	CorrectedState Vec2  `json:"correctedState"`
}

// PayloadGamePaused is the gamePaused egress payload.
type PayloadGamePaused struct {
	Reason      string `json:"reason"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

// PayloadGameEnded is the gameEnded egress payload, sent once by the
// Game-End Pipeline on a room's terminal transition (spec §4.2/§9
// component K).
type PayloadGameEnded struct {
	Winner    string        `json:"winner,omitempty"`
	WinReason string        `json:"winReason"`
	Score     ScoreSnapshot `json:"score"`
	DurationS float64       `json:"durationSeconds"`
}

// PayloadGoalConfirmed is the goal_confirmed egress payload.
type PayloadGoalConfirmed struct {
	Score     ScoreSnapshot `json:"score"`
	GameEnded bool          `json:"gameEnded"`
}

// PayloadRateLimitExceeded is the rate_limit_exceeded egress payload.
type PayloadRateLimitExceeded struct {
	EventClass string `json:"eventClass"`
	RetryAfterMs int64 `json:"retryAfterMs"`
}

// FieldError is one field-level validation failure (spec §4.3).
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// PayloadValidationError is the validation_error egress payload.
type PayloadValidationError struct {
	Event  string       `json:"event"`
	Errors []FieldError `json:"errors"`
}

// PayloadEventError is the generic event_error egress payload.
type PayloadEventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PayloadPongLatency is the pong_latency egress payload.
type PayloadPongLatency struct {
	ClientTime int64 `json:"clientTime"`
	ServerTime int64 `json:"serverTime"`
}
