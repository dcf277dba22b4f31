package entities

// ConnectionStatus is the lifecycle state of a Connection (spec §3).
type ConnectionStatus int

const (
	ConnUnauthenticated ConnectionStatus = iota
	ConnAuthenticated
	ConnInRoom
	ConnInGame
	ConnDisconnected
)

// RateBucketState is one event class's token bucket (spec §3,
// internal/ratelimit owns the mutation logic; this is the stored shape).
type RateBucketState struct {
	Tokens     float64
	LastRefill int64 // unix millis
}

// Connection is exclusively owned by the Connection Manager; every
// other component holds only PlayerID or SocketID references (spec §3).
type Connection struct {
	SocketID string
	PlayerID string // empty until authenticated

	RoomID string // empty until seated

	Status ConnectionStatus

	RateBuckets map[string]*RateBucketState

	LastSeenMs int64

	// LastClaimedPos/LastClaimedTimeMs are the last accepted-or-corrected
	// movement claim for this connection's player, fed back into the
	// plausibility gate's implied-speed check (spec §4.4) as the previous
	// state. Zero until the first player_input/player_movement with a
	// position claim arrives.
	LastClaimedPos    Vec2
	LastClaimedTimeMs int64
}

// NewConnection creates an Unauthenticated connection for a freshly
// accepted socket (spec §4.3 onConnect).
func NewConnection(socketID string, nowMs int64) *Connection {
	return &Connection{
		SocketID:    socketID,
		Status:      ConnUnauthenticated,
		RateBuckets: make(map[string]*RateBucketState),
		LastSeenMs:  nowMs,
	}
}
