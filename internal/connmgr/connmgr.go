// Package connmgr implements the Connection Manager of spec §4.3: it
// owns the socket table, the connect/authenticate/room-membership
// lifecycle, outbound fan-out, heartbeat liveness, and reconnect grace.
// Grounded on the teacher's cmd/gameserver/main.go ClientConnection/
// readPump/writePump shape, generalized from a binary protocol to JSON
// envelopes and from a single global room to per-room membership.
package connmgr

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/entities"
	"github.com/headsoccer/server/internal/protocol"
	"github.com/headsoccer/server/internal/ratelimit"
)

// Dispatcher receives a decoded envelope for an already-identified
// connection. The router package implements this; connmgr depends on
// it only through this interface to avoid an import cycle.
type Dispatcher interface {
	Dispatch(conn *Connection, env protocol.Envelope)
}

// DisconnectHandler is notified when a socket that was seated in a room
// closes without having left voluntarily first, so the room engine's
// disconnect-grace path (spec §4.2 leave(), §5 "Disconnect grace") can
// run. The server implements this; connmgr depends on it only through
// this interface to avoid an import cycle with internal/room.
type DisconnectHandler interface {
	OnDisconnect(playerID, roomID string)
}

// Connection is one accepted socket plus its buffered writer goroutine.
// Mirrors the teacher's ClientConnection, adding the fields spec §3's
// Connection entity requires (PlayerID, RoomID, Status, rate buckets).
type Connection struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu    sync.RWMutex
	state *entities.Connection

	mgr *Manager
}

// SocketID returns the connection's stable socket identifier.
func (c *Connection) SocketID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.SocketID
}

// PlayerID returns the authenticated player id, or "" if unauthenticated.
func (c *Connection) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.PlayerID
}

// RoomID returns the room this connection is currently seated in, or "".
func (c *Connection) RoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.RoomID
}

// Status returns the connection's lifecycle status.
func (c *Connection) Status() entities.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Status
}

// Authenticate binds a playerID to the socket (spec §4.3 authenticate()).
func (c *Connection) Authenticate(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.PlayerID = playerID
	c.state.Status = entities.ConnAuthenticated
}

// SetRoom records the room this connection is currently seated in
// (spec §4.3 addToRoom()/removeFromRoom()).
func (c *Connection) SetRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.RoomID = roomID
	if roomID == "" {
		if c.state.Status == entities.ConnInRoom || c.state.Status == entities.ConnInGame {
			c.state.Status = entities.ConnAuthenticated
		}
		return
	}
	c.state.Status = entities.ConnInRoom
}

// SetInGame marks the connection as actively playing (post room_assigned
// / gameStarted).
func (c *Connection) SetInGame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.RoomID != "" {
		c.state.Status = entities.ConnInGame
	}
}

// LastClaimedMovement returns the last accepted-or-corrected
// position/timestamp recorded for this connection, for the plausibility
// gate's implied-speed check (spec §4.4).
func (c *Connection) LastClaimedMovement() (entities.Vec2, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.LastClaimedPos, c.state.LastClaimedTimeMs
}

// SetLastClaimedMovement records the server's accepted-or-corrected view
// of a player's position at clientTimestampMs, so the next claim can be
// checked for implied speed against it.
func (c *Connection) SetLastClaimedMovement(pos entities.Vec2, clientTimestampMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastClaimedPos = pos
	c.state.LastClaimedTimeMs = clientTimestampMs
}

// touch updates LastSeenMs, called on every inbound frame and pong.
func (c *Connection) touch(nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastSeenMs = nowMs
}

// Send queues an already-encoded frame. Non-blocking: a full buffer
// drops the frame rather than stalling the connection's goroutines
// (teacher's Send()).
func (c *Connection) Send(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		log.Printf("connmgr: dropping frame for %s, send buffer full", c.SocketID())
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	alreadyClosed := c.state.Status == entities.ConnDisconnected
	c.state.Status = entities.ConnDisconnected
	c.mu.Unlock()
	if alreadyClosed {
		return
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.ws.Close()
}

// Manager owns the live socket table (spec §4.3, §5 "connection table
// owned by the Connection Manager behind a reader-writer discipline").
type Manager struct {
	cfg        *config.ServerConfig
	proto      *protocol.Protocol
	dispatcher Dispatcher
	disconnect DisconnectHandler
	limiter    *ratelimit.Limiter

	mu          sync.RWMutex
	byID        map[string]*Connection   // socketID -> connection
	byPlayer    map[string]*Connection   // playerID -> connection
	roomMembers map[string][]*Connection // roomID -> connections

	shuttingDown bool
}

// New creates a Manager. dispatcher is the router; it's injected so
// connmgr has no compile-time dependency on router's handler registry.
func New(cfg *config.ServerConfig, proto *protocol.Protocol, dispatcher Dispatcher) *Manager {
	return &Manager{
		cfg:         cfg,
		proto:       proto,
		dispatcher:  dispatcher,
		limiter:     ratelimit.New(ratelimit.Limits{General: cfg.GeneralRateLimit, Chat: cfg.ChatRateLimit, Movement: cfg.MovementRateLimit, Matchmaking: cfg.MatchmakingRateLimit}),
		byID:        make(map[string]*Connection),
		byPlayer:    make(map[string]*Connection),
		roomMembers: make(map[string][]*Connection),
	}
}

// Limiter exposes the shared rate limiter so the router can gate events
// by class before dispatch (spec §4.3).
func (m *Manager) Limiter() *ratelimit.Limiter {
	return m.limiter
}

// SetDisconnectHandler registers the callback invoked when a socket
// seated in a room closes unexpectedly (spec §4.3 cleanup()). Set after
// construction since the handler (the server) is built from the manager,
// not the other way around.
func (m *Manager) SetDisconnectHandler(h DisconnectHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnect = h
}

// OnConnect accepts an upgraded socket, registers it, and starts its
// read/write pumps (spec §4.3 onConnect()). socketID is caller-supplied
// (uuid, typically) so ids never collide across reconnects.
func (m *Manager) OnConnect(ws *websocket.Conn, socketID string) *Connection {
	conn := &Connection{
		ws:    ws,
		send:  make(chan []byte, 256),
		done:  make(chan struct{}),
		state: entities.NewConnection(socketID, time.Now().UnixMilli()),
		mgr:   m,
	}

	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		ws.Close()
		return nil
	}
	m.byID[socketID] = conn
	m.mu.Unlock()

	conn.Send(m.proto.MustEncode(protocol.EventConnected, protocol.PayloadConnected{
		SocketID:   socketID,
		ServerTime: time.Now().UnixMilli(),
	}))

	go conn.writePump(m.cfg)
	go conn.readPump(m)

	return conn
}

// BindPlayer associates an authenticated playerID with its connection
// (spec §4.3 authenticate()). If a prior connection is registered under
// the same playerID, it is treated as the stale half of a reconnect and
// closed (spec §9 "reconnection path reuses the prior connection's
// player/room identity").
func (m *Manager) BindPlayer(conn *Connection, playerID string) (reconnected bool) {
	m.mu.Lock()
	prior, had := m.byPlayer[playerID]
	m.byPlayer[playerID] = conn
	m.mu.Unlock()

	conn.Authenticate(playerID)

	if had && prior != conn {
		roomID := prior.RoomID()
		// Clear the stale half's room first so its cleanup does not report
		// a disconnect and vacate the seat the new socket takes over.
		prior.SetRoom("")
		prior.Close()
		if roomID != "" {
			conn.SetRoom(roomID)
			m.AddToRoom(roomID, conn)
			return true
		}
	}
	return false
}

// AddToRoom registers conn as a member of roomID for broadcast fan-out
// (spec §4.3 addToRoom()).
func (m *Manager) AddToRoom(roomID string, conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roomMembers[roomID] {
		if existing == conn {
			return
		}
	}
	m.roomMembers[roomID] = append(m.roomMembers[roomID], conn)
	conn.SetRoom(roomID)
}

// RemoveFromRoom unregisters conn from roomID (spec §4.3 removeFromRoom()).
func (m *Manager) RemoveFromRoom(roomID string, conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.roomMembers[roomID]
	for i, existing := range members {
		if existing == conn {
			m.roomMembers[roomID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(m.roomMembers[roomID]) == 0 {
		delete(m.roomMembers, roomID)
	}
	conn.SetRoom("")
}

// BroadcastToRoom sends an encoded event to every connection currently
// registered under roomID (spec §4.3 broadcastToRoom(), §4.5 component J).
func (m *Manager) BroadcastToRoom(roomID, event string, payload interface{}) {
	data := m.proto.MustEncode(event, payload)
	m.mu.RLock()
	members := append([]*Connection(nil), m.roomMembers[roomID]...)
	m.mu.RUnlock()
	for _, c := range members {
		c.Send(data)
	}
}

// BroadcastToAll sends an encoded event to every connected socket
// (spec §4.3 broadcastToAll()), used for server_shutdown notices.
func (m *Manager) BroadcastToAll(event string, payload interface{}) {
	data := m.proto.MustEncode(event, payload)
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.byID))
	for _, c := range m.byID {
		conns = append(conns, c)
	}
	m.mu.RUnlock()
	for _, c := range conns {
		c.Send(data)
	}
}

// Notify sends an encoded event to a single authenticated player,
// if currently connected (spec §4.3 sendToPlayer()). Satisfies
// matchmaker.Notifier.
func (m *Manager) Notify(playerID, event string, payload interface{}) {
	m.mu.RLock()
	conn, ok := m.byPlayer[playerID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	conn.Send(m.proto.MustEncode(event, payload))
}

// removeConn tears down bookkeeping for a closed socket (cleanup(), per
// the teacher). It does not itself decide the room's fate: it reports
// the drop to the registered DisconnectHandler, which starts the room's
// disconnect-grace/pause path (internal/room) since a reconnect may
// still arrive.
func (m *Manager) removeConn(conn *Connection) {
	playerID := conn.PlayerID()
	roomID := conn.RoomID()

	m.mu.Lock()
	delete(m.byID, conn.SocketID())
	if playerID != "" {
		if cur, ok := m.byPlayer[playerID]; ok && cur == conn {
			delete(m.byPlayer, playerID)
		}
	}
	for rID, members := range m.roomMembers {
		for i, existing := range members {
			if existing == conn {
				m.roomMembers[rID] = append(members[:i], members[i+1:]...)
				break
			}
		}
		if len(m.roomMembers[rID]) == 0 {
			delete(m.roomMembers, rID)
		}
	}
	disconnect := m.disconnect
	m.mu.Unlock()
	m.limiter.Release(conn.SocketID())

	if disconnect != nil && playerID != "" && roomID != "" {
		disconnect.OnDisconnect(playerID, roomID)
	}
}

// ConnectionByPlayer returns the live connection bound to playerID, if
// any, so callers outside connmgr (e.g. the matchmaker's SeatAndStart)
// can register it into a room's membership.
func (m *Manager) ConnectionByPlayer(playerID string) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byPlayer[playerID]
}

// ConnectionCount returns the number of live sockets, for /stats.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Shutdown notifies every connected socket, stops accepting new work,
// and closes all sockets (spec §5 "Graceful shutdown: ... notifies
// sockets, stops accepting new connections, awaits in-flight
// broadcasts, then exits").
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shuttingDown = true
	conns := make([]*Connection, 0, len(m.byID))
	for _, c := range m.byID {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	m.BroadcastToAll(protocol.EventServerShutdown, struct{}{})
	time.Sleep(200 * time.Millisecond) // let in-flight writes flush

	for _, c := range conns {
		c.Close()
	}
}
