package connmgr

import (
	"testing"
	"time"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/entities"
	"github.com/headsoccer/server/internal/protocol"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(conn *Connection, env protocol.Envelope) {}

func newTestConnection(socketID string) *Connection {
	return &Connection{
		send:  make(chan []byte, 8),
		done:  make(chan struct{}),
		state: entities.NewConnection(socketID, time.Now().UnixMilli()),
	}
}

func newTestManager() *Manager {
	cfg := config.DefaultServerConfig()
	return New(cfg, protocol.New(), noopDispatcher{})
}

func TestManager_BindPlayerFreshConnection(t *testing.T) {
	m := newTestManager()
	conn := newTestConnection("sock-1")
	m.mu.Lock()
	m.byID[conn.SocketID()] = conn
	m.mu.Unlock()

	reconnected := m.BindPlayer(conn, "alice")
	if reconnected {
		t.Fatalf("expected a first-time bind to report reconnected=false")
	}
	if conn.PlayerID() != "alice" {
		t.Errorf("expected PlayerID to be bound, got %q", conn.PlayerID())
	}
	if got := m.ConnectionByPlayer("alice"); got != conn {
		t.Errorf("expected ConnectionByPlayer to return the bound connection")
	}
}

func TestManager_AddAndRemoveFromRoom(t *testing.T) {
	m := newTestManager()
	conn := newTestConnection("sock-1")

	m.AddToRoom("room-1", conn)
	if conn.RoomID() != "room-1" {
		t.Fatalf("expected conn to record room-1, got %q", conn.RoomID())
	}

	// Adding the same connection twice must not duplicate membership.
	m.AddToRoom("room-1", conn)
	m.mu.RLock()
	count := len(m.roomMembers["room-1"])
	m.mu.RUnlock()
	if count != 1 {
		t.Fatalf("expected exactly one membership entry, got %d", count)
	}

	m.RemoveFromRoom("room-1", conn)
	if conn.RoomID() != "" {
		t.Errorf("expected conn's room to be cleared after removal, got %q", conn.RoomID())
	}
	m.mu.RLock()
	_, stillPresent := m.roomMembers["room-1"]
	m.mu.RUnlock()
	if stillPresent {
		t.Errorf("expected an empty room to be pruned from roomMembers")
	}
}

func TestManager_BroadcastToRoomReachesMembersOnly(t *testing.T) {
	m := newTestManager()
	inRoom := newTestConnection("sock-1")
	outsideRoom := newTestConnection("sock-2")

	m.AddToRoom("room-1", inRoom)

	m.BroadcastToRoom("room-1", protocol.EventGameState, struct{}{})

	select {
	case <-inRoom.send:
	case <-time.After(time.Second):
		t.Fatalf("expected the room member to receive the broadcast frame")
	}

	select {
	case <-outsideRoom.send:
		t.Fatalf("expected a connection outside the room to receive nothing")
	default:
	}
}

func TestManager_NotifySendsOnlyToBoundPlayer(t *testing.T) {
	m := newTestManager()
	conn := newTestConnection("sock-1")
	m.mu.Lock()
	m.byPlayer["alice"] = conn
	m.mu.Unlock()

	m.Notify("alice", protocol.EventChatMessage, struct{}{})
	select {
	case <-conn.send:
	case <-time.After(time.Second):
		t.Fatalf("expected alice's connection to receive the notification")
	}

	// Notifying an unbound player must not panic or block.
	m.Notify("ghost", protocol.EventChatMessage, struct{}{})
}

func TestManager_RemoveConnClearsAllBookkeeping(t *testing.T) {
	m := newTestManager()
	conn := newTestConnection("sock-1")
	m.mu.Lock()
	m.byID[conn.SocketID()] = conn
	m.mu.Unlock()
	m.BindPlayer(conn, "alice")
	m.AddToRoom("room-1", conn)

	m.removeConn(conn)

	if m.ConnectionByPlayer("alice") != nil {
		t.Errorf("expected player binding to be cleared")
	}
	if m.ConnectionCount() != 0 {
		t.Errorf("expected connection count to drop to 0, got %d", m.ConnectionCount())
	}
	m.mu.RLock()
	_, present := m.roomMembers["room-1"]
	m.mu.RUnlock()
	if present {
		t.Errorf("expected room-1 membership to be cleared once its only member disconnects")
	}
}

func TestConnection_SetRoomTracksStatus(t *testing.T) {
	conn := newTestConnection("sock-1")
	conn.Authenticate("alice")
	if conn.Status() != entities.ConnAuthenticated {
		t.Fatalf("expected ConnAuthenticated after Authenticate, got %v", conn.Status())
	}

	conn.SetRoom("room-1")
	if conn.Status() != entities.ConnInRoom {
		t.Fatalf("expected ConnInRoom after SetRoom, got %v", conn.Status())
	}

	conn.SetRoom("")
	if conn.Status() != entities.ConnAuthenticated {
		t.Fatalf("expected status to fall back to ConnAuthenticated after leaving the room, got %v", conn.Status())
	}
}

type recordingDisconnectHandler struct {
	calls chan [2]string // [playerID, roomID]
}

func (h *recordingDisconnectHandler) OnDisconnect(playerID, roomID string) {
	h.calls <- [2]string{playerID, roomID}
}

func TestManager_RemoveConnNotifiesDisconnectHandlerWhenStillSeated(t *testing.T) {
	m := newTestManager()
	handler := &recordingDisconnectHandler{calls: make(chan [2]string, 1)}
	m.SetDisconnectHandler(handler)

	conn := newTestConnection("sock-1")
	m.mu.Lock()
	m.byID[conn.SocketID()] = conn
	m.mu.Unlock()
	m.BindPlayer(conn, "alice")
	m.AddToRoom("room-1", conn)

	m.removeConn(conn)

	select {
	case call := <-handler.calls:
		if call[0] != "alice" || call[1] != "room-1" {
			t.Errorf("expected OnDisconnect(alice, room-1), got %v", call)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected the disconnect handler to be notified")
	}
}

func TestManager_RemoveConnSkipsDisconnectHandlerWhenNotSeated(t *testing.T) {
	m := newTestManager()
	handler := &recordingDisconnectHandler{calls: make(chan [2]string, 1)}
	m.SetDisconnectHandler(handler)

	conn := newTestConnection("sock-1")
	m.mu.Lock()
	m.byID[conn.SocketID()] = conn
	m.mu.Unlock()
	m.BindPlayer(conn, "alice") // never joined a room

	m.removeConn(conn)

	select {
	case call := <-handler.calls:
		t.Fatalf("expected no disconnect notification for a player outside any room, got %v", call)
	default:
	}
}

func TestConnection_LastClaimedMovementRoundTrips(t *testing.T) {
	conn := newTestConnection("sock-1")
	pos, ts := conn.LastClaimedMovement()
	if pos != (entities.Vec2{}) || ts != 0 {
		t.Fatalf("expected a fresh connection to have zeroed last-claimed state, got pos=%+v ts=%d", pos, ts)
	}

	want := entities.Vec2{X: 12, Y: 34}
	conn.SetLastClaimedMovement(want, 5000)
	gotPos, gotTs := conn.LastClaimedMovement()
	if gotPos != want || gotTs != 5000 {
		t.Errorf("expected (%+v, 5000), got (%+v, %d)", want, gotPos, gotTs)
	}
}

func TestConnection_SendDropsWhenBufferFull(t *testing.T) {
	conn := &Connection{
		send:  make(chan []byte, 1),
		done:  make(chan struct{}),
		state: entities.NewConnection("sock-1", time.Now().UnixMilli()),
	}
	conn.Send([]byte("first"))
	conn.Send([]byte("second")) // buffer full, must be dropped silently

	first := <-conn.send
	if string(first) != "first" {
		t.Fatalf("expected the first queued frame to survive, got %q", first)
	}
	select {
	case extra := <-conn.send:
		t.Fatalf("expected no second frame to be queued, got %q", extra)
	default:
	}
}
