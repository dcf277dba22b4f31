// Package server composes every component into one process-wide value
// (spec §9's explicit "no internal global singleton" redesign: a single
// constructible Server instead of package-level state, so a test can
// build as many independent instances as it needs). Grounded on the
// teacher's cmd/gameserver/main.go GameServer type, split along the
// component boundaries of spec §2 instead of holding matchmaker+
// protocol+connections directly.
package server

import (
	"fmt"
	"sync"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/broadcast"
	"github.com/headsoccer/server/internal/connmgr"
	"github.com/headsoccer/server/internal/gameend"
	"github.com/headsoccer/server/internal/matchmaker"
	"github.com/headsoccer/server/internal/protocol"
	"github.com/headsoccer/server/internal/ratelimit"
	"github.com/headsoccer/server/internal/room"
	"github.com/headsoccer/server/internal/router"
	"github.com/headsoccer/server/internal/store"
	"github.com/headsoccer/server/internal/validator"
)

// Server owns one process's worth of head soccer game state: every
// component of spec §2 wired together.
type Server struct {
	Cfg   *config.ServerConfig
	Store store.Store

	proto     *protocol.Protocol
	conns     *connmgr.Manager
	router    *router.Router
	mm        *matchmaker.Matchmaker
	broadcast *broadcast.Broadcaster
	gameend   *gameend.Pipeline
	validate  *validator.Validator
	rooms     *roomRegistry

	mu          sync.Mutex
	characterOf map[string]string // playerID -> chosen character, set at authenticate
}

// New builds a fully wired Server. Pass nil for st to use the mandatory
// in-memory Store (spec §6.4); pass a *store.Redis to back matchmaking
// queues and session records with Redis instead.
func New(cfg *config.ServerConfig, st store.Store) *Server {
	if st == nil {
		st = store.NewMemory()
	}

	s := &Server{
		Cfg:         cfg,
		Store:       st,
		proto:       protocol.New(),
		validate:    validator.New(cfg),
		rooms:       newRoomRegistry(),
		characterOf: make(map[string]string),
	}

	s.router = router.New(s.proto, router.DefaultClassOf)
	s.conns = connmgr.New(cfg, s.proto, s.router)
	s.router.SetLimiter(s.conns.Limiter())
	s.conns.SetDisconnectHandler(s)

	s.broadcast = broadcast.New(s.conns)
	s.mm = matchmaker.New(cfg, st, s.conns, s, s)
	s.gameend = gameend.New(cfg, st, s.conns, s)

	s.registerHandlers()
	s.mm.RunSweeper()

	return s
}

// CreateRoom satisfies matchmaker.RoomFactory: reserves a fresh Room in
// WAITING status, wired to this server's Broadcaster and Game-End
// Pipeline, but does not yet seat players (spec §4.5 tryPair()).
func (s *Server) CreateRoom() (string, error) {
	r, err := s.rooms.create(func(id string) *room.Room {
		rm := room.New(id, s.Cfg, s.broadcast)
		rm.SetOnTerminal(s.gameend.Handle)
		return rm
	})
	if err != nil {
		return "", err
	}
	return r.ID(), nil
}

// SeatAndStart satisfies matchmaker.RoomStarter: seats both players into
// the reserved room, marks them ready, and starts the tick driver
// (spec §4.5 setReady() -> Room Engine start()).
func (s *Server) SeatAndStart(roomID string, playerIDs [2]string) error {
	r, ok := s.rooms.get(roomID)
	if !ok {
		return fmt.Errorf("room %s no longer exists", roomID)
	}

	for _, pid := range playerIDs {
		character := s.characterFor(pid)
		if res := r.Join(pid, character); !res.Accepted {
			return fmt.Errorf("seating %s failed: %s", pid, res.Reason)
		}
		if conn := s.connectionFor(pid); conn != nil {
			s.conns.AddToRoom(roomID, conn)
		}
	}
	for _, pid := range playerIDs {
		r.SetReady(pid, true)
	}
	if res := r.Start(); !res.Accepted {
		return fmt.Errorf("starting room %s failed: %s", roomID, res.Reason)
	}
	r.RunLoop()

	s.conns.BroadcastToRoom(roomID, protocol.EventGameStarted, r.Snapshot())
	return nil
}

// ReleaseRoom satisfies gameend.Releaser: drops a finished room from the
// registry once its reconnect-grace retention window has elapsed.
func (s *Server) ReleaseRoom(roomID string) {
	if r, ok := s.rooms.get(roomID); ok {
		r.StopLoop()
	}
	s.rooms.remove(roomID)
	s.broadcast.Forget(roomID)
}

// OnDisconnect satisfies connmgr.DisconnectHandler: a socket that drops
// while still seated in a room (never having sent leave_room first)
// becomes a room-level leave, which starts the pause/disconnect-grace
// timer the tick driver consumes (spec §4.2 leave(), §5 "Disconnect
// grace", E6).
func (s *Server) OnDisconnect(playerID, roomID string) {
	if r, ok := s.rooms.get(roomID); ok {
		r.Leave(playerID, "disconnected")
	}
	s.validate.ReleaseInputWindow(playerID)
}

func (s *Server) characterFor(playerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.characterOf[playerID]; ok && c != "" {
		return c
	}
	return "default"
}

func (s *Server) setCharacter(playerID, character string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characterOf[playerID] = character
}

// connectionFor is a small seam so SeatAndStart can add the connection
// manager's live socket to room membership; it looks the connection up
// by playerID through the connection manager itself.
func (s *Server) connectionFor(playerID string) *connmgr.Connection {
	return s.conns.ConnectionByPlayer(playerID)
}

// ConnectionManager exposes the connection manager for the HTTP layer's
// /ws upgrade handler.
func (s *Server) ConnectionManager() *connmgr.Manager { return s.conns }

// Shutdown stops the matchmaker and notifies and closes all sockets
// (spec §5 "Graceful shutdown"). Room tick drivers are not stopped here.
func (s *Server) Shutdown() {
	s.mm.Stop()
	s.conns.Shutdown()
}

// Stats is the /stats endpoint's payload (spec §4.3 observability).
type Stats struct {
	Connections int           `json:"connections"`
	Rooms       int           `json:"rooms"`
	Router      router.Stats  `json:"router"`
}

// Snapshot returns current process-wide counters.
func (s *Server) Snapshot() Stats {
	return Stats{
		Connections: s.conns.ConnectionCount(),
		Rooms:       s.rooms.count(),
		Router:      s.router.Snapshot(),
	}
}
