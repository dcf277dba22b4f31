// Package main implements the head soccer multiplayer game server.
//
// Architecture Overview:
// - Uses WebSocket for real-time bidirectional communication with clients
// - Each room runs its own physics loop at a fixed tick rate (spec's
//   server-authoritative simulation)
// - Game state is broadcast to clients once per tick, throttled to
//   skip byte-identical snapshots
// - A plausibility validator screens player/ball/goal claims server-side
//
// Connection Flow:
// 1. Client connects via WebSocket to /ws
// 2. Client sends authenticate, then join_matchmaking
// 3. Matchmaker pairs two queued players and reserves a room
// 4. Both ready up; the room seats them and starts its tick driver
// 5. Clients exchange player_input/gameState until the room finishes
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/headsoccer/server/config"
	"github.com/headsoccer/server/internal/server"
	"github.com/headsoccer/server/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.LoadFromEnv(config.DefaultServerConfig())

	st := buildStore(cfg)
	srv := server.New(cfg, st)

	httpServer := newHTTPServer(cfg, srv)

	log.Printf("=================================")
	log.Printf("  Head Soccer Game Server")
	log.Printf("=================================")
	log.Printf("  Host: %s", cfg.Host)
	log.Printf("  Port: %d", cfg.Port)
	log.Printf("  Tick Rate: %d Hz", cfg.TickHz)
	log.Printf("  Score Limit: %d", cfg.ScoreLimit)
	log.Printf("  Time Limit: %ds", cfg.TimeLimitSec)
	log.Printf("=================================")

	go awaitShutdown(srv, httpServer)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// buildStore wires the mandatory in-memory Store, or a Redis-backed one
// when HS_REDIS_URL is set (spec §6.4).
func buildStore(cfg *config.ServerConfig) store.Store {
	if cfg.RedisURL == "" {
		return store.NewMemory()
	}
	log.Printf("using redis store at %s", cfg.RedisURL)
	return store.NewRedis(cfg.RedisURL)
}

func newHTTPServer(cfg *config.ServerConfig, srv *server.Server) *http.Server {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.EnableCORS
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, srv, upgrader)
	})
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		handleStats(w, r, srv)
	})

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
}

// handleWebSocket upgrades the HTTP connection and registers it with the
// connection manager, which owns its read/write pumps from here on.
func handleWebSocket(w http.ResponseWriter, r *http.Request, srv *server.Server, upgrader websocket.Upgrader) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	socketID := uuid.NewString()
	conn := srv.ConnectionManager().OnConnect(ws, socketID)
	if conn == nil {
		// Manager is mid-shutdown; OnConnect already closed the socket.
		return
	}
	log.Printf("new connection %s from %s", socketID, ws.RemoteAddr())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStats(w http.ResponseWriter, r *http.Request, srv *server.Server) {
	stats := srv.Snapshot()
	body, err := json.Marshal(stats)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// awaitShutdown blocks on SIGINT/SIGTERM, then drains connections and
// stops the HTTP listener (spec §5 "Graceful shutdown").
func awaitShutdown(srv *server.Server, httpServer *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Printf("shutdown signal received, draining connections")
	srv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}
