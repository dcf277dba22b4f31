package connmgr

import (
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/headsoccer/server/config"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
)

// writePump drains the connection's send channel to the socket and
// emits periodic pings, mirroring the teacher's writePump 1:1 aside
// from the configurable heartbeat interval (spec §4.3 heartbeat).
func (c *Connection) writePump(cfg *config.ServerConfig) {
	interval := time.Duration(cfg.ConnectionTimeoutMs) * time.Millisecond / 3
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer c.cleanup()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads inbound frames and hands decoded envelopes to the
// router via mgr.dispatcher. Liveness follows spec §5's
// connectionTimeout: the read deadline is extended on every pong and on
// every successfully parsed frame (spec §4.3 onConnect()/heartbeat).
func (c *Connection) readPump(mgr *Manager) {
	defer c.cleanup()

	c.ws.SetReadLimit(maxMessageSize)
	deadline := time.Duration(mgr.cfg.ConnectionTimeoutMs) * time.Millisecond
	c.ws.SetReadDeadline(time.Now().Add(deadline))
	c.ws.SetPongHandler(func(string) error {
		c.touch(time.Now().UnixMilli())
		c.ws.SetReadDeadline(time.Now().Add(deadline))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("connmgr: read error on %s: %v", c.SocketID(), err)
			}
			return
		}

		c.touch(time.Now().UnixMilli())
		c.ws.SetReadDeadline(time.Now().Add(deadline))

		env, err := mgr.proto.DecodeEnvelope(data)
		if err != nil {
			continue
		}
		mgr.dispatcher.Dispatch(c, env)
	}
}

// cleanup tears down the connection from the manager's tables, mirroring
// the teacher's cleanup(). Both readPump and writePump defer it, so it
// runs once from each pump; removeConn and Close are safe to repeat.
func (c *Connection) cleanup() {
	c.mgr.removeConn(c)
	c.Close()
}
