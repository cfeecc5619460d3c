package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/dreamfocus/internal/focuser"
	"github.com/muurk/dreamfocus/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Per-client send queue; a client further behind than this is dropped
	sendQueueSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only telemetry on a trusted network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusMessage is the wire form of a snapshot on the feed.
type StatusMessage struct {
	Position         int32   `json:"position"`
	Moving           bool    `json:"moving"`
	Absolute         bool    `json:"absolute"`
	TemperatureC     float64 `json:"temperature_c"`
	HumidityPercent  float64 `json:"humidity_percent"`
	Parked           bool    `json:"parked"`
	FirmwareVersion  string  `json:"firmware_version,omitempty"`
	Degraded         bool    `json:"degraded"`
	EnvDegraded      bool    `json:"env_degraded"`
	PositionDegraded bool    `json:"position_degraded"`
	Settled          bool    `json:"settled"`
	At               string  `json:"at"`
}

func newStatusMessage(snap focuser.Snapshot) StatusMessage {
	return StatusMessage{
		Position:         snap.Position,
		Moving:           snap.Moving,
		Absolute:         snap.Absolute,
		TemperatureC:     snap.TemperatureCelsius(),
		HumidityPercent:  snap.HumidityPercent,
		Parked:           snap.Park == focuser.Parked,
		FirmwareVersion:  snap.FirmwareVersion,
		Degraded:         snap.Degraded,
		EnvDegraded:      snap.EnvDegraded,
		PositionDegraded: snap.PositionDegraded,
		Settled:          snap.Settled,
		At:               snap.At.UTC().Format(time.RFC3339Nano),
	}
}

// client is one websocket subscriber. Writes go through the send queue
// so the broadcast path never blocks on a peer.
type client struct {
	conn       *websocket.Conn
	remoteAddr string
	send       chan StatusMessage
}

// handleWebSocket upgrades the request and streams snapshots until the
// peer disconnects or falls behind.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		send:       make(chan StatusMessage, sendQueueSize),
	}
	logging.LogConnection(c.remoteAddr, "feed_subscribed")

	s.addClient(c)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		s.readPump(c)
	}()
}

// writePump drains the send queue to the peer and keeps the connection
// alive with pings. It exits when the queue is closed or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		logging.LogConnection(c.remoteAddr, "feed_closed")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Debug("Feed write failed",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages (the feed is one-way) but keeps
// reading so pongs and close frames are processed.
func (s *Server) readPump(c *client) {
	defer s.removeClient(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
