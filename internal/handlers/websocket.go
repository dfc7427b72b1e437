package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mossy-p/webrtc-relay/config"
	"github.com/mossy-p/webrtc-relay/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBufferSize = 256
)

var ErrHubStopped = errors.New("signaling hub stopped")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	ID      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan models.Envelope
	limiter *rate.Limiter
	limits  config.LimitConfig
	logger  *slog.Logger
}

// HandleSignaling upgrades the request and attaches the connection to the hub.
// The connection starts unjoined; rooms are created and joined over the socket.
func HandleSignaling(hub *Hub, limits config.LimitConfig, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("failed to upgrade connection", "err", err)
			return
		}

		// Generate unique peer ID
		peerID := uuid.New().String()
		client := &Client{
			ID:      peerID,
			hub:     hub,
			conn:    conn,
			send:    make(chan models.Envelope, sendBufferSize),
			limiter: rate.NewLimiter(rate.Limit(limits.MessagesPerSecond), limits.MessageBurst),
			limits:  limits,
			logger:  logger.With("conn", peerID),
		}

		if !hub.Register(client) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}
		client.logger.Info("peer connected", "remote", conn.RemoteAddr().String())

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.logger.Info("peer disconnected")
	}()

	if c.limits.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.limits.MaxMessageBytes)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket error", "err", err)
			}
			break
		}

		if !c.limiter.Allow() {
			c.logger.Warn("rate limit exceeded, dropping message")
			continue
		}

		var msg models.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("failed to parse message", "err", err)
			continue
		}

		if !c.hub.submit(c, msg) {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Debug("failed to write message", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
