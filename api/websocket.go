package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"socdash/chatbot"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket configuration constants
const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	// Pings go out at nine tenths of it.
	pongWait = 60 * time.Second

	// maxMessageSize is the largest chat frame accepted from the peer.
	maxMessageSize = 64 * 1024

	sendChannelSize = 16
)

type wsErrorMessage struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// chatConn is one websocket chat session. Messages are answered in order
// on the read goroutine; replies go out through the write goroutine.
type chatConn struct {
	api       *API
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	sessionID string
	logger    *zap.SugaredLogger
}

func (a *API) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || a.originAllowed(origin)
		},
	}
}

// chatWebSocket upgrades the request and serves chat over the connection
// until either side closes it or the API stops
func (a *API) chatWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if len(sessionID) > maxSessionIDLength {
		writeError(w, http.StatusBadRequest, "sessionId is too long", nil, a.logger)
		return
	}

	conn, err := a.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		a.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	c := &chatConn{
		api:       a,
		conn:      conn,
		send:      make(chan []byte, sendChannelSize),
		done:      make(chan struct{}),
		sessionID: sessionID,
		logger:    LogWithRequestID(r.Context(), a.logger),
	}
	c.logger.Debugw("WebSocket chat connected", "remote_addr", a.clientIP(r))

	go c.writePump()
	c.readPump(r.Context())
}

// readPump reads chat requests until the connection fails
func (c *chatConn) readPump(ctx context.Context) {
	defer func() {
		close(c.done)
		c.conn.Close()
		c.logger.Debugw("WebSocket chat disconnected", "session_id", c.sessionID)
	}()

	wait := c.api.pongWait
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warnw("WebSocket read error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.writeError("only text frames are supported")
			continue
		}

		var req chatbot.ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.writeError("Invalid JSON body")
			continue
		}
		if req.SessionID == "" {
			req.SessionID = c.sessionID
		}
		if len(req.SessionID) > maxSessionIDLength {
			c.writeError("sessionId is too long")
			continue
		}

		resp, err := c.api.chat.Chat(ctx, req)
		// pongs queue up while Chat runs and are handled on the next read
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		if err != nil {
			message := "Failed to process chat message"
			if status := statusForError(err); status < http.StatusInternalServerError || status == http.StatusServiceUnavailable {
				message = err.Error()
			}
			c.logger.Warnw("WebSocket chat failed", "session_id", req.SessionID, "error", err)
			c.writeError(sanitizeErrorMessage(message))
			continue
		}
		c.sessionID = resp.SessionID
		c.write(resp)
	}
}

func (c *chatConn) writeError(message string) {
	c.write(wsErrorMessage{Success: false, Error: message})
}

func (c *chatConn) write(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Errorw("Failed to encode WebSocket message", "error", err)
		return
	}
	select {
	case c.send <- payload:
	case <-c.done:
	case <-c.api.stopCh:
	}
}

// writePump sends replies and keepalive pings. It owns all writes to conn.
func (c *chatConn) writePump() {
	ticker := time.NewTicker(c.api.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.api.stopCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case <-c.done:
			return
		}
	}
}
