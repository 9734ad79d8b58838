package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/connectsphere/connectsphere/internal/logging"
	"github.com/connectsphere/connectsphere/internal/realtime"
	"github.com/connectsphere/connectsphere/internal/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second // must be less than wsPongWait
	wsSendBuffer = 32
)

// WSCommand is a client-to-server frame. The only actions are topic
// subscription management; all writes go through the REST API.
type WSCommand struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type wsError struct {
	Error string `json:"error"`
	Topic string `json:"topic,omitempty"`
}

type WSHandler struct {
	hub      *realtime.Hub
	tracker  *realtime.Tracker
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

func NewWSHandler(hub *realtime.Hub, tracker *realtime.Tracker, logger *logging.Logger) *WSHandler {
	if logger == nil {
		logger = logging.Default
	}
	return &WSHandler{
		hub:     hub,
		tracker: tracker,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Serve upgrades the connection and runs it until the client goes away.
// Attaching the connection marks the user online; the detach on return is
// the disconnect write, so it runs on clean close, network drop, and server
// shutdown alike.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}

	detach, err := h.tracker.Attach(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to mark user online", map[string]interface{}{
			"user_id": user.ID.String(),
			"error":   err.Error(),
		})
		conn.Close()
		return
	}

	client := &wsClient{
		handler: h,
		conn:    conn,
		userID:  user.ID,
		send:    make(chan []byte, wsSendBuffer),
		subs:    make(map[string]*realtime.Subscription),
		done:    make(chan struct{}),
	}

	go client.writeLoop()
	client.readLoop()

	client.shutdown()

	// The request context is gone once the handler returns, so the offline
	// write gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := detach(ctx); err != nil {
		h.logger.Error("Failed to mark user offline", map[string]interface{}{
			"user_id": user.ID.String(),
			"error":   err.Error(),
		})
	}
}

type wsClient struct {
	handler *WSHandler
	conn    *websocket.Conn
	userID  uuid.UUID
	send    chan []byte

	mu   sync.Mutex
	subs map[string]*realtime.Subscription

	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsClient) readLoop() {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd WSCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.sendJSON(wsError{Error: "malformed command"})
			continue
		}

		switch cmd.Action {
		case "subscribe":
			c.subscribe(cmd.Topic)
		case "unsubscribe":
			c.unsubscribe(cmd.Topic)
		default:
			c.sendJSON(wsError{Error: "unknown action"})
		}
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) subscribe(topic string) {
	if err := c.authorizeTopic(topic); err != "" {
		c.sendJSON(wsError{Error: err, Topic: topic})
		return
	}

	c.mu.Lock()
	if _, exists := c.subs[topic]; exists {
		c.mu.Unlock()
		return
	}
	sub := c.handler.hub.Subscribe(topic)
	c.subs[topic] = sub
	c.mu.Unlock()

	go c.pump(sub)
}

func (c *wsClient) unsubscribe(topic string) {
	c.mu.Lock()
	sub, ok := c.subs[topic]
	if ok {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// pump forwards hub events for one subscription to the socket.
func (c *wsClient) pump(sub *realtime.Subscription) {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			select {
			case c.send <- data:
			case <-c.done:
				return
			default:
				// Socket is backed up; the client refreshes over REST.
			}
		}
	}
}

// authorizeTopic returns an error message, or "" if the topic is allowed.
// Inbox topics are private to their owner, chat topics to their two
// participants. Presence is visible to any authenticated user.
func (c *wsClient) authorizeTopic(topic string) string {
	switch {
	case strings.HasPrefix(topic, "inbox:"):
		if topic != realtime.InboxTopic(c.userID) {
			return "cannot watch another user's inbox"
		}
		return ""
	case strings.HasPrefix(topic, "chat:"):
		a, b, err := services.ParseChatID(strings.TrimPrefix(topic, "chat:"))
		if err != nil {
			return "invalid chat topic"
		}
		if c.userID != a && c.userID != b {
			return "not a participant in this conversation"
		}
		return ""
	case strings.HasPrefix(topic, "presence:"):
		if _, err := uuid.Parse(strings.TrimPrefix(topic, "presence:")); err != nil {
			return "invalid presence topic"
		}
		return ""
	default:
		return "unknown topic"
	}
}

func (c *wsClient) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		for topic, sub := range c.subs {
			sub.Close()
			delete(c.subs, topic)
		}
		c.mu.Unlock()

		c.conn.Close()
	})
}
