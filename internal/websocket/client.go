package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arena-wallet/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Identity is the authenticated user behind a connection
type Identity struct {
	UserID  string
	IsAdmin bool
}

// Client represents a WebSocket client connection
type Client struct {
	id      string
	userID  string
	isAdmin bool
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	logger  *slog.Logger
}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, who Identity, logger *slog.Logger) *Client {
	return &Client{
		id:      uuid.New().String(),
		userID:  who.UserID,
		isAdmin: who.IsAdmin,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		logger:  logger,
	}
}

// CanSubscribe reports whether the client may follow topic. Users see the
// public tournament feed and their own topic; admins also see the admin feed.
func (c *Client) CanSubscribe(topic string) bool {
	switch {
	case topic == domain.TopicTournaments:
		return true
	case topic == domain.TopicAdmin:
		return c.isAdmin
	case strings.HasPrefix(topic, "user:"):
		return c.isAdmin || (c.userID != "" && topic == domain.UserTopic(c.userID))
	}
	return false
}

// defaultTopics returns the topics a fresh connection follows.
func (c *Client) defaultTopics() []string {
	topics := []string{domain.TopicTournaments}
	if c.userID != "" {
		topics = append(topics, domain.UserTopic(c.userID))
	}
	if c.isAdmin {
		topics = append(topics, domain.TopicAdmin)
	}
	return topics
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			c.logger.Warn("invalid message format", "error", err)
			c.sendError("invalid message format")
			continue
		}

		c.handleMessage(&clientMsg)
	}
}

// handleMessage processes incoming client messages
func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		if msg.Topic == "" {
			c.sendError("topic required for subscribe")
			return
		}
		if !c.CanSubscribe(msg.Topic) {
			c.sendError("not allowed to subscribe to " + msg.Topic)
			return
		}
		c.hub.Subscribe(c, msg.Topic)
		c.sendAck("subscribed", msg.Topic)

	case MessageTypeUnsubscribe:
		if msg.Topic != "" {
			c.hub.Unsubscribe(c, msg.Topic)
			c.sendAck("unsubscribed", msg.Topic)
		}

	case MessageTypePing:
		c.sendPong()

	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
// Each frame carries exactly one JSON message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) sendDirect(msg Message) {
	msg.Timestamp = time.Now()
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(errMsg string) {
	c.sendDirect(Message{
		Type: MessageTypeError,
		Data: map[string]string{"error": errMsg},
	})
}

// sendAck sends an acknowledgment message to the client
func (c *Client) sendAck(action, topic string) {
	c.sendDirect(Message{
		Type:  action,
		Topic: topic,
		Data:  map[string]string{"status": "ok"},
	})
}

// sendPong sends a pong response
func (c *Client) sendPong() {
	c.sendDirect(Message{Type: MessageTypePong})
}

// ServeWs upgrades the request and subscribes the connection to its default topics
func ServeWs(hub *Hub, who Identity, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, who, logger)
	hub.Register(client)
	for _, topic := range client.defaultTopics() {
		hub.Subscribe(client, topic)
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	logger.Debug("new websocket connection", "client_id", client.id, "user_id", who.UserID)
}
