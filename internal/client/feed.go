package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arena-wallet/internal/domain"
	"github.com/gorilla/websocket"
)

// feedMessage mirrors the server's change feed frames
type feedMessage struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic,omitempty"`
	Keys  []string        `json:"keys,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Feed is a live change feed connection that keeps the query cache honest
type Feed struct {
	conn          *websocket.Conn
	cache         *QueryCache
	notifications chan domain.Notification
	done          chan struct{}
	err           error
}

// Subscribe connects to the change feed. Server invalidations are applied
// to the client's cache until ctx is cancelled or the connection drops.
func (c *Client) Subscribe(ctx context.Context, topics ...string) (*Feed, error) {
	wsURL := c.baseURL + "/api/ws"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	header := http.Header{}
	if c.userID != "" {
		header.Set(userIDHeader, c.userID)
	}

	dialer := websocket.Dialer{HandshakeTimeout: defaultTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect change feed: %w", err)
	}

	for _, topic := range topics {
		if err := conn.WriteJSON(map[string]string{"type": "subscribe", "topic": topic}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	f := &Feed{
		conn:          conn,
		cache:         c.cache,
		notifications: make(chan domain.Notification, 16),
		done:          make(chan struct{}),
	}
	go f.read()
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-f.done:
		}
	}()

	c.logger.Debug("change feed connected", "user_id", c.userID, "topics", topics)
	return f, nil
}

func (f *Feed) read() {
	defer close(f.done)
	defer close(f.notifications)
	for {
		var msg feedMessage
		if err := f.conn.ReadJSON(&msg); err != nil {
			f.err = err
			return
		}
		f.apply(msg)
	}
}

func (f *Feed) apply(msg feedMessage) {
	switch msg.Type {
	case "invalidate":
		f.cache.Invalidate(msg.Keys...)
	case "notification":
		var n domain.Notification
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			return
		}
		f.cache.Invalidate(domain.NotificationsKey(n.UserID))
		select {
		case f.notifications <- n:
		default:
		}
	}
}

// Notifications delivers in-app notifications pushed to this user. The
// channel is closed when the feed ends; slow readers miss notifications.
func (f *Feed) Notifications() <-chan domain.Notification {
	return f.notifications
}

// Done is closed when the feed stops reading
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Err returns the error that ended the feed, if any
func (f *Feed) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Close closes the connection and waits for the reader to stop
func (f *Feed) Close() error {
	_ = f.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := f.conn.Close()
	<-f.done
	return err
}
