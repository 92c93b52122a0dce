package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ScoreEvent describes websocket payloads emitted whenever a site is scored.
type ScoreEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	Profile   string    `json:"profile"`
	Source    string    `json:"source"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// ScoreNotifier keeps track of active websocket clients and broadcasts score events.
type ScoreNotifier struct {
	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	lastEvent *ScoreEvent
}

// NewScoreNotifier constructs a notifier instance.
func NewScoreNotifier() *ScoreNotifier {
	return &ScoreNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the latest event to it.
func (n *ScoreNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	last := n.lastEvent
	n.mu.Unlock()

	if last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *ScoreNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast stamps the event and sends it to all registered clients, dropping the ones
// that fail.
func (n *ScoreNotifier) Broadcast(event ScoreEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	defer n.mu.Unlock()
	snapshot := event
	n.lastEvent = &snapshot

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
}

// LastEvent returns a copy of the most recent event, if any.
func (n *ScoreNotifier) LastEvent() *ScoreEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastEvent == nil {
		return nil
	}
	copy := *n.lastEvent
	return &copy
}

// Clients returns the number of connected websocket clients.
func (n *ScoreNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
