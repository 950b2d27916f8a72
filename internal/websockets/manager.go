package websockets

import (
	"encoding/json"
	"relay/config"
	"relay/internal/logger"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// Manager pushes pipeline progress to connected extensions. A client connects
// to /ws with its request ID before posting the submission request; progress
// for that ID is sent to its connection and silently dropped when nobody is
// listening.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     logger.Logger
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type message struct {
	Type      string         `json:"type"`
	RequestID string         `json:"requestId"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func New(config config.Config) (*Manager, error) {
	return &Manager{
		clients: make(map[string]*client),
		log:     logger.New("websockets"),
	}, nil
}

// HandleWebSocket owns a connection for its lifetime. The first message must
// be a subscribe frame carrying the request ID; the read loop then blocks
// until the peer disconnects.
func (m *Manager) HandleWebSocket(conn *websocket.Conn) {
	log := m.log.Function("HandleWebSocket")

	var subscribe struct {
		RequestID string `json:"requestId"`
	}
	if err := conn.ReadJSON(&subscribe); err != nil || subscribe.RequestID == "" {
		log.Warn("websocket closed before subscribing", "error", err)
		conn.Close()
		return
	}

	c := &client{conn: conn}
	m.mu.Lock()
	m.clients[subscribe.RequestID] = c
	m.mu.Unlock()

	log.Debug("websocket subscribed", "requestID", subscribe.RequestID)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	m.mu.Lock()
	if m.clients[subscribe.RequestID] == c {
		delete(m.clients, subscribe.RequestID)
	}
	m.mu.Unlock()
	conn.Close()
}

// SendTravelProgress pushes a progress frame to the request's subscriber, if
// any.
func (m *Manager) SendTravelProgress(requestID string, data map[string]any) {
	m.send(message{Type: "progress", RequestID: requestID, Data: data})
}

// SendTravelError pushes a terminal error frame.
func (m *Manager) SendTravelError(requestID string, errorMessage string) {
	m.send(message{Type: "error", RequestID: requestID, Error: errorMessage})
}

// SendTravelComplete pushes the final result frame.
func (m *Manager) SendTravelComplete(requestID string, data map[string]any) {
	m.send(message{Type: "complete", RequestID: requestID, Data: data})
}

func (m *Manager) send(msg message) {
	m.mu.RLock()
	c, ok := m.clients[msg.RequestID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		m.log.Function("send").Warn("failed to marshal websocket message", "type", msg.Type)
		return
	}

	c.mu.Lock()
	writeErr := c.conn.WriteMessage(websocket.TextMessage, payload)
	c.mu.Unlock()

	if writeErr != nil {
		m.log.Function("send").
			Debug("dropping dead websocket client", "requestID", msg.RequestID)
		m.mu.Lock()
		if m.clients[msg.RequestID] == c {
			delete(m.clients, msg.RequestID)
		}
		m.mu.Unlock()
	}
}
