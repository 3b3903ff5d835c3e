package websockets

import (
	"encoding/json"
	"reasondesk/config"
	"reasondesk/internal/database"
	"reasondesk/internal/events"
	"reasondesk/internal/logger"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	sendBufferSize = 32
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
)

// Conn is the part of a websocket connection the manager uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	ID     string
	UserID string
	send   chan []byte
}

// Manager relays every event published on the bus to connected clients.
type Manager struct {
	log logger.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func New(db database.DB, eventBus *events.EventBus, config config.Config) (*Manager, error) {
	log := logger.New("websocketManager")

	manager := &Manager{
		log:     log,
		clients: make(map[*Client]struct{}),
	}

	eventBus.Subscribe("*", manager.Broadcast)

	log.Function("New").Info("websocket manager ready", "distributed", db.HasCache(), "environment", config.Environment)
	return manager, nil
}

func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) register(userID string) *Client {
	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, sendBufferSize),
	}

	m.mu.Lock()
	m.clients[client] = struct{}{}
	m.mu.Unlock()

	return client
}

func (m *Manager) unregister(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client]; ok {
		delete(m.clients, client)
		close(client.send)
	}
}

// Broadcast queues event for every client. Clients whose buffer is full are
// disconnected.
func (m *Manager) Broadcast(event events.Event) {
	log := m.log.Function("Broadcast")

	payload, err := json.Marshal(event)
	if err != nil {
		log.Er("failed to marshal event", err, "type", event.Type)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- payload:
		default:
			log.Warn("dropping slow websocket client", "clientID", client.ID)
			delete(m.clients, client)
			close(client.send)
		}
	}
}

func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals("userID").(string)
	m.Serve(c, userID)
}

// Serve runs one connection until the peer goes away.
func (m *Manager) Serve(conn Conn, userID string) {
	log := m.log.Function("Serve")

	client := m.register(userID)
	log.Debug("websocket client connected", "clientID", client.ID, "userID", userID)

	done := make(chan struct{})
	go m.writePump(conn, client, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	m.unregister(client)
	<-done
	_ = conn.Close()
	log.Debug("websocket client disconnected", "clientID", client.ID)
}

func (m *Manager) writePump(conn Conn, client *Client, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// Close sends a close frame to every connected client and forgets them.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for client := range m.clients {
		delete(m.clients, client)
		close(client.send)
	}
}
