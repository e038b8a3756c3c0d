package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Event is one server-sent event payload.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Time    time.Time   `json:"time"`
}

type client struct {
	userID string
	ch     chan Event
}

// Manager fans events out to connected clients per user. A user may hold
// several connections (tabs, devices); each gets every event.
type Manager struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[*client]bool),
	}
}

// SendToUser delivers an event to all of the user's open connections.
// Slow consumers are skipped, not waited on.
func (m *Manager) SendToUser(userID string, eventType string, payload interface{}) {
	event := Event{Type: eventType, Payload: payload, Time: time.Now()}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.ch <- event:
		default:
			log.Printf("[SSE] Dropping %s event for slow client (user %s)", eventType, userID)
		}
	}
}

// ConnectedUsers returns the number of distinct users with open streams.
func (m *Manager) ConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make(map[string]bool)
	for c := range m.clients {
		users[c.userID] = true
	}
	return len(users)
}

func (m *Manager) register(userID string) *client {
	c := &client{userID: userID, ch: make(chan Event, 16)}
	m.mu.Lock()
	m.clients[c] = true
	m.mu.Unlock()
	return c
}

func (m *Manager) unregister(c *client) {
	m.mu.Lock()
	delete(m.clients, c)
	m.mu.Unlock()
	close(c.ch)
}

// HandleStream serves the SSE endpoint for the authenticated user. Blocks
// until the client disconnects.
func (m *Manager) HandleStream(c *gin.Context, userID string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	cl := m.register(userID)
	defer m.unregister(cl)

	// Initial comment keeps proxies from buffering the stream.
	fmt.Fprintf(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case event := <-cl.ch:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("[SSE] Failed to marshal event: %v", err)
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event.Type, data)
			c.Writer.Flush()
		}
	}
}
