package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager tracks every connected client.
type Manager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewManager builds an empty client registry.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// Add registers a client.
func (m *Manager) Add(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
}

// Remove drops a client from the registry.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, id)
}

// Get returns a client by id.
func (m *Manager) Get(id string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	return c, ok
}

// Count returns the number of connected clients.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Broadcast sends a message to every connected client.
func (m *Manager) Broadcast(v any) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		c.SendJSON(v)
	}
}

// Run sweeps for idle clients until the context ends.
func (m *Manager) Run(ctx context.Context, timeout, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.ReclaimIdle(now, timeout)
		}
	}
}

// ReclaimIdle closes every client that has not sent a message within
// timeout. Closing the connection runs the server's normal disconnect path,
// so a mid-match client forfeits.
func (m *Manager) ReclaimIdle(now time.Time, timeout time.Duration) {
	m.mu.RLock()
	var idle []*Client
	for _, c := range m.clients {
		if c.IdleFor(now) > timeout {
			idle = append(idle, c)
		}
	}
	m.mu.RUnlock()
	for _, c := range idle {
		m.logger.Info("disconnecting idle client",
			zap.String("client_id", c.ID),
			zap.Duration("idle", c.IdleFor(now)),
		)
		c.Close()
	}
}
