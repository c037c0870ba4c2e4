package device

import (
	"log/slog"
	"sync"
)

// ConnectionManager tracks every monitor attached to the simulated unit so a
// new count can reach all of them at once.
type ConnectionManager struct {
	clients map[string]*ClientConnection
	// key: client ID, value: the live connection
	// pointers so the manager and the client's own goroutine share one value
	mu     sync.RWMutex // Broadcast reads concurrently, add/remove/prune write
	logger *slog.Logger
}

func NewConnectionManager(logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		clients: make(map[string]*ClientConnection),
		logger:  logger,
	}
}

// AddConnection registers a client that has just connected.
func (m *ConnectionManager) AddConnection(client *ClientConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = client
	m.logger.Info("client_added",
		"client_id", client.ID,
		"clients", len(m.clients),
	)
}

// RemoveConnection forgets a client. Removing one that was already pruned is
// a no-op, so the client's own goroutine can always call it on exit.
func (m *ConnectionManager) RemoveConnection(client *ClientConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	delete(m.clients, client.ID)
	m.logger.Info("client_removed",
		"client_id", client.ID,
		"clients", len(m.clients),
	)
}

func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// CloseAllConnections closes every client on shutdown. Their Listen loops see
// the closed connection and return on their own.
func (m *ConnectionManager) CloseAllConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, client := range m.clients {
		client.Close()
		m.logger.Info("client_connection_closed",
			"client_id", id,
		)
	}
	m.clients = make(map[string]*ClientConnection) // drop every reference at once
}

// Broadcast sends one count line to every client and returns how many got it.
// A monitor that cannot take the write (gone, or stalled past the write
// timeout) would otherwise miss every later count too, so it is closed and
// pruned; it reconnects and is greeted with the current count.
func (m *ConnectionManager) Broadcast(line []byte) int {
	var failed []*ClientConnection

	m.mu.RLock() // read lock: sends only read the map
	for id, c := range m.clients {
		if err := c.Send(line); err != nil {
			m.logger.Warn("failed_to_send_broadcast",
				"client_id", id,
				"error", err.Error(),
			)
			failed = append(failed, c)
		}
	}
	delivered := len(m.clients) - len(failed)
	m.mu.RUnlock()

	if len(failed) > 0 {
		m.prune(failed)
	}
	return delivered
}

// prune closes and forgets clients whose writes failed.
func (m *ConnectionManager) prune(clients []*ClientConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range clients {
		c.Close() // its Listen loop ends on the closed connection
		delete(m.clients, c.ID)
		m.logger.Warn("client_pruned",
			"client_id", c.ID,
			"clients", len(m.clients),
		)
	}
}
