package server

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"ws-live-server/internal/metrics"
	"ws-live-server/profile"
	"ws-live-server/transcoder"
)

// DefaultOptions returns the relay defaults.
func DefaultOptions() Options {
	return Options{
		InitialDelay:    DefaultInitialDelay,
		ActiveDelay:     DefaultActiveDelay,
		IdleDelay:       DefaultIdleDelay,
		MaxPollsPerTick: DefaultMaxPollsPerTick,
	}
}

// NewManager creates a new client manager. m may be nil to disable metrics.
func NewManager(profiles *profile.Watcher, opts Options, log *slog.Logger, m *metrics.Metrics) *Manager {
	def := DefaultOptions()
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = def.InitialDelay
	}
	if opts.ActiveDelay <= 0 {
		opts.ActiveDelay = def.ActiveDelay
	}
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = def.IdleDelay
	}
	if opts.MaxPollsPerTick <= 0 {
		opts.MaxPollsPerTick = def.MaxPollsPerTick
	}
	if profiles == nil {
		profiles = profile.Static(profile.Default())
	}

	return &Manager{
		clients:  make(map[string]*Client),
		opts:     opts,
		profiles: profiles,
		log:      log,
		metrics:  m,
	}
}

// generateClientID generates a unique client ID
func (sm *Manager) generateClientID() string {
	sm.clientIDGen++
	return fmt.Sprintf("client_%d", sm.clientIDGen)
}

// newSession builds an idle session for source from the current profile.
func (sm *Manager) newSession(source string) *transcoder.Session {
	binary, args := sm.profiles.Current().Command(source)
	if sm.opts.Binary != "" {
		binary = sm.opts.Binary
	}

	var spawner transcoder.Spawner = transcoder.ExecSpawner{Binary: binary}
	if sm.opts.Spawner != nil {
		spawner = sm.opts.Spawner
	}

	opts := append([]transcoder.Option{}, sm.opts.SessionOptions...)
	opts = append(opts,
		transcoder.WithSpawner(spawner),
		transcoder.WithArgs(args),
		transcoder.WithLogger(sm.log),
	)
	if sm.metrics != nil {
		opts = append(opts, transcoder.WithObserver(sm.metrics.SessionObserver()))
	}
	return transcoder.New(source, opts...)
}

// AddClient starts a session for source and relays it to conn.
func (sm *Manager) AddClient(conn *websocket.Conn, source string) (*Client, error) {
	session := sm.newSession(source)
	if err := session.Start(); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	sm.mu.Lock()
	client := &Client{
		id:          sm.generateClientID(),
		source:      source,
		conn:        conn,
		session:     session,
		manager:     sm,
		connectedAt: time.Now(),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	sm.clients[client.id] = client
	count := len(sm.clients)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.SetClients(count)
	}

	go client.relay()
	go client.readPump()

	sm.log.Info("client connected", "client", client.id, "source", source)
	return client, nil
}

// RemoveClient removes a client from the manager
func (sm *Manager) RemoveClient(client *Client) {
	// Protect against double removal
	client.mu.Lock()
	if client.removed {
		client.mu.Unlock()
		return
	}
	client.removed = true
	client.mu.Unlock()

	sm.mu.Lock()
	delete(sm.clients, client.id)
	count := len(sm.clients)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.SetClients(count)
	}
	sm.log.Info("client removed",
		"client", client.id,
		"bytes_sent", client.bytesSent.Load(),
		"frames_sent", client.framesSent.Load())
}

// Disconnect asks a client to close its connection and waits for its
// session to be torn down.
func (sm *Manager) Disconnect(clientID string) error {
	sm.mu.RLock()
	client, exists := sm.clients[clientID]
	sm.mu.RUnlock()

	if !exists {
		return fmt.Errorf("client %s not found", clientID)
	}

	client.requestClose(&reasonGoingAway)
	<-client.done
	return nil
}

// StopAll disconnects every client.
func (sm *Manager) StopAll() {
	sm.mu.RLock()
	clients := make([]*Client, 0, len(sm.clients))
	for _, client := range sm.clients {
		clients = append(clients, client)
	}
	sm.mu.RUnlock()

	for _, client := range clients {
		client.requestClose(&reasonGoingAway)
	}
	for _, client := range clients {
		<-client.done
	}
}

// ClientCount returns the number of connected clients.
func (sm *Manager) ClientCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.clients)
}

// GetClientStats returns statistics for a client
func (sm *Manager) GetClientStats(clientID string) (ClientStats, error) {
	sm.mu.RLock()
	client, exists := sm.clients[clientID]
	sm.mu.RUnlock()

	if !exists {
		return ClientStats{}, fmt.Errorf("client %s not found", clientID)
	}
	return client.stats(), nil
}

// ListClients returns statistics for all clients ordered by connect time.
func (sm *Manager) ListClients() []ClientStats {
	sm.mu.RLock()
	stats := make([]ClientStats, 0, len(sm.clients))
	for _, client := range sm.clients {
		stats = append(stats, client.stats())
	}
	sm.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].ConnectedAt.Before(stats[j].ConnectedAt)
	})
	return stats
}
