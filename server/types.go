package server

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ws-live-server/internal/metrics"
	"ws-live-server/profile"
	"ws-live-server/transcoder"
)

// Manager tracks WebSocket clients. Every client owns exactly one
// transcoding session; sessions are never shared.
type Manager struct {
	clients     map[string]*Client
	mu          sync.RWMutex
	clientIDGen int64

	opts     Options
	profiles *profile.Watcher
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// Options tunes the relay loop and the sessions it creates.
type Options struct {
	InitialDelay    time.Duration
	ActiveDelay     time.Duration
	IdleDelay       time.Duration
	MaxPollsPerTick int

	// SessionOptions are applied to every new session.
	SessionOptions []transcoder.Option

	// Binary replaces the profile's executable when set.
	Binary string

	// Spawner overrides process creation entirely. Used by tests.
	Spawner transcoder.Spawner
}

// Client represents a connected client consuming its own session
type Client struct {
	id          string
	source      string
	conn        *websocket.Conn
	session     *transcoder.Session
	manager     *Manager
	connectedAt time.Time

	bytesSent  atomic.Int64
	framesSent atomic.Int64

	// closing is closed when the peer went away or the server asked the
	// client to disconnect; shutdown holds the close frame to send, if any.
	closing   chan struct{}
	closeOnce sync.Once
	shutdown  *closeReason

	done    chan struct{}
	removed bool
	mu      sync.Mutex
}

// ClientStats is the JSON view of a client and its session.
type ClientStats struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	State       string    `json:"state"`
	Pid         int       `json:"pid,omitempty"`
	BytesRead   int64     `json:"bytes_read"`
	BytesSent   int64     `json:"bytes_sent"`
	FramesSent  int64     `json:"frames_sent"`
	Pending     int       `json:"pending"`
	ConnectedAt time.Time `json:"connected_at"`
	Uptime      float64   `json:"uptime_seconds"`
}

// closeReason is a close frame the relay sends before dropping a connection.
type closeReason struct {
	code  int
	text  string
	label string
}

var (
	reasonNormal    = closeReason{code: websocket.CloseNormalClosure, label: "normal"}
	reasonEmpty     = closeReason{code: websocket.CloseNoStatusReceived, label: "empty"}
	reasonError     = closeReason{code: websocket.CloseInternalServerErr, label: "error"}
	reasonProtocol  = closeReason{code: websocket.CloseProtocolError, text: "missing url parameter", label: "protocol"}
	reasonGoingAway = closeReason{code: websocket.CloseGoingAway, text: "server closing session", label: "going_away"}
)

// maxCloseText keeps a close frame within the 125 byte control frame limit.
const maxCloseText = 123

func (r closeReason) withText(text string) closeReason {
	if len(text) > maxCloseText {
		text = strings.ToValidUTF8(text[:maxCloseText], "")
	}
	r.text = text
	return r
}

// payload encodes the close frame body. CloseNoStatusReceived has no body.
func (r closeReason) payload() []byte {
	return websocket.FormatCloseMessage(r.code, r.text)
}
