package server

import "time"

// Relay configuration constants
const (
	// DefaultInitialDelay is the delay before the first poll of a new session
	DefaultInitialDelay = 10 * time.Millisecond

	// DefaultActiveDelay is the re-arm delay after a tick that delivered data
	DefaultActiveDelay = 1 * time.Millisecond

	// DefaultIdleDelay is the re-arm delay after a tick that found nothing
	DefaultIdleDelay = 40 * time.Millisecond

	// DefaultMaxPollsPerTick caps how many responses one tick relays
	DefaultMaxPollsPerTick = 256

	// WebSocketPingInterval is how often to send ping messages to clients
	WebSocketPingInterval = 54 * time.Second

	// WebSocketReadDeadline is the deadline for reading WebSocket messages
	WebSocketReadDeadline = 60 * time.Second

	// WebSocketWriteDeadline is the deadline for writing WebSocket messages
	WebSocketWriteDeadline = 10 * time.Second

	// WebSocketReadLimit is the maximum message size for incoming WebSocket messages
	WebSocketReadLimit = 512

	// SourceQueryParam is the query parameter carrying the source locator
	SourceQueryParam = "url"
)
