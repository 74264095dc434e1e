package transcoder

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultChunkSize is the largest Data payload produced by one read.
	DefaultChunkSize = 200 * 1024

	// DefaultReadPollInterval bounds a single read when the process output
	// supports deadlines, so Stop is observed promptly.
	DefaultReadPollInterval = 250 * time.Millisecond

	// DefaultBinary is the transcoder executable used by ExecSpawner.
	DefaultBinary = "ffmpeg"
)

// Option configures a Session.
type Option func(*sessionConfig)

type sessionConfig struct {
	spawner          Spawner
	args             []string
	chunkSize        int
	queueLimit       int
	overflow         OverflowPolicy
	readPollInterval time.Duration
	logger           *slog.Logger
	observer         Observer
}

func defaultConfig() sessionConfig {
	return sessionConfig{
		spawner:          ExecSpawner{Binary: DefaultBinary},
		chunkSize:        DefaultChunkSize,
		overflow:         OverflowBlock,
		readPollInterval: DefaultReadPollInterval,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:         nopObserver{},
	}
}

// WithSpawner sets how the transcoder process is started.
func WithSpawner(s Spawner) Option {
	return func(c *sessionConfig) {
		if s != nil {
			c.spawner = s
		}
	}
}

// WithArgs sets the argument list passed to the spawner. The list is used
// as given; callers substitute the source locator beforehand.
func WithArgs(args []string) Option {
	return func(c *sessionConfig) {
		c.args = append([]string(nil), args...)
	}
}

// WithChunkSize sets the read buffer size. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(c *sessionConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithQueueLimit bounds the number of queued responses. Zero keeps the
// queue unbounded.
func WithQueueLimit(limit int, policy OverflowPolicy) Option {
	return func(c *sessionConfig) {
		if limit < 0 {
			limit = 0
		}
		c.queueLimit = limit
		c.overflow = policy
	}
}

// WithReadPollInterval sets the read slice used for processes whose output
// supports deadlines. Zero disables deadlines.
func WithReadPollInterval(d time.Duration) Option {
	return func(c *sessionConfig) {
		if d >= 0 {
			c.readPollInterval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *sessionConfig) {
		if o != nil {
			c.observer = o
		}
	}
}
