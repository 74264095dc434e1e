package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. A missing file is reported but callers can ignore
// it and rely on the process environment or defaults.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of the environment variable named
// by key (e.g. "40ms"), or fallback if unset or invalid.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// Config is the resolved server configuration.
type Config struct {
	Host        string
	Port        int
	ProfileFile string
	Binary      string

	ChunkSize        int
	QueueLimit       int
	QueueOverflow    string
	ReadPollInterval time.Duration

	InitialDelay    time.Duration
	ActiveDelay     time.Duration
	IdleDelay       time.Duration
	MaxPollsPerTick int

	LogLevel  string
	LogFormat string
}

// ErrPortRequired is returned when neither --port nor PORT is set.
var ErrPortRequired = errors.New("listen port is required (--port or PORT)")

// Parse builds a Config from command-line args, falling back to the
// environment for anything not given on the command line.
func Parse(args []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("ws-live-server", flag.ContinueOnError)
	fs.SetOutput(output)

	cfg := &Config{}
	fs.StringVar(&cfg.Host, "host", GetEnv("HOST", "0.0.0.0"), "listen host")
	fs.IntVar(&cfg.Port, "port", GetEnvInt("PORT", 0), "listen port (required)")
	fs.StringVar(&cfg.ProfileFile, "profile", GetEnv("PROFILE_FILE", ""), "transcoder profile file (.yaml, .yml or .toml)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		if cfg.Port == 0 {
			return nil, ErrPortRequired
		}
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	cfg.Binary = GetEnv("TRANSCODER_BIN", "")
	cfg.ChunkSize = GetEnvInt("CHUNK_SIZE", 200*1024)
	cfg.QueueLimit = GetEnvInt("QUEUE_LIMIT", 0)
	cfg.QueueOverflow = GetEnv("QUEUE_OVERFLOW", "block")
	cfg.ReadPollInterval = GetEnvDuration("READ_POLL_INTERVAL", 250*time.Millisecond)
	cfg.InitialDelay = GetEnvDuration("POLL_INITIAL_DELAY", 10*time.Millisecond)
	cfg.ActiveDelay = GetEnvDuration("POLL_ACTIVE_DELAY", time.Millisecond)
	cfg.IdleDelay = GetEnvDuration("POLL_IDLE_DELAY", 40*time.Millisecond)
	cfg.MaxPollsPerTick = GetEnvInt("MAX_POLLS_PER_TICK", 256)
	cfg.LogLevel = GetEnv("LOG_LEVEL", "info")
	cfg.LogFormat = GetEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// Addr returns the listen address host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
