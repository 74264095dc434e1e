// Package transcoder supervises an external transcoding process and hands
// its output to an event-loop driven consumer.
//
// A Session spawns the process from a dedicated reader goroutine that pumps
// fixed-size chunks into an ordered queue. The owner drains the queue with
// Poll, which never blocks, and tears everything down with Stop.
package transcoder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Session relays the output of one transcoder process. It is single use:
// once stopped it cannot be started again.
type Session struct {
	source string
	cfg    sessionConfig
	queue  *queue

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	finished bool // a terminal response was handed out by Poll

	done      chan struct{}
	pid       atomic.Int64
	bytesRead atomic.Int64
}

// New creates an idle session for the given source locator.
func New(source string, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		source: source,
		cfg:    cfg,
		state:  StateIdle,
		done:   make(chan struct{}),
	}
	s.queue = newQueue(cfg.queueLimit, cfg.overflow, cfg.observer.ObserveDrop)
	return s
}

// Source returns the source locator the session was created with.
func (s *Session) Source() string {
	return s.source
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the reader goroutine, which spawns the process. A spawn
// failure is reported through Poll, not by Start.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("start %s session: %w", s.state, ErrInvalidState)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StateRunning
	s.cfg.observer.ObserveStart(s.source)

	go s.run(ctx)
	return nil
}

// Stop cancels the reader, waits for it to exit and for the process to be
// released. It may be called any number of times.
func (s *Session) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.state = StateStopped
		close(s.done)
		s.mu.Unlock()
		return
	case StateStopped:
		s.mu.Unlock()
		<-s.done
		return
	}
	s.state = StateStopped
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.queue.detach()
	<-s.done
}

// Poll returns the next response without blocking. It returns ErrEmpty when
// nothing is available yet and ErrDisconnected when the reader ended without
// a terminal response. After a terminal response every call returns ErrEmpty.
func (s *Session) Poll() (Response, error) {
	s.mu.Lock()
	state, finished := s.state, s.finished
	s.mu.Unlock()

	switch {
	case state == StateIdle:
		return Response{}, fmt.Errorf("poll %s session: %w", state, ErrInvalidState)
	case state == StateStopped:
		return Response{}, ErrDisconnected
	case finished:
		return Response{}, ErrEmpty
	}

	r, err := s.queue.pop()
	if err != nil {
		return Response{}, err
	}
	if r.Terminal() {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()
	}
	return r, nil
}

// Done is closed once the reader goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Pid returns the pid of the live transcoder process, or 0.
func (s *Session) Pid() int {
	return int(s.pid.Load())
}

// BytesRead returns the number of bytes read from the process so far.
func (s *Session) BytesRead() int64 {
	return s.bytesRead.Load()
}

// Pending returns the number of queued responses.
func (s *Session) Pending() int {
	return s.queue.len()
}
