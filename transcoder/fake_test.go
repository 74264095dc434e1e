package transcoder

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errFakeClosed = errors.New("fake process killed")

// fakeProcess replays scripted chunks, then returns finalErr (io.EOF when nil).
// When endless is set it keeps producing that chunk every interval until killed.
type fakeProcess struct {
	mu       sync.Mutex
	pid      int
	chunks   [][]byte
	src      io.Reader
	finalErr error
	endless  []byte
	interval time.Duration
	block    chan struct{}

	killed atomic.Bool
	waited atomic.Bool
	exited atomic.Bool
	reads  atomic.Int64
}

func (p *fakeProcess) Read(b []byte) (int, error) {
	p.reads.Add(1)
	if p.block != nil {
		<-p.block
	}
	if p.killed.Load() {
		return 0, errFakeClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src != nil {
		n, err := p.src.Read(b)
		if err == io.EOF {
			p.exited.Store(true)
		}
		return n, err
	}
	if len(p.chunks) > 0 {
		n := copy(b, p.chunks[0])
		if n < len(p.chunks[0]) {
			p.chunks[0] = p.chunks[0][n:]
		} else {
			p.chunks = p.chunks[1:]
		}
		return n, nil
	}
	if p.endless != nil {
		p.mu.Unlock()
		time.Sleep(p.interval)
		p.mu.Lock()
		return copy(b, p.endless), nil
	}
	p.exited.Store(true)
	if p.finalErr != nil {
		return 0, p.finalErr
	}
	return 0, io.EOF
}

func (p *fakeProcess) Pid() int     { return p.pid }
func (p *fakeProcess) Exited() bool { return p.exited.Load() || p.killed.Load() }

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	return nil
}

func (p *fakeProcess) Wait() error {
	p.waited.Store(true)
	return nil
}

// fakeSpawner hands out a single prepared process, or fails with err.
type fakeSpawner struct {
	proc   *fakeProcess
	err    error
	spawns atomic.Int64
	args   atomic.Value
}

func (s *fakeSpawner) Spawn(args []string) (Process, error) {
	s.spawns.Add(1)
	s.args.Store(args)
	if s.err != nil {
		return nil, s.err
	}
	return s.proc, nil
}

// collect polls until a terminal response or ErrDisconnected is seen.
func collect(t *testing.T, s *Session, timeout time.Duration) ([]Response, error) {
	t.Helper()
	var out []Response
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r, err := s.Poll()
		switch {
		case errors.Is(err, ErrEmpty):
			time.Sleep(time.Millisecond)
			continue
		case err != nil:
			return out, err
		}
		out = append(out, r)
		if r.Terminal() {
			return out, nil
		}
	}
	require.FailNow(t, "timed out waiting for terminal response")
	return nil, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	starts   int
	chunks   int
	bytes    int
	drops    int
	outcomes []Outcome
}

func (o *recordingObserver) ObserveStart(string) {
	o.mu.Lock()
	o.starts++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveChunk(n int) {
	o.mu.Lock()
	o.chunks++
	o.bytes += n
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveDrop() {
	o.mu.Lock()
	o.drops++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveFinish(_ string, outcome Outcome) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, outcome)
	o.mu.Unlock()
}
