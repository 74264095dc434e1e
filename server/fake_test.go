package server

import (
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ws-live-server/internal/logger"
	"ws-live-server/internal/metrics"
	"ws-live-server/transcoder"
)

var errKilled = errors.New("fake transcoder killed")

// fakeProcess replays chunks and then ends according to its mode.
type fakeProcess struct {
	mu       sync.Mutex
	chunks   [][]byte
	deadline time.Time

	final   error  // returned after the chunks instead of io.EOF
	endless []byte // produced every few milliseconds until killed
	hold    bool   // stay silent until killed
	crash   bool   // panic after the chunks

	killed atomic.Bool
	ended  atomic.Bool
}

func (p *fakeProcess) SetReadDeadline(t time.Time) error {
	p.mu.Lock()
	p.deadline = t
	p.mu.Unlock()
	return nil
}

func (p *fakeProcess) Read(b []byte) (int, error) {
	if p.killed.Load() {
		return 0, errKilled
	}

	p.mu.Lock()
	if len(p.chunks) > 0 {
		c := p.chunks[0]
		p.chunks = p.chunks[1:]
		p.mu.Unlock()
		return copy(b, c), nil
	}
	deadline := p.deadline
	p.mu.Unlock()

	switch {
	case p.crash:
		panic("fake transcoder crashed")
	case p.endless != nil:
		time.Sleep(2 * time.Millisecond)
		return copy(b, p.endless), nil
	case p.hold:
		time.Sleep(time.Until(deadline))
		return 0, os.ErrDeadlineExceeded
	}

	p.ended.Store(true)
	if p.final != nil {
		return 0, p.final
	}
	return 0, io.EOF
}

func (p *fakeProcess) Pid() int     { return 4242 }
func (p *fakeProcess) Exited() bool { return p.ended.Load() || p.killed.Load() }
func (p *fakeProcess) Kill() error  { p.killed.Store(true); return nil }
func (p *fakeProcess) Wait() error  { return nil }

type fakeSpawner struct {
	newProcess func() *fakeProcess
	fail       error

	spawns atomic.Int64
	last   atomic.Pointer[fakeProcess]
	args   atomic.Value
}

func (s *fakeSpawner) Spawn(args []string) (transcoder.Process, error) {
	s.spawns.Add(1)
	s.args.Store(args)
	if s.fail != nil {
		return nil, s.fail
	}
	p := s.newProcess()
	s.last.Store(p)
	return p, nil
}

func chunks(parts ...string) func() *fakeProcess {
	return func() *fakeProcess {
		p := &fakeProcess{}
		for _, part := range parts {
			p.chunks = append(p.chunks, []byte(part))
		}
		return p
	}
}

type testServer struct {
	*httptest.Server
	manager *Manager
	metrics *metrics.Metrics
	spawner *fakeSpawner
}

func newTestServer(t *testing.T, sp *fakeSpawner) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewWithWriter(io.Discard, "error", "text")
	met := metrics.New()
	sm := NewManager(nil, Options{
		IdleDelay: 5 * time.Millisecond,
		Spawner:   sp,
		SessionOptions: []transcoder.Option{
			transcoder.WithReadPollInterval(10 * time.Millisecond),
		},
	}, log, met)

	ts := &testServer{
		Server:  httptest.NewServer(NewRouter(sm, met, log)),
		manager: sm,
		metrics: met,
		spawner: sp,
	}
	t.Cleanup(func() {
		sm.StopAll()
		ts.Close()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T, pathAndQuery string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + pathAndQuery
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntilClose collects binary frames until the server closes the connection.
func readUntilClose(t *testing.T, conn *websocket.Conn) ([]string, *websocket.CloseError) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var frames []string
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			require.ErrorAs(t, err, &ce)
			return frames, ce
		}
		assert.Equal(t, websocket.BinaryMessage, mt)
		frames = append(frames, string(data))
	}
}
