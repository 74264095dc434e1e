package transcoder

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ScriptedChunks(t *testing.T) {
	proc := &fakeProcess{pid: 42, chunks: [][]byte{[]byte("AAAA"), []byte("BBBB")}}
	spawner := &fakeSpawner{proc: proc}
	s := New("test-source", WithSpawner(spawner), WithArgs([]string{"-i", "test-source"}))
	defer s.Stop()

	require.NoError(t, s.Start())

	got, err := collect(t, s, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, KindData, got[0].Kind)
	assert.Equal(t, []byte("AAAA"), got[0].Data)
	assert.Equal(t, KindData, got[1].Kind)
	assert.Equal(t, []byte("BBBB"), got[1].Data)
	assert.Equal(t, KindEndOfStream, got[2].Kind)

	for i := 0; i < 10; i++ {
		_, err := s.Poll()
		assert.ErrorIs(t, err, ErrEmpty)
	}

	assert.Equal(t, int64(1), spawner.spawns.Load())
	assert.Equal(t, []string{"-i", "test-source"}, spawner.args.Load())
	assert.Equal(t, int64(8), s.BytesRead())
}

func TestSession_ConcatenationMatchesOutput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, chunkSize := range []int{1, 7, 4096, DefaultChunkSize} {
		payload := make([]byte, 50_000)
		rng.Read(payload)

		proc := &fakeProcess{pid: 1, src: bytes.NewReader(payload)}
		s := New("src", WithSpawner(&fakeSpawner{proc: proc}), WithChunkSize(chunkSize))
		require.NoError(t, s.Start())

		got, err := collect(t, s, 10*time.Second)
		require.NoError(t, err)

		var buf bytes.Buffer
		for i, r := range got {
			if i == len(got)-1 {
				assert.Equal(t, KindEndOfStream, r.Kind)
				break
			}
			require.Equal(t, KindData, r.Kind)
			assert.LessOrEqual(t, len(r.Data), chunkSize)
			buf.Write(r.Data)
		}
		assert.Equal(t, payload, buf.Bytes(), "chunk size %d", chunkSize)
		s.Stop()
	}
}

func TestSession_SpawnFailure(t *testing.T) {
	spawnErr := errors.New("executable file not found")
	obs := &recordingObserver{}
	s := New("src", WithSpawner(&fakeSpawner{err: spawnErr}), WithObserver(obs))
	defer s.Stop()

	require.NoError(t, s.Start())

	got, err := collect(t, s, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, KindError, got[0].Kind)
	require.NotNil(t, got[0].Err)
	assert.Equal(t, SpawnFailure, got[0].Err.Kind)
	assert.ErrorIs(t, got[0].Err, spawnErr)

	<-s.Done()
	_, err = s.Poll()
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, []Outcome{OutcomeSpawnFailure}, obs.outcomes)
}

func TestSession_ReadFaultIsDistinguishable(t *testing.T) {
	readErr := errors.New("broken pipe")
	proc := &fakeProcess{pid: 3, chunks: [][]byte{[]byte("partial")}, finalErr: readErr}
	s := New("src", WithSpawner(&fakeSpawner{proc: proc}))
	defer s.Stop()

	require.NoError(t, s.Start())

	got, err := collect(t, s, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("partial"), got[0].Data)
	assert.Equal(t, KindError, got[1].Kind)
	assert.Equal(t, ReadFault, got[1].Err.Kind)
	assert.ErrorIs(t, got[1].Err, readErr)

	<-s.Done()
	assert.True(t, proc.waited.Load())
}

func TestSession_StopKillsProcess(t *testing.T) {
	proc := &fakeProcess{pid: 9, endless: []byte("xx"), interval: 2 * time.Millisecond}
	obs := &recordingObserver{}
	s := New("src", WithSpawner(&fakeSpawner{proc: proc}), WithObserver(obs))
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool {
		r, err := s.Poll()
		return err == nil && r.Kind == KindData
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 9, s.Pid())

	s.Stop()

	select {
	case <-s.Done():
	default:
		t.Fatal("reader still running after Stop")
	}
	assert.True(t, proc.killed.Load())
	assert.True(t, proc.waited.Load())
	assert.Equal(t, 0, s.Pid())
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, []Outcome{OutcomeCancelled}, obs.outcomes)

	_, err := s.Poll()
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestSession_ExitedProcessIsNotKilled(t *testing.T) {
	proc := &fakeProcess{pid: 5, chunks: [][]byte{[]byte("a")}}
	s := New("src", WithSpawner(&fakeSpawner{proc: proc}))
	require.NoError(t, s.Start())

	_, err := collect(t, s, 2*time.Second)
	require.NoError(t, err)
	s.Stop()

	assert.False(t, proc.killed.Load())
	assert.True(t, proc.waited.Load())
}

func TestSession_PollDoesNotBlockDuringRead(t *testing.T) {
	proc := &fakeProcess{pid: 11, block: make(chan struct{})}
	s := New("src", WithSpawner(&fakeSpawner{proc: proc}))
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return proc.reads.Load() > 0 }, 2*time.Second, time.Millisecond)

	for i := 0; i < 100; i++ {
		start := time.Now()
		_, err := s.Poll()
		elapsed := time.Since(start)
		require.ErrorIs(t, err, ErrEmpty)
		assert.Less(t, elapsed, time.Millisecond)
	}

	close(proc.block)
	s.Stop()
}

func TestSession_Lifecycle(t *testing.T) {
	newSession := func() *Session {
		return New("src", WithSpawner(&fakeSpawner{proc: &fakeProcess{pid: 1}}))
	}

	t.Run("poll before start", func(t *testing.T) {
		s := newSession()
		_, err := s.Poll()
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, StateIdle, s.State())
	})

	t.Run("start twice", func(t *testing.T) {
		s := newSession()
		require.NoError(t, s.Start())
		defer s.Stop()
		assert.ErrorIs(t, s.Start(), ErrInvalidState)
		assert.Equal(t, StateRunning, s.State())
	})

	t.Run("start after stop", func(t *testing.T) {
		s := newSession()
		require.NoError(t, s.Start())
		s.Stop()
		assert.ErrorIs(t, s.Start(), ErrInvalidState)
	})

	t.Run("stop is repeatable", func(t *testing.T) {
		s := newSession()
		require.NoError(t, s.Start())
		s.Stop()
		s.Stop()
		assert.Equal(t, StateStopped, s.State())
	})

	t.Run("stop idle session", func(t *testing.T) {
		s := newSession()
		s.Stop()
		<-s.Done()
		assert.Equal(t, StateStopped, s.State())
		assert.ErrorIs(t, s.Start(), ErrInvalidState)
	})
}

func TestSession_PanicSurfacesAsDisconnected(t *testing.T) {
	spawner := SpawnerFunc(func([]string) (Process, error) {
		panic("boom")
	})
	obs := &recordingObserver{}
	s := New("src", WithSpawner(spawner), WithObserver(obs))
	defer s.Stop()

	require.NoError(t, s.Start())
	<-s.Done()

	_, err := s.Poll()
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Equal(t, []Outcome{OutcomePanic}, obs.outcomes)
}

func TestSession_ObserverCountsChunks(t *testing.T) {
	proc := &fakeProcess{pid: 2, chunks: [][]byte{[]byte("abc"), []byte("de")}}
	obs := &recordingObserver{}
	s := New("src", WithSpawner(&fakeSpawner{proc: proc}), WithObserver(obs))
	require.NoError(t, s.Start())

	_, err := collect(t, s, 2*time.Second)
	require.NoError(t, err)
	s.Stop()

	assert.Equal(t, 1, obs.starts)
	assert.Equal(t, 2, obs.chunks)
	assert.Equal(t, 5, obs.bytes)
	assert.Equal(t, []Outcome{OutcomeEndOfStream}, obs.outcomes)
}

func TestSession_BlockingQueueReleasedByStop(t *testing.T) {
	proc := &fakeProcess{pid: 4, endless: []byte("z"), interval: 0}
	s := New("src",
		WithSpawner(&fakeSpawner{proc: proc}),
		WithQueueLimit(2, OverflowBlock))
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return s.Pending() == 2 }, 2*time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not release a blocked reader")
	}
	assert.True(t, proc.killed.Load())
}

func TestResponse_Terminal(t *testing.T) {
	assert.False(t, dataResponse([]byte("x")).Terminal())
	assert.True(t, endOfStream().Terminal())
	assert.True(t, errorResponse(ReadFault, io.ErrUnexpectedEOF).Terminal())
	assert.Equal(t, "read_fault: unexpected EOF", errorResponse(ReadFault, io.ErrUnexpectedEOF).Err.Error())
}
