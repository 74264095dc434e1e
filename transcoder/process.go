package transcoder

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Process is a running transcoder whose standard output can be read.
type Process interface {
	// Read reads transcoded bytes from the process output. It blocks until
	// data is available and returns io.EOF once the output is closed.
	Read(p []byte) (int, error)
	// Pid returns the operating system process id.
	Pid() int
	// Exited reports whether the process has terminated. It never blocks.
	Exited() bool
	// Kill terminates the process. Killing an exited process is not an error.
	Kill() error
	// Wait blocks until the process has terminated and releases its resources.
	Wait() error
}

// Spawner starts transcoder processes.
type Spawner interface {
	Spawn(args []string) (Process, error)
}

// SpawnerFunc adapts a function to the Spawner interface.
type SpawnerFunc func(args []string) (Process, error)

func (f SpawnerFunc) Spawn(args []string) (Process, error) {
	return f(args)
}

// deadlineReader is implemented by process outputs that support bounded reads.
type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// ExecSpawner runs Binary with the given arguments. Standard error is
// discarded and standard output is exposed through Process.Read.
type ExecSpawner struct {
	Binary string
}

// Spawn starts the binary. The output pipe is owned by the returned process
// so that reaping the child never discards unread output.
func (s ExecSpawner) Spawn(args []string) (Process, error) {
	if s.Binary == "" {
		return nil, errors.New("no transcoder binary configured")
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	cmd := exec.Command(s.Binary, args...)
	cmd.Stdout = pw
	cmd.Stderr = nil
	configureCommand(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", s.Binary, err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	p := &execProcess{
		cmd:    cmd,
		stdout: pr,
		done:   make(chan struct{}),
	}
	go p.reap()
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	stdout  *os.File
	done    chan struct{}
	waitErr error
	close   sync.Once
}

func (p *execProcess) reap() {
	p.waitErr = p.cmd.Wait()
	close(p.done)
}

func (p *execProcess) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *execProcess) SetReadDeadline(t time.Time) error {
	return p.stdout.SetReadDeadline(t)
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *execProcess) Kill() error {
	if p.Exited() {
		return nil
	}
	return killProcess(p.cmd.Process)
}

func (p *execProcess) Wait() error {
	<-p.done
	p.close.Do(func() { p.stdout.Close() })
	return p.waitErr
}

// release is the single teardown path for a spawned process: kill it if it
// is still alive, then reap it. Kill errors are ignored.
func release(p Process) error {
	if !p.Exited() {
		_ = p.Kill()
	}
	return p.Wait()
}
