package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

func (s *Session) run(ctx context.Context) {
	outcome := OutcomeCancelled
	defer close(s.done)
	defer func() { s.cfg.observer.ObserveFinish(s.source, outcome) }()
	defer s.queue.close()
	defer func() {
		if r := recover(); r != nil {
			s.cfg.logger.Error("transcoder reader panicked",
				"source", s.source,
				"panic", fmt.Sprint(r))
			outcome = OutcomePanic
		}
	}()

	outcome = s.pump(ctx)
}

// pump spawns the process and copies its output into the queue until the
// output ends, a read fails, or ctx is cancelled.
func (s *Session) pump(ctx context.Context) Outcome {
	log := s.cfg.logger.With("source", s.source)

	proc, err := s.cfg.spawner.Spawn(s.cfg.args)
	if err != nil {
		log.Error("transcoder spawn failed", "error", err)
		s.queue.push(errorResponse(SpawnFailure, err))
		return OutcomeSpawnFailure
	}

	pid := proc.Pid()
	s.pid.Store(int64(pid))
	log.Debug("transcoder started", "pid", pid)
	defer func() {
		if err := release(proc); err != nil {
			log.Debug("transcoder exited", "pid", pid, "error", err)
		}
		s.pid.Store(0)
	}()

	dr, _ := proc.(deadlineReader)
	if s.cfg.readPollInterval <= 0 {
		dr = nil
	}

	buf := make([]byte, s.cfg.chunkSize)
	for {
		if ctx.Err() != nil {
			log.Debug("transcoder reader cancelled", "pid", pid)
			return OutcomeCancelled
		}

		if dr != nil {
			if err := dr.SetReadDeadline(time.Now().Add(s.cfg.readPollInterval)); err != nil {
				dr = nil
			}
		}

		n, err := proc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !s.queue.push(dataResponse(chunk)) {
				return OutcomeCancelled
			}
			s.bytesRead.Add(int64(n))
			s.cfg.observer.ObserveChunk(n)
		}

		switch {
		case err == nil:
		case errors.Is(err, os.ErrDeadlineExceeded):
		case errors.Is(err, io.EOF):
			log.Debug("transcoder output closed", "pid", pid, "bytes", s.bytesRead.Load())
			s.queue.push(endOfStream())
			return OutcomeEndOfStream
		default:
			log.Warn("transcoder read failed", "pid", pid, "error", err)
			s.queue.push(errorResponse(ReadFault, err))
			return OutcomeReadFault
		}
	}
}
