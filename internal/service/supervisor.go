package service

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/liveclip/live-stream-clipper/internal/metrics"
)

var terminateSignal = syscall.SIGTERM

// SpawnFunc starts a live encoding session for the given source.
type SpawnFunc func(source string) (EncoderProcess, error)

// Supervisor owns at most one active live encoding session. Switching sources
// fully terminates the old session and clears stale local output before the new
// encoder is spawned, so a dying writer never races the cleanup or the new run.
type Supervisor struct {
	mu     sync.Mutex
	spawn  SpawnFunc
	outDir string
	grace  time.Duration

	active EncoderProcess
	source string
}

func NewSupervisor(enc *Encoder, out LiveOutput, grace time.Duration) *Supervisor {
	return NewSupervisorWithSpawn(func(source string) (EncoderProcess, error) {
		return enc.StartLive(source, out)
	}, out.Dir, grace)
}

// NewSupervisorWithSpawn constructs a Supervisor around an arbitrary spawn
// function. Used by tests to avoid a real encoder binary.
func NewSupervisorWithSpawn(spawn SpawnFunc, outDir string, grace time.Duration) *Supervisor {
	return &Supervisor{
		spawn:  spawn,
		outDir: outDir,
		grace:  grace,
	}
}

// Start stops any active session, clears segment and playlist files from the
// local output directory, then spawns a new encoder for source. It returns once
// the process has been spawned; first output is not awaited. Concurrent calls
// serialize: a switch in progress completes its stop-then-start sequence before
// the next begins.
func (s *Supervisor) Start(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.clearOutputLocked()

	slog.Info("Starting transcoding", "source", source)
	proc, err := s.spawn(source)
	if err != nil {
		slog.Error("Failed to spawn encoder", "source", source, "err", err)
		return err
	}
	s.active = proc
	s.source = source
	metrics.SessionsStarted.Inc()
	go s.reap(proc, source)
	return nil
}

// Stop terminates the active session, if any. Idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// CurrentSource returns the source of the most recently started session. It is
// read by clip extraction; a switch racing an in-flight extraction may extract
// from the new source, an accepted limitation.
func (s *Supervisor) CurrentSource() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// stopLocked terminates the active process, escalating to a forced kill when
// the grace period expires, and waits until the process has been reaped so it
// can no longer write to the output directory. Caller must hold s.mu.
func (s *Supervisor) stopLocked() {
	proc := s.active
	if proc == nil {
		return
	}
	slog.Info("Stopping current encoder session", "source", s.source)
	if err := proc.Terminate(); err != nil {
		slog.Warn("Terminate signal failed", "err", err)
	}
	select {
	case <-proc.Done():
	case <-time.After(s.grace):
		slog.Warn("Encoder unresponsive to terminate, killing", "grace", s.grace.String())
		if err := proc.Kill(); err != nil {
			slog.Warn("Kill failed", "err", err)
		}
		<-proc.Done()
	}
	s.active = nil
}

// clearOutputLocked removes every segment and playlist file from the local
// output directory. Caller must hold s.mu with no active session.
func (s *Supervisor) clearOutputLocked() {
	entries, err := os.ReadDir(s.outDir)
	if err != nil {
		slog.Warn("Failed to list output directory", "dir", s.outDir, "err", err)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".ts") && !strings.HasSuffix(name, ".m3u8") {
			continue
		}
		if err := os.Remove(filepath.Join(s.outDir, name)); err != nil {
			slog.Warn("Failed to remove stale output file", "name", name, "err", err)
		}
	}
}

// reap logs an encoder exit and releases the session when the process was not
// stopped deliberately, so the supervisor is left in a clean inactive state.
func (s *Supervisor) reap(proc EncoderProcess, source string) {
	<-proc.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != proc {
		// Stopped deliberately by stopLocked.
		return
	}
	s.active = nil
	if err := proc.Err(); err != nil {
		slog.Error("Encoder exited with failure", "source", source, "err", err, "stderr", proc.Diagnostics())
	} else {
		slog.Info("Encoder exited", "source", source)
	}
}
