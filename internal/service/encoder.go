package service

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/liveclip/live-stream-clipper/internal/domain"
)

const (
	// SegmentPrefix is the local segment filename prefix; the encoder appends a
	// sequential numeric suffix.
	SegmentPrefix  = "segment_"
	SegmentPattern = SegmentPrefix + "%03d.ts"
	PlaylistName   = "stream.m3u8"

	// stderrTailBytes bounds how much encoder diagnostic output is retained.
	// ffmpeg writes progress to stderr for the whole session, so the live
	// process must not buffer it unbounded.
	stderrTailBytes = 4 * 1024

	defaultExtractTimeout = 5 * time.Minute
)

// LiveOutput describes the local directory layout a live encoding session
// writes into.
type LiveOutput struct {
	Dir            string
	SegmentSeconds int
	WindowSize     int
}

func (o LiveOutput) PlaylistPath() string {
	return filepath.Join(o.Dir, PlaylistName)
}

// CommandRunner executes an external command to completion and returns its
// combined output. Injectable so tests never spawn a real encoder.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput()
}

// Encoder invokes the external ffmpeg binary, either as a long-running live
// HLS session or as a single-shot bounded extraction.
type Encoder struct {
	Binary string
	// Run executes single-shot invocations; defaults to exec.CommandContext.
	Run CommandRunner
	// ExtractTimeout bounds a single-shot extraction so a hung encoder cannot
	// leak a blocked caller.
	ExtractTimeout time.Duration
}

func NewEncoder() *Encoder {
	return &Encoder{
		Binary:         "ffmpeg",
		Run:            defaultCommandRunner,
		ExtractTimeout: defaultExtractTimeout,
	}
}

// LiveArgs builds the live-mode argument contract: real-time pacing, infinite
// source loop, constant frame rate, keyframes forced on segment boundaries,
// fixed segment duration, sliding-window playlist with segment eviction.
func (e *Encoder) LiveArgs(source string, out LiveOutput) []string {
	return []string{
		"-re",
		"-stream_loop", "-1",
		"-i", source,
		"-vf", "fps=25",
		"-fflags", "+genpts",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", out.SegmentSeconds),
		"-c:a", "aac",
		"-b:a", "128k",
		"-f", "hls",
		"-hls_time", strconv.Itoa(out.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(out.WindowSize),
		"-hls_flags", "delete_segments+split_by_time+program_date_time",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join(out.Dir, SegmentPattern),
		out.PlaylistPath(),
	}
}

// ExtractArgs builds the single-shot argument contract: seek, bounded read,
// re-encode to a standalone file.
func (e *Encoder) ExtractArgs(source string, clip domain.ClipRange, dest string) []string {
	return []string{
		"-ss", formatSeconds(clip.Start),
		"-i", source,
		"-t", formatSeconds(clip.Duration()),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-preset", "ultrafast",
		"-y",
		dest,
	}
}

// StartLive spawns a live encoding session writing into out. It returns once
// the process has been spawned; it does not wait for first output.
func (e *Encoder) StartLive(source string, out LiveOutput) (EncoderProcess, error) {
	cmd := exec.Command(e.Binary, e.LiveArgs(source, out)...)
	p := &ffmpegProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	cmd.Stderr = &p.stderr
	if err := cmd.Start(); err != nil {
		return nil, &domain.EncoderError{Op: "live", Err: err}
	}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Extract runs the encoder in single-shot mode, blocking until the clip file
// exists or the invocation fails. Diagnostic output is captured and returned
// inside the error.
func (e *Encoder) Extract(ctx context.Context, source string, clip domain.ClipRange, dest string) error {
	run := e.Run
	if run == nil {
		run = defaultCommandRunner
	}
	timeout := e.ExtractTimeout
	if timeout <= 0 {
		timeout = defaultExtractTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := run(execCtx, e.Binary, e.ExtractArgs(source, clip, dest)...)
	if err != nil {
		return &domain.EncoderError{Op: "extract", Err: err, Stderr: tail(string(out), stderrTailBytes)}
	}
	return nil
}

// EncoderProcess is a handle on a spawned live encoding session.
type EncoderProcess interface {
	// Terminate asks the process to exit; exit code 0 is expected only after
	// this signal.
	Terminate() error
	// Kill forcibly ends the process after an unresponsive Terminate.
	Kill() error
	// Done is closed once the process has been reaped.
	Done() <-chan struct{}
	// Err returns the exit error; valid only after Done is closed.
	Err() error
	// Diagnostics returns the tail of the process's stderr.
	Diagnostics() string
}

type ffmpegProcess struct {
	cmd     *exec.Cmd
	stderr  tailBuffer
	done    chan struct{}
	exitErr error
}

func (p *ffmpegProcess) Terminate() error {
	return p.cmd.Process.Signal(terminateSignal)
}

func (p *ffmpegProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *ffmpegProcess) Done() <-chan struct{} {
	return p.done
}

func (p *ffmpegProcess) Err() error {
	return p.exitErr
}

func (p *ffmpegProcess) Diagnostics() string {
	return p.stderr.String()
}

// tailBuffer keeps only the most recent stderrTailBytes of what is written.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(b)
	if t.buf.Len() > stderrTailBytes {
		trimmed := t.buf.Bytes()[t.buf.Len()-stderrTailBytes:]
		var next bytes.Buffer
		next.Write(trimmed)
		t.buf = next
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
