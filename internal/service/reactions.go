package service

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/liveclip/live-stream-clipper/internal/domain"
	"github.com/liveclip/live-stream-clipper/internal/metrics"
)

// Trigger describes a crowd reaction that crossed the threshold and the clip
// boundary computed from it.
type Trigger struct {
	Clip        domain.ClipRange
	UniqueUsers int
}

// Status reports the aggregation state of one reaction kind after a recording.
type Status struct {
	Kind           domain.ReactionKind
	UniqueInWindow int
	WindowSeconds  float64
	Threshold      int
}

// Engine accumulates time-windowed, per-user reaction events and decides when
// a crowd reaction should fire a clip. Recording and trigger evaluation share
// the per-kind windows, so both run under one lock; the kind cardinality is
// too small to justify finer granularity.
type Engine struct {
	mu      sync.Mutex
	windows map[domain.ReactionKind][]domain.ReactionEvent

	window      time.Duration
	threshold   int
	backSeconds float64

	now func() time.Time
}

func NewEngine(window time.Duration, threshold int, backSeconds float64) *Engine {
	windows := make(map[domain.ReactionKind][]domain.ReactionEvent, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		windows[kind] = nil
	}
	return &Engine{
		windows:     windows,
		window:      window,
		threshold:   threshold,
		backSeconds: backSeconds,
		now:         time.Now,
	}
}

// Record validates and appends one reaction event, stamped with the current
// server time. Invalid submissions are rejected before any state is mutated.
func (e *Engine) Record(kind domain.ReactionKind, userID string, playbackTime float64) error {
	if !domain.ValidKind(kind) {
		return domain.Invalid("invalid reaction type %q", string(kind))
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Invalid("user_id required")
	}
	if playbackTime < 0 || math.IsNaN(playbackTime) || math.IsInf(playbackTime, 0) {
		return domain.Invalid("valid 't' (seconds) required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.windows[kind] = append(e.windows[kind], domain.ReactionEvent{
		Kind:         kind,
		UserID:       userID,
		PlaybackTime: playbackTime,
		ReceivedAt:   e.now(),
	})
	metrics.ReactionsRecorded.WithLabelValues(string(kind)).Inc()
	return nil
}

// EvaluateTrigger purges expired events from every window, then counts the
// distinct users for kind using the latest event per user. When the count
// meets the threshold it computes the clip boundary, clears the kind's window
// so the same burst cannot re-fire, and reports fired.
//
// The clip end is the median of the distinct users' client-reported playback
// times (even count averages the two middles); the median resists a single
// outlier report skewing the boundary. The start backs off by the configured
// amount, clamped at zero.
func (e *Engine) EvaluateTrigger(kind domain.ReactionKind) (Trigger, Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.purgeLocked(e.now())

	latest := latestPerUser(e.windows[kind])
	status := Status{
		Kind:           kind,
		UniqueInWindow: len(latest),
		WindowSeconds:  e.window.Seconds(),
		Threshold:      e.threshold,
	}
	if len(latest) < e.threshold {
		return Trigger{}, status, false
	}

	times := make([]float64, 0, len(latest))
	for _, ev := range latest {
		times = append(times, ev.PlaybackTime)
	}
	sort.Float64s(times)
	end := median(times)
	start := end - e.backSeconds
	if start < 0 {
		start = 0
	}

	e.windows[kind] = nil
	metrics.ReactionTriggers.WithLabelValues(string(kind)).Inc()
	return Trigger{
		Clip:        domain.ClipRange{Start: start, End: end},
		UniqueUsers: len(latest),
	}, status, true
}

// purgeLocked drops events older than the window from every reaction kind.
// Caller must hold e.mu.
func (e *Engine) purgeLocked(now time.Time) {
	cutoff := now.Add(-e.window)
	for kind, events := range e.windows {
		kept := events[:0]
		for _, ev := range events {
			if !ev.ReceivedAt.Before(cutoff) {
				kept = append(kept, ev)
			}
		}
		e.windows[kind] = kept
	}
}

// latestPerUser reduces a window to one event per user: a later event from the
// same user supersedes earlier ones.
func latestPerUser(events []domain.ReactionEvent) map[string]domain.ReactionEvent {
	latest := make(map[string]domain.ReactionEvent, len(events))
	for _, ev := range events {
		latest[ev.UserID] = ev
	}
	return latest
}

// median of a sorted slice: middle value for odd counts, mean of the two
// middle values for even counts.
func median(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}
