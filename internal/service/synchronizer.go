package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/liveclip/live-stream-clipper/internal/metrics"
	"github.com/liveclip/live-stream-clipper/internal/service/utils"
)

const (
	// RemotePrefix is prepended to every object key published for the live channel.
	RemotePrefix = "live/"

	playlistContentType = "application/x-mpegURL"
	segmentContentType  = "video/MP2T"

	defaultPlaylistStableDelay = 200 * time.Millisecond
	defaultSegmentStableDelay  = 400 * time.Millisecond
)

// ObjectStore is the durable store capability the synchronizer publishes
// through. Upload overwrites; Remove of a missing key is not an error.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, keys ...string) error
}

// Synchronizer continuously republishes the local encoder output: the playlist
// on every observed revision, each segment exactly once. It runs as a single
// background loop and owns all publication state; nothing else mutates it apart
// from Reset on a session switch.
type Synchronizer struct {
	store        ObjectStore
	ledger       PublishLedger
	dir          string
	pollInterval time.Duration

	playlistStableDelay time.Duration
	segmentStableDelay  time.Duration

	mu                sync.Mutex
	lastPlaylistMtime time.Time
}

func NewSynchronizer(store ObjectStore, ledger PublishLedger, dir string, pollInterval time.Duration) *Synchronizer {
	return &Synchronizer{
		store:               store,
		ledger:              ledger,
		dir:                 dir,
		pollInterval:        pollInterval,
		playlistStableDelay: defaultPlaylistStableDelay,
		segmentStableDelay:  defaultSegmentStableDelay,
	}
}

// Run loops until ctx is cancelled. A directory watcher wakes the next cycle
// early when the encoder writes; the ticker is the liveness floor, so the
// publish contract holds even when no events are delivered.
func (s *Synchronizer) Run(ctx context.Context) {
	var events <-chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("Failed to create directory watcher, polling only", "err", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(s.dir); err != nil {
			slog.Warn("Failed to watch output directory, polling only", "dir", s.dir, "err", err)
		} else {
			events = watcher.Events
		}
		go func() {
			for err := range watcher.Errors {
				slog.Error("Directory watcher error", "err", err)
			}
		}()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		s.SyncOnce(ctx)
		select {
		case <-ctx.Done():
			slog.Info("Shutting down segment synchronizer")
			return
		case <-ticker.C:
		case <-events:
		}
	}
}

// SyncOnce runs one publication cycle: the playlist first, on every cycle
// regardless of segment activity, then every not-yet-published segment in
// directory listing order. A single failed upload never aborts the cycle.
func (s *Synchronizer) SyncOnce(ctx context.Context) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Error("Failed to list output directory", "dir", s.dir, "err", err)
		return
	}

	s.syncPlaylist(ctx)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, SegmentPrefix) || !strings.HasSuffix(name, ".ts") {
			continue
		}
		s.syncSegment(ctx, name)
	}
}

// Reset clears the playlist watermark and the publish ledger. Called after a
// new transcoding session has cleared the local output directory.
func (s *Synchronizer) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.lastPlaylistMtime = time.Time{}
	s.mu.Unlock()
	return s.ledger.Reset(ctx)
}

func (s *Synchronizer) syncPlaylist(ctx context.Context) {
	path := filepath.Join(s.dir, PlaylistName)
	info, err := os.Stat(path)
	if err != nil {
		// No playlist yet; the encoder has not produced output.
		return
	}
	mtime := info.ModTime()

	s.mu.Lock()
	last := s.lastPlaylistMtime
	s.mu.Unlock()
	if !mtime.After(last) {
		return
	}
	if !utils.IsFileStable(path, s.playlistStableDelay) {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Failed to read playlist", "path", path, "err", err)
		return
	}
	if err := s.uploadReplacing(ctx, RemotePrefix+PlaylistName, data, playlistContentType); err != nil {
		metrics.PlaylistPublishedErrors.Inc()
		slog.Error("Playlist upload failed", "err", err)
		return
	}
	metrics.PlaylistPublished.Inc()
	slog.Debug("Playlist revision published", "mtime", mtime)

	s.mu.Lock()
	if mtime.After(s.lastPlaylistMtime) {
		s.lastPlaylistMtime = mtime
	}
	s.mu.Unlock()
}

func (s *Synchronizer) syncSegment(ctx context.Context, name string) {
	published, err := s.ledger.IsPublished(ctx, name)
	if err != nil {
		slog.Error("Publish ledger lookup failed", "name", name, "err", err)
		return
	}
	if published {
		return
	}

	path := filepath.Join(s.dir, name)
	if !utils.IsFileStable(path, s.segmentStableDelay) {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Failed to read segment", "path", path, "err", err)
		return
	}
	if err := s.uploadReplacing(ctx, RemotePrefix+name, data, segmentContentType); err != nil {
		metrics.SegmentsPublishedErrors.Inc()
		slog.Error("Segment upload failed", "name", name, "err", err)
		return
	}
	if err := s.ledger.MarkPublished(ctx, name); err != nil {
		// Worst case the segment is re-uploaded next cycle; uploads overwrite.
		slog.Error("Failed to record published segment", "name", name, "err", err)
	}
	metrics.SegmentsPublished.Inc()
	slog.Info("Segment published", "name", name)
}

// uploadReplacing uploads key once; on failure it assumes a conflicting
// existing object, removes it, and retries exactly once before reporting.
func (s *Synchronizer) uploadReplacing(ctx context.Context, key string, data []byte, contentType string) error {
	err := s.store.Upload(ctx, key, data, contentType)
	if err == nil {
		return nil
	}
	if rmErr := s.store.Remove(ctx, key); rmErr != nil {
		slog.Warn("Remove before re-upload failed", "key", key, "err", rmErr)
	}
	return s.store.Upload(ctx, key, data, contentType)
}
