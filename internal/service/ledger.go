package service

import (
	"context"
	"sync"
)

// PublishLedger tracks which segment filenames have already been uploaded.
// Implementations can be in-memory or remote; the Redis-backed one survives
// process restarts so published segments are never re-uploaded.
type PublishLedger interface {
	IsPublished(ctx context.Context, name string) (bool, error)
	MarkPublished(ctx context.Context, name string) error
	// Reset forgets every recorded name; called when a new session starts.
	Reset(ctx context.Context) error
}

// MemoryLedger is an in-memory PublishLedger.
type MemoryLedger struct {
	mu        sync.Mutex
	published map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{published: make(map[string]struct{})}
}

func (l *MemoryLedger) IsPublished(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.published[name]
	return ok, nil
}

func (l *MemoryLedger) MarkPublished(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.published[name] = struct{}{}
	return nil
}

func (l *MemoryLedger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.published = make(map[string]struct{})
	return nil
}
