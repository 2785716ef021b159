package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/liveclip/live-stream-clipper/internal/domain"
	"github.com/liveclip/live-stream-clipper/internal/metrics"
)

// ClipExtractor produces a standalone clip file for a validated time range and
// returns its path. Extraction is synchronous; the caller blocks for the full
// extraction duration and serves the file directly.
type ClipExtractor interface {
	Extract(ctx context.Context, clip domain.ClipRange) (string, error)
}

// ValidateClipRange checks the shape of an explicit clip request: start must
// be nonnegative and end strictly after start. Range positions past the
// playable range of the looped source are not clamped here; the encoder
// truncates best-effort and its failure surfaces to the caller.
func ValidateClipRange(start, end float64) (domain.ClipRange, error) {
	if math.IsNaN(start) || math.IsInf(start, 0) || start < 0 {
		return domain.ClipRange{}, domain.Invalid("start_time must be >= 0")
	}
	if math.IsNaN(end) || math.IsInf(end, 0) || end <= start {
		return domain.ClipRange{}, domain.Invalid("end_time must be greater than start_time")
	}
	return domain.ClipRange{Start: start, End: end}, nil
}

// Clipper extracts clips from the currently active live source into the clips
// directory. Produced files are never cleaned up automatically.
type Clipper struct {
	enc      *Encoder
	clipsDir string
	source   func() string
}

func NewClipper(enc *Encoder, clipsDir string, source func() string) *Clipper {
	return &Clipper{
		enc:      enc,
		clipsDir: clipsDir,
		source:   source,
	}
}

// Extract implements ClipExtractor. The source is snapshotted when extraction
// starts; a concurrent source switch may still affect an in-flight extraction.
func (c *Clipper) Extract(ctx context.Context, clip domain.ClipRange) (string, error) {
	source := c.source()
	dest := filepath.Join(c.clipsDir, ClipFileName(clip))
	if err := c.enc.Extract(ctx, source, clip, dest); err != nil {
		metrics.ClipsFailed.Inc()
		slog.Error("Clip extraction failed", "source", source, "start", clip.Start, "end", clip.End, "err", err)
		return "", err
	}
	metrics.ClipsCreated.Inc()
	slog.Info("Clip created", "path", dest, "start", clip.Start, "end", clip.End)
	return dest, nil
}

// ClipFileName names a clip with a random component plus the requested range,
// for traceability: clip_<8 hex>_<start>_<end>.mp4.
func ClipFileName(clip domain.ClipRange) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("clip_%s_%d_%d.mp4", random, int(clip.Start), int(clip.End))
}
