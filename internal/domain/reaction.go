package domain

import "time"

// ReactionKind identifies one of the recognized reaction types.
type ReactionKind string

const (
	ReactionHeart   ReactionKind = "heart"
	ReactionDislike ReactionKind = "dislike"
)

// Kinds lists every recognized reaction kind.
var Kinds = []ReactionKind{ReactionHeart, ReactionDislike}

// ValidKind reports whether k is a recognized reaction kind.
func ValidKind(k ReactionKind) bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ReactionEvent is one user's reaction submission. ReceivedAt is assigned by the
// server on receipt; PlaybackTime is the client-reported playback position in seconds.
type ReactionEvent struct {
	Kind         ReactionKind `json:"kind"`
	UserID       string       `json:"user_id"`
	PlaybackTime float64      `json:"t"`
	ReceivedAt   time.Time    `json:"received_at"`
}

// ClipRange is a validated time-bounded extraction request, either user-specified
// or derived from a reaction trigger.
type ClipRange struct {
	Start float64
	End   float64
}

// Duration returns the clip length in seconds, never below 0.1 so that a
// degenerate trigger still produces a playable file.
func (c ClipRange) Duration() float64 {
	d := c.End - c.Start
	if d < 0.1 {
		return 0.1
	}
	return d
}
