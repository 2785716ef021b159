package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SegmentsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "live_segments_published_total",
			Help: "Total number of segments uploaded to the durable store",
		},
	)
	SegmentsPublishedErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "live_segments_published_errors_total",
			Help: "Total number of segment uploads that failed after the replace retry",
		},
	)
	PlaylistPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "live_playlist_published_total",
			Help: "Total number of playlist revisions uploaded to the durable store",
		},
	)
	PlaylistPublishedErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "live_playlist_published_errors_total",
			Help: "Total number of playlist uploads that failed after the replace retry",
		},
	)
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "live_sessions_started_total",
			Help: "Total number of transcoding sessions started",
		},
	)
	ReactionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_reactions_recorded_total",
			Help: "Total number of reaction events accepted",
		},
		[]string{"kind"},
	)
	ReactionTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_reaction_triggers_total",
			Help: "Total number of crowd reaction triggers fired",
		},
		[]string{"kind"},
	)
	ClipsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "live_clips_created_total",
			Help: "Total number of clips extracted successfully",
		},
	)
	ClipsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "live_clips_failed_total",
			Help: "Total number of clip extractions that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(SegmentsPublished)
	prometheus.MustRegister(SegmentsPublishedErrors)
	prometheus.MustRegister(PlaylistPublished)
	prometheus.MustRegister(PlaylistPublishedErrors)
	prometheus.MustRegister(SessionsStarted)
	prometheus.MustRegister(ReactionsRecorded)
	prometheus.MustRegister(ReactionTriggers)
	prometheus.MustRegister(ClipsCreated)
	prometheus.MustRegister(ClipsFailed)
}
