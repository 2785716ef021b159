package config

import (
	"time"

	"github.com/liveclip/live-stream-clipper/internal/adapter"
)

// Config carries every tunable of the live stream clipper. Defaults mirror the
// values LoadEnv falls back to when the environment is silent.
type Config struct {
	S3Bucket string

	// VideoSource is the source the supervisor starts transcoding at boot.
	VideoSource string
	// HLSOutputDir holds the rolling segment files and the playlist, owned
	// exclusively by the active encoder process.
	HLSOutputDir string
	// ClipsDir holds completed extracted clips; never cleaned up automatically.
	ClipsDir string
	// UploadDir is where uploaded source files land and are listed from.
	UploadDir string

	SegmentSeconds int
	WindowSize     int

	PollInterval      time.Duration
	ReactionWindow    time.Duration
	ReactionThreshold int
	ClipBackSeconds   float64

	// StopGrace is how long a terminated encoder gets before a forced kill.
	StopGrace time.Duration
}

// AppClients groups the external clients the service depends on.
type AppClients struct {
	RedisClient *adapter.RedisClientImpl
	S3Client    *adapter.S3ClientImpl
}

func NewAppClients() *AppClients {
	return &AppClients{
		RedisClient: adapter.NewRedisClientImpl(),
		S3Client:    adapter.NewMinioClient(),
	}
}
