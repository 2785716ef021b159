package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env (when present) and the environment into a Config.
// S3_BUCKET is required; everything else has a logged default.
func LoadEnv() Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found or error loading .env file", "err", err)
	}
	s3Bucket := os.Getenv("S3_BUCKET")
	if s3Bucket == "" {
		slog.Error("S3_BUCKET is not set")
		os.Exit(1)
	}
	return Config{
		S3Bucket:          s3Bucket,
		VideoSource:       envString("VIDEO_SOURCE", "test.mp4"),
		HLSOutputDir:      envString("HLS_OUTPUT_DIR", "stream"),
		ClipsDir:          envString("CLIPS_DIR", "clips"),
		UploadDir:         envString("UPLOAD_DIR", "."),
		SegmentSeconds:    envInt("HLS_TIME_SEC", 20),
		WindowSize:        envInt("HLS_LIST_SIZE", 30),
		PollInterval:      envDuration("POLL_INTERVAL_MS", 600*time.Millisecond),
		ReactionWindow:    envSeconds("REACTION_WINDOW_SEC", 3*time.Second),
		ReactionThreshold: envInt("REACTION_THRESHOLD", 1),
		ClipBackSeconds:   float64(envInt("CLIP_BACK_SECONDS", 30)),
		StopGrace:         envSeconds("STOP_GRACE_SEC", 5*time.Second),
	}
}

func envString(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Warn("env var not set, using default", "key", key, "default", fallback)
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		slog.Warn("env var not set, using default", "key", key, "default", fallback)
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Error("env var is not a valid integer", "key", key, "err", err)
		os.Exit(1)
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	ms := envInt(key, int(fallback.Milliseconds()))
	return time.Duration(ms) * time.Millisecond
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	sec := envInt(key, int(fallback.Seconds()))
	return time.Duration(sec) * time.Second
}
