// Package main implements the entry point for the live stream clipper service.
// It starts the live transcoding session, runs the segment publication loop,
// and serves the HTTP surface for source switching, reactions, and clips.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liveclip/live-stream-clipper/internal/adapter"
	"github.com/liveclip/live-stream-clipper/internal/config"
	"github.com/liveclip/live-stream-clipper/internal/handlers"
	"github.com/liveclip/live-stream-clipper/internal/middleware"
	"github.com/liveclip/live-stream-clipper/internal/service"
)

// ensureS3Bucket ensures the S3 bucket exists, creating it if it does not. Exits the program on error.
func ensureS3Bucket(s3Client *adapter.S3ClientImpl, s3Bucket string) {
	exists, err := s3Client.BucketExists(context.Background(), s3Bucket)
	if err != nil {
		slog.Error("Failed to check if bucket exists", "err", err)
		os.Exit(1)
	}
	if !exists {
		err := s3Client.MakeBucket(context.Background(), s3Bucket, minio.MakeBucketOptions{
			Region: "eu-west-1",
		})
		if err != nil {
			slog.Error("Failed to create bucket", "err", err)
			os.Exit(1)
		}
		slog.Info("Bucket created", "bucket", s3Bucket)
	}
}

func ensureDirs(cfg config.Config) {
	for _, dir := range []string{cfg.HLSOutputDir, cfg.ClipsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("Failed to create directory", "dir", dir, "err", err)
			os.Exit(1)
		}
	}
}

// setupHTTPServer configures and returns the main HTTP server. It also starts
// the Prometheus metrics server on port 2112.
func setupHTTPServer(v1Handler *handlers.V1Handler) *http.Server {
	handlersRouter := handlers.NewRouter(v1Handler)
	wrappedHandler := middleware.RequestLogger(middleware.CORS(handlersRouter))
	go func() {
		slog.Info("Starting Prometheus metrics server on :2112/metrics")
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":2112", nil); err != nil {
			slog.Error("Prometheus metrics server error", "err", err)
		}
	}()

	return config.NewHTTPServer(wrappedHandler)
}

// gracefulShutdown drains the HTTP server, stops the synchronizer loop and the
// live encoder session, and closes the Redis client.
func gracefulShutdown(server *http.Server, cancelSync context.CancelFunc, supervisor *service.Supervisor, redisClient *adapter.RedisClientImpl) {
	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	} else {
		slog.Info("Server exited gracefully")
	}

	cancelSync()
	supervisor.Stop()

	if err := redisClient.Close(); err != nil {
		slog.Error("Failed to close Redis client", "err", err)
	} else {
		slog.Info("Redis client closed")
	}

	slog.Info("MinIO client shutdown complete (no explicit close required)")
}

func main() {
	// Load configuration
	cfg := config.LoadEnv()
	ensureDirs(cfg)

	// Instantiate external clients
	clients := config.NewAppClients()

	// Ensure S3 bucket exists
	ensureS3Bucket(clients.S3Client, cfg.S3Bucket)

	// Instantiate services
	encoder := service.NewEncoder()
	liveOutput := service.LiveOutput{
		Dir:            cfg.HLSOutputDir,
		SegmentSeconds: cfg.SegmentSeconds,
		WindowSize:     cfg.WindowSize,
	}
	supervisor := service.NewSupervisor(encoder, liveOutput, cfg.StopGrace)
	store := adapter.NewLiveBucket(clients.S3Client, cfg.S3Bucket)
	synchronizer := service.NewSynchronizer(store, clients.RedisClient, cfg.HLSOutputDir, cfg.PollInterval)
	engine := service.NewEngine(cfg.ReactionWindow, cfg.ReactionThreshold, cfg.ClipBackSeconds)
	clipper := service.NewClipper(encoder, cfg.ClipsDir, supervisor.CurrentSource)

	// Begin transcoding the default source; a failure is reported but the
	// service still comes up so an operator can switch to a valid source.
	if err := supervisor.Start(cfg.VideoSource); err != nil {
		slog.Error("Initial transcoding start failed", "source", cfg.VideoSource, "err", err)
	}

	// Run the publication loop in the background
	syncCtx, cancelSync := context.WithCancel(context.Background())
	slog.Info("Running background: segment publication synchronizer")
	go synchronizer.Run(syncCtx)

	// Set up HTTP server
	v1Handler := &handlers.V1Handler{
		Streams:   supervisor,
		Engine:    engine,
		Clips:     clipper,
		Publisher: synchronizer,
		UploadDir: cfg.UploadDir,
		StreamDir: cfg.HLSOutputDir,
	}
	server := setupHTTPServer(v1Handler)

	// Channel to listen for interrupt or terminate signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "err", err)
		}
	}()

	<-quit
	gracefulShutdown(server, cancelSync, supervisor, clients.RedisClient)
}
