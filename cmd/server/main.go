package main

import (
	// Standard library
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// External dependencies
	"github.com/gin-gonic/gin"

	// Internal packages
	"github.com/yahyachammami/meetscribe/cmd/server/internal/api"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/config"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/diarize"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/ingest"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/middleware"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/orchestrator"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/store"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/summarize"
	"github.com/yahyachammami/meetscribe/cmd/server/internal/transcribe"
	"github.com/yahyachammami/meetscribe/pkg/cache"
	"github.com/yahyachammami/meetscribe/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logEnv := cfg.Server.Env
	if cfg.Log.Format == "json" {
		logEnv = "production"
	}
	logInstance, err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Environment: logEnv,
		WithSource:  !cfg.IsProduction(),
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	appLogger := logInstance.With("component", "server")

	appLogger.Info("configuration loaded", "env", cfg.Server.Env, "port", cfg.Server.Port)
	fmt.Println(cfg.PrintConfig())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Open the job store
	st, err := store.Open(cfg.Data.DBPath)
	if err != nil {
		appLogger.Error("store init failed", "error", err, "path", cfg.Data.DBPath)
		os.Exit(1)
	}
	defer st.Close()
	appLogger.Info("job store ready", "path", cfg.Data.DBPath)

	// Open the audio blob store
	blobs, err := store.NewBlobStore(cfg.Data.BlobsDir)
	if err != nil {
		appLogger.Error("blob store init failed", "error", err, "dir", cfg.Data.BlobsDir)
		os.Exit(1)
	}
	appLogger.Info("blob store ready", "dir", cfg.Data.BlobsDir)

	// Model service clients
	transcriber := transcribe.NewWhisperHTTP(cfg.Whisper.APIURL, cfg.Whisper.Model)
	diarizer := diarize.NewPyannoteHTTP(cfg.Diarizer.APIURL)
	summarizer := summarize.NewGroqHTTP(cfg.Summarizer.APIURL, cfg.Summarizer.APIKey, cfg.Summarizer.Model)
	appLogger.Info("model clients ready",
		"transcriber", cfg.Whisper.APIURL,
		"diarizer", cfg.Diarizer.APIURL,
		"summarizer", cfg.Summarizer.APIURL)

	// Pipeline orchestrator
	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrentJobs: cfg.Pipeline.MaxConcurrentJobs,
		MergeGapMs:        cfg.Pipeline.MergeGapMs,
		RetryAttempts:     cfg.Pipeline.RetryAttempts,
		RetryBackoffMs:    cfg.Pipeline.RetryBackoffMs,
		MinSpeakers:       cfg.Diarizer.MinSpeakers,
		MaxSpeakers:       cfg.Diarizer.MaxSpeakers,
		WhisperModel:      cfg.Whisper.Model,
	}, st, blobs, transcriber, diarizer, summarizer, logInstance.With("component", "orchestrator"))

	// Pick up jobs interrupted by the previous shutdown
	if err := orch.ResumeAll(context.Background()); err != nil {
		appLogger.Error("job resume failed", "error", err)
		os.Exit(1)
	}

	srvDeps := &api.Server{
		Store:     st,
		Blobs:     blobs,
		Ingestor:  ingest.New(blobs, nil, cfg.MaxUploadBytes()),
		Orch:      orch,
		Artifacts: cache.NewArtifactCache(cfg.Pipeline.CacheEntries),
		TranscriberHealth: func(c *gin.Context) bool {
			ok, _ := transcriber.HealthCheck(c.Request.Context())
			return ok
		},
		DiarizerHealth: func(c *gin.Context) bool {
			ok, _ := diarizer.HealthCheck(c.Request.Context())
			return ok
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	srvDeps.RegisterRoutes(r, []byte(cfg.Security.JWTSecret))

	// Create HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("server starting", "addr", srv.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	appLogger.Info("shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Stop accepting pipeline work and wait for in-flight jobs; interrupted
	// jobs are resumed on the next start.
	orch.Shutdown()
	appLogger.Info("server shutdown complete")
}
