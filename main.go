package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ws-live-server/internal/config"
	"ws-live-server/internal/logger"
	"ws-live-server/internal/metrics"
	"ws-live-server/profile"
	"ws-live-server/server"
	"ws-live-server/transcoder"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = config.Load()

	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ws-live-server: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	profiles, err := profile.NewWatcher(cfg.ProfileFile, log)
	if err != nil {
		log.Error("failed to load transcoder profile", "path", cfg.ProfileFile, "error", err)
		os.Exit(1)
	}

	binary := profiles.Current().Binary
	if cfg.Binary != "" {
		binary = cfg.Binary
	}
	// Check if the transcoder is available
	if err := exec.Command(binary, "-version").Run(); err != nil {
		log.Warn("transcoder binary not runnable; sessions will fail to spawn", "binary", binary, "error", err)
	}

	policy, err := transcoder.ParseOverflowPolicy(cfg.QueueOverflow)
	if err != nil {
		log.Error("invalid queue overflow policy", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := profiles.Run(ctx); err != nil {
			log.Error("profile watcher stopped", "error", err)
		}
	}()

	met := metrics.New()
	sm := server.NewManager(profiles, server.Options{
		InitialDelay:    cfg.InitialDelay,
		ActiveDelay:     cfg.ActiveDelay,
		IdleDelay:       cfg.IdleDelay,
		MaxPollsPerTick: cfg.MaxPollsPerTick,
		Binary:          cfg.Binary,
		SessionOptions: []transcoder.Option{
			transcoder.WithChunkSize(cfg.ChunkSize),
			transcoder.WithQueueLimit(cfg.QueueLimit, policy),
			transcoder.WithReadPollInterval(cfg.ReadPollInterval),
		},
	}, log, met)

	gin.SetMode(gin.ReleaseMode)
	r := server.NewRouter(sm, met, log)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		log.Info("live transcoding server starting",
			"addr", cfg.Addr(),
			"binary", binary,
			"profile", profiles.Current().Name)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	log.Info("shutting down server")

	// Stop all sessions first
	sm.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server exited gracefully")
}
