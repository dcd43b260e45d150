package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "gocloud.dev/blob/fileblob"

	h "github.com/uupq/yutto-plus-sub000/internal/api/http"
	"github.com/uupq/yutto-plus-sub000/internal/archive"
	cfgpkg "github.com/uupq/yutto-plus-sub000/internal/config"
	"github.com/uupq/yutto-plus-sub000/internal/extract"
	"github.com/uupq/yutto-plus-sub000/internal/merge"
	"github.com/uupq/yutto-plus-sub000/internal/probe"
	repo "github.com/uupq/yutto-plus-sub000/internal/repository"
	"github.com/uupq/yutto-plus-sub000/internal/scheduler"
	"github.com/uupq/yutto-plus-sub000/internal/transfer"
)

func main() {

	cfg, err := cfgpkg.Load()
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			slog.Error("configuration file not found", "error", err)
		} else {
			slog.Error("failed to load configuration", "error", err)
		}
		os.Exit(1)
	}

	cfgpkg.SetupLogger(cfg)
	slog.Info("configuration loaded successfully")

	jobStore, err := repo.NewJobStore(cfg.StateFile)
	if err != nil {
		slog.Error("failed to initialize job store", "error", err)
		os.Exit(1)
	}

	policy := cfg.Retry()
	probeClient := &http.Client{Timeout: cfg.RequestTimeout}
	prober := probe.New(probeClient, policy)

	// Transfers stream arbitrarily large bodies, so the client carries
	// no overall timeout; cancellation comes from the job context.
	transferClient := &http.Client{}
	tr := transfer.New(transferClient, policy, cfg.ChunkSize)

	var archiver *archive.Uploader
	if cfg.ArchiveBucket != "" {
		archiver = archive.New(cfg.ArchiveBucket)
	}

	runner := scheduler.NewJobRunner(scheduler.RunnerConfig{
		Resolver:         extract.NewDirect(),
		Prober:           prober,
		Transfer:         tr,
		Merger:           merge.NewFFmpeg(cfg.FFmpegPath),
		Archiver:         archiver,
		DownloadDir:      cfg.DownloadDir,
		ProgressInterval: cfg.ProgressInterval,
	})

	sched := scheduler.New(cfg.MaxConcurrentJobs, runner, jobStore)

	router := h.NewRouter(h.NewJobHandler(sched, slog.Default()))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	} else {
		slog.Info("server stopped gracefully")
	}

	if err := sched.Shutdown(shutdownCtx); err != nil {
		slog.Error("scheduler shutdown incomplete", "error", err)
	} else {
		slog.Info("scheduler drained")
	}
}
