package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mlevkov/clipdock/config"
	ytdlpextract "github.com/mlevkov/clipdock/internal/adapter/extractor/ytdlp"
	ytdlpfetch "github.com/mlevkov/clipdock/internal/adapter/fetcher/ytdlp"
	HTTPAdapter "github.com/mlevkov/clipdock/internal/adapter/http"
	"github.com/mlevkov/clipdock/internal/adapter/storage/memory"
	sqlitestore "github.com/mlevkov/clipdock/internal/adapter/storage/sqlite"
	"github.com/mlevkov/clipdock/internal/adapter/transcoder/ffmpeg"
	"github.com/mlevkov/clipdock/internal/infrastructure/logger"
	"github.com/mlevkov/clipdock/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info.Printf("starting clipdock %s on port %s", cfg.Version, cfg.Port)

	for _, dir := range []string{cfg.DataDir, cfg.DownloadsDir, cfg.ScratchDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error.Printf("failed to create %s: %v", dir, err)
			os.Exit(1)
		}
	}

	userStore, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to open user store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = userStore.Close() }()

	authSvc := service.NewAuthService(userStore, cfg.AuthSecret, cfg.APIKeys)
	if err := authSvc.EnsureAdmin(cfg.AdminUser, cfg.AdminPassword); err != nil {
		logger.Error.Printf("failed to seed admin user: %v", err)
		os.Exit(1)
	}

	jobStore := memory.NewJobStore()
	eventBus := service.NewEventBus()

	processor := service.NewProcessor(
		ytdlpfetch.NewFetcher(cfg.YtDlpPath),
		ffmpeg.NewTranscoder(cfg.FFmpegPath),
		cfg.ScratchDir,
		cfg.DownloadsDir,
	)
	runner := service.NewRunner(jobStore, processor, eventBus, service.DefaultRetryPolicy())

	sweeper := service.NewSweeper([]service.WatchedDir{
		{Name: "downloads", Path: cfg.DownloadsDir, MaxAge: cfg.DownloadTTL},
		{Name: "scratch", Path: cfg.ScratchDir, MaxAge: cfg.ScratchTTL},
	}, jobStore, cfg.SweepInterval, cfg.DownloadTTL)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sweeper.Start(sweepCtx)

	handlers := HTTPAdapter.NewHandlers(
		jobStore,
		ytdlpextract.NewExtractor(cfg.YtDlpPath),
		runner,
		authSvc,
		sweeper,
		eventBus,
		cfg.DownloadsDir,
		cfg.Version,
	)
	server := HTTPAdapter.NewServer(handlers)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info.Printf("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}

		// Stop the sweeper; queued work drains before exit.
		sweepCancel()
		runner.Wait()

		logger.Info.Printf("shutdown complete")
	}()

	logger.Info.Printf("server listening on :%s", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error.Printf("server failed: %v", err)
		os.Exit(1)
	}
}
