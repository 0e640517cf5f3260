// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aircheckd/aircheck/internal/api"
	"github.com/aircheckd/aircheck/internal/capture"
	"github.com/aircheckd/aircheck/internal/config"
	"github.com/aircheckd/aircheck/internal/guide"
	aclog "github.com/aircheckd/aircheck/internal/log"
	"github.com/aircheckd/aircheck/internal/recorder"
	"github.com/aircheckd/aircheck/internal/store"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// captureAdapter narrows *capture.Runner to the recorder's Capture port.
type captureAdapter struct {
	runner *capture.Runner
}

func (a captureAdapter) Start(ctx context.Context, streamURL, manifestPath string) (recorder.CaptureProcess, error) {
	return a.runner.Start(ctx, streamURL, manifestPath)
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg := config.FromEnv()

	aclog.Configure(aclog.Config{
		Level:   cfg.LogLevel,
		Service: "aircheck",
		Version: version,
	})
	logger := aclog.WithComponent("daemon")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Str("event", "config.invalid").Msg("invalid configuration")
	}
	if err := cfg.EnsureDirs(); err != nil {
		logger.Fatal().Err(err).Str("event", "config.dirs_failed").Msg("failed to create directories")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(filepath.Join(cfg.DataDir, "db"))
	if err != nil {
		logger.Fatal().Err(err).Str("event", "store.open_failed").Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("store close failed")
		}
	}()

	if err := st.ImportLegacy(cfg.DataDir); err != nil {
		logger.Fatal().Err(err).Str("event", "store.import_failed").Msg("legacy import failed")
	}

	guideClient := guide.NewClient(guide.Options{
		GuideAPIBase:    cfg.GuideAPIBase,
		SeriesAPIBase:   cfg.SeriesAPIBase,
		StreamConfigURL: cfg.StreamConfigURL,
		Lookahead:       cfg.EventLookahead,
		DefaultDuration: cfg.DefaultEventDuration,
	})
	seriesCache := guide.NewSeriesCache(guideClient, st, cfg.SeriesCacheTTL)
	runner := capture.New(cfg.FFmpegPath)

	svc := recorder.NewService(recorder.Config{
		RecordingsDir:  cfg.RecordingsDir,
		TickInterval:   cfg.TickInterval,
		ExpandInterval: cfg.SeriesExpandInterval,
	}, st, st, guideClient, captureAdapter{runner: runner}, nil)
	svc.Start(ctx)

	apiServer := api.NewServer(api.Deps{
		Guide:         guideClient,
		Series:        seriesCache,
		Reservations:  st,
		Recordings:    st,
		Expander:      svc,
		Remuxer:       runner,
		RecordingsDir: cfg.RecordingsDir,
		RateLimit:     cfg.APIRateLimit,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("event", "http.listen").Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Str("event", "daemon.shutdown").Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}

	svc.Stop()
	logger.Info().Str("event", "daemon.stopped").Msg("daemon stopped")
}
