package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"rentscout/api"
	"rentscout/config"
	"rentscout/fetch"
	"rentscout/logging"
	"rentscout/models"
	"rentscout/scheduler"
	"rentscout/services"
	"rentscout/storage"
	"rentscout/viewport"
)

var (
	fetchNow = flag.Bool("fetch", false, "Fetch listings once, print a summary and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logFile, logger, err := logging.Setup(logging.Options{
		Path:   cfg.Log.Path,
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		logger = logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
		log.Logger = logger
		logger.Warn().Err(err).Msg("could not set up file logging")
	} else {
		defer logFile.Close()
	}

	logger.Info().Msg("starting rentscout")
	logger.Info().Int("areas", len(cfg.Areas)).Str("store", cfg.Store.Driver).Msg("config loaded")

	// SQLite keeps run history and the command queue
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open SQLite")
	}
	defer sqliteStore.Close()
	logger.Info().Str("path", cfg.DBPath).Msg("SQLite database ready")

	if flag.Arg(0) == "send" {
		if err := sendCommand(sqliteStore, flag.Args()[1:]); err != nil {
			logger.Fatal().Err(err).Msg("send failed")
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open listing store")
	}
	if closer, ok := store.(interface{ Close() }); ok {
		defer closer.Close()
	}
	if cfg.Store.Driver == "postgres" {
		logger.Info().Str("url", maskConnectionString(cfg.Postgres.URL)).Msg("connected to Postgres")
	}

	repo := services.NewListingRepository(store, services.RepositoryOptions{
		Fetch: fetch.Config{
			MaxAttempts: cfg.Fetch.MaxAttempts,
			Timeout:     cfg.Fetch.Timeout,
			BaseDelay:   cfg.Fetch.RetryDelay,
		},
		PageSize: cfg.Fetch.PageSize,
		Fallback: storage.NewSeedStore().Records,
		Runs:     sqliteStore,
	}, logger)

	// Handle one-shot fetch
	if *fetchNow {
		if err := repo.FetchAll(ctx); err != nil {
			logger.Fatal().Err(err).Msg("fetch failed")
		}
		printSummary(repo)
		return
	}

	// Daemon mode
	loc := viewport.NewStaticLocation(cfg.Home)
	ctrl := viewport.NewController(viewport.Config{
		Debounce:          cfg.Viewport.Debounce,
		ClusteringEnabled: cfg.Viewport.ClusteringEnabled,
		ClusterThreshold:  cfg.Viewport.ClusterThreshold,
		RefetchOnChange:   cfg.Viewport.RefetchOnChange,
	}, repo, loc, logger)
	ctrl.OnTransition(func(from, to viewport.State) {
		logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("viewport state")
	})
	go ctrl.Run(ctx)

	if err := repo.FetchAll(ctx); err != nil {
		logger.Error().Err(err).Msg("initial fetch failed")
	}

	server := api.NewServer(cfg.HTTPAddr, api.Deps{
		Repo:       repo,
		Controller: ctrl,
		Location:   loc,
		Config:     cfg,
		Runs:       sqliteStore,
	}, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	sched := scheduler.New(cfg.Scheduler, repo, server, sqliteStore, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}

	logger.Info().Msg("daemon running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
	logger.Info().Msg("goodbye")
}

// sendCommand queues a command for a running daemon: send refetch|pause|resume|area <id>
func sendCommand(store *storage.SQLiteStore, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: rentscout send refetch|pause|resume|area <id>")
	}

	cmd := models.CommandType(args[0])
	var params models.CommandParams
	switch cmd {
	case models.CmdRefetch, models.CmdPause, models.CmdResume:
	case models.CmdArea:
		if len(args) < 2 {
			return errors.New("area command needs an area id")
		}
		params.Area = args[1]
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	if err := store.EnqueueCommand(cmd, params); err != nil {
		return err
	}
	log.Info().Str("command", string(cmd)).Msg("command queued")
	return nil
}

func printSummary(repo *services.ListingRepository) {
	feed := repo.Feed()
	event := log.Info()
	if feed.Error != "" {
		event = log.Warn().Str("error", feed.Error)
	}
	event.Int("listings", feed.Total).Msg("fetch complete")

	for _, l := range repo.Filtered() {
		log.Info().
			Str("id", l.ID).
			Str("city", l.City).
			Float64("price", l.Price).
			Msg(l.Title)
	}
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
