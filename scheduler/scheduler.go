package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"rentscout/config"
	"rentscout/fetch"
	"rentscout/models"
)

// Refresher reloads the listing collection.
type Refresher interface {
	Refetch(ctx context.Context) error
}

// AreaSelector applies a named area preset as the active bounding box.
type AreaSelector interface {
	SelectArea(ctx context.Context, id string) error
}

// CommandStore is the queue of manual commands.
type CommandStore interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
}

type Scheduler struct {
	cfg    config.SchedulerConfig
	repo   Refresher
	areas  AreaSelector
	store  CommandStore
	log    zerolog.Logger
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
	paused atomic.Bool

	pollInterval time.Duration
}

func New(cfg config.SchedulerConfig, repo Refresher, areas AreaSelector, store CommandStore, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		repo:         repo,
		areas:        areas,
		store:        store,
		log:          logger.With().Str("component", "scheduler").Logger(),
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
		pollInterval: 2 * time.Second,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.store != nil {
		go s.pollCommands(ctx)
	}

	if s.cfg.Cron != "" {
		s.log.Info().Str("cron", s.cfg.Cron).Msg("starting scheduler")
		_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.refresh(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		s.log.Info().Dur("interval", s.cfg.Interval).Msg("starting scheduler")
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.refresh(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		s.log.Info().Msg("no refresh schedule configured, only commands will trigger refetches")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

// refresh is the scheduled refetch; skipped while paused.
func (s *Scheduler) refresh(ctx context.Context) {
	if s.paused.Load() {
		s.log.Debug().Msg("scheduled refetch skipped, paused")
		return
	}
	if err := s.TriggerNow(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled refetch")
	}
}

// TriggerNow refetches immediately. A fetch already in flight is not an error.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	err := s.repo.Refetch(ctx)
	if errors.Is(err, fetch.ErrFetchInFlight) {
		s.log.Info().Msg("refetch already in flight")
		return nil
	}
	return err
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.store.GetPendingCommands()
	if err != nil {
		s.log.Error().Err(err).Msg("get pending commands")
		return
	}

	for _, cmd := range cmds {
		s.log.Info().Str("command", string(cmd.Command)).Int64("id", cmd.ID).Msg("processing command")
		if err := s.handleCommand(ctx, &cmd); err != nil {
			s.log.Error().Err(err).Str("command", string(cmd.Command)).Msg("command failed")
		}
		if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
			s.log.Error().Err(err).Int64("id", cmd.ID).Msg("mark command processed")
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRefetch:
		return s.TriggerNow(ctx)
	case models.CmdPause:
		s.paused.Store(true)
		s.log.Info().Msg("scheduled refetch paused")
		return nil
	case models.CmdResume:
		s.paused.Store(false)
		s.log.Info().Msg("scheduled refetch resumed")
		return nil
	case models.CmdArea:
		params, err := s.store.ParseCommandParams(cmd)
		if err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
		if s.areas == nil {
			return fmt.Errorf("area command: no area selector")
		}
		return s.areas.SelectArea(ctx, params.Area)
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}
