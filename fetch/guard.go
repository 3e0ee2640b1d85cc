// Package fetch wraps a listing store call with an attempt cap, a per-attempt
// timeout, a fallback dataset and a single-flight guard.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"rentscout/models"
)

const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 15 * time.Second
	DefaultBaseDelay   = 500 * time.Millisecond
)

// Func is one attempt against the store. It must honor ctx cancellation
// where it can; a result delivered after the timeout is dropped anyway.
type Func func(ctx context.Context) ([]models.RawRecord, error)

type Config struct {
	MaxAttempts int
	Timeout     time.Duration
	BaseDelay   time.Duration
}

// Result is the outcome of one guarded fetch. Records is never empty when
// Fallback is false. Err carries the reason for a fallback.
type Result struct {
	Records    []models.RawRecord
	Fallback   bool
	Attempts   int
	Generation uint64
	// Stale is set when Invalidate was called while this fetch was running.
	Stale bool
	Err   error
}

type Guard struct {
	cfg      Config
	fallback func() []models.RawRecord
	log      zerolog.Logger

	inFlight   atomic.Bool
	generation atomic.Uint64

	sleep func(ctx context.Context, d time.Duration) error
}

// NewGuard builds a guard. fallback supplies the dataset used when the
// store keeps failing or answers empty; nil means an empty fallback.
func NewGuard(cfg Config, fallback func() []models.RawRecord, logger zerolog.Logger) *Guard {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if fallback == nil {
		fallback = func() []models.RawRecord { return nil }
	}
	return &Guard{
		cfg:      cfg,
		fallback: fallback,
		log:      logger.With().Str("component", "fetch").Logger(),
		sleep:    sleepCtx,
	}
}

// InFlight reports whether a fetch is currently running.
func (g *Guard) InFlight() bool {
	return g.inFlight.Load()
}

// Fallback returns the fallback dataset.
func (g *Guard) Fallback() []models.RawRecord {
	return g.fallback()
}

// Generation is the number of the most recent fetch or invalidation.
func (g *Guard) Generation() uint64 {
	return g.generation.Load()
}

// Invalidate marks any running fetch as stale.
func (g *Guard) Invalidate() uint64 {
	return g.generation.Add(1)
}

// Do runs fn under the guard. A second call while one is running returns
// ErrFetchInFlight at once. A cancelled ctx returns its error. In every
// other case a Result is returned, falling back after MaxAttempts failures
// or on an empty answer.
func (g *Guard) Do(ctx context.Context, fn Func) (*Result, error) {
	if !g.inFlight.CompareAndSwap(false, true) {
		g.log.Warn().Msg("fetch skipped, another one is in flight")
		return nil, ErrFetchInFlight
	}
	defer g.inFlight.Store(false)

	gen := g.generation.Add(1)
	res, err := g.run(ctx, fn)
	if err != nil {
		return nil, err
	}

	res.Generation = gen
	res.Stale = g.generation.Load() != gen
	if res.Stale {
		g.log.Info().Uint64("generation", gen).Msg("fetch result superseded")
	}
	return res, nil
}

func (g *Guard) run(ctx context.Context, fn Func) (*Result, error) {
	var lastErr error
	delay := g.cfg.BaseDelay

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		records, err := g.attempt(ctx, attempt, fn)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if err == nil && len(records) > 0 {
			g.log.Debug().Int("attempt", attempt).Int("records", len(records)).Msg("fetch ok")
			return &Result{Records: records, Attempts: attempt}, nil
		}
		if err == nil {
			g.log.Warn().Int("attempt", attempt).Msg("store returned no listings, using fallback")
			return g.fallbackResult(attempt, ErrEmptyResult), nil
		}

		lastErr = err
		if attempt < g.cfg.MaxAttempts {
			g.log.Warn().Err(err).
				Int("attempt", attempt).
				Int("max_attempts", g.cfg.MaxAttempts).
				Dur("retry_in", delay).
				Msg("fetch failed, retrying")
			if err := g.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}
	}

	g.log.Warn().Err(lastErr).Int("attempts", g.cfg.MaxAttempts).Msg("fetch gave up, using fallback")
	err := fmt.Errorf("%w after %d: %w", ErrTooManyAttempts, g.cfg.MaxAttempts, lastErr)
	return g.fallbackResult(g.cfg.MaxAttempts, err), nil
}

type outcome struct {
	records []models.RawRecord
	err     error
}

// attempt runs fn with the per-attempt budget. A late answer is written to
// a buffered channel nobody reads, so the goroutine still exits.
func (g *Guard) attempt(ctx context.Context, n int, fn Func) ([]models.RawRecord, error) {
	actx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		records, err := fn(actx)
		done <- outcome{records, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, &TimeoutError{Attempt: n, Budget: g.cfg.Timeout}
			}
			return nil, &FetchError{Attempt: n, Err: o.err}
		}
		return o.records, nil
	case <-actx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{Attempt: n, Budget: g.cfg.Timeout}
	}
}

func (g *Guard) fallbackResult(attempts int, reason error) *Result {
	return &Result{
		Records:  g.fallback(),
		Fallback: true,
		Attempts: attempts,
		Err:      reason,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
