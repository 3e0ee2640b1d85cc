package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rentscout/models"
)

func seed() []models.RawRecord {
	return []models.RawRecord{{"id": "seed-1"}, {"id": "seed-2"}}
}

func newTestGuard(cfg Config) *Guard {
	g := NewGuard(cfg, seed, zerolog.Nop())
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g
}

func TestGuard_Success(t *testing.T) {
	g := newTestGuard(Config{})
	res, err := g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		return []models.RawRecord{{"id": "a"}}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fallback || res.Err != nil || len(res.Records) != 1 || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Stale {
		t.Fatalf("result should not be stale")
	}
}

func TestGuard_RetryCeiling(t *testing.T) {
	g := newTestGuard(Config{MaxAttempts: 3})
	boom := errors.New("boom")

	var calls atomic.Int32
	res, err := g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		calls.Add(1)
		return nil, boom
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 store calls, got %d", calls.Load())
	}
	if !res.Fallback || len(res.Records) != 2 {
		t.Fatalf("expected fallback dataset, got %+v", res)
	}
	if !errors.Is(res.Err, ErrTooManyAttempts) || !errors.Is(res.Err, boom) {
		t.Fatalf("expected too-many-attempts wrapping boom, got %v", res.Err)
	}
	var fe *FetchError
	if !errors.As(res.Err, &fe) || fe.Attempt != 3 {
		t.Fatalf("expected last FetchError from attempt 3, got %v", res.Err)
	}

	// the counter starts over on the next call
	calls.Store(0)
	g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		calls.Add(1)
		return nil, boom
	})
	if calls.Load() != 3 {
		t.Fatalf("expected a fresh budget of 3 calls, got %d", calls.Load())
	}
}

func TestGuard_RecoversBeforeCeiling(t *testing.T) {
	g := newTestGuard(Config{MaxAttempts: 3})

	var calls atomic.Int32
	res, _ := g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		if calls.Add(1) < 2 {
			return nil, errors.New("flaky")
		}
		return []models.RawRecord{{"id": "a"}}, nil
	})
	if res.Fallback || res.Attempts != 2 {
		t.Fatalf("expected success on attempt 2, got %+v", res)
	}
}

func TestGuard_BackoffDoubles(t *testing.T) {
	g := newTestGuard(Config{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond})
	var delays []time.Duration
	g.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		return nil, errors.New("down")
	})
	if len(delays) != 2 || delays[0] != 100*time.Millisecond || delays[1] != 200*time.Millisecond {
		t.Fatalf("expected delays [100ms 200ms], got %v", delays)
	}
}

func TestGuard_EmptyResultFallsBackWithoutRetry(t *testing.T) {
	g := newTestGuard(Config{MaxAttempts: 3})

	var calls atomic.Int32
	res, _ := g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		calls.Add(1)
		return nil, nil
	})
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
	if !res.Fallback || !errors.Is(res.Err, ErrEmptyResult) {
		t.Fatalf("expected empty-result fallback, got %+v", res)
	}
}

func TestGuard_TimeoutCountsAsFailure(t *testing.T) {
	g := newTestGuard(Config{MaxAttempts: 2, Timeout: 20 * time.Millisecond})

	release := make(chan struct{})
	defer close(release)

	res, err := g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		// ignores ctx on purpose, its late answer must be dropped
		<-release
		return []models.RawRecord{{"id": "late"}}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Fallback || res.Attempts != 2 {
		t.Fatalf("expected fallback after 2 timed out attempts, got %+v", res)
	}
	var te *TimeoutError
	if !errors.As(res.Err, &te) || te.Budget != 20*time.Millisecond {
		t.Fatalf("expected TimeoutError, got %v", res.Err)
	}
}

func TestGuard_Reentrancy(t *testing.T) {
	g := newTestGuard(Config{})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan *Result)
	go func() {
		res, _ := g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
			close(started)
			<-release
			return []models.RawRecord{{"id": "a"}}, nil
		})
		done <- res
	}()
	<-started

	if !g.InFlight() {
		t.Fatalf("expected fetch in flight")
	}
	var second atomic.Bool
	_, err := g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		second.Store(true)
		return nil, nil
	})
	if !errors.Is(err, ErrFetchInFlight) {
		t.Fatalf("expected ErrFetchInFlight, got %v", err)
	}
	if second.Load() {
		t.Fatalf("second fetch must not reach the store")
	}

	close(release)
	if res := <-done; res == nil || res.Fallback {
		t.Fatalf("first fetch should succeed, got %+v", res)
	}
	if g.InFlight() {
		t.Fatalf("expected guard released")
	}
}

func TestGuard_InvalidateMarksStale(t *testing.T) {
	g := newTestGuard(Config{})

	res, _ := g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		g.Invalidate()
		return []models.RawRecord{{"id": "a"}}, nil
	})
	if !res.Stale {
		t.Fatalf("expected stale result after invalidation")
	}

	next, _ := g.Do(context.Background(), func(context.Context) ([]models.RawRecord, error) {
		return []models.RawRecord{{"id": "b"}}, nil
	})
	if next.Stale || next.Generation <= res.Generation {
		t.Fatalf("expected fresh newer generation, got %+v after %+v", next, res)
	}
}

func TestGuard_ContextCancelled(t *testing.T) {
	g := newTestGuard(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := g.Do(ctx, func(ctx context.Context) ([]models.RawRecord, error) {
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || res != nil {
		t.Fatalf("expected context.Canceled, got %v %+v", err, res)
	}
}
