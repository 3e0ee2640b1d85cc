package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rentscout/config"
	"rentscout/fetch"
	"rentscout/models"
)

type countingRepo struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRepo) Refetch(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *countingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type areaRecorder struct{ ids []string }

func (a *areaRecorder) SelectArea(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("missing area id")
	}
	a.ids = append(a.ids, id)
	return nil
}

type memCommands struct {
	pending   []models.Command
	processed []int64
}

func (m *memCommands) GetPendingCommands() ([]models.Command, error) {
	out := m.pending
	m.pending = nil
	return out, nil
}

func (m *memCommands) MarkCommandProcessed(id int64) error {
	m.processed = append(m.processed, id)
	return nil
}

func (m *memCommands) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	var p models.CommandParams
	if len(cmd.Params) == 0 {
		return &p, nil
	}
	err := json.Unmarshal(cmd.Params, &p)
	return &p, err
}

func TestProcessCommands(t *testing.T) {
	repo := &countingRepo{}
	areas := &areaRecorder{}
	store := &memCommands{pending: []models.Command{
		{ID: 1, Command: models.CmdRefetch},
		{ID: 2, Command: models.CmdPause},
		{ID: 3, Command: models.CmdArea, Params: json.RawMessage(`{"area":"rome"}`)},
		{ID: 4, Command: "bogus"},
	}}
	s := New(config.SchedulerConfig{}, repo, areas, store, zerolog.Nop())

	s.processCommands(context.Background())

	if repo.count() != 1 {
		t.Fatalf("expected 1 refetch, got %d", repo.count())
	}
	if !s.Paused() {
		t.Fatalf("expected paused")
	}
	if len(areas.ids) != 1 || areas.ids[0] != "rome" {
		t.Fatalf("expected rome selected, got %v", areas.ids)
	}
	if len(store.processed) != 4 {
		t.Fatalf("expected every command marked processed, got %v", store.processed)
	}

	s.refresh(context.Background())
	if repo.count() != 1 {
		t.Fatalf("expected scheduled refetch skipped while paused")
	}

	s.handleCommand(context.Background(), &models.Command{Command: models.CmdResume})
	s.refresh(context.Background())
	if repo.count() != 2 {
		t.Fatalf("expected scheduled refetch after resume, got %d", repo.count())
	}
}

func TestTriggerNow_InFlightIsNotAnError(t *testing.T) {
	s := New(config.SchedulerConfig{}, &countingRepo{err: fetch.ErrFetchInFlight}, nil, nil, zerolog.Nop())
	if err := s.TriggerNow(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestStart_Interval(t *testing.T) {
	repo := &countingRepo{}
	s := New(config.SchedulerConfig{Interval: 10 * time.Millisecond}, repo, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for repo.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if repo.count() < 2 {
		t.Fatalf("expected at least 2 interval refetches, got %d", repo.count())
	}
}

func TestStart_InvalidCron(t *testing.T) {
	s := New(config.SchedulerConfig{Cron: "not a cron"}, &countingRepo{}, nil, nil, zerolog.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected invalid cron error")
	}
}
