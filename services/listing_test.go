package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rentscout/fetch"
	"rentscout/models"
	"rentscout/storage"
)

type stubStore struct {
	calls atomic.Int32
	fetch func(ctx context.Context) ([]models.RawRecord, error)
}

func (s *stubStore) Name() string { return "stub" }

func (s *stubStore) FetchAll(ctx context.Context) ([]models.RawRecord, error) {
	s.calls.Add(1)
	return s.fetch(ctx)
}

func returning(records ...models.RawRecord) *stubStore {
	return &stubStore{fetch: func(context.Context) ([]models.RawRecord, error) { return records, nil }}
}

type memRuns struct {
	mu   sync.Mutex
	runs map[string]models.FetchRun
	logs []string
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[string]models.FetchRun)}
}

func (m *memRuns) CreateRun(run *models.FetchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID.String()] = *run
	return nil
}

func (m *memRuns) UpdateRun(run *models.FetchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID.String()] = *run
	return nil
}

func (m *memRuns) Log(runID string, level models.LogLevel, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, string(level)+" "+message)
	return nil
}

func (m *memRuns) only(t *testing.T) models.FetchRun {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(m.runs))
	}
	for _, r := range m.runs {
		return r
	}
	return models.FetchRun{}
}

func newRepo(store storage.ListingStore, runs RunRecorder) *ListingRepository {
	return NewListingRepository(store, RepositoryOptions{
		Fetch:    fetch.Config{MaxAttempts: 3, Timeout: time.Second},
		PageSize: 10,
		Fallback: storage.NewSeedStore().Records,
		Runs:     runs,
	}, zerolog.Nop())
}

func priced(id string, price float64) models.RawRecord {
	return models.RawRecord{"id": id, "price": price, "lat": 41.9, "lng": 12.5}
}

func f64(v float64) *float64 { return &v }

func TestFetchAll_EmptyResultUsesSeed(t *testing.T) {
	runs := newMemRuns()
	repo := newRepo(returning(), runs)

	if err := repo.FetchAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	feed := repo.Feed()
	if len(feed.Listings) != 5 || feed.Total != 5 {
		t.Fatalf("expected 5 seed listings, got %d", len(feed.Listings))
	}
	if feed.Error == "" || !errors.Is(repo.Error(), fetch.ErrEmptyResult) {
		t.Fatalf("expected empty-result error, got %q", feed.Error)
	}
	if feed.HasMore || feed.Loading {
		t.Fatalf("unexpected flags %+v", feed)
	}
	for _, l := range feed.Listings {
		if !strings.HasPrefix(l.ID, "seed-") {
			t.Fatalf("expected seed listing, got %s", l.ID)
		}
	}

	run := runs.only(t)
	if run.Status != models.RunStatusFallback || run.ListingsLoaded != 5 {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestFetchAll_RetryCeiling(t *testing.T) {
	store := &stubStore{fetch: func(context.Context) ([]models.RawRecord, error) {
		return nil, errors.New("connection refused")
	}}
	repo := newRepo(store, nil)

	repo.FetchAll(context.Background())
	if store.calls.Load() != 3 {
		t.Fatalf("expected 3 store calls, got %d", store.calls.Load())
	}
	if !errors.Is(repo.Error(), fetch.ErrTooManyAttempts) {
		t.Fatalf("expected too many attempts, got %v", repo.Error())
	}
	if len(repo.Base()) != 5 {
		t.Fatalf("expected seed base set, got %d", len(repo.Base()))
	}
}

func TestFetchAll_AllMalformedFallsBack(t *testing.T) {
	repo := newRepo(returning(models.RawRecord{"title": "no id"}), nil)
	repo.FetchAll(context.Background())

	if !errors.Is(repo.Error(), fetch.ErrEmptyResult) || len(repo.Base()) != 5 {
		t.Fatalf("expected seed fallback, got %d listings err=%v", len(repo.Base()), repo.Error())
	}
}

func TestFetchAll_SuccessClearsError(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	store := &stubStore{fetch: func(context.Context) ([]models.RawRecord, error) {
		if fail.Load() {
			return nil, errors.New("down")
		}
		return []models.RawRecord{priced("a", 500)}, nil
	}}
	repo := newRepo(store, nil)

	repo.FetchAll(context.Background())
	if repo.Error() == nil {
		t.Fatalf("expected error after failures")
	}

	fail.Store(false)
	repo.Refetch(context.Background())
	if repo.Error() != nil || len(repo.Base()) != 1 {
		t.Fatalf("expected live data without error, got %d err=%v", len(repo.Base()), repo.Error())
	}
}

func TestApplyCriteria_PriceRangeSorted(t *testing.T) {
	repo := newRepo(returning(priced("a", 1800), priced("b", 850), priced("c", 550)), nil)
	repo.FetchAll(context.Background())

	repo.ApplyCriteria(models.FilterCriteria{
		PriceMin: f64(500),
		PriceMax: f64(900),
		SortBy:   models.SortPriceAsc,
	}, nil, nil)

	got := repo.Listings()
	if len(got) != 2 || got[0].Price != 550 || got[1].Price != 850 {
		t.Fatalf("expected [550 850], got %v", got)
	}
	if len(repo.Base()) != 3 {
		t.Fatalf("base set must not shrink")
	}
}

func TestFetchAll_ReappliesLatestCriteria(t *testing.T) {
	repo := newRepo(returning(priced("a", 1800), priced("b", 850)), nil)
	repo.ApplyCriteria(models.FilterCriteria{PriceMax: f64(1000)}, nil, nil)

	repo.FetchAll(context.Background())
	got := repo.Filtered()
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only b, got %v", got)
	}
}

func TestApplyCriteria_BoundsOverride(t *testing.T) {
	repo := newRepo(returning(
		models.RawRecord{"id": "rome", "lat": 41.9, "lng": 12.5},
		models.RawRecord{"id": "milan", "lat": 45.46, "lng": 9.19},
		models.RawRecord{"id": "nowhere"},
	), nil)
	repo.FetchAll(context.Background())

	lazio := &models.MapBounds{
		NorthEast: models.Coordinate{Lat: 42.5, Lng: 14},
		SouthWest: models.Coordinate{Lat: 41, Lng: 11},
	}
	repo.ApplyCriteria(models.FilterCriteria{}, lazio, nil)

	got := repo.Filtered()
	if len(got) != 1 || got[0].ID != "rome" {
		t.Fatalf("expected only rome, got %v", got)
	}
	if repo.Criteria().Bounds == nil {
		t.Fatalf("expected bounds stored in criteria")
	}
}

func TestApplyCriteria_DistanceSort(t *testing.T) {
	repo := newRepo(returning(
		models.RawRecord{"id": "milan", "lat": 45.46, "lng": 9.19},
		models.RawRecord{"id": "nowhere"},
		models.RawRecord{"id": "rome", "lat": 41.9, "lng": 12.5},
	), nil)
	repo.FetchAll(context.Background())

	home := &models.Coordinate{Lat: 41.89, Lng: 12.49}
	repo.ApplyCriteria(models.FilterCriteria{SortByDistance: true, SortBy: models.SortPriceDesc}, nil, home)

	got := repo.Filtered()
	want := []string{"rome", "milan", "nowhere"}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("expected %v, got %s at %d", want, got[i].ID, i)
		}
	}
	if got[0].Distance == nil || *got[0].Distance > 5 {
		t.Fatalf("expected distance annotation on rome")
	}
	if repo.Base()[0].Distance != nil {
		t.Fatalf("base set must not carry distances")
	}
}

func TestFetchMore_Pagination(t *testing.T) {
	var records []models.RawRecord
	for i := 0; i < 25; i++ {
		records = append(records, priced(fmt.Sprintf("l%02d", i), float64(100+i)))
	}
	repo := newRepo(returning(records...), nil)
	repo.FetchAll(context.Background())
	repo.ApplyCriteria(models.FilterCriteria{SortBy: models.SortPriceAsc}, nil, nil)

	if len(repo.Listings()) != 10 || !repo.HasMore() {
		t.Fatalf("expected first page of 10 with more")
	}
	repo.FetchMore()
	repo.FetchMore()
	if len(repo.Listings()) != 25 || repo.HasMore() {
		t.Fatalf("expected all 25 visible, got %d", len(repo.Listings()))
	}
	if repo.FetchMore() {
		t.Fatalf("expected FetchMore to be a no-op")
	}

	repo.ApplyCriteria(models.FilterCriteria{PriceMin: f64(105)}, nil, nil)
	if len(repo.Listings()) != 10 {
		t.Fatalf("expected window reset to first page, got %d", len(repo.Listings()))
	}
}

func TestFetchAll_InFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	store := &stubStore{fetch: func(context.Context) ([]models.RawRecord, error) {
		close(started)
		<-release
		return []models.RawRecord{priced("a", 1)}, nil
	}}
	runs := newMemRuns()
	repo := newRepo(store, runs)

	done := make(chan error)
	go func() { done <- repo.FetchAll(context.Background()) }()
	<-started

	if !repo.Loading() {
		t.Fatalf("expected loading while fetch runs")
	}
	if err := repo.FetchAll(context.Background()); !errors.Is(err, fetch.ErrFetchInFlight) {
		t.Fatalf("expected ErrFetchInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if repo.Loading() || store.calls.Load() != 1 {
		t.Fatalf("expected one store call and loading cleared")
	}

	skipped := 0
	for _, r := range runs.runs {
		if r.Status == models.RunStatusSkipped {
			skipped++
		}
	}
	if skipped != 1 {
		t.Fatalf("expected one skipped run, got %d", skipped)
	}
}

func TestFetchAll_StaleResultDiscarded(t *testing.T) {
	var repo *ListingRepository
	store := &stubStore{fetch: func(context.Context) ([]models.RawRecord, error) {
		repo.Invalidate()
		return []models.RawRecord{priced("a", 1)}, nil
	}}
	repo = newRepo(store, nil)

	if err := repo.FetchAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.Base()) != 0 || repo.Loaded() || repo.Loading() {
		t.Fatalf("expected stale result to be dropped")
	}
}

// blockNormalize holds the first normalize call until release is closed.
func blockNormalize(repo *ListingRepository) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	repo.normalize = func(records []models.RawRecord, logger zerolog.Logger) ([]models.Listing, NormalizeStats) {
		once.Do(func() {
			close(entered)
			<-release
		})
		return Normalize(records, logger)
	}
	return entered, release
}

func TestFetchAll_SecondCallRejectedUntilInstalled(t *testing.T) {
	var n atomic.Int32
	store := &stubStore{fetch: func(context.Context) ([]models.RawRecord, error) {
		if n.Add(1) == 1 {
			return []models.RawRecord{priced("a", 1), priced("b", 2), priced("c", 3)}, nil
		}
		return []models.RawRecord{priced("z", 9)}, nil
	}}
	runs := newMemRuns()
	repo := newRepo(store, runs)
	entered, release := blockNormalize(repo)

	done := make(chan error)
	go func() { done <- repo.FetchAll(context.Background()) }()
	<-entered

	if repo.guard.InFlight() {
		t.Fatalf("expected store call to have returned")
	}
	if err := repo.FetchAll(context.Background()); !errors.Is(err, fetch.ErrFetchInFlight) {
		t.Fatalf("expected ErrFetchInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if store.calls.Load() != 1 {
		t.Fatalf("expected 1 store call, got %d", store.calls.Load())
	}
	if len(repo.Base()) != 3 || repo.Generation() != 1 {
		t.Fatalf("expected first result installed, got %d listings gen %d", len(repo.Base()), repo.Generation())
	}

	if err := repo.FetchAll(context.Background()); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(repo.Base()) != 1 || repo.Generation() != 2 {
		t.Fatalf("expected newer result installed, got %d listings gen %d", len(repo.Base()), repo.Generation())
	}
}

func TestFetchAll_InvalidatedWhileNormalizingDropped(t *testing.T) {
	runs := newMemRuns()
	repo := newRepo(returning(priced("a", 1)), runs)
	entered, release := blockNormalize(repo)

	done := make(chan error)
	go func() { done <- repo.FetchAll(context.Background()) }()
	<-entered
	repo.Invalidate()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.Base()) != 0 || repo.Loaded() || repo.Loading() {
		t.Fatalf("expected superseded result to be dropped")
	}
	if run := runs.only(t); run.Status != models.RunStatusSkipped {
		t.Fatalf("expected skipped run, got %s", run.Status)
	}
}

func TestApplyBounds_KeepsCriteria(t *testing.T) {
	repo := newRepo(returning(priced("cheap", 100), priced("dear", 900)), nil)
	if err := repo.FetchAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo.ApplyCriteria(models.FilterCriteria{PriceMax: f64(500)}, nil, nil)
	b := models.MapBounds{
		NorthEast: models.Coordinate{Lat: 42, Lng: 13},
		SouthWest: models.Coordinate{Lat: 41, Lng: 12},
	}
	repo.ApplyBounds(&b, nil)

	c := repo.Criteria()
	if c.PriceMax == nil || *c.PriceMax != 500 {
		t.Fatalf("expected price ceiling kept, got %v", c.PriceMax)
	}
	if c.Bounds == nil || *c.Bounds != b {
		t.Fatalf("expected bounds %+v, got %+v", b, c.Bounds)
	}
	got := repo.Filtered()
	if len(got) != 1 || got[0].ID != "cheap" {
		t.Fatalf("expected only cheap listing, got %v", got)
	}
}

func TestFeed_ConsistentDuringRederive(t *testing.T) {
	records := make([]models.RawRecord, 0, 15)
	for i := 0; i < 15; i++ {
		records = append(records, priced(fmt.Sprintf("l%02d", i), float64(100+i)))
	}
	repo := newRepo(returning(records...), nil)
	if err := repo.FetchAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		narrow := models.FilterCriteria{PriceMax: f64(104)}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				repo.ApplyCriteria(narrow, nil, nil)
			} else {
				repo.ApplyCriteria(models.FilterCriteria{}, nil, nil)
			}
		}
	}()

	for n := 0; n < 500; n++ {
		f := repo.Feed()
		if len(f.Listings) != min(10, f.Total) || f.HasMore != (f.Total > 10) {
			close(stop)
			wg.Wait()
			t.Fatalf("inconsistent feed: %d visible, total %d, hasMore %v", len(f.Listings), f.Total, f.HasMore)
		}
	}
	close(stop)
	wg.Wait()
}
