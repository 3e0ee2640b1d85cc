package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rentscout/fetch"
	"rentscout/filter"
	"rentscout/models"
	"rentscout/pagination"
	"rentscout/storage"
)

// RunRecorder persists fetch run bookkeeping. storage.SQLiteStore
// implements it.
type RunRecorder interface {
	CreateRun(run *models.FetchRun) error
	UpdateRun(run *models.FetchRun) error
	Log(runID string, level models.LogLevel, message string) error
}

var errSuperseded = errors.New("superseded by a newer request")

type RepositoryOptions struct {
	Fetch    fetch.Config
	PageSize int
	// Fallback supplies the raw seed documents used when the store fails.
	Fallback func() []models.RawRecord
	Runs     RunRecorder
}

// Feed is a consistent snapshot of what the list view renders.
type Feed struct {
	Listings    []models.Listing `json:"listings"`
	Loading     bool             `json:"loading"`
	LoadingMore bool             `json:"loadingMore"`
	HasMore     bool             `json:"hasMore"`
	Error       string           `json:"error,omitempty"`
	Total       int              `json:"total"`
}

// ListingRepository owns the base listing set and everything derived from
// it: the filtered and sorted view, and the paginated window over it.
type ListingRepository struct {
	store storage.ListingStore
	guard *fetch.Guard
	pager *pagination.Paginator
	runs  RunRecorder
	log   zerolog.Logger
	now   func() time.Time

	normalize func([]models.RawRecord, zerolog.Logger) ([]models.Listing, NormalizeStats)
	// set from the guarded call until the result is installed or dropped
	fetching atomic.Bool

	mu          sync.RWMutex
	base        []models.Listing
	filtered    []models.Listing
	criteria    models.FilterCriteria
	ref         *models.Coordinate
	loaded      bool
	loading     bool
	loadingMore bool
	err         error
	generation  uint64
}

func NewListingRepository(store storage.ListingStore, opts RepositoryOptions, logger zerolog.Logger) *ListingRepository {
	return &ListingRepository{
		store: store,
		guard: fetch.NewGuard(opts.Fetch, opts.Fallback, logger),
		pager: pagination.New(opts.PageSize),
		runs:  opts.Runs,
		log:   logger.With().Str("component", "repository").Str("store", store.Name()).Logger(),
		now:   time.Now,

		normalize: Normalize,
	}
}

// FetchAll loads the collection from the store under the fetch guard and
// replaces the base set, then re-derives the view from the latest criteria.
// It returns fetch.ErrFetchInFlight when another fetch is running and the
// context error when ctx ends first. Store failures are not returned: they
// end in the fallback set and are reported by Error.
func (r *ListingRepository) FetchAll(ctx context.Context) error {
	run := r.startRun()

	// The guard only covers the store call; normalizing and installing the
	// result belong to the same fetch.
	if !r.fetching.CompareAndSwap(false, true) {
		r.log.Warn().Msg("fetch skipped, another one is in flight")
		r.finishRun(run, models.RunStatusSkipped, fetch.ErrFetchInFlight)
		return fetch.ErrFetchInFlight
	}
	defer r.fetching.Store(false)

	var once sync.Once
	res, err := r.guard.Do(ctx, func(ctx context.Context) ([]models.RawRecord, error) {
		once.Do(func() { r.setLoading(true) })
		return r.store.FetchAll(ctx)
	})
	if err != nil {
		if errors.Is(err, fetch.ErrFetchInFlight) {
			r.finishRun(run, models.RunStatusSkipped, err)
			return err
		}
		r.setLoading(false)
		r.finishRun(run, models.RunStatusFailed, err)
		return err
	}

	run.Generation = res.Generation
	run.Attempts = res.Attempts

	listings, stats := r.normalize(res.Records, r.log)
	fetchErr := res.Err
	fallback := res.Fallback
	if !fallback && len(listings) == 0 {
		r.log.Warn().Int("records", stats.Fetched).Msg("no usable records, using fallback")
		fetchErr = fetch.ErrEmptyResult
		fallback = true
		var fbStats NormalizeStats
		listings, fbStats = r.normalize(r.guard.Fallback(), r.log)
		stats.InvalidLocation += fbStats.InvalidLocation
	}

	run.RecordsFetched = stats.Fetched
	run.RecordsDropped = stats.Dropped
	run.InvalidLocation = stats.InvalidLocation

	if res.Stale {
		r.dropStale(run, res.Generation)
		return nil
	}

	r.mu.Lock()
	// Invalidate may have run while the records were being normalized.
	if res.Generation != r.guard.Generation() || res.Generation < r.generation {
		r.mu.Unlock()
		r.dropStale(run, res.Generation)
		return nil
	}
	r.base = listings
	r.loaded = true
	r.loading = false
	r.err = fetchErr
	r.generation = res.Generation
	r.rederiveLocked()
	total := len(r.filtered)
	r.mu.Unlock()

	run.ListingsLoaded = len(listings)
	status := models.RunStatusOK
	if fallback {
		status = models.RunStatusFallback
	}
	r.finishRun(run, status, fetchErr)

	event := r.log.Info()
	if fallback {
		event = r.log.Warn().Err(fetchErr)
	}
	event.Uint64("generation", res.Generation).
		Int("attempts", res.Attempts).
		Int("listings", len(listings)).
		Int("matching", total).
		Bool("fallback", fallback).
		Msg("listings loaded")

	return nil
}

func (r *ListingRepository) dropStale(run *models.FetchRun, gen uint64) {
	r.setLoading(false)
	r.log.Info().Uint64("generation", gen).Msg("fetch result superseded, dropped")
	r.finishRun(run, models.RunStatusSkipped, errSuperseded)
}

// Refetch reloads the collection; the last applied criteria stay in effect.
func (r *ListingRepository) Refetch(ctx context.Context) error {
	return r.FetchAll(ctx)
}

// Invalidate marks a running fetch as superseded so its result is dropped.
func (r *ListingRepository) Invalidate() {
	r.guard.Invalidate()
}

// ApplyCriteria replaces the active criteria and recomputes the view
// without touching the store. A non-nil bounds overrides criteria.Bounds.
// ref is the origin for distances; nil clears them.
func (r *ListingRepository) ApplyCriteria(criteria models.FilterCriteria, bounds *models.MapBounds, ref *models.Coordinate) {
	if bounds != nil {
		criteria = criteria.WithBounds(bounds)
	}

	r.mu.Lock()
	r.criteria = criteria
	r.ref = ref
	r.rederiveLocked()
	n := len(r.filtered)
	r.mu.Unlock()

	r.log.Debug().Int("matching", n).Str("sort", string(filter.EffectiveSort(criteria))).Msg("criteria applied")
}

// ApplyBounds narrows the active criteria to b, keeping every other field,
// and recomputes the view. nil b clears the bounds.
func (r *ListingRepository) ApplyBounds(b *models.MapBounds, ref *models.Coordinate) {
	r.mu.Lock()
	r.criteria = r.criteria.WithBounds(b)
	r.ref = ref
	r.rederiveLocked()
	n := len(r.filtered)
	r.mu.Unlock()

	r.log.Debug().Int("matching", n).Msg("bounds applied")
}

// rederiveLocked rebuilds the filtered view and resets pagination.
// Callers hold r.mu.
func (r *ListingRepository) rederiveLocked() {
	annotated := filter.Annotate(r.base, r.ref)
	matched := filter.Apply(annotated, r.criteria, r.now())
	r.filtered = filter.Sort(matched, filter.EffectiveSort(r.criteria))
	r.pager.Reset(r.filtered)
}

// FetchMore grows the visible window by one page. Returns false when every
// match is already visible.
func (r *ListingRepository) FetchMore() bool {
	r.mu.Lock()
	r.loadingMore = true
	r.mu.Unlock()

	grew := r.pager.LoadMore()

	r.mu.Lock()
	r.loadingMore = false
	r.mu.Unlock()
	return grew
}

// Listings returns the visible window.
func (r *ListingRepository) Listings() []models.Listing {
	return r.pager.Visible()
}

// Filtered returns every match of the active criteria, for the map.
func (r *ListingRepository) Filtered() []models.Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Listing, len(r.filtered))
	copy(out, r.filtered)
	return out
}

// Base returns the unfiltered normalized set.
func (r *ListingRepository) Base() []models.Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Listing, len(r.base))
	copy(out, r.base)
	return out
}

func (r *ListingRepository) Criteria() models.FilterCriteria {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.criteria
}

func (r *ListingRepository) Reference() *models.Coordinate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ref
}

// Loaded reports whether any fetch, live or fallback, has completed.
func (r *ListingRepository) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

func (r *ListingRepository) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

func (r *ListingRepository) LoadingMore() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadingMore
}

func (r *ListingRepository) HasMore() bool {
	return r.pager.HasMore()
}

// Error is the reason the current set is a fallback, nil otherwise.
func (r *ListingRepository) Error() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Generation is the fetch generation the base set came from.
func (r *ListingRepository) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

func (r *ListingRepository) Feed() Feed {
	r.mu.RLock()
	f := Feed{
		Loading:     r.loading,
		LoadingMore: r.loadingMore,
	}
	if r.err != nil {
		f.Error = r.err.Error()
	}
	// pager resets happen under r.mu, so the window matches the flags
	f.Listings, f.HasMore, f.Total = r.pager.Snapshot()
	r.mu.RUnlock()
	return f
}

func (r *ListingRepository) setLoading(v bool) {
	r.mu.Lock()
	r.loading = v
	r.mu.Unlock()
}

func (r *ListingRepository) startRun() *models.FetchRun {
	run := &models.FetchRun{
		ID:        uuid.New(),
		Store:     r.store.Name(),
		StartedAt: r.now(),
		Status:    models.RunStatusRunning,
	}
	if r.runs != nil {
		if err := r.runs.CreateRun(run); err != nil {
			r.log.Warn().Err(err).Msg("record fetch run")
		}
	}
	return run
}

func (r *ListingRepository) finishRun(run *models.FetchRun, status models.RunStatus, err error) {
	now := r.now()
	run.FinishedAt = &now
	run.Status = status
	if err != nil {
		run.ErrorMessage = err.Error()
	}
	if r.runs == nil {
		return
	}

	if err := r.runs.UpdateRun(run); err != nil {
		r.log.Warn().Err(err).Msg("update fetch run")
	}

	level := models.LogLevelInfo
	switch status {
	case models.RunStatusFallback, models.RunStatusSkipped:
		level = models.LogLevelWarn
	case models.RunStatusFailed:
		level = models.LogLevelError
	}
	msg := string(status)
	if run.ErrorMessage != "" {
		msg += ": " + run.ErrorMessage
	}
	if err := r.runs.Log(run.ID.String(), level, msg); err != nil {
		r.log.Warn().Err(err).Msg("write fetch log")
	}
}
