// Package viewport keeps the map and the listing set in step: it debounces
// viewport changes into repository updates and answers the map's fitting,
// clustering and visibility questions.
package viewport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rentscout/fetch"
	"rentscout/geo"
	"rentscout/models"
)

const DefaultDebounce = 300 * time.Millisecond

type State int

const (
	StateIdle State = iota
	StatePendingDebounce
	StateFetching
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingDebounce:
		return "pending_debounce"
	case StateFetching:
		return "fetching"
	case StateFallback:
		return "fallback"
	}
	return "unknown"
}

// Repository is the part of the listing repository the controller drives.
type Repository interface {
	ApplyBounds(bounds *models.MapBounds, ref *models.Coordinate)
	Refetch(ctx context.Context) error
	Invalidate()
	Loaded() bool
	Error() error
	Filtered() []models.Listing
}

type Config struct {
	Debounce          time.Duration
	ClusteringEnabled bool
	ClusterThreshold  int
	// RefetchOnChange reloads from the store for every settled viewport
	// instead of only re-filtering the loaded set.
	RefetchOnChange bool
}

type message interface{}

type viewportChanged struct{ bounds models.MapBounds }

type debounceFired struct{}

type cycleDone struct{ fallback bool }

// Controller owns the viewport state machine. All transitions happen on the
// goroutine running Run; other methods only post messages or read.
type Controller struct {
	cfg  Config
	repo Repository
	loc  LocationService
	log  zerolog.Logger

	msgs     chan message
	stop     chan struct{}
	debounce *Debouncer

	mu         sync.RWMutex
	state      State
	lastBounds *models.MapBounds
	onChange   func(from, to State)

	// owned by the Run goroutine
	pending *models.MapBounds
	queued  *models.MapBounds
}

func NewController(cfg Config, repo Repository, loc LocationService, logger zerolog.Logger) *Controller {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.ClusterThreshold <= 0 {
		cfg.ClusterThreshold = DefaultClusterThreshold
	}
	if loc == nil {
		loc = NewStaticLocation(nil)
	}
	return &Controller{
		cfg:      cfg,
		repo:     repo,
		loc:      loc,
		log:      logger.With().Str("component", "viewport").Logger(),
		msgs:     make(chan message, 64),
		stop:     make(chan struct{}),
		debounce: NewDebouncer(cfg.Debounce),
	}
}

// OnTransition registers a callback invoked on every state change. It runs
// on the controller goroutine and must not block.
func (c *Controller) OnTransition(fn func(from, to State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// ViewportChanged reports new map bounds. Inverted boxes are rejected.
// Returns false if the event was not accepted.
func (c *Controller) ViewportChanged(b models.MapBounds) bool {
	if !geo.ValidBounds(b) {
		c.log.Warn().Interface("bounds", b).Msg("ignoring invalid viewport")
		return false
	}
	select {
	case c.msgs <- viewportChanged{bounds: b}:
		return true
	case <-c.stop:
		return false
	default:
		c.log.Warn().Msg("viewport queue full, dropping event")
		return false
	}
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastBounds is the viewport most recently applied to the repository.
func (c *Controller) LastBounds() *models.MapBounds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastBounds
}

// Run processes events until ctx ends.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.stop)
	defer c.debounce.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.msgs:
			c.handle(ctx, m)
		}
	}
}

func (c *Controller) handle(ctx context.Context, m message) {
	switch msg := m.(type) {
	case viewportChanged:
		b := msg.bounds
		if c.State() == StateFetching {
			// applied once the running cycle settles
			c.queued = &b
			if c.cfg.RefetchOnChange {
				c.repo.Invalidate()
			}
			return
		}
		c.pending = &b
		c.setState(StatePendingDebounce)
		c.debounce.Schedule(func() { c.post(debounceFired{}) })

	case debounceFired:
		if c.State() != StatePendingDebounce || c.pending == nil {
			return
		}
		b := *c.pending
		c.pending = nil
		c.setState(StateFetching)
		go c.cycle(ctx, b)

	case cycleDone:
		if msg.fallback {
			c.setState(StateFallback)
		} else {
			c.setState(StateIdle)
		}
		if c.queued != nil {
			c.pending, c.queued = c.queued, nil
			c.setState(StatePendingDebounce)
			c.debounce.Schedule(func() { c.post(debounceFired{}) })
		}
	}
}

// cycle applies b to the repository, loading from the store when nothing
// is loaded yet or when configured to refetch per viewport.
func (c *Controller) cycle(ctx context.Context, b models.MapBounds) {
	ref := c.loc.CurrentCoordinate(ctx)
	c.repo.ApplyBounds(&b, ref)

	c.mu.Lock()
	c.lastBounds = &b
	c.mu.Unlock()

	if c.cfg.RefetchOnChange || !c.repo.Loaded() {
		if err := c.repo.Refetch(ctx); err != nil && !errors.Is(err, fetch.ErrFetchInFlight) {
			c.log.Warn().Err(err).Msg("viewport refetch")
		}
	}

	c.post(cycleDone{fallback: c.repo.Error() != nil})
}

func (c *Controller) post(m message) {
	select {
	case c.msgs <- m:
	case <-c.stop:
	}
}

func (c *Controller) setState(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	fn := c.onChange
	c.mu.Unlock()

	if from == to {
		return
	}
	c.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("state")
	if fn != nil {
		fn(from, to)
	}
}

// FitRegion fits the current filtered set.
func (c *Controller) FitRegion() *models.Region {
	return FitToMarkers(c.repo.Filtered())
}

// ClusteringActive applies the configured switch and threshold.
func (c *Controller) ClusteringActive(count int) bool {
	return ClusteringActive(c.cfg.ClusteringEnabled, count, c.cfg.ClusterThreshold)
}

// AllVisible reports whether the current filtered set fits in b.
func (c *Controller) AllVisible(b models.MapBounds) bool {
	return AreAllVisible(c.repo.Filtered(), b)
}

// MapView builds markers or clusters for the current filtered set.
func (c *Controller) MapView(lngDelta float64) MapView {
	return BuildMapView(c.repo.Filtered(), lngDelta, c.cfg.ClusteringEnabled, c.cfg.ClusterThreshold)
}
