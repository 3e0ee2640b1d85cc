// Package api exposes the listing feed and the map helpers over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"rentscout/config"
	"rentscout/models"
	"rentscout/services"
	"rentscout/viewport"
)

// RunLister reads recorded fetch runs.
type RunLister interface {
	RecentRuns(limit int) ([]models.FetchRun, error)
}

type Server struct {
	repo       *services.ListingRepository
	ctrl       *viewport.Controller
	loc        viewport.LocationService
	areas      map[string]*config.Area
	areaList   []*config.Area
	runs       RunLister
	log        zerolog.Logger
	httpServer *http.Server
}

type Deps struct {
	Repo       *services.ListingRepository
	Controller *viewport.Controller
	Location   viewport.LocationService
	Config     *config.Config
	Runs       RunLister
}

func NewServer(addr string, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		repo:     deps.Repo,
		ctrl:     deps.Controller,
		loc:      deps.Location,
		areas:    deps.Config.Areas,
		areaList: deps.Config.AreaList(),
		runs:     deps.Runs,
		log:      logger.With().Str("component", "api").Logger(),
	}
	if s.loc == nil {
		s.loc = viewport.NewStaticLocation(nil)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, LoggerMiddleware(s.log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Trace-ID"},
		ExposedHeaders: []string{"X-Trace-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/listings", s.getListings)
		r.Post("/listings/more", s.loadMore)
		r.Post("/listings/refetch", s.refetch)
		r.Post("/criteria", s.applyCriteria)
		r.Post("/viewport", s.viewportChanged)

		r.Get("/map/fit", s.fitRegion)
		r.Get("/map/visible", s.allVisible)
		r.Get("/map/clusters", s.clusters)
		r.Post("/map/cluster-press", s.clusterPress)

		r.Get("/areas", s.listAreas)
		r.Get("/runs", s.listRuns)
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting http server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("stopping http server")
	return s.httpServer.Shutdown(ctx)
}

// ErrUnknownArea is returned for an area id with no preset.
var ErrUnknownArea = errors.New("unknown area")

// SelectArea makes the preset's box the active bounds, keeping the other
// criteria.
func (s *Server) SelectArea(ctx context.Context, id string) error {
	area, ok := s.areas[id]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownArea, id)
	}
	b := area.Bounds()
	s.repo.ApplyBounds(&b, s.loc.CurrentCoordinate(ctx))
	s.log.Info().Str("area", id).Msg("area selected")
	return nil
}
