package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"rentscout/fetch"
	"rentscout/geo"
	"rentscout/models"
	"rentscout/viewport"
)

type criteriaRequest struct {
	models.FilterCriteria
	Area string `json:"area,omitempty"`
}

type clusterPressRequest struct {
	Region models.Region      `json:"region"`
	Center *models.Coordinate `json:"center,omitempty"`
	Count  int                `json:"count"`
}

type visibleResponse struct {
	AllVisible bool `json:"allVisible"`
}

func (s *Server) getListings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.repo.Feed())
}

func (s *Server) loadMore(w http.ResponseWriter, r *http.Request) {
	s.repo.FetchMore()
	respondJSON(w, http.StatusOK, s.repo.Feed())
}

func (s *Server) refetch(w http.ResponseWriter, r *http.Request) {
	err := s.repo.Refetch(r.Context())
	if errors.Is(err, fetch.ErrFetchInFlight) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("refetch")
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.repo.Feed())
}

func (s *Server) applyCriteria(w http.ResponseWriter, r *http.Request) {
	var req criteriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid criteria body")
		return
	}
	c := req.FilterCriteria
	if !c.SortBy.Valid() {
		respondError(w, http.StatusBadRequest, "unknown sortBy "+string(c.SortBy))
		return
	}
	if c.Bounds != nil && !geo.ValidBounds(*c.Bounds) {
		respondError(w, http.StatusBadRequest, "invalid bounds")
		return
	}

	var bounds *models.MapBounds
	if req.Area != "" {
		area, ok := s.areas[req.Area]
		if !ok {
			respondError(w, http.StatusNotFound, "unknown area "+req.Area)
			return
		}
		b := area.Bounds()
		bounds = &b
	}

	s.repo.ApplyCriteria(c, bounds, s.loc.CurrentCoordinate(r.Context()))
	respondJSON(w, http.StatusOK, s.repo.Feed())
}

func (s *Server) viewportChanged(w http.ResponseWriter, r *http.Request) {
	var b models.MapBounds
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		respondError(w, http.StatusBadRequest, "invalid bounds body")
		return
	}
	if !geo.ValidBounds(b) {
		respondError(w, http.StatusBadRequest, "invalid bounds")
		return
	}
	if !s.ctrl.ViewportChanged(b) {
		respondError(w, http.StatusServiceUnavailable, "viewport queue unavailable")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"state": s.ctrl.State().String()})
}

func (s *Server) fitRegion(w http.ResponseWriter, r *http.Request) {
	region := s.ctrl.FitRegion()
	if region == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, region)
}

func (s *Server) allVisible(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vals := make(map[string]float64, 4)
	for _, key := range []string{"ne_lat", "ne_lng", "sw_lat", "sw_lng"} {
		v, err := strconv.ParseFloat(q.Get(key), 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid "+key)
			return
		}
		vals[key] = v
	}

	b := models.MapBounds{
		NorthEast: models.Coordinate{Lat: vals["ne_lat"], Lng: vals["ne_lng"]},
		SouthWest: models.Coordinate{Lat: vals["sw_lat"], Lng: vals["sw_lng"]},
	}
	if !geo.ValidBounds(b) {
		respondError(w, http.StatusBadRequest, "invalid bounds")
		return
	}
	respondJSON(w, http.StatusOK, visibleResponse{AllVisible: s.ctrl.AllVisible(b)})
}

func (s *Server) clusters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("lng_delta")
	if raw == "" {
		raw = q.Get("lat_delta")
	}

	delta := 0.0
	if raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			respondError(w, http.StatusBadRequest, "invalid delta")
			return
		}
		delta = v
	}
	respondJSON(w, http.StatusOK, s.ctrl.MapView(delta))
}

func (s *Server) clusterPress(w http.ResponseWriter, r *http.Request) {
	var req clusterPressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid cluster press body")
		return
	}
	if req.Count < 1 {
		respondError(w, http.StatusBadRequest, "count must be positive")
		return
	}

	center := models.Coordinate{Lat: req.Region.Latitude, Lng: req.Region.Longitude}
	if req.Center != nil {
		center = *req.Center
	}
	respondJSON(w, http.StatusOK, viewport.ClusterPressRegion(req.Region, center, req.Count))
}

func (s *Server) listAreas(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.areaList)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondJSON(w, http.StatusOK, []models.FetchRun{})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	runs, err := s.runs.RecentRuns(limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list runs")
		respondError(w, http.StatusInternalServerError, "failed to read fetch runs")
		return
	}
	if runs == nil {
		runs = []models.FetchRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}
