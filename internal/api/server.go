package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/TembulatC/mira-games-backend/internal/config"
	"github.com/TembulatC/mira-games-backend/internal/metrics"
	"github.com/TembulatC/mira-games-backend/internal/release"
)

const requestTimeout = 60 * time.Second

// Deps are the read-side collaborators behind the routes. Ready is optional.
type Deps struct {
	Catalog   release.Catalog
	Genres    release.GenreAggregator
	Snapshots release.SnapshotStore
	Ready     func(ctx context.Context) error
}

// Server wires HTTP handlers to the release stores.
type Server struct {
	router    chi.Router
	deps      Deps
	topGenres int
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if deps.Catalog == nil || deps.Genres == nil || deps.Snapshots == nil {
		return nil, errors.New("catalog, genre aggregator and snapshot store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	topGenres := cfg.Pipeline.TopGenres
	if topGenres <= 0 {
		topGenres = 5
	}
	s := &Server{
		deps:      deps,
		topGenres: topGenres,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/releases", func(r chi.Router) {
			r.Get("/", s.listReleases)
			r.Get("/calendar", s.releaseCalendar)
			r.Get("/search", s.searchReleases)
		})
		r.Get("/genres/popular", s.popularGenres)
		r.Get("/snapshots", s.listSnapshots)
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listReleases(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	releases, err := s.deps.Catalog.ListByMonth(r.Context(), month)
	if err != nil {
		s.internalError(w, r, "list releases", err)
		return
	}
	writeJSON(w, http.StatusOK, releasesResponse{Month: month.String(), Releases: releases})
}

func (s *Server) releaseCalendar(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	days, err := s.deps.Catalog.CountByDay(r.Context(), month)
	if err != nil {
		s.internalError(w, r, "count releases by day", err)
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{Month: month.String(), Days: days})
}

func (s *Server) searchReleases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	releases, err := s.deps.Catalog.Search(r.Context(), q.Get("genre"), q.Get("platform"))
	if err != nil {
		s.internalError(w, r, "search releases", err)
		return
	}
	writeJSON(w, http.StatusOK, releasesResponse{Releases: releases})
}

func (s *Server) popularGenres(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}
	limit := s.topGenres
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	genres, err := s.deps.Genres.TopGenres(r.Context(), month, limit)
	if err != nil {
		s.internalError(w, r, "aggregate genres", err)
		return
	}
	writeJSON(w, http.StatusOK, genresResponse{Month: month.String(), Genres: genres})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	prefix := ""
	if raw := r.URL.Query().Get("month"); raw != "" {
		p, err := release.MonthPrefix(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		prefix = p
	}
	snaps, err := s.deps.Snapshots.ListByPrefix(r.Context(), prefix)
	if err != nil {
		s.internalError(w, r, "list snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotsResponse{Snapshots: snaps})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op+" failed",
		zap.Error(err),
		zap.String("request_id", requestID(r.Context())),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func monthParam(w http.ResponseWriter, r *http.Request) (release.Month, bool) {
	month, err := release.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return release.Month{}, false
	}
	return month, true
}

type releasesResponse struct {
	Month    string            `json:"month,omitempty"`
	Releases []release.Release `json:"releases"`
}

type calendarResponse struct {
	Month string                `json:"month"`
	Days  []release.CalendarDay `json:"days"`
}

type genresResponse struct {
	Month  string               `json:"month"`
	Genres []release.GenreCount `json:"genres"`
}

type snapshotsResponse struct {
	Snapshots []release.Snapshot `json:"snapshots"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
