// SPDX-License-Identifier: MIT

// Package api provides the user-facing HTTP API: thin transport wrappers
// around the guide client, the stores, and the recorder core.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aircheckd/aircheck/internal/guide"
	"github.com/aircheckd/aircheck/internal/log"
	"github.com/aircheckd/aircheck/internal/recorder"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// GuideAPI is the guide surface the API exposes to users.
type GuideAPI interface {
	Events(ctx context.Context, seriesKey string) ([]guide.BroadcastEvent, error)
	ResolveSeriesKey(ctx context.Context, seriesURL string) string
}

// SeriesProvider serves the (cached) series directory.
type SeriesProvider interface {
	Get(ctx context.Context) ([]guide.Series, error)
}

// Expander triggers an immediate series-watch expansion.
type Expander interface {
	ExpandSeriesWatches(ctx context.Context) error
}

// Remuxer converts a stored capture into a user-facing audio container.
type Remuxer interface {
	Remux(ctx context.Context, manifestPath, outPath string, tags map[string]string) error
}

// Server is the HTTP API server.
type Server struct {
	guide         GuideAPI
	series        SeriesProvider
	reservations  recorder.ReservationStore
	recordings    recorder.RecordingStore
	expander      Expander
	remuxer       Remuxer
	recordingsDir string
	rateLimit     int
	logger        zerolog.Logger
}

// Deps bundles the collaborators of a Server.
type Deps struct {
	Guide         GuideAPI
	Series        SeriesProvider
	Reservations  recorder.ReservationStore
	Recordings    recorder.RecordingStore
	Expander      Expander
	Remuxer       Remuxer
	RecordingsDir string
	RateLimit     int // requests per client IP per minute, default 300
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.RateLimit <= 0 {
		deps.RateLimit = 300
	}
	return &Server{
		guide:         deps.Guide,
		series:        deps.Series,
		reservations:  deps.Reservations,
		recordings:    deps.Recordings,
		expander:      deps.Expander,
		remuxer:       deps.Remuxer,
		recordingsDir: deps.RecordingsDir,
		rateLimit:     deps.RateLimit,
		logger:        log.WithComponent("api"),
	}
}

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/series", s.handleSeriesList)
		r.Get("/series/resolve", s.handleSeriesResolve)
		r.Get("/events", s.handleEvents)

		r.Get("/reservations", s.handleReservationsList)
		r.Post("/reservations", s.handleReservationCreate)
		r.Delete("/reservations/{reservationID}", s.handleReservationDelete)

		r.Get("/recordings", s.handleRecordingsList)
		r.Patch("/recordings/{recordingID}/metadata", s.handleRecordingPatchMetadata)
		r.Get("/recordings/{recordingID}/download", s.handleRecordingDownload)
		r.Delete("/recordings/{recordingID}", s.handleRecordingDelete)
	})

	// Serve captured segments and manifests directly.
	fs := http.StripPrefix("/recordings/", http.FileServer(http.Dir(s.recordingsDir)))
	r.Handle("/recordings/*", fs)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("response encode failed")
	}
}
