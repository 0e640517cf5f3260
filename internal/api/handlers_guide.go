// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strings"

	"github.com/aircheckd/aircheck/internal/guide"
)

// handleSeriesList serves the series directory. Upstream failures degrade
// to the cached value (handled by the provider) or an empty list; listing
// never errors toward the client.
func (s *Server) handleSeriesList(w http.ResponseWriter, r *http.Request) {
	series, err := s.series.Get(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("series fetch failed")
		s.writeJSON(w, http.StatusOK, []guide.Series{})
		return
	}
	if series == nil {
		series = []guide.Series{}
	}
	s.writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleSeriesResolve(w http.ResponseWriter, r *http.Request) {
	seriesURL := strings.TrimSpace(r.URL.Query().Get("series_url"))
	if seriesURL == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"seriesCode": nil})
		return
	}
	key := s.guide.ResolveSeriesKey(r.Context(), seriesURL)
	if key == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"seriesCode": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"seriesCode": key})
}

// handleEvents lists upcoming events for a series identified by explicit
// key, page URL, or numeric id, in that resolution order.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := strings.TrimSpace(q.Get("series_code"))
	if key == "" {
		if seriesURL := strings.TrimSpace(q.Get("series_url")); seriesURL != "" {
			key = s.guide.ResolveSeriesKey(r.Context(), seriesURL)
		}
	}
	if key == "" {
		key = strings.TrimSpace(q.Get("series_id"))
	}
	if key == "" {
		s.writeJSON(w, http.StatusOK, []guide.BroadcastEvent{})
		return
	}

	events, err := s.guide.Events(r.Context(), key)
	if err != nil {
		s.logger.Warn().Err(err).Str("series_key", key).Msg("event fetch failed")
		s.writeJSON(w, http.StatusOK, []guide.BroadcastEvent{})
		return
	}
	if events == nil {
		events = []guide.BroadcastEvent{}
	}
	s.writeJSON(w, http.StatusOK, events)
}
