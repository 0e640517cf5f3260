// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aircheckd/aircheck/internal/recorder"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleReservationsList(w http.ResponseWriter, _ *http.Request) {
	rs, err := s.reservations.Reservations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rs == nil {
		rs = []recorder.Reservation{}
	}
	s.writeJSON(w, http.StatusOK, rs)
}

type createReservationRequest struct {
	Kind    string                      `json:"type"`
	Payload recorder.ReservationPayload `json:"payload"`
}

// handleReservationCreate stores a new reservation. Descriptive metadata is
// derived server-side from the payload. Creating a series watch triggers an
// immediate expansion so the first events are reserved without waiting for
// the periodic run.
func (s *Server) handleReservationCreate(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch req.Kind {
	case recorder.KindSingleEvent:
		if req.Payload.Event == nil {
			http.Error(w, "single_event reservation requires an event", http.StatusBadRequest)
			return
		}
		req.Payload.Metadata = recorder.BuildEventMetadata(req.Payload.SeriesID, req.Payload.SeriesKey, req.Payload.Event)
	case recorder.KindSeriesWatch:
		if req.Payload.SeriesKey == "" && req.Payload.SeriesID == 0 {
			http.Error(w, "series_watch reservation requires a series identifier", http.StatusBadRequest)
			return
		}
		req.Payload.Metadata = recorder.BuildSeriesWatchMetadata(&req.Payload)
	default:
		http.Error(w, "unknown reservation type", http.StatusBadRequest)
		return
	}

	reservation := recorder.Reservation{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		CreatedAt: time.Now().UTC(),
		Status:    recorder.StatusPending,
		Payload:   req.Payload,
	}

	err := s.reservations.UpdateReservations(func(rs []recorder.Reservation) ([]recorder.Reservation, error) {
		return append(rs, reservation), nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Kind == recorder.KindSeriesWatch && s.expander != nil {
		if err := s.expander.ExpandSeriesWatches(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("immediate expansion failed, periodic run will retry")
		}
	}

	s.writeJSON(w, http.StatusCreated, reservation)
}

// handleReservationDelete removes a reservation record. An already-running
// recording task is not cancelled; it finishes and writes its outcome even
// though the reservation row is gone.
func (s *Server) handleReservationDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reservationID")
	found := false
	err := s.reservations.UpdateReservations(func(rs []recorder.Reservation) ([]recorder.Reservation, error) {
		out := rs[:0]
		for _, res := range rs {
			if res.ID == id {
				found = true
				continue
			}
			out = append(out, res)
		}
		return out, nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "reservation not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
