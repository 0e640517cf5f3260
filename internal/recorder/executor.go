// SPDX-License-Identifier: MIT

package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aircheckd/aircheck/internal/guide"
	"github.com/google/uuid"
)

// ManifestName is the file name of the segmented capture inside a
// recording's directory.
const ManifestName = "recording.m3u8"

// ExecuteRecording runs one single-event reservation to completion:
// resolve the stream URL, capture until the event's end, and persist the
// outcome. Catalog-resolution misses and capture failures are terminal for
// the reservation; a transient catalog fetch error is returned without a
// status write so the next tick retries. Cancellation leaves the
// reservation untouched (it is re-attempted after restart).
func (s *Service) ExecuteRecording(ctx context.Context, r Reservation) error {
	ev := r.Payload.Event
	if ev == nil {
		return s.failReservation(r.ID, "reservation has no event payload")
	}

	recordingsStarted.Inc()
	serviceKey := guide.ServiceKey(ev.ServiceID)
	s.logger.Info().
		Str("reservation_id", r.ID).
		Str("broadcast_event_id", ev.BroadcastEventID).
		Str("service_id", ev.ServiceID).
		Str("area_id", ev.AreaID).
		Time("start", ev.Start).
		Time("end", ev.End).
		Msg("recording starting")

	catalogs, err := s.guide.StreamCatalog(ctx)
	if err != nil {
		recordingsFinished.WithLabelValues("retry").Inc()
		return fmt.Errorf("stream catalog fetch: %w", err)
	}

	entry := catalogs[ev.AreaID]
	if entry == nil {
		s.logger.Error().
			Str("reservation_id", r.ID).
			Str("area_id", ev.AreaID).
			Msg("area not present in stream catalog")
		return s.failReservation(r.ID, "area not found")
	}
	streamURL := entry.StreamURL(ev.ServiceID)
	if streamURL == "" {
		s.logger.Error().
			Str("reservation_id", r.ID).
			Str("stream_key", serviceKey).
			Msg("service not carried in area streams")
		return s.failReservation(r.ID, "stream not found")
	}

	recID := uuid.NewString()
	recDir := filepath.Join(s.cfg.RecordingsDir, recID)
	if err := os.MkdirAll(recDir, 0o755); err != nil {
		recordingsFinished.WithLabelValues("retry").Inc()
		return fmt.Errorf("create recording dir: %w", err)
	}
	manifest := filepath.Join(recDir, ManifestName)

	writeStateFile(recDir, "prepared", map[string]any{
		"reservation_id":     r.ID,
		"broadcast_event_id": ev.BroadcastEventID,
		"service_id":         ev.ServiceID,
		"stream_key":         serviceKey,
		"stream_url":         streamURL,
		"start_date":         ev.Start,
		"end_date":           ev.End,
	})

	proc, err := s.capture.Start(ctx, streamURL, manifest)
	if err != nil {
		_ = os.RemoveAll(recDir)
		if markErr := s.failReservation(r.ID, "capture start failed"); markErr != nil {
			return markErr
		}
		return fmt.Errorf("capture start: %w", err)
	}
	writeStateFile(recDir, "capture_started", nil)

	waitErr := WaitUntil(ctx, s.clock, ev.End)
	proc.Quit()
	code, _ := proc.Wait(ctx)
	writeStateFile(recDir, "capture_finished", map[string]any{"exit_code": code})

	if waitErr != nil {
		// Cancelled mid-capture. The capture layer bounds the remaining
		// process wait; the reservation keeps its current status.
		recordingsFinished.WithLabelValues("cancelled").Inc()
		return waitErr
	}

	if code != 0 {
		s.logger.Error().
			Str("reservation_id", r.ID).
			Int("exit_code", code).
			Msg("capture process exited nonzero, discarding partial output")
		_ = os.RemoveAll(recDir)
		recordingsFinished.WithLabelValues("failed").Inc()
		return s.markReservation(r.ID, StatusFailed)
	}

	rec := Recording{
		ID:               recID,
		CreatedAt:        s.clock.Now().UTC(),
		Status:           RecordingReady,
		ReservationID:    r.ID,
		SeriesID:         r.Payload.SeriesID,
		BroadcastEventID: ev.BroadcastEventID,
		Title:            ev.Title,
		ServiceID:        ev.ServiceID,
		AreaID:           ev.AreaID,
		Start:            ev.Start,
		End:              ev.End,
		ManifestPath:     fmt.Sprintf("/recordings/%s/%s", recID, ManifestName),
		Metadata:         BuildRecordingTags(ev),
	}
	if err := s.recordings.UpdateRecordings(func(rs []Recording) ([]Recording, error) {
		return append(rs, rec), nil
	}); err != nil {
		recordingsFinished.WithLabelValues("retry").Inc()
		return fmt.Errorf("persist recording: %w", err)
	}
	writeStateFile(recDir, "index_written", nil)

	if err := s.markReservation(r.ID, StatusDone); err != nil {
		return err
	}
	recordingsFinished.WithLabelValues("done").Inc()
	s.logger.Info().
		Str("reservation_id", r.ID).
		Str("recording_id", recID).
		Msg("recording completed")
	return nil
}

func (s *Service) failReservation(id, reason string) error {
	recordingsFinished.WithLabelValues("failed").Inc()
	s.logger.Warn().Str("reservation_id", id).Str("reason", reason).Msg("reservation failed")
	return s.markReservation(id, StatusFailed)
}
