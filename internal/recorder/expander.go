// SPDX-License-Identifier: MIT

package recorder

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/aircheckd/aircheck/internal/guide"
	"github.com/google/uuid"
)

// ExpandSeriesWatches turns each pending series-watch reservation into zero
// or more new single-event reservations by diffing the current guide events
// against the reservation's seen set.
//
// Guide fetches run outside the store lock; the seen-set membership test is
// repeated inside the read-modify-write closure, so a concurrent expansion
// (for example an API-triggered one racing the periodic run) stays
// idempotent: no broadcast event ever produces two reservations.
func (s *Service) ExpandSeriesWatches(ctx context.Context) error {
	rs, err := s.reservations.Reservations()
	if err != nil {
		expansionsTotal.WithLabelValues("error").Inc()
		return err
	}

	// Fetch candidate events per watched series.
	candidates := make(map[string][]guide.BroadcastEvent)
	for i := range rs {
		r := &rs[i]
		if r.Kind != KindSeriesWatch || r.Status != StatusPending {
			continue
		}
		key := seriesKeyOf(&r.Payload)
		if key == "" {
			continue
		}
		events, err := s.guide.Events(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("series_key", key).Msg("event fetch failed, skipping watch this run")
			continue
		}
		candidates[r.ID] = events
	}
	if len(candidates) == 0 {
		expansionsTotal.WithLabelValues("idle").Inc()
		return nil
	}

	created := 0
	err = s.reservations.UpdateReservations(func(rs []Reservation) ([]Reservation, error) {
		// New reservations are collected separately and appended once at the
		// end: appending inside the loop can reallocate the backing array and
		// orphan the seen-set writes.
		var added []Reservation
		for i := range rs {
			watch := rs[i]
			events, ok := candidates[watch.ID]
			if !ok || watch.Kind != KindSeriesWatch || watch.Status != StatusPending {
				continue
			}
			seen := watch.Payload.SeenSet()
			for j := range events {
				ev := events[j]
				if ev.BroadcastEventID == "" || seen[ev.BroadcastEventID] {
					continue
				}
				if watch.Payload.AreaID != "" && ev.AreaID != watch.Payload.AreaID {
					continue
				}
				added = append(added, Reservation{
					ID:        uuid.NewString(),
					Kind:      KindSingleEvent,
					CreatedAt: s.clock.Now().UTC(),
					Status:    StatusPending,
					Payload: ReservationPayload{
						SeriesID:        watch.Payload.SeriesID,
						SeriesKey:       watch.Payload.SeriesKey,
						Event:           &ev,
						FromSeriesWatch: watch.ID,
						Metadata:        BuildEventMetadata(watch.Payload.SeriesID, watch.Payload.SeriesKey, &ev),
					},
				})
				seen[ev.BroadcastEventID] = true
				created++
			}
			rs[i].Payload.SeenBroadcastEvents = sortedKeys(seen)
		}
		return append(rs, added...), nil
	})
	if err != nil {
		expansionsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("persist expanded reservations: %w", err)
	}

	if created > 0 {
		s.logger.Info().Int("created", created).Msg("series watches expanded")
	}
	expansionsTotal.WithLabelValues("ok").Inc()
	return nil
}

func seriesKeyOf(p *ReservationPayload) string {
	if p.SeriesKey != "" {
		return p.SeriesKey
	}
	if p.SeriesID != 0 {
		return strconv.FormatInt(p.SeriesID, 10)
	}
	return ""
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
