// SPDX-License-Identifier: MIT

// Package recorder contains the reservation/recording model and the
// scheduling core: the series-watch expander, the recording executor, and
// the scheduler loop that drives both.
package recorder

import (
	"time"

	"github.com/aircheckd/aircheck/internal/guide"
)

// Reservation kinds.
const (
	KindSingleEvent = "single_event"
	KindSeriesWatch = "series_watch"
)

// Reservation statuses. A single_event reservation leaves pending/scheduled
// exactly once into done, failed, or cancelled. A series_watch reservation
// stays pending while actively watched and only ever moves to cancelled.
const (
	StatusPending   = "pending"
	StatusScheduled = "scheduled"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RecordingReady is the status of a successfully captured recording.
const RecordingReady = "ready"

// Reservation is a stored intent to record.
type Reservation struct {
	ID        string             `json:"id"`
	Kind      string             `json:"type"`
	CreatedAt time.Time          `json:"created_at"`
	Status    string             `json:"status"`
	Payload   ReservationPayload `json:"payload"`
}

// ReservationPayload carries the kind-specific data. Single-event
// reservations reference a broadcast event; series-watch reservations carry
// the watch parameters and the monotonically growing seen set.
type ReservationPayload struct {
	SeriesID  int64  `json:"series_id,omitempty"`
	SeriesKey string `json:"series_code,omitempty"`

	// single_event
	Event           *guide.BroadcastEvent `json:"event,omitempty"`
	FromSeriesWatch string                `json:"from_series_watch,omitempty"`

	// series_watch
	AreaID               string   `json:"area_id,omitempty"`
	SeenBroadcastEvents  []string `json:"seen_broadcast_event_ids,omitempty"`
	SeriesTitle          string   `json:"series_title,omitempty"`
	SeriesArea           string   `json:"series_area,omitempty"`
	SeriesSchedule       string   `json:"series_schedule,omitempty"`
	SeriesThumbnailURL   string   `json:"series_thumbnail_url,omitempty"`
	ProgramURL           string   `json:"program_url,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// SeenSet returns the seen broadcast-event ids as a membership set.
func (p *ReservationPayload) SeenSet() map[string]bool {
	set := make(map[string]bool, len(p.SeenBroadcastEvents))
	for _, id := range p.SeenBroadcastEvents {
		set[id] = true
	}
	return set
}

// Recording is the artifact of a successful capture.
type Recording struct {
	ID               string            `json:"id"`
	CreatedAt        time.Time         `json:"created_at"`
	Status           string            `json:"status"`
	ReservationID    string            `json:"reservation_id,omitempty"`
	SeriesID         int64             `json:"series_id,omitempty"`
	BroadcastEventID string            `json:"broadcast_event_id,omitempty"`
	Title            string            `json:"title"`
	ServiceID        string            `json:"service_id"`
	AreaID           string            `json:"area_id"`
	Start            time.Time         `json:"start_date"`
	End              time.Time         `json:"end_date"`
	ManifestPath     string            `json:"hls_manifest"`
	Metadata         map[string]string `json:"metadata"`
}
