// SPDX-License-Identifier: MIT

package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/aircheckd/aircheck/internal/guide"
	"github.com/aircheckd/aircheck/internal/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	recordingsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aircheck_recordings_started_total",
		Help: "Total number of recording executions started",
	})
	recordingsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircheck_recordings_finished_total",
		Help: "Total number of recording executions finished, by outcome",
	}, []string{"outcome"})
	expansionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aircheck_series_expansions_total",
		Help: "Total number of series-watch expansion runs",
	}, []string{"result"})
)

// ReservationStore is the durable reservation collection.
type ReservationStore interface {
	Reservations() ([]Reservation, error)
	UpdateReservations(fn func(rs []Reservation) ([]Reservation, error)) error
}

// RecordingStore is the durable recording collection.
type RecordingStore interface {
	Recordings() ([]Recording, error)
	UpdateRecordings(fn func(rs []Recording) ([]Recording, error)) error
}

// Guide is the subset of the guide client the recorder depends on.
type Guide interface {
	Events(ctx context.Context, seriesKey string) ([]guide.BroadcastEvent, error)
	StreamCatalog(ctx context.Context) (map[string]*guide.CatalogEntry, error)
}

// CaptureProcess is one running capture subprocess.
type CaptureProcess interface {
	Quit()
	Wait(ctx context.Context) (int, error)
}

// Capture launches capture subprocesses.
type Capture interface {
	Start(ctx context.Context, streamURL, manifestPath string) (CaptureProcess, error)
}

// Config holds the scheduling knobs of the Service.
type Config struct {
	RecordingsDir  string
	TickInterval   time.Duration
	ExpandInterval time.Duration
}

// Service is the top-level control loop: it periodically expands series
// watches into single-event reservations and launches at most one tracked
// recording task per due reservation. All in-flight tasks are cancelled
// together at shutdown.
type Service struct {
	cfg          Config
	reservations ReservationStore
	recordings   RecordingStore
	guide        Guide
	capture      Capture
	clock        Clock
	logger       zerolog.Logger

	mu         sync.Mutex
	tasks      map[string]struct{}
	lastExpand time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService wires a Service. clock may be nil for the real clock.
func NewService(cfg Config, reservations ReservationStore, recordings RecordingStore, g Guide, c Capture, clock Clock) *Service {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.ExpandInterval <= 0 {
		cfg.ExpandInterval = time.Hour
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Service{
		cfg:          cfg,
		reservations: reservations,
		recordings:   recordings,
		guide:        g,
		capture:      c,
		clock:        clock,
		logger:       log.WithComponent("recorder"),
		tasks:        make(map[string]struct{}),
	}
}

// Start launches the scheduler loop in a background goroutine.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop cancels the scheduler loop and every tracked recording task and
// waits for them to unwind. A task cancelled mid-capture attempts the
// graceful subprocess stop, bounded by the capture layer's wait delay.
//
// Abrupt cancellation may leave a reservation in "scheduled" rather than a
// terminal state; on restart the loop picks it up again and starts a fresh
// recording attempt.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("recorder stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info().
		Str("tick_interval", s.cfg.TickInterval.String()).
		Str("expand_interval", s.cfg.ExpandInterval.String()).
		Msg("scheduler loop started")

	timer := s.clock.NewTimer(s.cfg.TickInterval)
	defer timer.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler loop stopping")
			return
		case <-timer.C():
			timer.Reset(s.cfg.TickInterval)
		}
	}
}

// tick runs one scheduler pass. Errors are logged and never propagate: a
// single bad reservation or transient store failure must not kill the loop.
func (s *Service) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	now := s.clock.Now()
	s.mu.Lock()
	expandDue := now.Sub(s.lastExpand) >= s.cfg.ExpandInterval
	if expandDue {
		s.lastExpand = now
	}
	s.mu.Unlock()

	if expandDue {
		if err := s.ExpandSeriesWatches(ctx); err != nil {
			s.logger.Error().Err(err).Msg("series expansion failed")
		}
	}

	if err := s.scanDueReservations(ctx); err != nil {
		s.logger.Error().Err(err).Msg("due-reservation scan failed")
	}
}

// scanDueReservations transitions due single-event reservations from
// pending to scheduled and launches one tracked task per reservation id.
func (s *Service) scanDueReservations(ctx context.Context) error {
	var due []Reservation
	err := s.reservations.UpdateReservations(func(rs []Reservation) ([]Reservation, error) {
		due = due[:0]
		for i := range rs {
			r := &rs[i]
			if r.Kind != KindSingleEvent {
				continue
			}
			if r.Status != StatusPending && r.Status != StatusScheduled {
				continue
			}
			if r.Payload.Event == nil {
				continue
			}
			if s.taskTracked(r.ID) {
				continue
			}
			// Persist intent before the wait begins so a crash mid-wait
			// is observable as "scheduled".
			r.Status = StatusScheduled
			due = append(due, *r)
		}
		return rs, nil
	})
	if err != nil {
		return err
	}

	for _, r := range due {
		s.launchTask(ctx, r)
	}
	return nil
}

func (s *Service) taskTracked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok
}

// launchTask starts the wait-then-record task for one reservation. The
// tracked-set entry is claimed before the goroutine starts and released on
// completion, so repeated ticks can never double-schedule a reservation.
func (s *Service) launchTask(ctx context.Context, r Reservation) {
	s.mu.Lock()
	if _, ok := s.tasks[r.ID]; ok {
		s.mu.Unlock()
		return
	}
	s.tasks[r.ID] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.tasks, r.ID)
			s.mu.Unlock()
			s.wg.Done()
		}()

		start := r.Payload.Event.Start
		s.logger.Info().
			Str("reservation_id", r.ID).
			Str("broadcast_event_id", r.Payload.Event.BroadcastEventID).
			Time("start", start).
			Msg("recording task scheduled")

		if err := WaitUntil(ctx, s.clock, start); err != nil {
			s.logger.Info().Str("reservation_id", r.ID).Msg("recording task cancelled before start")
			return
		}
		if err := s.ExecuteRecording(ctx, r); err != nil {
			if ctx.Err() != nil {
				s.logger.Info().Str("reservation_id", r.ID).Msg("recording task cancelled")
				return
			}
			s.logger.Error().Err(err).Str("reservation_id", r.ID).Msg("recording task failed")
		}
	}()
}

func (s *Service) markReservation(id, status string) error {
	return s.reservations.UpdateReservations(func(rs []Reservation) ([]Reservation, error) {
		for i := range rs {
			if rs[i].ID == id {
				rs[i].Status = status
			}
		}
		return rs, nil
	})
}
