// SPDX-License-Identifier: MIT

package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/aircheckd/aircheck/internal/guide"
)

// memStore is an in-memory ReservationStore and RecordingStore with the same
// snapshot/read-modify-write semantics as the durable one.
type memStore struct {
	mu           sync.Mutex
	reservations []Reservation
	recordings   []Recording
}

func (m *memStore) Reservations() ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Reservation, len(m.reservations))
	copy(out, m.reservations)
	return out, nil
}

func (m *memStore) UpdateReservations(fn func(rs []Reservation) ([]Reservation, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]Reservation, len(m.reservations))
	copy(snapshot, m.reservations)
	updated, err := fn(snapshot)
	if err != nil {
		return err
	}
	m.reservations = updated
	return nil
}

func (m *memStore) Recordings() ([]Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Recording, len(m.recordings))
	copy(out, m.recordings)
	return out, nil
}

func (m *memStore) UpdateRecordings(fn func(rs []Recording) ([]Recording, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]Recording, len(m.recordings))
	copy(snapshot, m.recordings)
	updated, err := fn(snapshot)
	if err != nil {
		return err
	}
	m.recordings = updated
	return nil
}

func (m *memStore) reservationByID(id string) (Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reservations {
		if r.ID == id {
			return r, true
		}
	}
	return Reservation{}, false
}

type fakeGuide struct {
	mu         sync.Mutex
	events     map[string][]guide.BroadcastEvent
	eventsErr  map[string]error
	catalog    map[string]*guide.CatalogEntry
	catalogErr error
	fetched    []string
}

func (f *fakeGuide) Events(_ context.Context, seriesKey string) ([]guide.BroadcastEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, seriesKey)
	if err := f.eventsErr[seriesKey]; err != nil {
		return nil, err
	}
	return f.events[seriesKey], nil
}

func (f *fakeGuide) StreamCatalog(context.Context) (map[string]*guide.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalog, nil
}

func (f *fakeGuide) fetchedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.fetched))
	copy(out, f.fetched)
	return out
}

type fakeProcess struct {
	mu         sync.Mutex
	exitCode   int
	quitCalled bool
}

func (p *fakeProcess) Quit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quitCalled = true
}

func (p *fakeProcess) Wait(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, nil
}

func (p *fakeProcess) quit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quitCalled
}

type captureCall struct {
	streamURL    string
	manifestPath string
}

type fakeCapture struct {
	mu       sync.Mutex
	startErr error
	exitCode int
	calls    []captureCall
	procs    []*fakeProcess
}

func (f *fakeCapture) Start(_ context.Context, streamURL, manifestPath string) (CaptureProcess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.calls = append(f.calls, captureCall{streamURL: streamURL, manifestPath: manifestPath})
	proc := &fakeProcess{exitCode: f.exitCode}
	f.procs = append(f.procs, proc)
	return proc, nil
}

func (f *fakeCapture) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCapture) lastCall() (captureCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return captureCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

// holdClock reports a fixed instant and hands out timers that never fire, so
// any in-progress wait blocks until its context is cancelled.
type holdClock struct {
	now time.Time
}

func (c holdClock) Now() time.Time               { return c.now }
func (c holdClock) NewTimer(time.Duration) Timer { return neverTimer{} }

type neverTimer struct{}

func (neverTimer) C() <-chan time.Time      { return nil }
func (neverTimer) Stop() bool               { return true }
func (neverTimer) Reset(time.Duration) bool { return true }

// stepClock advances its own time by each timer's duration and fires the
// timer immediately, collapsing absolute waits to zero wall time.
type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	timers int
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	c.now = c.now.Add(d)
	fireAt := c.now
	c.timers++
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- fireAt
	return firedTimer{ch: ch}
}

func (c *stepClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers
}

type firedTimer struct {
	ch chan time.Time
}

func (t firedTimer) C() <-chan time.Time { return t.ch }
func (t firedTimer) Stop() bool          { return false }
func (t firedTimer) Reset(time.Duration) bool {
	select {
	case t.ch <- time.Now():
	default:
	}
	return false
}
