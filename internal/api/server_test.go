// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aircheckd/aircheck/internal/guide"
	"github.com/aircheckd/aircheck/internal/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGuideAPI struct {
	events    map[string][]guide.BroadcastEvent
	eventsErr error
	resolved  map[string]string
}

func (f *fakeGuideAPI) Events(_ context.Context, seriesKey string) ([]guide.BroadcastEvent, error) {
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events[seriesKey], nil
}

func (f *fakeGuideAPI) ResolveSeriesKey(_ context.Context, seriesURL string) string {
	return f.resolved[seriesURL]
}

type fakeSeriesProvider struct {
	series []guide.Series
	err    error
}

func (f *fakeSeriesProvider) Get(context.Context) ([]guide.Series, error) {
	return f.series, f.err
}

type fakeExpander struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeExpander) ExpandSeriesWatches(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeExpander) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRemuxer writes a tiny file where the converted download would be.
type fakeRemuxer struct {
	err  error
	tags map[string]string
}

func (f *fakeRemuxer) Remux(_ context.Context, _ string, outPath string, tags map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.tags = tags
	return os.WriteFile(outPath, []byte("converted"), 0o644)
}

type memStore struct {
	mu           sync.Mutex
	reservations []recorder.Reservation
	recordings   []recorder.Recording
}

func (m *memStore) Reservations() ([]recorder.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recorder.Reservation, len(m.reservations))
	copy(out, m.reservations)
	return out, nil
}

func (m *memStore) UpdateReservations(fn func(rs []recorder.Reservation) ([]recorder.Reservation, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated, err := fn(m.reservations)
	if err != nil {
		return err
	}
	m.reservations = updated
	return nil
}

func (m *memStore) Recordings() ([]recorder.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recorder.Recording, len(m.recordings))
	copy(out, m.recordings)
	return out, nil
}

func (m *memStore) UpdateRecordings(fn func(rs []recorder.Recording) ([]recorder.Recording, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated, err := fn(m.recordings)
	if err != nil {
		return err
	}
	m.recordings = updated
	return nil
}

type apiFixture struct {
	server   *Server
	handler  http.Handler
	store    *memStore
	guide    *fakeGuideAPI
	series   *fakeSeriesProvider
	expander *fakeExpander
	remuxer  *fakeRemuxer
	dir      string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		store:    &memStore{},
		guide:    &fakeGuideAPI{resolved: map[string]string{}},
		series:   &fakeSeriesProvider{},
		expander: &fakeExpander{},
		remuxer:  &fakeRemuxer{},
		dir:      t.TempDir(),
	}
	f.server = NewServer(Deps{
		Guide:         f.guide,
		Series:        f.series,
		Reservations:  f.store,
		Recordings:    f.store,
		Expander:      f.expander,
		Remuxer:       f.remuxer,
		RecordingsDir: f.dir,
	})
	f.handler = f.server.Router()
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRateLimitRejectsExcessRequests(t *testing.T) {
	f := newAPIFixture(t)
	limited := NewServer(Deps{
		Guide:         f.guide,
		Series:        f.series,
		Reservations:  f.store,
		Recordings:    f.store,
		Expander:      f.expander,
		Remuxer:       f.remuxer,
		RecordingsDir: f.dir,
		RateLimit:     2,
	})
	handler := limited.Router()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSeriesListDegradesToEmptyOnError(t *testing.T) {
	f := newAPIFixture(t)
	f.series.err = fmt.Errorf("upstream down")

	rec := f.do(t, http.MethodGet, "/api/series", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]guide.Series](t, rec))
}

func TestSeriesList(t *testing.T) {
	f := newAPIFixture(t)
	f.series.series = []guide.Series{{ID: 1, Title: "Show", URL: "https://www.example/rs/ABC/"}}

	rec := f.do(t, http.MethodGet, "/api/series", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[[]guide.Series](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "Show", got[0].Title)
}

func TestSeriesResolve(t *testing.T) {
	f := newAPIFixture(t)
	f.guide.resolved["https://www.example/p/short"] = "ABC123"

	rec := f.do(t, http.MethodGet, "/api/series/resolve?series_url=https%3A%2F%2Fwww.example%2Fp%2Fshort", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "ABC123", got["seriesCode"])

	rec = f.do(t, http.MethodGet, "/api/series/resolve", nil)
	got = decodeJSON[map[string]any](t, rec)
	assert.Nil(t, got["seriesCode"])
}

func TestEventsResolutionOrder(t *testing.T) {
	f := newAPIFixture(t)
	ev := guide.BroadcastEvent{BroadcastEventID: "E1", Title: "Show", ServiceID: "fm", AreaID: "130"}
	f.guide.events = map[string][]guide.BroadcastEvent{"ABC123": {ev}, "42": {ev}}
	f.guide.resolved["https://www.example/p/short"] = "ABC123"

	rec := f.do(t, http.MethodGet, "/api/events?series_code=ABC123", nil)
	assert.Len(t, decodeJSON[[]guide.BroadcastEvent](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/events?series_url=https%3A%2F%2Fwww.example%2Fp%2Fshort", nil)
	assert.Len(t, decodeJSON[[]guide.BroadcastEvent](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/events?series_id=42", nil)
	assert.Len(t, decodeJSON[[]guide.BroadcastEvent](t, rec), 1)

	// No identifier at all yields an empty list, not an error.
	rec = f.do(t, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]guide.BroadcastEvent](t, rec))
}

func TestEventsUpstreamFailureDegradesToEmpty(t *testing.T) {
	f := newAPIFixture(t)
	f.guide.eventsErr = fmt.Errorf("upstream down")

	rec := f.do(t, http.MethodGet, "/api/events?series_code=ABC123", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]guide.BroadcastEvent](t, rec))
}

func TestCreateSingleEventReservation(t *testing.T) {
	f := newAPIFixture(t)
	body := map[string]any{
		"type": recorder.KindSingleEvent,
		"payload": map[string]any{
			"series_code": "ABC123",
			"event": map[string]any{
				"broadcastEventId": "E1",
				"name":             "Show",
				"startDate":        time.Now().Add(time.Hour).Format(time.RFC3339),
				"endDate":          time.Now().Add(2 * time.Hour).Format(time.RFC3339),
				"serviceId":        "fm",
				"areaId":           "130",
			},
		},
	}

	rec := f.do(t, http.MethodPost, "/api/reservations", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeJSON[recorder.Reservation](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, recorder.StatusPending, created.Status)
	assert.Equal(t, "ABC123", created.Payload.Metadata["series_code"])
	assert.Equal(t, "E1", created.Payload.Metadata["broadcast_event_id"])

	stored, err := f.store.Reservations()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Zero(t, f.expander.callCount(), "single-event creation must not trigger expansion")
}

func TestCreateSingleEventRequiresEvent(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/reservations", map[string]any{"type": recorder.KindSingleEvent})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSeriesWatchTriggersExpansion(t *testing.T) {
	f := newAPIFixture(t)
	body := map[string]any{
		"type": recorder.KindSeriesWatch,
		"payload": map[string]any{
			"series_id":    42,
			"series_code":  "ABC123",
			"series_title": "Show",
		},
	}

	rec := f.do(t, http.MethodPost, "/api/reservations", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeJSON[recorder.Reservation](t, rec)
	assert.Equal(t, "Show", created.Payload.Metadata["series_title"])
	assert.Equal(t, 1, f.expander.callCount())
}

func TestCreateSeriesWatchRequiresIdentifier(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/reservations", map[string]any{"type": recorder.KindSeriesWatch})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUnknownKindRejected(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/reservations", map[string]any{"type": "weekly_digest"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSeriesWatchSurvivesExpansionFailure(t *testing.T) {
	f := newAPIFixture(t)
	f.expander.err = fmt.Errorf("guide down")

	rec := f.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"type":    recorder.KindSeriesWatch,
		"payload": map[string]any{"series_code": "ABC123"},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestDeleteReservation(t *testing.T) {
	f := newAPIFixture(t)
	f.store.reservations = []recorder.Reservation{{ID: "res-1", Kind: recorder.KindSingleEvent}}

	rec := f.do(t, http.MethodDelete, "/api/reservations/res-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	stored, _ := f.store.Reservations()
	assert.Empty(t, stored)

	rec = f.do(t, http.MethodDelete, "/api/reservations/res-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordingsList(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/api/recordings", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]recorder.Recording](t, rec))

	f.store.recordings = []recorder.Recording{{ID: "rec-1", Status: recorder.RecordingReady}}
	rec = f.do(t, http.MethodGet, "/api/recordings", nil)
	assert.Len(t, decodeJSON[[]recorder.Recording](t, rec), 1)
}

func TestPatchRecordingMetadata(t *testing.T) {
	f := newAPIFixture(t)
	f.store.recordings = []recorder.Recording{{ID: "rec-1", Metadata: map[string]string{"title": "Old"}}}

	rec := f.do(t, http.MethodPatch, "/api/recordings/rec-1/metadata", map[string]any{
		"title": "New",
		"track": 3,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	stored, _ := f.store.Recordings()
	assert.Equal(t, "New", stored[0].Metadata["title"])
	assert.Equal(t, "3", stored[0].Metadata["track"])
}

func TestPatchRecordingMetadataNotFound(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPatch, "/api/recordings/nope/metadata", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadRecording(t *testing.T) {
	f := newAPIFixture(t)
	f.store.recordings = []recorder.Recording{{
		ID:       "rec-1",
		Metadata: map[string]string{"title": "Show"},
	}}
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "rec-1"), 0o755))

	rec := f.do(t, http.MethodGet, "/api/recordings/rec-1/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "rec-1.m4a")
	assert.Equal(t, "converted", rec.Body.String())
	assert.Equal(t, "Show", f.remuxer.tags["title"])
}

func TestDownloadRecordingConversionFailure(t *testing.T) {
	f := newAPIFixture(t)
	f.store.recordings = []recorder.Recording{{ID: "rec-1"}}
	f.remuxer.err = fmt.Errorf("ffmpeg exploded")

	rec := f.do(t, http.MethodGet, "/api/recordings/rec-1/download", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDownloadRejectsUnsafeID(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/api/recordings/..%2Fsecret/download", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestDeleteRecordingRemovesDirAndRecord(t *testing.T) {
	f := newAPIFixture(t)
	f.store.recordings = []recorder.Recording{{ID: "rec-1"}}
	recDir := filepath.Join(f.dir, "rec-1")
	require.NoError(t, os.MkdirAll(recDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(recDir, "recording.m3u8"), []byte("#EXTM3U"), 0o644))

	rec := f.do(t, http.MethodDelete, "/api/recordings/rec-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := os.Stat(recDir)
	assert.True(t, os.IsNotExist(err))
	stored, _ := f.store.Recordings()
	assert.Empty(t, stored)
}

func TestRecordingsFileServer(t *testing.T) {
	f := newAPIFixture(t)
	recDir := filepath.Join(f.dir, "rec-1")
	require.NoError(t, os.MkdirAll(recDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(recDir, "recording.m3u8"), []byte("#EXTM3U"), 0o644))

	rec := f.do(t, http.MethodGet, "/recordings/rec-1/recording.m3u8", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "#EXTM3U", rec.Body.String())
}
