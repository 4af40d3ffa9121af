package freebusy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhall-labs/planner-api/internal/models"
)

type stubSource struct {
	windows []models.FreeBusyWindow
	err     error
	calls   int
}

func (s *stubSource) BusyWindows(_ context.Context, _, _ string, _, _ time.Time) ([]models.FreeBusyWindow, error) {
	s.calls++
	return s.windows, s.err
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestMultiSourceMergesInProviderOrder(t *testing.T) {
	first := &stubSource{windows: []models.FreeBusyWindow{
		{Start: ts(t, "2025-01-05T10:00:00Z"), End: ts(t, "2025-01-05T11:00:00Z"), BusyOnly: true, Source: "calendar"},
	}}
	second := &stubSource{windows: []models.FreeBusyWindow{
		{Start: ts(t, "2025-01-05T14:00:00Z"), End: ts(t, "2025-01-05T15:00:00Z"), BusyOnly: true, Source: "external"},
	}}

	source := NewMultiSource(first, nil, second)
	windows, err := source.BusyWindows(context.Background(), "org-1", "user-1",
		ts(t, "2025-01-05T00:00:00Z"), ts(t, "2025-01-06T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "calendar", windows[0].Source)
	assert.Equal(t, "external", windows[1].Source)
}

func TestMultiSourcePropagatesProviderFailure(t *testing.T) {
	healthy := &stubSource{}
	failing := &stubSource{err: errors.New("provider down")}

	source := NewMultiSource(healthy, failing)
	_, err := source.BusyWindows(context.Background(), "org-1", "user-1",
		ts(t, "2025-01-05T00:00:00Z"), ts(t, "2025-01-06T00:00:00Z"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestMultiSourceDegenerateRangeSkipsProviders(t *testing.T) {
	inner := &stubSource{err: errors.New("must not be called")}
	source := NewMultiSource(inner)

	windows, err := source.BusyWindows(context.Background(), "org-1", "user-1",
		ts(t, "2025-01-06T00:00:00Z"), ts(t, "2025-01-05T00:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, windows)
	assert.Zero(t, inner.calls)
}

func TestHTTPSourceFetchesWindows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org-1", r.URL.Query().Get("org"))
		assert.Equal(t, "user-1", r.URL.Query().Get("user"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"windows":[{"start":"2025-01-05T10:00:00Z","end":"2025-01-05T11:00:00Z"}]}`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, time.Second)
	windows, err := source.BusyWindows(context.Background(), "org-1", "user-1",
		ts(t, "2025-01-05T00:00:00Z"), ts(t, "2025-01-06T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.True(t, windows[0].BusyOnly)
	assert.Equal(t, ts(t, "2025-01-05T10:00:00Z"), windows[0].Start)
}

func TestHTTPSourceNonOKStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, time.Second)
	_, err := source.BusyWindows(context.Background(), "org-1", "user-1",
		ts(t, "2025-01-05T00:00:00Z"), ts(t, "2025-01-06T00:00:00Z"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

type stubCalendarLister struct {
	events []models.CalendarEvent
}

func (s *stubCalendarLister) ListInRange(_ context.Context, _, _ string, _, _ time.Time) ([]models.CalendarEvent, error) {
	return s.events, nil
}

func TestCalendarSourceMapsEventsToWindows(t *testing.T) {
	lister := &stubCalendarLister{events: []models.CalendarEvent{
		{ID: "evt-1", StartAt: ts(t, "2025-01-05T09:00:00Z"), EndAt: ts(t, "2025-01-05T09:30:00Z")},
	}}

	source := NewCalendarSource(lister)
	windows, err := source.BusyWindows(context.Background(), "org-1", "user-1",
		ts(t, "2025-01-05T00:00:00Z"), ts(t, "2025-01-06T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "calendar", windows[0].Source)
	assert.True(t, windows[0].BusyOnly)
}
