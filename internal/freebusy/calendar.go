package freebusy

import (
	"context"
	"fmt"
	"time"

	"github.com/studyhall-labs/planner-api/internal/models"
)

type calendarEventLister interface {
	ListInRange(ctx context.Context, orgID, userID string, from, to time.Time) ([]models.CalendarEvent, error)
}

// CalendarSource reports the user's own calendar events as busy windows.
type CalendarSource struct {
	events calendarEventLister
}

// NewCalendarSource wraps a calendar repository as a busy-window provider.
func NewCalendarSource(events calendarEventLister) *CalendarSource {
	return &CalendarSource{events: events}
}

// BusyWindows implements Source.
func (s *CalendarSource) BusyWindows(ctx context.Context, orgID, userID string, from, to time.Time) ([]models.FreeBusyWindow, error) {
	if degenerateRange(from, to) {
		return nil, nil
	}
	events, err := s.events.ListInRange(ctx, orgID, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	windows := make([]models.FreeBusyWindow, 0, len(events))
	for _, e := range events {
		windows = append(windows, models.FreeBusyWindow{
			Start:    e.StartAt,
			End:      e.EndAt,
			BusyOnly: true,
			Source:   "calendar",
		})
	}
	return windows, nil
}
