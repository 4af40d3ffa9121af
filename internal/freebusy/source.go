// Package freebusy resolves externally reported busy windows for a user.
// The planner treats these windows exactly like persisted sessions when
// checking for conflicts.
package freebusy

import (
	"context"
	"fmt"
	"time"

	"github.com/studyhall-labs/planner-api/internal/models"
)

// Source supplies busy windows for a user within a date range. Degenerate
// ranges (to <= from, zero times) yield an empty result, never an error.
type Source interface {
	BusyWindows(ctx context.Context, orgID, userID string, from, to time.Time) ([]models.FreeBusyWindow, error)
}

// MultiSource fans a lookup out to several providers and merges the results
// in provider order. Any provider failure fails the whole fetch: a missing
// provider must surface as an error, never as silently fewer conflicts.
type MultiSource struct {
	sources []Source
}

// NewMultiSource builds a merged source. Nil entries are skipped.
func NewMultiSource(sources ...Source) *MultiSource {
	kept := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiSource{sources: kept}
}

// BusyWindows implements Source.
func (m *MultiSource) BusyWindows(ctx context.Context, orgID, userID string, from, to time.Time) ([]models.FreeBusyWindow, error) {
	if degenerateRange(from, to) {
		return nil, nil
	}
	var merged []models.FreeBusyWindow
	for _, s := range m.sources {
		windows, err := s.BusyWindows(ctx, orgID, userID, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetch busy windows: %w", err)
		}
		merged = append(merged, windows...)
	}
	return merged, nil
}

func degenerateRange(from, to time.Time) bool {
	return from.IsZero() || to.IsZero() || !to.After(from)
}
