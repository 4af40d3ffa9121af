package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interval(t *testing.T, start, end string) Interval {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	e, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)
	return Interval{Start: s, End: e}
}

func TestDetectConflictsIdenticalIntervals(t *testing.T) {
	existing := []Interval{interval(t, "2025-01-05T10:00:00Z", "2025-01-05T10:45:00Z")}
	proposed := []Interval{interval(t, "2025-01-05T10:00:00Z", "2025-01-05T10:45:00Z")}

	conflicts := DetectConflicts(existing, proposed)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictKindOverlap, conflicts[0].Kind)
	assert.Equal(t, existing[0], conflicts[0].Existing)
	assert.Equal(t, proposed[0], conflicts[0].Proposed)
}

func TestDetectConflictsTouchingEndpointsDoNotConflict(t *testing.T) {
	existing := []Interval{interval(t, "2025-01-05T10:00:00Z", "2025-01-05T11:00:00Z")}
	proposed := []Interval{interval(t, "2025-01-05T11:00:00Z", "2025-01-05T11:45:00Z")}

	assert.Empty(t, DetectConflicts(existing, proposed))
}

func TestDetectConflictsPartialOverlap(t *testing.T) {
	existing := []Interval{interval(t, "2025-01-05T10:00:00Z", "2025-01-05T11:00:00Z")}
	proposed := []Interval{interval(t, "2025-01-05T10:30:00Z", "2025-01-05T11:30:00Z")}

	assert.Len(t, DetectConflicts(existing, proposed), 1)
}

func TestDetectConflictsOneExistingAgainstTwoProposed(t *testing.T) {
	existing := []Interval{interval(t, "2025-01-05T09:00:00Z", "2025-01-05T12:00:00Z")}
	proposed := []Interval{
		interval(t, "2025-01-05T09:30:00Z", "2025-01-05T10:00:00Z"),
		interval(t, "2025-01-05T10:00:00Z", "2025-01-05T10:30:00Z"),
	}

	conflicts := DetectConflicts(existing, proposed)
	require.Len(t, conflicts, 2)
	assert.Equal(t, proposed[0], conflicts[0].Proposed)
	assert.Equal(t, proposed[1], conflicts[1].Proposed)
}

func TestDetectConflictsOrderFollowsOuterExistingLoop(t *testing.T) {
	existing := []Interval{
		interval(t, "2025-01-05T13:00:00Z", "2025-01-05T14:00:00Z"),
		interval(t, "2025-01-05T09:00:00Z", "2025-01-05T10:00:00Z"),
	}
	proposed := []Interval{
		interval(t, "2025-01-05T09:30:00Z", "2025-01-05T10:30:00Z"),
		interval(t, "2025-01-05T13:30:00Z", "2025-01-05T14:30:00Z"),
	}

	conflicts := DetectConflicts(existing, proposed)
	require.Len(t, conflicts, 2)
	assert.Equal(t, existing[0], conflicts[0].Existing)
	assert.Equal(t, existing[1], conflicts[1].Existing)
}

func TestDetectConflictsSymmetry(t *testing.T) {
	a := []Interval{
		interval(t, "2025-01-05T09:00:00Z", "2025-01-05T10:00:00Z"),
		interval(t, "2025-01-05T15:00:00Z", "2025-01-05T16:00:00Z"),
	}
	b := []Interval{
		interval(t, "2025-01-05T09:30:00Z", "2025-01-05T10:30:00Z"),
		interval(t, "2025-01-05T12:00:00Z", "2025-01-05T13:00:00Z"),
	}

	forward := DetectConflicts(a, b)
	backward := DetectConflicts(b, a)
	require.Equal(t, len(forward), len(backward))

	type pair struct{ x, y time.Time }
	seen := map[pair]bool{}
	for _, c := range forward {
		seen[pair{c.Existing.Start, c.Proposed.Start}] = true
	}
	for _, c := range backward {
		assert.True(t, seen[pair{c.Proposed.Start, c.Existing.Start}], "pair missing under swapped arguments")
	}
}

func TestDetectConflictsEmptyInputs(t *testing.T) {
	assert.Empty(t, DetectConflicts(nil, nil))
	assert.Empty(t, DetectConflicts([]Interval{interval(t, "2025-01-05T09:00:00Z", "2025-01-05T10:00:00Z")}, nil))
	assert.Empty(t, DetectConflicts(nil, []Interval{interval(t, "2025-01-05T09:00:00Z", "2025-01-05T10:00:00Z")}))
}
