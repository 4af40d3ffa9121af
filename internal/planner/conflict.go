package planner

import "time"

// ConflictKindOverlap is the only conflict kind currently reported.
const ConflictKindOverlap = "overlap"

// Interval is a half-open [Start, End) time range. Ref identifies the origin
// of the interval (session id, busy-window source) for reporting.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Ref   string    `json:"ref,omitempty"`
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Conflict pairs an existing commitment with a proposed session that
// overlaps it.
type Conflict struct {
	Kind     string   `json:"kind"`
	Existing Interval `json:"a"`
	Proposed Interval `json:"b"`
}

// DetectConflicts compares two interval sets pairwise and returns one entry
// per overlapping (existing, proposed) pair. An existing interval that
// overlaps two proposals yields two entries. Result order follows the outer
// loop over existing, inner loop over proposed.
func DetectConflicts(existing, proposed []Interval) []Conflict {
	var conflicts []Conflict
	for _, e := range existing {
		for _, p := range proposed {
			if e.Overlaps(p) {
				conflicts = append(conflicts, Conflict{
					Kind:     ConflictKindOverlap,
					Existing: e,
					Proposed: p,
				})
			}
		}
	}
	return conflicts
}
