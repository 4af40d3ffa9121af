// Package planner implements deterministic study-session generation and
// pairwise conflict detection. Everything in this package is pure: no I/O,
// no clock reads, and identical inputs always produce identical output.
package planner

import "time"

// Constraints describe one generation run.
type Constraints struct {
	// From and To bound the run as an inclusive calendar-day range. Both are
	// normalized to midnight of their day in Location before use.
	From time.Time
	To   time.Time

	SessionMinutes int
	DailyCap       int

	// PreferredStartHour and PreferredEndHour optionally confine sessions to
	// an hour window within each day. Cross-field validation (end > start)
	// happens before constraints reach the generator.
	PreferredStartHour *int
	PreferredEndHour   *int

	Topics      []string
	Description *string

	// Location is the time zone for day-boundary math. Nil falls back to
	// time.Local.
	Location *time.Location
}

// SessionDraft is an in-memory candidate study interval. End - Start always
// equals SessionMinutes.
type SessionDraft struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Topic       *string   `json:"topic,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// Generate maps constraints to an ordered list of candidate sessions.
// Degenerate inputs (zero dates, inverted range) yield an empty result, not
// an error; callers distinguish "nothing possible" from failure upstream.
func (c Constraints) Generate() []SessionDraft {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	if c.From.IsZero() || c.To.IsZero() {
		return nil
	}

	from := startOfDay(c.From.In(loc))
	to := startOfDay(c.To.In(loc))
	if to.Before(from) {
		return nil
	}

	minutes := atLeastOne(c.SessionMinutes)
	dailyCap := atLeastOne(c.DailyCap)
	duration := time.Duration(minutes) * time.Minute

	var drafts []SessionDraft
	topicIdx := 0

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		cursor := clampToWindow(day, c.PreferredStartHour, c.PreferredEndHour)

		for placed := 0; placed < dailyCap; placed++ {
			end := cursor.Add(duration)
			if c.PreferredEndHour != nil && end.After(hourOfDay(day, *c.PreferredEndHour)) {
				// The window is exhausted for this day; never roll into the
				// next one.
				break
			}

			draft := SessionDraft{Start: cursor, End: end, Description: c.Description}
			if len(c.Topics) > 0 {
				topic := c.Topics[topicIdx%len(c.Topics)]
				draft.Topic = &topic
				topicIdx++
			}
			drafts = append(drafts, draft)
			cursor = end
		}
	}

	return drafts
}

// clampToWindow moves a day-start cursor into the preferred hour window.
// The clamp-down branch (cursor hour already past the end of the window) is
// unreachable from a midnight cursor but kept for input compatibility with
// callers that pre-position the cursor.
func clampToWindow(cursor time.Time, startHour, endHour *int) time.Time {
	if startHour != nil && cursor.Hour() < *startHour {
		cursor = hourOfDay(cursor, *startHour)
	}
	if endHour != nil && cursor.Hour() > *endHour {
		cursor = hourOfDay(cursor, *endHour)
	}
	return cursor
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func hourOfDay(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
