// Package conflict finds bookings whose date ranges overlap.
package conflict

import "propsync/internal/model"

// Pair is two events whose [Start, End) ranges overlap. A precedes B in the
// input slice.
type Pair struct {
	A model.CalendarEvent `json:"a"`
	B model.CalendarEvent `json:"b"`
}

// Overlaps reports whether the half-open ranges of a and b intersect. An event
// ending exactly when the other starts does not overlap it.
func Overlaps(a, b model.CalendarEvent) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// FindConflicts returns every unordered conflicting pair, ordered by the
// position of A and then B in events. Status plays no part: callers that
// hide cancelled bookings filter them out first.
//
// The pairwise scan is quadratic, which is fine for one month of bookings.
func FindConflicts(events []model.CalendarEvent) []Pair {
	pairs := []Pair{}
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if Overlaps(events[i], events[j]) {
				pairs = append(pairs, Pair{A: events[i], B: events[j]})
			}
		}
	}
	return pairs
}

// Participants returns the events that take part in at least one conflict,
// in input order. This is what the UI warning list shows.
func Participants(events []model.CalendarEvent) []model.CalendarEvent {
	hit := make([]bool, len(events))
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if Overlaps(events[i], events[j]) {
				hit[i], hit[j] = true, true
			}
		}
	}

	out := []model.CalendarEvent{}
	for i, ev := range events {
		if hit[i] {
			out = append(out, ev)
		}
	}
	return out
}
