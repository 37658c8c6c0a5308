package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsync/internal/model"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func event(t *testing.T, uid string, start, end time.Time) model.CalendarEvent {
	t.Helper()
	ev, err := model.NewCalendarEvent(model.EventParams{UID: uid, Summary: uid, Start: start, End: end})
	require.NoError(t, err)
	return ev
}

func TestFindConflicts_SameStartDay(t *testing.T) {
	vivian := event(t, "vivian@airbnb.com", day(1), day(4))
	marissa := event(t, "marissa@vrbo.com", day(1), day(3))

	pairs := FindConflicts([]model.CalendarEvent{vivian, marissa})

	require.Len(t, pairs, 1)
	assert.Equal(t, "vivian@airbnb.com", pairs[0].A.UID)
	assert.Equal(t, "marissa@vrbo.com", pairs[0].B.UID)
}

func TestFindConflicts_BackToBackIsNotAConflict(t *testing.T) {
	a := event(t, "a@x", day(1), day(4))
	b := event(t, "b@x", day(4), day(7))

	assert.Empty(t, FindConflicts([]model.CalendarEvent{a, b}))
	assert.Empty(t, FindConflicts([]model.CalendarEvent{b, a}))
	assert.False(t, Overlaps(a, b))
}

func TestOverlaps_Properties(t *testing.T) {
	// Every pair of ranges over a small window is checked against the
	// half-open definition.
	var events []model.CalendarEvent
	for s := 1; s <= 5; s++ {
		for e := s + 1; e <= 6; e++ {
			events = append(events, event(t, "e", day(s), day(e)))
		}
	}
	for _, a := range events {
		for _, b := range events {
			want := a.Start.Before(b.End) && b.Start.Before(a.End)
			assert.Equal(t, want, Overlaps(a, b))
			assert.Equal(t, Overlaps(a, b), Overlaps(b, a), "symmetric")
			if !a.End.After(b.Start) {
				assert.False(t, Overlaps(a, b))
			}
		}
	}
}

func TestFindConflicts_AllPairs(t *testing.T) {
	a := event(t, "a@x", day(1), day(10))
	b := event(t, "b@x", day(2), day(3))
	c := event(t, "c@x", day(5), day(6))
	d := event(t, "d@x", day(20), day(21))

	pairs := FindConflicts([]model.CalendarEvent{a, b, c, d})

	require.Len(t, pairs, 2)
	assert.Equal(t, [2]string{"a@x", "b@x"}, [2]string{pairs[0].A.UID, pairs[0].B.UID})
	assert.Equal(t, [2]string{"a@x", "c@x"}, [2]string{pairs[1].A.UID, pairs[1].B.UID})
}

func TestFindConflicts_StatusDoesNotMatter(t *testing.T) {
	a := event(t, "a@x", day(1), day(5))
	b := event(t, "b@x", day(2), day(3))
	b.Status = model.StatusCancelled

	pairs := FindConflicts([]model.CalendarEvent{a, b})
	require.Len(t, pairs, 1)
	assert.Equal(t, "a@x", pairs[0].A.UID)
	assert.Equal(t, "b@x", pairs[0].B.UID)
	assert.Len(t, Participants([]model.CalendarEvent{a, b}), 2)
}

func TestParticipants(t *testing.T) {
	a := event(t, "a@x", day(1), day(4))
	b := event(t, "b@x", day(10), day(12))
	c := event(t, "c@x", day(3), day(5))

	got := Participants([]model.CalendarEvent{a, b, c})

	require.Len(t, got, 2)
	assert.Equal(t, "a@x", got[0].UID)
	assert.Equal(t, "c@x", got[1].UID)
	assert.NotNil(t, Participants(nil))
}
