package layout

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsync/internal/model"
)

func jan(d int) time.Time {
	return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
}

func event(t *testing.T, uid string, start, end time.Time) model.CalendarEvent {
	t.Helper()
	ev, err := model.NewCalendarEvent(model.EventParams{UID: uid, Summary: uid, Start: start, End: end})
	require.NoError(t, err)
	return ev
}

func january() MonthGrid {
	return BuildMonthGrid(2024, time.January, time.Monday, time.UTC)
}

func TestBuildMonthGrid(t *testing.T) {
	g := january()
	require.Len(t, g.Cells, 35)
	assert.Equal(t, 5, g.Weeks())
	assert.True(t, g.Cells[0].Valid)
	assert.Equal(t, 1, g.Cells[0].Day)
	assert.Equal(t, 31, g.Cells[30].Day)
	assert.False(t, g.Cells[31].Valid)

	sunday := BuildMonthGrid(2024, time.January, time.Sunday, time.UTC)
	assert.False(t, sunday.Cells[0].Valid)
	assert.Equal(t, 1, sunday.Cells[1].Day)
	assert.Len(t, sunday.Cells, 35)

	// February 2026 starts on a Sunday: six leading blanks on a Monday grid.
	feb := BuildMonthGrid(2026, time.February, time.Monday, time.UTC)
	assert.Equal(t, 1, feb.Cells[6].Day)
	assert.Len(t, feb.Cells, 35)
	for _, g := range []MonthGrid{g, sunday, feb} {
		assert.Zero(t, len(g.Cells)%7)
	}

	start, end := g.Range()
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestParseWeekStart(t *testing.T) {
	assert.Equal(t, time.Sunday, ParseWeekStart("Sunday"))
	assert.Equal(t, time.Monday, ParseWeekStart("monday"))
	assert.Equal(t, time.Monday, ParseWeekStart(""))
}

func TestLayoutMonth_SameStartDayUsesTwoRows(t *testing.T) {
	vivian := event(t, "vivian", jan(1), jan(4))
	marissa := event(t, "marissa", jan(1), jan(3))
	joe := event(t, "joe", jan(4), jan(7))

	segs := LayoutMonth([]model.CalendarEvent{vivian, marissa, joe}, january().Cells)

	require.Len(t, segs, 3)
	assert.Equal(t, 0, segs[0].RowIndex)
	assert.Equal(t, 1, segs[1].RowIndex)
	assert.Equal(t, 0, segs[0].WeekIndex)
	assert.Equal(t, 0, segs[1].WeekIndex)

	// Joe shares Jan 4 with Vivian but fits beside Marissa.
	assert.Equal(t, 1, segs[2].RowIndex)
	assert.Equal(t, 3, segs[2].StartCol)
	assert.Equal(t, 6, segs[2].EndCol)
	assert.Equal(t, 4, segs[2].Span())
	assert.Equal(t, 2, RowCount(segs))
}

func TestLayoutMonth_SingleDay(t *testing.T) {
	ev := event(t, "one", jan(10), jan(10).Add(2*time.Hour))

	segs := LayoutMonth([]model.CalendarEvent{ev}, january().Cells)

	require.Len(t, segs, 1)
	s := segs[0]
	assert.True(t, s.IsSegmentStart)
	assert.True(t, s.IsSegmentEnd)
	assert.Equal(t, 1, s.Span())
	assert.Equal(t, 1, s.WeekIndex)
	assert.Equal(t, 2, s.StartCol)
}

func TestLayoutMonth_MultiWeekSplit(t *testing.T) {
	ev := event(t, "long", jan(5), jan(20))

	segs := LayoutMonth([]model.CalendarEvent{ev}, january().Cells)

	// Jan 5 is cell 4 (week 0), Jan 20 is cell 19 (week 2).
	require.Len(t, segs, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{segs[0].WeekIndex, segs[1].WeekIndex, segs[2].WeekIndex})
	assert.Equal(t, [2]int{4, 6}, [2]int{segs[0].StartCol, segs[0].EndCol})
	assert.Equal(t, [2]int{0, 6}, [2]int{segs[1].StartCol, segs[1].EndCol})
	assert.Equal(t, [2]int{0, 5}, [2]int{segs[2].StartCol, segs[2].EndCol})

	assert.True(t, segs[0].IsSegmentStart)
	assert.False(t, segs[0].IsSegmentEnd)
	assert.False(t, segs[1].IsSegmentStart)
	assert.False(t, segs[1].IsSegmentEnd)
	assert.True(t, segs[2].IsSegmentEnd)

	covered := 0
	for _, s := range segs {
		covered += s.Span()
	}
	assert.Equal(t, 16, covered, "Jan 5 through Jan 20 inclusive with no gaps")
}

func TestLayoutMonth_WholeMonthAndBeyond(t *testing.T) {
	ev := event(t, "season", time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))

	segs := LayoutMonth([]model.CalendarEvent{ev}, january().Cells)

	require.Len(t, segs, 5)
	assert.False(t, segs[0].IsSegmentStart, "clipped start is a continuation")
	assert.False(t, segs[4].IsSegmentEnd, "clipped end is a continuation")
	for _, s := range segs[:4] {
		assert.Equal(t, 7, s.Span())
	}
	assert.Equal(t, 3, segs[4].Span(), "Jan 29-31")
}

func TestLayoutMonth_OutsideMonth(t *testing.T) {
	before := event(t, "dec", time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 12, 31, 10, 0, 0, 0, time.UTC))
	after := event(t, "feb", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC))

	assert.Empty(t, LayoutMonth([]model.CalendarEvent{before, after}, january().Cells))
	assert.Empty(t, LayoutMonth([]model.CalendarEvent{before}, nil))
}

func TestLayoutMonth_UsesGridTimeZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	g := BuildMonthGrid(2024, time.January, time.Monday, tokyo)
	// 20:00 UTC on Jan 9 is already Jan 10 in Tokyo.
	ev := event(t, "tz", time.Date(2024, 1, 9, 20, 0, 0, 0, time.UTC), time.Date(2024, 1, 9, 22, 0, 0, 0, time.UTC))

	segs := LayoutMonth([]model.CalendarEvent{ev}, g.Cells)

	require.Len(t, segs, 1)
	assert.Equal(t, 2, segs[0].StartCol)
}

func TestLayoutMonth_NoCollisionsAndDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var events []model.CalendarEvent
	for i := 0; i < 40; i++ {
		start := jan(1 + rng.Intn(31))
		end := start.Add(time.Duration(1+rng.Intn(14*24)) * time.Hour)
		events = append(events, event(t, "e", start, end))
	}
	cells := january().Cells

	segs := LayoutMonth(events, cells)
	assert.Equal(t, segs, LayoutMonth(events, cells))

	for i, a := range segs {
		for _, b := range segs[i+1:] {
			if a.WeekIndex != b.WeekIndex || a.RowIndex != b.RowIndex {
				continue
			}
			overlap := a.StartCol <= b.EndCol && a.EndCol >= b.StartCol
			assert.False(t, overlap, "collision in week %d row %d", a.WeekIndex, a.RowIndex)
		}
	}
}
