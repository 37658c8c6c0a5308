package layout

import (
	"time"

	"propsync/internal/model"
)

// Segment is the part of one event drawn in one week row of the grid.
// Columns are 0-6 within the week and inclusive on both ends.
type Segment struct {
	Event          model.CalendarEvent `json:"event"`
	WeekIndex      int                 `json:"week_index"`
	StartCol       int                 `json:"start_col"`
	EndCol         int                 `json:"end_col"`
	IsSegmentStart bool                `json:"is_segment_start"`
	IsSegmentEnd   bool                `json:"is_segment_end"`
	RowIndex       int                 `json:"row_index"`
}

// Span is the number of day columns the segment covers.
func (s Segment) Span() int {
	return s.EndCol - s.StartCol + 1
}

// cellRange is an inclusive range of global cell indexes.
type cellRange struct {
	start, end int
}

func (r cellRange) overlaps(o cellRange) bool {
	return r.start <= o.end && r.end >= o.start
}

// LayoutMonth assigns every visible event a display row and splits it into
// one segment per week it touches.
//
// An event covers the cells from the day of its Start to the day of its End,
// both inclusive, in the grid's time zone. Events are placed in input order,
// each on the lowest row none of whose placed ranges share a cell with it; the
// row is chosen once for the event's whole visible range, so all of its
// weekly segments share it. Events partially outside the month are clipped
// and the clipped ends are reported as continuations. The result depends only
// on the arguments.
func LayoutMonth(events []model.CalendarEvent, cells []DayCell) []Segment {
	segments := []Segment{}

	first, last := -1, -1
	for i, c := range cells {
		if !c.Valid {
			continue
		}
		if first == -1 {
			first = i
		}
		last = i
	}
	if first == -1 {
		return segments
	}
	loc := cells[first].Date.Location()
	firstDay := cells[first].Date
	lastDay := cells[last].Date

	var rows [][]cellRange

	for _, ev := range events {
		startDay := dayOf(ev.Start, loc)
		endDay := dayOf(ev.End, loc)
		if endDay.Before(firstDay) || startDay.After(lastDay) {
			continue
		}

		clippedStart := startDay.Before(firstDay)
		clippedEnd := endDay.After(lastDay)
		r := cellRange{start: first, end: last}
		if !clippedStart {
			r.start = first + daysBetween(firstDay, startDay)
		}
		if !clippedEnd {
			r.end = first + daysBetween(firstDay, endDay)
		}

		row := 0
		for ; row < len(rows); row++ {
			if !rowTaken(rows[row], r) {
				break
			}
		}
		if row == len(rows) {
			rows = append(rows, nil)
		}
		rows[row] = append(rows[row], r)

		startWeek, endWeek := r.start/7, r.end/7
		for w := startWeek; w <= endWeek; w++ {
			segStart, segEnd := w*7, w*7+6
			if w == startWeek {
				segStart = r.start
			}
			if w == endWeek {
				segEnd = r.end
			}
			segments = append(segments, Segment{
				Event:          ev,
				WeekIndex:      w,
				StartCol:       segStart - w*7,
				EndCol:         segEnd - w*7,
				IsSegmentStart: w == startWeek && !clippedStart,
				IsSegmentEnd:   w == endWeek && !clippedEnd,
				RowIndex:       row,
			})
		}
	}

	return segments
}

// RowCount is the number of booking rows a renderer needs below each week.
func RowCount(segments []Segment) int {
	n := 0
	for _, s := range segments {
		if s.RowIndex+1 > n {
			n = s.RowIndex + 1
		}
	}
	return n
}

func rowTaken(placed []cellRange, r cellRange) bool {
	for _, p := range placed {
		if p.overlaps(r) {
			return true
		}
	}
	return false
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days from a to b, both midnights in the same
// location. Rounding absorbs DST shifts.
func daysBetween(a, b time.Time) int {
	return int((b.Sub(a) + 12*time.Hour) / (24 * time.Hour))
}
