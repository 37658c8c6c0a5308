// Package layout places date-ranged events on a month grid so that
// overlapping multi-day bookings render without colliding.
package layout

import (
	"strings"
	"time"
)

// DayCell is one square of the month grid. Blank padding cells have
// Valid=false and a zero Date.
type DayCell struct {
	Date  time.Time `json:"date"`
	Day   int       `json:"day"`
	Valid bool      `json:"valid"`
}

// MonthGrid is the ordered cells for one month, padded with blanks on both
// sides so len(Cells) is a multiple of 7 and each run of 7 is one week.
type MonthGrid struct {
	Year      int            `json:"year"`
	Month     time.Month     `json:"month"`
	WeekStart time.Weekday   `json:"week_start"`
	Location  *time.Location `json:"-"`
	Cells     []DayCell      `json:"cells"`
}

// ParseWeekStart maps "sunday" to time.Sunday and anything else to Monday.
func ParseWeekStart(s string) time.Weekday {
	if strings.EqualFold(strings.TrimSpace(s), "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// BuildMonthGrid lays out month in loc starting each row on weekStart.
func BuildMonthGrid(year int, month time.Month, weekStart time.Weekday, loc *time.Location) MonthGrid {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	lead := (int(first.Weekday()) - int(weekStart) + 7) % 7
	total := (lead + daysInMonth + 6) / 7 * 7

	cells := make([]DayCell, total)
	for i := range cells {
		n := i - lead + 1
		if n < 1 || n > daysInMonth {
			continue
		}
		cells[i] = DayCell{
			Date:  time.Date(year, month, n, 0, 0, 0, 0, loc),
			Day:   n,
			Valid: true,
		}
	}

	return MonthGrid{
		Year:      year,
		Month:     month,
		WeekStart: weekStart,
		Location:  loc,
		Cells:     cells,
	}
}

// Weeks is the number of grid rows.
func (g MonthGrid) Weeks() int {
	return len(g.Cells) / 7
}

// Range returns the first instant of the month and the first instant after it.
func (g MonthGrid) Range() (time.Time, time.Time) {
	first := time.Date(g.Year, g.Month, 1, 0, 0, 0, 0, g.Location)
	return first, first.AddDate(0, 1, 0)
}
