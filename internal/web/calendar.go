package web

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"propsync/internal/conflict"
	"propsync/internal/ics"
	"propsync/internal/layout"
	"propsync/internal/model"
)

// maxICSBody bounds POST /api/validate bodies.
const maxICSBody = 5 << 20

type conflictDTO struct {
	A string `json:"a"`
	B string `json:"b"`
}

type calendarResponse struct {
	Year            int                   `json:"year"`
	Month           int                   `json:"month"`
	WeekStart       string                `json:"week_start"`
	DisplayTimeZone string                `json:"display_timezone"`
	Weeks           int                   `json:"weeks"`
	Rows            int                   `json:"rows"`
	Cells           []layout.DayCell      `json:"cells"`
	Segments        []layout.Segment      `json:"segments"`
	Conflicts       []conflictDTO         `json:"conflicts"`
	Conflicting     []model.CalendarEvent `json:"conflicting"`
}

// handleCalendar lays out bookings and imported feed events on one month.
//
// GET /api/calendar?year=2024&month=1
//   - year, month: default to the current month in the display time zone.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now().In(s.loc)
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month()))
	if month < 1 || month > 12 || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "invalid year or month")
		return
	}

	events, err := s.bookings.Events(ctx, s.cfg.UIDDomain)
	if err != nil {
		writeFailure(w, "load bookings", err)
		return
	}
	imported, err := s.feeds.AllEvents(ctx)
	if err != nil {
		writeFailure(w, "load feed events", err)
		return
	}
	events = append(events, imported...)

	grid := layout.BuildMonthGrid(year, time.Month(month), s.weekStart(), s.loc)
	from, to := grid.Range()
	// Cancelled bookings are neither drawn nor flagged as conflicts.
	visible := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.Status == model.StatusCancelled {
			continue
		}
		if ev.Start.Before(to) && ev.End.After(from) {
			visible = append(visible, ev)
		}
	}

	segments := layout.LayoutMonth(visible, grid.Cells)
	pairs := conflict.FindConflicts(visible)
	dtos := make([]conflictDTO, 0, len(pairs))
	for _, p := range pairs {
		dtos = append(dtos, conflictDTO{A: p.A.UID, B: p.B.UID})
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Year:            year,
		Month:           month,
		WeekStart:       s.cfg.WeekStart,
		DisplayTimeZone: s.loc.String(),
		Weeks:           grid.Weeks(),
		Rows:            layout.RowCount(segments),
		Cells:           grid.Cells,
		Segments:        segments,
		Conflicts:       dtos,
		Conflicting:     conflict.Participants(visible),
	})
}

// handleExport serves all bookings as an iCalendar document.
// GET /api/export.ics?name=...
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events, err := s.bookings.Events(r.Context(), s.cfg.UIDDomain)
	if err != nil {
		writeFailure(w, "export", err)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = s.cfg.CalendarName
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "bookings.ics"))
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.WriteString(w, ics.Generate(events, name))
}

// handleValidate decodes an uploaded iCal document and reports its problems
// without storing anything.
// POST /api/validate
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxICSBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "calendar too large")
		return
	}
	res := ics.ParseWithOptions(string(body), ics.ParseOptions{
		Location: s.loc,
		Now:      s.now,
	})
	writeJSON(w, http.StatusOK, res)
}
