package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the iCalendar VEVENT status of an event.
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusTentative Status = "TENTATIVE"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus accepts any casing of the three known values.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusConfirmed:
		return StatusConfirmed, true
	case StatusTentative:
		return StatusTentative, true
	case StatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// Valid reports whether s is one of the three canonical (upper-case) values.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusTentative, StatusCancelled:
		return true
	}
	return false
}

// SourceKind discriminates where a CalendarEvent came from.
type SourceKind string

const (
	SourceBooking SourceKind = "booking"
	SourceFeed    SourceKind = "feed"
)

// EventSource records the owner of an event. BookingID is set only for
// SourceBooking; FeedID and Platform only for SourceFeed.
type EventSource struct {
	Kind      SourceKind `json:"kind"`
	BookingID string     `json:"booking_id,omitempty"`
	FeedID    string     `json:"feed_id,omitempty"`
	Platform  string     `json:"platform,omitempty"`
}

func BookingSource(bookingID string) EventSource {
	return EventSource{Kind: SourceBooking, BookingID: bookingID}
}

func FeedSource(feedID, platform string) EventSource {
	return EventSource{Kind: SourceFeed, FeedID: feedID, Platform: platform}
}

func (s EventSource) validate() error {
	switch s.Kind {
	case "":
		if s.BookingID != "" || s.FeedID != "" || s.Platform != "" {
			return inputErr("source", "kind is required when source fields are set")
		}
	case SourceBooking:
		if s.BookingID == "" {
			return inputErr("source", "booking source needs a booking id")
		}
		if s.FeedID != "" || s.Platform != "" {
			return inputErr("source", "booking source cannot carry feed fields")
		}
	case SourceFeed:
		if s.FeedID == "" {
			return inputErr("source", "feed source needs a feed id")
		}
		if s.BookingID != "" {
			return inputErr("source", "feed source cannot carry a booking id")
		}
	default:
		return inputErr("source", "unknown kind %q", s.Kind)
	}
	return nil
}

// CalendarEvent is a date-ranged calendar entry. Values are immutable by
// convention: a change produces a new version through Revise.
type CalendarEvent struct {
	UID          string      `json:"uid"`
	Summary      string      `json:"summary"`
	Description  string      `json:"description,omitempty"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	Status       Status      `json:"status"`
	Created      time.Time   `json:"created"`
	LastModified time.Time   `json:"last_modified"`
	Source       EventSource `json:"source"`
}

// EventParams are the inputs to NewCalendarEvent. A zero Created defaults to
// now; a zero LastModified defaults to Created; an empty Status defaults to
// CONFIRMED.
type EventParams struct {
	UID          string
	Summary      string
	Description  string
	Start        time.Time
	End          time.Time
	Status       Status
	Created      time.Time
	LastModified time.Time
	Source       EventSource
}

// NewCalendarEvent builds a validated event.
func NewCalendarEvent(p EventParams) (CalendarEvent, error) {
	if p.Created.IsZero() {
		p.Created = time.Now().UTC()
	}
	if p.LastModified.IsZero() {
		p.LastModified = p.Created
	}
	if p.Status == "" {
		p.Status = StatusConfirmed
	}
	ev := CalendarEvent(p)
	if err := ev.Validate(); err != nil {
		return CalendarEvent{}, err
	}
	return ev, nil
}

// Validate checks the invariants every CalendarEvent must hold.
func (e CalendarEvent) Validate() error {
	if strings.TrimSpace(e.UID) == "" {
		return inputErr("uid", "must not be empty")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return inputErr("range", "start and end are required")
	}
	if !e.End.After(e.Start) {
		return inputErr("range", "end %s must be after start %s",
			e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	if !e.Status.Valid() {
		return inputErr("status", "unknown status %q", e.Status)
	}
	if e.LastModified.Before(e.Created) {
		return inputErr("last_modified", "must not precede created")
	}
	return e.Source.validate()
}

// Revise returns a new version of e with mutate applied and LastModified
// bumped to now (never earlier than Created). e itself is left untouched.
func (e CalendarEvent) Revise(now time.Time, mutate func(*CalendarEvent)) (CalendarEvent, error) {
	next := e
	if mutate != nil {
		mutate(&next)
	}
	next.UID = e.UID
	next.Created = e.Created
	next.LastModified = now.UTC()
	if next.LastModified.Before(next.Created) {
		next.LastModified = next.Created
	}
	if err := next.Validate(); err != nil {
		return CalendarEvent{}, err
	}
	return next, nil
}

// Duration is End - Start.
func (e CalendarEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// UnmarshalJSON validates at the ingestion boundary so an invalid event
// never circulates as a typed value.
func (e *CalendarEvent) UnmarshalJSON(data []byte) error {
	type raw CalendarEvent
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	ev, err := NewCalendarEvent(EventParams(r))
	if err != nil {
		return err
	}
	*e = ev
	return nil
}
