package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingType is the kind of cleaning service booked.
type BookingType string

const (
	BookingResidential BookingType = "residential"
	BookingCommercial  BookingType = "commercial"
	BookingDeep        BookingType = "deep"
)

// BookingStatus is the workflow state of a booking. It is coarser than the
// iCalendar Status and mapped onto it by Booking.Event.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
)

// Booking is the record persisted under bookings/<id>.json.
type Booking struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Type     BookingType   `json:"type"`
	Status   BookingStatus `json:"status"`
	Customer string        `json:"customer"`
	Address  string        `json:"address"`
	Phone    string        `json:"phone,omitempty"`
	Email    string        `json:"email,omitempty"`
	Notes    string        `json:"notes,omitempty"`
	Created  time.Time     `json:"created"`
	Updated  time.Time     `json:"updated"`
}

// Normalize fills defaults for a booking about to be created: id, type,
// status, title and timestamps.
func (b *Booking) Normalize(now time.Time) {
	now = now.UTC()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Type == "" {
		b.Type = BookingResidential
	}
	if b.Status == "" {
		b.Status = BookingPending
	}
	if b.Title == "" {
		t := string(b.Type)
		b.Title = fmt.Sprintf("%s Cleaning - %s", strings.ToUpper(t[:1])+t[1:], b.Customer)
	}
	if b.Created.IsZero() {
		b.Created = now
	}
	if b.Updated.IsZero() || b.Updated.Before(b.Created) {
		b.Updated = b.Created
	}
}

// Validate checks required fields and the date range.
func (b Booking) Validate() error {
	if b.ID == "" || strings.ContainsAny(b.ID, "/\\") {
		return inputErr("id", "must be a non-empty path-safe identifier")
	}
	if strings.TrimSpace(b.Customer) == "" {
		return inputErr("customer", "customer name is required")
	}
	if b.Start.IsZero() || b.End.IsZero() {
		return inputErr("range", "start and end are required")
	}
	if !b.End.After(b.Start) {
		return inputErr("range", "end must be after start")
	}
	switch b.Type {
	case BookingResidential, BookingCommercial, BookingDeep:
	default:
		return inputErr("type", "unknown booking type %q", b.Type)
	}
	switch b.Status {
	case BookingPending, BookingConfirmed, BookingCompleted:
	default:
		return inputErr("status", "unknown booking status %q", b.Status)
	}
	return nil
}

// CalendarStatus maps the booking workflow state onto an iCalendar status.
func (b Booking) CalendarStatus() Status {
	if b.Status == BookingPending {
		return StatusTentative
	}
	return StatusConfirmed
}

// Event converts the booking to the calendar event exported in feeds and
// laid out on the month grid. The UID is stable: <id>@<uidDomain>.
func (b Booking) Event(uidDomain string) (CalendarEvent, error) {
	var desc []string
	if b.Customer != "" {
		desc = append(desc, "Customer: "+oneLine(b.Customer))
	}
	if b.Address != "" {
		desc = append(desc, "Address: "+oneLine(b.Address))
	}
	if b.Notes != "" {
		desc = append(desc, "Notes: "+oneLine(b.Notes))
	}
	return NewCalendarEvent(EventParams{
		UID:          b.ID + "@" + uidDomain,
		Summary:      oneLine(b.Title),
		Description:  strings.Join(desc, " / "),
		Start:        b.Start,
		End:          b.End,
		Status:       b.CalendarStatus(),
		Created:      b.Created,
		LastModified: b.Updated,
		Source:       BookingSource(b.ID),
	})
}

// Exported iCal text is written unescaped, so a raw line break would start a
// new content line.
var lineFolder = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func oneLine(s string) string {
	return lineFolder.Replace(s)
}
