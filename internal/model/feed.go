package model

import "time"

// FeedStatus is the health of an external calendar feed.
type FeedStatus string

const (
	FeedActive  FeedStatus = "active"
	FeedError   FeedStatus = "error"
	FeedSyncing FeedStatus = "syncing"
)

// Known feed platforms. Any other string is accepted and shown verbatim.
const (
	PlatformAirbnb     = "Airbnb"
	PlatformVRBO       = "VRBO"
	PlatformBookingCom = "Booking.com"
	PlatformGoogle     = "Google Calendar"
	PlatformCustom     = "Custom"
)

// CalendarFeed is an imported iCal subscription. Status error implies a
// non-empty Errors list; status active implies the last decode succeeded.
type CalendarFeed struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	Platform   string     `json:"platform"`
	Status     FeedStatus `json:"status"`
	LastSync   time.Time  `json:"last_sync"`
	EventCount int        `json:"event_count"`
	Errors     []string   `json:"errors"`
	Warnings   []string   `json:"warnings,omitempty"`
	Version    string     `json:"ical_version,omitempty"`
	ProdID     string     `json:"prod_id,omitempty"`

	// Events holds the events from the last successful decode.
	Events []CalendarEvent `json:"events,omitempty"`
}

// Validate checks the status/errors invariant.
func (f CalendarFeed) Validate() error {
	if f.ID == "" {
		return inputErr("id", "must not be empty")
	}
	if f.URL == "" {
		return inputErr("url", "must not be empty")
	}
	switch f.Status {
	case FeedActive, FeedSyncing:
	case FeedError:
		if len(f.Errors) == 0 {
			return inputErr("errors", "feed in error state must carry at least one error")
		}
	default:
		return inputErr("status", "unknown feed status %q", f.Status)
	}
	return nil
}
