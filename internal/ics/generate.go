// Package ics encodes calendar events to RFC 5545 text and decodes/validates
// iCal feeds into CalendarEvents.
package ics

import (
	"strings"
	"time"

	"propsync/internal/model"
)

// ProdID identifies this producer in exported calendars.
const ProdID = "-//PropertySync//PropertySync Calendar//EN"

const dateTimeUTC = "20060102T150405Z"

// Generate produces a calendar document for events. Every content line,
// including the last, is terminated with CRLF. Lines are not folded and text
// values are not escaped.
func Generate(events []model.CalendarEvent, calendarName string) string {
	var b strings.Builder

	writeLine(&b, "BEGIN:VCALENDAR")
	writeProp(&b, "VERSION", "2.0")
	writeProp(&b, "PRODID", ProdID)
	writeProp(&b, "X-WR-CALNAME", calendarName)
	writeProp(&b, "METHOD", "PUBLISH")

	for _, e := range events {
		writeEvent(&b, e)
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

func writeEvent(b *strings.Builder, e model.CalendarEvent) {
	writeLine(b, "BEGIN:VEVENT")
	writeProp(b, "UID", e.UID)
	writeProp(b, "DTSTART", formatDateTime(e.Start))
	writeProp(b, "DTEND", formatDateTime(e.End))
	writeProp(b, "SUMMARY", e.Summary)
	writeProp(b, "DESCRIPTION", e.Description)
	writeProp(b, "STATUS", string(e.Status))
	writeProp(b, "CREATED", formatDateTime(e.Created))
	writeProp(b, "LAST-MODIFIED", formatDateTime(e.LastModified))
	writeLine(b, "END:VEVENT")
}

func writeProp(b *strings.Builder, name, value string) {
	writeLine(b, name+":"+value)
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format(dateTimeUTC)
}
