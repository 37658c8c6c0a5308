package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

const (
	dateTimeFloating = "20060102T150405"
	dateOnly         = "20060102"
)

// parseDateProp parses a DTSTART/DTEND style property. It understands UTC
// date-times, floating date-times (interpreted in loc), TZID-qualified local
// times and VALUE=DATE dates. An unknown TZID is not fatal: the value is read
// in loc and a warning is returned.
func parseDateProp(p *ical.IANAProperty, loc *time.Location) (t time.Time, allDay bool, warn string, err error) {
	v := strings.TrimSpace(p.Value)
	if v == "" {
		return time.Time{}, false, "", errors.New("empty value")
	}

	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	if len(v) == len(dateOnly) && !strings.Contains(v, "T") {
		allDay = true
	}

	tzLoc := loc
	if tzs := p.ICalParameters["TZID"]; len(tzs) > 0 && tzs[0] != "" {
		l, lerr := time.LoadLocation(strings.Trim(tzs[0], `"`))
		if lerr != nil {
			warn = fmt.Sprintf("unknown TZID %q, using %s", tzs[0], loc)
		} else {
			tzLoc = l
		}
	}

	if allDay {
		t, err = time.ParseInLocation(dateOnly, v, tzLoc)
		return t, true, warn, err
	}
	if strings.HasSuffix(v, "Z") {
		t, err = time.Parse(dateTimeUTC, v)
		return t, false, warn, err
	}
	t, err = time.ParseInLocation(dateTimeFloating, v, tzLoc)
	return t, false, warn, err
}
