package ics

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "propsync/internal/log"
	"propsync/internal/model"
)

// ValidationResult is the structured outcome of decoding a calendar source.
// IsValid is true iff Errors is empty; a valid calendar may carry warnings.
type ValidationResult struct {
	IsValid  bool                  `json:"is_valid"`
	Events   []model.CalendarEvent `json:"events"`
	Errors   []string              `json:"errors"`
	Warnings []string              `json:"warnings"`
	Version  string                `json:"version,omitempty"`
	ProdID   string                `json:"prod_id,omitempty"`
}

// ParseOptions tunes decoding.
type ParseOptions struct {
	// Location is used for floating date-times and DATE values. Nil means UTC.
	Location *time.Location

	// Source is stamped on every decoded event.
	Source model.EventSource

	// Now supplies CREATED when a VEVENT omits it. Nil means time.Now.
	Now func() time.Time
}

// Parse decodes and validates iCal text with default options.
func Parse(text string) ValidationResult {
	return ParseWithOptions(text, ParseOptions{})
}

// ParseWithOptions decodes iCal text. It never fails: malformed input is
// reported through the result's Errors and Warnings. Per-event problems do not
// stop the remaining events from being decoded.
//
// A document missing its BEGIN:VCALENDAR or END:VCALENDAR marker fails closed:
// the result is invalid and carries zero events.
func ParseWithOptions(text string, opts ParseOptions) ValidationResult {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	res := ValidationResult{
		Events:   []model.CalendarEvent{},
		Errors:   []string{},
		Warnings: []string{},
	}

	if strings.TrimSpace(text) == "" {
		res.Errors = append(res.Errors, "calendar source is empty")
		return finish(res)
	}

	hasBegin, hasEnd := scanMarkers(text)
	if !hasBegin {
		res.Errors = append(res.Errors, "missing BEGIN:VCALENDAR marker")
	}
	if !hasEnd {
		res.Errors = append(res.Errors, "missing END:VCALENDAR marker")
	}
	if !hasBegin || !hasEnd {
		return finish(res)
	}

	var (
		header []ical.CalendarProperty
		blocks []eventBlock
	)
	cal, err := ical.ParseCalendar(strings.NewReader(text))
	if err == nil {
		header = cal.CalendarProperties
		for i, ve := range cal.Events() {
			blocks = append(blocks, eventBlock{pos: i + 1, ev: ve})
		}
	} else {
		// One bad line fails the whole document in the decoder, so fall back
		// to decoding each VEVENT on its own.
		appLog.Debug("ics parse falling back to per-event decode", "error", err.Error())
		var herr error
		header, blocks, herr = splitCalendar(text)
		if herr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("malformed calendar header: %v", herr))
		}
		if herr == nil && !anyFailed(blocks) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("skipped malformed calendar content: %v", err))
		}
	}

	for _, p := range header {
		switch strings.ToUpper(p.IANAToken) {
		case string(ical.PropertyVersion):
			res.Version = strings.TrimSpace(p.Value)
		case string(ical.PropertyProductId):
			res.ProdID = strings.TrimSpace(p.Value)
		}
	}
	switch {
	case res.Version == "":
		res.Warnings = append(res.Warnings, "missing VERSION property")
	case res.Version != "2.0":
		res.Warnings = append(res.Warnings, fmt.Sprintf("unexpected VERSION %q, expected 2.0", res.Version))
	}
	if res.ProdID == "" {
		res.Warnings = append(res.Warnings, "missing PRODID property")
	}

	seen := make(map[string]int)
	for _, b := range blocks {
		pos := b.pos
		if b.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: malformed VEVENT: %v", eventLabel(pos, b.uid), b.err))
			continue
		}
		ev, warns, derr := decodeEvent(b.ev, pos, opts)
		res.Warnings = append(res.Warnings, warns...)
		if derr != "" {
			res.Errors = append(res.Errors, derr)
			continue
		}
		if first, dup := seen[ev.UID]; dup {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: duplicate UID, first seen in event #%d", eventLabel(pos, ev.UID), first))
			continue
		}
		seen[ev.UID] = pos
		res.Events = append(res.Events, ev)
	}

	return finish(res)
}

func finish(res ValidationResult) ValidationResult {
	res.IsValid = len(res.Errors) == 0
	appLog.Debug("ics parse completed",
		"valid", res.IsValid,
		"event_count", len(res.Events),
		"error_count", len(res.Errors),
		"warning_count", len(res.Warnings),
	)
	return res
}

// scanMarkers looks for the literal calendar delimiters on their own lines.
func scanMarkers(text string) (hasBegin, hasEnd bool) {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), len(text)+1)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.EqualFold(line, "BEGIN:VCALENDAR"):
			hasBegin = true
		case strings.EqualFold(line, "END:VCALENDAR"):
			hasEnd = true
		}
	}
	return hasBegin, hasEnd
}

// eventBlock is one VEVENT in document order. Either ev or err is set; uid
// is a best-effort hint taken from the raw lines when err is set.
type eventBlock struct {
	pos int
	ev  *ical.VEvent
	uid string
	err error
}

func anyFailed(blocks []eventBlock) bool {
	for _, b := range blocks {
		if b.err != nil {
			return true
		}
	}
	return false
}

// splitCalendar is the slow path for documents the decoder rejects as a
// whole. Top-level calendar properties are decoded together; every VEVENT is
// decoded separately inside a minimal VCALENDAR so a broken event costs only
// itself. Other components (VTIMEZONE, VTODO, ...) are skipped.
func splitCalendar(text string) ([]ical.CalendarProperty, []eventBlock, error) {
	var (
		header  []string
		current []string
		name    string
		depth   int
		blocks  []eventBlock
	)

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), len(text)+1)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		upper := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case upper == "BEGIN:VCALENDAR" || upper == "END:VCALENDAR":
			continue
		case strings.HasPrefix(upper, "BEGIN:"):
			if depth == 0 {
				name = strings.TrimPrefix(upper, "BEGIN:")
				current = current[:0]
			}
			depth++
		case strings.HasPrefix(upper, "END:") && depth > 0:
			depth--
			if depth == 0 {
				if name == "VEVENT" {
					current = append(current, line)
					blocks = append(blocks, decodeBlock(len(blocks)+1, current))
				}
				continue
			}
		}

		switch {
		case depth == 0:
			header = append(header, line)
		case name == "VEVENT":
			current = append(current, line)
		}
	}
	// An unterminated trailing VEVENT still counts as an event.
	if depth > 0 && name == "VEVENT" {
		blocks = append(blocks, eventBlock{
			pos: len(blocks) + 1,
			uid: rawUID(current),
			err: errors.New("missing END:VEVENT"),
		})
	}

	cal, err := ical.ParseCalendar(strings.NewReader(wrapCalendar(header)))
	if err != nil {
		return nil, blocks, err
	}
	return cal.CalendarProperties, blocks, nil
}

func decodeBlock(pos int, lines []string) eventBlock {
	b := eventBlock{pos: pos}
	body := append([]string{"VERSION:2.0", "PRODID:-//propsync//fallback//EN"}, lines...)
	cal, err := ical.ParseCalendar(strings.NewReader(wrapCalendar(body)))
	switch {
	case err != nil:
		b.err = err
	case len(cal.Events()) != 1:
		b.err = fmt.Errorf("expected one event, found %d", len(cal.Events()))
	default:
		b.ev = cal.Events()[0]
		return b
	}
	b.uid = rawUID(lines)
	return b
}

func wrapCalendar(lines []string) string {
	var sb strings.Builder
	sb.WriteString("BEGIN:VCALENDAR\r\n")
	for _, l := range lines {
		if l == "" {
			continue
		}
		sb.WriteString(l)
		sb.WriteString("\r\n")
	}
	sb.WriteString("END:VCALENDAR\r\n")
	return sb.String()
}

func rawUID(lines []string) string {
	for _, l := range lines {
		if len(l) > 4 && strings.EqualFold(l[:4], "UID:") {
			return strings.TrimSpace(l[4:])
		}
	}
	return ""
}

// decodeEvent converts one VEVENT. A non-empty errMsg means the event was
// rejected; warnings are returned either way.
func decodeEvent(ve *ical.VEvent, pos int, opts ParseOptions) (ev model.CalendarEvent, warnings []string, errMsg string) {
	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	label := eventLabel(pos, uid)
	if uid == "" {
		return ev, nil, label + ": missing UID"
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return ev, nil, label + ": missing DTSTART"
	}
	start, allDay, warn, err := parseDateProp(startProp, opts.Location)
	if warn != "" {
		warnings = append(warnings, label+": DTSTART "+warn)
	}
	if err != nil {
		return ev, warnings, fmt.Sprintf("%s: malformed DTSTART %q", label, startProp.Value)
	}

	var end time.Time
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, _, warn, err = parseDateProp(endProp, opts.Location)
		if warn != "" {
			warnings = append(warnings, label+": DTEND "+warn)
		}
		if err != nil {
			return ev, warnings, fmt.Sprintf("%s: malformed DTEND %q", label, endProp.Value)
		}
	} else if allDay {
		end = start.AddDate(0, 0, 1)
	} else {
		return ev, warnings, label + ": missing DTEND"
	}
	if !end.After(start) {
		return ev, warnings, label + ": DTEND must be after DTSTART"
	}

	status := model.StatusConfirmed
	if raw := propValue(ve, ical.ComponentPropertyStatus); raw != "" {
		s, ok := model.ParseStatus(raw)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: unknown STATUS %q, using TENTATIVE", label, raw))
			s = model.StatusTentative
		}
		status = s
	}

	created := opts.Now().UTC()
	if p := ve.GetProperty(ical.ComponentPropertyCreated); p != nil {
		if t, _, _, perr := parseDateProp(p, opts.Location); perr == nil {
			created = t
		} else {
			warnings = append(warnings, fmt.Sprintf("%s: ignoring malformed CREATED %q", label, p.Value))
		}
	}
	lastModified := created
	if p := ve.GetProperty(ical.ComponentPropertyLastModified); p != nil {
		t, _, _, perr := parseDateProp(p, opts.Location)
		switch {
		case perr != nil:
			warnings = append(warnings, fmt.Sprintf("%s: ignoring malformed LAST-MODIFIED %q", label, p.Value))
		case t.Before(created):
			warnings = append(warnings, label+": LAST-MODIFIED precedes CREATED, using CREATED")
		default:
			lastModified = t
		}
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyRrule) {
		warnings = append(warnings, label+": RRULE is not expanded, only the first occurrence is imported")
		if _, rerr := rrule.StrToRRule(p.Value); rerr != nil {
			warnings = append(warnings, fmt.Sprintf("%s: invalid RRULE %q: %v", label, p.Value, rerr))
		}
	}

	ev, err = model.NewCalendarEvent(model.EventParams{
		UID:          uid,
		Summary:      propValue(ve, ical.ComponentPropertySummary),
		Description:  propValue(ve, ical.ComponentPropertyDescription),
		Start:        start,
		End:          end,
		Status:       status,
		Created:      created,
		LastModified: lastModified,
		Source:       opts.Source,
	})
	if err != nil {
		return model.CalendarEvent{}, warnings, fmt.Sprintf("%s: %v", label, err)
	}
	return ev, warnings, ""
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	p := ve.GetProperty(name)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Value)
}

// eventLabel names an event by position and, when known, a shortened UID.
func eventLabel(pos int, uid string) string {
	if uid == "" {
		return fmt.Sprintf("event #%d", pos)
	}
	const maxUID = 40
	if len(uid) > maxUID {
		uid = uid[:maxUID] + "..."
	}
	return fmt.Sprintf("event #%d (%s)", pos, uid)
}
