package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "calmgr/internal/log"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion operates on this type.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	Class       string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT overrides one recurring instance
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - Times carrying a TZID are read in that zone, UTC times stay UTC and
//     floating times and dates are read in floating.
//   - All-day events are detected from the DTSTART value format.
//   - RRULE/EXDATE/RECURRENCE-ID are recorded but not expanded; see
//     Expand.
//
// A VEVENT that cannot be read is logged and skipped.
func ParseICS(src Source, body []byte, floating *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if floating == nil {
		floating = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp, floating)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "url", redactURL(src.URL), "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, floating *time.Location) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	// Events without a UID still import; they just cannot be overridden.
	if uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId); uidProp != nil && uidProp.Value != "" {
		out.UID = uidProp.Value
	} else {
		out.UID = uuid.NewString()
	}

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = unescapeText(p.Value)
	}
	if p := ve.GetProperty("CLASS"); p != nil {
		out.Class = strings.ToUpper(strings.TrimSpace(p.Value))
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := propTime(dtStart, floating)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = allDay

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, _, err := propTime(dtEnd, floating)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end
	}
	if out.End.IsZero() || out.End.Before(out.Start) {
		if allDay {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = out.Start
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := paramZone(p, floating)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, _, err := propTime(ridProp, floating); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// propTime reads a DATE or DATE-TIME property, honoring its TZID.
func propTime(p *ical.IANAProperty, floating *time.Location) (time.Time, bool, error) {
	t, dateOnly, err := parseICSTime(p.Value, paramZone(p, floating))
	if err != nil {
		return time.Time{}, false, err
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		dateOnly = true
	}
	return t, dateOnly, nil
}

func paramZone(p *ical.IANAProperty, floating *time.Location) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if loc, err := time.LoadLocation(strings.Trim(tzs[0], `"`)); err == nil {
			return loc
		}
	}
	return floating
}

// parseICSTime parses a basic ICS date or date-time. The bool result is true
// for date-only values.
func parseICSTime(v string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		t, err := time.ParseInLocation("20060102T150405", v, loc)
		return t, false, err
	}

	// Date-only (all-day), e.g., 20250101
	t, err := time.ParseInLocation("20060102", v, loc)
	return t, true, err
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
