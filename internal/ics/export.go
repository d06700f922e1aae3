package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"calmgr/internal/calendar"
	"calmgr/internal/model"
)

const productID = "-//calmgr//EN"

// uidNamespace seeds name-based UIDs so re-exporting a calendar yields the
// same UIDs.
var uidNamespace = uuid.MustParse("6f1d3c2e-8a4b-4f5e-9c7d-2b1a0e9f8d7c")

// Export writes cal as a VCALENDAR. Singletons become one VEVENT each. A
// series whose occurrences still match its rule becomes one VEVENT with an
// RRULE; an edited series is written occurrence by occurrence.
func Export(w io.Writer, cal *calendar.Calendar) error {
	out := ical.NewCalendar()
	out.Props.SetText(ical.PropVersion, "2.0")
	out.Props.SetText(ical.PropProductID, productID)

	zone := cal.TimeZone()
	stamp := time.Now().UTC().Truncate(time.Second)

	for _, e := range cal.Events() {
		out.Children = append(out.Children, toVEvent(e, zone, stamp).Component)
	}
	for _, s := range cal.Series() {
		if s.Pristine() && s.Len() > 0 {
			out.Children = append(out.Children, seriesVEvent(s, zone, stamp).Component)
			continue
		}
		for _, occ := range s.Occurrences() {
			out.Children = append(out.Children, toVEvent(occ, zone, stamp).Component)
		}
	}

	if err := ical.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// EventUID derives a stable UID from the identifying fields of e.
func EventUID(e model.Event) string {
	return uuid.NewSHA1(uidNamespace, []byte(e.String())).String()
}

func toVEvent(e model.Event, zone *time.Location, stamp time.Time) *ical.Event {
	ve := ical.NewEvent()
	ve.Props.SetText(ical.PropUID, EventUID(e))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, model.At(e.StartDate(), e.StartTime(), zone))
	ve.Props.SetDateTime(ical.PropDateTimeEnd, model.At(e.EndDate(), e.EndTime(), zone))
	ve.Props.SetText(ical.PropSummary, e.Subject())

	if e.Description() != "" {
		ve.Props.SetText(ical.PropDescription, e.Description())
	}
	if e.Location() != model.LocationUnset {
		ve.Props.SetText(ical.PropLocation, e.Location().String())
	}
	switch e.Status() {
	case model.StatusPublic:
		ve.Props.SetText(ical.PropClass, "PUBLIC")
	case model.StatusPrivate:
		ve.Props.SetText(ical.PropClass, "PRIVATE")
	}
	return ve
}

func seriesVEvent(s model.EventSeries, zone *time.Location, stamp time.Time) *ical.Event {
	// The first occurrence anchors DTSTART so it is always an instance.
	first := s.Occurrences()[0]
	ve := toVEvent(first, zone, stamp)
	ve.Props.SetText(ical.PropUID, EventUID(s.Base()))

	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: s.Weekdays().RRuleDays(),
		Until:     model.At(s.EndDate(), first.StartTime(), zone).UTC(),
	}

	prop := ical.NewProp(ical.PropRecurrenceRule)
	prop.Value = opt.RRuleString()
	ve.Props.Set(prop)
	return ve
}
