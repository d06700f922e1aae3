package model

import (
	"time"

	"github.com/teambition/rrule-go"
)

// EventSeries is a weekly recurrence rule together with its expanded,
// date-ordered occurrences. Series values are immutable.
type EventSeries struct {
	base        Event
	weekdays    WeekdaySet
	endDate     Date
	occurrences []Event
}

func newEventSeries(base Event, weekdays WeekdaySet, endDate Date) EventSeries {
	return EventSeries{
		base:        base,
		weekdays:    weekdays,
		endDate:     endDate,
		occurrences: expand(base, weekdays, endDate),
	}
}

// expand emits one occurrence per date of the weekly rule from the base
// start date through endDate (inclusive). The base date itself is skipped
// when its weekday is not in the set.
func expand(base Event, weekdays WeekdaySet, endDate Date) []Event {
	if base.startDate.After(endDate) {
		return nil
	}
	dates := weeklyDates(base.startDate, weekdays, rrule.ROption{Until: endDate.Time(time.UTC)})
	out := make([]Event, 0, len(dates))
	for _, d := range dates {
		occ := base
		occ.startDate = d
		occ.endDate = d
		out = append(out, occ)
	}
	return out
}

// weeklyDates runs a WEEKLY rrule anchored at start over weekdays. opt
// carries the bound (Until or Count). An empty set yields no dates.
func weeklyDates(start Date, weekdays WeekdaySet, opt rrule.ROption) []Date {
	if weekdays.IsEmpty() {
		return nil
	}
	opt.Freq = rrule.WEEKLY
	opt.Dtstart = start.Time(time.UTC)
	opt.Byweekday = weekdays.RRuleDays()
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil
	}
	all := r.All()
	out := make([]Date, 0, len(all))
	for _, t := range all {
		out = append(out, DateOf(t))
	}
	return out
}

func (s EventSeries) Base() Event { return s.base }
func (s EventSeries) Weekdays() WeekdaySet { return s.weekdays }
func (s EventSeries) EndDate() Date { return s.endDate }
func (s EventSeries) Len() int { return len(s.occurrences) }

// Occurrences returns a copy of the occurrence list.
func (s EventSeries) Occurrences() []Event {
	out := make([]Event, len(s.occurrences))
	copy(out, s.occurrences)
	return out
}

// Contains reports whether an occurrence equal to e is part of the series.
func (s EventSeries) Contains(e Event) bool {
	return s.indexOf(e) >= 0
}

func (s EventSeries) indexOf(e Event) int {
	for i, occ := range s.occurrences {
		if occ.Equal(e) {
			return i
		}
	}
	return -1
}

// Equal compares the occurrence lists element by element.
func (s EventSeries) Equal(other EventSeries) bool {
	if len(s.occurrences) != len(other.occurrences) {
		return false
	}
	for i := range s.occurrences {
		if !s.occurrences[i].Equal(other.occurrences[i]) {
			return false
		}
	}
	return true
}

// Pristine reports whether the occurrences are exactly what the rule
// expands to, i.e. no partial edit has been installed.
func (s EventSeries) Pristine() bool {
	return s.Equal(EventSeries{occurrences: expand(s.base, s.weekdays, s.endDate)})
}

// Adopt returns a series with the same rule but the supplied occurrence
// list. It does not re-run expansion; SeriesEditor uses it to install
// partially edited sequences.
func (s EventSeries) Adopt(occurrences []Event) EventSeries {
	list := make([]Event, len(occurrences))
	copy(list, occurrences)
	s.occurrences = list
	return s
}

// Edit seeds a SeriesBuilder with the rule of s.
func (s EventSeries) Edit() SeriesBuilder {
	return SeriesBuilder{
		event:    s.base.Edit(),
		weekdays: s.weekdays,
		until:    s.endDate,
		endMode:  endUntil,
	}
}

type endMode int

const (
	endUnset endMode = iota
	endUntil
	endWeeks
	endTimes
)

// SeriesBuilder accumulates a series rule. Like EventBuilder it is a value:
// setters return modified copies.
type SeriesBuilder struct {
	event    EventBuilder
	weekdays WeekdaySet
	until    Date
	weeks    int
	times    int
	endMode  endMode
	err      error
}

// NewSeriesBuilder returns an empty builder.
func NewSeriesBuilder() SeriesBuilder {
	return SeriesBuilder{}
}

func (b SeriesBuilder) Subject(s string) SeriesBuilder {
	b.event = b.event.Subject(s)
	return b
}

func (b SeriesBuilder) StartDate(d Date) SeriesBuilder {
	b.event = b.event.StartDate(d)
	return b
}

func (b SeriesBuilder) StartTime(c Clock) SeriesBuilder {
	b.event = b.event.StartTime(c)
	return b
}

func (b SeriesBuilder) EndDate(d Date) SeriesBuilder {
	b.event = b.event.EndDate(d)
	return b
}

func (b SeriesBuilder) EndTime(c Clock) SeriesBuilder {
	b.event = b.event.EndTime(c)
	return b
}

func (b SeriesBuilder) Location(l Location) SeriesBuilder {
	b.event = b.event.Location(l)
	return b
}

func (b SeriesBuilder) Status(s Status) SeriesBuilder {
	b.event = b.event.Status(s)
	return b
}

func (b SeriesBuilder) Description(s string) SeriesBuilder {
	b.event = b.event.Description(s)
	return b
}

// From replaces the per-occurrence fields with those of e, keeping the
// weekday set and end rule.
func (b SeriesBuilder) From(e Event) SeriesBuilder {
	b.event = e.Edit()
	return b
}

func (b SeriesBuilder) Weekdays(s WeekdaySet) SeriesBuilder {
	b.weekdays = s
	return b
}

// WeekdayCodes parses codes such as "MWF". A parse failure is reported by
// BuildSeries.
func (b SeriesBuilder) WeekdayCodes(codes string) SeriesBuilder {
	s, err := ParseWeekdays(codes)
	if err != nil {
		b.err = err
		return b
	}
	b.weekdays = s
	return b
}

// Until sets the inclusive series end date.
func (b SeriesBuilder) Until(d Date) SeriesBuilder {
	b.until, b.endMode = d, endUntil
	return b
}

// ForWeeks ends the series n weeks after the base start date.
func (b SeriesBuilder) ForWeeks(n int) SeriesBuilder {
	b.weeks, b.endMode = n, endWeeks
	return b
}

// Times ends the series on the date of its n-th occurrence.
func (b SeriesBuilder) Times(n int) SeriesBuilder {
	b.times, b.endMode = n, endTimes
	return b
}

// BuildSeries validates the template event and expands the series.
//
// The template must start and end on the same day. An empty weekday set or
// an end date before the start yields a series with no occurrences rather
// than an error.
func (b SeriesBuilder) BuildSeries() (EventSeries, error) {
	if b.err != nil {
		return EventSeries{}, b.err
	}

	base, err := b.event.Build()
	if err != nil {
		return EventSeries{}, err
	}
	if base.startDate != base.endDate {
		return EventSeries{}, Validationf("cannot build a series from an event spanning %s to %s", base.startDate, base.endDate)
	}

	var end Date
	switch b.endMode {
	case endUntil:
		end = b.until
	case endWeeks:
		if b.weeks < 0 {
			return EventSeries{}, Validationf("series length must not be negative, got %d weeks", b.weeks)
		}
		end = base.startDate.AddDays(7 * b.weeks)
	case endTimes:
		if b.times <= 0 {
			return EventSeries{}, Validationf("repeat count must be positive, got %d", b.times)
		}
		if b.weekdays.IsEmpty() {
			return EventSeries{}, Validationf("repeat count needs at least one weekday")
		}
		end = nthMatch(base.startDate, b.weekdays, b.times)
	default:
		return EventSeries{}, Validationf("series end date must be set")
	}

	return newEventSeries(base, b.weekdays, end), nil
}

// nthMatch returns the date of the n-th day on or after from whose weekday
// is in set. set must be non-empty.
func nthMatch(from Date, set WeekdaySet, n int) Date {
	dates := weeklyDates(from, set, rrule.ROption{Count: n})
	if len(dates) == 0 {
		return from
	}
	return dates[len(dates)-1]
}
