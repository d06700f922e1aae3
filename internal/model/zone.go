package model

import (
	"time"
)

// ShiftZone re-expresses e, whose wall-clock times are read in from, as
// wall-clock times in to. The instants are preserved; dates roll over when
// the offset crosses midnight. Offsets come from the zone database, so the
// result follows DST rules for the event's own date.
func (e Event) ShiftZone(from, to *time.Location) (Event, error) {
	if from == nil || to == nil {
		return Event{}, Validationf("time zone must not be nil")
	}
	start := At(e.startDate, e.startTime, from).In(to)
	end := At(e.endDate, e.endTime, from).In(to)

	return e.Edit().
		StartDate(DateOf(start)).
		StartTime(ClockOf(start)).
		EndDate(DateOf(end)).
		EndTime(ClockOf(end)).
		Build()
}

// ShiftZone moves the whole series from one zone to another. The base
// event is shifted through the zone database and its offset is then applied
// to every occurrence, so the series keeps one wall-clock time on every date
// even across DST changes. The weekday set and end date follow the base's
// day offset. Each shifted occurrence must stay within a single day and move
// by the same number of days as the base.
func (s EventSeries) ShiftZone(from, to *time.Location) (EventSeries, error) {
	base, err := s.base.ShiftZone(from, to)
	if err != nil {
		return EventSeries{}, err
	}
	if base.startDate != base.endDate {
		return EventSeries{}, Validationf("series %q no longer fits within one day in %s", base.subject, to)
	}

	step := s.base.startDate.DaysUntil(base.startDate)
	offset := At(base.startDate, base.startTime, time.UTC).Sub(At(s.base.startDate, s.base.startTime, time.UTC))
	occurrences := make([]Event, 0, len(s.occurrences))
	for _, occ := range s.occurrences {
		shifted := occ.shiftBy(offset)
		if shifted.startDate != shifted.endDate || occ.startDate.DaysUntil(shifted.startDate) != step {
			return EventSeries{}, Validationf("occurrence %s no longer fits the series in %s", occ, to)
		}
		occurrences = append(occurrences, shifted)
	}

	return EventSeries{
		base:        base,
		weekdays:    s.weekdays.Shift(step),
		endDate:     s.endDate.AddDays(step),
		occurrences: occurrences,
	}, nil
}

// shiftBy moves the wall-clock start and end of e by d.
func (e Event) shiftBy(d time.Duration) Event {
	start := At(e.startDate, e.startTime, time.UTC).Add(d)
	end := At(e.endDate, e.endTime, time.UTC).Add(d)
	e.startDate, e.startTime = DateOf(start), ClockOf(start)
	e.endDate, e.endTime = DateOf(end), ClockOf(end)
	return e
}
