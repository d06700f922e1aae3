package calendar

import (
	"slices"
	"strings"
	"time"

	"calmgr/internal/model"
)

// Calendar holds the singleton events and event series of one time zone.
// No two events anywhere in a calendar are equal; every insertion checks
// this. A Calendar is not safe for concurrent use; Manager serializes access
// for callers that share one.
type Calendar struct {
	zone   *time.Location
	events []model.Event
	series []model.EventSeries
}

// New returns an empty calendar in zone. A nil zone means UTC.
func New(zone *time.Location) *Calendar {
	if zone == nil {
		zone = time.UTC
	}
	return &Calendar{zone: zone}
}

// LoadZone resolves an IANA zone name.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Validationf("time zone must not be empty")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, model.Wrap(err, model.CodeValidation, "unknown time zone "+name)
	}
	return loc, nil
}

func (c *Calendar) TimeZone() *time.Location { return c.zone }

// Events returns the singleton events in insertion order. Series
// occurrences are not included; see AllEvents.
func (c *Calendar) Events() []model.Event {
	return slices.Clone(c.events)
}

// Series returns the tracked series in insertion order.
func (c *Calendar) Series() []model.EventSeries {
	return slices.Clone(c.series)
}

// AllEvents returns singletons followed by every series occurrence.
func (c *Calendar) AllEvents() []model.Event {
	out := slices.Clone(c.events)
	for _, s := range c.series {
		out = append(out, s.Occurrences()...)
	}
	return out
}

// collides reports whether e equals any tracked event. skipEvent and
// skipSeries exclude one singleton and one series by index (-1 for none).
func (c *Calendar) collides(e model.Event, skipEvent, skipSeries int) bool {
	for i, existing := range c.events {
		if i != skipEvent && existing.Equal(e) {
			return true
		}
	}
	for i, s := range c.series {
		if i != skipSeries && s.Contains(e) {
			return true
		}
	}
	return false
}

// admit checks that candidates are pairwise distinct and do not collide
// with tracked content outside the excluded indices.
func (c *Calendar) admit(candidates []model.Event, skipEvent, skipSeries int) error {
	for i, e := range candidates {
		if c.collides(e, skipEvent, skipSeries) {
			return model.Duplicatef("event %s already exists", e)
		}
		for _, prev := range candidates[:i] {
			if prev.Equal(e) {
				return model.Duplicatef("event %s appears more than once", e)
			}
		}
	}
	return nil
}

func (c *Calendar) indexOfEvent(e model.Event) int {
	return slices.IndexFunc(c.events, e.Equal)
}

func (c *Calendar) indexOfSeries(s model.EventSeries) int {
	return slices.IndexFunc(c.series, s.Equal)
}

func (c *Calendar) indexOfSeriesFor(e model.Event) int {
	return slices.IndexFunc(c.series, func(s model.EventSeries) bool { return s.Contains(e) })
}

// AddEvent inserts e as a singleton.
func (c *Calendar) AddEvent(e model.Event) error {
	if err := c.admit([]model.Event{e}, -1, -1); err != nil {
		return err
	}
	c.events = append(c.events, e)
	return nil
}

// RemoveEvent removes the first singleton equal to e. Removing an absent
// event does nothing.
func (c *Calendar) RemoveEvent(e model.Event) {
	if i := c.indexOfEvent(e); i >= 0 {
		c.events = slices.Delete(c.events, i, i+1)
	}
}

// AddEventSeries inserts s as a unit. A series with no occurrences is
// rejected.
func (c *Calendar) AddEventSeries(s model.EventSeries) error {
	if s.Len() == 0 {
		return model.Validationf("event series %q has no occurrences", s.Base().Subject())
	}
	if err := c.admit(s.Occurrences(), -1, -1); err != nil {
		return err
	}
	c.series = append(c.series, s)
	return nil
}

// RemoveEventSeries removes the first tracked series equal to s. Removing an
// absent series does nothing.
func (c *Calendar) RemoveEventSeries(s model.EventSeries) {
	if i := c.indexOfSeries(s); i >= 0 {
		c.series = slices.Delete(c.series, i, i+1)
	}
}

// ReplaceEvent substitutes newEvent for the singleton equal to oldEvent.
func (c *Calendar) ReplaceEvent(oldEvent, newEvent model.Event) error {
	i := c.indexOfEvent(oldEvent)
	if i < 0 {
		return model.NotFoundf("event %s not found", oldEvent)
	}
	if err := c.admit([]model.Event{newEvent}, i, -1); err != nil {
		return err
	}
	c.events[i] = newEvent
	return nil
}

// SeriesFor returns the series that has e as an occurrence.
func (c *Calendar) SeriesFor(e model.Event) (model.EventSeries, bool) {
	i := c.indexOfSeriesFor(e)
	if i < 0 {
		return model.EventSeries{}, false
	}
	return c.series[i], true
}

// ReplaceSeries substitutes newSeries for the tracked series equal to
// oldSeries.
func (c *Calendar) ReplaceSeries(oldSeries, newSeries model.EventSeries) error {
	j := c.indexOfSeries(oldSeries)
	if j < 0 {
		return model.NotFoundf("event series %q not found", oldSeries.Base().Subject())
	}
	if newSeries.Len() == 0 {
		return model.Validationf("event series %q has no occurrences", newSeries.Base().Subject())
	}
	if err := c.admit(newSeries.Occurrences(), -1, j); err != nil {
		return err
	}
	c.series[j] = newSeries
	return nil
}

// ScheduleInRange returns every event starting within [start, end],
// ordered by start date. Events on the same date keep insertion order,
// singletons before series occurrences.
func (c *Calendar) ScheduleInRange(start, end model.Date) []model.Event {
	var out []model.Event
	within := func(e model.Event) bool {
		d := e.StartDate()
		return !d.Before(start) && !d.After(end)
	}
	for _, e := range c.events {
		if within(e) {
			out = append(out, e)
		}
	}
	for _, s := range c.series {
		for _, e := range s.Occurrences() {
			if within(e) {
				out = append(out, e)
			}
		}
	}
	slices.SortStableFunc(out, func(a, b model.Event) int {
		return a.StartDate().Compare(b.StartDate())
	})
	return out
}

// FindEvent returns the first event with the given subject starting at
// date and clock.
func (c *Calendar) FindEvent(subject string, date model.Date, clock model.Clock) (model.Event, bool) {
	for _, e := range c.ScheduleInRange(date, date) {
		if e.Subject() == subject && e.StartTime() == clock {
			return e, true
		}
	}
	return model.Event{}, false
}

// BusyAt reports whether any event's span, ends included, covers the
// wall-clock instant date+clock.
func (c *Calendar) BusyAt(date model.Date, clock model.Clock) bool {
	at := model.At(date, clock, time.UTC)
	for _, e := range c.AllEvents() {
		start := model.At(e.StartDate(), e.StartTime(), time.UTC)
		end := model.At(e.EndDate(), e.EndTime(), time.UTC)
		if !at.Before(start) && !at.After(end) {
			return true
		}
	}
	return false
}

// SetTimeZone returns a new calendar with every event and series moved to
// zone. The receiver is never modified, so a failed shift leaves it intact.
// A shift that makes two events equal fails with a duplicate error.
func (c *Calendar) SetTimeZone(zone *time.Location) (*Calendar, error) {
	if zone == nil {
		return nil, model.Validationf("time zone must not be nil")
	}
	shifted := &Calendar{
		zone:   zone,
		events: make([]model.Event, 0, len(c.events)),
		series: make([]model.EventSeries, 0, len(c.series)),
	}
	for _, e := range c.events {
		moved, err := e.ShiftZone(c.zone, zone)
		if err != nil {
			return nil, err
		}
		shifted.events = append(shifted.events, moved)
	}
	for _, s := range c.series {
		moved, err := s.ShiftZone(c.zone, zone)
		if err != nil {
			return nil, err
		}
		shifted.series = append(shifted.series, moved)
	}

	// Distinct events can meet on one wall-clock time at a DST fall-back.
	all := slices.Clone(shifted.events)
	for _, s := range shifted.series {
		all = append(all, s.Occurrences()...)
	}
	if err := (&Calendar{}).admit(all, -1, -1); err != nil {
		return nil, err
	}
	return shifted, nil
}

// CopyEvents copies the events of src starting within [start, end] into c
// on their original dates.
func (c *Calendar) CopyEvents(start, end model.Date, src *Calendar) (int, error) {
	return c.CopyEventsAndShift(start, end, src, start)
}

// CopyEventsAndShift copies the events of src starting within [start, end]
// into c as singletons, moving each by the number of days from start to
// newStart. Either every copy is inserted or none is. It returns the number
// of events copied.
func (c *Calendar) CopyEventsAndShift(start, end model.Date, src *Calendar, newStart model.Date) (int, error) {
	offset := start.DaysUntil(newStart)
	selected := src.ScheduleInRange(start, end)

	clones := make([]model.Event, 0, len(selected))
	for _, e := range selected {
		clones = append(clones, e.ShiftDays(offset))
	}
	if err := c.admit(clones, -1, -1); err != nil {
		return 0, err
	}
	c.events = append(c.events, clones...)
	return len(clones), nil
}

// CopyEvent copies the event of src with the given subject starting at
// date+clock so that it starts at newDate+newClock in c. The duration and
// optional fields are preserved.
func (c *Calendar) CopyEvent(src *Calendar, subject string, date model.Date, clock model.Clock, newDate model.Date, newClock model.Clock) (model.Event, error) {
	orig, ok := src.FindEvent(subject, date, clock)
	if !ok {
		return model.Event{}, model.NotFoundf("no event %q starting at %sT%s", subject, date, clock)
	}
	end := model.At(newDate, newClock, time.UTC).Add(time.Duration(orig.DurationMinutes()) * time.Minute)
	copied, err := orig.Edit().
		StartDate(newDate).
		StartTime(newClock).
		EndDate(model.DateOf(end)).
		EndTime(model.ClockOf(end)).
		Build()
	if err != nil {
		return model.Event{}, err
	}
	if err := c.AddEvent(copied); err != nil {
		return model.Event{}, err
	}
	return copied, nil
}
