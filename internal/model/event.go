package model

import (
	"fmt"
	"strings"
)

// Default span applied when an event is built without an end.
var (
	DefaultStart = Clock{Hour: 8}
	DefaultEnd   = Clock{Hour: 17}
)

// Location says where an event takes place.
type Location int

const (
	LocationUnset Location = iota
	LocationPhysical
	LocationOnline
)

// ParseLocation accepts "physical" or "online" (case-insensitive); the empty
// string maps to LocationUnset.
func ParseLocation(s string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return LocationUnset, nil
	case "physical":
		return LocationPhysical, nil
	case "online":
		return LocationOnline, nil
	default:
		return LocationUnset, Validationf("unknown location %q", s)
	}
}

func (l Location) String() string {
	switch l {
	case LocationPhysical:
		return "physical"
	case LocationOnline:
		return "online"
	default:
		return ""
	}
}

// Status is the visibility of an event.
type Status int

const (
	StatusUnset Status = iota
	StatusPublic
	StatusPrivate
)

// ParseStatus accepts "public" or "private" (case-insensitive); the empty
// string maps to StatusUnset.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return StatusUnset, nil
	case "public":
		return StatusPublic, nil
	case "private":
		return StatusPrivate, nil
	default:
		return StatusUnset, Validationf("unknown status %q", s)
	}
}

func (s Status) String() string {
	switch s {
	case StatusPublic:
		return "public"
	case StatusPrivate:
		return "private"
	default:
		return ""
	}
}

// Event is a single immutable calendar occurrence. Construct one with
// NewEventBuilder or derive a modified copy with Edit.
type Event struct {
	subject     string
	startDate   Date
	startTime   Clock
	endDate     Date
	endTime     Clock
	location    Location
	status      Status
	description string
}

func (e Event) Subject() string { return e.subject }
func (e Event) StartDate() Date { return e.startDate }
func (e Event) StartTime() Clock { return e.startTime }
func (e Event) EndDate() Date { return e.endDate }
func (e Event) EndTime() Clock { return e.endTime }
func (e Event) Location() Location { return e.location }
func (e Event) Status() Status { return e.status }
func (e Event) Description() string { return e.description }

// IsZero reports whether e is the zero Event (never returned by Build).
func (e Event) IsZero() bool { return e.subject == "" }

// DurationMinutes is the span from start to end.
func (e Event) DurationMinutes() int {
	return e.startDate.DaysUntil(e.endDate)*24*60 + e.endTime.Minutes() - e.startTime.Minutes()
}

func (e Event) String() string {
	return fmt.Sprintf("%q %sT%s-%sT%s", e.subject, e.startDate, e.startTime, e.endDate, e.endTime)
}

// Equal compares subject, start and end only. Location, status and
// description do not participate: two events in the same slot with the same
// subject are the same event.
func (e Event) Equal(other Event) bool {
	return e.subject == other.subject &&
		e.startDate == other.startDate &&
		e.startTime == other.startTime &&
		e.endDate == other.endDate &&
		e.endTime == other.endTime
}

// IsAllDay reports whether the event covers the default 08:00-17:00 span of
// a single day.
func (e Event) IsAllDay() bool {
	return e.startDate == e.endDate && e.startTime.Hour <= DefaultStart.Hour && e.endTime.Hour >= DefaultEnd.Hour
}

// ShiftDays returns a copy moved by n days with times unchanged.
func (e Event) ShiftDays(n int) Event {
	e.startDate = e.startDate.AddDays(n)
	e.endDate = e.endDate.AddDays(n)
	return e
}

// Edit seeds a builder from e for copy-and-modify workflows.
func (e Event) Edit() EventBuilder {
	return EventBuilder{
		subject:      e.subject,
		startDate:    e.startDate,
		startTime:    e.startTime,
		endDate:      e.endDate,
		endTime:      e.endTime,
		location:     e.location,
		status:       e.status,
		description:  e.description,
		hasStartDate: true,
		hasStartTime: true,
		hasEndDate:   true,
		hasEndTime:   true,
	}
}

// EventBuilder accumulates Event fields. Every setter returns a new builder
// value; previously returned builders are never modified.
type EventBuilder struct {
	subject     string
	startDate   Date
	startTime   Clock
	endDate     Date
	endTime     Clock
	location    Location
	status      Status
	description string

	hasStartDate bool
	hasStartTime bool
	hasEndDate   bool
	hasEndTime   bool
}

// NewEventBuilder returns an empty builder.
func NewEventBuilder() EventBuilder {
	return EventBuilder{}
}

func (b EventBuilder) Subject(s string) EventBuilder {
	b.subject = s
	return b
}

func (b EventBuilder) StartDate(d Date) EventBuilder {
	b.startDate, b.hasStartDate = d, true
	return b
}

func (b EventBuilder) StartTime(c Clock) EventBuilder {
	b.startTime, b.hasStartTime = c, true
	return b
}

func (b EventBuilder) EndDate(d Date) EventBuilder {
	b.endDate, b.hasEndDate = d, true
	return b
}

func (b EventBuilder) EndTime(c Clock) EventBuilder {
	b.endTime, b.hasEndTime = c, true
	return b
}

func (b EventBuilder) Location(l Location) EventBuilder {
	b.location = l
	return b
}

func (b EventBuilder) Status(s Status) EventBuilder {
	b.status = s
	return b
}

func (b EventBuilder) Description(s string) EventBuilder {
	b.description = s
	return b
}

// Build validates the accumulated fields and returns the Event.
//
// Subject, start date and start time are required. When either end field is
// missing both default to the start date at 17:00. On a single day the start
// must not be after the end; a multi-day event must not end before it starts.
func (b EventBuilder) Build() (Event, error) {
	if strings.TrimSpace(b.subject) == "" || !b.hasStartDate || !b.hasStartTime {
		return Event{}, Validationf("the subject, start date and start time of an event must all be set")
	}

	if !b.hasEndDate || !b.hasEndTime {
		return b.EndDate(b.startDate).EndTime(DefaultEnd).Build()
	}

	switch b.startDate.Compare(b.endDate) {
	case 0:
		if b.startTime.After(b.endTime) {
			return Event{}, Validationf("start time %s is after end time %s on %s", b.startTime, b.endTime, b.startDate)
		}
	case 1:
		return Event{}, Validationf("end date %s is before start date %s", b.endDate, b.startDate)
	}

	return Event{
		subject:     b.subject,
		startDate:   b.startDate,
		startTime:   b.startTime,
		endDate:     b.endDate,
		endTime:     b.endTime,
		location:    b.location,
		status:      b.status,
		description: b.description,
	}, nil
}
