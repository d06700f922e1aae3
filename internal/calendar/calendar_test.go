package calendar

import (
	"errors"
	"testing"
	"time"

	"calmgr/internal/model"
)

func day(d int) model.Date { return model.MustDate(2025, time.June, d) }

func clock(h, m int) model.Clock { return model.MustClock(h, m) }

func event(t *testing.T, subject string, d model.Date, start, end model.Clock) model.Event {
	t.Helper()
	e, err := model.NewEventBuilder().
		Subject(subject).
		StartDate(d).StartTime(start).
		EndDate(d).EndTime(end).
		Build()
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	return e
}

func weekly(t *testing.T, subject string, from, until model.Date, codes string) model.EventSeries {
	t.Helper()
	s, err := model.NewSeriesBuilder().
		Subject(subject).
		StartDate(from).StartTime(clock(10, 0)).
		EndDate(from).EndTime(clock(11, 0)).
		WeekdayCodes(codes).
		Until(until).
		BuildSeries()
	if err != nil {
		t.Fatalf("build series: %v", err)
	}
	return s
}

func TestAddEvent_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	e := event(t, "Dentist", day(3), clock(9, 0), clock(10, 0))
	if err := cal.AddEvent(e); err != nil {
		t.Fatalf("add: %v", err)
	}

	same, err := e.Edit().Description("bring card").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := cal.AddEvent(same); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if got := len(cal.Events()); got != 1 {
		t.Fatalf("event count mismatch: %d", got)
	}
}

func TestAddEvent_CollidesWithSeriesOccurrence(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	s := weekly(t, "Planning", day(2), day(30), "M")
	if err := cal.AddEventSeries(s); err != nil {
		t.Fatalf("add series: %v", err)
	}
	occ := s.Occurrences()[1]
	if err := cal.AddEvent(occ); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := cal.AddEventSeries(s); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected duplicate series error, got %v", err)
	}
}

func TestAddEventSeries_RejectsEmpty(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	empty := weekly(t, "Never", day(10), day(1), "M")
	if err := cal.AddEventSeries(empty); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	kept := event(t, "Kept", day(3), clock(9, 0), clock(10, 0))
	if err := cal.AddEvent(kept); err != nil {
		t.Fatalf("add: %v", err)
	}
	cal.RemoveEvent(event(t, "Ghost", day(3), clock(9, 0), clock(10, 0)))
	cal.RemoveEventSeries(weekly(t, "Ghost", day(2), day(9), "M"))
	if len(cal.Events()) != 1 {
		t.Fatalf("absent removal changed the calendar")
	}

	cal.RemoveEvent(kept)
	if len(cal.Events()) != 0 {
		t.Fatalf("event not removed")
	}
}

func TestReplaceEvent(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	a := event(t, "A", day(3), clock(9, 0), clock(10, 0))
	b := event(t, "B", day(3), clock(11, 0), clock(12, 0))
	for _, e := range []model.Event{a, b} {
		if err := cal.AddEvent(e); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	moved := event(t, "A", day(4), clock(9, 0), clock(10, 0))
	if err := cal.ReplaceEvent(a, moved); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := cal.Events()[0]; !got.Equal(moved) {
		t.Fatalf("replacement not in place: %s", got)
	}
	if err := cal.ReplaceEvent(a, moved); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := cal.ReplaceEvent(moved, b); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestSeriesForAndReplaceSeries(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	s := weekly(t, "Planning", day(2), day(30), "M")
	if err := cal.AddEventSeries(s); err != nil {
		t.Fatalf("add series: %v", err)
	}

	got, ok := cal.SeriesFor(s.Occurrences()[3])
	if !ok || !got.Equal(s) {
		t.Fatalf("SeriesFor mismatch: %v", ok)
	}
	if _, ok := cal.SeriesFor(event(t, "Other", day(2), clock(10, 0), clock(11, 0))); ok {
		t.Fatalf("SeriesFor matched a foreign event")
	}

	renamed, err := s.Edit().Subject("Planning v2").BuildSeries()
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := cal.ReplaceSeries(s, renamed); err != nil {
		t.Fatalf("replace series: %v", err)
	}
	if err := cal.ReplaceSeries(s, renamed); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if cal.Series()[0].Base().Subject() != "Planning v2" {
		t.Fatalf("series not replaced")
	}
}

func TestScheduleInRange(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	for d := 10; d >= 1; d-- {
		if err := cal.AddEvent(event(t, "Daily", day(d), clock(9, 0), clock(10, 0))); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := cal.AddEvent(event(t, "Second", day(5), clock(7, 0), clock(8, 0))); err != nil {
		t.Fatalf("add: %v", err)
	}

	got := cal.ScheduleInRange(day(5), day(5))
	if len(got) != 2 {
		t.Fatalf("range size mismatch: got %d, want 2", len(got))
	}
	for _, e := range got {
		if e.StartDate() != day(5) {
			t.Fatalf("event outside range: %s", e)
		}
	}
	// Same-day ties keep insertion order.
	if got[0].Subject() != "Daily" || got[1].Subject() != "Second" {
		t.Fatalf("tie order mismatch: %s, %s", got[0], got[1])
	}

	all := cal.ScheduleInRange(day(1), day(10))
	for i := 1; i < len(all); i++ {
		if all[i].StartDate().Before(all[i-1].StartDate()) {
			t.Fatalf("range not sorted at %d", i)
		}
	}
}

func TestScheduleInRange_IncludesOccurrences(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	if err := cal.AddEventSeries(weekly(t, "Planning", day(2), day(30), "M")); err != nil {
		t.Fatalf("add series: %v", err)
	}
	if err := cal.AddEvent(event(t, "Solo", day(20), clock(9, 0), clock(10, 0))); err != nil {
		t.Fatalf("add: %v", err)
	}

	got := cal.ScheduleInRange(day(9), day(23))
	want := []model.Date{day(9), day(16), day(20), day(23)}
	if len(got) != len(want) {
		t.Fatalf("range size mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].StartDate() != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, got[i].StartDate(), want[i])
		}
	}
	if len(cal.Events()) != 1 || len(cal.AllEvents()) != 6 {
		t.Fatalf("Events/AllEvents mismatch: %d/%d", len(cal.Events()), len(cal.AllEvents()))
	}
}

func TestCopyEventsAndShift_Offset(t *testing.T) {
	t.Parallel()

	src := New(time.UTC)
	dst := New(time.UTC)
	for _, e := range []model.Event{
		event(t, "Kickoff", day(1), clock(9, 0), clock(10, 0)),
		event(t, "Review", day(2), clock(14, 0), clock(15, 0)),
		event(t, "Outside", day(3), clock(9, 0), clock(10, 0)),
	} {
		if err := src.AddEvent(e); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	n, err := dst.CopyEventsAndShift(day(1), day(2), src, day(10))
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if n != 2 {
		t.Fatalf("copied count mismatch: %d", n)
	}
	got := dst.ScheduleInRange(day(1), day(30))
	if got[0].StartDate() != day(10) || got[0].StartTime() != clock(9, 0) {
		t.Fatalf("first copy mismatch: %s", got[0])
	}
	if got[1].StartDate() != day(11) {
		t.Fatalf("second copy mismatch: %s", got[1])
	}
	if len(src.Events()) != 3 {
		t.Fatalf("source modified")
	}
}

func TestCopyEvents_AllOrNothing(t *testing.T) {
	t.Parallel()

	src := New(time.UTC)
	dst := New(time.UTC)
	a := event(t, "A", day(1), clock(9, 0), clock(10, 0))
	b := event(t, "B", day(1), clock(11, 0), clock(12, 0))
	for _, e := range []model.Event{a, b} {
		if err := src.AddEvent(e); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := dst.AddEvent(b); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := dst.CopyEvents(day(1), day(1), src); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if len(dst.Events()) != 1 {
		t.Fatalf("partial copy committed: %d events", len(dst.Events()))
	}
}

func TestCopyEvent_PreservesDuration(t *testing.T) {
	t.Parallel()

	src := New(time.UTC)
	dst := New(time.UTC)
	orig, err := model.NewEventBuilder().Subject("Late").
		StartDate(day(3)).StartTime(clock(22, 0)).
		EndDate(day(4)).EndTime(clock(1, 30)).
		Location(model.LocationOnline).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := src.AddEvent(orig); err != nil {
		t.Fatalf("add: %v", err)
	}

	copied, err := dst.CopyEvent(src, "Late", day(3), clock(22, 0), day(8), clock(23, 0))
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if copied.EndDate() != day(9) || copied.EndTime() != clock(2, 30) {
		t.Fatalf("end mismatch: %sT%s", copied.EndDate(), copied.EndTime())
	}
	if copied.Location() != model.LocationOnline {
		t.Fatalf("location not preserved")
	}
	if _, err := dst.CopyEvent(src, "Missing", day(3), clock(22, 0), day(8), clock(23, 0)); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetTimeZone_DoesNotMutate(t *testing.T) {
	t.Parallel()

	ny, err := LoadZone("America/New_York")
	if err != nil {
		t.Skipf("zone unavailable: %v", err)
	}
	cal := New(ny)
	e := event(t, "Sync", day(2), clock(9, 0), clock(10, 0))
	if err := cal.AddEvent(e); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cal.AddEventSeries(weekly(t, "Planning", day(2), day(30), "M")); err != nil {
		t.Fatalf("add series: %v", err)
	}

	shifted, err := cal.SetTimeZone(time.UTC)
	if err != nil {
		t.Fatalf("set zone: %v", err)
	}
	if shifted.TimeZone() == cal.TimeZone() {
		t.Fatalf("zone not changed")
	}
	if cal.TimeZone() != ny || !cal.Events()[0].Equal(e) {
		t.Fatalf("original calendar mutated")
	}
	if got := shifted.Events()[0].StartTime(); got != clock(13, 0) {
		t.Fatalf("shifted start mismatch: %s", got)
	}
	if got := shifted.Series()[0].Occurrences()[0].StartTime(); got != clock(14, 0) {
		t.Fatalf("shifted series start mismatch: %s", got)
	}
}

func TestSetTimeZone_RejectsFallBackCollision(t *testing.T) {
	t.Parallel()

	ny, err := LoadZone("America/New_York")
	if err != nil {
		t.Skipf("zone unavailable: %v", err)
	}
	nov2 := model.MustDate(2025, time.November, 2)
	cal := New(time.UTC)
	early := event(t, "Standup", nov2, clock(5, 30), clock(5, 45))
	late := event(t, "Standup", nov2, clock(6, 30), clock(6, 45))
	for _, e := range []model.Event{early, late} {
		if err := cal.AddEvent(e); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	// Both land on 01:30 local: once in EDT and once in EST.
	if _, err := cal.SetTimeZone(ny); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if cal.TimeZone() != time.UTC || len(cal.Events()) != 2 || !cal.Events()[0].Equal(early) {
		t.Fatalf("original calendar mutated")
	}
}

func TestBusyAtAndFindEvent(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	e := event(t, "Focus", day(3), clock(9, 0), clock(11, 0))
	if err := cal.AddEvent(e); err != nil {
		t.Fatalf("add: %v", err)
	}

	tests := []struct {
		at   model.Clock
		busy bool
	}{
		{clock(8, 59), false},
		{clock(9, 0), true},
		{clock(10, 0), true},
		{clock(11, 0), true},
		{clock(11, 1), false},
	}
	for _, tt := range tests {
		if got := cal.BusyAt(day(3), tt.at); got != tt.busy {
			t.Fatalf("BusyAt(%s) = %v, want %v", tt.at, got, tt.busy)
		}
	}

	if _, ok := cal.FindEvent("Focus", day(3), clock(9, 0)); !ok {
		t.Fatalf("FindEvent missed event")
	}
	if _, ok := cal.FindEvent("Focus", day(3), clock(9, 30)); ok {
		t.Fatalf("FindEvent matched wrong start")
	}
}
