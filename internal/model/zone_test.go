package model

import (
	"errors"
	"testing"
	"time"
)

func loadZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("zone %s unavailable: %v", name, err)
	}
	return loc
}

func TestEventShiftZone(t *testing.T) {
	t.Parallel()

	ny := loadZone(t, "America/New_York")
	tokyo := loadZone(t, "Asia/Tokyo")

	e := mustEvent(t, NewEventBuilder().Subject("Sync").
		StartDate(MustDate(2025, time.June, 2)).StartTime(MustClock(20, 0)).
		EndDate(MustDate(2025, time.June, 2)).EndTime(MustClock(21, 0)))

	got, err := e.ShiftZone(ny, tokyo)
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	// EDT is UTC-4, JST is UTC+9.
	if got.StartDate() != MustDate(2025, time.June, 3) || got.StartTime() != MustClock(9, 0) {
		t.Fatalf("start mismatch: %sT%s", got.StartDate(), got.StartTime())
	}
	if got.EndTime() != MustClock(10, 0) {
		t.Fatalf("end mismatch: %s", got.EndTime())
	}

	back, err := got.ShiftZone(tokyo, ny)
	if err != nil {
		t.Fatalf("shift back: %v", err)
	}
	if !back.Equal(e) {
		t.Fatalf("round trip mismatch: %s", back)
	}
}

func TestEventShiftZone_FollowsDST(t *testing.T) {
	t.Parallel()

	ny := loadZone(t, "America/New_York")
	b := NewEventBuilder().Subject("Call").StartTime(MustClock(9, 0)).EndTime(MustClock(10, 0))

	summer := mustEvent(t, b.StartDate(MustDate(2025, time.July, 1)).EndDate(MustDate(2025, time.July, 1)))
	winter := mustEvent(t, b.StartDate(MustDate(2025, time.January, 6)).EndDate(MustDate(2025, time.January, 6)))

	s, err := summer.ShiftZone(time.UTC, ny)
	if err != nil {
		t.Fatalf("summer: %v", err)
	}
	w, err := winter.ShiftZone(time.UTC, ny)
	if err != nil {
		t.Fatalf("winter: %v", err)
	}
	if s.StartTime() != MustClock(5, 0) || w.StartTime() != MustClock(4, 0) {
		t.Fatalf("DST offsets not applied: summer %s, winter %s", s.StartTime(), w.StartTime())
	}
}

func TestEventShiftZone_NilZone(t *testing.T) {
	t.Parallel()

	e := mustEvent(t, NewEventBuilder().Subject("x").
		StartDate(MustDate(2025, time.June, 2)).StartTime(MustClock(9, 0)))
	if _, err := e.ShiftZone(nil, time.UTC); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSeriesShiftZone_MovesWeekdays(t *testing.T) {
	t.Parallel()

	ny := loadZone(t, "America/New_York")
	tokyo := loadZone(t, "Asia/Tokyo")

	s, err := NewSeriesBuilder().Subject("Evening").
		StartDate(MustDate(2025, time.June, 2)).StartTime(MustClock(20, 0)).
		EndDate(MustDate(2025, time.June, 2)).EndTime(MustClock(21, 0)).
		WeekdayCodes("M").
		Until(MustDate(2025, time.June, 16)).
		BuildSeries()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := s.ShiftZone(ny, tokyo)
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	if got.Weekdays().String() != "T" {
		t.Fatalf("weekdays mismatch: %s", got.Weekdays())
	}
	if got.EndDate() != MustDate(2025, time.June, 17) {
		t.Fatalf("end date mismatch: %s", got.EndDate())
	}
	if got.Len() != 3 {
		t.Fatalf("length mismatch: %d", got.Len())
	}
	for _, occ := range got.Occurrences() {
		if occ.StartDate().Weekday() != time.Tuesday || occ.StartTime() != MustClock(9, 0) {
			t.Fatalf("occurrence not shifted: %s", occ)
		}
	}
	if !got.Pristine() {
		t.Fatalf("shifted pristine series should stay pristine")
	}
}

func TestSeriesShiftZone_RejectsSplitBase(t *testing.T) {
	t.Parallel()

	ny := loadZone(t, "America/New_York")
	tokyo := loadZone(t, "Asia/Tokyo")

	// 10:00-16:00 JST is 21:00-03:00 EDT, crossing midnight in New York.
	s, err := NewSeriesBuilder().Subject("Long").
		StartDate(MustDate(2025, time.June, 2)).StartTime(MustClock(10, 0)).
		EndDate(MustDate(2025, time.June, 2)).EndTime(MustClock(16, 0)).
		WeekdayCodes("M").
		Until(MustDate(2025, time.June, 9)).
		BuildSeries()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := s.ShiftZone(tokyo, ny); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSeriesShiftZone_KeepsOffsetAcrossDST(t *testing.T) {
	t.Parallel()

	ny := loadZone(t, "America/New_York")
	london := loadZone(t, "Europe/London")

	// New York moves to EDT on Mar 8, London to BST on Mar 29.
	s, err := NewSeriesBuilder().Subject("Call").
		StartDate(MustDate(2026, time.March, 2)).StartTime(MustClock(19, 30)).
		EndDate(MustDate(2026, time.March, 2)).EndTime(MustClock(20, 30)).
		WeekdayCodes("M").
		Until(MustDate(2026, time.April, 6)).
		BuildSeries()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := s.ShiftZone(ny, london)
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	if got.Weekdays().String() != "T" || got.EndDate() != MustDate(2026, time.April, 7) {
		t.Fatalf("rule mismatch: %s until %s", got.Weekdays(), got.EndDate())
	}
	if got.Len() != s.Len() {
		t.Fatalf("length mismatch: %d", got.Len())
	}
	for _, occ := range got.Occurrences() {
		if occ.StartDate() != occ.EndDate() || occ.StartDate().Weekday() != time.Tuesday {
			t.Fatalf("occurrence left the rule: %s", occ)
		}
		if occ.StartTime() != MustClock(0, 30) || occ.EndTime() != MustClock(1, 30) {
			t.Fatalf("occurrence time mismatch: %s", occ)
		}
	}
	if !got.Pristine() {
		t.Fatalf("shifted pristine series should stay pristine")
	}
}
