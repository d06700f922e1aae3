package calendar

import (
	"errors"
	"testing"
	"time"

	"calmgr/internal/model"
)

func subjectTo(s string) Change {
	return func(b model.EventBuilder) model.EventBuilder { return b.Subject(s) }
}

func seeded(t *testing.T) (*Calendar, model.EventSeries) {
	t.Helper()
	cal := New(time.UTC)
	s := weekly(t, "Planning", day(2), day(30), "M")
	if err := cal.AddEventSeries(s); err != nil {
		t.Fatalf("add series: %v", err)
	}
	return cal, s
}

func subjects(cal *Calendar) []string {
	var out []string
	for _, e := range cal.Series()[0].Occurrences() {
		out = append(out, e.Subject())
	}
	return out
}

func TestEdit_Scopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scope Scope
		want  []string
	}{
		{ScopeSingle, []string{"Planning", "Planning", "X", "Planning", "Planning"}},
		{ScopeFollowing, []string{"Planning", "Planning", "X", "X", "X"}},
		{ScopeAll, []string{"X", "X", "X", "X", "X"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.scope.String(), func(t *testing.T) {
			t.Parallel()
			cal, s := seeded(t)
			if err := cal.Edit(s.Occurrences()[2], tt.scope, subjectTo("X")); err != nil {
				t.Fatalf("edit: %v", err)
			}
			got := subjects(cal)
			if len(got) != len(tt.want) {
				t.Fatalf("length mismatch: got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("subjects mismatch: got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestEdit_Singleton(t *testing.T) {
	t.Parallel()

	cal := New(time.UTC)
	e := event(t, "Solo", day(3), clock(9, 0), clock(10, 0))
	if err := cal.AddEvent(e); err != nil {
		t.Fatalf("add: %v", err)
	}

	change, err := SetProperty("start", "2025-06-03T09:30")
	if err != nil {
		t.Fatalf("property: %v", err)
	}
	if err := cal.Edit(e, ScopeAll, change); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := cal.Events()[0].StartTime(); got != clock(9, 30) {
		t.Fatalf("start mismatch: %s", got)
	}
}

func TestEdit_FailuresLeaveCalendarUnchanged(t *testing.T) {
	t.Parallel()

	cal, s := seeded(t)
	target := s.Occurrences()[1]

	bad, err := SetProperty("end", "2025-06-09T09:00")
	if err != nil {
		t.Fatalf("property: %v", err)
	}
	if err := cal.Edit(target, ScopeFollowing, bad); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	blocker := event(t, "X", day(16), clock(10, 0), clock(11, 0))
	if err := cal.AddEvent(blocker); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cal.Edit(target, ScopeFollowing, subjectTo("X")); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if !cal.Series()[0].Equal(s) {
		t.Fatalf("failed edit modified the series")
	}

	ghost := event(t, "Ghost", day(9), clock(10, 0), clock(11, 0))
	if err := cal.Edit(ghost, ScopeSingle, subjectTo("Y")); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetProperty_Unknown(t *testing.T) {
	t.Parallel()

	if _, err := SetProperty("colour", "red"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := SetProperty("location", "moon"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
