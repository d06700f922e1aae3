package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"calmgr/internal/calendar"
	"calmgr/internal/model"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

var sampleFeed = crlf(
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//test//EN",
	"BEGIN:VEVENT",
	"UID:weekly-1",
	"DTSTAMP:20250101T000000Z",
	"SUMMARY:Standup",
	"DTSTART;TZID=America/New_York:20250602T090000",
	"DTEND;TZID=America/New_York:20250602T091500",
	"RRULE:FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20250618T130000Z",
	"EXDATE;TZID=America/New_York:20250604T090000",
	"LOCATION:https://meet.example.com/abc",
	"CLASS:PRIVATE",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly-1",
	"DTSTAMP:20250101T000000Z",
	"RECURRENCE-ID;TZID=America/New_York:20250609T090000",
	"SUMMARY:Standup (moved)",
	"DTSTART;TZID=America/New_York:20250609T100000",
	"DTEND;TZID=America/New_York:20250609T101500",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:single-1",
	"DTSTAMP:20250101T000000Z",
	"SUMMARY:Dentist",
	"DTSTART:20250605T140000Z",
	"DTEND:20250605T150000Z",
	"LOCATION:Main St",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:allday-1",
	"DTSTAMP:20250101T000000Z",
	"SUMMARY:Holiday",
	"DTSTART;VALUE=DATE:20250704",
	"DTEND;VALUE=DATE:20250705",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:daily-1",
	"DTSTAMP:20250101T000000Z",
	"SUMMARY:Pills",
	"DTSTART:20250601T080000Z",
	"DTEND:20250601T081000Z",
	"RRULE:FREQ=DAILY;COUNT=3",
	"END:VEVENT",
	"END:VCALENDAR",
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zone unavailable: %v", err)
	}
	return loc
}

func expandSample(t *testing.T, zone *time.Location) ExpandResult {
	t.Helper()
	parsed, err := ParseICS(Source{ID: "test"}, sampleFeed, zone)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 5 {
		t.Fatalf("parsed count mismatch: %d", len(parsed))
	}
	res, err := Expand(parsed, ExpandConfig{
		Zone:       zone,
		RangeStart: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	return res
}

func TestExpand_WeeklyRuleBecomesSeries(t *testing.T) {
	t.Parallel()

	res := expandSample(t, newYork(t))
	if len(res.Series) != 1 {
		t.Fatalf("series count mismatch: %d", len(res.Series))
	}
	s := res.Series[0]
	if s.Weekdays().String() != "MW" || s.EndDate() != model.MustDate(2025, time.June, 18) {
		t.Fatalf("rule mismatch: %s until %s", s.Weekdays(), s.EndDate())
	}

	occ := s.Occurrences()
	// Jun 2, 9, 11, 16, 18; Jun 4 is excluded.
	if len(occ) != 5 {
		t.Fatalf("occurrence count mismatch: %d", len(occ))
	}
	if occ[0].Location() != model.LocationOnline || occ[0].Status() != model.StatusPrivate {
		t.Fatalf("optional fields mismatch: %v %v", occ[0].Location(), occ[0].Status())
	}
	if occ[1].Subject() != "Standup (moved)" || occ[1].StartTime() != model.MustClock(10, 0) {
		t.Fatalf("override not applied: %s", occ[1])
	}
	if occ[2].StartDate() != model.MustDate(2025, time.June, 11) {
		t.Fatalf("third occurrence mismatch: %s", occ[2])
	}
}

func TestExpand_SinglesAndOtherRules(t *testing.T) {
	t.Parallel()

	res := expandSample(t, newYork(t))
	if len(res.Events) != 5 {
		t.Fatalf("event count mismatch: %d", len(res.Events))
	}

	bySubject := map[string][]model.Event{}
	for _, e := range res.Events {
		bySubject[e.Subject()] = append(bySubject[e.Subject()], e)
	}

	dentist := bySubject["Dentist"][0]
	if dentist.StartTime() != model.MustClock(10, 0) || dentist.Location() != model.LocationPhysical {
		t.Fatalf("dentist mismatch: %s %v", dentist, dentist.Location())
	}

	holiday := bySubject["Holiday"][0]
	if !holiday.IsAllDay() || holiday.StartDate() != model.MustDate(2025, time.July, 4) || holiday.EndDate() != holiday.StartDate() {
		t.Fatalf("all-day mismatch: %s", holiday)
	}

	pills := bySubject["Pills"]
	if len(pills) != 3 {
		t.Fatalf("daily expansion mismatch: %d", len(pills))
	}
	if pills[0].StartTime() != model.MustClock(4, 0) {
		t.Fatalf("daily start mismatch: %s", pills[0].StartTime())
	}
}

func TestImport_SkipsDuplicatesOnReimport(t *testing.T) {
	t.Parallel()

	zone := newYork(t)
	cal := calendar.New(zone)
	res := expandSample(t, zone)

	first, err := Import(cal, res)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if first.Added != 6 || first.Skipped != 0 {
		t.Fatalf("first import stats mismatch: %+v", first)
	}

	second, err := Import(cal, res)
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if second.Added != 0 || second.Skipped != 6 {
		t.Fatalf("second import stats mismatch: %+v", second)
	}
}

func TestParseICS_Errors(t *testing.T) {
	t.Parallel()

	if _, err := ParseICS(Source{}, nil, time.UTC); err == nil {
		t.Fatalf("expected error for empty body")
	}

	noStart := crlf(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:x",
		"SUMMARY:No start",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	events, err := ParseICS(Source{}, noStart, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("event without DTSTART was kept")
	}
}

func TestExport_RoundTrip(t *testing.T) {
	t.Parallel()

	zone := newYork(t)
	cal := calendar.New(zone)

	series, err := model.NewSeriesBuilder().Subject("Gym").
		StartDate(model.MustDate(2025, time.June, 2)).StartTime(model.MustClock(7, 0)).
		EndDate(model.MustDate(2025, time.June, 2)).EndTime(model.MustClock(8, 0)).
		WeekdayCodes("MWF").
		Until(model.MustDate(2025, time.June, 20)).
		BuildSeries()
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	edited, err := model.NewSeriesBuilder().Subject("Class").
		StartDate(model.MustDate(2025, time.June, 3)).StartTime(model.MustClock(18, 0)).
		EndDate(model.MustDate(2025, time.June, 3)).EndTime(model.MustClock(19, 0)).
		WeekdayCodes("T").
		Until(model.MustDate(2025, time.June, 24)).
		BuildSeries()
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	target := edited.Occurrences()[1]
	moved, err := target.Edit().StartTime(model.MustClock(18, 30)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	edited, err = model.NewSeriesEditor(edited).Replace(target, moved).Series()
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	single, err := model.NewEventBuilder().Subject("Dinner").
		StartDate(model.MustDate(2025, time.June, 6)).StartTime(model.MustClock(19, 0)).
		EndDate(model.MustDate(2025, time.June, 6)).EndTime(model.MustClock(21, 0)).
		Description("Room 4, floor 2").
		Status(model.StatusPublic).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if err := cal.AddEventSeries(series); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cal.AddEventSeries(edited); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cal.AddEvent(single); err != nil {
		t.Fatalf("add: %v", err)
	}

	var buf bytes.Buffer
	if err := Export(&buf, cal); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "RRULE:") != 1 || !strings.Contains(out, "FREQ=WEEKLY") {
		t.Fatalf("expected one weekly RRULE:\n%s", out)
	}
	// 1 RRULE event + 4 edited occurrences + 1 singleton
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 6 {
		t.Fatalf("VEVENT count mismatch: %d", got)
	}

	back := calendar.New(zone)
	stats, err := ImportBytes(back, Source{ID: "roundtrip"}, buf.Bytes())
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if stats.Skipped != 0 || stats.Invalid != 0 {
		t.Fatalf("reimport stats mismatch: %+v", stats)
	}

	from, to := model.MustDate(2025, time.June, 1), model.MustDate(2025, time.June, 30)
	want := cal.ScheduleInRange(from, to)
	got := back.ScheduleInRange(from, to)
	if len(got) != len(want) {
		t.Fatalf("round trip size mismatch: got %d, want %d", len(got), len(want))
	}
	for _, e := range want {
		if _, ok := back.FindEvent(e.Subject(), e.StartDate(), e.StartTime()); !ok {
			t.Fatalf("event lost in round trip: %s", e)
		}
	}
	if len(back.Series()) != 1 || back.Series()[0].Weekdays().String() != "MWF" {
		t.Fatalf("series not restored: %d", len(back.Series()))
	}
	dinner, _ := back.FindEvent("Dinner", single.StartDate(), single.StartTime())
	if dinner.Description() != "Room 4, floor 2" || dinner.Status() != model.StatusPublic {
		t.Fatalf("optional fields lost: %q %v", dinner.Description(), dinner.Status())
	}
}

func TestEventUIDStable(t *testing.T) {
	t.Parallel()

	e, err := model.NewEventBuilder().Subject("x").
		StartDate(model.MustDate(2025, time.June, 2)).StartTime(model.MustClock(9, 0)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if EventUID(e) != EventUID(e) {
		t.Fatalf("uid not stable")
	}
	other, _ := e.Edit().Subject("y").Build()
	if EventUID(e) == EventUID(other) {
		t.Fatalf("uid collision")
	}
}
