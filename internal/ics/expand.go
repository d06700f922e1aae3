package ics

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calmgr/internal/log"
	"calmgr/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
	defaultHorizon                = 365 * 24 * time.Hour
	untitled                      = "(no title)"
)

// ExpandConfig controls how parsed events become calendar content.
type ExpandConfig struct {
	// Zone is the calendar time zone; every time is converted to its wall
	// clock. If nil, UTC is used.
	Zone *time.Location

	// RangeStart / RangeEnd bound the expansion of recurrences that cannot
	// be represented as a weekly series. When zero, one year either side of
	// now is used.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps each non-weekly expansion. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult is the calendar content derived from a feed.
type ExpandResult struct {
	Events []model.Event
	Series []model.EventSeries
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
	// Invalid counts VEVENTs that produced no valid event.
	Invalid int
}

// Expand converts parsed VEVENTs into events and series:
//
//   - a VEVENT without RRULE becomes one event
//   - a single-day VEVENT with a plain weekly RRULE bounded by UNTIL or
//     COUNT becomes an EventSeries; EXDATEs and RECURRENCE-ID overrides are
//     applied to its occurrences
//   - any other RRULE is expanded within the configured range into events
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.Zone == nil {
		cfg.Zone = time.UTC
	}
	if cfg.RangeStart.IsZero() && cfg.RangeEnd.IsZero() {
		now := time.Now()
		cfg.RangeStart = now.Add(-defaultHorizon)
		cfg.RangeEnd = now.Add(defaultHorizon)
	}
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping feed order.
	var order []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, ok := baseByUID[ev.UID]; !ok {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range order {
		ov := overridesByUID[uid]
		for _, ev := range baseByUID[uid] {
			hitCap := expandEvent(ev, ov, cfg, &result)
			if hitCap {
				result.TruncatedEvents = append(result.TruncatedEvents, uid)
				appLog.Warn("expand: truncated occurrences for UID due to cap", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
			}
		}
	}

	// Overrides whose master is missing are kept as plain events.
	for uid, ov := range overridesByUID {
		if _, ok := baseByUID[uid]; ok {
			continue
		}
		for _, o := range ov {
			addEvent(o, o.Start, o.End, cfg.Zone, &result)
		}
	}

	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig, result *ExpandResult) bool {
	if ev.RawRRule == "" {
		start, end := ev.Start, ev.End
		if o, ok := findOverrideForStart(overrides, start); ok {
			ev, start, end = o, o.Start, o.End
		}
		addEvent(ev, start, end, cfg.Zone, result)
		return false
	}

	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		result.Invalid++
		return false
	}
	opt.Dtstart = ev.Start

	if series, ok := weeklySeries(ev, *opt, overrides, cfg.Zone); ok {
		result.Series = append(result.Series, series)
		return false
	}
	return expandRecurringEvent(ev, *opt, overrides, cfg, result)
}

// weeklySeries maps a plain weekly rule onto an EventSeries when the rule
// fits the series model exactly.
func weeklySeries(ev ParsedEvent, opt rrule.ROption, overrides []ParsedEvent, zone *time.Location) (model.EventSeries, bool) {
	if opt.Freq != rrule.WEEKLY || opt.Interval > 1 {
		return model.EventSeries{}, false
	}
	if opt.Count == 0 && opt.Until.IsZero() {
		return model.EventSeries{}, false
	}
	if len(opt.Bysetpos)+len(opt.Bymonth)+len(opt.Bymonthday)+len(opt.Byyearday)+
		len(opt.Byweekno)+len(opt.Byhour)+len(opt.Byminute)+len(opt.Bysecond) > 0 {
		return model.EventSeries{}, false
	}

	base, err := toEvent(ev, ev.Start, ev.End, zone)
	if err != nil || base.StartDate() != base.EndDate() {
		return model.EventSeries{}, false
	}

	var days model.WeekdaySet
	for _, wd := range opt.Byweekday {
		days = days.With(model.WeekdayOf(wd))
	}
	if days.IsEmpty() {
		days = days.With(ev.Start.In(zone).Weekday())
	}

	b := model.NewSeriesBuilder().From(base).Weekdays(days)
	if opt.Count > 0 {
		b = b.Times(opt.Count)
	} else {
		until := opt.Until.In(zone)
		end := model.DateOf(until)
		if model.ClockOf(until).Minutes() < base.StartTime().Minutes() {
			end = end.AddDays(-1)
		}
		b = b.Until(end)
	}
	series, err := b.BuildSeries()
	if err != nil || series.Len() == 0 {
		return model.EventSeries{}, false
	}

	if len(ev.ExDates) > 0 {
		excluded := make(map[model.Date]bool, len(ev.ExDates))
		for _, ex := range ev.ExDates {
			excluded[model.DateOf(ex.In(zone))] = true
		}
		kept := make([]model.Event, 0, series.Len())
		for _, occ := range series.Occurrences() {
			if !excluded[occ.StartDate()] {
				kept = append(kept, occ)
			}
		}
		series = series.Adopt(kept)
	}

	ed := model.NewSeriesEditor(series)
	for _, o := range overrides {
		rid := o.Recurrence.In(zone)
		target, ok := ed.Find(model.DateOf(rid))
		if !ok || target.StartTime() != model.ClockOf(rid) {
			continue
		}
		replacement, err := toEvent(o, o.Start, o.End, zone)
		if err != nil {
			continue
		}
		ed.Replace(target, replacement)
	}
	edited, err := ed.Series()
	if err != nil || edited.Len() == 0 {
		return model.EventSeries{}, false
	}
	return edited, true
}

func expandRecurringEvent(ev ParsedEvent, opt rrule.ROption, overrides []ParsedEvent, cfg ExpandConfig, result *ExpandResult) bool {
	r, err := rrule.NewRRule(opt)
	if err != nil {
		appLog.Error("expand: failed to build RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		result.Invalid++
		return false
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		if ev.AllDay {
			occEnd = occStart.AddDate(0, 0, 1)
		}
		baseEv := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			baseEv, occStart, occEnd = o, o.Start, o.End
		}
		addEvent(baseEv, occStart, occEnd, cfg.Zone, result)
	}
	return hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID is the given
// instance start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func addEvent(ev ParsedEvent, start, end time.Time, zone *time.Location, result *ExpandResult) {
	e, err := toEvent(ev, start, end, zone)
	if err != nil {
		appLog.Debug("expand: skipping invalid event", "uid", ev.UID, "reason", err.Error())
		result.Invalid++
		return
	}
	result.Events = append(result.Events, e)
}

// toEvent converts one instance to the calendar wall clock. All-day
// instances take the default 08:00-17:00 span on each covered date.
func toEvent(ev ParsedEvent, start, end time.Time, zone *time.Location) (model.Event, error) {
	subject := strings.TrimSpace(ev.Summary)
	if subject == "" {
		subject = untitled
	}

	b := model.NewEventBuilder().
		Subject(subject).
		Description(ev.Description).
		Location(classifyLocation(ev.Location)).
		Status(classifyStatus(ev.Class))

	if ev.AllDay {
		first := model.Date{Year: start.Year(), Month: start.Month(), Day: start.Day()}
		last := model.Date{Year: end.Year(), Month: end.Month(), Day: end.Day()}.AddDays(-1)
		if last.Before(first) {
			last = first
		}
		return b.StartDate(first).StartTime(model.DefaultStart).
			EndDate(last).EndTime(model.DefaultEnd).
			Build()
	}

	s, e := start.In(zone), end.In(zone)
	return b.StartDate(model.DateOf(s)).StartTime(model.ClockOf(s)).
		EndDate(model.DateOf(e)).EndTime(model.ClockOf(e)).
		Build()
}

// classifyLocation treats a URL or the word "online" as an online meeting
// and anything else non-empty as a physical place.
func classifyLocation(loc string) model.Location {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return model.LocationUnset
	}
	if strings.EqualFold(loc, model.LocationOnline.String()) {
		return model.LocationOnline
	}
	if u, err := url.Parse(loc); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return model.LocationOnline
	}
	return model.LocationPhysical
}

func classifyStatus(class string) model.Status {
	switch class {
	case "PUBLIC":
		return model.StatusPublic
	case "PRIVATE", "CONFIDENTIAL":
		return model.StatusPrivate
	default:
		return model.StatusUnset
	}
}
