package model

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// WeekdaySet is a set of days of the week.
type WeekdaySet uint8

// dayCodes maps the single-letter day codes accepted at the builder boundary.
var dayCodes = map[rune]time.Weekday{
	'M': time.Monday,
	'T': time.Tuesday,
	'W': time.Wednesday,
	'R': time.Thursday,
	'F': time.Friday,
	'S': time.Saturday,
	'U': time.Sunday,
}

// codeOrder is the Monday-first rendering order used by String.
var codeOrder = []struct {
	code rune
	day  time.Weekday
}{
	{'M', time.Monday},
	{'T', time.Tuesday},
	{'W', time.Wednesday},
	{'R', time.Thursday},
	{'F', time.Friday},
	{'S', time.Saturday},
	{'U', time.Sunday},
}

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// ParseWeekdays parses day codes such as "MWF". Codes are case-insensitive;
// an unknown code is a validation error.
func ParseWeekdays(codes string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, r := range strings.ToUpper(strings.TrimSpace(codes)) {
		d, ok := dayCodes[r]
		if !ok {
			return 0, Validationf("unknown weekday code %q in %q", r, codes)
		}
		s = s.With(d)
	}
	return s, nil
}

func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) IsEmpty() bool {
	return s == 0
}

// Shift returns the set with every day moved n days forward (negative n
// moves backward).
func (s WeekdaySet) Shift(n int) WeekdaySet {
	var out WeekdaySet
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = out.With(time.Weekday(((int(d)+n)%7 + 7) % 7))
		}
	}
	return out
}

// Days lists the members Monday first.
func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for _, c := range codeOrder {
		if s.Has(c.day) {
			out = append(out, c.day)
		}
	}
	return out
}

func (s WeekdaySet) String() string {
	var b strings.Builder
	for _, c := range codeOrder {
		if s.Has(c.day) {
			b.WriteRune(c.code)
		}
	}
	return b.String()
}

// RRuleDays lists the members as rrule weekdays, Monday first.
func (s WeekdaySet) RRuleDays() []rrule.Weekday {
	days := s.Days()
	out := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, RRuleWeekday(d))
	}
	return out
}

// RRuleWeekday converts a time.Weekday to its rrule counterpart.
func RRuleWeekday(d time.Weekday) rrule.Weekday {
	return [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}[d]
}

// WeekdayOf converts an rrule weekday (Monday = 0) to time.Weekday.
func WeekdayOf(wd rrule.Weekday) time.Weekday {
	return time.Weekday((wd.Day() + 1) % 7)
}
