package calendar

import (
	"fmt"
	"strings"

	"calmgr/internal/model"
)

// Scope selects how much of a series an edit touches.
type Scope int

const (
	// ScopeSingle edits only the targeted occurrence.
	ScopeSingle Scope = iota
	// ScopeFollowing edits the targeted occurrence and every later one.
	ScopeFollowing
	// ScopeAll rebuilds the whole series.
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeSingle:
		return "single"
	case ScopeFollowing:
		return "following"
	case ScopeAll:
		return "all"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ParseScope accepts "single", "following" or "all".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "":
		return ScopeSingle, nil
	case "following":
		return ScopeFollowing, nil
	case "all":
		return ScopeAll, nil
	default:
		return ScopeSingle, model.Validationf("unknown edit scope %q", s)
	}
}

// Change modifies a builder seeded from the event being edited.
type Change func(model.EventBuilder) model.EventBuilder

// Edit applies change to target. A singleton is replaced whatever the
// scope. For a series occurrence the scope picks the series edit: the
// occurrence alone, the occurrence and those after it, or the whole series,
// in which case change is applied to the series template. Nothing is
// modified when Edit returns an error.
func (c *Calendar) Edit(target model.Event, scope Scope, change Change) error {
	if i := c.indexOfEvent(target); i >= 0 {
		updated, err := change(target.Edit()).Build()
		if err != nil {
			return err
		}
		if err := c.admit([]model.Event{updated}, i, -1); err != nil {
			return err
		}
		c.events[i] = updated
		return nil
	}

	j := c.indexOfSeriesFor(target)
	if j < 0 {
		return model.NotFoundf("event %s not found", target)
	}
	series := c.series[j]
	ed := model.NewSeriesEditor(series)

	switch scope {
	case ScopeAll:
		base, err := change(series.Base().Edit()).Build()
		if err != nil {
			return err
		}
		ed.ReplaceAll(base)
	default:
		updated, err := change(target.Edit()).Build()
		if err != nil {
			return err
		}
		if scope == ScopeFollowing {
			ed.ReplaceRange(target, updated)
		} else {
			ed.Replace(target, updated)
		}
	}

	edited, err := ed.Series()
	if err != nil {
		return err
	}
	if edited.Len() == 0 {
		return model.Validationf("edit leaves series %q without occurrences", series.Base().Subject())
	}
	if err := c.admit(edited.Occurrences(), -1, j); err != nil {
		return err
	}
	c.series[j] = edited
	return nil
}

// SetProperty returns a Change that sets one named property from its text
// form. Recognized properties are subject, start, end (YYYY-MM-DDTHH:MM),
// description, location and status.
func SetProperty(property, value string) (Change, error) {
	switch strings.ToLower(strings.TrimSpace(property)) {
	case "subject":
		return func(b model.EventBuilder) model.EventBuilder { return b.Subject(value) }, nil
	case "description":
		return func(b model.EventBuilder) model.EventBuilder { return b.Description(value) }, nil
	case "location":
		l, err := model.ParseLocation(value)
		if err != nil {
			return nil, err
		}
		return func(b model.EventBuilder) model.EventBuilder { return b.Location(l) }, nil
	case "status":
		s, err := model.ParseStatus(value)
		if err != nil {
			return nil, err
		}
		return func(b model.EventBuilder) model.EventBuilder { return b.Status(s) }, nil
	case "start":
		d, t, err := model.ParseDateTime(value)
		if err != nil {
			return nil, err
		}
		return func(b model.EventBuilder) model.EventBuilder { return b.StartDate(d).StartTime(t) }, nil
	case "end":
		d, t, err := model.ParseDateTime(value)
		if err != nil {
			return nil, err
		}
		return func(b model.EventBuilder) model.EventBuilder { return b.EndDate(d).EndTime(t) }, nil
	default:
		return nil, model.Validationf("unknown property %q", property)
	}
}
