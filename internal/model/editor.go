package model

// SeriesEditor sequences edits against one series and yields the
// replacement. It is a short-lived helper: create it, chain edits, then call
// Series. The first failing edit is remembered and later edits are skipped.
type SeriesEditor struct {
	series EventSeries
	err    error
}

// NewSeriesEditor starts editing s.
func NewSeriesEditor(s EventSeries) *SeriesEditor {
	return &SeriesEditor{series: s}
}

// Replace substitutes newEvent for the first occurrence equal to oldEvent.
// If there is no such occurrence the series is left as is.
func (ed *SeriesEditor) Replace(oldEvent, newEvent Event) *SeriesEditor {
	if ed.err != nil {
		return ed
	}
	i := ed.series.indexOf(oldEvent)
	if i < 0 {
		return ed
	}
	list := ed.series.Occurrences()
	list[i] = newEvent
	ed.series = ed.series.Adopt(list)
	return ed
}

// ReplaceRange keeps every occurrence before oldEvent verbatim and
// regenerates the rest of the series from newEvent as the template, keeping
// regenerated occurrences dated on or after oldEvent's date.
func (ed *SeriesEditor) ReplaceRange(oldEvent, newEvent Event) *SeriesEditor {
	if ed.err != nil {
		return ed
	}
	i := ed.series.indexOf(oldEvent)
	if i < 0 {
		return ed
	}

	rebuilt, err := ed.series.Edit().From(newEvent).BuildSeries()
	if err != nil {
		ed.err = err
		return ed
	}

	cut := ed.series.occurrences[i].startDate
	list := make([]Event, 0, len(ed.series.occurrences))
	list = append(list, ed.series.occurrences[:i]...)
	for _, occ := range rebuilt.occurrences {
		if occ.startDate.Before(cut) {
			continue
		}
		list = append(list, occ)
	}
	ed.series = ed.series.Adopt(list)
	return ed
}

// ReplaceAll rebuilds every occurrence from newEvent as the template,
// preserving the weekday set and end date.
func (ed *SeriesEditor) ReplaceAll(newEvent Event) *SeriesEditor {
	if ed.err != nil {
		return ed
	}
	rebuilt, err := ed.series.Edit().From(newEvent).BuildSeries()
	if err != nil {
		ed.err = err
		return ed
	}
	ed.series = rebuilt
	return ed
}

// Find returns the first occurrence starting on date.
func (ed *SeriesEditor) Find(date Date) (Event, bool) {
	for _, occ := range ed.series.occurrences {
		if occ.startDate == date {
			return occ, true
		}
	}
	return Event{}, false
}

// Series returns the edited series, or the first error met while editing.
func (ed *SeriesEditor) Series() (EventSeries, error) {
	if ed.err != nil {
		return EventSeries{}, ed.err
	}
	return ed.series, nil
}
