package ics

import (
	"errors"
	"fmt"
	"time"

	"calmgr/internal/calendar"
	"calmgr/internal/model"
)

// ImportStats summarizes one import.
type ImportStats struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Invalid int `json:"invalid"`
}

// Import adds the expanded content to cal. Events and series that collide
// with existing content are counted as skipped so a feed can be re-imported
// without error.
func Import(cal *calendar.Calendar, res ExpandResult) (ImportStats, error) {
	stats := ImportStats{Invalid: res.Invalid}
	for _, e := range res.Events {
		if err := cal.AddEvent(e); err != nil {
			if errors.Is(err, model.ErrDuplicate) {
				stats.Skipped++
				continue
			}
			return stats, err
		}
		stats.Added++
	}
	for _, s := range res.Series {
		if err := cal.AddEventSeries(s); err != nil {
			if errors.Is(err, model.ErrDuplicate) || errors.Is(err, model.ErrValidation) {
				stats.Skipped++
				continue
			}
			return stats, err
		}
		stats.Added++
	}
	return stats, nil
}

// ImportBytes parses body and imports it into cal using the calendar zone.
func ImportBytes(cal *calendar.Calendar, src Source, body []byte) (ImportStats, error) {
	parsed, err := ParseICS(src, body, cal.TimeZone())
	if err != nil {
		return ImportStats{}, err
	}
	now := time.Now()
	res, err := Expand(parsed, ExpandConfig{
		Zone:       cal.TimeZone(),
		RangeStart: now.AddDate(-1, 0, 0),
		RangeEnd:   now.AddDate(1, 0, 0),
	})
	if err != nil {
		return ImportStats{}, fmt.Errorf("expand %s: %w", src.ID, err)
	}
	return Import(cal, res)
}
