package web

import (
	"calmgr/internal/calendar"
	"calmgr/internal/model"
)

// eventDTO is a JSON-friendly view of an event. Times are wall-clock
// values in the calendar's zone, formatted as YYYY-MM-DDTHH:MM.
type eventDTO struct {
	Subject     string `json:"subject"`
	Start       string `json:"start"`
	End         string `json:"end"`
	AllDay      bool   `json:"all_day"`
	Location    string `json:"location,omitempty"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
}

type seriesDTO struct {
	Weekdays    string     `json:"weekdays"`
	Until       string     `json:"until"`
	Occurrences []eventDTO `json:"occurrences"`
}

// eventRequest creates an event, or a series when Repeats is set. End may
// be omitted for the default span.
type eventRequest struct {
	Subject     string          `json:"subject"`
	Start       string          `json:"start"`
	End         string          `json:"end,omitempty"`
	Location    string          `json:"location,omitempty"`
	Status      string          `json:"status,omitempty"`
	Description string          `json:"description,omitempty"`
	Repeats     *repeatsRequest `json:"repeats,omitempty"`
}

// repeatsRequest sets exactly one of Times and Until.
type repeatsRequest struct {
	Weekdays string `json:"weekdays"`
	Times    int    `json:"times,omitempty"`
	Until    string `json:"until,omitempty"`
}

func (req eventRequest) builder() (model.EventBuilder, error) {
	b := model.NewEventBuilder().Subject(req.Subject).Description(req.Description)

	sd, st, err := model.ParseDateTime(req.Start)
	if err != nil {
		return b, err
	}
	b = b.StartDate(sd).StartTime(st)
	if req.End != "" {
		ed, et, err := model.ParseDateTime(req.End)
		if err != nil {
			return b, err
		}
		b = b.EndDate(ed).EndTime(et)
	}

	loc, err := model.ParseLocation(req.Location)
	if err != nil {
		return b, err
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		return b, err
	}
	return b.Location(loc).Status(status), nil
}

func (req repeatsRequest) series(b model.EventBuilder) (model.EventSeries, error) {
	base, err := b.Build()
	if err != nil {
		return model.EventSeries{}, err
	}
	sb := model.NewSeriesBuilder().From(base).WeekdayCodes(req.Weekdays)
	switch {
	case req.Times > 0 && req.Until != "":
		return model.EventSeries{}, model.Validationf("repeats takes times or until, not both")
	case req.Times > 0:
		sb = sb.Times(req.Times)
	case req.Until != "":
		until, err := model.ParseDate(req.Until)
		if err != nil {
			return model.EventSeries{}, err
		}
		sb = sb.Until(until)
	default:
		return model.EventSeries{}, model.Validationf("repeats needs times or until")
	}
	return sb.BuildSeries()
}

func formatDateTime(d model.Date, c model.Clock) string {
	return d.String() + "T" + c.String()
}

func toEventDTO(e model.Event) eventDTO {
	return eventDTO{
		Subject:     e.Subject(),
		Start:       formatDateTime(e.StartDate(), e.StartTime()),
		End:         formatDateTime(e.EndDate(), e.EndTime()),
		AllDay:      e.IsAllDay(),
		Location:    e.Location().String(),
		Status:      e.Status().String(),
		Description: e.Description(),
	}
}

func toSeriesDTO(s model.EventSeries) seriesDTO {
	out := seriesDTO{
		Weekdays:    s.Weekdays().String(),
		Until:       s.EndDate().String(),
		Occurrences: make([]eventDTO, 0, s.Len()),
	}
	for _, e := range s.Occurrences() {
		out.Occurrences = append(out.Occurrences, toEventDTO(e))
	}
	return out
}

func toCalendarDTO(name string, cal *calendar.Calendar) calendarDTO {
	return calendarDTO{
		Name:     name,
		Timezone: cal.TimeZone().String(),
		Events:   len(cal.Events()),
		Series:   len(cal.Series()),
	}
}
