// Package command implements the line-oriented calendar command language
// used by the interactive shell and by headless scripts.
package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"calmgr/internal/calendar"
	"calmgr/internal/ics"
	appLog "calmgr/internal/log"
	"calmgr/internal/model"
)

// ErrExit is returned by Execute when the exit command is read.
var ErrExit = errors.New("exit")

// Interpreter executes commands against a calendar registry. It keeps the
// calendar selected with "use calendar"; until one is selected, commands
// apply to the registry's default calendar.
type Interpreter struct {
	mgr     *calendar.Manager
	current string
	out     io.Writer
}

// New returns an Interpreter writing its output to out.
func New(mgr *calendar.Manager, out io.Writer) *Interpreter {
	return &Interpreter{mgr: mgr, out: out}
}

// Current returns the name of the selected calendar.
func (in *Interpreter) Current() string {
	if in.current == "" {
		return calendar.DefaultName
	}
	return in.current
}

// Run reads commands from r line by line. Blank lines and lines starting
// with '#' are ignored.
//
// In interactive mode errors are printed and reading continues. In headless
// mode the first error stops the run and is returned, and the input must
// end with the exit command.
func (in *Interpreter) Run(ctx context.Context, r io.Reader, headless bool) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		err := in.Execute(line)
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			if headless {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			fmt.Fprintf(in.out, "error: %v\n", err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if headless {
		return model.Validationf("script ended without exit")
	}
	return nil
}

// Execute runs a single command line.
func (in *Interpreter) Execute(line string) error {
	tokens, err := tokenize(line)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	appLog.Debug("command", "line", line, "calendar", in.Current())

	c := &cursor{tokens: tokens}
	verb := strings.ToLower(c.peek())
	c.pos++

	switch verb {
	case "exit":
		return ErrExit
	case "create":
		switch strings.ToLower(c.peek()) {
		case "calendar":
			c.pos++
			return in.createCalendar(c)
		case "event":
			c.pos++
			return in.createEvent(c)
		}
	case "edit":
		switch strings.ToLower(c.peek()) {
		case "calendar":
			c.pos++
			return in.editCalendar(c)
		case "event":
			c.pos++
			return in.editEvent(c, calendar.ScopeSingle)
		case "events":
			c.pos++
			return in.editEvent(c, calendar.ScopeFollowing)
		case "series":
			c.pos++
			return in.editEvent(c, calendar.ScopeAll)
		}
	case "use":
		if c.accept("calendar") {
			return in.useCalendar(c)
		}
	case "print":
		if c.accept("events") {
			return in.printEvents(c)
		}
	case "show":
		if c.accept("status") {
			return in.showStatus(c)
		}
	case "copy":
		switch strings.ToLower(c.peek()) {
		case "event":
			c.pos++
			return in.copyEvent(c)
		case "events":
			c.pos++
			return in.copyEvents(c)
		}
	case "export":
		if c.accept("cal") {
			return in.exportCalendar(c)
		}
	case "import":
		if c.accept("cal") {
			return in.importCalendar(c)
		}
	}
	return model.Validationf("unknown command: %s", line)
}

func (in *Interpreter) say(format string, args ...any) {
	fmt.Fprintf(in.out, format+"\n", args...)
}

// update runs fn on the selected calendar, creating the default calendar
// on first use.
func (in *Interpreter) update(fn func(*calendar.Calendar) error) error {
	if in.current == "" {
		in.mgr.Default()
	}
	return in.mgr.Update(in.Current(), fn)
}

func (in *Interpreter) view(fn func(*calendar.Calendar) error) error {
	if in.current == "" {
		in.mgr.Default()
	}
	return in.mgr.View(in.Current(), fn)
}

// create calendar --name N --timezone Z
func (in *Interpreter) createCalendar(c *cursor) error {
	flags, err := c.flags()
	if err != nil {
		return err
	}
	if err := c.end(); err != nil {
		return err
	}
	name, ok := flags["name"]
	if !ok {
		return model.Validationf("create calendar needs --name")
	}
	zone, err := calendar.LoadZone(flags["timezone"])
	if err != nil {
		return err
	}
	if _, err := in.mgr.Create(name, zone); err != nil {
		return err
	}
	in.say("created calendar %s (%s)", name, zone)
	return nil
}

// edit calendar --name N --property name|timezone V
func (in *Interpreter) editCalendar(c *cursor) error {
	flags, err := c.flags()
	if err != nil {
		return err
	}
	name, ok := flags["name"]
	if !ok {
		return model.Validationf("edit calendar needs --name")
	}
	property, ok := flags["property"]
	if !ok {
		return model.Validationf("edit calendar needs --property")
	}
	value, err := c.rest("new value")
	if err != nil {
		return err
	}

	switch strings.ToLower(property) {
	case "name":
		if err := in.mgr.Rename(name, value); err != nil {
			return err
		}
		if in.Current() == name {
			in.current = value
		}
		in.say("renamed calendar %s to %s", name, value)
	case "timezone":
		zone, err := calendar.LoadZone(value)
		if err != nil {
			return err
		}
		if _, err := in.mgr.SetTimeZone(name, zone); err != nil {
			return err
		}
		in.say("calendar %s now in %s", name, zone)
	default:
		return model.Validationf("unknown calendar property %q", property)
	}
	return nil
}

// use calendar --name N
func (in *Interpreter) useCalendar(c *cursor) error {
	flags, err := c.flags()
	if err != nil {
		return err
	}
	if err := c.end(); err != nil {
		return err
	}
	name, ok := flags["name"]
	if !ok {
		return model.Validationf("use calendar needs --name")
	}
	if _, err := in.mgr.Get(name); err != nil {
		return err
	}
	in.current = name
	in.say("using calendar %s", name)
	return nil
}

// create event S from DT to DT [repeats DAYS (for N times | until D)]
// create event S on D [repeats DAYS (for N times | until D)]
func (in *Interpreter) createEvent(c *cursor) error {
	subject, err := c.next("event subject")
	if err != nil {
		return err
	}

	b := model.NewEventBuilder().Subject(subject)
	switch {
	case c.accept("from"):
		sd, st, err := c.dateTime("start date-time")
		if err != nil {
			return err
		}
		if err := c.expect("to"); err != nil {
			return err
		}
		ed, et, err := c.dateTime("end date-time")
		if err != nil {
			return err
		}
		b = b.StartDate(sd).StartTime(st).EndDate(ed).EndTime(et)
	case c.accept("on"):
		d, err := c.date("date")
		if err != nil {
			return err
		}
		b = b.StartDate(d).StartTime(model.DefaultStart)
	default:
		return model.Validationf("create event needs \"from\" or \"on\"")
	}

	if !c.accept("repeats") {
		if err := c.end(); err != nil {
			return err
		}
		e, err := b.Build()
		if err != nil {
			return err
		}
		if err := in.update(func(cal *calendar.Calendar) error { return cal.AddEvent(e) }); err != nil {
			return err
		}
		in.say("created %s", describe(e))
		return nil
	}

	codes, err := c.next("weekday codes")
	if err != nil {
		return err
	}
	base, err := b.Build()
	if err != nil {
		return err
	}
	sb := model.NewSeriesBuilder().From(base).WeekdayCodes(codes)
	switch {
	case c.accept("for"):
		n, err := c.count()
		if err != nil {
			return err
		}
		if err := c.expect("times"); err != nil {
			return err
		}
		sb = sb.Times(n)
	case c.accept("until"):
		tok, err := c.next("until date")
		if err != nil {
			return err
		}
		until, err := parseDateOrDateTime(tok)
		if err != nil {
			return err
		}
		sb = sb.Until(until)
	default:
		return model.Validationf("repeats needs \"for N times\" or \"until DATE\"")
	}
	if err := c.end(); err != nil {
		return err
	}

	series, err := sb.BuildSeries()
	if err != nil {
		return err
	}
	if err := in.update(func(cal *calendar.Calendar) error { return cal.AddEventSeries(series) }); err != nil {
		return err
	}
	in.say("created series %s on %s until %s (%d occurrences)",
		subject, series.Weekdays(), series.EndDate(), series.Len())
	return nil
}

// edit event P S from DT to DT with V
// edit events P S from DT with V
// edit series P S from DT with V
func (in *Interpreter) editEvent(c *cursor, scope calendar.Scope) error {
	property, err := c.next("property")
	if err != nil {
		return err
	}
	subject, err := c.next("event subject")
	if err != nil {
		return err
	}
	if err := c.expect("from"); err != nil {
		return err
	}
	date, clock, err := c.dateTime("start date-time")
	if err != nil {
		return err
	}

	var (
		hasEnd  bool
		endDate model.Date
		endTime model.Clock
	)
	if scope == calendar.ScopeSingle {
		if err := c.expect("to"); err != nil {
			return err
		}
		if endDate, endTime, err = c.dateTime("end date-time"); err != nil {
			return err
		}
		hasEnd = true
	}
	if err := c.expect("with"); err != nil {
		return err
	}
	value, err := c.rest("new value")
	if err != nil {
		return err
	}

	change, err := calendar.SetProperty(property, value)
	if err != nil {
		return err
	}

	return in.update(func(cal *calendar.Calendar) error {
		target, ok := cal.FindEvent(subject, date, clock)
		if !ok || (hasEnd && (target.EndDate() != endDate || target.EndTime() != endTime)) {
			return model.NotFoundf("no event %q starting at %sT%s", subject, date, clock)
		}
		if err := cal.Edit(target, scope, change); err != nil {
			return err
		}
		in.say("edited %s of %s (%s)", property, subject, scope)
		return nil
	})
}

// print events on D
// print events from DT to DT
func (in *Interpreter) printEvents(c *cursor) error {
	var from, to model.Date
	switch {
	case c.accept("on"):
		d, err := c.date("date")
		if err != nil {
			return err
		}
		from, to = d, d
	case c.accept("from"):
		sd, _, err := c.dateTime("start date-time")
		if err != nil {
			return err
		}
		if err := c.expect("to"); err != nil {
			return err
		}
		ed, _, err := c.dateTime("end date-time")
		if err != nil {
			return err
		}
		from, to = sd, ed
	default:
		return model.Validationf("print events needs \"on\" or \"from\"")
	}
	if err := c.end(); err != nil {
		return err
	}

	return in.view(func(cal *calendar.Calendar) error {
		events := cal.ScheduleInRange(from, to)
		if len(events) == 0 {
			in.say("no events")
			return nil
		}
		for _, e := range events {
			in.say("- %s", describe(e))
		}
		return nil
	})
}

// show status on DT
func (in *Interpreter) showStatus(c *cursor) error {
	if err := c.expect("on"); err != nil {
		return err
	}
	d, t, err := c.dateTime("date-time")
	if err != nil {
		return err
	}
	if err := c.end(); err != nil {
		return err
	}
	return in.view(func(cal *calendar.Calendar) error {
		if cal.BusyAt(d, t) {
			in.say("busy")
		} else {
			in.say("available")
		}
		return nil
	})
}

// copy event S on DT --target C to DT
func (in *Interpreter) copyEvent(c *cursor) error {
	subject, err := c.next("event subject")
	if err != nil {
		return err
	}
	if err := c.expect("on"); err != nil {
		return err
	}
	date, clock, err := c.dateTime("start date-time")
	if err != nil {
		return err
	}
	target, err := in.target(c)
	if err != nil {
		return err
	}
	newDate, newClock, err := c.dateTime("target date-time")
	if err != nil {
		return err
	}
	if err := c.end(); err != nil {
		return err
	}

	copied, err := in.mgr.CopyEvent(in.Current(), target, subject, date, clock, newDate, newClock)
	if err != nil {
		return err
	}
	in.say("copied to %s: %s", target, describe(copied))
	return nil
}

// copy events on D --target C to D
// copy events between D and D --target C to D
func (in *Interpreter) copyEvents(c *cursor) error {
	var from, to model.Date
	switch {
	case c.accept("on"):
		d, err := c.date("date")
		if err != nil {
			return err
		}
		from, to = d, d
	case c.accept("between"):
		sd, err := c.date("start date")
		if err != nil {
			return err
		}
		if err := c.expect("and"); err != nil {
			return err
		}
		ed, err := c.date("end date")
		if err != nil {
			return err
		}
		from, to = sd, ed
	default:
		return model.Validationf("copy events needs \"on\" or \"between\"")
	}
	target, err := in.target(c)
	if err != nil {
		return err
	}
	newStart, err := c.date("target date")
	if err != nil {
		return err
	}
	if err := c.end(); err != nil {
		return err
	}

	n, err := in.mgr.CopyEvents(in.Current(), target, from, to, newStart)
	if err != nil {
		return err
	}
	in.say("copied %d events to %s", n, target)
	return nil
}

// target parses "--target C to".
func (in *Interpreter) target(c *cursor) (string, error) {
	flags, err := c.flags()
	if err != nil {
		return "", err
	}
	name, ok := flags["target"]
	if !ok {
		return "", model.Validationf("copy needs --target")
	}
	if err := c.expect("to"); err != nil {
		return "", err
	}
	if in.current == "" {
		in.mgr.Default()
	}
	return name, nil
}

// export cal FILE.ics
func (in *Interpreter) exportCalendar(c *cursor) error {
	path, err := c.rest("file name")
	if err != nil {
		return err
	}
	if !strings.EqualFold(filepath.Ext(path), ".ics") {
		return model.Validationf("export file must end in .ics, got %q", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = in.view(func(cal *calendar.Calendar) error { return ics.Export(f, cal) })
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	in.say("exported %s to %s", in.Current(), path)
	return nil
}

// import cal FILE.ics
func (in *Interpreter) importCalendar(c *cursor) error {
	path, err := c.rest("file name")
	if err != nil {
		return err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var stats ics.ImportStats
	src := ics.Source{ID: path, Calendar: in.Current()}
	err = in.update(func(cal *calendar.Calendar) error {
		var err error
		stats, err = ics.ImportBytes(cal, src, body)
		return err
	})
	if err != nil {
		return err
	}
	in.say("imported %s: %d added, %d skipped, %d invalid", path, stats.Added, stats.Skipped, stats.Invalid)
	return nil
}

// parseDateOrDateTime accepts YYYY-MM-DD or YYYY-MM-DDTHH:MM and returns
// the date part.
func parseDateOrDateTime(s string) (model.Date, error) {
	if strings.Contains(s, "T") {
		d, _, err := model.ParseDateTime(s)
		return d, err
	}
	return model.ParseDate(s)
}

// describe renders one event for listings.
func describe(e model.Event) string {
	var sb strings.Builder
	sb.WriteString(e.Subject())
	if e.IsAllDay() && e.StartTime() == model.DefaultStart {
		fmt.Fprintf(&sb, " on %s (all day)", e.StartDate())
	} else if e.StartDate() == e.EndDate() {
		fmt.Fprintf(&sb, " on %s %s-%s", e.StartDate(), e.StartTime(), e.EndTime())
	} else {
		fmt.Fprintf(&sb, " from %sT%s to %sT%s", e.StartDate(), e.StartTime(), e.EndDate(), e.EndTime())
	}
	if e.Location() != model.LocationUnset {
		fmt.Fprintf(&sb, " @ %s", e.Location())
	}
	return sb.String()
}
