// Package refresh re-imports ICS subscriptions on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"calmgr/internal/calendar"
	"calmgr/internal/ics"
	appLog "calmgr/internal/log"
	"calmgr/internal/model"
)

// Result reports one subscription's outcome in a run.
type Result struct {
	Source    ics.Source
	Stats     ics.ImportStats
	FromCache bool
	Err       error
}

// Refresher fetches every subscription and imports it into its calendar.
// Runs never overlap.
type Refresher struct {
	mgr     *calendar.Manager
	fetcher *ics.Fetcher
	sources []ics.Source
	zone    *time.Location

	runMu sync.Mutex
	cron  *cron.Cron
}

// New returns a Refresher. Calendars named by a source that do not exist
// yet are created in zone.
func New(mgr *calendar.Manager, fetcher *ics.Fetcher, sources []ics.Source, zone *time.Location) *Refresher {
	return &Refresher{
		mgr:     mgr,
		fetcher: fetcher,
		sources: sources,
		zone:    zone,
	}
}

// RunOnce fetches and imports every subscription. Per-source failures are
// reported in the results and joined into the returned error.
func (r *Refresher) RunOnce(ctx context.Context) ([]Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	started := time.Now()
	results := make([]Result, 0, len(r.sources))
	var errs []error

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.refreshOne(ctx, src)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("subscription %s: %w", src.ID, res.Err))
			appLog.Error("refresh failed", res.Err, "id", src.ID, "calendar", src.Calendar)
		} else {
			appLog.Info("refresh imported",
				"id", src.ID,
				"calendar", src.Calendar,
				"added", res.Stats.Added,
				"skipped", res.Stats.Skipped,
				"invalid", res.Stats.Invalid,
				"from_cache", res.FromCache,
			)
		}
		results = append(results, res)
	}

	appLog.Debug("refresh run completed", "sources", len(r.sources), "elapsed", time.Since(started))
	return results, errors.Join(errs...)
}

func (r *Refresher) refreshOne(ctx context.Context, src ics.Source) Result {
	res := Result{Source: src}

	fetched, err := r.fetcher.FetchOne(ctx, src)
	if err != nil {
		res.Err = err
		return res
	}
	res.FromCache = fetched.FromCache

	if _, err := r.mgr.Create(src.Calendar, r.zone); err != nil && !errors.Is(err, model.ErrDuplicate) {
		res.Err = err
		return res
	}
	res.Err = r.mgr.Update(src.Calendar, func(cal *calendar.Calendar) error {
		stats, err := ics.ImportBytes(cal, src, fetched.Body)
		res.Stats = stats
		return err
	})
	return res
}

// Start runs one refresh immediately and then on every tick of schedule, a
// standard five-field cron expression. It returns once scheduling is set
// up; the schedule stops when ctx is cancelled or Stop is called.
func (r *Refresher) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		_, _ = r.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	r.cron = c

	go func() {
		_, _ = r.RunOnce(ctx)
	}()
	c.Start()
	appLog.Info("refresh scheduled", "schedule", schedule, "sources", len(r.sources))

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// ValidateSchedule reports whether schedule is a valid five-field cron
// expression.
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return nil
}
