// Package projection keeps an in-memory read model of the calendar, the site
// config and the per-date counters for the public display endpoints. It is
// fed by the booking event stream and refreshed from the stores. The view may
// lag the stores; token allocation never reads it.
package projection

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
	"tokenq/internal/events"
	"tokenq/internal/schedules/policy"
	"tokenq/pkg/config"
	"tokenq/pkg/kafka"
	"tokenq/pkg/model"

	"golang.org/x/sync/errgroup"
)

type SettingsReader interface {
	GetCalendarConfig(ctx context.Context) (*model.ScheduleConfig, error)
	GetSiteConfig(ctx context.Context) (*model.SiteConfig, error)
}

type CounterReader interface {
	GetDailyCounts(ctx context.Context) (map[string]uint, error)
	GetCurrents(ctx context.Context, dateCodes []string) (map[string]uint, error)
}

type View struct {
	settings SettingsReader
	counters CounterReader
	cfg      *config.Config

	mu       sync.RWMutex
	schedule model.ScheduleConfig
	site     model.SiteConfig
	counts   map[string]uint
	currents map[string]uint
	loaded   map[string]bool
	resets   map[string]time.Time
	loadedAt time.Time
}

func NewView(settings SettingsReader, counters CounterReader, cfg *config.Config) *View {
	return &View{
		settings: settings,
		counters: counters,
		cfg:      cfg,
		counts:   map[string]uint{},
		currents: map[string]uint{},
		loaded:   map[string]bool{},
		resets:   map[string]time.Time{},
	}
}

func (v *View) calendar() policy.Calendar {
	return policy.NewCalendar(v.cfg.Now(), v.cfg.BookingHorizonDays, v.cfg.ClosedWeekday)
}

// Load replaces the whole view with a fresh read of the stores. Counters are
// read for the dates inside the booking horizon.
func (v *View) Load(ctx context.Context) error {
	var (
		schedule *model.ScheduleConfig
		site     *model.SiteConfig
		counts   map[string]uint
		currents map[string]uint
	)

	dates := v.calendar().Dates()
	codes := make([]string, 0, len(dates))
	for _, d := range dates {
		codes = append(codes, d.Format(model.DateLayout))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if schedule, err = v.settings.GetCalendarConfig(gctx); err != nil {
			return fmt.Errorf("load calendar config: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if site, err = v.settings.GetSiteConfig(gctx); err != nil {
			return fmt.Errorf("load site config: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if counts, err = v.counters.GetDailyCounts(gctx); err != nil {
			return fmt.Errorf("load daily counts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if currents, err = v.counters.GetCurrents(gctx, codes); err != nil {
			return fmt.Errorf("load counters: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.schedule = *schedule
	v.site = *site
	v.counts = nonNil(counts)
	v.currents = nonNil(currents)
	v.loaded = make(map[string]bool, len(codes))
	for _, code := range codes {
		v.loaded[code] = true
	}
	for code := range v.resets {
		if !v.loaded[code] {
			delete(v.resets, code)
		}
	}
	v.loadedAt = time.Now()
	return nil
}

// Apply folds one booking event into the view. It is the message handler of
// the projection consumer. Counters only move forward between resets, so a
// late booking.created never rolls back a fresher value.
func (v *View) Apply(ctx context.Context, msg kafka.Message) error {
	event, err := events.Decode(msg)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch event.Type {
	case events.BookingCreated:
		if c := event.Counter; c != nil {
			v.applyCounter(*c, event.OccurredAt)
		}
	case events.CounterReset:
		v.resetCounter(event.DateCode, event.OccurredAt)
	case events.BookingsPurged:
		if p := event.Purge; p != nil {
			if p.DailyCountsCleared {
				v.counts = map[string]uint{}
			}
			if p.CounterReset != "" {
				v.resetCounter(p.CounterReset, event.OccurredAt)
			}
		}
	case events.ScheduleUpdated:
		if event.Schedule != nil {
			v.schedule = *event.Schedule
		}
	case events.SiteConfigUpdated:
		if event.SiteConfig != nil {
			v.site = *event.SiteConfig
		}
	case events.BookingUpdated, events.BookingDeleted:
		// counters do not move
	default:
		v.cfg.Log.Debug("Ignoring unknown event type", "event_type", event.Type)
	}
	return nil
}

func (v *View) applyCounter(c events.CounterState, at time.Time) {
	if resetAt, ok := v.resets[c.DateCode]; ok && at.Before(resetAt) {
		return
	}
	if c.Current >= v.currents[c.DateCode] {
		v.currents[c.DateCode] = c.Current
	}
	if c.DailyCount >= v.counts[c.DateCode] {
		v.counts[c.DateCode] = c.DailyCount
	}
}

func (v *View) resetCounter(dateCode string, at time.Time) {
	v.currents[dateCode] = 0
	if at.After(v.resets[dateCode]) {
		v.resets[dateCode] = at
	}
}

// Run reloads the view every interval until ctx is done. A failed reload
// keeps the previous state.
func (v *View) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.Load(ctx); err != nil && ctx.Err() == nil {
				v.cfg.Log.Warn("Failed to refresh live view", "error", err)
			}
		}
	}
}

func (v *View) EligibleDays() []model.Day {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.calendar().EligibleDays(&v.schedule, v.counts)
}

// NextToken reports the next token of dateCode. ok is false for dates outside
// the horizon of the last load, whose counters the view does not hold.
func (v *View) NextToken(dateCode string) (next uint, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.loaded[dateCode] {
		return 0, false
	}
	return v.currents[dateCode] + 1, true
}

func (v *View) SiteConfig() model.SiteConfig {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.site
}

// Snapshot returns copies of the counters, for diagnostics.
func (v *View) Snapshot() (currents, counts map[string]uint, loadedAt time.Time) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return maps.Clone(v.currents), maps.Clone(v.counts), v.loadedAt
}

func nonNil(m map[string]uint) map[string]uint {
	if m == nil {
		return map[string]uint{}
	}
	return m
}
