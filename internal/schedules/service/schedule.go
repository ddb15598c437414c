package service

import (
	"context"
	"tokenq/internal/events"
	scheduleserrors "tokenq/internal/schedules/errors"
	"tokenq/internal/schedules/policy"
	"tokenq/internal/schedules/repository"
	"tokenq/internal/schedules/validator"
	"tokenq/pkg/config"
	mongotx "tokenq/pkg/db/mongo"
	apperrors "tokenq/pkg/errors"
	"tokenq/pkg/model"
	"tokenq/pkg/sanitizer"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultViewDays = 7
	MaxViewDays     = 31
)

// CounterReader exposes the counter figures the admin grid shows next to the
// calendar.
type CounterReader interface {
	GetDailyCounts(ctx context.Context) (map[string]uint, error)
	GetCurrents(ctx context.Context, dateCodes []string) (map[string]uint, error)
}

type ScheduleService interface {
	GetSchedule(ctx context.Context) (*model.ScheduleConfig, error)
	SaveSchedule(ctx context.Context, update *model.ScheduleUpdate, actor string) (*model.ScheduleConfig, error)
	ScheduleView(ctx context.Context, from string, days int) ([]model.ServiceDay, error)
	GetSiteConfig(ctx context.Context) (*model.SiteConfig, error)
	SaveSiteConfig(ctx context.Context, sc *model.SiteConfig, actor string) (*model.SiteConfig, error)
	Calendar() policy.Calendar
	CheckBookingDate(ctx context.Context, dateCode string) error
}

type scheduleService struct {
	repo      repository.SettingsRepository
	counters  CounterReader
	validator *validator.ScheduleValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewScheduleService(
	repo repository.SettingsRepository,
	counters CounterReader,
	validator *validator.ScheduleValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ScheduleService {
	return &scheduleService{
		repo:      repo,
		counters:  counters,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *scheduleService) Calendar() policy.Calendar {
	return policy.NewCalendar(s.cfg.Now(), s.cfg.BookingHorizonDays, s.cfg.ClosedWeekday)
}

func (s *scheduleService) GetSchedule(ctx context.Context) (*model.ScheduleConfig, error) {
	cfg, err := s.repo.GetCalendarConfig(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to read calendar config", "error", err)
		return nil, mongotx.StoreError("Failed to retrieve schedule", err)
	}
	return cfg, nil
}

// SaveSchedule replaces the whole calendar config. Concurrent saves are last
// writer wins.
func (s *scheduleService) SaveSchedule(ctx context.Context, update *model.ScheduleUpdate, actor string) (*model.ScheduleConfig, error) {
	if update == nil {
		return nil, apperrors.InvalidInput("Schedule body is required")
	}
	update.Blocked = sanitizer.NormalizeDateCodes(update.Blocked)
	update.Limits = sanitizer.NormalizeLimits(update.Limits)

	if err := s.validator.ValidateSchedule(update); err != nil {
		s.cfg.Log.Warn("Schedule validation failed", "actor", actor, "error", err)
		return nil, apperrors.Validation("Schedule validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	cfg := toScheduleConfig(update)
	cfg.UpdatedBy = actor

	if err := s.repo.ReplaceCalendarConfig(ctx, cfg); err != nil {
		s.cfg.Log.Error("Failed to save schedule", "actor", actor, "error", err)
		return nil, mongotx.StoreError("Failed to save schedule", err)
	}

	s.publish(ctx, events.ScheduleUpdatedEvent(cfg, actor))
	s.cfg.Log.Info("Schedule saved successfully",
		"actor", actor,
		"blocked", len(cfg.Blocked),
		"limits", len(cfg.Limits),
	)
	return cfg, nil
}

// toScheduleConfig drops zero limits, which are the same as no limit.
func toScheduleConfig(update *model.ScheduleUpdate) *model.ScheduleConfig {
	cfg := &model.ScheduleConfig{
		Blocked: update.Blocked,
		Limits:  make(map[string]uint, len(update.Limits)),
	}
	for dateCode, limit := range update.Limits {
		if clamped := sanitizer.ClampLimit(limit); clamped > 0 {
			cfg.Limits[dateCode] = clamped
		}
	}
	return cfg
}

func (s *scheduleService) ScheduleView(ctx context.Context, from string, days int) ([]model.ServiceDay, error) {
	if days <= 0 {
		days = DefaultViewDays
	}
	days = min(days, MaxViewDays)

	cal := s.Calendar()
	start := cal.Today
	if from != "" {
		t, err := policy.ParseDateCode(from, s.cfg.Location)
		if err != nil {
			return nil, apperrors.InvalidDate(from, scheduleserrors.Reason(err))
		}
		start = t
	}

	dateCodes := make([]string, 0, days)
	for i := range days {
		dateCodes = append(dateCodes, start.AddDate(0, 0, i).Format(model.DateLayout))
	}

	var (
		calendar   *model.ScheduleConfig
		counts     map[string]uint
		lastTokens map[string]uint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		calendar, err = s.repo.GetCalendarConfig(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.counters.GetDailyCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		lastTokens, err = s.counters.GetCurrents(gctx, dateCodes)
		return err
	})
	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Failed to build schedule view", "from", from, "days", days, "error", err)
		return nil, mongotx.StoreError("Failed to build schedule view", err)
	}

	return policy.ServiceDays(start, days, s.cfg.ClosedWeekday, calendar, counts, lastTokens), nil
}

func (s *scheduleService) GetSiteConfig(ctx context.Context) (*model.SiteConfig, error) {
	sc, err := s.repo.GetSiteConfig(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to read site config", "error", err)
		return nil, mongotx.StoreError("Failed to retrieve site config", err)
	}
	return sc, nil
}

func (s *scheduleService) SaveSiteConfig(ctx context.Context, sc *model.SiteConfig, actor string) (*model.SiteConfig, error) {
	if sc == nil {
		return nil, apperrors.InvalidInput("Site config body is required")
	}
	sanitized := sanitizer.SanitizeSiteConfig(*sc)
	if err := s.validator.ValidateSiteConfig(&sanitized); err != nil {
		s.cfg.Log.Warn("Site config validation failed", "actor", actor, "error", err)
		return nil, apperrors.Validation("Site config validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.ReplaceSiteConfig(ctx, &sanitized); err != nil {
		s.cfg.Log.Error("Failed to save site config", "actor", actor, "error", err)
		return nil, mongotx.StoreError("Failed to save site config", err)
	}

	s.publish(ctx, events.SiteConfigUpdatedEvent(&sanitized, actor))
	s.cfg.Log.Info("Site config saved successfully",
		"actor", actor,
		"maintenance_mode", sanitized.MaintenanceMode,
		"show_popup", sanitized.ShowPopup,
	)
	return &sanitized, nil
}

// CheckBookingDate applies the guest date rules against the stored calendar.
func (s *scheduleService) CheckBookingDate(ctx context.Context, dateCode string) error {
	calendar, err := s.repo.GetCalendarConfig(ctx)
	if err != nil {
		return mongotx.StoreError("Failed to read calendar", err)
	}
	if err := s.Calendar().ValidateBookingDate(dateCode, calendar); err != nil {
		if reason := scheduleserrors.Reason(err); reason != "" {
			return apperrors.InvalidDate(dateCode, reason)
		}
		return err
	}
	return nil
}

func (s *scheduleService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish event",
			"event_type", event.Type,
			"error", err,
		)
	}
}

