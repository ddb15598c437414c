package service

import (
	"context"
	"io"
	"testing"
	"time"
	"tokenq/internal/events"
	"tokenq/internal/schedules/validator"
	"tokenq/pkg/config"
	apperrors "tokenq/pkg/errors"
	"tokenq/pkg/logger"
	"tokenq/pkg/model"
)

type mockSettingsRepository struct {
	calendar       *model.ScheduleConfig
	site           *model.SiteConfig
	getCalendarErr error
	replaceErr     error
}

func (m *mockSettingsRepository) GetCalendarConfig(ctx context.Context) (*model.ScheduleConfig, error) {
	if m.getCalendarErr != nil {
		return nil, m.getCalendarErr
	}
	if m.calendar == nil {
		return &model.ScheduleConfig{Blocked: []string{}, Limits: map[string]uint{}}, nil
	}
	return m.calendar, nil
}

func (m *mockSettingsRepository) GetLimit(ctx context.Context, dateCode string) (uint, error) {
	if m.calendar == nil {
		return 0, nil
	}
	return m.calendar.LimitFor(dateCode), nil
}

func (m *mockSettingsRepository) ReplaceCalendarConfig(ctx context.Context, cfg *model.ScheduleConfig) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.calendar = cfg
	return nil
}

func (m *mockSettingsRepository) GetSiteConfig(ctx context.Context) (*model.SiteConfig, error) {
	if m.site == nil {
		return &model.SiteConfig{}, nil
	}
	return m.site, nil
}

func (m *mockSettingsRepository) ReplaceSiteConfig(ctx context.Context, sc *model.SiteConfig) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.site = sc
	return nil
}

type mockCounterReader struct {
	counts   map[string]uint
	currents map[string]uint
}

func (m *mockCounterReader) GetDailyCounts(ctx context.Context) (map[string]uint, error) {
	return m.counts, nil
}

func (m *mockCounterReader) GetCurrents(ctx context.Context, dateCodes []string) (map[string]uint, error) {
	out := make(map[string]uint)
	for _, d := range dateCodes {
		if n, ok := m.currents[d]; ok {
			out[d] = n
		}
	}
	return out, nil
}

// 2026-01-02 is a Friday.
var friday = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

func newTestService(repo *mockSettingsRepository, counters *mockCounterReader) (*scheduleService, *events.Recorder) {
	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Output: io.Discard, Service: "test"})
	cfg := &config.Config{
		Log:                log,
		Location:           time.UTC,
		BookingHorizonDays: 7,
		ClosedWeekday:      time.Friday,
		NowFunc:            func() time.Time { return friday },
	}
	if counters == nil {
		counters = &mockCounterReader{}
	}
	recorder := events.NewRecorder()
	return &scheduleService{
		repo:      repo,
		counters:  counters,
		validator: validator.NewScheduleValidator(log),
		publisher: recorder,
		cfg:       cfg,
	}, recorder
}

func TestSaveSchedule_ReplacesAndDropsZeroLimits(t *testing.T) {
	repo := &mockSettingsRepository{calendar: &model.ScheduleConfig{
		Blocked: []string{"2026-01-03"},
		Limits:  map[string]uint{"2026-01-03": 9},
	}}
	svc, recorder := newTestService(repo, nil)

	saved, err := svc.SaveSchedule(context.Background(), &model.ScheduleUpdate{
		Blocked: []string{" 2026-01-06", "2026-01-05", "2026-01-06"},
		Limits:  map[string]int64{"2026-01-04": 30, "2026-01-07": 0},
	}, "admin:ops")
	if err != nil {
		t.Fatalf("SaveSchedule() error = %v", err)
	}

	if len(saved.Blocked) != 2 || saved.Blocked[0] != "2026-01-05" {
		t.Errorf("blocked = %v, want sorted and deduped", saved.Blocked)
	}
	if _, ok := saved.Limits["2026-01-07"]; ok {
		t.Error("zero limit should be dropped")
	}
	if _, ok := repo.calendar.Limits["2026-01-03"]; ok {
		t.Error("save must replace, not merge")
	}
	if saved.UpdatedBy != "admin:ops" {
		t.Errorf("updated_by = %q", saved.UpdatedBy)
	}
	if got := len(recorder.OfType(events.ScheduleUpdated)); got != 1 {
		t.Errorf("published %d schedule events, want 1", got)
	}
}

func TestSaveSchedule_Validation(t *testing.T) {
	repo := &mockSettingsRepository{}
	svc, recorder := newTestService(repo, nil)

	_, err := svc.SaveSchedule(context.Background(), &model.ScheduleUpdate{
		Limits: map[string]int64{"2026-01-04": -3},
	}, "admin:ops")
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if repo.calendar != nil {
		t.Error("invalid schedule must not be stored")
	}
	if len(recorder.Events()) != 0 {
		t.Error("nothing should be published")
	}
}

func TestSaveSchedule_StoreTimeout(t *testing.T) {
	repo := &mockSettingsRepository{replaceErr: context.DeadlineExceeded}
	svc, _ := newTestService(repo, nil)

	_, err := svc.SaveSchedule(context.Background(), &model.ScheduleUpdate{}, "admin:ops")
	if !apperrors.HasCode(err, apperrors.CodeStoreUnavailable) {
		t.Fatalf("error = %v, want store unavailable", err)
	}
	if !apperrors.IsRetryable(err) {
		t.Error("store unavailable should be retryable")
	}
}

func TestScheduleView(t *testing.T) {
	repo := &mockSettingsRepository{calendar: &model.ScheduleConfig{
		Blocked: []string{"2026-01-05"},
		Limits:  map[string]uint{"2026-01-03": 2},
	}}
	counters := &mockCounterReader{
		counts:   map[string]uint{"2026-01-03": 2},
		currents: map[string]uint{"2026-01-03": 3},
	}
	svc, _ := newTestService(repo, counters)

	days, err := svc.ScheduleView(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("ScheduleView() error = %v", err)
	}
	if len(days) != DefaultViewDays {
		t.Fatalf("got %d days, want %d", len(days), DefaultViewDays)
	}
	if days[0].DateCode != "2026-01-02" || !days[0].Closed {
		t.Errorf("first day = %+v, want closed Friday", days[0])
	}
	sat := days[1]
	if !sat.Full || sat.LastToken != 3 || sat.DailyCount != 2 {
		t.Errorf("saturday = %+v", sat)
	}
	if !days[3].Blocked {
		t.Errorf("2026-01-05 should be blocked")
	}

	if _, err := svc.ScheduleView(context.Background(), "soon", 3); !apperrors.HasCode(err, apperrors.CodeInvalidDate) {
		t.Errorf("error = %v, want invalid date", err)
	}

	days, err = svc.ScheduleView(context.Background(), "2026-02-01", 100)
	if err != nil {
		t.Fatalf("ScheduleView() error = %v", err)
	}
	if len(days) != MaxViewDays {
		t.Errorf("got %d days, want capped at %d", len(days), MaxViewDays)
	}
}

func TestCheckBookingDate(t *testing.T) {
	repo := &mockSettingsRepository{calendar: &model.ScheduleConfig{Blocked: []string{"2026-01-05"}}}
	svc, _ := newTestService(repo, nil)

	tests := []struct {
		dateCode string
		reason   string
	}{
		{"2026-01-03", ""},
		{"2026-01-02", "closed_weekday"},
		{"2026-01-05", "blocked"},
		{"2026-01-20", "out_of_horizon"},
		{"bad", "malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.dateCode, func(t *testing.T) {
			err := svc.CheckBookingDate(context.Background(), tt.dateCode)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeInvalidDate || appErr.Details["reason"] != tt.reason {
				t.Errorf("error = %v, want reason %s", err, tt.reason)
			}
		})
	}
}

func TestSaveSiteConfig(t *testing.T) {
	repo := &mockSettingsRepository{}
	svc, recorder := newTestService(repo, nil)

	saved, err := svc.SaveSiteConfig(context.Background(), &model.SiteConfig{
		MaintenanceMode: true,
		ShowPopup:       true,
		PopupMessage:    "  Closed   today  ",
		PopupImageURL:   "http://CDN.Example.com/notice.png",
	}, "admin:ops")
	if err != nil {
		t.Fatalf("SaveSiteConfig() error = %v", err)
	}
	if saved.PopupImageURL != "https://cdn.example.com/notice.png" {
		t.Errorf("image url = %q", saved.PopupImageURL)
	}
	if !repo.site.MaintenanceMode {
		t.Error("maintenance mode not stored")
	}
	if got := len(recorder.OfType(events.SiteConfigUpdated)); got != 1 {
		t.Errorf("published %d site config events, want 1", got)
	}
}

func TestPublishFailureDoesNotFailSave(t *testing.T) {
	repo := &mockSettingsRepository{}
	svc, recorder := newTestService(repo, nil)
	recorder.FailWith(context.DeadlineExceeded)

	if _, err := svc.SaveSchedule(context.Background(), &model.ScheduleUpdate{}, "admin:ops"); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}
