package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"
	bookingserrors "tokenq/internal/bookings/errors"
	"tokenq/internal/events"
	"tokenq/internal/tokens/validator"
	"tokenq/pkg/config"
	apperrors "tokenq/pkg/errors"
	"tokenq/pkg/logger"
	"tokenq/pkg/model"
)

type fakeBookingRepository struct {
	bookings       map[string]*model.Booking
	lastFilter     model.BookingFilter
	batchSizes     []int
	deleteBatchErr error
	listErr        error
	afterBatch     func()
}

func newFakeBookingRepository(n int) *fakeBookingRepository {
	repo := &fakeBookingRepository{bookings: make(map[string]*model.Booking)}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("b%02d", i)
		repo.bookings[id] = &model.Booking{
			ID:          id,
			TokenNumber: uint(i),
			Contact:     model.Contact{Name: "Guest", Mobile: "+923001234567", City: "Lahore"},
			DayLabel:    "Saturday, 3rd",
			DateCode:    "2026-01-03",
		}
	}
	return repo
}

func (f *fakeBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookingRepository) FindByRequestKey(ctx context.Context, key string) (*model.Booking, error) {
	return nil, bookingserrors.ErrNotFound
}

func (f *fakeBookingRepository) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*model.Booking{}
	for _, id := range f.sortedIDs() {
		out = append(out, f.bookings[id])
	}
	if int(offset) >= len(out) {
		return []*model.Booking{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	return int64(len(f.bookings)), nil
}

func (f *fakeBookingRepository) CountByDate(ctx context.Context, dateCode string) (int64, error) {
	var n int64
	for _, b := range f.bookings {
		if b.DateCode == dateCode {
			n++
		}
	}
	return n, nil
}

func (f *fakeBookingRepository) UpdateContact(ctx context.Context, id string, contact model.Contact) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	b.Contact = contact
	copied := *b
	return &copied, nil
}

func (f *fakeBookingRepository) Delete(ctx context.Context, id string) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	delete(f.bookings, id)
	return b, nil
}

func (f *fakeBookingRepository) ListIDs(ctx context.Context, batch int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := f.sortedIDs()
	if len(ids) > batch {
		ids = ids[:batch]
	}
	return ids, nil
}

func (f *fakeBookingRepository) DeleteBatch(ctx context.Context, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.deleteBatchErr != nil {
		return 0, f.deleteBatchErr
	}
	f.batchSizes = append(f.batchSizes, len(ids))
	var n int64
	for _, id := range ids {
		if _, ok := f.bookings[id]; ok {
			delete(f.bookings, id)
			n++
		}
	}
	if f.afterBatch != nil {
		f.afterBatch()
	}
	return n, nil
}

func (f *fakeBookingRepository) sortedIDs() []string {
	ids := make([]string, 0, len(f.bookings))
	for id := range f.bookings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type fakeCounters struct {
	currents map[string]uint
	cleared  bool
	clearErr error
}

func (f *fakeCounters) SetCurrent(ctx context.Context, dateCode string, current uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.currents[dateCode] = current
	return nil
}

func (f *fakeCounters) ClearDailyCounts(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	return nil
}

func newTestService(repo *fakeBookingRepository, counters *fakeCounters) (*bookingService, *events.Recorder) {
	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Output: io.Discard, Service: "test"})
	cfg := &config.Config{
		Log:             log,
		Location:        time.UTC,
		PhoneRegion:     "PK",
		DeleteBatchSize: 2,
		NowFunc:         func() time.Time { return time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC) },
	}
	recorder := events.NewRecorder()
	svc := NewBookingService(repo, counters, validator.NewContactValidator(log), recorder, cfg).(*bookingService)
	return svc, recorder
}

func ptr(s string) *string { return &s }

func TestEditContact(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		update   *model.ContactUpdate
		wantCode string
		want     model.Contact
	}{
		{
			name:   "name only",
			id:     "b01",
			update: &model.ContactUpdate{Name: ptr("  Bilal   Khan ")},
			want:   model.Contact{Name: "Bilal Khan", Mobile: "+923001234567", City: "Lahore"},
		},
		{
			name:   "all fields",
			id:     "b01",
			update: &model.ContactUpdate{Name: ptr("Sara"), Mobile: ptr("+923331234567"), City: ptr("Karachi")},
			want:   model.Contact{Name: "Sara", Mobile: "+923331234567", City: "Karachi"},
		},
		{
			name:     "empty update",
			id:       "b01",
			update:   &model.ContactUpdate{},
			wantCode: apperrors.CodeInvalidInput,
		},
		{
			name:     "unparseable mobile",
			id:       "b01",
			update:   &model.ContactUpdate{Mobile: ptr("not a phone")},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "missing booking",
			id:       "nope",
			update:   &model.ContactUpdate{Name: ptr("Sara")},
			wantCode: apperrors.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeBookingRepository(1)
			svc, recorder := newTestService(repo, &fakeCounters{currents: map[string]uint{}})

			got, err := svc.EditContact(context.Background(), tt.id, tt.update, "admin:root")
			if tt.wantCode != "" {
				if !apperrors.HasCode(err, tt.wantCode) {
					t.Fatalf("EditContact() error = %v, want code %s", err, tt.wantCode)
				}
				if len(recorder.Events()) != 0 {
					t.Error("failed edit published an event")
				}
				return
			}
			if err != nil {
				t.Fatalf("EditContact() error = %v", err)
			}
			if got.Contact != tt.want {
				t.Errorf("contact = %+v, want %+v", got.Contact, tt.want)
			}
			if got.TokenNumber != 1 || got.DateCode != "2026-01-03" || got.DayLabel != "Saturday, 3rd" {
				t.Errorf("immutable fields changed: %+v", got)
			}
			updated := recorder.OfType(events.BookingUpdated)
			if len(updated) != 1 || updated[0].Actor != "admin:root" {
				t.Errorf("events = %+v", recorder.Events())
			}
		})
	}
}

func TestDelete(t *testing.T) {
	repo := newFakeBookingRepository(3)
	counters := &fakeCounters{currents: map[string]uint{"2026-01-03": 3}}
	svc, recorder := newTestService(repo, counters)
	ctx := context.Background()

	if err := svc.Delete(ctx, "b02", "admin:root"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := repo.bookings["b02"]; ok {
		t.Error("booking still present")
	}
	if counters.currents["2026-01-03"] != 3 {
		t.Error("deleting a booking must not move the counter")
	}
	deleted := recorder.OfType(events.BookingDeleted)
	if len(deleted) != 1 || deleted[0].Booking.TokenNumber != 2 {
		t.Errorf("events = %+v", recorder.Events())
	}

	if err := svc.Delete(ctx, "b02", "admin:root"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("second Delete() error = %v, want NOT_FOUND", err)
	}
	if err := svc.Delete(ctx, "", "admin:root"); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("Delete(\"\") error = %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	repo := newFakeBookingRepository(5)
	counters := &fakeCounters{currents: map[string]uint{"2026-01-03": 5}}
	svc, recorder := newTestService(repo, counters)

	result, err := svc.DeleteAll(context.Background(), "2026-01-03", "admin:root")
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if result.BookingsDeleted != 5 || !result.DailyCountsCleared || result.CounterReset != "2026-01-03" {
		t.Errorf("result = %+v", result)
	}
	if len(repo.bookings) != 0 {
		t.Errorf("%d bookings left", len(repo.bookings))
	}
	if got := fmt.Sprint(repo.batchSizes); got != "[2 2 1]" {
		t.Errorf("batches = %s, want [2 2 1]", got)
	}
	if counters.currents["2026-01-03"] != 0 {
		t.Error("counter not reset")
	}
	if len(recorder.OfType(events.BookingsPurged)) != 1 {
		t.Error("purge not published")
	}
}

func TestDeleteAll_WithoutCounterReset(t *testing.T) {
	repo := newFakeBookingRepository(1)
	counters := &fakeCounters{currents: map[string]uint{"2026-01-03": 1}}
	svc, _ := newTestService(repo, counters)

	result, err := svc.DeleteAll(context.Background(), "", "admin:root")
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if result.CounterReset != "" || counters.currents["2026-01-03"] != 1 {
		t.Errorf("counter touched: result = %+v", result)
	}
}

func TestDeleteAll_PartialFailure(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*fakeBookingRepository, *fakeCounters)
		wantDeleted int64
		wantStep    string
		wantCleared bool
	}{
		{
			name:        "clearing counts fails",
			setup:       func(_ *fakeBookingRepository, c *fakeCounters) { c.clearErr = errors.New("server selection timeout") },
			wantDeleted: 3,
			wantStep:    StepClearDailyCounts,
		},
		{
			name:     "batch delete fails",
			setup:    func(r *fakeBookingRepository, _ *fakeCounters) { r.deleteBatchErr = errors.New("connection reset") },
			wantStep: StepDeleteBookings,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeBookingRepository(3)
			counters := &fakeCounters{currents: map[string]uint{"2026-01-03": 3}}
			tt.setup(repo, counters)
			svc, _ := newTestService(repo, counters)

			result, err := svc.DeleteAll(context.Background(), "2026-01-03", "admin:root")
			if !apperrors.HasCode(err, apperrors.CodePartialFailure) {
				t.Fatalf("DeleteAll() error = %v, want PARTIAL_FAILURE", err)
			}
			if result.BookingsDeleted != tt.wantDeleted || result.DailyCountsCleared != tt.wantCleared {
				t.Errorf("result = %+v", result)
			}
			if len(result.Failures) != 1 || result.Failures[0].Step != tt.wantStep {
				t.Errorf("failures = %+v", result.Failures)
			}
			if result.CounterReset != "" || counters.currents["2026-01-03"] != 3 {
				t.Error("later steps ran after a failure")
			}
			if apperrors.AsAppError(err).Details["result"] != result {
				t.Error("error details do not carry the result")
			}
		})
	}
}

func TestDeleteAll_FinishesAfterCallerLeaves(t *testing.T) {
	repo := newFakeBookingRepository(5)
	counters := &fakeCounters{currents: map[string]uint{"2026-01-03": 5}}
	svc, _ := newTestService(repo, counters)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo.afterBatch = cancel

	result, err := svc.DeleteAll(ctx, "2026-01-03", "admin:root")
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if result.BookingsDeleted != 5 || !result.DailyCountsCleared || result.CounterReset != "2026-01-03" {
		t.Errorf("result = %+v", result)
	}
	if len(repo.bookings) != 0 || !counters.cleared {
		t.Errorf("purge stopped early: %d bookings left, counts cleared = %v", len(repo.bookings), counters.cleared)
	}
}

func TestDeleteAll_OwnDeadlineReportsSteps(t *testing.T) {
	repo := newFakeBookingRepository(3)
	counters := &fakeCounters{currents: map[string]uint{"2026-01-03": 3}}
	svc, _ := newTestService(repo, counters)
	svc.cfg.BulkDeleteTimeout = time.Nanosecond

	result, err := svc.DeleteAll(context.Background(), "2026-01-03", "admin:root")
	if !apperrors.HasCode(err, apperrors.CodePartialFailure) {
		t.Fatalf("DeleteAll() error = %v, want PARTIAL_FAILURE", err)
	}
	if len(result.Failures) != 1 || result.Failures[0].Step != StepDeleteBookings {
		t.Errorf("failures = %+v", result.Failures)
	}
	if result.DailyCountsCleared || counters.cleared {
		t.Error("daily counts cleared while bookings remain")
	}
}

func TestDeleteAll_InvalidResetDate(t *testing.T) {
	repo := newFakeBookingRepository(2)
	svc, _ := newTestService(repo, &fakeCounters{currents: map[string]uint{}})

	_, err := svc.DeleteAll(context.Background(), "03/01/2026", "admin:root")
	if !apperrors.HasCode(err, apperrors.CodeInvalidDate) {
		t.Fatalf("DeleteAll() error = %v, want INVALID_DATE", err)
	}
	if len(repo.bookings) != 2 {
		t.Error("bookings deleted despite invalid input")
	}
}

func TestList(t *testing.T) {
	repo := newFakeBookingRepository(5)
	svc, _ := newTestService(repo, &fakeCounters{})

	bookings, total, err := svc.List(context.Background(), model.BookingFilter{Query: "  Guest ", Tab: model.TabActive}, 2, 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 || len(bookings) != 2 || bookings[0].ID != "b02" {
		t.Errorf("total = %d, page = %d", total, len(bookings))
	}
	if repo.lastFilter.Today != "2026-01-02" || repo.lastFilter.Query != "Guest" {
		t.Errorf("filter = %+v", repo.lastFilter)
	}

	if _, _, err := svc.List(context.Background(), model.BookingFilter{Tab: "archived"}, 10, 0); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("unknown tab error = %v", err)
	}

	repo.listErr = context.DeadlineExceeded
	if _, _, err := svc.List(context.Background(), model.BookingFilter{}, 10, 0); !apperrors.HasCode(err, apperrors.CodeStoreUnavailable) {
		t.Errorf("store timeout error = %v, want STORE_UNAVAILABLE", err)
	}
}
