package service

import (
	"context"
	"errors"
	bookingserrors "tokenq/internal/bookings/errors"
	"tokenq/internal/bookings/repository"
	"tokenq/internal/events"
	"tokenq/internal/schedules/policy"
	"tokenq/internal/tokens/validator"
	"tokenq/pkg/config"
	mongotx "tokenq/pkg/db/mongo"
	apperrors "tokenq/pkg/errors"
	"tokenq/pkg/model"
	"tokenq/pkg/sanitizer"

	"golang.org/x/sync/errgroup"
)

const (
	StepDeleteBookings   = "delete_bookings"
	StepClearDailyCounts = "clear_daily_counts"
	StepResetCounter     = "reset_counter"
)

// CounterWriter is the part of the counter store a bulk delete touches.
type CounterWriter interface {
	SetCurrent(ctx context.Context, dateCode string, current uint) error
	ClearDailyCounts(ctx context.Context) error
}

type BookingService interface {
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	EditContact(ctx context.Context, id string, update *model.ContactUpdate, actor string) (*model.Booking, error)
	Delete(ctx context.Context, id, actor string) error
	DeleteAll(ctx context.Context, resetCounter, actor string) (*model.BulkDeleteResult, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	counters  CounterWriter
	validator *validator.ContactValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	counters CounterWriter,
	validator *validator.ContactValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		counters:  counters,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(id, "Failed to retrieve booking", err)
	}

	return booking, nil
}

// List returns one page of bookings matching filter together with the total
// number of matches.
func (s *bookingService) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	filter.Query = sanitizer.TrimAndNormalize(filter.Query)
	filter.DayLabel = sanitizer.NormalizeDayLabel(filter.DayLabel)
	switch filter.Tab {
	case "":
	case model.TabActive, model.TabHistory:
		filter.Today = s.cfg.Today()
	default:
		return nil, 0, apperrors.InvalidInput("tab must be 'active' or 'history'")
	}
	if filter.DateCode != "" && !policy.IsValidDateCode(filter.DateCode) {
		return nil, 0, apperrors.InvalidDate(filter.DateCode, "malformed")
	}

	var (
		count    int64
		bookings []*model.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = s.repo.Count(gctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", err)
			return mongotx.StoreError("Failed to count bookings", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bookings, err = s.repo.List(gctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", err)
			return mongotx.StoreError("Failed to retrieve bookings", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return bookings, count, nil
}

// EditContact changes name, mobile or city of a booking. Token, date and
// label are not part of the update contract and never change.
func (s *bookingService) EditContact(ctx context.Context, id string, update *model.ContactUpdate, actor string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if update == nil || update.IsEmpty() {
		return nil, apperrors.InvalidInput("At least one of name, mobile or city is required")
	}

	sanitizer.SanitizeContactUpdate(update, s.cfg.PhoneRegion)
	if err := s.validator.ValidateUpdate(update); err != nil {
		s.cfg.Log.Warn("Booking update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(id, "Failed to check booking existence", err)
	}

	merged := update.Apply(existing.Contact)
	if err := s.validator.Validate(&merged); err != nil {
		s.cfg.Log.Warn("Booking contact validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Contact validation failed", map[string]any{"error": err.Error()})
	}

	updated, err := s.repo.UpdateContact(ctx, id, merged)
	if err != nil {
		s.cfg.Log.Error("Failed to update booking", "id", id, "error", err)
		return nil, s.mapRepoError(id, "Failed to update booking", err)
	}

	s.publish(ctx, events.BookingUpdatedEvent(updated, actor))
	s.cfg.Log.Info("Booking updated successfully", "id", id, "actor", actor)
	return updated, nil
}

// Delete removes a single booking. Counters are left alone, so the removed
// token number is not reissued.
func (s *bookingService) Delete(ctx context.Context, id, actor string) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		if !errors.Is(err, bookingserrors.ErrNotFound) {
			s.cfg.Log.Error("Failed to delete booking", "id", id, "error", err)
		}
		return s.mapRepoError(id, "Failed to delete booking", err)
	}

	s.publish(ctx, events.BookingDeletedEvent(deleted, actor))
	s.cfg.Log.Info("Booking deleted successfully", "id", id, "actor", actor)
	return nil
}

// DeleteAll purges every booking in batches, then clears the daily counts and,
// when resetCounter names a date, resets that date's counter. The steps are
// not atomic. A failed step stops the purge, and the partial result is
// returned inside a PARTIAL_FAILURE error.
func (s *bookingService) DeleteAll(ctx context.Context, resetCounter, actor string) (*model.BulkDeleteResult, error) {
	resetCounter = sanitizer.TrimAndNormalize(resetCounter)
	if resetCounter != "" && !policy.IsValidDateCode(resetCounter) {
		return nil, apperrors.InvalidDate(resetCounter, "malformed")
	}

	// Once started the purge runs to the end or to its own deadline, even if
	// the admin navigates away.
	ctx, cancel := mongotx.Detach(ctx, s.cfg.BulkDeleteTimeout)
	defer cancel()

	result := &model.BulkDeleteResult{}
	s.runBulkDelete(ctx, resetCounter, result)

	if result.BookingsDeleted > 0 || result.DailyCountsCleared {
		s.publish(ctx, events.BookingsPurgedEvent(result, actor))
	}

	if result.Failed() {
		s.cfg.Log.Error("Bulk delete finished with failures",
			"bookings_deleted", result.BookingsDeleted,
			"daily_counts_cleared", result.DailyCountsCleared,
			"failures", result.Failures,
		)
		return result, apperrors.PartialFailure("Bulk delete did not complete", map[string]any{
			"result": result,
		})
	}

	s.cfg.Log.Info("Bookings purged successfully",
		"bookings_deleted", result.BookingsDeleted,
		"counter_reset", result.CounterReset,
		"actor", actor,
	)
	return result, nil
}

func (s *bookingService) runBulkDelete(ctx context.Context, resetCounter string, result *model.BulkDeleteResult) {
	batch := s.cfg.DeleteBatchSize
	if batch <= 0 {
		batch = config.DefaultDeleteBatchSize
	}

	for {
		ids, err := s.repo.ListIDs(ctx, batch)
		if err != nil {
			result.Failures = append(result.Failures, model.BulkStepFailure{Step: StepDeleteBookings, Error: err.Error()})
			return
		}
		if len(ids) == 0 {
			break
		}

		deleted, err := s.repo.DeleteBatch(ctx, ids)
		result.BookingsDeleted += deleted
		if err != nil {
			result.Failures = append(result.Failures, model.BulkStepFailure{Step: StepDeleteBookings, Error: err.Error()})
			return
		}
		if deleted == 0 {
			result.Failures = append(result.Failures, model.BulkStepFailure{Step: StepDeleteBookings, Error: "batch deleted no bookings"})
			return
		}
		s.cfg.Log.Debug("Deleted booking batch", "deleted", deleted, "total", result.BookingsDeleted)
	}

	if err := s.counters.ClearDailyCounts(ctx); err != nil {
		result.Failures = append(result.Failures, model.BulkStepFailure{Step: StepClearDailyCounts, Error: err.Error()})
		return
	}
	result.DailyCountsCleared = true

	if resetCounter == "" {
		return
	}
	if err := s.counters.SetCurrent(ctx, resetCounter, 0); err != nil {
		result.Failures = append(result.Failures, model.BulkStepFailure{Step: StepResetCounter, Error: err.Error()})
		return
	}
	result.CounterReset = resetCounter
}

func (s *bookingService) mapRepoError(id, message string, err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	return mongotx.StoreError(message, err)
}

func (s *bookingService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish event",
			"event_type", event.Type,
			"date_code", event.DateCode,
			"error", err,
		)
	}
}
