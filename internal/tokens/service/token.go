package service

import (
	"context"
	"errors"
	"time"
	bookingserrors "tokenq/internal/bookings/errors"
	bookingsrepo "tokenq/internal/bookings/repository"
	"tokenq/internal/events"
	schedulesrepo "tokenq/internal/schedules/repository"
	"tokenq/internal/schedules/policy"
	"tokenq/internal/tokens/repository"
	"tokenq/internal/tokens/validator"
	"tokenq/pkg/config"
	mongotx "tokenq/pkg/db/mongo"
	apperrors "tokenq/pkg/errors"
	"tokenq/pkg/model"
	"tokenq/pkg/retry"
	"tokenq/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	MaxRetryDelay = 2 * time.Second
	MineLimit     = 50
)

// DateChecker applies the guest booking-date rules.
type DateChecker interface {
	CheckBookingDate(ctx context.Context, dateCode string) error
}

type TokenService interface {
	Allocate(ctx context.Context, req *model.AllocateRequest) (*model.Allocation, error)
	ResetCounter(ctx context.Context, dateCode, actor string) error
	NextToken(ctx context.Context, dateCode string) (uint, error)
	Mine(ctx context.Context, ownerRef string) ([]*model.Booking, error)
}

type tokenService struct {
	txManager mongotx.TransactionManager
	counters  repository.CounterRepository
	settings  schedulesrepo.SettingsRepository
	bookings  bookingsrepo.BookingRepository
	dates     DateChecker
	validator *validator.ContactValidator
	publisher events.Publisher
	strategy  retry.Strategy
	cfg       *config.Config
}

func NewTokenService(
	txManager mongotx.TransactionManager,
	counters repository.CounterRepository,
	settings schedulesrepo.SettingsRepository,
	bookings bookingsrepo.BookingRepository,
	dates DateChecker,
	validator *validator.ContactValidator,
	publisher events.Publisher,
	cfg *config.Config,
) TokenService {
	return &tokenService{
		txManager: txManager,
		counters:  counters,
		settings:  settings,
		bookings:  bookings,
		dates:     dates,
		validator: validator,
		publisher: publisher,
		strategy:  retry.NewExponentialWithJitter(cfg.AllocateRetryBaseDelay, MaxRetryDelay),
		cfg:       cfg,
	}
}

// Allocate issues the next token of a date. Numbering and the capacity check
// happen in one transaction, so concurrent callers get distinct, gap-free
// tokens and a day never exceeds its limit.
func (s *tokenService) Allocate(ctx context.Context, req *model.AllocateRequest) (*model.Allocation, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Allocation request is required")
	}
	if req.OwnerRef == "" {
		return nil, apperrors.Unauthorized("Owner reference is required")
	}

	req.Contact = sanitizer.SanitizeContact(req.Contact, s.cfg.PhoneRegion)
	if err := s.validator.Validate(&req.Contact); err != nil {
		s.cfg.Log.Warn("Contact validation failed", "owner_ref", req.OwnerRef, "error", err)
		return nil, apperrors.Validation("Contact validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if req.Emergency {
		req.DateCode = s.cfg.Today()
		req.DayLabel = model.ManualEntryLabel
	} else {
		req.DateCode = sanitizer.TrimAndNormalize(req.DateCode)
	}

	if existing, err := s.findPrevious(ctx, req.RequestKey); err != nil || existing != nil {
		if existing != nil {
			return replay(existing, req)
		}
		return nil, err
	}

	if !req.Emergency {
		if err := s.dates.CheckBookingDate(ctx, req.DateCode); err != nil {
			return nil, err
		}
		d, _ := policy.ParseDateCode(req.DateCode, s.cfg.Location)
		req.DayLabel = policy.DayLabel(d)
	}

	// From here on the caller going away must not abandon a commit that may
	// already have landed.
	ctx, cancel := mongotx.Detach(ctx, s.cfg.WriteOperationTimeout)
	defer cancel()

	var (
		booking *model.Booking
		counter *events.CounterState
	)
	err := retry.Do(ctx, s.cfg.AllocateMaxAttempts, s.strategy, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			s.cfg.Log.Warn("Retrying token allocation", "date_code", req.DateCode, "attempt", attempt)
		}
		return s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			var err error
			booking, counter, err = s.allocateInTx(sessCtx, req)
			return err
		})
	})
	if err != nil {
		if mongotx.IsUnknownCommit(err) {
			if existing, findErr := s.findPrevious(ctx, req.RequestKey); findErr == nil && existing != nil {
				s.cfg.Log.Info("Resolved unknown commit from request key", "booking_id", existing.ID)
				return replay(existing, req)
			}
		}
		s.logAllocateError(req, err)
		return nil, err
	}

	if counter == nil {
		return toAllocation(booking), nil
	}

	s.publish(ctx, events.BookingCreatedEvent(booking, *counter))
	s.cfg.Log.Info("Token allocated successfully",
		"booking_id", booking.ID,
		"date_code", booking.DateCode,
		"token", booking.TokenNumber,
		"emergency", req.Emergency,
	)
	return toAllocation(booking), nil
}

// allocateInTx is the transaction body. The driver may run it more than once.
// A nil counter state means an earlier attempt already created the booking.
func (s *tokenService) allocateInTx(ctx context.Context, req *model.AllocateRequest) (*model.Booking, *events.CounterState, error) {
	if req.RequestKey != "" {
		existing, err := s.bookings.FindByRequestKey(ctx, req.RequestKey)
		if err == nil {
			if existing.DateCode != req.DateCode {
				return nil, nil, requestKeyConflict(existing, req)
			}
			return existing, nil, nil
		}
		if !errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, nil, err
		}
	}

	current, err := s.counters.GetCurrent(ctx, req.DateCode)
	if err != nil {
		return nil, nil, err
	}
	count, err := s.counters.GetDailyCount(ctx, req.DateCode)
	if err != nil {
		return nil, nil, err
	}
	limit, err := s.settings.GetLimit(ctx, req.DateCode)
	if err != nil {
		return nil, nil, err
	}

	if policy.IsFull(limit, count) {
		return nil, nil, apperrors.CapacityExceeded(req.DateCode, limit)
	}

	booking := &model.Booking{
		TokenNumber: current + 1,
		Contact:     req.Contact,
		DayLabel:    req.DayLabel,
		DateCode:    req.DateCode,
		OwnerRef:    req.OwnerRef,
		RequestKey:  req.RequestKey,
	}
	if err := s.counters.SetCurrent(ctx, req.DateCode, booking.TokenNumber); err != nil {
		return nil, nil, err
	}
	if err := s.counters.SetDailyCount(ctx, req.DateCode, count+1); err != nil {
		return nil, nil, err
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, nil, err
	}

	return booking, &events.CounterState{
		DateCode:   req.DateCode,
		Current:    booking.TokenNumber,
		DailyCount: count + 1,
	}, nil
}

// findPrevious returns the booking an earlier attempt of the same request
// created, or nil.
func (s *tokenService) findPrevious(ctx context.Context, requestKey string) (*model.Booking, error) {
	if requestKey == "" {
		return nil, nil
	}
	existing, err := s.bookings.FindByRequestKey(ctx, requestKey)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, nil
		}
		return nil, mongotx.StoreError("Failed to check previous allocation", err)
	}
	return existing, nil
}

// replay answers a repeated request with the booking its first attempt made.
// A key reused for another date is a different request.
func replay(existing *model.Booking, req *model.AllocateRequest) (*model.Allocation, error) {
	if existing.DateCode != req.DateCode {
		return nil, requestKeyConflict(existing, req)
	}
	return toAllocation(existing), nil
}

func requestKeyConflict(existing *model.Booking, req *model.AllocateRequest) error {
	return apperrors.Conflict("Idempotency-Key was already used for another booking").WithDetails(map[string]any{
		"date_code":          req.DateCode,
		"original_date_code": existing.DateCode,
	})
}

func (s *tokenService) logAllocateError(req *model.AllocateRequest, err error) {
	appErr := apperrors.AsAppError(err)
	switch appErr.Code {
	case apperrors.CodeCapacityExceeded, apperrors.CodeInvalidDate, apperrors.CodeConflict:
		s.cfg.Log.Info("Token allocation rejected", "date_code", req.DateCode, "code", appErr.Code)
	default:
		s.cfg.Log.Error("Failed to allocate token",
			"date_code", req.DateCode,
			"owner_ref", req.OwnerRef,
			"error", err,
		)
	}
}

// ResetCounter makes the next allocation for dateCode yield token 1.
// Bookings and the daily count are left as they are.
func (s *tokenService) ResetCounter(ctx context.Context, dateCode, actor string) error {
	if !policy.IsValidDateCode(dateCode) {
		return apperrors.InvalidDate(dateCode, "malformed")
	}

	ctx, cancel := mongotx.Detach(ctx, s.cfg.WriteOperationTimeout)
	defer cancel()

	if err := s.counters.SetCurrent(ctx, dateCode, 0); err != nil {
		s.cfg.Log.Error("Failed to reset counter", "date_code", dateCode, "error", err)
		return mongotx.StoreError("Failed to reset counter", err)
	}

	s.publish(ctx, events.CounterResetEvent(dateCode, actor))
	s.cfg.Log.Info("Counter reset successfully", "date_code", dateCode, "actor", actor)
	return nil
}

// NextToken is informational; the number can be taken by another caller
// before it is used.
func (s *tokenService) NextToken(ctx context.Context, dateCode string) (uint, error) {
	if !policy.IsValidDateCode(dateCode) {
		return 0, apperrors.InvalidDate(dateCode, "malformed")
	}

	current, err := s.counters.GetCurrent(ctx, dateCode)
	if err != nil {
		return 0, mongotx.StoreError("Failed to read counter", err)
	}
	return current + 1, nil
}

func (s *tokenService) Mine(ctx context.Context, ownerRef string) ([]*model.Booking, error) {
	if ownerRef == "" {
		return []*model.Booking{}, nil
	}

	bookings, err := s.bookings.List(ctx, model.BookingFilter{OwnerRef: ownerRef}, MineLimit, 0)
	if err != nil {
		s.cfg.Log.Error("Failed to list owner bookings", "owner_ref", ownerRef, "error", err)
		return nil, mongotx.StoreError("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *tokenService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish event",
			"event_type", event.Type,
			"date_code", event.DateCode,
			"error", err,
		)
	}
}

func toAllocation(b *model.Booking) *model.Allocation {
	return &model.Allocation{
		TokenNumber:  b.TokenNumber,
		TokenDisplay: b.TokenDisplay(),
		BookingID:    b.ID,
		DateCode:     b.DateCode,
		DayLabel:     b.DayLabel,
	}
}
