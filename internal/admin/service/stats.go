package service

import (
	"context"
	"tokenq/internal/schedules/policy"
	"tokenq/pkg/config"
	mongotx "tokenq/pkg/db/mongo"
	apperrors "tokenq/pkg/errors"
	"tokenq/pkg/model"

	"golang.org/x/sync/errgroup"
)

type BookingCounter interface {
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)
	CountByDate(ctx context.Context, dateCode string) (int64, error)
}

type CounterReader interface {
	GetCurrent(ctx context.Context, dateCode string) (uint, error)
}

type StatsService interface {
	Stats(ctx context.Context, dateCode string) (*model.Stats, error)
}

type statsService struct {
	bookings BookingCounter
	counters CounterReader
	cfg      *config.Config
}

func NewStatsService(bookings BookingCounter, counters CounterReader, cfg *config.Config) StatsService {
	return &statsService{
		bookings: bookings,
		counters: counters,
		cfg:      cfg,
	}
}

// Stats summarises the ledger for the dashboard: all bookings, bookings of
// dateCode (today when empty) and the token that date would issue next.
func (s *statsService) Stats(ctx context.Context, dateCode string) (*model.Stats, error) {
	today := s.cfg.Today()
	if dateCode == "" {
		dateCode = today
	}
	if !policy.IsValidDateCode(dateCode) {
		return nil, apperrors.InvalidDate(dateCode, "malformed")
	}

	stats := &model.Stats{Today: today, DateCode: dateCode}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.bookings.Count(gctx, model.BookingFilter{})
		if err != nil {
			return mongotx.StoreError("Failed to count bookings", err)
		}
		stats.TotalBookings = total
		return nil
	})
	g.Go(func() error {
		n, err := s.bookings.CountByDate(gctx, dateCode)
		if err != nil {
			return mongotx.StoreError("Failed to count bookings for date", err)
		}
		stats.TodayCount = n
		return nil
	})
	g.Go(func() error {
		current, err := s.counters.GetCurrent(gctx, dateCode)
		if err != nil {
			return mongotx.StoreError("Failed to read counter", err)
		}
		stats.NextToken = current + 1
		return nil
	})
	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Failed to compute stats", "date_code", dateCode, "error", err)
		return nil, err
	}

	return stats, nil
}
