// Package events publishes booking-domain changes after they commit.
// Consumers such as the live projection rebuild read models from them.
package events

import (
	"context"
	"time"
	"tokenq/pkg/model"
)

type Type string

const (
	BookingCreated    Type = "booking.created"
	BookingUpdated    Type = "booking.updated"
	BookingDeleted    Type = "booking.deleted"
	BookingsPurged    Type = "bookings.purged"
	CounterReset      Type = "counter.reset"
	ScheduleUpdated   Type = "schedule.updated"
	SiteConfigUpdated Type = "site_config.updated"

	SchemaVersion = "1"
	settingsKey   = "settings"
)

// CounterState is the counter of one date right after a commit.
type CounterState struct {
	DateCode   string `json:"date_code"`
	Current    uint   `json:"current"`
	DailyCount uint   `json:"daily_count"`
}

type Event struct {
	Type       Type                    `json:"type"`
	DateCode   string                  `json:"date_code,omitempty"`
	Booking    *model.Booking          `json:"booking,omitempty"`
	BookingID  string                  `json:"booking_id,omitempty"`
	Counter    *CounterState           `json:"counter,omitempty"`
	Purge      *model.BulkDeleteResult `json:"purge,omitempty"`
	Schedule   *model.ScheduleConfig   `json:"schedule,omitempty"`
	SiteConfig *model.SiteConfig       `json:"site_config,omitempty"`
	Actor      string                  `json:"actor,omitempty"`
	OccurredAt time.Time               `json:"occurred_at"`
}

// Key orders events of one date on one partition. Settings changes share a
// single key.
func (e Event) Key() string {
	if e.DateCode != "" {
		return e.DateCode
	}
	return settingsKey
}

// Publisher delivers events. Callers publish after commit and treat a
// failure as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

func BookingCreatedEvent(booking *model.Booking, counter CounterState) Event {
	return Event{
		Type:       BookingCreated,
		DateCode:   booking.DateCode,
		Booking:    booking,
		BookingID:  booking.ID,
		Counter:    &counter,
		Actor:      booking.OwnerRef,
		OccurredAt: time.Now().UTC(),
	}
}

func BookingUpdatedEvent(booking *model.Booking, actor string) Event {
	return Event{
		Type:       BookingUpdated,
		DateCode:   booking.DateCode,
		Booking:    booking,
		BookingID:  booking.ID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

func BookingDeletedEvent(booking *model.Booking, actor string) Event {
	return Event{
		Type:       BookingDeleted,
		DateCode:   booking.DateCode,
		BookingID:  booking.ID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

func BookingsPurgedEvent(result *model.BulkDeleteResult, actor string) Event {
	return Event{
		Type:       BookingsPurged,
		Purge:      result,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

func CounterResetEvent(dateCode, actor string) Event {
	return Event{
		Type:       CounterReset,
		DateCode:   dateCode,
		Counter:    &CounterState{DateCode: dateCode},
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

func ScheduleUpdatedEvent(cfg *model.ScheduleConfig, actor string) Event {
	return Event{
		Type:       ScheduleUpdated,
		Schedule:   cfg,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

func SiteConfigUpdatedEvent(cfg *model.SiteConfig, actor string) Event {
	return Event{
		Type:       SiteConfigUpdated,
		SiteConfig: cfg,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}
