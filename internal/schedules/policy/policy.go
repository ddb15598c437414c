// Package policy holds the pure calendar rules: which days can be booked,
// when a day is full and how days are labelled.
package policy

import (
	"fmt"
	"strconv"
	"time"
	scheduleserrors "tokenq/internal/schedules/errors"
	"tokenq/pkg/model"
)

const DefaultHorizonDays = 7

// Calendar is the booking window as seen from one service-local day.
type Calendar struct {
	Today         time.Time
	HorizonDays   int
	ClosedWeekday time.Weekday
}

func NewCalendar(now time.Time, horizonDays int, closed time.Weekday) Calendar {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return Calendar{
		Today:         StartOfDay(now),
		HorizonDays:   horizonDays,
		ClosedWeekday: closed,
	}
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (c Calendar) TodayCode() string {
	return c.Today.Format(model.DateLayout)
}

// Dates lists the days of the horizon, today first.
func (c Calendar) Dates() []time.Time {
	out := make([]time.Time, 0, c.HorizonDays)
	for i := range c.HorizonDays {
		out = append(out, c.Today.AddDate(0, 0, i))
	}
	return out
}

func ParseDateCode(code string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(model.DateLayout, code, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", scheduleserrors.ErrMalformedDate, code)
	}
	return t, nil
}

func IsValidDateCode(code string) bool {
	_, err := time.Parse(model.DateLayout, code)
	return err == nil
}

// IsFull reports whether a day with the given limit has no tokens left. A
// zero limit means unlimited.
func IsFull(limit, count uint) bool {
	return limit > 0 && count >= limit
}

// EligibleDays lists the bookable days of the horizon. Closed-weekday and
// blocked dates are omitted; full days stay in the list marked Full.
func (c Calendar) EligibleDays(cfg *model.ScheduleConfig, counts map[string]uint) []model.Day {
	if cfg == nil {
		cfg = &model.ScheduleConfig{}
	}
	blocked := cfg.BlockedSet()

	days := make([]model.Day, 0, c.HorizonDays)
	for _, d := range c.Dates() {
		code := d.Format(model.DateLayout)
		if d.Weekday() == c.ClosedWeekday || blocked[code] {
			continue
		}
		limit := cfg.LimitFor(code)
		count := counts[code]
		days = append(days, model.Day{
			DateCode: code,
			Label:    DayLabel(d),
			Full:     IsFull(limit, count),
			Limit:    limit,
			Count:    count,
		})
	}
	return days
}

// ValidateBookingDate rejects a date a guest may not book. Capacity is not
// checked here; the allocation transaction owns that decision.
func (c Calendar) ValidateBookingDate(dateCode string, cfg *model.ScheduleConfig) error {
	d, err := ParseDateCode(dateCode, c.Today.Location())
	if err != nil {
		return err
	}
	if d.Before(c.Today) || !d.Before(c.Today.AddDate(0, 0, c.HorizonDays)) {
		return fmt.Errorf("%w: %s", scheduleserrors.ErrOutOfHorizon, dateCode)
	}
	if d.Weekday() == c.ClosedWeekday {
		return fmt.Errorf("%w: %s is a %s", scheduleserrors.ErrClosedWeekday, dateCode, d.Weekday())
	}
	if cfg != nil && cfg.IsBlocked(dateCode) {
		return fmt.Errorf("%w: %s", scheduleserrors.ErrBlockedDate, dateCode)
	}
	return nil
}

// ServiceDays builds the admin grid for days consecutive dates from from.
func ServiceDays(from time.Time, days int, closed time.Weekday, cfg *model.ScheduleConfig, counts, lastTokens map[string]uint) []model.ServiceDay {
	if cfg == nil {
		cfg = &model.ScheduleConfig{}
	}
	blocked := cfg.BlockedSet()
	from = StartOfDay(from)

	out := make([]model.ServiceDay, 0, days)
	for i := range days {
		d := from.AddDate(0, 0, i)
		code := d.Format(model.DateLayout)
		limit := cfg.LimitFor(code)
		out = append(out, model.ServiceDay{
			DateCode:   code,
			Label:      DayLabel(d),
			Weekday:    d.Weekday().String(),
			Closed:     d.Weekday() == closed,
			Blocked:    blocked[code],
			Limit:      limit,
			DailyCount: counts[code],
			LastToken:  lastTokens[code],
			Full:       IsFull(limit, counts[code]),
		})
	}
	return out
}

// DayLabel renders "Monday, 3rd".
func DayLabel(d time.Time) string {
	return d.Weekday().String() + ", " + Ordinal(d.Day())
}

func Ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
