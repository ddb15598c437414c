package model

import (
	"fmt"
	"time"
)

const (
	ManualEntryLabel = "Manual Entry"

	OwnerGuestPrefix = "guest:"
	OwnerAdminPrefix = "admin:"
)

type Contact struct {
	Name   string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Mobile string `json:"mobile" bson:"mobile" validate:"required,e164"`
	City   string `json:"city" bson:"city" validate:"required,min=2,max=100"`
}

// Booking is one issued queue token. TokenNumber, DateCode and DayLabel are
// fixed at creation; only the embedded Contact may change afterwards.
type Booking struct {
	ID          string `json:"id,omitempty" bson:"_id,omitempty"`
	TokenNumber uint   `json:"token_number" bson:"token_number"`
	Contact     `bson:",inline"`
	DayLabel    string    `json:"day_label" bson:"day_label"`
	DateCode    string    `json:"date_code" bson:"date_code"`
	OwnerRef    string    `json:"owner_ref" bson:"owner_ref"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	// RequestKey is the derived Idempotency-Key of the allocating request.
	RequestKey string `json:"-" bson:"request_key,omitempty"`
}

func (b *Booking) TokenDisplay() string {
	return FormatToken(b.TokenNumber)
}

// FormatToken renders a token the way it is printed on the slip: "#01".
func FormatToken(token uint) string {
	return fmt.Sprintf("#%02d", token)
}

// ContactUpdate is the whole edit contract for an existing booking.
type ContactUpdate struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Mobile *string `json:"mobile,omitempty" validate:"omitempty"`
	City   *string `json:"city,omitempty" validate:"omitempty,min=2,max=100"`
}

func (u *ContactUpdate) IsEmpty() bool {
	return u.Name == nil && u.Mobile == nil && u.City == nil
}

// Apply returns existing with the non-nil fields of u applied.
func (u *ContactUpdate) Apply(existing Contact) Contact {
	merged := existing
	if u.Name != nil {
		merged.Name = *u.Name
	}
	if u.Mobile != nil {
		merged.Mobile = *u.Mobile
	}
	if u.City != nil {
		merged.City = *u.City
	}
	return merged
}

type AllocateRequest struct {
	DateCode  string  `json:"date_code"`
	DayLabel  string  `json:"day_label"`
	Contact   Contact `json:"contact"`
	Emergency bool    `json:"emergency,omitempty"`
	OwnerRef  string  `json:"-"`
	// RequestKey lets a retry whose first attempt committed find that booking.
	RequestKey string `json:"-"`
}

type Allocation struct {
	TokenNumber  uint   `json:"token_number"`
	TokenDisplay string `json:"token_display"`
	BookingID    string `json:"booking_id"`
	DateCode     string `json:"date_code"`
	DayLabel     string `json:"day_label"`
}

const (
	TabActive  = "active"
	TabHistory = "history"
)

// BookingFilter drives the admin listing. Today is required when Tab is set.
type BookingFilter struct {
	Query    string
	DayLabel string
	DateCode string
	OwnerRef string
	Tab      string
	Today    string
}

type BulkStepFailure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

type BulkDeleteResult struct {
	BookingsDeleted    int64             `json:"bookings_deleted"`
	DailyCountsCleared bool              `json:"daily_counts_cleared"`
	CounterReset       string            `json:"counter_reset,omitempty"`
	Failures           []BulkStepFailure `json:"failures,omitempty"`
}

func (r *BulkDeleteResult) Failed() bool {
	return len(r.Failures) > 0
}

type Stats struct {
	TotalBookings int64  `json:"total_bookings"`
	TodayCount    int64  `json:"today_count"`
	Today         string `json:"today"`
	DateCode      string `json:"date_code"`
	NextToken     uint   `json:"next_token"`
}
