package errors

import "errors"

// Booking date rejections. Reason returns the code reported to clients.
var (
	ErrMalformedDate = errors.New("malformed")
	ErrOutOfHorizon  = errors.New("out_of_horizon")
	ErrClosedWeekday = errors.New("closed_weekday")
	ErrBlockedDate   = errors.New("blocked")
)

func Reason(err error) string {
	for _, target := range []error{ErrMalformedDate, ErrOutOfHorizon, ErrClosedWeekday, ErrBlockedDate} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}
