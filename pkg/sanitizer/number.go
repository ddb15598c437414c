package sanitizer

const (
	MinDailyLimit = 0

	MaxDailyLimit = 10000
)

func ClampLimit(limit int64) uint {
	if limit < MinDailyLimit {
		return MinDailyLimit
	}
	if limit > MaxDailyLimit {
		return MaxDailyLimit
	}
	return uint(limit)
}
