package sanitizer

import (
	"slices"
	"strings"
)

func NormalizeStringSlice(items []string, normalizer func(string) string) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	result := make([]string, 0, len(items))

	for _, item := range items {
		normalized := normalizer(item)

		if normalized == "" {
			continue
		}

		if seen[normalized] {
			continue
		}

		seen[normalized] = true
		result = append(result, normalized)
	}

	return result
}

// NormalizeDateCodes trims, dedupes and sorts a blocked-date list. Format is
// checked by the validator, not here.
func NormalizeDateCodes(codes []string) []string {
	out := NormalizeStringSlice(codes, strings.TrimSpace)
	slices.Sort(out)
	return out
}

// NormalizeLimits trims keys and drops zero limits, which mean "unlimited"
// and need no entry.
func NormalizeLimits(limits map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(limits))
	for dateCode, limit := range limits {
		dateCode = strings.TrimSpace(dateCode)
		if dateCode == "" || limit == 0 {
			continue
		}
		out[dateCode] = limit
	}
	return out
}
