package locale

import (
	"fmt"
	"strings"
	"time"
)

// InferCountryFromPhone matches an E.164 number against the known dialling
// prefixes. The longest matching prefix wins so "+880" is not read as "+88".
func InferCountryFromPhone(phone string) *Country {
	normalized := strings.TrimSpace(phone)
	if !strings.HasPrefix(normalized, "+") {
		return nil
	}

	var best *Country
	bestLen := 0
	for _, country := range Countries {
		for _, prefix := range country.PhonePrefixes {
			if strings.HasPrefix(normalized, prefix) && len(prefix) > bestLen {
				c := country
				best = &c
				bestLen = len(prefix)
			}
		}
	}
	return best
}

func IsSupportedRegion(region string) bool {
	_, ok := Countries[strings.ToUpper(region)]
	return ok
}

// TimezoneForRegion returns the default IANA zone of a region, or UTC.
func TimezoneForRegion(region string) string {
	if country, ok := Countries[strings.ToUpper(region)]; ok {
		return country.DefaultTimezone
	}
	return DefaultTimezone
}

// Location resolves the service location. An explicit zone takes precedence
// over the region default.
func Location(timezone, region string) (*time.Location, error) {
	if timezone == "" {
		timezone = TimezoneForRegion(region)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", timezone, err)
	}
	return loc, nil
}
