package sanitizer

import (
	"strings"
	"tokenq/pkg/locale"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone formats a mobile number as E.164. National numbers are read
// in the given region. Numbers that do not parse to a valid number return "".
func NormalizePhone(phone, region string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	if region == "" {
		region = locale.DefaultRegion
	}

	regions := []string{strings.ToUpper(region)}
	if country := locale.InferCountryFromPhone(phone); country != nil && country.Code != regions[0] {
		regions = append(regions, country.Code)
	}

	for _, r := range regions {
		parsed, err := phonenumbers.Parse(phone, r)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164)
		}
	}
	return ""
}
