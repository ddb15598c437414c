package locale

const (
	DefaultRegion   = "PK"
	DefaultTimezone = "UTC"
)

type Country struct {
	Code            string   // ISO 3166-1 alpha-2 country code (e.g., "PK", "IN")
	Name            string   // Human-readable country name
	PhonePrefixes   []string // Dialling prefixes in E.164 form (e.g., ["+92"])
	DefaultTimezone string   // IANA timezone identifier (e.g., "Asia/Karachi")
}

var (
	Countries = map[string]Country{
		"PK": {
			Code:            "PK",
			Name:            "Pakistan",
			PhonePrefixes:   []string{"+92"},
			DefaultTimezone: "Asia/Karachi",
		},
		"IN": {
			Code:            "IN",
			Name:            "India",
			PhonePrefixes:   []string{"+91"},
			DefaultTimezone: "Asia/Kolkata",
		},
		"BD": {
			Code:            "BD",
			Name:            "Bangladesh",
			PhonePrefixes:   []string{"+880"},
			DefaultTimezone: "Asia/Dhaka",
		},
		"AE": {
			Code:            "AE",
			Name:            "United Arab Emirates",
			PhonePrefixes:   []string{"+971"},
			DefaultTimezone: "Asia/Dubai",
		},
		"GB": {
			Code:            "GB",
			Name:            "United Kingdom",
			PhonePrefixes:   []string{"+44"},
			DefaultTimezone: "Europe/London",
		},
		"US": {
			Code:            "US",
			Name:            "United States",
			PhonePrefixes:   []string{"+1"},
			DefaultTimezone: "America/New_York",
		},
	}
)
