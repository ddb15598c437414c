package model

import "time"

const (
	CalendarConfigID = "calendar_config"
	SiteConfigID     = "site_config"
	DailyCountsID    = "daily_counts"

	DateLayout = "2006-01-02"
)

// ScheduleConfig is replaced as a whole on every save.
type ScheduleConfig struct {
	Blocked   []string        `json:"blocked" bson:"blocked"`
	Limits    map[string]uint `json:"limits" bson:"limits"`
	UpdatedAt time.Time       `json:"updated_at,omitzero" bson:"updated_at,omitempty"`
	UpdatedBy string          `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
}

func (c *ScheduleConfig) IsBlocked(dateCode string) bool {
	for _, d := range c.Blocked {
		if d == dateCode {
			return true
		}
	}
	return false
}

func (c *ScheduleConfig) LimitFor(dateCode string) uint {
	if c.Limits == nil {
		return 0
	}
	return c.Limits[dateCode]
}

func (c *ScheduleConfig) BlockedSet() map[string]bool {
	set := make(map[string]bool, len(c.Blocked))
	for _, d := range c.Blocked {
		set[d] = true
	}
	return set
}

// ScheduleUpdate is the admin save payload. Limits are signed so negative
// input reaches the validator instead of failing JSON decoding.
type ScheduleUpdate struct {
	Blocked []string         `json:"blocked" validate:"omitempty,dive,datecode"`
	Limits  map[string]int64 `json:"limits" validate:"omitempty,dive,keys,datecode,endkeys,token_limit"`
}

type SiteConfig struct {
	MaintenanceMode bool      `json:"maintenance_mode" bson:"maintenance_mode"`
	ShowPopup       bool      `json:"show_popup" bson:"show_popup"`
	PopupMessage    string    `json:"popup_message" bson:"popup_message" validate:"max=1000"`
	PopupImageURL   string    `json:"popup_image_url" bson:"popup_image_url" validate:"omitempty,url,max=2048"`
	UpdatedAt       time.Time `json:"updated_at,omitzero" bson:"updated_at,omitempty"`
}

// Day is one entry of the public eligible-days list.
type Day struct {
	DateCode string `json:"date_code"`
	Label    string `json:"label"`
	Full     bool   `json:"full"`
	Limit    uint   `json:"limit"`
	Count    uint   `json:"count"`
}

// ServiceDay is the admin view of a single date.
type ServiceDay struct {
	DateCode   string `json:"date_code"`
	Label      string `json:"label"`
	Weekday    string `json:"weekday"`
	Closed     bool   `json:"closed"`
	Blocked    bool   `json:"blocked"`
	Limit      uint   `json:"limit"`
	DailyCount uint   `json:"daily_count"`
	LastToken  uint   `json:"last_token"`
	Full       bool   `json:"full"`
}
