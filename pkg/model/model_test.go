package model

import "testing"

func TestFormatToken(t *testing.T) {
	tests := []struct {
		token uint
		want  string
	}{
		{0, "#00"},
		{1, "#01"},
		{9, "#09"},
		{42, "#42"},
		{150, "#150"},
	}

	for _, tt := range tests {
		if got := FormatToken(tt.token); got != tt.want {
			t.Errorf("FormatToken(%d) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestContactUpdate_Apply(t *testing.T) {
	existing := Contact{Name: "Ayesha Khan", Mobile: "+923001234567", City: "Lahore"}
	city := "Karachi"
	name := "Ayesha K."

	tests := []struct {
		name      string
		update    ContactUpdate
		want      Contact
		wantEmpty bool
	}{
		{name: "empty", update: ContactUpdate{}, want: existing, wantEmpty: true},
		{name: "city only", update: ContactUpdate{City: &city}, want: Contact{Name: "Ayesha Khan", Mobile: "+923001234567", City: "Karachi"}},
		{name: "name and city", update: ContactUpdate{Name: &name, City: &city}, want: Contact{Name: "Ayesha K.", Mobile: "+923001234567", City: "Karachi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.update.IsEmpty() != tt.wantEmpty {
				t.Errorf("IsEmpty() = %v, want %v", tt.update.IsEmpty(), tt.wantEmpty)
			}
			if got := tt.update.Apply(existing); got != tt.want {
				t.Errorf("Apply() = %+v, want %+v", got, tt.want)
			}
		})
	}
	if existing.City != "Lahore" {
		t.Error("Apply mutated its input")
	}
}

func TestScheduleConfig(t *testing.T) {
	cfg := &ScheduleConfig{
		Blocked: []string{"2026-01-05"},
		Limits:  map[string]uint{"2026-01-06": 20},
	}

	if !cfg.IsBlocked("2026-01-05") || cfg.IsBlocked("2026-01-06") {
		t.Error("IsBlocked() mismatch")
	}
	if cfg.LimitFor("2026-01-06") != 20 || cfg.LimitFor("2026-01-07") != 0 {
		t.Error("LimitFor() mismatch")
	}
	if got := (&ScheduleConfig{}).LimitFor("2026-01-06"); got != 0 {
		t.Errorf("LimitFor() on empty config = %d", got)
	}
	if set := cfg.BlockedSet(); !set["2026-01-05"] || len(set) != 1 {
		t.Errorf("BlockedSet() = %v", set)
	}
}

func TestBookingTokenDisplay(t *testing.T) {
	b := &Booking{TokenNumber: 5}
	if b.TokenDisplay() != "#05" {
		t.Errorf("TokenDisplay() = %q", b.TokenDisplay())
	}
	r := &BulkDeleteResult{}
	if r.Failed() {
		t.Error("empty result reported as failed")
	}
	r.Failures = append(r.Failures, BulkStepFailure{Step: "delete_bookings", Error: "boom"})
	if !r.Failed() {
		t.Error("result with failures not reported as failed")
	}
}
