package locale

import (
	"testing"
)

func TestInferCountryFromPhone(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		wantCode string
		wantNil  bool
	}{
		{
			name:     "Pakistan mobile",
			phone:    "+923001234567",
			wantCode: "PK",
		},
		{
			name:     "India mobile",
			phone:    "+919876543210",
			wantCode: "IN",
		},
		{
			name:     "Bangladesh uses the longer prefix",
			phone:    "+8801712345678",
			wantCode: "BD",
		},
		{
			name:     "surrounding spaces",
			phone:    "  +12125551234 ",
			wantCode: "US",
		},
		{
			name:    "national format has no prefix",
			phone:   "03001234567",
			wantNil: true,
		},
		{
			name:    "unknown country",
			phone:   "+4930123456",
			wantNil: true,
		},
		{
			name:    "empty phone",
			phone:   "",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferCountryFromPhone(tt.phone)
			if tt.wantNil {
				if got != nil {
					t.Errorf("InferCountryFromPhone(%q) = %v, want nil", tt.phone, got.Code)
				}
				return
			}
			if got == nil {
				t.Fatalf("InferCountryFromPhone(%q) = nil, want %s", tt.phone, tt.wantCode)
			}
			if got.Code != tt.wantCode {
				t.Errorf("InferCountryFromPhone(%q) = %s, want %s", tt.phone, got.Code, tt.wantCode)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	loc, err := Location("", "IN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "Asia/Kolkata" {
		t.Errorf("expected region default zone, got %s", loc)
	}

	loc, err = Location("UTC", "IN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "UTC" {
		t.Errorf("explicit zone should win, got %s", loc)
	}

	if _, err := Location("Mars/Olympus", ""); err == nil {
		t.Error("expected error for unknown zone")
	}
}
