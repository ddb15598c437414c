package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		MongoURI:                  DefaultMongoURI,
		MongoDatabaseName:         DefaultMongoDatabaseName,
		MongoConnTimeout:          DefaultMongoConnTimeout,
		Port:                      DefaultPort,
		RateLimitRequests:         DefaultRateLimitRequests,
		RateLimitWindow:           DefaultRateLimitWindow,
		RequestTimeout:            DefaultRequestTimeout,
		IdempotencyTTL:            DefaultIdempotencyTTL,
		MaxRequestSize:            DefaultMaxRequestSize,
		ReadTimeout:               DefaultReadTimeout,
		WriteTimeout:              DefaultWriteTimeout,
		IdleTimeout:               DefaultIdleTimeout,
		ShutdownTimeout:           DefaultShutdownTimeout,
		ServiceTimeZone:           "UTC",
		PhoneRegion:               DefaultPhoneRegion,
		BookingHorizonDays:        DefaultBookingHorizonDays,
		ClosedWeekdayName:         DefaultClosedWeekday,
		AllocateMaxAttempts:       DefaultAllocateMaxAttempts,
		AllocateRetryBaseDelay:    DefaultAllocateRetryBaseDelay,
		DeleteBatchSize:           DefaultDeleteBatchSize,
		WriteOperationTimeout:     DefaultWriteOperationTimeout,
		BulkDeleteTimeout:         DefaultBulkDeleteTimeout,
		ProjectionRefreshInterval: DefaultProjectionRefreshInterval,
	}
}

func TestValidate_Timeouts(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "write timeout shorter than request timeout",
			mutate:  func(c *Config) { c.WriteTimeout = 15 * time.Second },
			wantErr: "must not be shorter than RequestTimeout",
		},
		{
			name:    "no write operation budget",
			mutate:  func(c *Config) { c.WriteOperationTimeout = 0 },
			wantErr: "WriteOperationTimeout must be positive",
		},
		{
			name:    "no bulk delete budget",
			mutate:  func(c *Config) { c.BulkDeleteTimeout = -time.Second },
			wantErr: "BulkDeleteTimeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				if cfg.Location == nil || cfg.ClosedWeekday != time.Friday {
					t.Errorf("derived fields not set: location = %v, closed = %v", cfg.Location, cfg.ClosedWeekday)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
