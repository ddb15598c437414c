package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017/?replicaSet=rs0"
	DefaultMongoDatabaseName = "tokenq"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisDB = 0

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultAdminJWTIssuer = "tokenq-admin"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 64 * 1024 // 64KB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 35 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPhoneRegion            = "PK"
	DefaultBookingHorizonDays     = 7
	DefaultClosedWeekday          = "friday"
	DefaultAllocateMaxAttempts    = 3
	DefaultAllocateRetryBaseDelay = 50 * time.Millisecond
	DefaultDeleteBatchSize        = 500
	DefaultWriteOperationTimeout  = 20 * time.Second
	DefaultBulkDeleteTimeout      = 5 * time.Minute

	DefaultKafkaEnabled              = false
	DefaultBookingEventsTopic        = "tokenq.booking-events"
	DefaultBookingEventsDLQTopic     = "tokenq.booking-events.dlq"
	DefaultProjectionRefreshInterval = 30 * time.Second

	DefaultPaginationLimit = 100
)
