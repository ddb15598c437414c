package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvAdminJWTSecret = "ADMIN_JWT_SECRET"
	EnvAdminJWTIssuer = "ADMIN_JWT_ISSUER"
	EnvSessionSealKey = "SESSION_SEAL_KEY"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvServiceTimeZone        = "SERVICE_TIME_ZONE"
	EnvPhoneRegion            = "PHONE_REGION"
	EnvBookingHorizonDays     = "BOOKING_HORIZON_DAYS"
	EnvClosedWeekday          = "CLOSED_WEEKDAY"
	EnvAllocateMaxAttempts    = "ALLOCATE_MAX_ATTEMPTS"
	EnvAllocateRetryBaseDelay = "ALLOCATE_RETRY_BASE_DELAY"
	EnvDeleteBatchSize        = "DELETE_BATCH_SIZE"
	EnvWriteOperationTimeout  = "WRITE_OPERATION_TIMEOUT"
	EnvBulkDeleteTimeout      = "BULK_DELETE_TIMEOUT"

	EnvKafkaEnabled              = "KAFKA_ENABLED"
	EnvBookingEventsTopic        = "BOOKING_EVENTS_TOPIC"
	EnvBookingEventsDLQTopic     = "BOOKING_EVENTS_DLQ_TOPIC"
	EnvProjectionConsumerGroup   = "PROJECTION_CONSUMER_GROUP"
	EnvProjectionRefreshInterval = "PROJECTION_REFRESH_INTERVAL"
)
