package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	"tokenq/pkg/client"
	kafka_config "tokenq/pkg/kafka/config"
	"tokenq/pkg/locale"
	"tokenq/pkg/logger"

	"github.com/joho/godotenv"
)

// NoWeekday disables the closed-weekday rule; it never equals a real weekday.
const NoWeekday time.Weekday = -1

const dateLayout = "2006-01-02"

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port      string
	LogLevel  string
	LogFormat string

	AdminJWTSecret string
	AdminJWTIssuer string
	SessionSealKey string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ServiceTimeZone        string
	PhoneRegion            string
	Location               *time.Location
	BookingHorizonDays     int
	ClosedWeekdayName      string
	ClosedWeekday          time.Weekday
	AllocateMaxAttempts    int
	AllocateRetryBaseDelay time.Duration
	DeleteBatchSize        int
	// Write operations keep running after their request is cancelled, up
	// to these bounds.
	WriteOperationTimeout  time.Duration
	BulkDeleteTimeout      time.Duration

	KafkaEnabled              bool
	BookingEventsTopic        string
	BookingEventsDLQTopic     string
	ProjectionConsumerGroup   string
	ProjectionRefreshInterval time.Duration
	Kafka                     *kafka_config.Config

	// NowFunc overrides the wall clock; tests pin "today" with it.
	NowFunc func() time.Time

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, ""),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port:      getEnvStr(EnvPort, DefaultPort),
		LogLevel:  getEnvStr(EnvLogLevel, DefaultLogLevel),
		LogFormat: getEnvStr(EnvLogFormat, DefaultLogFormat),

		AdminJWTSecret: getEnvStr(EnvAdminJWTSecret, ""),
		AdminJWTIssuer: getEnvStr(EnvAdminJWTIssuer, DefaultAdminJWTIssuer),
		SessionSealKey: getEnvStr(EnvSessionSealKey, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ServiceTimeZone:        getEnvStr(EnvServiceTimeZone, ""),
		PhoneRegion:            strings.ToUpper(getEnvStr(EnvPhoneRegion, DefaultPhoneRegion)),
		BookingHorizonDays:     getEnvNum(EnvBookingHorizonDays, DefaultBookingHorizonDays),
		ClosedWeekdayName:      strings.ToLower(getEnvStr(EnvClosedWeekday, DefaultClosedWeekday)),
		AllocateMaxAttempts:    getEnvNum(EnvAllocateMaxAttempts, DefaultAllocateMaxAttempts),
		AllocateRetryBaseDelay: getEnvDuration(EnvAllocateRetryBaseDelay, DefaultAllocateRetryBaseDelay),
		DeleteBatchSize:        getEnvNum(EnvDeleteBatchSize, DefaultDeleteBatchSize),
		WriteOperationTimeout:  getEnvDuration(EnvWriteOperationTimeout, DefaultWriteOperationTimeout),
		BulkDeleteTimeout:      getEnvDuration(EnvBulkDeleteTimeout, DefaultBulkDeleteTimeout),

		KafkaEnabled:              getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		BookingEventsTopic:        getEnvStr(EnvBookingEventsTopic, DefaultBookingEventsTopic),
		BookingEventsDLQTopic:     getEnvStr(EnvBookingEventsDLQTopic, DefaultBookingEventsDLQTopic),
		ProjectionConsumerGroup:   getEnvStr(EnvProjectionConsumerGroup, "tokenq-"+serviceName+"-projection"),
		ProjectionRefreshInterval: getEnvDuration(EnvProjectionRefreshInterval, DefaultProjectionRefreshInterval),

		Client: client.NewClient(),
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: true,
		Service:   serviceName,
	})

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}

	if cfg.KafkaEnabled {
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		cfg.Kafka = kafkaCfg
		kafkaCfg.LogConfiguration(cfg.Log.Info)
	}

	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects to Redis when REDIS_ADDR is set. Failure is not fatal:
// callers fall back to in-process stores when Client.Redis stays nil.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		cfg.Log.Info("Redis not configured, using in-memory stores")
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.WriteTimeout < cfg.RequestTimeout {
		errors = append(errors, fmt.Sprintf("WriteTimeout (%s) must not be shorter than RequestTimeout (%s)", cfg.WriteTimeout, cfg.RequestTimeout))
	}
	if cfg.WriteOperationTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteOperationTimeout must be positive, got: %s", cfg.WriteOperationTimeout))
	}
	if cfg.BulkDeleteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("BulkDeleteTimeout must be positive, got: %s", cfg.BulkDeleteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if !locale.IsSupportedRegion(cfg.PhoneRegion) {
		errors = append(errors, fmt.Sprintf("PhoneRegion is not supported, got: %s", cfg.PhoneRegion))
	}
	if loc, err := locale.Location(cfg.ServiceTimeZone, cfg.PhoneRegion); err != nil {
		errors = append(errors, err.Error())
	} else {
		cfg.Location = loc
	}

	if cfg.BookingHorizonDays < 1 || cfg.BookingHorizonDays > 60 {
		errors = append(errors, fmt.Sprintf("BookingHorizonDays must be between 1 and 60, got: %d", cfg.BookingHorizonDays))
	}
	if wd, err := ParseWeekday(cfg.ClosedWeekdayName); err != nil {
		errors = append(errors, err.Error())
	} else {
		cfg.ClosedWeekday = wd
	}
	if cfg.AllocateMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("AllocateMaxAttempts must be at least 1, got: %d", cfg.AllocateMaxAttempts))
	}
	if cfg.AllocateRetryBaseDelay <= 0 {
		errors = append(errors, fmt.Sprintf("AllocateRetryBaseDelay must be positive, got: %s", cfg.AllocateRetryBaseDelay))
	}
	if cfg.DeleteBatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("DeleteBatchSize must be positive, got: %d", cfg.DeleteBatchSize))
	}
	if cfg.AdminJWTSecret != "" && len(cfg.AdminJWTSecret) < 32 {
		errors = append(errors, "AdminJWTSecret must be at least 32 characters")
	}
	if cfg.ProjectionRefreshInterval <= 0 {
		errors = append(errors, fmt.Sprintf("ProjectionRefreshInterval must be positive, got: %s", cfg.ProjectionRefreshInterval))
	}
	if cfg.KafkaEnabled && cfg.BookingEventsTopic == "" {
		errors = append(errors, "BookingEventsTopic cannot be empty when Kafka is enabled")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"port", cfg.Port,
		"admin_jwt_secret_set", cfg.AdminJWTSecret != "",
		"admin_jwt_issuer", cfg.AdminJWTIssuer,
		"session_seal_key_set", cfg.SessionSealKey != "",
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"time_zone", cfg.Location.String(),
		"phone_region", cfg.PhoneRegion,
		"booking_horizon_days", cfg.BookingHorizonDays,
		"closed_weekday", cfg.ClosedWeekdayName,
		"allocate_max_attempts", cfg.AllocateMaxAttempts,
		"allocate_retry_base_delay", cfg.AllocateRetryBaseDelay,
		"delete_batch_size", cfg.DeleteBatchSize,
		"write_operation_timeout", cfg.WriteOperationTimeout,
		"bulk_delete_timeout", cfg.BulkDeleteTimeout,
		"kafka_enabled", cfg.KafkaEnabled,
		"booking_events_topic", cfg.BookingEventsTopic,
		"projection_refresh_interval", cfg.ProjectionRefreshInterval,
	)
}

// Now returns the current time in the service location.
func (cfg *Config) Now() time.Time {
	now := time.Now()
	if cfg.NowFunc != nil {
		now = cfg.NowFunc()
	}
	if cfg.Location != nil {
		now = now.In(cfg.Location)
	}
	return now
}

// Today is the service-local date code of Now.
func (cfg *Config) Today() string {
	return cfg.Now().Format(dateLayout)
}

func ParseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return NoWeekday, nil
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return NoWeekday, fmt.Errorf("ClosedWeekday must be a weekday name or 'none', got: %s", name)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 20
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
