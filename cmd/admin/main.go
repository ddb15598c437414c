package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
	adminhandler "tokenq/internal/admin/handler"
	adminservice "tokenq/internal/admin/service"
	bookingshandler "tokenq/internal/bookings/handler"
	bookingsrepo "tokenq/internal/bookings/repository"
	bookingsservice "tokenq/internal/bookings/service"
	"tokenq/internal/events"
	scheduleshandler "tokenq/internal/schedules/handler"
	schedulesrepo "tokenq/internal/schedules/repository"
	schedulesservice "tokenq/internal/schedules/service"
	schedulesvalidator "tokenq/internal/schedules/validator"
	tokenshandler "tokenq/internal/tokens/handler"
	tokensrepo "tokenq/internal/tokens/repository"
	tokensservice "tokenq/internal/tokens/service"
	tokensvalidator "tokenq/internal/tokens/validator"
	"tokenq/pkg/app"
	"tokenq/pkg/config"
	"tokenq/pkg/contracts"
	mongotx "tokenq/pkg/db/mongo"
	kafka_middleware "tokenq/pkg/kafka/middleware"
	"tokenq/pkg/middleware"
)

const (
	ServiceName = "admin"
	// bulkDeleteMargin lets a purge that hits its own deadline still report
	// its steps before the request budget runs out.
	bulkDeleteMargin = 10 * time.Second
)

func main() {
	issueFor := flag.String("issue-token", "", "print an admin token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "lifetime of an issued admin token")
	flag.Parse()

	cfg := config.Load(ServiceName)
	if cfg.AdminJWTSecret == "" {
		cfg.Log.Fatal("ADMIN_JWT_SECRET is required")
	}

	if *issueFor != "" {
		token, err := middleware.IssueAdminToken([]byte(cfg.AdminJWTSecret), cfg.AdminJWTIssuer, *issueFor, middleware.RoleAdmin, *tokenTTL)
		if err != nil {
			cfg.Log.Fatal("Failed to issue admin token", "error", err)
		}
		fmt.Fprintln(os.Stdout, token)
		return
	}

	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Admin service")

	metrics := kafka_middleware.NewMetrics()
	publisher, err := events.NewPublisher(cfg, ServiceName, metrics)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err)
	}

	handlers := initHandlers(cfg, publisher, metrics)

	serverApp := app.NewApplication(cfg,
		app.WithAdminAuth([]byte(cfg.AdminJWTSecret), cfg.AdminJWTIssuer),
		app.WithRouteTimeout(http.MethodDelete, bookingshandler.BookingsPath, cfg.BulkDeleteTimeout+bulkDeleteMargin),
		app.WithShutdownHook(func() {
			if err := publisher.Close(); err != nil {
				cfg.Log.Warn("Failed to close event publisher", "error", err)
			}
		}),
	)
	serverApp.SetApp(handlers...)
	serverApp.Run()
}

func initHandlers(cfg *config.Config, publisher events.Publisher, metrics *kafka_middleware.Metrics) []contracts.Handler {
	counterRepo := tokensrepo.NewMongoCounterRepository(cfg)
	settingsRepo := schedulesrepo.NewMongoSettingsRepository(cfg)
	bookingRepo := bookingsrepo.NewMongoBookingRepository(cfg)
	contactValidator := tokensvalidator.NewContactValidator(cfg.Log)

	scheduleService := schedulesservice.NewScheduleService(
		settingsRepo,
		counterRepo,
		schedulesvalidator.NewScheduleValidator(cfg.Log),
		publisher,
		cfg,
	)
	tokenService := tokensservice.NewTokenService(
		mongotx.NewTransactionManager(cfg.Client.Mongo),
		counterRepo,
		settingsRepo,
		bookingRepo,
		scheduleService,
		contactValidator,
		publisher,
		cfg,
	)
	bookingService := bookingsservice.NewBookingService(
		bookingRepo,
		counterRepo,
		contactValidator,
		publisher,
		cfg,
	)
	statsService := adminservice.NewStatsService(bookingRepo, counterRepo, cfg)

	cfg.Log.Info("Admin services initialized", "database", cfg.MongoDatabaseName)

	return []contracts.Handler{
		tokenshandler.NewAdminTokenHandler(tokenService, cfg.Log),
		scheduleshandler.NewScheduleHandler(scheduleService, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
		adminhandler.NewStatsHandler(statsService, metrics, cfg.Log),
	}
}
