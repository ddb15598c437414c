package main

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tokenq/internal/bookings/repository"
	"tokenq/internal/events"
	"tokenq/internal/projection"
	schedulesrepo "tokenq/internal/schedules/repository"
	schedulesservice "tokenq/internal/schedules/service"
	schedulesvalidator "tokenq/internal/schedules/validator"
	"tokenq/internal/tokens/handler"
	tokensrepo "tokenq/internal/tokens/repository"
	"tokenq/internal/tokens/service"
	"tokenq/internal/tokens/validator"
	"tokenq/pkg/app"
	"tokenq/pkg/config"
	mongotx "tokenq/pkg/db/mongo"
	kafka_middleware "tokenq/pkg/kafka/middleware"
	"tokenq/pkg/sealer"
)

const (
	ServiceName = "booking"

	initialLoadTimeout = 30 * time.Second
	staleViewFactor    = 3
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Booking service")

	if cfg.SessionSealKey == "" {
		cfg.Log.Fatal("SESSION_SEAL_KEY is required")
	}
	sessionSealer, err := sealer.New(cfg.SessionSealKey)
	if err != nil {
		cfg.Log.Fatal("Invalid session seal key", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	publisher, err := events.NewPublisher(cfg, ServiceName, metrics)
	if err != nil {
		cfg.Log.Fatal("Failed to create event publisher", "error", err)
	}

	tokenService, view := initServices(cfg, publisher)

	opts := []app.Option{
		app.WithGuestSessions(sessionSealer),
		app.WithWorker(func(ctx context.Context) {
			view.Run(ctx, cfg.ProjectionRefreshInterval)
		}),
		app.WithHealthCheck(app.HealthCheck{
			Name: "live_view",
			Check: func(ctx context.Context) error {
				_, _, loadedAt := view.Snapshot()
				if age := time.Since(loadedAt); age > staleViewFactor*cfg.ProjectionRefreshInterval {
					return fmt.Errorf("live view last loaded %s ago", age.Round(time.Second))
				}
				return nil
			},
		}),
		app.WithShutdownHook(func() {
			if err := publisher.Close(); err != nil {
				cfg.Log.Warn("Failed to close event publisher", "error", err)
			}
		}),
	}

	if cfg.KafkaEnabled {
		consumer, err := events.NewConsumer(cfg, view.Apply, metrics)
		if err != nil {
			cfg.Log.Fatal("Failed to create projection consumer", "error", err)
		}
		opts = append(opts,
			app.WithWorker(func(ctx context.Context) {
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					cfg.Log.Error("Projection consumer stopped", "error", err)
				}
			}),
			app.WithShutdownHook(func() {
				if err := consumer.Close(); err != nil {
					cfg.Log.Warn("Failed to close projection consumer", "error", err)
				}
			}),
		)
	}

	serverApp := app.NewApplication(cfg, opts...)
	serverApp.SetApp(handler.NewTokenHandler(tokenService, view, sessionSealer, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) (service.TokenService, *projection.View) {
	counterRepo := tokensrepo.NewMongoCounterRepository(cfg)
	settingsRepo := schedulesrepo.NewMongoSettingsRepository(cfg)
	bookingRepo := repository.NewMongoBookingRepository(cfg)

	scheduleService := schedulesservice.NewScheduleService(
		settingsRepo,
		counterRepo,
		schedulesvalidator.NewScheduleValidator(cfg.Log),
		publisher,
		cfg,
	)
	tokenService := service.NewTokenService(
		mongotx.NewTransactionManager(cfg.Client.Mongo),
		counterRepo,
		settingsRepo,
		bookingRepo,
		scheduleService,
		validator.NewContactValidator(cfg.Log),
		publisher,
		cfg,
	)

	view := projection.NewView(settingsRepo, counterRepo, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), initialLoadTimeout)
	defer cancel()
	if err := view.Load(ctx); err != nil {
		cfg.Log.Fatal("Failed to load live view", "error", err)
	}

	cfg.Log.Info("Token service initialized", "database", cfg.MongoDatabaseName)
	return tokenService, view
}
