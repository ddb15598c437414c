package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	"tokenq/pkg/config"
	"tokenq/pkg/contracts"
	"tokenq/pkg/middleware"
	"tokenq/pkg/sealer"

	"github.com/julienschmidt/httprouter"
)

// Worker runs in the background until its context is cancelled.
type Worker func(ctx context.Context)

type Option func(*Application)

// WithAdminAuth puts every application route behind a bearer token.
func WithAdminAuth(secret []byte, issuer string) Option {
	return func(a *Application) {
		a.auth = middleware.AdminAuth(secret, issuer, a.cfg.Log)
		a.idempotencyScope = append(a.idempotencyScope, middleware.HeaderAuthorization)
	}
}

// WithGuestSessions resolves X-Session-Token into the caller's owner ref.
func WithGuestSessions(s *sealer.Sealer) Option {
	return func(a *Application) {
		a.auth = middleware.GuestSession(s, a.cfg.Log)
		a.idempotencyScope = append(a.idempotencyScope, middleware.HeaderSessionToken)
	}
}

func WithWorker(w Worker) Option {
	return func(a *Application) {
		a.workers = append(a.workers, w)
	}
}

// WithHealthCheck adds a dependency probe to /ready.
func WithHealthCheck(c HealthCheck) Option {
	return func(a *Application) {
		a.healthChecks = append(a.healthChecks, c)
	}
}

// WithRouteTimeout gives one route a request budget other than
// RequestTimeout, for operations that legitimately run long.
func WithRouteTimeout(method, path string, timeout time.Duration) Option {
	return func(a *Application) {
		a.routeTimeouts = append(a.routeTimeouts, middleware.RouteTimeout{
			Method:  method,
			Path:    path,
			Timeout: timeout,
		})
	}
}

// WithShutdownHook runs fn after the server has stopped.
func WithShutdownHook(fn func()) Option {
	return func(a *Application) {
		a.shutdownHooks = append(a.shutdownHooks, fn)
	}
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	idempotencyScope []string
	rateLimiter      *middleware.RateLimiter
	auth             func(http.Handler) http.Handler
	routeTimeouts    []middleware.RouteTimeout
	workers          []Worker
	healthChecks     []HealthCheck
	shutdownHooks    []func()
	healthHandler    http.Handler
	appHTTPHandler   http.Handler
}

func NewApplication(cfg *config.Config, opts ...Option) *Application {
	a := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Application) SetApp(handlers ...contracts.Handler) {
	a.setHealthHandler()
	a.setAppHandler(handlers)
	a.setAppServer()
}

func (a *Application) setHealthHandler() {
	checks := append([]HealthCheck(nil), a.healthChecks...)
	if a.cfg.Client != nil && a.cfg.Client.Mongo != nil {
		checks = append(checks, MongoCheck(a.cfg.Client.Mongo))
	}
	if a.cfg.Client != nil && a.cfg.Client.Redis != nil {
		checks = append(checks, RedisCheck(a.cfg.Client.Redis))
	}

	healthRouter := httprouter.New()
	NewHealthHandler(a.cfg.Log, checks...).RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(handlers []contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(appRouter)
	}

	if a.cfg.Client != nil && a.cfg.Client.Redis != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(a.cfg.Client.Redis, a.cfg.IdempotencyTTL)
		a.cfg.Log.Info("Idempotency keys stored in Redis")
	} else {
		a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	}
	a.rateLimiter = middleware.NewRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		middleware.DefaultKeyExtractor,
		a.cfg.Log,
	)

	var appHTTPHandler http.Handler = appRouter
	appHTTPHandler = middleware.Idempotency(a.idempotencyStore, a.cfg.Log, a.idempotencyScope...)(appHTTPHandler)
	if a.auth != nil {
		appHTTPHandler = a.auth(appHTTPHandler)
	}
	appHTTPHandler = middleware.RequestTimeout(a.cfg.RequestTimeout, a.routeTimeouts...)(appHTTPHandler)
	appHTTPHandler = middleware.RateLimit(a.rateLimiter)(appHTTPHandler)
	appHTTPHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHTTPHandler)
	appHTTPHandler = middleware.RequestLogging(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.Recovery(a.cfg.Log)(appHTTPHandler)
	a.appHTTPHandler = appHTTPHandler
	a.cfg.Log.Info("Application endpoints configured with full security middleware stack")
}

func (a *Application) setAppServer() {
	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

// Handler serves health endpoints and application routes on one mux.
func (a *Application) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHTTPHandler)
	return mux
}

func (a *Application) Run() {
	ctx, cancelWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, w := range a.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w(ctx)
		}()
	}

	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown(cancelWorkers, &wg)
	}
}

func (a *Application) gracefulShutdown(cancelWorkers context.CancelFunc, workers *sync.WaitGroup) {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	cancelWorkers()
	workers.Wait()
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	for _, hook := range a.shutdownHooks {
		hook()
	}
	a.cfg.Log.Info("Background workers stopped")

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Server stopped gracefully")
}
