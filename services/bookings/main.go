package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/config"
	"github.com/diagnosis/cafe-bookings/pkg/database"
	"github.com/diagnosis/cafe-bookings/pkg/events"
	"github.com/diagnosis/cafe-bookings/pkg/logger"
	mw "github.com/diagnosis/cafe-bookings/pkg/middleware"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/admin"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/form"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/handlers"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/remote"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/repository"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log.Level)

	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	demoKV, cleanup, err := openDemoStore(ctx, cfg, redisClient)
	if err != nil {
		logger.Error("Failed to open demo store", "store", cfg.Demo.Store, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var eventBus events.EventBus = events.NopBus{}
	if cfg.NATS.Enabled {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		eventBus = bus
	}
	defer eventBus.Close()

	var (
		idempotencyRepo repository.IdempotencyRepository
		rateLimitRepo   repository.RateLimitRepository
	)
	if redisClient != nil {
		idempotencyRepo = repository.NewIdempotencyRepository(redisClient)
		rateLimitRepo = repository.NewRateLimitRepository(redisClient)
	} else {
		idempotencyRepo = repository.NewMemoryIdempotencyRepository()
		rateLimitRepo = repository.NewMemoryRateLimitRepository()
	}

	loc, err := time.LoadLocation(cfg.Cafe.TimeZone)
	if err != nil {
		logger.Warn("Unknown café time zone, using local time", "tz", cfg.Cafe.TimeZone, "error", err)
		loc = time.Local
	}
	formOpts := form.DefaultOptions()
	formOpts.Location = loc

	backend := remote.NewClient(cfg.Backend)
	demoRepo := repository.NewDemoRepository(demoKV, cfg.Demo.Key)
	bookingService := service.NewBookingService(backend, demoRepo, eventBus)
	board := admin.NewBoard(backend, demoRepo, cfg.Backend.ListLimit)

	submitLimiter := mw.NewRateLimiter(rateLimitRepo, mw.RateLimitConfig{
		Requests: cfg.Server.RateLimit,
		Window:   cfg.Server.RateWindow,
	})
	h := handlers.New(bookingService, board, demoRepo, formOpts).WithSubmitLimiter(submitLimiter)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Idempotent-Replayed", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(mw.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.Idempotency(idempotencyRepo, cfg.Server.IdempotencyTTL))
		h.Routes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down bookings service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Bookings service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bookings service", "port", cfg.Server.Port, "demo_store", cfg.Demo.Store, "nats", cfg.NATS.Enabled)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
}

// openDemoStore picks the demo store backend named in DEMO_STORE.
func openDemoStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (repository.KeyValue, func(), error) {
	switch cfg.Demo.Store {
	case "", "memory":
		return repository.NewMemoryKV(), func() {}, nil
	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("DEMO_STORE=redis requires REDIS_URL")
		}
		return repository.NewRedisKV(redisClient), func() {}, nil
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		kv, err := repository.NewPostgresKV(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return kv, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown demo store %q", cfg.Demo.Store)
	}
}
