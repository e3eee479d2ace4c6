package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/config"
	"github.com/diagnosis/cafe-bookings/pkg/logger"
	mw "github.com/diagnosis/cafe-bookings/pkg/middleware"
	"github.com/diagnosis/cafe-bookings/services/gateway/internal/handlers"
	"github.com/diagnosis/cafe-bookings/services/gateway/internal/proxy"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log.Level)

	var (
		bookingsBaseURL = getEnv("BOOKINGS_SERVICE_URL", "http://localhost:8080")
		notifyBaseURL   = getEnv("NOTIFY_SERVICE_URL", "http://localhost:8086")
	)

	bookingsProxy := proxy.NewServiceProxy("bookings", bookingsBaseURL, 30*time.Second)
	notifyProxy := proxy.NewServiceProxy("notify", notifyBaseURL, 5*time.Second)

	h := handlers.New(bookingsProxy, notifyProxy)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gateway"))
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

	r.Route("/v1", h.Routes)

	srv := &http.Server{
		Addr:         ":" + getEnv("GATEWAY_PORT", "8000"),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + 10*time.Second,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gateway service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Gateway shutdown error", "error", err)
		}
	}()

	logger.Info("Starting gateway service", "port", srv.Addr, "bookings", bookingsBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
