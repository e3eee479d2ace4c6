package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/config"
	"github.com/diagnosis/cafe-bookings/pkg/events"
	"github.com/diagnosis/cafe-bookings/pkg/logger"
	mw "github.com/diagnosis/cafe-bookings/pkg/middleware"
	"github.com/diagnosis/cafe-bookings/services/notify/internal/consumer"
	"github.com/diagnosis/cafe-bookings/services/notify/internal/mailer"
	"github.com/go-chi/chi/v5"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log.Level)

	var mailService mailer.Service
	if cfg.Email.DevMode {
		mailService = mailer.NewDevMailer()
	} else {
		mailService = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	bus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	if err := consumer.New(mailService).Subscribe(bus); err != nil {
		logger.Error("Failed to subscribe to booking events", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Health)

	srv := &http.Server{
		Addr:         ":" + getPort(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down notify service...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Notify service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting notify service", "port", srv.Addr, "dev_mail", cfg.Email.DevMode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}

func getPort() string {
	if port := os.Getenv("NOTIFY_PORT"); port != "" {
		return port
	}
	return "8086"
}
