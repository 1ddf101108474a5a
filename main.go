package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/eventide/internal/api"
	"github.com/pathakanu/eventide/internal/auth"
	"github.com/pathakanu/eventide/internal/config"
	"github.com/pathakanu/eventide/internal/database"
	"github.com/pathakanu/eventide/internal/metrics"
	"github.com/pathakanu/eventide/internal/notify"
	myopenai "github.com/pathakanu/eventide/internal/openai"
	"github.com/pathakanu/eventide/internal/reminder"
	"github.com/pathakanu/eventide/internal/store"
	"github.com/pathakanu/eventide/internal/twilio"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := log.New(os.Stdout, "[eventide] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Fatalf("database init failed: %v", err)
	}
	st := store.New(db)

	notifier, err := newNotifier(cfg)
	if err != nil {
		logger.Fatalf("notifier init failed: %v", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	composer := reminder.NewComposer(cfg.NotifyChannel, cfg.LocalTimezone, myopenai.New(cfg.OpenAIAPIKey), logger)
	scheduler := reminder.New(st, st, notifier, composer, logger,
		reminder.WithInterval(cfg.TickInterval),
		reminder.WithSendTimeout(cfg.NotifyTimeout),
		reminder.WithMetrics(collector),
	)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("scheduler start: %v", err)
	}

	srv := api.New(st, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL), api.NewRateLimiter(cfg.RateLimitAuth), logger)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(metrics.Handler(registry)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	waitForShutdown(server, scheduler, logger)
}

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.NotifyChannel == config.ChannelSMS {
		sms, err := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		if err != nil {
			return nil, err
		}
		return sms, nil
	}
	email, err := notify.NewEmail(notify.EmailConfig{
		Host:     cfg.EmailHost,
		Port:     cfg.EmailPort,
		User:     cfg.EmailUser,
		Password: cfg.EmailPassword,
		Timeout:  cfg.NotifyTimeout,
	})
	if err != nil {
		return nil, err
	}
	return email, nil
}

func waitForShutdown(server *http.Server, scheduler *reminder.Scheduler, logger *log.Logger) {
	stopCtx := make(chan os.Signal, 1)
	signal.Notify(stopCtx, syscall.SIGINT, syscall.SIGTERM)
	<-stopCtx
	logger.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
	scheduler.Stop()
}
