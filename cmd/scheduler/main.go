package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swipelink_backend/internal/email"
	"swipelink_backend/internal/engagement"
	"swipelink_backend/internal/events"
	"swipelink_backend/internal/notification"
	"swipelink_backend/internal/scheduler"
	"swipelink_backend/platform/config"
	"swipelink_backend/platform/db"
	"swipelink_backend/platform/logger"
	"swipelink_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	notificationModule := notification.New(sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	val := validator.New()

	// Worker-side evaluation wiring (no HTTP handlers required).
	engagementModule, err := engagement.NewModule(pool, eventBus, val, cfg, log)
	if err != nil {
		log.Error("failed to initialize engagement module", "error", err)
		panic("failed to initialize engagement module: " + err.Error())
	}
	defer engagementModule.SSE().Close()

	sweepInterval := getDurationEnv("ENGAGEMENT_SWEEP_INTERVAL", 15*time.Minute)
	sweep := scheduler.NewEngagementSweep(engagementModule.Orchestrator(), log, sweepInterval, cfg.GetSessionInactivityTimeout())
	go sweep.Run(ctx)

	// Without Redis the periodic sweep is the only finalization mechanism.
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; running periodic sweep only")
		<-ctx.Done()
		return
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, pool, engagementModule.Orchestrator(), client, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
