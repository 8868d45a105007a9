package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"advocate_backend/internal/assets"
	"advocate_backend/internal/audit"
	"advocate_backend/internal/events"
	"advocate_backend/internal/leads"
	"advocate_backend/internal/notify"
	"advocate_backend/internal/scheduler"
	"advocate_backend/platform/ai"
	"advocate_backend/platform/ai/gemini"
	"advocate_backend/platform/config"
	"advocate_backend/platform/db"
	"advocate_backend/platform/logger"
	"advocate_backend/platform/validator"
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

	model := initModel(ctx, cfg, log)
	val := validator.New()

	auditLog := audit.New(audit.NewRepo(pool), log)

	assetsModule := assets.NewModule(pool, auditLog, eventBus, log, cfg)
	leadsModule := leads.NewModule(pool, assetsModule.Estimator(), model, auditLog, eventBus, val, log, cfg, nil)

	notifyModule := notify.NewModule(cfg, log)
	notifyModule.RegisterHandlers(eventBus)

	worker, err := scheduler.NewWorker(cfg, scheduler.Engines{
		Scorer:     leadsModule.Scorer(),
		Strategist: leadsModule.Strategist(),
		Scanner:    leadsModule.Scanner(),
	}, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		periodic.Run(ctx)
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, waiting for jobs to finish")
	wg.Wait()
}

func initModel(ctx context.Context, cfg *config.Config, log *logger.Logger) ai.Client {
	if !cfg.IsAIEnabled() {
		log.Warn("GEMINI_API_KEY not configured; AI features disabled")
		return ai.Disabled{}
	}

	client, err := gemini.New(ctx, gemini.Config{
		APIKey: cfg.GetGeminiAPIKey(),
		Model:  cfg.GetGeminiModel(),
	})
	if err != nil {
		log.Error("failed to initialize model client; AI features disabled", "error", err)
		return ai.Disabled{}
	}

	return ai.NewRateLimited(client, cfg.GetAIRequestsPerSecond(), 1)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
	return fmt.Errorf("%s: %w", name, lastErr)
}
