package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"advocate_backend/internal/leads/outreach"
	"advocate_backend/internal/leads/risk"
	"advocate_backend/internal/leads/scanner"
	"advocate_backend/platform/config"
	"advocate_backend/platform/logger"
)

// Engines groups the three background engines the worker drives.
type Engines struct {
	Scorer     *risk.Scorer
	Strategist *outreach.Strategist
	Scanner    *scanner.Scanner
}

// Worker consumes engagement jobs. Each job takes a redis lock first so
// overlapping runs (periodic plus manual trigger) never double-process.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	lock   *JobLock
	eng    Engines
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, eng Engines, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	redisOpts.TLSConfig = opt.TLSConfig

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		lock:   NewJobLock(redis.NewClient(redisOpts), cfg.GetJobLockTTL()),
		eng:    eng,
		log:    log,
	}

	w.mux.HandleFunc(TaskRiskSweep, w.handleRiskSweep)
	w.mux.HandleFunc(TaskOutreachCycle, w.handleOutreachCycle)
	w.mux.HandleFunc(TaskOpportunityScan, w.handleOpportunityScan)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleRiskSweep(ctx context.Context, task *asynq.Task) error {
	payload, _ := ParseJobPayload(task)
	return w.withLock(ctx, TaskRiskSweep, func(ctx context.Context) error {
		stats, err := w.eng.Scorer.Sweep(ctx)
		if err != nil {
			return err
		}
		w.log.Info("risk sweep complete",
			"trigger", payload.Trigger,
			"evaluated", stats.Evaluated,
			"marked_at_risk", stats.NewlyAtRisk,
			"marked_cold", stats.MarkedCold,
			"errors", stats.Errors,
		)
		return nil
	})
}

func (w *Worker) handleOutreachCycle(ctx context.Context, task *asynq.Task) error {
	payload, _ := ParseJobPayload(task)
	return w.withLock(ctx, TaskOutreachCycle, func(ctx context.Context) error {
		stats, err := w.eng.Strategist.Cycle(ctx)
		if err != nil {
			return err
		}
		w.log.Info("outreach cycle complete",
			"trigger", payload.Trigger,
			"evaluated", stats.LeadsEvaluated,
			"messages_sent", stats.MessagesSent,
			"skipped_dnc", stats.SkippedDNC,
			"skipped_human", stats.SkippedHuman,
			"skipped_cooldown", stats.SkippedCooldown,
			"ai_strategies", stats.AIStrategiesSelected,
			"errors", stats.Errors,
		)
		return nil
	})
}

func (w *Worker) handleOpportunityScan(ctx context.Context, task *asynq.Task) error {
	payload, _ := ParseJobPayload(task)
	return w.withLock(ctx, TaskOpportunityScan, func(ctx context.Context) error {
		stats, err := w.eng.Scanner.Scan(ctx)
		if err != nil {
			return err
		}
		w.log.Info("opportunity scan complete",
			"trigger", payload.Trigger,
			"scanned", stats.LeadsScanned,
			"opportunities", stats.OpportunitiesIdentified,
			"messages_sent", stats.ProactiveMessagesSent,
			"errors", stats.Errors,
		)
		return nil
	})
}

// withLock runs fn under the per-job redis lock. A held lock is not an
// error: the task is simply dropped because another instance is running it.
func (w *Worker) withLock(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	release, ok, err := w.lock.Acquire(ctx, job)
	if err != nil {
		return err
	}
	if !ok {
		w.log.Info("job already running elsewhere, skipping", "job", job)
		return nil
	}
	defer release()

	w.log.JobStarted(job)
	start := time.Now()
	err = fn(ctx)
	w.log.JobFinished(job, time.Since(start), err)
	return err
}
