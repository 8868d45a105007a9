package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"advocate_backend/platform/config"
	"advocate_backend/platform/logger"
)

// Periodic registers the recurring engagement jobs with asynq's scheduler.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
	})

	entries := []struct {
		interval time.Duration
		build    func(JobPayload) (*asynq.Task, error)
	}{
		{RiskSweepInterval, NewRiskSweepTask},
		{OpportunityScanInterval, NewOpportunityScanTask},
		{OutreachCycleInterval, NewOutreachCycleTask},
	}

	for _, entry := range entries {
		task, err := entry.build(JobPayload{Trigger: TriggerPeriodic})
		if err != nil {
			return nil, err
		}
		spec := fmt.Sprintf("@every %s", entry.interval)
		if _, err := sched.Register(spec, task, asynq.Queue(queue)); err != nil {
			return nil, fmt.Errorf("register %s: %w", task.Type(), err)
		}
		log.Info("periodic job registered", "job", task.Type(), "every", entry.interval.String())
	}

	return &Periodic{scheduler: sched, log: log}, nil
}

// Run blocks until the context is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
