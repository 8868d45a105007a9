// Package scheduler runs the periodic engagement jobs on asynq.
package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskRiskSweep = "engagement.risk_sweep"

const TaskOutreachCycle = "engagement.outreach_cycle"

const TaskOpportunityScan = "engagement.opportunity_scan"

// Default cadence for each job, registered with the periodic scheduler.
const (
	RiskSweepInterval       = 15 * time.Minute
	OpportunityScanInterval = 2 * time.Hour
	OutreachCycleInterval   = 24 * time.Hour
)

// JobPayload marks why a job was queued, for log correlation.
type JobPayload struct {
	Trigger string `json:"trigger"`
}

const (
	TriggerPeriodic = "periodic"
	TriggerManual   = "manual"
)

func NewRiskSweepTask(payload JobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRiskSweep, data), nil
}

func NewOutreachCycleTask(payload JobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutreachCycle, data), nil
}

func NewOpportunityScanTask(payload JobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOpportunityScan, data), nil
}

func ParseJobPayload(task *asynq.Task) (JobPayload, error) {
	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return JobPayload{}, err
	}
	return payload, nil
}
