package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBudgetWarmup pre-populates budget statistic caches.
	TaskBudgetWarmup = "budget:warmup"
	// TaskStopRunning force-stops entries that have been running too long.
	TaskStopRunning = "timesheet:stop_running"
)

// BudgetWarmupPayload selects which entity kinds get warmed.
type BudgetWarmupPayload struct {
	Kinds []string `json:"kinds"`
}

// NewBudgetWarmupTask constructs a warmup task. An empty kind list warms
// customers, projects and activities.
func NewBudgetWarmupTask(kinds ...string) (*asynq.Task, error) {
	data, err := json.Marshal(BudgetWarmupPayload{Kinds: kinds})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBudgetWarmup, data), nil
}

// StopRunningPayload bounds how long an entry may keep running before the
// sweeper closes it.
type StopRunningPayload struct {
	MaxHours int `json:"maxHours"`
}

// NewStopRunningTask constructs a long-runner sweep task.
func NewStopRunningTask(maxHours int) (*asynq.Task, error) {
	data, err := json.Marshal(StopRunningPayload{MaxHours: maxHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStopRunning, data), nil
}
