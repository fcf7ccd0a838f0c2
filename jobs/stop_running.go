package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tempora-app/tempora/internal/timesheet"
)

// RunningLister finds entries that have been running past a cutoff.
// Implemented by the timesheet repository.
type RunningLister interface {
	RunningOlderThan(ctx context.Context, cutoff time.Time) ([]timesheet.Entry, error)
}

// EntryStopper closes a running entry. Implemented by the timesheet service.
type EntryStopper interface {
	Stop(ctx context.Context, id int64) (*timesheet.Entry, error)
}

// StopRunningJob sweeps entries left running longer than a configured bound,
// typically forgotten timers.
type StopRunningJob struct {
	Lister  RunningLister
	Stopper EntryStopper
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewStopRunningJob wires dependencies for the sweep handler.
func NewStopRunningJob(lister RunningLister, stopper EntryStopper, logger *slog.Logger) *StopRunningJob {
	return &StopRunningJob{
		Lister:  lister,
		Stopper: stopper,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes long-runner sweep tasks.
func (j *StopRunningJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Lister == nil || j.Stopper == nil {
		return errors.New("stop running: handler not configured")
	}
	var payload StopRunningPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MaxHours <= 0 {
		payload.MaxHours = 24
	}

	cutoff := j.now().Add(-time.Duration(payload.MaxHours) * time.Hour)
	logger := j.logger().With(slog.Time("cutoff", cutoff))

	entries, err := j.Lister.RunningOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error("list long runners", slog.Any("error", err))
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	stopped := 0
	for _, entry := range entries {
		if _, err := j.Stopper.Stop(ctx, entry.ID); err != nil {
			// A concurrent manual stop is fine; anything else aborts the sweep.
			if errors.Is(err, timesheet.ErrAlreadyStopped) {
				continue
			}
			logger.Error("stop entry", slog.Int64("entry_id", entry.ID), slog.Any("error", err))
			return err
		}
		stopped++
	}

	logger.Info("completed long-runner sweep", slog.Int("stopped", stopped))
	return nil
}

func (j *StopRunningJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStopRunning))
	}
	return slog.Default().With(slog.String("job", TaskStopRunning))
}

func (j *StopRunningJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
