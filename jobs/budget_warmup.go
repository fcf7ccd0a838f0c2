package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tempora-app/tempora/internal/budget"
	"github.com/tempora-app/tempora/internal/security"
	"github.com/tempora-app/tempora/internal/tracking"
)

// BudgetWarmupJob pre-populates the budget statistic cache so the first
// dashboard request after an invalidation does not pay the aggregation cost.
type BudgetWarmupJob struct {
	Budget *budget.Service
	Store  tracking.Store
	Logger *slog.Logger
	clock  func() time.Time
}

// NewBudgetWarmupJob wires dependencies for the warmup handler.
func NewBudgetWarmupJob(budgetSvc *budget.Service, store tracking.Store, logger *slog.Logger) *BudgetWarmupJob {
	return &BudgetWarmupJob{
		Budget: budgetSvc,
		Store:  store,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes budget warmup tasks.
func (j *BudgetWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Budget == nil || j.Store == nil {
		return errors.New("budget warmup: handler not configured")
	}
	var payload BudgetWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	kinds := payload.Kinds
	if len(kinds) == 0 {
		kinds = []string{
			string(security.KindCustomer),
			string(security.KindProject),
			string(security.KindActivity),
		}
	}

	logger := j.logger()
	logger.Info("starting budget warmup", slog.Any("kinds", kinds))
	started := j.now()

	warmed := 0
	for _, raw := range kinds {
		kind := security.EntityKind(raw)
		entities, err := j.fetch(ctx, kind)
		if err != nil {
			logger.Error("load warmup entities", slog.String("kind", raw), slog.Any("error", err))
			return err
		}
		if len(entities) == 0 {
			continue
		}
		kindCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err = j.Budget.Models(kindCtx, kind, entities, j.now())
		cancel()
		if err != nil {
			logger.Error("warm kind", slog.String("kind", raw), slog.Any("error", err))
			return err
		}
		warmed += len(entities)
	}

	logger.Info("completed budget warmup",
		slog.Int("entities", warmed),
		slog.Duration("duration", time.Since(started)))
	return nil
}

func (j *BudgetWarmupJob) fetch(ctx context.Context, kind security.EntityKind) ([]budget.Budgeted, error) {
	switch kind {
	case security.KindCustomer:
		customers, err := j.Store.ListCustomers(ctx, true)
		if err != nil {
			return nil, err
		}
		out := make([]budget.Budgeted, 0, len(customers))
		for _, c := range customers {
			out = append(out, c)
		}
		return out, nil
	case security.KindProject:
		projects, err := j.Store.ListProjects(ctx, nil, true)
		if err != nil {
			return nil, err
		}
		out := make([]budget.Budgeted, 0, len(projects))
		for _, p := range projects {
			out = append(out, p)
		}
		return out, nil
	case security.KindActivity:
		activities, err := j.Store.ListActivities(ctx, nil, true)
		if err != nil {
			return nil, err
		}
		out := make([]budget.Budgeted, 0, len(activities))
		for _, a := range activities {
			out = append(out, a)
		}
		return out, nil
	default:
		return nil, nil
	}
}

func (j *BudgetWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBudgetWarmup))
	}
	return slog.Default().With(slog.String("job", TaskBudgetWarmup))
}

func (j *BudgetWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
