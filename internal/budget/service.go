package budget

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tempora-app/tempora/internal/security"
	"github.com/tempora-app/tempora/internal/timesheet"
)

// Repository supplies materialized entry collections; the service performs no
// other I/O of its own. Satisfied by the timesheet repository.
type Repository interface {
	FetchEntriesForEntities(ctx context.Context, kind security.EntityKind, ids []int64, begin, end *time.Time) ([]timesheet.Entry, error)
}

// Service builds budget view-models from time entries, with a versioned redis
// cache in front of the aggregation pass and singleflight collapsing
// concurrent builds of the same key.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Models resolves budget models for the given entities as of the given time.
// The lifetime statistic is unbounded; for monthly-budget entities the
// current-period statistic covers the calendar month of asOf. Every entity
// appears in the result, zero-valued when it has no entries.
func (s *Service) Models(ctx context.Context, kind security.EntityKind, entities []Budgeted, asOf time.Time) ([]Model, error) {
	return s.models(ctx, kind, entities, asOf, Window{})
}

// ModelsAt behaves like Models but bounds the lifetime statistic by the given
// ceiling, for rendering historical snapshots.
func (s *Service) ModelsAt(ctx context.Context, kind security.EntityKind, entities []Budgeted, asOf time.Time) ([]Model, error) {
	ceiling := asOf
	return s.models(ctx, kind, entities, asOf, Window{End: &ceiling})
}

// models caches per entity rather than per request: a warmed entity serves
// every later request that includes it, whatever the surrounding id set.
func (s *Service) models(ctx context.Context, kind security.EntityKind, entities []Budgeted, asOf time.Time, lifetime Window) ([]Model, error) {
	models := make([]Model, len(entities))
	keys := make([]string, len(entities))
	missing := make([]Budgeted, 0, len(entities))
	missingIdx := make([]int, 0, len(entities))

	for i, entity := range entities {
		key, err := s.cache.BuildKey(ctx, keyModel(string(kind), entity.GetID(), asOf, lifetime))
		if err != nil {
			return nil, err
		}
		keys[i] = key
		var cached Model
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			return nil, err
		}
		if found {
			models[i] = cached
			continue
		}
		missing = append(missing, entity)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return models, nil
	}

	built, err := s.buildModels(ctx, kind, missing, asOf, lifetime)
	if err != nil {
		return nil, err
	}
	for j, idx := range missingIdx {
		models[idx] = built[j]
		if err := s.cache.StoreJSON(ctx, keys[idx], built[j]); err != nil {
			return nil, err
		}
	}
	return models, nil
}

// buildModels aggregates the missing entities in one repository pass.
func (s *Service) buildModels(ctx context.Context, kind security.EntityKind, entities []Budgeted, asOf time.Time, lifetime Window) ([]Model, error) {
	ids := make([]int64, len(entities))
	parts := make([]string, 0, len(entities))
	for i, e := range entities {
		ids[i] = e.GetID()
		parts = append(parts, keyModel(string(kind), e.GetID(), asOf, lifetime))
	}

	value, err := s.flight(ctx, strings.Join(parts, "|"), func(ctx context.Context) (interface{}, error) {
		entries, err := s.repo.FetchEntriesForEntities(ctx, kind, ids, lifetime.Begin, lifetime.End)
		if err != nil {
			return nil, err
		}
		key := keyFor(kind)
		totals := Aggregate(entries, lifetime, ids, key)
		current := Aggregate(entries, MonthOf(asOf), ids, key)

		models := make([]Model, 0, len(entities))
		for _, entity := range entities {
			model := NewModel(entity)
			model.Total = *totals[entity.GetID()]
			model.Current = *current[entity.GetID()]
			models = append(models, model)
		}
		return models, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]Model), nil
}

// Timeline returns the year/month rollup for one entity, every year holding
// its full 12-month series.
func (s *Service) Timeline(ctx context.Context, kind security.EntityKind, id int64) ([]*Year, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		entries, err := s.repo.FetchEntriesForEntities(ctx, kind, []int64{id}, nil, nil)
		if err != nil {
			return nil, err
		}
		return Years(entries), nil
	}

	if s.cache == nil {
		value, err := s.flight(ctx, keyTimeline(string(kind), id), loader)
		if err != nil {
			return nil, err
		}
		return value.([]*Year), nil
	}

	key, err := s.cache.BuildKey(ctx, keyTimeline(string(kind), id))
	if err != nil {
		return nil, err
	}
	var years []*Year
	err = s.cache.FetchJSON(ctx, key, &years, func(ctx context.Context) (interface{}, error) {
		return s.flight(ctx, key, loader)
	})
	if err != nil {
		return nil, err
	}
	return years, nil
}

// MonthDays returns the gap-free day series for one entity and calendar
// month. Day buckets are never cached: the month view is already scoped
// narrowly and changes on every running-entry stop.
func (s *Service) MonthDays(ctx context.Context, kind security.EntityKind, id int64, year int, month time.Month) ([]*Day, error) {
	window := MonthOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
	entries, err := s.repo.FetchEntriesForEntities(ctx, kind, []int64{id}, window.Begin, window.End)
	if err != nil {
		return nil, err
	}
	return Days(entries, year, month), nil
}

// Bump invalidates cached models after a timesheet write.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) flight(ctx context.Context, key string, loader func(context.Context) (interface{}, error)) (interface{}, error) {
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		return loader(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.Val, res.Err
	}
}

func keyFor(kind security.EntityKind) KeyFunc {
	switch kind {
	case security.KindCustomer:
		return ByCustomer
	case security.KindProject:
		return ByProject
	case security.KindActivity:
		return ByActivity
	case security.KindUser:
		return ByUser
	default:
		return ByProject
	}
}
