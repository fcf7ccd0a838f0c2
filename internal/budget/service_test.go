package budget

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/security"
	"github.com/tempora-app/tempora/internal/timesheet"
)

type mockEntryRepo struct {
	entries []timesheet.Entry
	err     error
	calls   int
}

func (m *mockEntryRepo) FetchEntriesForEntities(ctx context.Context, kind security.EntityKind, ids []int64, begin, end *time.Time) ([]timesheet.Entry, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	selector := keyFor(kind)
	var matched []timesheet.Entry
	for _, e := range m.entries {
		if _, ok := want[selector(e)]; ok {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func newTestBudgetService(t *testing.T, repo Repository) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(repo, NewCache(client, time.Minute))
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestModelsSplitsLifetimeAndCurrentPeriod(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockEntryRepo{entries: []timesheet.Entry{
		completed(1, 7, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), 3600, 100, true, false),
		completed(2, 7, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 1800, 50, true, false),
	}}
	svc := NewService(repo, nil)

	models, err := svc.Models(context.Background(), security.KindProject,
		[]Budgeted{budgetedStub{id: 7, name: "Launch", budget: 500, monthly: true}}, asOf)
	require.NoError(t, err)
	require.Len(t, models, 1)

	m := models[0]
	require.EqualValues(t, 5400, m.Total.Duration)
	require.EqualValues(t, 1800, m.Current.Duration)
	require.InDelta(t, 50, m.BudgetSpent(), 1e-9, "monthly budget tracks the current period")
	require.InDelta(t, 450, m.BudgetOpen(), 1e-9)
}

func TestModelsIncludeEntitiesWithoutEntries(t *testing.T) {
	repo := &mockEntryRepo{}
	svc := NewService(repo, nil)

	models, err := svc.Models(context.Background(), security.KindCustomer,
		[]Budgeted{budgetedStub{id: 3, name: "Idle"}}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, models, 1)
	require.Equal(t, Statistic{}, models[0].Total)
	require.Equal(t, Statistic{}, models[0].Current)
}

func TestModelsCacheAndBump(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockEntryRepo{entries: []timesheet.Entry{
		completed(1, 7, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 3600, 100, true, false),
	}}
	svc, cleanup := newTestBudgetService(t, repo)
	defer cleanup()

	ctx := context.Background()
	entities := []Budgeted{budgetedStub{id: 7, name: "Launch"}}

	models, err := svc.Models(ctx, security.KindProject, entities, asOf)
	require.NoError(t, err)
	require.EqualValues(t, 3600, models[0].Total.Duration)
	require.Equal(t, 1, repo.calls)

	// Second call hits the cache.
	_, err = svc.Models(ctx, security.KindProject, entities, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	// A bump orphans the cached key and forces a rebuild.
	require.NoError(t, svc.Bump(ctx))
	repo.entries = append(repo.entries,
		completed(2, 7, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), 1800, 50, true, false))

	models, err = svc.Models(ctx, security.KindProject, entities, asOf)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
	require.EqualValues(t, 5400, models[0].Total.Duration)
}

func TestSnapshotAndLiveModelsKeptApartInCache(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockEntryRepo{entries: []timesheet.Entry{
		completed(1, 7, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 3600, 100, true, false),
		completed(2, 7, time.Date(2026, 4, 3, 9, 0, 0, 0, time.UTC), 1800, 50, true, false),
	}}
	svc, cleanup := newTestBudgetService(t, repo)
	defer cleanup()

	ctx := context.Background()
	entities := []Budgeted{budgetedStub{id: 7, name: "Launch"}}

	snapshot, err := svc.ModelsAt(ctx, security.KindProject, entities, asOf)
	require.NoError(t, err)
	require.EqualValues(t, 3600, snapshot[0].Total.Duration, "snapshot stops at the ceiling")

	// The unbounded view must not read the snapshot's cached totals.
	live, err := svc.Models(ctx, security.KindProject, entities, asOf)
	require.NoError(t, err)
	require.EqualValues(t, 5400, live[0].Total.Duration)
	require.Equal(t, 2, repo.calls)

	// Both stay cached side by side.
	snapshot, err = svc.ModelsAt(ctx, security.KindProject, entities, asOf)
	require.NoError(t, err)
	require.EqualValues(t, 3600, snapshot[0].Total.Duration)
	live, err = svc.Models(ctx, security.KindProject, entities, asOf)
	require.NoError(t, err)
	require.EqualValues(t, 5400, live[0].Total.Duration)
	require.Equal(t, 2, repo.calls)
}

func TestSnapshotCeilingsInSameMonthKeptApart(t *testing.T) {
	repo := &mockEntryRepo{entries: []timesheet.Entry{
		completed(1, 7, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), 3600, 100, true, false),
		completed(2, 7, time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC), 1800, 50, true, false),
	}}
	svc, cleanup := newTestBudgetService(t, repo)
	defer cleanup()

	ctx := context.Background()
	entities := []Budgeted{budgetedStub{id: 7, name: "Launch"}}

	early, err := svc.ModelsAt(ctx, security.KindProject, entities,
		time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	require.EqualValues(t, 3600, early[0].Total.Duration)

	late, err := svc.ModelsAt(ctx, security.KindProject, entities,
		time.Date(2026, 3, 30, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	require.EqualValues(t, 5400, late[0].Total.Duration)
}

func TestModelsWarmedSupersetServesSubset(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockEntryRepo{entries: []timesheet.Entry{
		completed(1, 7, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 3600, 100, true, false),
		completed(2, 8, time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), 1800, 50, true, false),
	}}
	svc, cleanup := newTestBudgetService(t, repo)
	defer cleanup()

	ctx := context.Background()
	all := []Budgeted{
		budgetedStub{id: 7, name: "Launch"},
		budgetedStub{id: 8, name: "Support"},
	}

	// Warm the full set, as the warmup job does.
	_, err := svc.Models(ctx, security.KindProject, all, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	// A narrower visibility set hits the warmed entries.
	subset, err := svc.Models(ctx, security.KindProject, all[:1], asOf)
	require.NoError(t, err)
	require.EqualValues(t, 3600, subset[0].Total.Duration)
	require.Equal(t, 1, repo.calls)

	// Only entities missing from the cache trigger a rebuild.
	mixed, err := svc.Models(ctx, security.KindProject,
		[]Budgeted{all[1], budgetedStub{id: 9, name: "Idle"}}, asOf)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
	require.EqualValues(t, 1800, mixed[0].Total.Duration)
	require.Equal(t, Statistic{}, mixed[1].Total)
}

func TestTimelineCached(t *testing.T) {
	repo := &mockEntryRepo{entries: []timesheet.Entry{
		completed(1, 7, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), 3600, 100, true, false),
	}}
	svc, cleanup := newTestBudgetService(t, repo)
	defer cleanup()

	ctx := context.Background()
	years, err := svc.Timeline(ctx, security.KindProject, 7)
	require.NoError(t, err)
	require.Len(t, years, 1)
	require.Equal(t, 2025, years[0].Year)
	require.Len(t, years[0].Months, 12)
	require.Equal(t, 1, repo.calls)

	_, err = svc.Timeline(ctx, security.KindProject, 7)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)
}

func TestMonthDaysNotCached(t *testing.T) {
	repo := &mockEntryRepo{entries: []timesheet.Entry{
		completed(1, 7, time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC), 3600, 100, true, false),
	}}
	svc, cleanup := newTestBudgetService(t, repo)
	defer cleanup()

	ctx := context.Background()
	days, err := svc.MonthDays(ctx, security.KindProject, 7, 2026, time.February)
	require.NoError(t, err)
	require.Len(t, days, 28)
	require.EqualValues(t, 3600, days[13].Duration)

	_, err = svc.MonthDays(ctx, security.KindProject, 7, 2026, time.February)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}
