package timesheet

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	entries map[int64]Entry
	nextID  int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[int64]Entry)}
}

func (m *memoryStore) Get(ctx context.Context, id int64) (*Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *memoryStore) Create(ctx context.Context, e Entry) (int64, error) {
	m.nextID++
	e.ID = m.nextID
	m.entries[e.ID] = e
	return e.ID, nil
}

func (m *memoryStore) Update(ctx context.Context, e Entry) error {
	if _, ok := m.entries[e.ID]; !ok {
		return ErrNotFound
	}
	m.entries[e.ID] = e
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memoryStore) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) RunningForUser(ctx context.Context, userID int64) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.UserID == userID && e.Running() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) MarkExported(ctx context.Context, ids []int64, batch string) (int64, error) {
	var count int64
	for _, id := range ids {
		e, ok := m.entries[id]
		if !ok || e.Exported || e.Running() {
			continue
		}
		e.Exported = true
		e.ExportBatch = &batch
		m.entries[id] = e
		count++
	}
	return count, nil
}

type staticHierarchy struct {
	projectID  int64
	customerID int64
	err        error
}

func (h staticHierarchy) ResolveHierarchy(ctx context.Context, activityID int64) (int64, int64, error) {
	return h.projectID, h.customerID, h.err
}

type countingBumper struct {
	calls int
}

func (b *countingBumper) Bump(ctx context.Context) error {
	b.calls++
	return nil
}

func newTestTimesheetService(store Store) (*Service, *countingBumper) {
	bumper := &countingBumper{}
	svc := NewService(store, staticHierarchy{projectID: 20, customerID: 30}, bumper, slog.Default())
	return svc, bumper
}

func TestStartDenormalizesHierarchy(t *testing.T) {
	store := newMemoryStore()
	svc, bumper := newTestTimesheetService(store)

	entry, err := svc.Start(context.Background(), StartOptions{UserID: 1, ActivityID: 10, Billable: true})
	require.NoError(t, err)
	require.EqualValues(t, 20, entry.ProjectID)
	require.EqualValues(t, 30, entry.CustomerID)
	require.True(t, entry.Running())
	require.Equal(t, 1, bumper.calls)
}

func TestStartStopsRunningWhenRequested(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestTimesheetService(store)
	ctx := context.Background()

	first, err := svc.Start(ctx, StartOptions{UserID: 1, ActivityID: 10})
	require.NoError(t, err)

	second, err := svc.Start(ctx, StartOptions{UserID: 1, ActivityID: 10, StopRunning: true})
	require.NoError(t, err)
	require.True(t, second.Running())

	stopped, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.False(t, stopped.Running())
}

func TestStopDerivesDuration(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestTimesheetService(store)
	begin := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return begin.Add(90 * time.Minute) }

	id, err := store.Create(context.Background(), Entry{UserID: 1, Begin: begin})
	require.NoError(t, err)

	entry, err := svc.Stop(context.Background(), id)
	require.NoError(t, err)
	require.False(t, entry.Running())
	require.EqualValues(t, 5400, entry.Duration)

	_, err = svc.Stop(context.Background(), id)
	require.ErrorIs(t, err, ErrAlreadyStopped)
}

func TestDuplicateRefusesRunningAndClearsExport(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestTimesheetService(store)
	ctx := context.Background()

	runningID, err := store.Create(ctx, Entry{UserID: 1, Begin: time.Now().UTC()})
	require.NoError(t, err)
	_, err = svc.Duplicate(ctx, runningID)
	require.ErrorIs(t, err, ErrRunning)

	end := time.Now().UTC()
	batch := "abc"
	srcID, err := store.Create(ctx, Entry{
		UserID: 1, Begin: end.Add(-time.Hour), End: &end,
		Duration: 3600, Exported: true, ExportBatch: &batch,
	})
	require.NoError(t, err)

	copy, err := svc.Duplicate(ctx, srcID)
	require.NoError(t, err)
	require.NotEqual(t, srcID, copy.ID)
	require.False(t, copy.Exported)
	require.Nil(t, copy.ExportBatch)
	require.EqualValues(t, 3600, copy.Duration)
}

func TestExportedEntriesAreLocked(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestTimesheetService(store)
	ctx := context.Background()

	end := time.Now().UTC()
	id, err := store.Create(ctx, Entry{UserID: 1, Begin: end.Add(-time.Hour), End: &end, Exported: true})
	require.NoError(t, err)

	entry, _ := store.Get(ctx, id)
	entry.Description = "edited"
	require.ErrorIs(t, svc.Update(ctx, *entry), ErrExported)
	require.ErrorIs(t, svc.Delete(ctx, id), ErrExported)
}

func TestMarkExportedSkipsRunningAndExported(t *testing.T) {
	store := newMemoryStore()
	svc, bumper := newTestTimesheetService(store)
	ctx := context.Background()

	end := time.Now().UTC()
	stoppedID, _ := store.Create(ctx, Entry{UserID: 1, Begin: end.Add(-time.Hour), End: &end})
	runningID, _ := store.Create(ctx, Entry{UserID: 1, Begin: end})
	exportedID, _ := store.Create(ctx, Entry{UserID: 1, Begin: end.Add(-2 * time.Hour), End: &end, Exported: true})

	batch, count, err := svc.MarkExported(ctx, []int64{stoppedID, runningID, exportedID})
	require.NoError(t, err)
	require.NotEmpty(t, batch)
	require.EqualValues(t, 1, count)
	require.Equal(t, 1, bumper.calls)

	locked, _ := store.Get(ctx, stoppedID)
	require.True(t, locked.Exported)
	require.Equal(t, batch, *locked.ExportBatch)

	untouched, _ := store.Get(ctx, runningID)
	require.False(t, untouched.Exported)
}
