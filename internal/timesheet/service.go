package timesheet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
type Store interface {
	Get(ctx context.Context, id int64) (*Entry, error)
	Create(ctx context.Context, e Entry) (int64, error)
	Update(ctx context.Context, e Entry) error
	Delete(ctx context.Context, id int64) error
	ListForUser(ctx context.Context, userID int64, limit, offset int) ([]Entry, error)
	RunningForUser(ctx context.Context, userID int64) ([]Entry, error)
	MarkExported(ctx context.Context, ids []int64, batch string) (int64, error)
}

// HierarchyResolver maps an activity to its project and customer so entries
// carry the full grouping chain. Implemented over the tracking repository.
type HierarchyResolver interface {
	ResolveHierarchy(ctx context.Context, activityID int64) (projectID, customerID int64, err error)
}

// CacheBumper invalidates downstream statistic caches after entry writes.
// Satisfied by the budget service.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Service implements the timesheet lifecycle: start, stop, duplicate, export.
type Service struct {
	store     Store
	hierarchy HierarchyResolver
	bumper    CacheBumper
	logger    *slog.Logger
	clock     func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, hierarchy HierarchyResolver, bumper CacheBumper, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		hierarchy: hierarchy,
		bumper:    bumper,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// StartOptions controls entry creation.
type StartOptions struct {
	UserID      int64
	ActivityID  int64
	Description string
	Billable    bool
	Begin       *time.Time
	// StopRunning stops the user's running entries before starting the new
	// one, so at most one entry runs at a time.
	StopRunning bool
}

// Start begins a new running entry for the user.
func (s *Service) Start(ctx context.Context, opts StartOptions) (*Entry, error) {
	projectID, customerID, err := s.hierarchy.ResolveHierarchy(ctx, opts.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("timesheet: resolve activity %d: %w", opts.ActivityID, err)
	}

	now := s.clock()
	if opts.StopRunning {
		if err := s.StopAll(ctx, opts.UserID, now); err != nil {
			return nil, err
		}
	}

	begin := now
	if opts.Begin != nil {
		begin = *opts.Begin
	}
	entry := Entry{
		UserID:      opts.UserID,
		ActivityID:  opts.ActivityID,
		ProjectID:   projectID,
		CustomerID:  customerID,
		Begin:       begin,
		Billable:    opts.Billable,
		Description: opts.Description,
	}
	id, err := s.store.Create(ctx, entry)
	if err != nil {
		return nil, err
	}
	entry.ID = id
	s.bump(ctx)
	return &entry, nil
}

// Stop closes a running entry at the current time and derives its duration.
func (s *Service) Stop(ctx context.Context, id int64) (*Entry, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.stop(s.clock(), false); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, *entry); err != nil {
		return nil, err
	}
	s.bump(ctx)
	return entry, nil
}

// StopAll stops every running entry of the user at the given time.
func (s *Service) StopAll(ctx context.Context, userID int64, at time.Time) error {
	running, err := s.store.RunningForUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range running {
		entry := running[i]
		if err := entry.stop(at, false); err != nil {
			return err
		}
		if err := s.store.Update(ctx, entry); err != nil {
			return err
		}
	}
	if len(running) > 0 {
		s.bump(ctx)
	}
	return nil
}

// Duplicate copies a stopped entry into a new record owned by the same user.
// The copy is never exported regardless of the source.
func (s *Service) Duplicate(ctx context.Context, id int64) (*Entry, error) {
	source, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.Running() {
		return nil, ErrRunning
	}
	copy := *source
	copy.ID = 0
	copy.Exported = false
	copy.ExportBatch = nil
	newID, err := s.store.Create(ctx, copy)
	if err != nil {
		return nil, err
	}
	copy.ID = newID
	s.bump(ctx)
	return &copy, nil
}

// Update persists entry edits; exported entries are locked.
func (s *Service) Update(ctx context.Context, entry Entry) error {
	current, err := s.store.Get(ctx, entry.ID)
	if err != nil {
		return err
	}
	if current.Exported {
		return ErrExported
	}
	if err := s.store.Update(ctx, entry); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// Delete removes an entry; exported entries are locked.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Exported {
		return ErrExported
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// Get loads one entry.
func (s *Service) Get(ctx context.Context, id int64) (*Entry, error) {
	return s.store.Get(ctx, id)
}

// ListForUser returns a page of the user's entries, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListForUser(ctx, userID, limit, offset)
}

// MarkExported stamps stopped, unexported entries with a fresh batch id and
// returns the batch id plus the number of entries locked.
func (s *Service) MarkExported(ctx context.Context, ids []int64) (string, int64, error) {
	batch := uuid.NewString()
	count, err := s.store.MarkExported(ctx, ids, batch)
	if err != nil {
		return "", 0, err
	}
	if count > 0 {
		s.bump(ctx)
	}
	s.logger.Info("timesheet export batch",
		slog.String("batch", batch),
		slog.Int64("locked", count),
		slog.Int("requested", len(ids)))
	return batch, count, nil
}

// bump invalidates budget caches; failures are logged, not propagated, since
// a stale cache self-heals on TTL expiry.
func (s *Service) bump(ctx context.Context) {
	if s.bumper == nil {
		return
	}
	if err := s.bumper.Bump(ctx); err != nil {
		s.logger.Warn("bump statistics cache", slog.Any("error", err))
	}
}
