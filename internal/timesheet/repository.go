package timesheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempora-app/tempora/internal/security"
)

// Repository provides PostgreSQL backed persistence for time entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `
	id, user_id, activity_id, project_id, customer_id,
	begin_at, end_at, duration, rate, internal_rate,
	billable, exported, description, export_batch
`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.UserID, &e.ActivityID, &e.ProjectID, &e.CustomerID,
		&e.Begin, &e.End, &e.Duration, &e.Rate, &e.InternalRate,
		&e.Billable, &e.Exported, &e.Description, &e.ExportBatch,
	)
	return e, err
}

// Get retrieves one entry.
func (r *Repository) Get(ctx context.Context, id int64) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM timesheet_entries WHERE id = $1`
	e, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Create inserts an entry and returns its id.
func (r *Repository) Create(ctx context.Context, e Entry) (int64, error) {
	query := `
		INSERT INTO timesheet_entries
			(user_id, activity_id, project_id, customer_id, begin_at, end_at,
			 duration, rate, internal_rate, billable, exported, description, export_batch)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		e.UserID, e.ActivityID, e.ProjectID, e.CustomerID, e.Begin, e.End,
		e.Duration, e.Rate, e.InternalRate, e.Billable, e.Exported, e.Description, e.ExportBatch,
	).Scan(&id)
	return id, err
}

// Update persists mutable entry fields.
func (r *Repository) Update(ctx context.Context, e Entry) error {
	query := `
		UPDATE timesheet_entries
		SET activity_id = $2, project_id = $3, customer_id = $4, begin_at = $5,
		    end_at = $6, duration = $7, rate = $8, internal_rate = $9,
		    billable = $10, exported = $11, description = $12, export_batch = $13
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		e.ID, e.ActivityID, e.ProjectID, e.CustomerID, e.Begin,
		e.End, e.Duration, e.Rate, e.InternalRate,
		e.Billable, e.Exported, e.Description, e.ExportBatch,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM timesheet_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser returns a user's entries, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM timesheet_entries
		WHERE user_id = $1
		ORDER BY begin_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// RunningForUser returns the user's currently running entries.
func (r *Repository) RunningForUser(ctx context.Context, userID int64) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM timesheet_entries
		WHERE user_id = $1 AND end_at IS NULL
		ORDER BY begin_at
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// RunningOlderThan returns running entries whose begin lies before the
// cutoff, across all users. Used by the long-runner sweep job.
func (r *Repository) RunningOlderThan(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM timesheet_entries
		WHERE end_at IS NULL AND begin_at < $1
		ORDER BY begin_at
	`
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// FetchEntriesForEntities supplies materialized entry collections for the
// budget aggregator, keyed by one level of the entity hierarchy. A nil bound
// is unbounded on that side; both bounds are inclusive against begin_at.
func (r *Repository) FetchEntriesForEntities(ctx context.Context, kind security.EntityKind, ids []int64, begin, end *time.Time) ([]Entry, error) {
	column, err := hierarchyColumn(kind)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + entryColumns + `
		FROM timesheet_entries
		WHERE ` + column + ` = ANY($1)
		  AND ($2::timestamptz IS NULL OR begin_at >= $2)
		  AND ($3::timestamptz IS NULL OR begin_at <= $3)
	`
	rows, err := r.pool.Query(ctx, query, ids, begin, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// MarkExported stamps the given entries with an export batch id. Entries
// already exported are skipped by the WHERE clause; the returned count lets
// the caller detect partial batches.
func (r *Repository) MarkExported(ctx context.Context, ids []int64, batch string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE timesheet_entries SET exported = TRUE, export_batch = $2
		 WHERE id = ANY($1) AND NOT exported AND end_at IS NOT NULL`,
		ids, batch,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func hierarchyColumn(kind security.EntityKind) (string, error) {
	switch kind {
	case security.KindCustomer:
		return "customer_id", nil
	case security.KindProject:
		return "project_id", nil
	case security.KindActivity:
		return "activity_id", nil
	case security.KindUser:
		return "user_id", nil
	default:
		return "", fmt.Errorf("timesheet: no entry grouping for kind %q", kind)
	}
}
