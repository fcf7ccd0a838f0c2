package teams

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempora-app/tempora/internal/security"
)

var (
	// ErrNotFound indicates the requested team does not exist.
	ErrNotFound = errors.New("teams: not found")
	// ErrAlreadyExists indicates a team name collision.
	ErrAlreadyExists = errors.New("teams: already exists")
)

// Repository provides PostgreSQL backed persistence for teams and their
// member rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get retrieves one team with members.
func (r *Repository) Get(ctx context.Context, id int64) (*security.Team, error) {
	var t security.Team
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM teams WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadMembers(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns all teams with members, ordered by name.
func (r *Repository) List(ctx context.Context) ([]*security.Team, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*security.Team
	for rows.Next() {
		var t security.Team
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, t := range list {
		if err := r.loadMembers(ctx, t); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Create inserts a team and its initial member rows.
func (r *Repository) Create(ctx context.Context, t security.Team) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO teams (name) VALUES ($1) RETURNING id`, t.Name,
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, mapConstraint(err)
	}
	for _, m := range t.Members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO teams_users (team_id, user_id, teamlead) VALUES ($1, $2, $3)`,
			id, m.UserID, m.Teamlead,
		); err != nil {
			_ = tx.Rollback(ctx)
			return 0, mapConstraint(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// Update renames a team.
func (r *Repository) Update(ctx context.Context, t security.Team) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE teams SET name = $2 WHERE id = $1`, t.ID, t.Name)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a team. Grant rows referencing the team cascade away at the
// database level.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMembers replaces the member rows of a team.
func (r *Repository) SetMembers(ctx context.Context, teamID int64, members []security.Membership) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM teams_users WHERE team_id = $1`, teamID); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	for _, m := range members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO teams_users (team_id, user_id, teamlead) VALUES ($1, $2, $3)`,
			teamID, m.UserID, m.Teamlead,
		); err != nil {
			_ = tx.Rollback(ctx)
			return mapConstraint(err)
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) loadMembers(ctx context.Context, t *security.Team) error {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, team_id, teamlead FROM teams_users WHERE team_id = $1 ORDER BY user_id`,
		t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m security.Membership
		if err := rows.Scan(&m.UserID, &m.TeamID, &m.Teamlead); err != nil {
			return err
		}
		t.Members = append(t.Members, m)
	}
	return rows.Err()
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}
