package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempora-app/tempora/internal/security"
)

// Repository provides PostgreSQL backed persistence for user accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get retrieves one user with roles and team memberships.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, enabled, internal, see_all_data,
		       created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Enabled, &u.Internal,
		&u.CanSeeAllData, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.attach(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername retrieves one user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, enabled, internal, see_all_data,
		       created_at, updated_at
		FROM users
		WHERE username = $1
	`
	var u User
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Enabled, &u.Internal,
		&u.CanSeeAllData, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.attach(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns all users ordered by username.
func (r *Repository) List(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, username, email, password_hash, enabled, internal, see_all_data,
		       created_at, updated_at
		FROM users
		ORDER BY username
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Enabled, &u.Internal,
			&u.CanSeeAllData, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, u := range list {
		if err := r.attach(ctx, u); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Create inserts a user and its role set.
func (r *Repository) Create(ctx context.Context, u User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, enabled, internal, see_all_data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		u.Username, u.Email, u.PasswordHash, u.Enabled, u.Internal, u.CanSeeAllData,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrAlreadyExists
		}
		return 0, err
	}
	if err := r.SetRoles(ctx, id, u.Roles); err != nil {
		return 0, err
	}
	return id, nil
}

// Update persists mutable account fields.
func (r *Repository) Update(ctx context.Context, u User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET username = $2, email = $3, enabled = $4, see_all_data = $5, updated_at = now()
		 WHERE id = $1`,
		u.ID, u.Username, u.Email, u.Enabled, u.CanSeeAllData,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, hash,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRoles replaces the role set of a user.
func (r *Repository) SetRoles(ctx context.Context, userID int64, roles []string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users_roles WHERE user_id = $1`, userID); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	for _, role := range roles {
		if _, err := tx.Exec(ctx,
			`INSERT INTO users_roles (user_id, role) VALUES ($1, $2)`,
			userID, role,
		); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) attach(ctx context.Context, u *User) error {
	roleRows, err := r.pool.Query(ctx,
		`SELECT role FROM users_roles WHERE user_id = $1 ORDER BY role`, u.ID)
	if err != nil {
		return err
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var role string
		if err := roleRows.Scan(&role); err != nil {
			return err
		}
		u.Roles = append(u.Roles, role)
	}
	if err := roleRows.Err(); err != nil {
		return err
	}

	memberRows, err := r.pool.Query(ctx,
		`SELECT user_id, team_id, teamlead FROM teams_users WHERE user_id = $1 ORDER BY team_id`, u.ID)
	if err != nil {
		return err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var m security.Membership
		if err := memberRows.Scan(&m.UserID, &m.TeamID, &m.Teamlead); err != nil {
			return err
		}
		u.Memberships = append(u.Memberships, m)
	}
	return memberRows.Err()
}
