package tracking

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempora-app/tempora/internal/security"
)

// Repository provides PostgreSQL backed persistence for customers, projects
// and activities including their team restriction sets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ============================================================================
// CUSTOMER OPERATIONS
// ============================================================================

// GetCustomer retrieves a customer with its team set.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	query := `
		SELECT id, name, number, comment, visible, currency,
		       budget, time_budget, budget_type, created_at, updated_at
		FROM customers
		WHERE id = $1
	`
	var c Customer
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Number, &c.Comment, &c.Visible, &c.Currency,
		&c.Budget, &c.TimeBudget, &c.BudgetType, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	teams, err := r.loadTeams(ctx, "customers_teams", "customer_id", c.ID)
	if err != nil {
		return nil, err
	}
	c.TeamSet = teams
	return &c, nil
}

// ListCustomers returns all customers, visible-only unless includeHidden.
func (r *Repository) ListCustomers(ctx context.Context, includeHidden bool) ([]*Customer, error) {
	query := `
		SELECT id, name, number, comment, visible, currency,
		       budget, time_budget, budget_type, created_at, updated_at
		FROM customers
		WHERE visible OR $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, includeHidden)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Number, &c.Comment, &c.Visible, &c.Currency,
			&c.Budget, &c.TimeBudget, &c.BudgetType, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		customers = append(customers, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range customers {
		teams, err := r.loadTeams(ctx, "customers_teams", "customer_id", c.ID)
		if err != nil {
			return nil, err
		}
		c.TeamSet = teams
	}
	return customers, nil
}

// CreateCustomer inserts a customer and returns its id.
func (r *Repository) CreateCustomer(ctx context.Context, c Customer) (int64, error) {
	query := `
		INSERT INTO customers (name, number, comment, visible, currency, budget, time_budget, budget_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		c.Name, c.Number, c.Comment, c.Visible, c.Currency,
		c.Budget, c.TimeBudget, c.BudgetType,
	).Scan(&id)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return id, nil
}

// UpdateCustomer persists mutable customer fields.
func (r *Repository) UpdateCustomer(ctx context.Context, c Customer) error {
	query := `
		UPDATE customers
		SET name = $2, number = $3, comment = $4, visible = $5, currency = $6,
		    budget = $7, time_budget = $8, budget_type = $9, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		c.ID, c.Name, c.Number, c.Comment, c.Visible, c.Currency,
		c.Budget, c.TimeBudget, c.BudgetType,
	)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCustomer removes a customer.
func (r *Repository) DeleteCustomer(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// PROJECT OPERATIONS
// ============================================================================

// GetProject retrieves a project with its team set.
func (r *Repository) GetProject(ctx context.Context, id int64) (*Project, error) {
	query := `
		SELECT id, customer_id, name, comment, visible,
		       budget, time_budget, budget_type, start_date, end_date, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	var p Project
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.CustomerID, &p.Name, &p.Comment, &p.Visible,
		&p.Budget, &p.TimeBudget, &p.BudgetType, &p.Start, &p.End, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	teams, err := r.loadTeams(ctx, "projects_teams", "project_id", p.ID)
	if err != nil {
		return nil, err
	}
	p.TeamSet = teams
	return &p, nil
}

// ListProjects returns projects, optionally scoped to one customer.
func (r *Repository) ListProjects(ctx context.Context, customerID *int64, includeHidden bool) ([]*Project, error) {
	query := `
		SELECT id, customer_id, name, comment, visible,
		       budget, time_budget, budget_type, start_date, end_date, created_at, updated_at
		FROM projects
		WHERE (visible OR $1) AND ($2::bigint IS NULL OR customer_id = $2)
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, includeHidden, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(
			&p.ID, &p.CustomerID, &p.Name, &p.Comment, &p.Visible,
			&p.Budget, &p.TimeBudget, &p.BudgetType, &p.Start, &p.End, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range projects {
		teams, err := r.loadTeams(ctx, "projects_teams", "project_id", p.ID)
		if err != nil {
			return nil, err
		}
		p.TeamSet = teams
	}
	return projects, nil
}

// CreateProject inserts a project and returns its id.
func (r *Repository) CreateProject(ctx context.Context, p Project) (int64, error) {
	query := `
		INSERT INTO projects (customer_id, name, comment, visible, budget, time_budget, budget_type, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		p.CustomerID, p.Name, p.Comment, p.Visible,
		p.Budget, p.TimeBudget, p.BudgetType, p.Start, p.End,
	).Scan(&id)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return id, nil
}

// UpdateProject persists mutable project fields.
func (r *Repository) UpdateProject(ctx context.Context, p Project) error {
	query := `
		UPDATE projects
		SET customer_id = $2, name = $3, comment = $4, visible = $5,
		    budget = $6, time_budget = $7, budget_type = $8,
		    start_date = $9, end_date = $10, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		p.ID, p.CustomerID, p.Name, p.Comment, p.Visible,
		p.Budget, p.TimeBudget, p.BudgetType, p.Start, p.End,
	)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes a project.
func (r *Repository) DeleteProject(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// ACTIVITY OPERATIONS
// ============================================================================

// GetActivity retrieves an activity with its team set.
func (r *Repository) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	query := `
		SELECT id, project_id, name, comment, visible,
		       budget, time_budget, budget_type, created_at, updated_at
		FROM activities
		WHERE id = $1
	`
	var a Activity
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.ProjectID, &a.Name, &a.Comment, &a.Visible,
		&a.Budget, &a.TimeBudget, &a.BudgetType, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	teams, err := r.loadTeams(ctx, "activities_teams", "activity_id", a.ID)
	if err != nil {
		return nil, err
	}
	a.TeamSet = teams
	return &a, nil
}

// ListActivities returns activities, optionally scoped to one project.
// Global activities are included whenever a project scope is given.
func (r *Repository) ListActivities(ctx context.Context, projectID *int64, includeHidden bool) ([]*Activity, error) {
	query := `
		SELECT id, project_id, name, comment, visible,
		       budget, time_budget, budget_type, created_at, updated_at
		FROM activities
		WHERE (visible OR $1) AND ($2::bigint IS NULL OR project_id = $2 OR project_id IS NULL)
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, includeHidden, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(
			&a.ID, &a.ProjectID, &a.Name, &a.Comment, &a.Visible,
			&a.Budget, &a.TimeBudget, &a.BudgetType, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, a := range activities {
		teams, err := r.loadTeams(ctx, "activities_teams", "activity_id", a.ID)
		if err != nil {
			return nil, err
		}
		a.TeamSet = teams
	}
	return activities, nil
}

// CreateActivity inserts an activity and returns its id.
func (r *Repository) CreateActivity(ctx context.Context, a Activity) (int64, error) {
	query := `
		INSERT INTO activities (project_id, name, comment, visible, budget, time_budget, budget_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		a.ProjectID, a.Name, a.Comment, a.Visible,
		a.Budget, a.TimeBudget, a.BudgetType,
	).Scan(&id)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return id, nil
}

// UpdateActivity persists mutable activity fields.
func (r *Repository) UpdateActivity(ctx context.Context, a Activity) error {
	query := `
		UPDATE activities
		SET project_id = $2, name = $3, comment = $4, visible = $5,
		    budget = $6, time_budget = $7, budget_type = $8, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		a.ID, a.ProjectID, a.Name, a.Comment, a.Visible,
		a.Budget, a.TimeBudget, a.BudgetType,
	)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteActivity removes an activity.
func (r *Repository) DeleteActivity(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// TEAM GRANTS
// ============================================================================

// SetTeams replaces the team restriction set of an entity.
func (r *Repository) SetTeams(ctx context.Context, kind security.EntityKind, entityID int64, teamIDs []int64) error {
	table, column, ok := grantTable(kind)
	if !ok {
		return ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE `+column+` = $1`, entityID); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	for _, teamID := range teamIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO `+table+` (`+column+`, team_id) VALUES ($1, $2)`,
			entityID, teamID,
		); err != nil {
			_ = tx.Rollback(ctx)
			return mapConstraint(err)
		}
	}
	return tx.Commit(ctx)
}

func grantTable(kind security.EntityKind) (table, column string, ok bool) {
	switch kind {
	case security.KindCustomer:
		return "customers_teams", "customer_id", true
	case security.KindProject:
		return "projects_teams", "project_id", true
	case security.KindActivity:
		return "activities_teams", "activity_id", true
	default:
		return "", "", false
	}
}

// loadTeams fetches the team restriction set of one entity, members included
// so the resolver can evaluate teamlead matches without further lookups.
func (r *Repository) loadTeams(ctx context.Context, table, column string, entityID int64) ([]*security.Team, error) {
	query := `
		SELECT t.id, t.name
		FROM teams t
		JOIN ` + table + ` g ON g.team_id = t.id
		WHERE g.` + column + ` = $1
		ORDER BY t.id
	`
	rows, err := r.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*security.Team
	for rows.Next() {
		var t security.Team
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		teams = append(teams, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, t := range teams {
		members, err := r.loadMembers(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.Members = members
	}
	return teams, nil
}

func (r *Repository) loadMembers(ctx context.Context, teamID int64) ([]security.Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, team_id, teamlead FROM teams_users WHERE team_id = $1 ORDER BY user_id`,
		teamID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []security.Membership
	for rows.Next() {
		var m security.Membership
		if err := rows.Scan(&m.UserID, &m.TeamID, &m.Teamlead); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ResolveHierarchy maps an activity to its project and customer. Global
// activities carry no project binding and cannot anchor a time entry on
// their own.
func (r *Repository) ResolveHierarchy(ctx context.Context, activityID int64) (int64, int64, error) {
	query := `
		SELECT p.id, p.customer_id
		FROM activities a
		JOIN projects p ON p.id = a.project_id
		WHERE a.id = $1
	`
	var projectID, customerID int64
	err := r.pool.QueryRow(ctx, query, activityID).Scan(&projectID, &customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, err
	}
	return projectID, customerID, nil
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}
