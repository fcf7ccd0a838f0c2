package tracking

import (
	"errors"
	"time"

	"github.com/tempora-app/tempora/internal/security"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("tracking: not found")
	// ErrAlreadyExists indicates a name collision within the parent scope.
	ErrAlreadyExists = errors.New("tracking: already exists")
	// ErrInvalidName indicates an empty or whitespace-only entity name.
	ErrInvalidName = errors.New("tracking: invalid name")
)

// BudgetType selects how a budget ceiling is tracked.
type BudgetType string

const (
	// BudgetTypeLifetime tracks spend against the budget over all time.
	BudgetTypeLifetime BudgetType = ""
	// BudgetTypeMonthly resets the tracked period every calendar month.
	BudgetTypeMonthly BudgetType = "month"
)

// Customer is the top of the entity hierarchy. An empty TeamSet means the
// customer is visible to every user, subject to Visible.
type Customer struct {
	ID         int64
	Name       string
	Number     string
	Comment    string
	Visible    bool
	Currency   string
	Budget     float64
	TimeBudget int64
	BudgetType BudgetType
	TeamSet    []*security.Team
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *Customer) Teams() []*security.Team   { return c.TeamSet }
func (c *Customer) Kind() security.EntityKind { return security.KindCustomer }
func (c *Customer) GetID() int64              { return c.ID }
func (c *Customer) GetName() string           { return c.Name }
func (c *Customer) GetBudget() float64        { return c.Budget }
func (c *Customer) GetTimeBudget() int64      { return c.TimeBudget }
func (c *Customer) IsMonthlyBudget() bool     { return c.BudgetType == BudgetTypeMonthly }

// Project belongs to exactly one customer.
type Project struct {
	ID         int64
	CustomerID int64
	Name       string
	Comment    string
	Visible    bool
	Budget     float64
	TimeBudget int64
	BudgetType BudgetType
	Start      *time.Time
	End        *time.Time
	TeamSet    []*security.Team
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *Project) Teams() []*security.Team   { return p.TeamSet }
func (p *Project) Kind() security.EntityKind { return security.KindProject }
func (p *Project) GetID() int64              { return p.ID }
func (p *Project) GetName() string           { return p.Name }
func (p *Project) GetBudget() float64        { return p.Budget }
func (p *Project) GetTimeBudget() int64      { return p.TimeBudget }
func (p *Project) IsMonthlyBudget() bool     { return p.BudgetType == BudgetTypeMonthly }

// Activity belongs to one project, or to none when global (usable across
// every project).
type Activity struct {
	ID         int64
	ProjectID  *int64
	Name       string
	Comment    string
	Visible    bool
	Budget     float64
	TimeBudget int64
	BudgetType BudgetType
	TeamSet    []*security.Team
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a *Activity) Teams() []*security.Team   { return a.TeamSet }
func (a *Activity) Kind() security.EntityKind { return security.KindActivity }
func (a *Activity) GetID() int64              { return a.ID }
func (a *Activity) GetName() string           { return a.Name }
func (a *Activity) GetBudget() float64        { return a.Budget }
func (a *Activity) GetTimeBudget() int64      { return a.TimeBudget }
func (a *Activity) IsMonthlyBudget() bool     { return a.BudgetType == BudgetTypeMonthly }

// Global reports whether the activity is not bound to a single project.
func (a *Activity) Global() bool { return a.ProjectID == nil }
