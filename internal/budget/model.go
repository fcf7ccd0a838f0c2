package budget

// Budgeted is the capability shared by customers, projects and activities
// that carry a monetary or time ceiling.
type Budgeted interface {
	GetID() int64
	GetName() string
	GetBudget() float64
	GetTimeBudget() int64
	IsMonthlyBudget() bool
}

// Model pairs a budget-carrying entity with its lifetime statistic and, for
// monthly budgets, the current-period statistic. Both are retained side by
// side and never merged.
type Model struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Budget     float64 `json:"budget"`
	TimeBudget int64   `json:"timeBudget"`
	Monthly    bool    `json:"monthly"`

	Total   Statistic `json:"total"`
	Current Statistic `json:"current"`
}

// NewModel seeds a model from the entity; statistics are filled by the service.
func NewModel(entity Budgeted) Model {
	return Model{
		ID:         entity.GetID(),
		Name:       entity.GetName(),
		Budget:     entity.GetBudget(),
		TimeBudget: entity.GetTimeBudget(),
		Monthly:    entity.IsMonthlyBudget(),
	}
}

// HasBudget reports whether a monetary ceiling is assigned.
func (m Model) HasBudget() bool { return m.Budget > 0 }

// HasTimeBudget reports whether a time ceiling is assigned.
func (m Model) HasTimeBudget() bool { return m.TimeBudget > 0 }

// effective returns the statistic budgets are tracked against: the current
// period for monthly budgets, lifetime otherwise.
func (m Model) effective() Statistic {
	if m.Monthly {
		return m.Current
	}
	return m.Total
}

// BudgetSpent is the monetary amount consumed in the tracked period.
func (m Model) BudgetSpent() float64 { return m.effective().Rate }

// BudgetOpen is the remaining monetary budget, floored at zero.
func (m Model) BudgetOpen() float64 {
	open := m.Budget - m.BudgetSpent()
	if open < 0 {
		return 0
	}
	return open
}

// TimeBudgetSpent is the seconds consumed in the tracked period.
func (m Model) TimeBudgetSpent() int64 { return m.effective().Duration }

// TimeBudgetOpen is the remaining time budget in seconds, floored at zero.
func (m Model) TimeBudgetOpen() int64 {
	open := m.TimeBudget - m.TimeBudgetSpent()
	if open < 0 {
		return 0
	}
	return open
}
