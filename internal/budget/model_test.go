package budget

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type budgetedStub struct {
	id         int64
	name       string
	budget     float64
	timeBudget int64
	monthly    bool
}

func (b budgetedStub) GetID() int64          { return b.id }
func (b budgetedStub) GetName() string       { return b.name }
func (b budgetedStub) GetBudget() float64    { return b.budget }
func (b budgetedStub) GetTimeBudget() int64  { return b.timeBudget }
func (b budgetedStub) IsMonthlyBudget() bool { return b.monthly }

func TestModelLifetimeBudget(t *testing.T) {
	m := NewModel(budgetedStub{id: 1, name: "Launch", budget: 1000, timeBudget: 7200})
	m.Total = Statistic{Rate: 400, Duration: 3600}
	m.Current = Statistic{Rate: 999, Duration: 7000}

	require.True(t, m.HasBudget())
	require.True(t, m.HasTimeBudget())
	require.InDelta(t, 400, m.BudgetSpent(), 1e-9)
	require.InDelta(t, 600, m.BudgetOpen(), 1e-9)
	require.EqualValues(t, 3600, m.TimeBudgetSpent())
	require.EqualValues(t, 3600, m.TimeBudgetOpen())
}

func TestModelMonthlyBudgetTracksCurrentPeriod(t *testing.T) {
	m := NewModel(budgetedStub{id: 1, budget: 500, monthly: true})
	m.Total = Statistic{Rate: 4000}
	m.Current = Statistic{Rate: 120}

	require.InDelta(t, 120, m.BudgetSpent(), 1e-9)
	require.InDelta(t, 380, m.BudgetOpen(), 1e-9)
}

func TestModelOpenFlooredAtZero(t *testing.T) {
	m := NewModel(budgetedStub{id: 1, budget: 100, timeBudget: 60})
	m.Total = Statistic{Rate: 250, Duration: 90}

	require.InDelta(t, 0, m.BudgetOpen(), 1e-9)
	require.EqualValues(t, 0, m.TimeBudgetOpen())
}

func TestModelWithoutBudget(t *testing.T) {
	m := NewModel(budgetedStub{id: 1})
	require.False(t, m.HasBudget())
	require.False(t, m.HasTimeBudget())
}
