package cost

import (
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestOptimizer(budgets map[string]float64) *Optimizer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewOptimizer(StaticBudgets(budgets), logger)
}

func TestUnsetBudgetMeansUnlimited(t *testing.T) {
	optimizer := newTestOptimizer(nil)

	assert.True(t, optimizer.IsWithinBudget("anyone", 1e9))
	assert.True(t, math.IsInf(optimizer.GetRemainingBudget("anyone"), 1))
}

func TestBudgetEnforcement(t *testing.T) {
	optimizer := newTestOptimizer(map[string]float64{"acme": 10})

	assert.True(t, optimizer.IsWithinBudget("acme", 10))
	assert.False(t, optimizer.IsWithinBudget("acme", 10.01))

	optimizer.TrackCost("acme", 7.5)
	assert.Equal(t, 2.5, optimizer.GetRemainingBudget("acme"))
	assert.True(t, optimizer.IsWithinBudget("acme", 2.5))
	assert.False(t, optimizer.IsWithinBudget("acme", 2.51))
}

func TestZeroBudgetBlocksEverything(t *testing.T) {
	optimizer := newTestOptimizer(map[string]float64{"frozen": 0})

	assert.False(t, optimizer.IsWithinBudget("frozen", 0.0001))
	assert.True(t, optimizer.IsWithinBudget("frozen", 0))
	assert.Equal(t, float64(0), optimizer.GetRemainingBudget("frozen"))
}

func TestTrackCostIgnoresNonPositive(t *testing.T) {
	optimizer := newTestOptimizer(map[string]float64{"acme": 10})

	optimizer.TrackCost("acme", 0)
	optimizer.TrackCost("acme", -5)
	assert.Equal(t, float64(10), optimizer.GetRemainingBudget("acme"))
}

func TestSpendIsIsolatedPerTenant(t *testing.T) {
	optimizer := newTestOptimizer(map[string]float64{"acme": 10, "globex": 10})

	optimizer.TrackCost("acme", 9)
	assert.Equal(t, float64(1), optimizer.GetRemainingBudget("acme"))
	assert.Equal(t, float64(10), optimizer.GetRemainingBudget("globex"))
}

func TestOverspendIsTrackedNotClamped(t *testing.T) {
	optimizer := newTestOptimizer(map[string]float64{"acme": 10})

	optimizer.TrackCost("acme", 12)
	assert.Equal(t, float64(-2), optimizer.GetRemainingBudget("acme"))
	assert.False(t, optimizer.IsWithinBudget("acme", 0.01))
}

func TestResetMonthlyTracking(t *testing.T) {
	optimizer := newTestOptimizer(map[string]float64{"acme": 10})

	optimizer.TrackCost("acme", 9.99)
	optimizer.ResetMonthlyTracking()

	assert.Equal(t, float64(10), optimizer.GetRemainingBudget("acme"))
	assert.True(t, optimizer.IsWithinBudget("acme", 10))
}
