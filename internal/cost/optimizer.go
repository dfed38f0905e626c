package cost

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// BudgetSource looks up the configured monthly budget for a tenant. A false
// return means no budget is configured, which is treated as unlimited.
type BudgetSource interface {
	GetBudget(tenantID string) (float64, bool)
}

// StaticBudgets is a BudgetSource backed by a fixed map
type StaticBudgets map[string]float64

// GetBudget implements BudgetSource
func (b StaticBudgets) GetBudget(tenantID string) (float64, bool) {
	budget, ok := b[tenantID]
	return budget, ok
}

// Optimizer enforces per-tenant monthly spend ceilings. Accumulators only
// grow until ResetMonthlyTracking is called by an external scheduler; the
// optimizer does not schedule itself.
type Optimizer struct {
	budgets BudgetSource
	logger  *logrus.Logger

	mu    sync.Mutex
	spend map[string]float64
}

// NewOptimizer creates a cost optimizer. A nil source means no tenant has a
// budget and everything is within budget.
func NewOptimizer(budgets BudgetSource, logger *logrus.Logger) *Optimizer {
	if budgets == nil {
		budgets = StaticBudgets(nil)
	}
	return &Optimizer{
		budgets: budgets,
		logger:  logger,
		spend:   make(map[string]float64),
	}
}

// IsWithinBudget reports whether the estimated cost fits the tenant's
// remaining monthly budget.
func (o *Optimizer) IsWithinBudget(tenantID string, estimatedCost float64) bool {
	budget, ok := o.budgets.GetBudget(tenantID)
	if !ok {
		return true
	}

	o.mu.Lock()
	spent := o.spend[tenantID]
	o.mu.Unlock()

	return spent+estimatedCost <= budget
}

// TrackCost accumulates actual spend for a tenant
func (o *Optimizer) TrackCost(tenantID string, cost float64) {
	if cost <= 0 {
		return
	}

	o.mu.Lock()
	o.spend[tenantID] += cost
	total := o.spend[tenantID]
	o.mu.Unlock()

	if budget, ok := o.budgets.GetBudget(tenantID); ok && total > budget {
		o.logger.WithFields(logrus.Fields{
			"tenant": tenantID,
			"spent":  total,
			"budget": budget,
		}).Warn("Tenant exceeded monthly budget")
	}
}

// GetRemainingBudget returns the tenant's remaining budget, or +Inf when no
// budget is configured (unset means unlimited, not zero).
func (o *Optimizer) GetRemainingBudget(tenantID string) float64 {
	budget, ok := o.budgets.GetBudget(tenantID)
	if !ok {
		return math.Inf(1)
	}

	o.mu.Lock()
	spent := o.spend[tenantID]
	o.mu.Unlock()

	return budget - spent
}

// ResetMonthlyTracking clears all tenant accumulators. Intended to be called
// on a monthly boundary by an external scheduler.
func (o *Optimizer) ResetMonthlyTracking() {
	o.mu.Lock()
	o.spend = make(map[string]float64)
	o.mu.Unlock()

	o.logger.Info("Monthly cost tracking reset")
}
