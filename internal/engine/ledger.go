package engine

import (
	"math"
	"time"

	"marketnexus/internal/market"
)

// CalculateSafeToSpend derives discretionary headroom from a monthly income,
// planned budget and expenses-to-date. Pure arithmetic: no cache, no feeds.
// Degenerate inputs (zero or negative budget) yield zero utilization rather
// than dividing by zero.
func CalculateSafeToSpend(in market.LedgerInput) market.LedgerResult {
	remaining := in.PlannedBudget - in.ActualExpenses

	safe := remaining
	if safe < 0 {
		safe = 0
	}

	utilization := 0.0
	if in.PlannedBudget > 0 {
		utilization = math.Round(in.ActualExpenses/in.PlannedBudget*100*100) / 100
	}

	status, message := classifyBudget(utilization)

	return market.LedgerResult{
		SafeToSpend:       safe,
		BudgetUtilization: utilization,
		RemainingBudget:   remaining,
		SavingsPotential:  in.Income - in.PlannedBudget,
		Status:            status,
		StatusMessage:     message,
		CalculatedAt:      time.Now().UTC(),
	}
}

func classifyBudget(utilization float64) (market.BudgetStatus, string) {
	switch {
	case utilization > 100:
		return market.BudgetOverBudget, "Over budget. Reduce discretionary spending immediately."
	case utilization >= 90:
		return market.BudgetCritical, "High spending risk. Adjust your expenses now."
	case utilization >= 70:
		return market.BudgetWarning, "Spending is getting close to your budget limit."
	default:
		return market.BudgetHealthy, "Budget on track."
	}
}
