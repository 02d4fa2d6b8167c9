package services

import (
	"fmt"

	"fintrack/internal/core"
)

// Spending thresholds, in percent of the budget limit.
const (
	WarningThreshold  = 80.0
	ExceededThreshold = 100.0
)

// AlertDecision is what the threshold policy asks the evaluator to record.
type AlertDecision struct {
	Kind    core.AlertKind
	Message string
}

// DecideAlert applies the threshold policy to a budget's spending. It
// returns false when no alert is warranted. Exceeded takes precedence over
// warning; at most one decision is made per budget per evaluation.
func DecideAlert(category string, spent, limit core.Money, percentage float64) (AlertDecision, bool) {
	switch {
	case percentage >= ExceededThreshold:
		return AlertDecision{
			Kind: core.AlertExceeded,
			Message: fmt.Sprintf("Budget exceeded for %s! Spent $%s of $%s",
				category, spent, limit),
		}, true
	case percentage >= WarningThreshold:
		return AlertDecision{
			Kind: core.AlertWarning,
			Message: fmt.Sprintf("Budget warning for %s! %.1f%% spent ($%s of $%s)",
				category, percentage, spent, limit),
		}, true
	default:
		return AlertDecision{}, false
	}
}
