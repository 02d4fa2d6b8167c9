package analytics

import (
	"sort"
	"time"

	"fintrack/internal/core"
)

// TopCategoryCount bounds Report.TopCategories.
const TopCategoryCount = 5

// CategoryStats totals one category of a report.
type CategoryStats struct {
	Expenses     core.Money `json:"expenses"`
	Income       core.Money `json:"income"`
	Transactions int        `json:"transactions"`
}

// CategoryTotal is one entry of the top expense categories.
type CategoryTotal struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
}

// Report is the full financial report of a date range.
type Report struct {
	Summary       Summary                  `json:"summary"`
	CategoryStats map[string]CategoryStats `json:"category_breakdown"`
	TopCategories []CategoryTotal          `json:"top_categories"`
	Transactions  []core.Transaction       `json:"transactions"`
	ReportPeriod  string                   `json:"report_period"`
	GeneratedAt   time.Time                `json:"generated_at"`
}

// BuildReport folds txs into a report for r. Transactions are listed newest
// first; equal dates keep their input order.
func BuildReport(txs []core.Transaction, r DateRange, generatedAt time.Time) Report {
	stats := make(map[string]CategoryStats)
	order := make([]string, 0)
	for _, tx := range txs {
		st, seen := stats[tx.Category]
		if !seen {
			order = append(order, tx.Category)
		}
		switch tx.Kind {
		case core.KindExpense:
			st.Expenses = st.Expenses.Add(tx.Amount)
		case core.KindIncome:
			st.Income = st.Income.Add(tx.Amount)
		}
		st.Transactions++
		stats[tx.Category] = st
	}

	listed := make([]core.Transaction, len(txs))
	copy(listed, txs)
	sort.SliceStable(listed, func(i, j int) bool {
		return listed[i].Date.After(listed[j].Date)
	})

	return Report{
		Summary:       Summarize(txs),
		CategoryStats: stats,
		TopCategories: TopExpenseCategories(order, stats, TopCategoryCount),
		Transactions:  listed,
		ReportPeriod:  r.Start.String() + " to " + r.End.String(),
		GeneratedAt:   generatedAt,
	}
}

// TopExpenseCategories ranks categories in order by descending expense
// total and keeps at most n. Categories without expenses are skipped; ties
// keep their position in order.
func TopExpenseCategories(order []string, stats map[string]CategoryStats, n int) []CategoryTotal {
	ranked := make([]CategoryTotal, 0, len(order))
	for _, name := range order {
		if exp := stats[name].Expenses; exp.Cents > 0 {
			ranked = append(ranked, CategoryTotal{Category: name, Amount: exp})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount.Cents > ranked[j].Amount.Cents
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
