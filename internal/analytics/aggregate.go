package analytics

import (
	"sort"

	"fintrack/internal/core"
)

// Summary is the headline view over a set of transactions.
type Summary struct {
	TotalExpenses     core.Money            `json:"total_expenses"`
	TotalIncome       core.Money            `json:"total_income"`
	Balance           core.Money            `json:"balance"`
	CategoryBreakdown map[string]core.Money `json:"category_breakdown"`
	TransactionCount  int                   `json:"transaction_count"`
}

// Series is a labelled list of amounts, one value per label.
type Series struct {
	Labels []string     `json:"labels"`
	Values []core.Money `json:"data"`
}

// DailySeries holds expense and income totals per date. Dates is the sorted
// union of every date with a transaction of either kind.
type DailySeries struct {
	Dates    []string     `json:"labels"`
	Expenses []core.Money `json:"expenses"`
	Income   []core.Money `json:"income"`
}

// Charts feeds the dashboard: category pies per kind and daily bars.
type Charts struct {
	ExpenseByCategory Series      `json:"expense_pie_data"`
	IncomeByCategory  Series      `json:"income_pie_data"`
	Daily             DailySeries `json:"daily_bar_data"`
}

// orderedTotals sums amounts per key and remembers first-seen key order.
type orderedTotals struct {
	keys   []string
	totals map[string]core.Money
}

func newOrderedTotals() *orderedTotals {
	return &orderedTotals{totals: make(map[string]core.Money)}
}

func (o *orderedTotals) add(key string, m core.Money) {
	cur, ok := o.totals[key]
	if !ok {
		o.keys = append(o.keys, key)
	}
	o.totals[key] = cur.Add(m)
}

func (o *orderedTotals) series() Series {
	s := Series{Labels: make([]string, 0, len(o.keys)), Values: make([]core.Money, 0, len(o.keys))}
	for _, k := range o.keys {
		s.Labels = append(s.Labels, k)
		s.Values = append(s.Values, o.totals[k])
	}
	return s
}

// Summarize computes totals and the expense-only category breakdown.
func Summarize(txs []core.Transaction) Summary {
	s := Summary{CategoryBreakdown: make(map[string]core.Money)}
	for _, tx := range txs {
		switch tx.Kind {
		case core.KindExpense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
			s.CategoryBreakdown[tx.Category] = s.CategoryBreakdown[tx.Category].Add(tx.Amount)
		case core.KindIncome:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	s.TransactionCount = len(txs)
	return s
}

// BuildCharts produces per-category pie series and the per-date bar series.
func BuildCharts(txs []core.Transaction) Charts {
	expenses := newOrderedTotals()
	income := newOrderedTotals()
	dailyExpense := make(map[string]core.Money)
	dailyIncome := make(map[string]core.Money)
	dates := make(map[string]struct{})

	for _, tx := range txs {
		day := tx.Date.String()
		switch tx.Kind {
		case core.KindExpense:
			expenses.add(tx.Category, tx.Amount)
			dailyExpense[day] = dailyExpense[day].Add(tx.Amount)
		case core.KindIncome:
			income.add(tx.Category, tx.Amount)
			dailyIncome[day] = dailyIncome[day].Add(tx.Amount)
		default:
			continue
		}
		dates[day] = struct{}{}
	}

	axis := make([]string, 0, len(dates))
	for d := range dates {
		axis = append(axis, d)
	}
	sort.Strings(axis)

	daily := DailySeries{
		Dates:    axis,
		Expenses: make([]core.Money, len(axis)),
		Income:   make([]core.Money, len(axis)),
	}
	for i, d := range axis {
		daily.Expenses[i] = dailyExpense[d]
		daily.Income[i] = dailyIncome[d]
	}

	return Charts{
		ExpenseByCategory: expenses.series(),
		IncomeByCategory:  income.series(),
		Daily:             daily,
	}
}
