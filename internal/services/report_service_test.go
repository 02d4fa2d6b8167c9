package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

func seedMonth(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	note := "weekly shop"
	for _, in := range []TransactionInput{
		{Title: "Groceries", Amount: money(40), Category: "Food & Dining", Date: core.NewDate(2025, 3, 3), Description: &note},
		{Title: "Bus, monthly", Amount: money(25.5), Category: "Transportation", Date: core.NewDate(2025, 3, 5)},
		{Title: "Salary", Amount: money(2000), Category: "Salary", Kind: core.KindIncome, Date: core.NewDate(2025, 3, 1)},
		{Title: "Old", Amount: money(99), Category: "Shopping", Date: core.NewDate(2025, 2, 27)},
	} {
		_, err := f.txs.Create(ctx, testUser, in)
		require.NoError(t, err)
	}
}

func TestReportSummary(t *testing.T) {
	f := newFixture(t)
	seedMonth(t, f)

	view, err := f.reports.Summary(context.Background(), testUser, PeriodQuery{Period: analytics.PeriodMonth})
	require.NoError(t, err)
	assert.Equal(t, "month", view.Period)
	assert.Equal(t, "2025-03-01", view.StartDate.String())
	assert.Equal(t, "2025-03-31", view.EndDate.String())
	assert.Equal(t, int64(6550), view.TotalExpenses.Cents)
	assert.Equal(t, int64(200000), view.TotalIncome.Cents)
	assert.Equal(t, int64(193450), view.Balance.Cents)
	assert.Equal(t, 3, view.TransactionCount)
}

func TestReportCustomRange(t *testing.T) {
	f := newFixture(t)
	seedMonth(t, f)

	view, err := f.reports.Summary(context.Background(), testUser, PeriodQuery{
		Period: analytics.PeriodCustom,
		Start:  core.NewDate(2025, 2, 1),
		End:    core.NewDate(2025, 3, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, view.TransactionCount)
	assert.Equal(t, int64(9900), view.TotalExpenses.Cents)
}

func TestReportBuildsTopCategories(t *testing.T) {
	f := newFixture(t)
	seedMonth(t, f)

	rep, err := f.reports.Report(context.Background(), testUser, PeriodQuery{Period: analytics.PeriodMonth})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01 to 2025-03-31", rep.ReportPeriod)
	require.Len(t, rep.TopCategories, 2)
	assert.Equal(t, "Food & Dining", rep.TopCategories[0].Category)
	assert.Equal(t, "Transportation", rep.TopCategories[1].Category)
	require.Len(t, rep.Transactions, 3)
	assert.Equal(t, "Bus, monthly", rep.Transactions[0].Title)
}

func TestReportEmptyPeriod(t *testing.T) {
	f := newFixture(t)

	rep, err := f.reports.Report(context.Background(), testUser, PeriodQuery{Period: analytics.PeriodToday})
	require.NoError(t, err)
	assert.Zero(t, rep.Summary.TransactionCount)
	assert.Empty(t, rep.TopCategories)
	assert.Empty(t, rep.Transactions)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	seedMonth(t, f)

	file, err := f.reports.Export(context.Background(), testUser, PeriodQuery{Period: analytics.PeriodMonth}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "expense_report_2025-03-01_to_2025-03-31.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	records, err := csv.NewReader(strings.NewReader(string(file.Body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Date", "Title", "Category", "Type", "Amount", "Description"}, records[0])
	assert.Equal(t, []string{"2025-03-05", "Bus, monthly", "Transportation", "expense", "25.50", ""}, records[1])
	assert.Equal(t, []string{"2025-03-03", "Groceries", "Food & Dining", "expense", "40.00", "weekly shop"}, records[2])
}

func TestExportJSON(t *testing.T) {
	f := newFixture(t)
	seedMonth(t, f)

	file, err := f.reports.Export(context.Background(), testUser, PeriodQuery{Period: analytics.PeriodMonth}, "json")
	require.NoError(t, err)
	assert.Equal(t, "expense_report_2025-03-01_to_2025-03-31.json", file.Filename)
	assert.Equal(t, "application/json", file.ContentType)

	var doc struct {
		ReportPeriod string             `json:"report_period"`
		ExportedAt   time.Time          `json:"exported_at"`
		Transactions []core.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(file.Body, &doc))
	assert.Equal(t, "2025-03-01 to 2025-03-31", doc.ReportPeriod)
	assert.True(t, doc.ExportedAt.Equal(f.clock.Now()))
	assert.Len(t, doc.Transactions, 3)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t)

	_, err := f.reports.Export(context.Background(), testUser, PeriodQuery{}, "xlsx")
	assert.True(t, errors.Is(err, core.ErrInvalidInput), "got %v", err)
}

func TestReportCacheInvalidatedOnChange(t *testing.T) {
	store := memory.New()
	clock := newTestClock()
	resolver := &analytics.PeriodResolver{Now: clock.Now}
	views := cache.NewLRUCache[any](16, time.Hour)
	reports := NewReportService(store, resolver, views)
	txs := NewTransactionService(store, nil, reports)
	txs.now = clock.Now
	ctx := context.Background()
	q := PeriodQuery{Period: analytics.PeriodMonth}

	_, err := txs.Create(ctx, testUser, TransactionInput{Title: "a", Amount: money(10), Category: "Travel"})
	require.NoError(t, err)

	first, err := reports.Summary(ctx, testUser, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), first.TotalExpenses.Cents)
	_, err = reports.Charts(ctx, testUser, q)
	require.NoError(t, err)
	assert.Equal(t, 2, views.Size())

	// Stored behind the service's back: the cached view is served.
	require.NoError(t, store.InsertTransaction(ctx, core.Transaction{
		ID: "direct", UserID: testUser, Title: "b", Amount: money(5),
		Category: "Travel", Kind: core.KindExpense, Date: core.DateOf(clock.Now()),
	}))
	cached, err := reports.Summary(ctx, testUser, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cached.TotalExpenses.Cents)

	_, err = txs.Create(ctx, testUser, TransactionInput{Title: "c", Amount: money(1), Category: "Travel"})
	require.NoError(t, err)
	assert.Zero(t, views.Size())

	fresh, err := reports.Summary(ctx, testUser, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1600), fresh.TotalExpenses.Cents)
}

func TestSummaryEchoesPeriodTag(t *testing.T) {
	f := newFixture(t)

	view, err := f.reports.Summary(context.Background(), testUser, PeriodQuery{})
	require.NoError(t, err)
	assert.Equal(t, "month", view.Period, "missing tag defaults to month")

	view, err = f.reports.Summary(context.Background(), testUser, PeriodQuery{Period: "week"})
	require.NoError(t, err)
	assert.Equal(t, "week", view.Period)
	assert.Equal(t, "2025-03-10", view.StartDate.String())
	assert.Equal(t, "2025-03-16", view.EndDate.String())

	out, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"period":"week","start_date":"2025-03-10","end_date":"2025-03-16"`)
}

func TestSummaryNotCachedAcrossConcurrentChange(t *testing.T) {
	store := newSnapshotStore()
	ctx := context.Background()
	reports := NewReportService(store, nil, cache.NewLRUCache[any](10, time.Hour))
	q := PeriodQuery{Period: "custom", Start: core.NewDate(2025, 3, 1), End: core.NewDate(2025, 3, 31)}

	done := make(chan SummaryView)
	go func() {
		view, _ := reports.Summary(ctx, testUser, q)
		done <- view
	}()
	<-store.entered

	insertShopping(t, store, "late", 25)
	reports.TransactionsChanged(testUser)
	close(store.release)

	stale := <-done
	assert.Zero(t, stale.TransactionCount, "the first read saw the old snapshot")

	view, err := reports.Summary(ctx, testUser, q)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TransactionCount, "the stale view was not cached")
	assert.Equal(t, int64(2500), view.TotalExpenses.Cents)
}
