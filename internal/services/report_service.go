package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// PeriodQuery selects the reporting range: a period tag, plus explicit
// bounds used only with the custom tag.
type PeriodQuery struct {
	Period string
	Start  core.Date
	End    core.Date
}

// SummaryView is a period summary together with the requested period tag
// and the range it resolved to.
type SummaryView struct {
	analytics.Summary
	Period    string    `json:"period"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
}

func newSummaryView(sum analytics.Summary, q PeriodQuery, r analytics.DateRange) SummaryView {
	tag := q.Period
	if tag == "" {
		tag = analytics.PeriodMonth
	}
	return SummaryView{Summary: sum, Period: tag, StartDate: r.Start, EndDate: r.End}
}

// ExportFile is a rendered export ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportService answers analytics, report and export queries. It never
// evaluates budgets. Summary and chart views are cached per user and range
// until the user's transactions change.
//
// Concurrent requests for the same view share one computation. Flights are
// keyed by the user's change generation, so a request made after a write
// never joins a computation that started before it.
type ReportService struct {
	store    storage.TransactionStore
	resolver *analytics.PeriodResolver
	cache    cache.Cache[any]
	now      func() time.Time

	flights     singleflight.Group
	mu          sync.Mutex
	generations map[string]uint64
}

// NewReportService returns a service. A nil viewCache disables caching.
func NewReportService(store storage.TransactionStore, resolver *analytics.PeriodResolver, viewCache cache.Cache[any]) *ReportService {
	if resolver == nil {
		resolver = analytics.NewPeriodResolver()
	}
	return &ReportService{
		store:       store,
		resolver:    resolver,
		cache:       viewCache,
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

// TransactionsChanged drops every cached view of the user.
func (s *ReportService) TransactionsChanged(userID string) {
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.DeletePrefix(userID + "|")
	}
}

func (s *ReportService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// view returns the cached view or computes it from the range's transactions.
// The result is cached only if no change was reported meanwhile.
func (s *ReportService) view(ctx context.Context, userID, name string, r analytics.DateRange, build func([]core.Transaction) any) (any, error) {
	key := cacheKey(userID, name, r)
	if v, ok := s.cached(key); ok {
		return v, nil
	}

	gen := s.generation(userID)
	v, err, shared := s.flights.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		// Joined callers must not fail because the first caller went away.
		txs, err := s.transactions(context.WithoutCancel(ctx), userID, r)
		if err != nil {
			return nil, err
		}
		v := build(txs)
		if s.generation(userID) == gen {
			s.remember(key, v)
		}
		return v, nil
	})
	if shared {
		slog.DebugContext(ctx, "Joined in-flight analytics view", "user_id", userID, "view", name)
	}
	return v, err
}

func (s *ReportService) Summary(ctx context.Context, userID string, q PeriodQuery) (SummaryView, error) {
	r := s.resolve(q)
	v, err := s.view(ctx, userID, "summary", r, func(txs []core.Transaction) any {
		return analytics.Summarize(txs)
	})
	if err != nil {
		return SummaryView{}, err
	}
	return newSummaryView(v.(analytics.Summary), q, r), nil
}

func (s *ReportService) Charts(ctx context.Context, userID string, q PeriodQuery) (analytics.Charts, error) {
	r := s.resolve(q)
	v, err := s.view(ctx, userID, "charts", r, func(txs []core.Transaction) any {
		return analytics.BuildCharts(txs)
	})
	if err != nil {
		return analytics.Charts{}, err
	}
	return v.(analytics.Charts), nil
}

func (s *ReportService) Report(ctx context.Context, userID string, q PeriodQuery) (analytics.Report, error) {
	r := s.resolve(q)
	txs, err := s.transactions(ctx, userID, r)
	if err != nil {
		return analytics.Report{}, err
	}
	return analytics.BuildReport(txs, r, s.now().UTC()), nil
}

// Export renders the range's transactions as "csv" or "json".
func (s *ReportService) Export(ctx context.Context, userID string, q PeriodQuery, format string) (ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "csv" && format != "json" {
		return ExportFile{}, fmt.Errorf("%w: unsupported format %q, use 'csv' or 'json'", core.ErrInvalidInput, format)
	}

	r := s.resolve(q)
	txs, err := s.transactions(ctx, userID, r)
	if err != nil {
		return ExportFile{}, err
	}
	filename := fmt.Sprintf("expense_report_%s_to_%s.%s", r.Start, r.End, format)

	if format == "csv" {
		body, err := renderCSV(txs)
		if err != nil {
			return ExportFile{}, err
		}
		return ExportFile{Filename: filename, ContentType: "text/csv", Body: body}, nil
	}

	body, err := json.MarshalIndent(struct {
		ReportPeriod string             `json:"report_period"`
		ExportedAt   time.Time          `json:"exported_at"`
		Transactions []core.Transaction `json:"transactions"`
	}{
		ReportPeriod: r.Start.String() + " to " + r.End.String(),
		ExportedAt:   s.now().UTC(),
		Transactions: txs,
	}, "", "  ")
	if err != nil {
		return ExportFile{}, fmt.Errorf("encode json export: %w", err)
	}
	return ExportFile{Filename: filename, ContentType: "application/json", Body: body}, nil
}

func renderCSV(txs []core.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Date", "Title", "Category", "Type", "Amount", "Description"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		desc := ""
		if tx.Description != nil {
			desc = *tx.Description
		}
		record := []string{tx.Date.String(), tx.Title, tx.Category, string(tx.Kind), tx.Amount.String(), desc}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ReportService) resolve(q PeriodQuery) analytics.DateRange {
	return s.resolver.Resolve(q.Period, q.Start, q.End)
}

func (s *ReportService) transactions(ctx context.Context, userID string, r analytics.DateRange) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, storage.TransactionFilter{UserID: userID, From: r.Start, To: r.End})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *ReportService) cached(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *ReportService) remember(key string, v any) {
	if s.cache != nil {
		s.cache.Set(key, v)
	}
}

func cacheKey(userID, view string, r analytics.DateRange) string {
	return userID + "|" + view + "|" + r.Start.String() + "|" + r.End.String()
}
