package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sizer is implemented by caches that report their entry count.
type Sizer interface {
	Size() int
}

// Dependencies are the collaborators the handlers call into.
type Dependencies struct {
	Users        *services.UserService
	Categories   *services.CategoryService
	Budgets      *services.BudgetService
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Store        Pinger
	ViewCache    Sizer // optional
	Logger       *log.Logger
}

// Options tune the middleware chain.
type Options struct {
	CORSOrigins        []string
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	users        *services.UserService
	categories   *services.CategoryService
	budgets      *services.BudgetService
	transactions *services.TransactionService
	reports      *services.ReportService
	store        Pinger
	viewCache    Sizer
	logger       *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime              time.Time
	transactionsCreated int64
	alertsRaised        int64
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	detector := security.NewDetector()
	limiterConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		users:            deps.Users,
		categories:       deps.Categories,
		budgets:          deps.Budgets,
		transactions:     deps.Transactions,
		reports:          deps.Reports,
		store:            deps.Store,
		viewCache:        deps.ViewCache,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(limiterConfig),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	cors := security.NewCORS(security.DefaultCORSConfig(opts.CORSOrigins))
	limit := s.rateLimiter.MutatingMiddleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = cors.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = detector.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.HandleFunc("GET /api/categories", s.authenticated(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.authenticated(s.handleCreateCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.authenticated(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.authenticated(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/budgets", s.authenticated(s.handleListBudgets))
	mux.HandleFunc("POST /api/budgets", s.authenticated(s.handleCreateBudget))
	mux.HandleFunc("POST /api/budgets/evaluate", s.authenticated(s.handleEvaluateBudgets))
	mux.HandleFunc("PUT /api/budgets/{id}", s.authenticated(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.authenticated(s.handleDeleteBudget))
	mux.HandleFunc("GET /api/budgets/alerts", s.authenticated(s.handleListAlerts))
	mux.HandleFunc("PUT /api/budgets/alerts/{id}/read", s.authenticated(s.handleMarkAlertRead))

	mux.HandleFunc("GET /api/expenses", s.authenticated(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.authenticated(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.authenticated(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.authenticated(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/analytics/summary", s.authenticated(s.handleAnalyticsSummary))
	mux.HandleFunc("GET /api/analytics/charts", s.authenticated(s.handleAnalyticsCharts))
	mux.HandleFunc("GET /api/reports/summary", s.authenticated(s.handleReportSummary))
	mux.HandleFunc("GET /api/reports/export", s.authenticated(s.handleReportExport))
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
