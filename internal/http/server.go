// Package http serves the JSON API over the sync engine.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/charts"
	"spendwise/internal/engine"
	"spendwise/internal/insights"
	"spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/notify"
	"spendwise/internal/sheets"
)

var errSheetsDisabled = errors.New("google sheets export is not configured")

// Deps are the collaborators a Server needs. Sheets may be nil; Insights
// may wrap a nil generator.
type Deps struct {
	Engine      *engine.Engine
	Session     *auth.Session
	Broadcaster *notify.Broadcaster
	Charts      *charts.Renderer
	Insights    *insights.Service
	Sheets      sheets.RowWriter
	Logger      *log.Logger
	RateLimit   int

	// Ready reports whether the backing store is reachable.
	Ready func(context.Context) error
}

type Server struct {
	http.Server

	engine      *engine.Engine
	session     *auth.Session
	broadcaster *notify.Broadcaster
	charts      *charts.Renderer
	insights    *insights.Service
	sheets      sheets.RowWriter
	logger      *log.Logger
	ready       func(context.Context) error
	now         func() time.Time
	started     time.Time

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	closing      chan struct{} // closed on Shutdown to end event streams
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger, _ = log.New(log.DefaultConfig())
	}
	logger := d.Logger.WithComponent(log.ComponentHTTP)
	if d.Insights == nil {
		d.Insights = insights.New(nil, logger.Logger)
	}
	if d.Charts == nil {
		d.Charts = charts.NewRenderer(16, 5*time.Minute)
	}

	s := &Server{
		engine:      d.Engine,
		session:     d.Session,
		broadcaster: d.Broadcaster,
		charts:      d.Charts,
		insights:    d.Insights,
		sheets:      d.Sheets,
		logger:      logger,
		ready:       d.Ready,
		now:         time.Now,
		started:     time.Now(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RateLimit}),
		detector:    security.NewDetector(),
		closing:     make(chan struct{}),
	}
	s.tracer = trace.NewMiddleware(s.detector.ClientIP, logger)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.detector.ClientIP, s.onRateLimit,
		http.MethodPost, http.MethodPut, http.MethodDelete)(h)
	h = s.detector.Middleware(logger.Logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("POST /api/session", s.handleSignIn)
	mux.HandleFunc("DELETE /api/session", s.handleSignOut)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleAddTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleAddCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleAddBudget)
	mux.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/budgets/overview", s.handleBudgetOverview)
	mux.HandleFunc("GET /api/charts/pie.png", s.handlePieChart)
	mux.HandleFunc("GET /api/charts/line.png", s.handleLineChart)

	mux.HandleFunc("GET /api/export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/export.pdf", s.handleExportPDF)
	mux.HandleFunc("POST /api/export/sheets", s.handleExportSheets)

	mux.HandleFunc("POST /api/insights/suggest", s.handleSuggestCategory)
	mux.HandleFunc("POST /api/insights/summary", s.handleSummarizeSpending)

	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	mux.HandleFunc("GET /api/events", s.handleEvents)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:   http.StatusText(http.StatusTooManyRequests),
		Message: "Rate limit exceeded. Please try again later.",
	})
}

// Shutdown stops background helpers and drains the HTTP server. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.closing)
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
