package http

import (
	"errors"
	"net/http"

	"spendwise/internal/charts"
	"spendwise/internal/log"
	"spendwise/internal/report"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !s.signedIn(w, r) {
		return
	}
	txs, cats, budgets := s.data()
	writeJSON(w, http.StatusOK, report.BuildDashboard(txs, cats, budgets, s.now()))
}

func (s *Server) handleBudgetOverview(w http.ResponseWriter, r *http.Request) {
	if !s.signedIn(w, r) {
		return
	}
	txs, cats, budgets := s.data()
	overview := report.BudgetOverview(budgets, txs, cats, s.now())
	if overview == nil {
		overview = []report.Utilization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": overview})
}

// handlePieChart draws month-to-date spending by category.
func (s *Server) handlePieChart(w http.ResponseWriter, r *http.Request) {
	if !s.signedIn(w, r) {
		return
	}
	txs, cats, _ := s.data()
	from, to := report.MonthToDate(s.now())
	img, err := s.charts.Pie(report.CategoryBreakdown(txs, cats, from, to))
	s.writeChart(w, r, "pie", img, err)
}

// handleLineChart draws expense totals for the last six months.
func (s *Server) handleLineChart(w http.ResponseWriter, r *http.Request) {
	if !s.signedIn(w, r) {
		return
	}
	txs, _, _ := s.data()
	img, err := s.charts.Line(report.MonthlySeries(txs, s.now(), report.SeriesMonths))
	s.writeChart(w, r, "line", img, err)
}

func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, kind string, img []byte, err error) {
	switch {
	case errors.Is(err, charts.ErrNoData):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart rendering failed",
			log.FieldComponent, log.ComponentCharts, log.FieldOperation, log.OpRender, "chart", kind, log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: http.StatusText(http.StatusInternalServerError), Message: "Could not render chart."})
	default:
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img)
	}
}
