package http

import (
	"net/http"

	"spendwise/internal/insights"
)

func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	if !s.signedIn(w, r) {
		return
	}
	p, err := parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name, err := s.insights.SuggestCategory(r.Context(), p.Get("description"), s.engine.Categories.Items())
	if err != nil {
		s.writeInsightError(w, r, err)
		return
	}
	body := map[string]string{"category": name}
	for _, c := range s.engine.Categories.Items() {
		if c.Name == name {
			body["categoryId"] = c.ID
			break
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// handleSummarizeSpending summarizes spendingData from the body, or the
// signed-in user's expenses when none is sent.
func (s *Server) handleSummarizeSpending(w http.ResponseWriter, r *http.Request) {
	if !s.signedIn(w, r) {
		return
	}
	p, err := parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data := p.Raw("spendingData")
	if !p.Has("spendingData") {
		txs, cats, _ := s.data()
		if data, err = insights.SpendingData(txs, cats); err != nil {
			writeError(w, r, err)
			return
		}
	}
	summary, err := s.insights.SummarizeSpending(r.Context(), data)
	if err != nil {
		s.writeInsightError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// writeInsightError treats unclassified model failures as upstream errors.
func (s *Server) writeInsightError(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		s.logger.WarnContext(r.Context(), "Insight request failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: http.StatusText(http.StatusBadGateway), Message: "The assistant is unavailable right now."})
		return
	}
	writeError(w, r, err)
}
