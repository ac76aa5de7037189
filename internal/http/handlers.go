package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/report"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the store and reports helper state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "rejected": s.rateLimiter.Rejected()},
		"chart_cache":  map[string]any{"entries": s.charts.Cache().Size()},
		"insights":     s.insights.Enabled(),
		"sheets":       s.sheets != nil,
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

type sessionBody struct {
	Identity string `json:"identity"`
	SignedIn bool   `json:"signedIn"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := s.session.Current()
	writeJSON(w, http.StatusOK, sessionBody{Identity: id, SignedIn: id != ""})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	identity := p.Get("identity")
	if err := s.session.SignIn(identity); err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errBadBody, err))
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Signed in", log.FieldOperation, log.OpSignIn, log.FieldIdentity, identity)
	writeJSON(w, http.StatusOK, sessionBody{Identity: identity, SignedIn: true})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.session.SignOut()
	log.FromContext(r.Context()).InfoContext(r.Context(), "Signed out", log.FieldOperation, log.OpSignOut)
	w.WriteHeader(http.StatusNoContent)
}

// mutationLog records a mutation outcome with the request logger.
func (s *Server) mutationLog(r *http.Request, op, collection, id string, err error) {
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogMutation(r.Context(), op, s.engine.Identity(), collection, id, err)
}

// Transactions

// handleListTransactions serves the transaction collection. categoryId
// narrows it to one category; resolved=1 joins category names.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	state := s.engine.Transactions.Snapshot()
	if id := r.URL.Query().Get("categoryId"); id != "" {
		kept := state.Items[:0]
		for _, tx := range state.Items {
			if tx.CategoryID == id {
				kept = append(kept, tx)
			}
		}
		state.Items = kept
	}
	if r.URL.Query().Get("resolved") == "1" {
		body := collectionState(state)
		writeJSON(w, http.StatusOK, collectionBody[report.Entry]{
			Items:   report.Resolve(state.Items, s.engine.Categories.Items()),
			Loading: body.Loading,
			Error:   body.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, collectionState(state))
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := parseTransaction(p)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errBadBody, err))
		return
	}
	sub, err := s.engine.AddTransaction(r.Context(), tx)
	s.mutationLog(r, log.OpCreate, "transactions", sub.ID, err)
	writeSubmission(w, r, sub, err)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := parseTransaction(p)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errBadBody, err))
		return
	}
	tx.ID = r.PathValue("id")
	sub, err := s.engine.UpdateTransaction(r.Context(), tx)
	s.mutationLog(r, log.OpUpdate, "transactions", tx.ID, err)
	writeSubmission(w, r, sub, err)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.engine.DeleteTransaction(r.Context(), id)
	s.mutationLog(r, log.OpDelete, "transactions", id, err)
	writeSubmission(w, r, sub, err)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, collectionState(s.engine.Categories.Snapshot()))
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := s.engine.AddCategory(r.Context(), parseCategory(p))
	s.mutationLog(r, log.OpCreate, "categories", sub.ID, err)
	writeSubmission(w, r, sub, err)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c := parseCategory(p)
	c.ID = r.PathValue("id")
	sub, err := s.engine.UpdateCategory(r.Context(), c)
	s.mutationLog(r, log.OpUpdate, "categories", c.ID, err)
	writeSubmission(w, r, sub, err)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.engine.DeleteCategory(r.Context(), id)
	s.mutationLog(r, log.OpDelete, "categories", id, err)
	writeSubmission(w, r, sub, err)
}

// Budgets

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	state := s.engine.Budgets.Snapshot()
	if id := r.URL.Query().Get("categoryId"); id != "" {
		kept := state.Items[:0]
		for _, b := range state.Items {
			if b.CategoryID == id {
				kept = append(kept, b)
			}
		}
		state.Items = kept
	}
	writeJSON(w, http.StatusOK, collectionState(state))
}

func (s *Server) handleAddBudget(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := parseBudget(p)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errBadBody, err))
		return
	}
	sub, err := s.engine.AddBudget(r.Context(), b)
	s.mutationLog(r, log.OpCreate, "budgets", sub.ID, err)
	writeSubmission(w, r, sub, err)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	p, err := parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := parseBudget(p)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errBadBody, err))
		return
	}
	b.ID = r.PathValue("id")
	sub, err := s.engine.UpdateBudget(r.Context(), b)
	s.mutationLog(r, log.OpUpdate, "budgets", b.ID, err)
	writeSubmission(w, r, sub, err)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.engine.DeleteBudget(r.Context(), id)
	s.mutationLog(r, log.OpDelete, "budgets", id, err)
	writeSubmission(w, r, sub, err)
}

// signedIn writes 401 and reports false when nobody is signed in.
func (s *Server) signedIn(w http.ResponseWriter, r *http.Request) bool {
	if s.engine.Identity() != "" {
		return true
	}
	writeJSON(w, http.StatusUnauthorized, errorBody{
		Error:   http.StatusText(http.StatusUnauthorized),
		Message: "You must be signed in.",
	})
	return false
}

// data returns the current collection contents.
func (s *Server) data() ([]core.Transaction, []core.Category, []core.Budget) {
	return s.engine.Transactions.Items(), s.engine.Categories.Items(), s.engine.Budgets.Items()
}
