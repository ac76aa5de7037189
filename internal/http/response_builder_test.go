package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/core"
	"spendwise/internal/engine"
	"spendwise/internal/export"
	"spendwise/internal/insights"
	"spendwise/internal/store"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not signed in", engine.ErrNotSignedIn, http.StatusUnauthorized},
		{"duplicate category", fmt.Errorf("%w: %w", engine.ErrValidation, engine.ErrDuplicateCategory), http.StatusConflict},
		{"duplicate budget", engine.ErrDuplicateBudget, http.StatusConflict},
		{"category in use", engine.ErrCategoryInUse, http.StatusConflict},
		{"default category", engine.ErrDefaultCategory, http.StatusConflict},
		{"missing document", fmt.Errorf("update: %w", store.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: %w", engine.ErrValidation, core.ErrInvalidAmount), http.StatusUnprocessableEntity},
		{"bad body", errBadBody, http.StatusUnprocessableEntity},
		{"empty export", export.ErrNoTransactions, http.StatusUnprocessableEntity},
		{"empty description", insights.ErrEmptyDescription, http.StatusUnprocessableEntity},
		{"insights disabled", insights.ErrDisabled, http.StatusServiceUnavailable},
		{"sheets disabled", errSheetsDisabled, http.StatusServiceUnavailable},
		{"remote", fmt.Errorf("%w: %w", engine.ErrRemote, errors.New("connection reset")), http.StatusBadGateway},
		{"empty model response", insights.ErrEmptyResponse, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteSubmission(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)

	rr := httptest.NewRecorder()
	writeSubmission(rr, req, engine.Submission{Status: engine.Submitted, ID: "abc"}, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"status":"submitted","id":"abc"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	writeSubmission(rr, req, engine.Submission{Status: engine.Failed}, engine.ErrNotSignedIn)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "failed", body.Status)
	assert.NotEmpty(t, body.Message)
}

func TestCollectionState(t *testing.T) {
	body := collectionState(engine.State[core.Budget]{Loading: true})
	assert.NotNil(t, body.Items)
	assert.True(t, body.Loading)
	assert.Empty(t, body.Error)

	body = collectionState(engine.State[core.Budget]{Err: errors.New("permission denied")})
	assert.Equal(t, "permission denied", body.Error)

	b, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"loading":false,"error":"permission denied"}`, string(b))
}

func TestWriteAttachment(t *testing.T) {
	rr := httptest.NewRecorder()
	writeAttachment(rr, "application/pdf", "report.pdf", []byte("%PDF-1.3"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename="report.pdf"`)
	assert.Equal(t, "%PDF-1.3", rr.Body.String())
}
