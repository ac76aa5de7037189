package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendwise/internal/engine"
	"spendwise/internal/export"
	"spendwise/internal/insights"
	"spendwise/internal/log"
	"spendwise/internal/store"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Status  string `json:"status,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// collectionBody is a collection state as served to clients.
type collectionBody[T any] struct {
	Items   []T    `json:"items"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func collectionState[T any](s engine.State[T]) collectionBody[T] {
	body := collectionBody[T]{Items: s.Items, Loading: s.Loading}
	if body.Items == nil {
		body.Items = []T{}
	}
	if s.Err != nil {
		body.Error = s.Err.Error()
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error onto an HTTP status. Conflicts with existing
// data are 409, other refused input is 422 and store failures are 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, engine.ErrDuplicateCategory),
		errors.Is(err, engine.ErrDuplicateBudget),
		errors.Is(err, engine.ErrCategoryInUse),
		errors.Is(err, engine.ErrDefaultCategory):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case engine.IsValidation(err),
		errors.Is(err, errBadBody),
		errors.Is(err, export.ErrNoTransactions),
		errors.Is(err, insights.ErrEmptyDescription),
		errors.Is(err, insights.ErrInvalidSpendingData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, insights.ErrDisabled), errors.Is(err, errSheetsDisabled):
		return http.StatusServiceUnavailable
	case engine.IsRemote(err), errors.Is(err, insights.ErrEmptyResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and writes the error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldStatusCode, status)
	}
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Message: engine.UserMessage(err)})
}

// writeSubmission answers a mutation: 202 with the submission once the
// store accepted it, the mapped error status otherwise.
func writeSubmission(w http.ResponseWriter, r *http.Request, sub engine.Submission, err error) {
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Mutation failed", log.FieldError, err)
		}
		writeJSON(w, status, errorBody{Status: string(engine.Failed), Error: http.StatusText(status), Message: engine.UserMessage(err)})
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

func writeAttachment(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
