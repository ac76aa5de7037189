package engine

import (
	"errors"
	"fmt"

	"spendwise/internal/store"
)

// Error classes. Every error returned by a mutation wraps exactly one of
// ErrValidation or ErrRemote.
var (
	ErrValidation = errors.New("validation failed")
	ErrRemote     = errors.New("remote store failure")
)

var (
	ErrNotSignedIn       = errors.New("not signed in")
	ErrMissingID         = errors.New("missing document id")
	ErrDuplicateCategory = errors.New("category name already exists")
	ErrCategoryInUse     = errors.New("category is referenced by transactions or budgets")
	ErrDefaultCategory   = errors.New("default categories cannot be deleted")
	ErrDuplicateBudget   = errors.New("budget already exists for this category and period")
)

// UserError pairs an error with the message shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string { return e.Err.Error() }

func (e *UserError) Unwrap() error { return e.Err }

func validation(err error, msg string) error {
	return &UserError{Err: fmt.Errorf("%w: %w", ErrValidation, err), UserMessage: msg}
}

func remote(op string, err error, msg string) error {
	return &UserError{Err: fmt.Errorf("%w: %s: %w", ErrRemote, op, err), UserMessage: msg}
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsRemote(err error) bool { return errors.Is(err, ErrRemote) }

// UserMessage returns the user-facing text for err.
func UserMessage(err error) string {
	var ue *UserError
	if errors.As(err, &ue) && ue.UserMessage != "" {
		return ue.UserMessage
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// SubscriptionError is recorded on a collection whose live query failed.
type SubscriptionError struct {
	Collection store.Kind
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("%s subscription: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

type Status string

const (
	Submitted Status = "submitted"
	Failed    Status = "failed"
)

// Submission is the first phase of a mutation: the store accepted (or
// refused) the write. The resulting state arrives later through the
// collection snapshots, never through the Submission.
type Submission struct {
	Status Status `json:"status"`
	ID     string `json:"id,omitempty"`
	Err    error  `json:"-"`
}

func submitted(id string) (Submission, error) {
	return Submission{Status: Submitted, ID: id}, nil
}

func failed(err error) (Submission, error) {
	return Submission{Status: Failed, Err: err}, err
}
