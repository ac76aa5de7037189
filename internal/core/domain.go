package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Monthly BudgetPeriod = "monthly"
	Yearly  BudgetPeriod = "yearly"
)

const (
	MaxDescriptionLength  = 200
	MaxCategoryNameLength = 50
)

type (
	TransactionType string

	BudgetPeriod string

	// Transaction is a single income or expense entry. ID is assigned by the
	// store and is omitted from stored documents.
	Transaction struct {
		ID          string          `json:"id,omitempty"`
		Date        time.Time       `json:"date"`
		Description string          `json:"description"`
		Amount      Money           `json:"amount"`
		CategoryID  string          `json:"categoryId"`
		Type        TransactionType `json:"type"`
	}

	Category struct {
		ID    string `json:"id,omitempty"`
		Name  string `json:"name"`
		Icon  Icon   `json:"icon"`
		Color string `json:"color,omitempty"`
	}

	Budget struct {
		ID         string       `json:"id,omitempty"`
		CategoryID string       `json:"categoryId"`
		Amount     Money        `json:"amount"`
		Period     BudgetPeriod `json:"period"`
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrEmptyCategoryRef    = errors.New("empty category reference")
	ErrEmptyCategoryName   = errors.New("empty category name")
	ErrCategoryNameTooLong = errors.New("category name too long (max 50 characters)")
	ErrInvalidPeriod       = errors.New("invalid budget period")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (p BudgetPeriod) Valid() bool {
	return p == Monthly || p == Yearly
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len(desc) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategoryRef
	}
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCategoryName
	}
	if len([]rune(name)) > MaxCategoryNameLength {
		return ErrCategoryNameTooLong
	}
	return nil
}

// SameName reports whether two category names collide. Comparison ignores
// case and surrounding whitespace.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrEmptyCategoryRef
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}

// Normalize trims user input and maps the icon onto the registry.
func (c Category) Normalize() Category {
	c.Name = strings.TrimSpace(c.Name)
	c.Color = strings.TrimSpace(c.Color)
	c.Icon = ResolveIcon(string(c.Icon))
	return c
}

// DateLayout is the encoded transaction date. It is fixed width, so stores
// that order dates as text order them in time.
const DateLayout = "2006-01-02T15:04:05.000000000Z07:00"

// MarshalJSON writes Date in UTC using DateLayout.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type plain Transaction
	return json.Marshal(struct {
		plain
		Date string `json:"date"`
	}{plain(t), t.Date.UTC().Format(DateLayout)})
}

// Normalize trims the description and stores the date in UTC.
func (t Transaction) Normalize() Transaction {
	t.Description = strings.TrimSpace(t.Description)
	t.Date = t.Date.UTC()
	return t
}
