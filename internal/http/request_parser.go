package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendwise/internal/core"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("malformed request body")

// bodyParser reads a JSON object or a form-encoded body once and exposes
// its fields as trimmed strings.
type bodyParser struct {
	jsonData map[string]any
	formData url.Values
}

func parseBody(w http.ResponseWriter, r *http.Request) (*bodyParser, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadBody, err)
	}
	p := &bodyParser{}
	trimmed := strings.TrimSpace(string(body))
	switch {
	case trimmed == "":
		p.formData = url.Values{}
	case trimmed[0] == '{':
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadBody, err)
		}
	default:
		if p.formData, err = url.ParseQuery(trimmed); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadBody, err)
		}
	}
	return p, nil
}

// Get returns the field as a sanitized string. JSON numbers keep their
// literal text.
func (p *bodyParser) Get(key string) string {
	if p.jsonData != nil {
		return sanitizeInput(stringValue(p.jsonData[key]))
	}
	return sanitizeInput(p.formData.Get(key))
}

// Raw returns a structured JSON field re-encoded as JSON text. Strings and
// form values come back as sent.
func (p *bodyParser) Raw(key string) string {
	if p.jsonData != nil {
		switch v := p.jsonData[key].(type) {
		case map[string]any, []any:
			b, err := json.Marshal(v)
			if err != nil {
				return ""
			}
			return string(b)
		}
	}
	return p.Get(key)
}

// Has reports whether the field was sent at all.
func (p *bodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.formData[key]
	return ok
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// sanitizeInput trims and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, core.ErrInvalidDate
}

// parseAmount leaves the zero Money for an empty field so Validate reports
// it; anything unparseable is an invalid amount.
func parseAmount(s string) (core.Money, error) {
	if s == "" {
		return core.Money{}, nil
	}
	return core.ParseMoney(s)
}

func parseTransaction(p *bodyParser) (core.Transaction, error) {
	tx := core.Transaction{
		Description: p.Get("description"),
		CategoryID:  p.Get("categoryId"),
		Type:        core.TransactionType(strings.ToLower(p.Get("type"))),
	}
	if d := p.Get("date"); d != "" {
		t, err := parseDate(d)
		if err != nil {
			return tx, err
		}
		tx.Date = t
	}
	amount, err := parseAmount(p.Get("amount"))
	if err != nil {
		return tx, err
	}
	tx.Amount = amount
	return tx, nil
}

func parseCategory(p *bodyParser) core.Category {
	return core.Category{
		Name:  p.Get("name"),
		Icon:  core.Icon(p.Get("icon")),
		Color: p.Get("color"),
	}
}

func parseBudget(p *bodyParser) (core.Budget, error) {
	b := core.Budget{
		CategoryID: p.Get("categoryId"),
		Period:     core.BudgetPeriod(strings.ToLower(p.Get("period"))),
	}
	amount, err := parseAmount(p.Get("amount"))
	if err != nil {
		return b, err
	}
	b.Amount = amount
	return b, nil
}
