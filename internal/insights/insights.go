// Package insights asks a language model for category suggestions and
// spending summaries.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"spendwise/internal/core"
)

var (
	ErrDisabled            = errors.New("insights are not configured")
	ErrEmptyDescription    = errors.New("description is required")
	ErrInvalidSpendingData = errors.New("invalid spending data")
	ErrEmptyResponse       = errors.New("model returned no text")
)

// FallbackCategory is suggested when the model answer matches nothing.
const FallbackCategory = "Other"

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Service struct {
	gen    Generator
	logger *slog.Logger
}

// New returns a Service. A nil generator yields a Service whose calls fail
// with ErrDisabled.
func New(gen Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gen: gen, logger: logger.With("component", "insights")}
}

func (s *Service) Enabled() bool { return s.gen != nil }

const suggestPrompt = `You are a personal finance expert. Given the description of an expense, suggest a relevant spending category.
Answer with exactly one of these categories: %s

Description: %s

Category:`

// SuggestCategory returns the name of the category in cats that best fits
// the description.
func (s *Service) SuggestCategory(ctx context.Context, description string, cats []core.Category) (string, error) {
	if s.gen == nil {
		return "", ErrDisabled
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return "", ErrEmptyDescription
	}

	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	out, err := s.gen.Generate(ctx, fmt.Sprintf(suggestPrompt, strings.Join(names, ", "), description))
	if err != nil {
		return "", fmt.Errorf("suggest category: %w", err)
	}

	name := matchCategory(out, cats)
	s.logger.DebugContext(ctx, "Category suggested", "description", description, "category", name)
	return name, nil
}

// matchCategory maps free model text onto a known category name: an exact
// (case-insensitive) match first, then the first name the text mentions.
func matchCategory(answer string, cats []core.Category) string {
	answer = strings.TrimSpace(answer)
	if i := strings.LastIndex(answer, "Category:"); i >= 0 {
		answer = strings.TrimSpace(answer[i+len("Category:"):])
	}
	answer = strings.Trim(answer, " .\"'*`\n")

	for _, c := range cats {
		if core.SameName(c.Name, answer) {
			return c.Name
		}
	}
	lower := strings.ToLower(answer)
	for _, c := range cats {
		if c.Name != "" && strings.Contains(lower, strings.ToLower(c.Name)) {
			return c.Name
		}
	}
	return FallbackCategory
}

const summaryPrompt = `You are a personal finance expert. Analyze the following spending data and provide a concise summary of the user's spending habits.

Spending Data: %s

Summary:`

// SummarizeSpending describes the spending habits in spendingData, a JSON
// array of {amount, category} objects.
func (s *Service) SummarizeSpending(ctx context.Context, spendingData string) (string, error) {
	if s.gen == nil {
		return "", ErrDisabled
	}
	var parsed any
	if err := json.Unmarshal([]byte(spendingData), &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSpendingData, err)
	}

	out, err := s.gen.Generate(ctx, fmt.Sprintf(summaryPrompt, spendingData))
	if err != nil {
		return "", fmt.Errorf("summarize spending: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// SpendingItem is one element of the summary input.
type SpendingItem struct {
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
}

// SpendingData builds the summary input from expense transactions.
func SpendingData(txs []core.Transaction, cats []core.Category) (string, error) {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	items := make([]SpendingItem, 0, len(txs))
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		name, ok := names[tx.CategoryID]
		if !ok {
			name = "Uncategorized"
		}
		items = append(items, SpendingItem{Amount: tx.Amount, Category: name})
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
