// Package llm provides adapters for remote classification and summarization
// providers. Every adapter normalizes provider responses into one result
// shape and converts failures into tagged errors; neither response shape
// variance nor raw provider errors leak past this package.
package llm

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwestin/tally/internal/model"
)

// Client defines the interface for remote classification providers.
type Client interface {
	// Classify asks the provider for a category for one transaction.
	Classify(ctx context.Context, req ClassifyRequest) (ClassificationResult, error)
	// Summarize asks the provider for a batch summary and insights.
	Summarize(ctx context.Context, req SummaryRequest) (SummaryResult, error)
	// Provider returns the provider name used in suggestion source tags.
	Provider() string
}

// ClassifyRequest carries the transaction context sent to the provider.
type ClassifyRequest struct {
	Description string
	Amount      *decimal.Decimal
	Type        model.TransactionType
	Categories  []model.Category
}

// ClassificationResult is the normalized classification response. Category
// is the provider's free-text category name, not an id; reconciliation
// against the caller's category list happens downstream.
type ClassificationResult struct {
	Category   string
	Reasoning  string
	Confidence float64
}

// SummaryRequest carries the batch context sent to the summarizer.
type SummaryRequest struct {
	Title        string
	Descriptions []string
	Statistics   model.Statistics
}

// SummaryResult is the normalized summarization response.
type SummaryResult struct {
	Summary  string
	Insights []string
}

// Config holds configuration for remote provider clients.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}
