// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/kwestin/tally/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Type      model.TransactionType
	UploadID  string
	Limit     int
	Offset    int
}

// Store defines the contract for the persistence layer.
type Store interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetUnbatchedTransactions(ctx context.Context, uploadID string) ([]model.Transaction, error)
	ApplySuggestion(ctx context.Context, suggestion model.CategorySuggestion) error
	AssignTransactionsToBatch(ctx context.Context, batchID string, transactionIDs []string) error

	// Batch operations
	SaveBatches(ctx context.Context, batches []model.Batch) error
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	GetBatchTransactions(ctx context.Context, batchID string) ([]model.Transaction, error)
	FindBatchByMerchantAndType(ctx context.Context, merchant string, txType model.TransactionType, maxSize int) (*model.Batch, error)
	UpdateBatchSummary(ctx context.Context, batchID string, summary model.BatchSummary) error

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*model.Category, error)
	CreateCategory(ctx context.Context, name, description string, categoryType model.CategoryType) (*model.Category, error)

	// Classification history, used to train the local classifier.
	SaveClassificationExample(ctx context.Context, description, categoryID string) error
	GetClassificationExamples(ctx context.Context) ([]ClassificationExample, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// ClassificationExample is one historical (description, category) pair used
// as training input for the local classifier.
type ClassificationExample struct {
	Description string
	CategoryID  string
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// BatchSuggestionStats aggregates the outcome of a batch suggestion run.
type BatchSuggestionStats struct {
	Total            int
	AutomaticCount   int
	ManualCount      int
	AvgConfidence    float64
	PercentAutomatic float64
}

// BatchSuggestionResult partitions per-transaction suggestions by whether
// they cleared the confidence threshold.
type BatchSuggestionResult struct {
	AutomaticSuggestions []model.CategorySuggestion
	ManualReviewNeeded   []model.CategorySuggestion
	Stats                BatchSuggestionStats
}
