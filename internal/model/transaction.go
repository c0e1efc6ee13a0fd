// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType encodes the economic direction of a transaction.
// Amounts are always stored positive; direction lives here.
type TransactionType string

// Transaction type constants.
const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// AccountKind tags the kind of account a transaction came from.
type AccountKind string

// Account kind constants.
const (
	AccountBank       AccountKind = "bank"
	AccountCreditCard AccountKind = "credit_card"
	AccountInvestment AccountKind = "investment"
	AccountCash       AccountKind = "cash"
	AccountWallet     AccountKind = "wallet"
	AccountOther      AccountKind = "other"
)

// EnrichmentStatus tracks how far a transaction has moved through the
// batching and categorization pipeline.
type EnrichmentStatus string

// Enrichment status constants.
const (
	EnrichmentPending   EnrichmentStatus = "pending"
	EnrichmentEnriched  EnrichmentStatus = "enriched"
	EnrichmentCompleted EnrichmentStatus = "completed"
)

// Transaction represents a single financial transaction from any source.
type Transaction struct {
	Date                time.Time
	ID                  string
	Description         string // Raw transaction description
	Merchant            string // Cleaned merchant name, may be empty
	AccountID           string
	AccountKind         AccountKind
	Type                TransactionType
	CategoryID          string // Assigned category, empty until applied
	SuggestedCategoryID string // Suggested but not yet applied
	BatchID             string
	UploadID            string
	Hash                string
	EnrichmentStatus    EnrichmentStatus
	Tags                []string
	Amount              decimal.Decimal // Always non-negative
	Confidence          float64
	NeedsReview         bool
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Description,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// IsIncome reports whether the transaction adds money to the account.
func (t *Transaction) IsIncome() bool {
	return t.Type == TypeIncome
}

// Categorized reports whether a category has been assigned.
func (t *Transaction) Categorized() bool {
	return t.CategoryID != ""
}
