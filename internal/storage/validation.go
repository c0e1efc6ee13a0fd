package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kwestin/tally/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidBatch       = errors.New("invalid batch")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}
	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	switch {
	case txn.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidTransaction)
	case txn.Description == "":
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	case txn.Amount.IsNegative():
		return fmt.Errorf("%w: negative amount", ErrInvalidTransaction)
	case txn.Type != model.TypeIncome && txn.Type != model.TypeExpense:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	return nil
}

func validateBatches(batches []model.Batch) error {
	if len(batches) == 0 {
		return fmt.Errorf("%w: batches", ErrEmptySlice)
	}
	for i, batch := range batches {
		switch {
		case batch.ID == "":
			return fmt.Errorf("batch at index %d: %w: missing id", i, ErrInvalidBatch)
		case batch.Title == "":
			return fmt.Errorf("batch at index %d: %w: missing title", i, ErrInvalidBatch)
		case len(batch.TransactionIDs) == 0:
			return fmt.Errorf("batch at index %d: %w: no members", i, ErrInvalidBatch)
		}
	}
	return nil
}
