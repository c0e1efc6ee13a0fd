package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwestin/tally/internal/common"
	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/service"
)

const transactionColumns = `id, hash, date, description, merchant, amount, type,
	account_id, account_kind, category_id, suggested_category_id, batch_id,
	upload_id, enrichment_status, tags, confidence, needs_review`

// SaveTransactions persists transactions, silently skipping duplicates
// (same content hash).
func (s *SQLiteStore) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range transactions {
		txn := &transactions[i]
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		if txn.EnrichmentStatus == "" {
			txn.EnrichmentStatus = model.EnrichmentPending
		}

		tags, marshalErr := marshalTags(txn.Tags)
		if marshalErr != nil {
			return marshalErr
		}

		if _, err := stmt.ExecContext(ctx,
			txn.ID, txn.Hash, txn.Date, txn.Description,
			nullableString(txn.Merchant), txn.Amount.String(), string(txn.Type),
			nullableString(txn.AccountID), nullableString(string(txn.AccountKind)),
			nullableString(txn.CategoryID), nullableString(txn.SuggestedCategoryID),
			nullableString(txn.BatchID), nullableString(txn.UploadID),
			string(txn.EnrichmentStatus), tags, txn.Confidence, txn.NeedsReview,
		); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// GetTransaction returns one transaction by id.
func (s *SQLiteStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions returns transactions matching the filter, ordered by date.
func (s *SQLiteStore) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var conditions []string
	var args []any

	if filter.StartDate != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.UploadID != "" {
		conditions = append(conditions, "upload_id = ?")
		args = append(args, filter.UploadID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	return s.queryTransactions(ctx, query, args...)
}

// GetUnbatchedTransactions returns transactions lacking a batch assignment,
// optionally restricted to one upload.
func (s *SQLiteStore) GetUnbatchedTransactions(ctx context.Context, uploadID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE (batch_id IS NULL OR batch_id = '')`
	var args []any
	if uploadID != "" {
		query += " AND upload_id = ?"
		args = append(args, uploadID)
	}
	query += " ORDER BY date, id"

	return s.queryTransactions(ctx, query, args...)
}

// ApplySuggestion records a suggestion in the audit trail and applies it to
// the transaction. High-confidence suggestions assign the category directly;
// low-confidence ones only stage it for review.
func (s *SQLiteStore) ApplySuggestion(ctx context.Context, suggestion model.CategorySuggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(suggestion.TransactionID, "suggestion.TransactionID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO suggestions (transaction_id, category_id, source, reasoning, confidence, needs_review)
		VALUES (?, ?, ?, ?, ?, ?)
	`, suggestion.TransactionID, nullableString(suggestion.CategoryID),
		string(suggestion.Source), suggestion.Reasoning,
		suggestion.Confidence, suggestion.NeedsReview,
	); err != nil {
		return fmt.Errorf("failed to record suggestion: %w", err)
	}

	var result sql.Result
	if suggestion.CategoryID != "" && !suggestion.NeedsReview {
		result, err = tx.ExecContext(ctx, `
			UPDATE transactions
			SET suggested_category_id = ?, category_id = ?, confidence = ?,
				needs_review = 0, enrichment_status = ?
			WHERE id = ?
		`, suggestion.CategoryID, suggestion.CategoryID, suggestion.Confidence,
			string(model.EnrichmentEnriched), suggestion.TransactionID)
	} else {
		result, err = tx.ExecContext(ctx, `
			UPDATE transactions
			SET suggested_category_id = ?, confidence = ?, needs_review = ?
			WHERE id = ?
		`, nullableString(suggestion.CategoryID), suggestion.Confidence,
			suggestion.NeedsReview, suggestion.TransactionID)
	}
	if err != nil {
		return fmt.Errorf("failed to apply suggestion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", suggestion.TransactionID, common.ErrNotFound)
	}

	return tx.Commit()
}

// AssignTransactionsToBatch sets the batch assignment for the given
// transactions and records the membership rows.
func (s *SQLiteStore) AssignTransactionsToBatch(ctx context.Context, batchID string, transactionIDs []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return err
	}
	if len(transactionIDs) == 0 {
		return fmt.Errorf("%w: transactionIDs", ErrEmptySlice)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := assignTx(ctx, tx, batchID, transactionIDs); err != nil {
		return err
	}

	return tx.Commit()
}

func assignTx(ctx context.Context, tx *sql.Tx, batchID string, transactionIDs []string) error {
	memberStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO batch_transactions (batch_id, transaction_id) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare membership statement: %w", err)
	}
	defer func() { _ = memberStmt.Close() }()

	updateStmt, err := tx.PrepareContext(ctx, `
		UPDATE transactions SET batch_id = ? WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare update statement: %w", err)
	}
	defer func() { _ = updateStmt.Close() }()

	for _, id := range transactionIDs {
		if _, err := memberStmt.ExecContext(ctx, batchID, id); err != nil {
			return fmt.Errorf("failed to record batch membership for %s: %w", id, err)
		}
		if _, err := updateStmt.ExecContext(ctx, batchID, id); err != nil {
			return fmt.Errorf("failed to assign transaction %s: %w", id, err)
		}
	}
	return nil
}

func (s *SQLiteStore) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var date time.Time
	var merchant, accountID, accountKind, categoryID, suggestedID, batchID, uploadID, tags sql.NullString
	var amount, txType, status string

	if err := row.Scan(
		&txn.ID, &txn.Hash, &date, &txn.Description,
		&merchant, &amount, &txType,
		&accountID, &accountKind, &categoryID, &suggestedID,
		&batchID, &uploadID, &status, &tags,
		&txn.Confidence, &txn.NeedsReview,
	); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}

	txn.Date = date
	txn.Amount = parsed
	txn.Type = model.TransactionType(txType)
	txn.Merchant = merchant.String
	txn.AccountID = accountID.String
	txn.AccountKind = model.AccountKind(accountKind.String)
	txn.CategoryID = categoryID.String
	txn.SuggestedCategoryID = suggestedID.String
	txn.BatchID = batchID.String
	txn.UploadID = uploadID.String
	txn.EnrichmentStatus = model.EnrichmentStatus(status)

	if tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &txn.Tags); err != nil {
			return nil, fmt.Errorf("corrupt tags: %w", err)
		}
	}

	return &txn, nil
}

func marshalTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
