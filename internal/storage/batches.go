package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kwestin/tally/internal/common"
	"github.com/kwestin/tally/internal/model"
)

// SaveBatches persists batches and their membership rows, assigning each
// member transaction to its batch.
func (s *SQLiteStore) SaveBatches(ctx context.Context, batches []model.Batch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBatches(batches); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO batches (id, title, summary, insights, source, upload_id, merchant, keywords, date_from, date_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, batch := range batches {
		insights, marshalErr := marshalJSON(batch.Insights)
		if marshalErr != nil {
			return marshalErr
		}
		keywords, marshalErr := marshalJSON(batch.Metadata.Keywords)
		if marshalErr != nil {
			return marshalErr
		}

		createdAt := batch.Metadata.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := stmt.ExecContext(ctx,
			batch.ID, batch.Title, batch.Summary, insights,
			string(batch.Metadata.Source), nullableString(batch.Metadata.UploadID),
			nullableString(batch.Metadata.Merchant), keywords,
			nullableTime(batch.DateRange.From), nullableTime(batch.DateRange.To),
			createdAt,
		); err != nil {
			return fmt.Errorf("failed to save batch %s: %w", batch.ID, err)
		}

		if err := assignTx(ctx, tx, batch.ID, batch.TransactionIDs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetBatch returns one batch by id, with its member transaction ids.
// Statistics are not persisted; callers recompute them from the members.
func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, summary, insights, source, upload_id, merchant, keywords, date_from, date_to, created_at
		FROM batches WHERE id = ?
	`, id)

	batch, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id FROM batch_transactions WHERE batch_id = ? ORDER BY transaction_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var txnID string
		if err := rows.Scan(&txnID); err != nil {
			return nil, fmt.Errorf("failed to scan batch member: %w", err)
		}
		batch.TransactionIDs = append(batch.TransactionIDs, txnID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return batch, nil
}

// GetBatchTransactions returns the member transactions of a batch, ordered
// by date.
func (s *SQLiteStore) GetBatchTransactions(ctx context.Context, batchID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE id IN (SELECT transaction_id FROM batch_transactions WHERE batch_id = ?)
		ORDER BY date, id
	`, batchID)
}

// FindBatchByMerchantAndType returns the oldest batch for the given merchant
// that contains transactions of the given type and still has room below
// maxSize. Returns ErrNotFound when no batch qualifies.
func (s *SQLiteStore) FindBatchByMerchantAndType(ctx context.Context, merchant string, txType model.TransactionType, maxSize int) (*model.Batch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchant, "merchant"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.title, b.summary, b.insights, b.source, b.upload_id, b.merchant, b.keywords, b.date_from, b.date_to, b.created_at
		FROM batches b
		WHERE b.merchant = ?
		  AND (SELECT COUNT(*) FROM batch_transactions bt WHERE bt.batch_id = b.id) < ?
		  AND EXISTS (
			SELECT 1 FROM batch_transactions bt
			JOIN transactions t ON t.id = bt.transaction_id
			WHERE bt.batch_id = b.id AND t.type = ?
		  )
		ORDER BY b.created_at, b.id
		LIMIT 1
	`, merchant, maxSize, string(txType))

	batch, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch for merchant %s: %w", merchant, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find batch: %w", err)
	}
	return batch, nil
}

// UpdateBatchSummary replaces a batch's summary line and insight list.
func (s *SQLiteStore) UpdateBatchSummary(ctx context.Context, batchID string, summary model.BatchSummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return err
	}

	insights, err := marshalJSON(summary.Insights)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE batches SET summary = ?, insights = ? WHERE id = ?
	`, summary.Summary, insights, batchID)
	if err != nil {
		return fmt.Errorf("failed to update batch summary: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("batch %s: %w", batchID, common.ErrNotFound)
	}
	return nil
}

func scanBatch(row rowScanner) (*model.Batch, error) {
	var batch model.Batch
	var summary, insights, uploadID, merchant, keywords sql.NullString
	var source string
	var dateFrom, dateTo sql.NullTime
	var createdAt time.Time

	if err := row.Scan(
		&batch.ID, &batch.Title, &summary, &insights, &source,
		&uploadID, &merchant, &keywords, &dateFrom, &dateTo, &createdAt,
	); err != nil {
		return nil, err
	}

	batch.Summary = summary.String
	batch.Metadata = model.BatchMetadata{
		CreatedAt: createdAt,
		Source:    model.BatchSource(source),
		UploadID:  uploadID.String,
		Merchant:  merchant.String,
	}
	if insights.String != "" {
		if err := json.Unmarshal([]byte(insights.String), &batch.Insights); err != nil {
			return nil, fmt.Errorf("corrupt insights: %w", err)
		}
	}
	if keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &batch.Metadata.Keywords); err != nil {
			return nil, fmt.Errorf("corrupt keywords: %w", err)
		}
	}
	if dateFrom.Valid {
		from := dateFrom.Time
		batch.DateRange.From = &from
	}
	if dateTo.Valid {
		to := dateTo.Time
		batch.DateRange.To = &to
	}

	return &batch, nil
}

func marshalJSON(values []string) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal values: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
