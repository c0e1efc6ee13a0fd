package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/service"
	"github.com/kwestin/tally/internal/stats"
)

// Recover re-assigns transactions that ended up without a batch, attaching
// each to an existing batch with the same merchant and type when one has
// capacity, and otherwise minting a fresh recovered batch per type. The
// procedure is idempotent: transactions that already belong to a batch are
// never touched, so re-running it is a no-op.
func (o *Organizer) Recover(ctx context.Context, store service.Store, uploadID string) error {
	orphans, err := store.GetUnbatchedTransactions(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("failed to load unbatched transactions: %w", err)
	}
	if len(orphans) == 0 {
		return nil
	}

	slog.Info("recovering unbatched transactions",
		"upload_id", uploadID,
		"count", len(orphans))

	byType := make(map[model.TransactionType][]model.Transaction)
	var typeOrder []model.TransactionType

	for _, txn := range orphans {
		if txn.Merchant != "" {
			existing, findErr := store.FindBatchByMerchantAndType(ctx, txn.Merchant, txn.Type, o.config.MaxBatchSize)
			if findErr != nil {
				return fmt.Errorf("failed to find batch for merchant %q: %w", txn.Merchant, findErr)
			}
			if existing != nil {
				if assignErr := store.AssignTransactionsToBatch(ctx, existing.ID, []string{txn.ID}); assignErr != nil {
					return fmt.Errorf("failed to attach transaction %s: %w", txn.ID, assignErr)
				}
				continue
			}
		}

		if _, ok := byType[txn.Type]; !ok {
			typeOrder = append(typeOrder, txn.Type)
		}
		byType[txn.Type] = append(byType[txn.Type], txn)
	}

	suffix := time.Now().UTC().Format("20060102150405")
	for _, txType := range typeOrder {
		members := byType[txType]
		for _, chunk := range splitByDate(members, o.config.MaxBatchSize) {
			batch := o.recoveredBatch(chunk, txType, uploadID, suffix)
			if saveErr := store.SaveBatches(ctx, []model.Batch{batch}); saveErr != nil {
				return fmt.Errorf("failed to save recovered batch: %w", saveErr)
			}
			ids := make([]string, len(chunk))
			for i, txn := range chunk {
				ids[i] = txn.ID
			}
			if assignErr := store.AssignTransactionsToBatch(ctx, batch.ID, ids); assignErr != nil {
				return fmt.Errorf("failed to assign recovered batch members: %w", assignErr)
			}
		}
	}

	return nil
}

func (o *Organizer) recoveredBatch(members []model.Transaction, txType model.TransactionType, uploadID, suffix string) model.Batch {
	ids := make([]string, len(members))
	for i, txn := range members {
		ids[i] = txn.ID
	}

	statistics := stats.Aggregate(members)

	return model.Batch{
		ID:             uuid.NewString(),
		Title:          fmt.Sprintf("Recovered %s %s", directionLabel(txType), suffix),
		Summary:        batchSummary(members, statistics),
		TransactionIDs: ids,
		Metadata: model.BatchMetadata{
			CreatedAt: time.Now().UTC(),
			Source:    model.SourceRecovered,
			UploadID:  uploadID,
		},
		Statistics: &statistics,
		DateRange:  statistics.DateRange,
	}
}
