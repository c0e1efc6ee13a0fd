package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kwestin/tally/internal/cli"
	"github.com/kwestin/tally/internal/organizer"
	"github.com/kwestin/tally/internal/summary"
)

func organizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Group unbatched transactions into reviewable batches",
		Long: `Partition unbatched transactions into batches: by merchant first,
then by shared description keywords, then by month. Every transaction lands
in exactly one batch. Titles and summaries are generated for each batch.`,
		RunE: runOrganize,
	}

	cmd.Flags().String("upload", "", "restrict to one upload id")
	cmd.Flags().Bool("recover", false, "re-attach stray unbatched transactions to existing batches instead")
	cmd.Flags().Bool("by-source", false, "group fallback batches by account kind instead of month")
	return cmd
}

func runOrganize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	uploadID, _ := cmd.Flags().GetString("upload")
	recoverMode, _ := cmd.Flags().GetBool("recover")
	bySource, _ := cmd.Flags().GetBool("by-source")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cfg := organizer.DefaultConfig()
	cfg.GroupBySource = bySource
	if maxSize := viper.GetInt("organizer.max_batch_size"); maxSize > 0 {
		cfg.MaxBatchSize = maxSize
	}
	org := organizer.NewWithConfig(cfg)

	if recoverMode {
		if err := org.Recover(ctx, store, uploadID); err != nil {
			return fmt.Errorf("recovery failed: %w", err)
		}
		fmt.Println(cli.FormatSuccess("Recovery complete"))
		return nil
	}

	transactions, err := store.GetUnbatchedTransactions(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(transactions) == 0 {
		fmt.Println(cli.FormatInfo("Nothing to organize"))
		return nil
	}

	batches := org.Organize(transactions)
	if err := store.SaveBatches(ctx, batches); err != nil {
		return fmt.Errorf("failed to save batches: %w", err)
	}

	// Regenerate each batch's summary with the full insight list. The
	// organizer only attaches a bare factual summary line.
	generator, err := newSummarizer(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]int)
	for i, txn := range transactions {
		byID[txn.ID] = i
	}
	for _, batch := range batches {
		members := make([]int, 0, len(batch.TransactionIDs))
		for _, id := range batch.TransactionIDs {
			members = append(members, byID[id])
		}
		batchTxns := transactions[:0:0]
		for _, idx := range members {
			batchTxns = append(batchTxns, transactions[idx])
		}

		result := generator.Summarize(ctx, batchTxns, summary.Options{})
		if err := store.UpdateBatchSummary(ctx, batch.ID, result); err != nil {
			return fmt.Errorf("failed to store summary for batch %s: %w", batch.ID, err)
		}
	}

	slog.Info("organize complete", "transactions", len(transactions), "batches", len(batches))
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Organized %d transactions into %d batches", len(transactions), len(batches))))
	for _, batch := range batches {
		fmt.Printf("  %s %s (%d transactions)\n",
			cli.SubtleStyle.Render(batch.ID[:8]), batch.Title, len(batch.TransactionIDs))
	}
	return nil
}
