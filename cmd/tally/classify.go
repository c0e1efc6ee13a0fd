package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kwestin/tally/internal/cli"
	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/service"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Suggest categories for uncategorized transactions",
		Long: `Run the suggestion engine over uncategorized transactions. Suggestions
above the confidence threshold are applied automatically; the rest are
staged for manual review.`,
		RunE: runClassify,
	}

	cmd.Flags().Float64("threshold", 0, "confidence threshold for automatic application (default from config)")
	cmd.Flags().String("upload", "", "restrict to one upload id")
	cmd.Flags().String("batch", "", "classify the members of one batch")
	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	uploadID, _ := cmd.Flags().GetString("upload")
	batchID, _ := cmd.Flags().GetString("batch")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	engine, err := newEngine(ctx, store)
	if err != nil {
		return err
	}

	transactions, err := loadClassifyTargets(cmd, store, uploadID, batchID)
	if err != nil {
		return err
	}

	pending := transactions[:0:0]
	for _, txn := range transactions {
		if !txn.Categorized() {
			pending = append(pending, txn)
		}
	}
	if len(pending) == 0 {
		fmt.Println(cli.FormatInfo("Nothing to classify"))
		return nil
	}

	started := time.Now()
	result, err := engine.SuggestForBatch(ctx, pending, threshold)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	bar := progressbar.Default(int64(len(result.AutomaticSuggestions)), "Applying suggestions")
	for _, suggestion := range result.AutomaticSuggestions {
		if err := store.ApplySuggestion(ctx, suggestion); err != nil {
			return fmt.Errorf("failed to apply suggestion: %w", err)
		}
		// Applied categories become training history for the local
		// classifier.
		if txn, lookupErr := store.GetTransaction(ctx, suggestion.TransactionID); lookupErr == nil {
			_ = store.SaveClassificationExample(ctx, txn.Description, suggestion.CategoryID)
		}
		_ = bar.Add(1)
	}
	for _, suggestion := range result.ManualReviewNeeded {
		if suggestion.CategoryID == "" {
			continue
		}
		if err := store.ApplySuggestion(ctx, suggestion); err != nil {
			return fmt.Errorf("failed to stage suggestion: %w", err)
		}
	}

	metrics := engine.GetMetrics()
	slog.Info("classification complete",
		"total", result.Stats.Total,
		"automatic", result.Stats.AutomaticCount,
		"manual_review", result.Stats.ManualCount,
		"remote_calls", metrics.RemoteCalls,
		"cache_hits", metrics.CacheHits,
		"local_fallbacks", metrics.LocalFallbacks,
		"elapsed", formatDuration(time.Since(started)))

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Classified %d transactions: %d automatic (%.0f%%), %d need review, avg confidence %.2f",
		result.Stats.Total,
		result.Stats.AutomaticCount,
		result.Stats.PercentAutomatic,
		result.Stats.ManualCount,
		result.Stats.AvgConfidence)))
	if engine.IsRateLimited() {
		fmt.Println(cli.FormatWarning("Remote classifier is rate limited; suggestions fell back to the local classifier"))
	}
	return nil
}

func loadClassifyTargets(cmd *cobra.Command, store service.Store, uploadID, batchID string) ([]model.Transaction, error) {
	ctx := cmd.Context()
	if batchID != "" {
		return store.GetBatchTransactions(ctx, batchID)
	}
	return store.GetTransactions(ctx, service.TransactionFilter{UploadID: uploadID})
}
