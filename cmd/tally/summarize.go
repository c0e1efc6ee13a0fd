package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kwestin/tally/internal/cli"
	"github.com/kwestin/tally/internal/summary"
)

func summarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <batch-id>",
		Short: "Regenerate the title and insights for a batch",
		Args:  cobra.ExactArgs(1),
		RunE:  runSummarize,
	}

	cmd.Flags().Bool("force-remote", false, "require the remote summarizer and allow a longer deadline")
	return cmd
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	batchID := args[0]
	forceRemote, _ := cmd.Flags().GetBool("force-remote")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	transactions, err := store.GetBatchTransactions(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load batch transactions: %w", err)
	}

	generator, err := newSummarizer(ctx)
	if err != nil {
		return err
	}
	result := generator.Summarize(ctx, transactions, summary.Options{ForceRemote: forceRemote})

	if err := store.UpdateBatchSummary(ctx, batchID, result); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}

	fmt.Println(cli.FormatTitle(result.Summary))
	for _, insight := range result.Insights {
		fmt.Println("  " + cli.SubtleStyle.Render("• "+insight))
	}
	if result.TimedOut {
		fmt.Println(cli.FormatWarning("Remote summarizer timed out; showing local summary"))
	}
	return nil
}
