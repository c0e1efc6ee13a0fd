package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kwestin/tally/internal/cli"
	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/service"
	"github.com/kwestin/tally/internal/stats"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics for stored transactions",
		RunE:  runStats,
	}

	cmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().String("type", "", "restrict to one type (income, expense)")
	cmd.Flags().String("upload", "", "restrict to one upload id")
	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	filter, err := statsFilter(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	transactions, err := store.GetTransactions(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(transactions) == 0 {
		fmt.Println(cli.FormatInfo("No transactions match"))
		return nil
	}

	statistics := stats.Aggregate(transactions)

	fmt.Println(cli.FormatTitle("Transaction statistics"))
	fmt.Printf("  Transactions:  %d (%d income, %d expense)\n",
		statistics.TotalCount, statistics.IncomeCount, statistics.ExpenseCount)
	fmt.Printf("  Total income:  %s\n", statistics.TotalIncome.StringFixed(2))
	fmt.Printf("  Total expense: %s\n", statistics.TotalExpense.StringFixed(2))
	fmt.Printf("  Net:           %s (%s)\n", statistics.NetAmount.StringFixed(2), statistics.NetDirection)
	if statistics.DateRange.From != nil && statistics.DateRange.To != nil {
		fmt.Printf("  Date range:    %s to %s\n",
			statistics.DateRange.From.Format("2006-01-02"),
			statistics.DateRange.To.Format("2006-01-02"))
	}
	if len(statistics.Sources) > 0 {
		fmt.Printf("  Sources:       %s\n", strings.Join(statistics.Sources, ", "))
	}
	fmt.Printf("  Categorized:   %d of %d (%.0f%%)\n",
		statistics.Categorization.CategorizedCount, statistics.TotalCount,
		statistics.Categorization.Percent)
	if statistics.Sampled {
		fmt.Println(cli.SubtleStyle.Render("  Source and categorization breakdowns are sampled; totals are exact."))
	}
	return nil
}

func statsFilter(cmd *cobra.Command) (service.TransactionFilter, error) {
	var filter service.TransactionFilter

	if from, _ := cmd.Flags().GetString("from"); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, fmt.Errorf("invalid --from date: %w", err)
		}
		filter.StartDate = &parsed
	}
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, fmt.Errorf("invalid --to date: %w", err)
		}
		filter.EndDate = &parsed
	}
	if txType, _ := cmd.Flags().GetString("type"); txType != "" {
		if txType != string(model.TypeIncome) && txType != string(model.TypeExpense) {
			return filter, fmt.Errorf("invalid --type %q", txType)
		}
		filter.Type = model.TransactionType(txType)
	}
	filter.UploadID, _ = cmd.Flags().GetString("upload")

	return filter, nil
}
