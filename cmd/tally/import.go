package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kwestin/tally/internal/cli"
	"github.com/kwestin/tally/internal/importer"
	"github.com/kwestin/tally/internal/model"
)

const saveChunkSize = 100

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import transactions from a CSV or OFX/QFX export",
		Long: `Parse a bank export file and store its transactions. Duplicates
(same date, amount, description, and account) are skipped automatically.
Each import run gets its own upload id for later batching.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("format", "auto", "file format (auto, csv, ofx)")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	format, _ := cmd.Flags().GetString("format")
	if format == "auto" {
		format = detectFormat(path)
	}

	file, err := os.Open(path) //nolint:gosec // user-supplied import path
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	transactions, err := parseFile(ctx, format, file)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		fmt.Println(cli.FormatWarning("No transactions found in " + path))
		return nil
	}

	uploadID := uuid.NewString()
	for i := range transactions {
		transactions[i].UploadID = uploadID
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bar := progressbar.Default(int64(len(transactions)), "Saving transactions")
	for start := 0; start < len(transactions); start += saveChunkSize {
		end := start + saveChunkSize
		if end > len(transactions) {
			end = len(transactions)
		}
		if err := store.SaveTransactions(ctx, transactions[start:end]); err != nil {
			return fmt.Errorf("failed to save transactions: %w", err)
		}
		_ = bar.Add(end - start)
	}

	slog.Info("import complete",
		"file", path,
		"format", format,
		"upload_id", uploadID,
		"transactions", len(transactions))
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d transactions (upload %s)", len(transactions), uploadID)))
	return nil
}

func parseFile(ctx context.Context, format string, file io.Reader) ([]model.Transaction, error) {
	switch format {
	case "csv":
		return importer.NewCSVParser(nil).Parse(ctx, file)
	case "ofx", "qfx":
		return importer.NewOFXParser(nil).Parse(ctx, file)
	default:
		return nil, fmt.Errorf("unsupported format %q (use csv or ofx)", format)
	}
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return "ofx"
	default:
		return "csv"
	}
}
