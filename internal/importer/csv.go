// Package importer parses transaction files (CSV, OFX/QFX) into the
// internal model. Parsers are tolerant: malformed rows are logged and
// skipped, never aborting the file.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kwestin/tally/internal/model"
)

// CSVParser parses header-mapped CSV exports. Banks disagree on header
// names, so each logical column accepts several aliases.
type CSVParser struct {
	logger *slog.Logger
}

// NewCSVParser creates a CSV parser.
func NewCSVParser(logger *slog.Logger) *CSVParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVParser{logger: logger}
}

// headerAliases maps accepted header spellings to logical column names.
var headerAliases = map[string]string{
	"date":             "date",
	"transaction date": "date",
	"posted date":      "date",
	"posting date":     "date",
	"description":      "description",
	"memo":             "description",
	"details":          "description",
	"name":             "description",
	"amount":           "amount",
	"value":            "amount",
	"type":             "type",
	"direction":        "type",
	"transaction type": "type",
	"merchant":         "merchant",
	"payee":            "merchant",
	"vendor":           "merchant",
	"account":          "account",
	"account id":       "account",
	"account number":   "account",
	"category":         "category",
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Parse reads a CSV export and returns its transactions. The first row must
// be a header containing at least date, description, and amount columns.
// Rows that fail to parse are logged and skipped.
func (p *CSVParser) Parse(_ context.Context, reader io.Reader) ([]model.Transaction, error) {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int)
	for i, name := range header {
		if logical, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, dup := columns[logical]; !dup {
				columns[logical] = i
			}
		}
	}
	for _, required := range []string{"date", "description", "amount"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV header missing %s column", required)
		}
	}

	var transactions []model.Transaction
	line := 1

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			p.logger.Warn("skipping malformed CSV row", "line", line, "error", err)
			continue
		}

		txn, err := p.convertRow(record, columns)
		if err != nil {
			p.logger.Warn("skipping unparseable CSV row", "line", line, "error", err)
			continue
		}
		transactions = append(transactions, txn)
	}

	p.logger.Info("parsed CSV file", "transactions", len(transactions))
	return transactions, nil
}

func (p *CSVParser) convertRow(record []string, columns map[string]int) (model.Transaction, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := parseDate(field("date"))
	if err != nil {
		return model.Transaction{}, err
	}

	amount, err := parseAmount(field("amount"))
	if err != nil {
		return model.Transaction{}, err
	}

	description := field("description")
	if description == "" {
		return model.Transaction{}, fmt.Errorf("empty description")
	}

	txType := normalizeType(field("type"), amount)

	txn := model.Transaction{
		ID:               uuid.NewString(),
		Date:             date,
		Description:      description,
		Merchant:         field("merchant"),
		Amount:           amount.Abs(),
		Type:             txType,
		AccountID:        field("account"),
		EnrichmentStatus: model.EnrichmentPending,
	}
	txn.Hash = txn.GenerateHash()
	return txn, nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", value)
}

func parseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	cleaned := strings.NewReplacer("$", "", ",", "", "(", "-", ")", "").Replace(value)
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unparseable amount %q: %w", value, err)
	}
	return amount, nil
}

// normalizeType resolves the economic direction: an explicit type column
// wins, otherwise the amount sign decides (negative spends, positive earns).
func normalizeType(value string, amount decimal.Decimal) model.TransactionType {
	switch strings.ToLower(value) {
	case "income", "credit", "deposit":
		return model.TypeIncome
	case "expense", "debit", "withdrawal":
		return model.TypeExpense
	}
	if amount.IsNegative() {
		return model.TypeExpense
	}
	return model.TypeIncome
}
