// Package stats computes aggregate financial statistics for groups of
// transactions.
package stats

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwestin/tally/internal/model"
)

// sampleThreshold is the group size above which the breakdown fields are
// computed from a bounded sample. Monetary totals and the date range are
// always exact.
const sampleThreshold = 200

// Aggregate computes statistics over a group of transactions. Records with
// a malformed amount or missing date contribute nothing to the affected
// field but never abort the aggregation.
func Aggregate(transactions []model.Transaction) model.Statistics {
	stats := model.Statistics{
		TotalCount: len(transactions),
	}

	sampled := len(transactions) > sampleThreshold
	breakdown := transactions
	if sampled {
		breakdown = transactions[:sampleThreshold]
		stats.Sampled = true
	}

	var from, to *time.Time
	for i := range transactions {
		txn := &transactions[i]

		switch txn.Type {
		case model.TypeIncome:
			stats.IncomeCount++
		case model.TypeExpense:
			stats.ExpenseCount++
		}

		if txn.Amount.IsNegative() {
			// Amounts are stored positive; a negative value is corrupt
			// input and is excluded from the totals.
			slog.Debug("skipping malformed amount",
				"transaction_id", txn.ID,
				"amount", txn.Amount)
		} else {
			switch txn.Type {
			case model.TypeIncome:
				stats.TotalIncome = stats.TotalIncome.Add(txn.Amount)
			case model.TypeExpense:
				stats.TotalExpense = stats.TotalExpense.Add(txn.Amount)
			}
		}

		if txn.Date.IsZero() {
			continue
		}
		date := txn.Date
		if from == nil || date.Before(*from) {
			d := date
			from = &d
		}
		if to == nil || date.After(*to) {
			d := date
			to = &d
		}
	}

	stats.DateRange = model.DateRange{From: from, To: to}

	net := stats.TotalIncome.Sub(stats.TotalExpense)
	switch {
	case net.IsPositive():
		stats.NetDirection = model.NetPositive
	case net.IsNegative():
		stats.NetDirection = model.NetNegative
	default:
		stats.NetDirection = model.NetNeutral
	}
	stats.NetAmount = net.Abs()

	stats.Sources = distinctSources(breakdown)
	stats.Categorization = categorization(breakdown)

	return stats
}

// distinctSources returns the distinct account sources in first-seen order.
func distinctSources(transactions []model.Transaction) []string {
	seen := make(map[string]struct{})
	var sources []string

	for i := range transactions {
		source := string(transactions[i].AccountKind)
		if source == "" {
			source = transactions[i].AccountID
		}
		if source == "" {
			continue
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}

	return sources
}

func categorization(transactions []model.Transaction) model.Categorization {
	var c model.Categorization
	for i := range transactions {
		if transactions[i].Categorized() {
			c.CategorizedCount++
		} else {
			c.UncategorizedCount++
		}
	}

	if total := c.CategorizedCount + c.UncategorizedCount; total > 0 {
		c.Percent = float64(c.CategorizedCount) / float64(total) * 100
	}
	return c
}

// NetTotal is a convenience for the signed net amount of a statistics value.
func NetTotal(s model.Statistics) decimal.Decimal {
	if s.NetDirection == model.NetNegative {
		return s.NetAmount.Neg()
	}
	return s.NetAmount
}
