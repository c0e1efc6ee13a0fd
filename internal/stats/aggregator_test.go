package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwestin/tally/internal/model"
)

func txn(id string, amount string, txType model.TransactionType, date string) model.Transaction {
	t := model.Transaction{
		ID:          id,
		Description: "test " + id,
		Amount:      decimal.RequireFromString(amount),
		Type:        txType,
	}
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			panic(err)
		}
		t.Date = parsed
	}
	return t
}

func TestAggregate(t *testing.T) {
	t.Run("income only nets positive", func(t *testing.T) {
		transactions := []model.Transaction{
			txn("1", "500.00", model.TypeIncome, "2025-03-01"),
			txn("2", "400.00", model.TypeIncome, "2025-03-05"),
			txn("3", "600.00", model.TypeIncome, "2025-03-10"),
		}

		stats := Aggregate(transactions)

		assert.Equal(t, 3, stats.TotalCount)
		assert.Equal(t, 3, stats.IncomeCount)
		assert.Equal(t, 0, stats.ExpenseCount)
		assert.Equal(t, model.NetPositive, stats.NetDirection)
		assert.True(t, stats.NetAmount.Equal(decimal.RequireFromString("1500.00")),
			"net amount was %s", stats.NetAmount)
		assert.False(t, stats.Sampled)
	})

	t.Run("mixed directions", func(t *testing.T) {
		transactions := []model.Transaction{
			txn("1", "100.00", model.TypeIncome, "2025-01-01"),
			txn("2", "250.00", model.TypeExpense, "2025-01-02"),
		}

		stats := Aggregate(transactions)

		assert.Equal(t, model.NetNegative, stats.NetDirection)
		assert.True(t, stats.NetAmount.Equal(decimal.RequireFromString("150.00")))
		assert.True(t, NetTotal(stats).IsNegative())
	})

	t.Run("neutral when balanced", func(t *testing.T) {
		transactions := []model.Transaction{
			txn("1", "75.00", model.TypeIncome, "2025-01-01"),
			txn("2", "75.00", model.TypeExpense, "2025-01-01"),
		}

		stats := Aggregate(transactions)
		assert.Equal(t, model.NetNeutral, stats.NetDirection)
		assert.True(t, stats.NetAmount.IsZero())
	})

	t.Run("date range spans members", func(t *testing.T) {
		transactions := []model.Transaction{
			txn("1", "10.00", model.TypeExpense, "2025-02-14"),
			txn("2", "10.00", model.TypeExpense, "2025-01-03"),
			txn("3", "10.00", model.TypeExpense, "2025-03-21"),
		}

		stats := Aggregate(transactions)
		require.NotNil(t, stats.DateRange.From)
		require.NotNil(t, stats.DateRange.To)
		assert.Equal(t, "2025-01-03", stats.DateRange.From.Format("2006-01-02"))
		assert.Equal(t, "2025-03-21", stats.DateRange.To.Format("2006-01-02"))
	})

	t.Run("tolerates missing dates and bad amounts", func(t *testing.T) {
		bad := txn("1", "50.00", model.TypeExpense, "")
		bad.Amount = decimal.RequireFromString("-50.00")
		good := txn("2", "20.00", model.TypeExpense, "2025-04-01")

		stats := Aggregate([]model.Transaction{bad, good})

		assert.Equal(t, 2, stats.TotalCount)
		assert.Equal(t, 2, stats.ExpenseCount)
		assert.True(t, stats.TotalExpense.Equal(decimal.RequireFromString("20.00")))
		require.NotNil(t, stats.DateRange.From)
		assert.Equal(t, "2025-04-01", stats.DateRange.From.Format("2006-01-02"))
	})

	t.Run("categorization percent", func(t *testing.T) {
		categorized := txn("1", "10.00", model.TypeExpense, "2025-01-01")
		categorized.CategoryID = "cat-groceries"
		uncategorized := txn("2", "10.00", model.TypeExpense, "2025-01-02")

		stats := Aggregate([]model.Transaction{categorized, uncategorized})

		assert.Equal(t, 1, stats.Categorization.CategorizedCount)
		assert.Equal(t, 1, stats.Categorization.UncategorizedCount)
		assert.InDelta(t, 50.0, stats.Categorization.Percent, 0.001)
	})

	t.Run("empty input", func(t *testing.T) {
		stats := Aggregate(nil)
		assert.Equal(t, 0, stats.TotalCount)
		assert.Equal(t, model.NetNeutral, stats.NetDirection)
		assert.Nil(t, stats.DateRange.From)
	})
}

func TestAggregateSampled(t *testing.T) {
	// 600 transactions: totals and date range must stay exact while the
	// breakdown fields come from the first 200 records.
	transactions := make([]model.Transaction, 0, 600)
	expectedIncome := decimal.Zero
	for i := 0; i < 600; i++ {
		amount := fmt.Sprintf("%d.00", i+1)
		tx := txn(fmt.Sprintf("t%d", i), amount, model.TypeIncome,
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i%365).Format("2006-01-02"))
		if i >= 300 {
			// Later records carry an account kind the sample never sees.
			tx.AccountKind = model.AccountInvestment
		} else {
			tx.AccountKind = model.AccountBank
		}
		transactions = append(transactions, tx)
		expectedIncome = expectedIncome.Add(decimal.RequireFromString(amount))
	}

	stats := Aggregate(transactions)

	assert.True(t, stats.Sampled)
	assert.Equal(t, 600, stats.TotalCount)
	assert.True(t, stats.TotalIncome.Equal(expectedIncome),
		"total income %s != %s", stats.TotalIncome, expectedIncome)

	require.NotNil(t, stats.DateRange.From)
	require.NotNil(t, stats.DateRange.To)
	assert.Equal(t, "2025-01-01", stats.DateRange.From.Format("2006-01-02"))
	assert.Equal(t, "2025-12-31", stats.DateRange.To.Format("2006-01-02"))

	// Breakdown is sample-bounded: only the bank source is visible.
	assert.Equal(t, []string{"bank"}, stats.Sources)
}
