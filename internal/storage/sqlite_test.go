package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwestin/tally/internal/common"
	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/service"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testTransaction(id, merchant, amount string, txType model.TransactionType, date time.Time) model.Transaction {
	return model.Transaction{
		ID:          id,
		Date:        date,
		Description: merchant + " purchase " + id,
		Merchant:    merchant,
		Amount:      decimal.RequireFromString(amount),
		Type:        txType,
		AccountID:   "acct-1",
		AccountKind: model.AccountBank,
		UploadID:    "upload-1",
	}
}

func TestMigrateIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSaveAndGetTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	transactions := []model.Transaction{
		testTransaction("t1", "Starbucks", "5.75", model.TypeExpense, day),
		testTransaction("t2", "Acme", "2500.00", model.TypeIncome, day.AddDate(0, 0, 1)),
	}
	transactions[0].Tags = []string{"coffee", "recurring"}

	require.NoError(t, store.SaveTransactions(ctx, transactions))

	t.Run("roundtrip", func(t *testing.T) {
		got, err := store.GetTransaction(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "Starbucks", got.Merchant)
		assert.Equal(t, "5.75", got.Amount.StringFixed(2))
		assert.Equal(t, model.TypeExpense, got.Type)
		assert.Equal(t, model.AccountBank, got.AccountKind)
		assert.Equal(t, model.EnrichmentPending, got.EnrichmentStatus)
		assert.Equal(t, []string{"coffee", "recurring"}, got.Tags)
		assert.NotEmpty(t, got.Hash)
	})

	t.Run("duplicate hash is skipped", func(t *testing.T) {
		dup := testTransaction("t1-dup", "Starbucks", "5.75", model.TypeExpense, day)
		dup.Description = transactions[0].Description
		dup.Hash = transactions[0].Hash
		require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{dup}))

		_, err := store.GetTransaction(ctx, "t1-dup")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("filter by type", func(t *testing.T) {
		got, err := store.GetTransactions(ctx, service.TransactionFilter{Type: model.TypeIncome})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "t2", got[0].ID)
	})

	t.Run("filter by date range", func(t *testing.T) {
		end := day
		got, err := store.GetTransactions(ctx, service.TransactionFilter{EndDate: &end})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "t1", got[0].ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.GetTransaction(ctx, "missing")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("empty slice rejected", func(t *testing.T) {
		assert.Error(t, store.SaveTransactions(ctx, []model.Transaction{}))
	})

	t.Run("invalid transaction rejected", func(t *testing.T) {
		bad := testTransaction("t3", "X", "1.00", "sideways", day)
		assert.ErrorIs(t, store.SaveTransactions(ctx, []model.Transaction{bad}), ErrInvalidTransaction)
	})
}

func TestBatchLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	transactions := []model.Transaction{
		testTransaction("t1", "Starbucks", "4.50", model.TypeExpense, day),
		testTransaction("t2", "Starbucks", "5.25", model.TypeExpense, day.AddDate(0, 0, 3)),
		testTransaction("t3", "Shell", "40.00", model.TypeExpense, day.AddDate(0, 0, 5)),
	}
	require.NoError(t, store.SaveTransactions(ctx, transactions))

	from, to := day, day.AddDate(0, 0, 3)
	batch := model.Batch{
		ID:             "b1",
		Title:          "Starbucks - Expenses",
		Summary:        "2 transactions from 2024-02-01 to 2024-02-04",
		TransactionIDs: []string{"t1", "t2"},
		Metadata: model.BatchMetadata{
			Source:   model.SourceMerchantType,
			UploadID: "upload-1",
			Merchant: "Starbucks",
		},
		DateRange: model.DateRange{From: &from, To: &to},
	}
	require.NoError(t, store.SaveBatches(ctx, []model.Batch{batch}))

	t.Run("get batch", func(t *testing.T) {
		got, err := store.GetBatch(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Starbucks - Expenses", got.Title)
		assert.Equal(t, model.SourceMerchantType, got.Metadata.Source)
		assert.Equal(t, "Starbucks", got.Metadata.Merchant)
		assert.ElementsMatch(t, []string{"t1", "t2"}, got.TransactionIDs)
		require.NotNil(t, got.DateRange.From)
		assert.Equal(t, from, got.DateRange.From.UTC())
	})

	t.Run("members carry the assignment", func(t *testing.T) {
		got, err := store.GetTransaction(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "b1", got.BatchID)
	})

	t.Run("batch transactions ordered by date", func(t *testing.T) {
		got, err := store.GetBatchTransactions(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "t1", got[0].ID)
		assert.Equal(t, "t2", got[1].ID)
	})

	t.Run("find by merchant and type", func(t *testing.T) {
		got, err := store.FindBatchByMerchantAndType(ctx, "Starbucks", model.TypeExpense, 50)
		require.NoError(t, err)
		assert.Equal(t, "b1", got.ID)
	})

	t.Run("find respects capacity", func(t *testing.T) {
		_, err := store.FindBatchByMerchantAndType(ctx, "Starbucks", model.TypeExpense, 2)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("find misses other merchants", func(t *testing.T) {
		_, err := store.FindBatchByMerchantAndType(ctx, "Chevron", model.TypeExpense, 50)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("unbatched transactions", func(t *testing.T) {
		got, err := store.GetUnbatchedTransactions(ctx, "upload-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "t3", got[0].ID)
	})

	t.Run("assign remaining transaction", func(t *testing.T) {
		require.NoError(t, store.AssignTransactionsToBatch(ctx, "b1", []string{"t3"}))

		got, err := store.GetUnbatchedTransactions(ctx, "upload-1")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("update summary", func(t *testing.T) {
		summary := model.BatchSummary{
			Summary:  "Transactions from Starbucks",
			Insights: []string{"Net expense of 49.75", "Spans 6 days"},
			Source:   "local",
		}
		require.NoError(t, store.UpdateBatchSummary(ctx, "b1", summary))

		got, err := store.GetBatch(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "Transactions from Starbucks", got.Summary)
		assert.Equal(t, summary.Insights, got.Insights)
	})

	t.Run("update summary of missing batch", func(t *testing.T) {
		err := store.UpdateBatchSummary(ctx, "missing", model.BatchSummary{Summary: "x"})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestApplySuggestion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{
		testTransaction("t1", "Starbucks", "4.50", model.TypeExpense, day),
		testTransaction("t2", "Mystery", "10.00", model.TypeExpense, day),
	}))

	t.Run("automatic suggestion assigns the category", func(t *testing.T) {
		err := store.ApplySuggestion(ctx, model.CategorySuggestion{
			TransactionID: "t1",
			CategoryID:    "cat-dining",
			Source:        model.SuggestionSource("openai"),
			Confidence:    0.92,
			NeedsReview:   false,
		})
		require.NoError(t, err)

		got, err := store.GetTransaction(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "cat-dining", got.CategoryID)
		assert.Equal(t, "cat-dining", got.SuggestedCategoryID)
		assert.Equal(t, model.EnrichmentEnriched, got.EnrichmentStatus)
		assert.InDelta(t, 0.92, got.Confidence, 0.001)
		assert.False(t, got.NeedsReview)
	})

	t.Run("low confidence only stages the category", func(t *testing.T) {
		err := store.ApplySuggestion(ctx, model.CategorySuggestion{
			TransactionID: "t2",
			CategoryID:    "cat-misc",
			Source:        model.SourceBayesClassifier,
			Confidence:    0.4,
			NeedsReview:   true,
		})
		require.NoError(t, err)

		got, err := store.GetTransaction(ctx, "t2")
		require.NoError(t, err)
		assert.Empty(t, got.CategoryID)
		assert.Equal(t, "cat-misc", got.SuggestedCategoryID)
		assert.Equal(t, model.EnrichmentPending, got.EnrichmentStatus)
		assert.True(t, got.NeedsReview)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		err := store.ApplySuggestion(ctx, model.CategorySuggestion{
			TransactionID: "missing",
			CategoryID:    "cat-dining",
			Source:        model.SuggestionSource("openai"),
		})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestCategories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dining, err := store.CreateCategory(ctx, "Dining", "Restaurants and coffee", model.CategoryTypeExpense)
	require.NoError(t, err)
	require.NotEmpty(t, dining.ID)

	_, err = store.CreateCategory(ctx, "Salary", "", model.CategoryTypeIncome)
	require.NoError(t, err)

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := store.CreateCategory(ctx, "Dining", "", model.CategoryTypeExpense)
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	})

	t.Run("list is sorted by name", func(t *testing.T) {
		categories, err := store.GetCategories(ctx)
		require.NoError(t, err)
		require.Len(t, categories, 2)
		assert.Equal(t, "Dining", categories[0].Name)
		assert.Equal(t, "Salary", categories[1].Name)
	})

	t.Run("get by id", func(t *testing.T) {
		got, err := store.GetCategoryByID(ctx, dining.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dining", got.Name)
		assert.Equal(t, model.CategoryTypeExpense, got.Type)
		assert.True(t, got.IsActive)
	})

	t.Run("get missing id", func(t *testing.T) {
		_, err := store.GetCategoryByID(ctx, "missing")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("invalid type rejected", func(t *testing.T) {
		_, err := store.CreateCategory(ctx, "Weird", "", "sideways")
		assert.Error(t, err)
	})
}

func TestClassificationExamples(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveClassificationExample(ctx, "starbucks coffee", "cat-dining"))
	require.NoError(t, store.SaveClassificationExample(ctx, "whole foods market", "cat-groceries"))

	examples, err := store.GetClassificationExamples(ctx)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, "starbucks coffee", examples[0].Description)
	assert.Equal(t, "cat-dining", examples[0].CategoryID)

	t.Run("empty description rejected", func(t *testing.T) {
		assert.Error(t, store.SaveClassificationExample(ctx, "", "cat-dining"))
	})
}
