package suggest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwestin/tally/internal/llm"
	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/service"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func amountOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestSuggestCategoryRemote(t *testing.T) {
	ctx := context.Background()

	t.Run("remote success", func(t *testing.T) {
		client := &mockClient{
			classifyFn: func(_ llm.ClassifyRequest) (llm.ClassificationResult, error) {
				return llm.ClassificationResult{
					Category:   "Dining",
					Confidence: 0.9,
					Reasoning:  "coffee shop purchase",
				}, nil
			},
		}
		engine := NewWithConfig(client, &mockSource{categories: testCategories()}, nil, fastConfig())

		suggestion, err := engine.SuggestCategory(ctx, "STARBUCKS #123", amountOf("5.75"), model.TypeExpense)
		require.NoError(t, err)

		assert.Equal(t, "cat-dining", suggestion.CategoryID)
		assert.Equal(t, model.SuggestionSource("openai"), suggestion.Source)
		assert.InDelta(t, 0.9, suggestion.Confidence, 0.001)
		assert.False(t, suggestion.NeedsReview)
		assert.Equal(t, 1, client.callCount())
	})

	t.Run("low confidence needs review", func(t *testing.T) {
		client := &mockClient{
			classifyFn: func(_ llm.ClassifyRequest) (llm.ClassificationResult, error) {
				return llm.ClassificationResult{Category: "Dining", Confidence: 0.4}, nil
			},
		}
		engine := NewWithConfig(client, &mockSource{categories: testCategories()}, nil, fastConfig())

		suggestion, err := engine.SuggestCategory(ctx, "some charge", nil, model.TypeExpense)
		require.NoError(t, err)
		assert.True(t, suggestion.NeedsReview)
	})

	t.Run("unmatched remote category yields zero confidence", func(t *testing.T) {
		client := &mockClient{
			classifyFn: func(_ llm.ClassifyRequest) (llm.ClassificationResult, error) {
				return llm.ClassificationResult{Category: "Underwater Basket Weaving", Confidence: 0.95}, nil
			},
		}
		engine := NewWithConfig(client, &mockSource{categories: testCategories()}, nil, fastConfig())

		suggestion, err := engine.SuggestCategory(ctx, "weird charge", nil, model.TypeExpense)
		require.NoError(t, err)
		assert.Empty(t, suggestion.CategoryID)
		assert.Zero(t, suggestion.Confidence)
		assert.True(t, suggestion.NeedsReview)
	})
}

func TestSuggestCategoryCache(t *testing.T) {
	ctx := context.Background()

	client := &mockClient{
		classifyFn: func(_ llm.ClassifyRequest) (llm.ClassificationResult, error) {
			return llm.ClassificationResult{Category: "Dining", Confidence: 0.9}, nil
		},
	}
	engine := NewWithConfig(client, &mockSource{categories: testCategories()}, nil, fastConfig())

	first, err := engine.SuggestCategory(ctx, "STARBUCKS #123", amountOf("5.75"), model.TypeExpense)
	require.NoError(t, err)

	second, err := engine.SuggestCategory(ctx, "STARBUCKS #123", amountOf("5.75"), model.TypeExpense)
	require.NoError(t, err)

	// Identical result, tagged as a cache hit, no second remote call.
	assert.Equal(t, model.SuggestionSource("openai-cache"), second.Source)
	assert.Equal(t, first.CategoryID, second.CategoryID)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, int64(1), engine.GetMetrics().CacheHits)

	// A different amount misses the cache.
	_, err = engine.SuggestCategory(ctx, "STARBUCKS #123", amountOf("9.99"), model.TypeExpense)
	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount())

	engine.ClearCache()
	_, err = engine.SuggestCategory(ctx, "STARBUCKS #123", amountOf("5.75"), model.TypeExpense)
	require.NoError(t, err)
	assert.Equal(t, 3, client.callCount())

	t.Run("review flag tracks the caller threshold", func(t *testing.T) {
		transactions := []model.Transaction{{
			ID:          "t1",
			Description: "STARBUCKS #123",
			Amount:      decimal.RequireFromString("5.75"),
			Type:        model.TypeExpense,
		}}

		// A stricter threshold than the one in force when the entry was
		// cached must flip the flag on the hit.
		result, err := engine.SuggestForBatch(ctx, transactions, 0.95)
		require.NoError(t, err)
		require.Len(t, result.ManualReviewNeeded, 1)

		hit := result.ManualReviewNeeded[0]
		assert.Equal(t, model.SuggestionSource("openai-cache"), hit.Source)
		assert.True(t, hit.NeedsReview)
		assert.Equal(t, 3, client.callCount())
	})
}

func TestSuggestCategoryFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("remote failure falls back to bayes", func(t *testing.T) {
		client := &mockClient{
			classifyFn: func(_ llm.ClassifyRequest) (llm.ClassificationResult, error) {
				return llm.ClassificationResult{}, llm.NewError(llm.ErrConnection, "provider down", nil)
			},
		}
		source := &mockSource{categories: testCategories(), examples: testExamples()}
		engine := NewWithConfig(client, source, nil, fastConfig())

		suggestion, err := engine.SuggestCategory(ctx, "starbucks coffee", nil, model.TypeExpense)
		require.NoError(t, err)

		assert.Equal(t, model.SourceBayesClassifier, suggestion.Source)
		assert.Equal(t, "cat-dining", suggestion.CategoryID)
		assert.NotEqual(t, model.SuggestionSource("openai"), suggestion.Source)
	})

	t.Run("untrained classifier reports no classifications", func(t *testing.T) {
		client := &mockClient{
			classifyFn: func(_ llm.ClassifyRequest) (llm.ClassificationResult, error) {
				return llm.ClassificationResult{}, llm.NewError(llm.ErrTimeout, "deadline", nil)
			},
		}
		source := &mockSource{categories: testCategories()}
		engine := NewWithConfig(client, source, nil, fastConfig())

		suggestion, err := engine.SuggestCategory(ctx, "anything", nil, model.TypeExpense)
		require.NoError(t, err)

		assert.Equal(t, model.SourceNoClassifications, suggestion.Source)
		assert.Zero(t, suggestion.Confidence)
		assert.True(t, suggestion.NeedsReview)
	})

	t.Run("fallback honors transaction direction", func(t *testing.T) {
		examples := append(testExamples(),
			service.ClassificationExample{Description: "acme corp payroll deposit", CategoryID: "cat-salary"},
			service.ClassificationExample{Description: "acme corp payroll bonus", CategoryID: "cat-salary"},
		)
		source := &mockSource{categories: testCategories(), examples: examples}
		engine := NewWithConfig(nil, source, nil, fastConfig())

		income, err := engine.SuggestCategory(ctx, "acme corp payroll deposit", nil, model.TypeIncome)
		require.NoError(t, err)
		assert.Equal(t, "cat-salary", income.CategoryID)

		// The same description on an expense must not land in an income
		// category, even though the model scores it highest.
		outgoing, err := engine.SuggestCategory(ctx, "acme corp payroll deposit", nil, model.TypeExpense)
		require.NoError(t, err)
		assert.Equal(t, model.SourceBayesClassifier, outgoing.Source)
		assert.NotEqual(t, "cat-salary", outgoing.CategoryID)
	})

	t.Run("nil client skips remote entirely", func(t *testing.T) {
		source := &mockSource{categories: testCategories(), examples: testExamples()}
		engine := NewWithConfig(nil, source, nil, fastConfig())

		suggestion, err := engine.SuggestCategory(ctx, "whole foods market", nil, model.TypeExpense)
		require.NoError(t, err)
		assert.Equal(t, model.SourceBayesClassifier, suggestion.Source)
		assert.Equal(t, "cat-groceries", suggestion.CategoryID)
	})
}

func TestRateLimitCooldown(t *testing.T) {
	ctx := context.Background()

	client := &mockClient{
		classifyFn: func(_ llm.ClassifyRequest) (llm.ClassificationResult, error) {
			return llm.ClassificationResult{}, llm.NewError(llm.ErrRateLimit, "quota exceeded", nil)
		},
	}
	source := &mockSource{categories: testCategories(), examples: testExamples()}
	engine := NewWithConfig(client, source, nil, fastConfig())

	require.False(t, engine.IsRateLimited())

	_, err := engine.SuggestCategory(ctx, "starbucks coffee", nil, model.TypeExpense)
	require.NoError(t, err)

	// One attempt, not retried, and the breaker is now open.
	assert.Equal(t, 1, client.callCount())
	assert.True(t, engine.IsRateLimited())

	// During cooldown no remote call is attempted.
	_, err = engine.SuggestCategory(ctx, "chipotle lunch", nil, model.TypeExpense)
	require.NoError(t, err)
	assert.Equal(t, 1, client.callCount())
	assert.GreaterOrEqual(t, engine.GetMetrics().RateLimitHits, int64(2))
}

func TestSuggestForBatch(t *testing.T) {
	ctx := context.Background()

	source := &mockSource{categories: testCategories(), examples: testExamples()}
	engine := NewWithConfig(nil, source, nil, fastConfig())

	transactions := []model.Transaction{
		{ID: "t1", Description: "starbucks coffee downtown", Type: model.TypeExpense, Amount: decimal.RequireFromString("4.50")},
		{ID: "t2", Description: "whole foods market groceries", Type: model.TypeExpense, Amount: decimal.RequireFromString("88.10")},
		{ID: "t3", Description: "zzqx unrecognizable blob", Type: model.TypeExpense, Amount: decimal.RequireFromString("10.00")},
	}

	result, err := engine.SuggestForBatch(ctx, transactions, 0.7)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Stats.Total)
	assert.Equal(t, result.Stats.AutomaticCount, len(result.AutomaticSuggestions))
	assert.Equal(t, result.Stats.ManualCount, len(result.ManualReviewNeeded))
	assert.Equal(t, 3, result.Stats.AutomaticCount+result.Stats.ManualCount)

	// The clearly-matching descriptions clear the threshold.
	ids := make(map[string]model.CategorySuggestion)
	for _, s := range append(result.AutomaticSuggestions, result.ManualReviewNeeded...) {
		ids[s.TransactionID] = s
	}
	assert.Equal(t, "cat-dining", ids["t1"].CategoryID)
	assert.Equal(t, "cat-groceries", ids["t2"].CategoryID)

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := engine.SuggestForBatch(ctx, transactions, 1.5)
		assert.Error(t, err)
	})

	t.Run("empty batch", func(t *testing.T) {
		result, err := engine.SuggestForBatch(ctx, nil, 0.7)
		require.NoError(t, err)
		assert.Zero(t, result.Stats.Total)
	})
}

func TestMetricsLifecycle(t *testing.T) {
	ctx := context.Background()

	client := &mockClient{
		classifyFn: func(_ llm.ClassifyRequest) (llm.ClassificationResult, error) {
			return llm.ClassificationResult{Category: "Dining", Confidence: 0.9}, nil
		},
	}
	engine := NewWithConfig(client, &mockSource{categories: testCategories()}, nil, fastConfig())

	for i := 0; i < 3; i++ {
		_, err := engine.SuggestCategory(ctx, fmt.Sprintf("charge %d", i), nil, model.TypeExpense)
		require.NoError(t, err)
	}

	metrics := engine.GetMetrics()
	assert.Equal(t, int64(3), metrics.RemoteCalls)

	engine.ResetMetrics()
	assert.Zero(t, engine.GetMetrics().RemoteCalls)
}
