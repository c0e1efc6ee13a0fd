// Package suggest implements the layered category suggestion engine: a
// remote classifier is tried first, with a response cache and a rate-limit
// circuit breaker in front of it, and a locally trained naive-Bayes
// classifier as the deterministic fallback.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwestin/tally/internal/common"
	"github.com/kwestin/tally/internal/llm"
	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/service"
)

// DefaultConfidenceThreshold separates automatic suggestions from ones that
// need manual review.
const DefaultConfidenceThreshold = 0.7

const (
	defaultClassifyTimeout = 10 * time.Second
	batchWorkers           = 5
)

// Config holds tunables for the suggestion engine.
type Config struct {
	ConfidenceThreshold float64
	ClassifyTimeout     time.Duration
	CacheTTL            time.Duration
	CacheMaxEntries     int
	Cooldown            time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		ClassifyTimeout:     defaultClassifyTimeout,
		CacheTTL:            defaultCacheTTL,
		CacheMaxEntries:     defaultCacheSize,
		Cooldown:            llm.DefaultCooldown,
		MaxRetries:          3,
		RetryDelay:          time.Second,
	}
}

// CategorySource provides the category list and classification history the
// engine needs. service.Store satisfies it.
type CategorySource interface {
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetClassificationExamples(ctx context.Context) ([]service.ClassificationExample, error)
}

// Engine produces category suggestions for transactions. All mutable state
// (cache, breaker, metrics, local model) is instance state, so isolated
// engines can be created freely in tests.
type Engine struct {
	client    llm.Client // nil when no remote provider is configured
	store     CategorySource
	cache     *suggestionCache
	breaker   *llm.Breaker
	local     *localClassifier
	metrics   *metricsRecorder
	logger    *slog.Logger
	retryOpts service.RetryOptions
	timeout   time.Duration
	threshold float64
	trainMu   sync.Mutex
}

// New creates a suggestion engine with the default configuration. A nil
// client disables the remote layer entirely.
func New(client llm.Client, store CategorySource, logger *slog.Logger) *Engine {
	return NewWithConfig(client, store, logger, DefaultConfig())
}

// NewWithConfig creates a suggestion engine with custom configuration.
func NewWithConfig(client llm.Client, store CategorySource, logger *slog.Logger, cfg Config) *Engine {
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = defaultClassifyTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		client:  client,
		store:   store,
		cache:   newSuggestionCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		breaker: llm.NewBreaker(cfg.Cooldown),
		local:   newLocalClassifier(),
		metrics: &metricsRecorder{},
		logger:  logger,
		retryOpts: service.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		timeout:   cfg.ClassifyTimeout,
		threshold: cfg.ConfidenceThreshold,
	}
}

// Breaker exposes the engine's circuit breaker so other remote consumers
// (the batch summarizer) can share rate-limit state.
func (e *Engine) Breaker() *llm.Breaker {
	return e.breaker
}

// SuggestCategory produces a category suggestion for one transaction's
// details. Remote failures degrade to the local classifier; the returned
// error is reserved for structural problems.
func (e *Engine) SuggestCategory(ctx context.Context, description string, amount *decimal.Decimal, txType model.TransactionType) (model.CategorySuggestion, error) {
	return e.suggest(ctx, "", description, amount, txType, e.threshold)
}

func (e *Engine) suggest(ctx context.Context, transactionID, description string, amount *decimal.Decimal, txType model.TransactionType, threshold float64) (model.CategorySuggestion, error) {
	key := cacheKey(description, amount, txType)

	if cached, ok := e.cache.get(key); ok {
		e.metrics.incCacheHits()
		cached.TransactionID = transactionID
		cached.Source = model.RemoteCacheSource(string(cached.Source))
		// The cached entry carries the flag computed at insert time;
		// the caller's threshold is what counts.
		cached.NeedsReview = cached.Confidence < threshold
		e.logger.Debug("suggestion cache hit", "description", description)
		return cached, nil
	}

	if e.client != nil {
		if e.breaker.IsRateLimited() {
			e.metrics.incRateLimitHits()
			e.logger.Debug("remote classifier in cooldown, using local fallback")
		} else {
			suggestion, err := e.classifyRemote(ctx, description, amount, txType, threshold)
			if err == nil {
				e.cache.set(key, suggestion)
				suggestion.TransactionID = transactionID
				return suggestion, nil
			}

			e.metrics.incRemoteErrors()
			if llm.IsRateLimited(err) {
				e.breaker.MarkRateLimited()
				e.metrics.incRateLimitHits()
			}
			e.logger.Warn("remote classification failed, using local fallback",
				"error", err,
				"error_type", llm.TypeOf(err))
		}
	}

	suggestion := e.classifyLocal(ctx, description, txType, threshold)
	suggestion.TransactionID = transactionID
	return suggestion, nil
}

// classifyRemote runs one remote classification with retries and a hard
// per-attempt deadline. Rate-limit errors are never retried.
func (e *Engine) classifyRemote(ctx context.Context, description string, amount *decimal.Decimal, txType model.TransactionType, threshold float64) (model.CategorySuggestion, error) {
	categories, err := e.store.GetCategories(ctx)
	if err != nil {
		return model.CategorySuggestion{}, fmt.Errorf("failed to load categories: %w", err)
	}

	req := llm.ClassifyRequest{
		Description: description,
		Amount:      amount,
		Type:        txType,
		Categories:  categories,
	}

	var result llm.ClassificationResult
	err = common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		e.metrics.incRemoteCalls()
		response, callErr := e.client.Classify(callCtx, req)
		if callErr != nil {
			return &common.RetryableError{
				Err:       callErr,
				Retryable: !llm.IsRateLimited(callErr),
			}
		}
		result = response
		return nil
	}, e.retryOpts)
	if err != nil {
		return model.CategorySuggestion{}, err
	}

	categoryID, matchScore := MatchCategory(result.Category, txType, categories)
	confidence := 0.0
	if categoryID != "" {
		confidence = result.Confidence * matchScore
	}

	return model.CategorySuggestion{
		CategoryID:  categoryID,
		Confidence:  confidence,
		Source:      model.RemoteSource(e.client.Provider()),
		Reasoning:   result.Reasoning,
		NeedsReview: confidence < threshold,
	}, nil
}

// classifyLocal suggests from the trained naive-Bayes model, training it on
// demand from stored classification history the first time through. Only
// categories matching the transaction's direction are candidates, the same
// constraint the remote match applies.
func (e *Engine) classifyLocal(ctx context.Context, description string, txType model.TransactionType, threshold float64) model.CategorySuggestion {
	if !e.local.Trained() {
		e.trainOnDemand(ctx)
	}

	if categoryID, score, ok := e.local.Suggest(description, e.typeFilter(ctx, txType)); ok {
		e.metrics.incLocalFallbacks()
		return model.CategorySuggestion{
			CategoryID:  categoryID,
			Confidence:  score,
			Source:      model.SourceBayesClassifier,
			Reasoning:   "matched against historical classifications",
			NeedsReview: score < threshold,
		}
	}

	return model.CategorySuggestion{
		Source:      model.SourceNoClassifications,
		Reasoning:   "no trained classifications available",
		NeedsReview: true,
	}
}

// typeFilter builds an allow filter over category ids for one transaction
// direction. When the category list cannot be loaded no restriction
// applies; a weakly filtered suggestion beats none.
func (e *Engine) typeFilter(ctx context.Context, txType model.TransactionType) func(string) bool {
	categories, err := e.store.GetCategories(ctx)
	if err != nil {
		e.logger.Warn("failed to load categories for local classification", "error", err)
		return nil
	}

	wantType := model.CategoryTypeExpense
	if txType == model.TypeIncome {
		wantType = model.CategoryTypeIncome
	}

	allowed := make(map[string]bool, len(categories))
	for _, cat := range categories {
		if cat.Type == wantType {
			allowed[cat.ID] = true
		}
	}
	return func(categoryID string) bool { return allowed[categoryID] }
}

func (e *Engine) trainOnDemand(ctx context.Context) {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	if e.local.Trained() {
		return
	}

	examples, err := e.store.GetClassificationExamples(ctx)
	if err != nil {
		e.logger.Warn("failed to load classification history", "error", err)
		return
	}

	e.local.Train(examples)
	e.logger.Debug("trained local classifier", "examples", len(examples))
}

// SuggestForBatch runs per-transaction suggestion over a batch and
// partitions results by the confidence threshold. Individual failures
// degrade that single result; the batch itself never fails.
func (e *Engine) SuggestForBatch(ctx context.Context, transactions []model.Transaction, threshold float64) (service.BatchSuggestionResult, error) {
	if threshold == 0 {
		threshold = e.threshold
	}
	if threshold < 0 || threshold > 1 {
		return service.BatchSuggestionResult{}, fmt.Errorf("%w: confidence threshold %v out of range", common.ErrInvalidConfig, threshold)
	}

	suggestions := make([]model.CategorySuggestion, len(transactions))

	sem := make(chan struct{}, batchWorkers)
	var wg sync.WaitGroup

	for i, txn := range transactions {
		wg.Add(1)
		go func(idx int, transaction model.Transaction) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				suggestions[idx] = errorSuggestion(transaction.ID, ctx.Err())
				return
			}

			amount := transaction.Amount
			suggestion, err := e.suggest(ctx, transaction.ID, transaction.Description, &amount, transaction.Type, threshold)
			if err != nil {
				suggestions[idx] = errorSuggestion(transaction.ID, err)
				return
			}
			suggestions[idx] = suggestion
		}(i, txn)
	}

	wg.Wait()

	result := service.BatchSuggestionResult{}
	var confidenceSum float64

	for _, suggestion := range suggestions {
		confidenceSum += suggestion.Confidence
		if suggestion.Source != model.SourceError && suggestion.Confidence >= threshold {
			result.AutomaticSuggestions = append(result.AutomaticSuggestions, suggestion)
		} else {
			result.ManualReviewNeeded = append(result.ManualReviewNeeded, suggestion)
		}
	}

	result.Stats.Total = len(suggestions)
	result.Stats.AutomaticCount = len(result.AutomaticSuggestions)
	result.Stats.ManualCount = len(result.ManualReviewNeeded)
	if len(suggestions) > 0 {
		result.Stats.AvgConfidence = confidenceSum / float64(len(suggestions))
		result.Stats.PercentAutomatic = float64(result.Stats.AutomaticCount) / float64(len(suggestions)) * 100
	}

	return result, nil
}

func errorSuggestion(transactionID string, err error) model.CategorySuggestion {
	return model.CategorySuggestion{
		TransactionID: transactionID,
		Source:        model.SourceError,
		Reasoning:     err.Error(),
		NeedsReview:   true,
	}
}

// GetMetrics returns a snapshot of the engine counters.
func (e *Engine) GetMetrics() Metrics {
	return e.metrics.snapshot()
}

// ResetMetrics zeroes the engine counters.
func (e *Engine) ResetMetrics() {
	e.metrics.reset()
}

// ClearCache drops all cached suggestions.
func (e *Engine) ClearCache() {
	e.cache.clear()
}

// IsRateLimited reports whether the remote classifier is in cooldown.
func (e *Engine) IsRateLimited() bool {
	return e.breaker.IsRateLimited()
}
