// Package summary derives batch titles and insight lines from structural
// signals, with an optional remote summarizer tried first under a hard
// deadline and a deterministic local fallback.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kwestin/tally/internal/llm"
	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/stats"
	"github.com/kwestin/tally/internal/textutil"
)

const (
	// DefaultRemoteTimeout bounds a remote summarization call.
	DefaultRemoteTimeout = 15 * time.Second
	// ForcedRemoteTimeout applies when the caller explicitly forces the
	// remote path and is willing to wait longer.
	ForcedRemoteTimeout = 20 * time.Second

	// A merchant is dominant when it covers more than half the batch.
	dominantMerchantShare = 0.5

	maxSummaryWords = 8
)

// Source tags for generated summaries. Remote summaries carry the provider
// name instead.
const (
	SourceLocal         = "local"
	SourceErrorFallback = "error-fallback"
)

// Options control a single Summarize call.
type Options struct {
	// ForceRemote requires the remote path and extends its deadline.
	ForceRemote bool
	// Timeout overrides the remote deadline when positive.
	Timeout time.Duration
}

// Generator produces batch summaries. A nil client disables the remote
// path. Pass the suggestion engine's breaker to share rate-limit state
// across both remote consumers; with a nil breaker the generator uses a
// private one, so repeated calls still back off after a quota error.
type Generator struct {
	client  llm.Client
	breaker *llm.Breaker
	logger  *slog.Logger
}

// New creates a summary generator.
func New(client llm.Client, breaker *llm.Breaker, logger *slog.Logger) *Generator {
	if breaker == nil {
		breaker = llm.NewBreaker(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, breaker: breaker, logger: logger}
}

// Summarize produces a title and insight list for the given transactions.
// The remote summarizer is tried first when configured and not in
// rate-limit cooldown; any remote failure degrades to the local algorithm,
// never to an error.
func (g *Generator) Summarize(ctx context.Context, transactions []model.Transaction, opts Options) model.BatchSummary {
	statistics := stats.Aggregate(transactions)

	if g.client == nil || len(transactions) == 0 {
		return g.local(transactions, statistics, SourceLocal, false)
	}

	if g.breaker.IsRateLimited() {
		g.logger.Debug("remote summarizer in cooldown, using local summary")
		return g.local(transactions, statistics, SourceLocal, false)
	}

	result, err := g.summarizeRemote(ctx, transactions, statistics, opts)
	if err != nil {
		if llm.IsRateLimited(err) {
			g.breaker.MarkRateLimited()
		}
		timedOut := llm.TypeOf(err) == llm.ErrTimeout
		g.logger.Warn("remote summarization failed, using local summary",
			"error", err,
			"error_type", llm.TypeOf(err),
			"timed_out", timedOut)
		return g.local(transactions, statistics, SourceErrorFallback, timedOut)
	}

	return model.BatchSummary{
		Summary:  clampWords(result.Summary, maxSummaryWords),
		Insights: result.Insights,
		Source:   g.client.Provider(),
	}
}

func (g *Generator) summarizeRemote(ctx context.Context, transactions []model.Transaction, statistics model.Statistics, opts Options) (llm.SummaryResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
		if opts.ForceRemote {
			timeout = ForcedRemoteTimeout
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	descriptions := make([]string, len(transactions))
	for i, txn := range transactions {
		descriptions[i] = txn.Description
	}

	return g.client.Summarize(callCtx, llm.SummaryRequest{
		Title:        localTitle(transactions, statistics),
		Descriptions: descriptions,
		Statistics:   statistics,
	})
}

func (g *Generator) local(transactions []model.Transaction, statistics model.Statistics, source string, timedOut bool) model.BatchSummary {
	return model.BatchSummary{
		Summary:  clampWords(localTitle(transactions, statistics), maxSummaryWords),
		Insights: buildInsights(transactions, statistics),
		Source:   source,
		TimedOut: timedOut,
	}
}

// localTitle derives a summary line in priority order: dominant merchant,
// common keywords, date range, then a bare count.
func localTitle(transactions []model.Transaction, statistics model.Statistics) string {
	if merchant, ok := dominantMerchant(transactions); ok {
		return fmt.Sprintf("Transactions from %s", merchant)
	}

	descriptions := make([]string, len(transactions))
	for i, txn := range transactions {
		descriptions[i] = txn.Description
	}
	if keywords := textutil.ExtractCommonWords(descriptions, 0.5); len(keywords) > 0 {
		return fmt.Sprintf("%s Transactions", strings.Join(keywords, " "))
	}

	if statistics.DateRange.From != nil && statistics.DateRange.To != nil {
		return fmt.Sprintf("Transactions from %s to %s",
			statistics.DateRange.From.Format("2006-01-02"),
			statistics.DateRange.To.Format("2006-01-02"))
	}

	return fmt.Sprintf("Batch of %d transactions", len(transactions))
}

// dominantMerchant returns the merchant covering more than half the batch,
// if there is one.
func dominantMerchant(transactions []model.Transaction) (string, bool) {
	if len(transactions) == 0 {
		return "", false
	}

	counts := make(map[string]int)
	for _, txn := range transactions {
		if txn.Merchant != "" {
			counts[txn.Merchant]++
		}
	}

	for merchant, count := range counts {
		if float64(count) > float64(len(transactions))*dominantMerchantShare {
			return merchant, true
		}
	}
	return "", false
}

// buildInsights assembles independent factual statements. Each line has its
// own precondition; none is required.
func buildInsights(transactions []model.Transaction, statistics model.Statistics) []string {
	var insights []string

	if merchant, count, ok := topMerchant(transactions); ok {
		insights = append(insights, fmt.Sprintf("%d of %d transactions are from %s",
			count, len(transactions), merchant))
	}

	switch statistics.NetDirection {
	case model.NetPositive:
		insights = append(insights, fmt.Sprintf("Net income of %s", statistics.NetAmount.StringFixed(2)))
	case model.NetNegative:
		insights = append(insights, fmt.Sprintf("Net expense of %s", statistics.NetAmount.StringFixed(2)))
	}

	if statistics.IncomeCount > 0 && statistics.ExpenseCount > 0 {
		insights = append(insights, fmt.Sprintf("%d income and %d expense transactions",
			statistics.IncomeCount, statistics.ExpenseCount))
	}

	if statistics.DateRange.From != nil && statistics.DateRange.To != nil {
		days := int(statistics.DateRange.To.Sub(*statistics.DateRange.From).Hours()/24) + 1
		insights = append(insights, fmt.Sprintf("Spans %d days", days))
	}

	if statistics.Categorization.CategorizedCount > 0 {
		insights = append(insights, fmt.Sprintf("%.0f%% already categorized", statistics.Categorization.Percent))
	}

	return insights
}

// topMerchant returns the most frequent non-empty merchant and its count.
// Ties break toward the merchant seen first in input order.
func topMerchant(transactions []model.Transaction) (string, int, bool) {
	counts := make(map[string]int)
	var order []string
	for _, txn := range transactions {
		if txn.Merchant == "" {
			continue
		}
		if _, seen := counts[txn.Merchant]; !seen {
			order = append(order, txn.Merchant)
		}
		counts[txn.Merchant]++
	}

	best := ""
	bestCount := 0
	for _, merchant := range order {
		if counts[merchant] > bestCount {
			best, bestCount = merchant, counts[merchant]
		}
	}
	return best, bestCount, best != ""
}

func clampWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return strings.TrimSpace(s)
	}
	return strings.Join(words[:max], " ")
}
