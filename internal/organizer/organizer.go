// Package organizer partitions flat transaction lists into semantically
// coherent batches using a multi-pass strategy: merchant grouping first,
// then description-similarity grouping, then a temporal fallback. Each pass
// only consumes transactions the previous passes left unclaimed, so the
// result is always an exact partition of the input.
package organizer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/stats"
	"github.com/kwestin/tally/internal/textutil"
)

// Config holds tunables for the organizer.
type Config struct {
	// MaxBatchSize bounds batches produced at upload time.
	MaxBatchSize int
	// KeywordMaxBatchSize bounds batches produced by keyword re-batching.
	KeywordMaxBatchSize int
	// MinMerchantGroup is the smallest merchant group that becomes its own
	// batch; smaller groups fall through to later passes.
	MinMerchantGroup int
	// KeywordThreshold is passed to textutil.ExtractCommonWords.
	KeywordThreshold float64
	// GroupBySource switches the fallback pass from month grouping to
	// account-source grouping.
	GroupBySource bool
}

// DefaultConfig returns the default organizer configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:        50,
		KeywordMaxBatchSize: 25,
		MinMerchantGroup:    3,
		KeywordThreshold:    0.5,
	}
}

// Organizer builds batches from transactions.
type Organizer struct {
	config Config
}

// New creates an organizer with the default configuration.
func New() *Organizer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an organizer with custom configuration.
func NewWithConfig(config Config) *Organizer {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 50
	}
	if config.KeywordMaxBatchSize <= 0 {
		config.KeywordMaxBatchSize = 25
	}
	if config.MinMerchantGroup <= 0 {
		config.MinMerchantGroup = 3
	}
	if config.KeywordThreshold <= 0 {
		config.KeywordThreshold = 0.5
	}
	return &Organizer{config: config}
}

// Organize partitions transactions into batches. Every input transaction
// lands in exactly one batch; claim order within a pass is input order.
func (o *Organizer) Organize(transactions []model.Transaction) []model.Batch {
	if len(transactions) == 0 {
		return nil
	}

	var batches []model.Batch

	merchantBatches, remaining := o.merchantPass(transactions)
	batches = append(batches, merchantBatches...)

	keywordBatches, remaining := o.keywordPass(remaining)
	batches = append(batches, keywordBatches...)

	batches = append(batches, o.fallbackPass(remaining)...)

	return batches
}

// merchantPass groups transactions by (merchant, type). Groups below the
// minimum size are deferred to later passes.
func (o *Organizer) merchantPass(transactions []model.Transaction) ([]model.Batch, []model.Transaction) {
	type groupKey struct {
		merchant string
		txType   model.TransactionType
	}

	groups := make(map[groupKey][]model.Transaction)
	var keyOrder []groupKey
	var remaining []model.Transaction

	for _, txn := range transactions {
		if txn.Merchant == "" {
			remaining = append(remaining, txn)
			continue
		}
		key := groupKey{merchant: txn.Merchant, txType: txn.Type}
		if _, ok := groups[key]; !ok {
			keyOrder = append(keyOrder, key)
		}
		groups[key] = append(groups[key], txn)
	}

	var batches []model.Batch
	for _, key := range keyOrder {
		members := groups[key]
		if len(members) < o.config.MinMerchantGroup {
			remaining = append(remaining, members...)
			continue
		}

		title := fmt.Sprintf("%s - %s", key.merchant, directionLabel(key.txType))
		chunks := splitByDate(members, o.config.MaxBatchSize)
		for _, chunk := range chunks {
			source := model.SourceMerchantType
			if len(chunks) > 1 {
				source = model.SourceMerchantTypeDate
			}
			batch := o.newBatch(chunk, title, source)
			batch.Metadata.Merchant = key.merchant
			batches = append(batches, batch)
		}
	}

	return batches, remaining
}

// keywordPass groups unclaimed transactions whose descriptions share common
// words. The keyword-majority strategy is used; each type bucket with at
// least one common word becomes a single batch, size-split as needed.
func (o *Organizer) keywordPass(transactions []model.Transaction) ([]model.Batch, []model.Transaction) {
	buckets, order := splitByType(transactions)

	var batches []model.Batch
	var remaining []model.Transaction

	for _, txType := range order {
		members := buckets[txType]

		descriptions := make([]string, len(members))
		for i, txn := range members {
			descriptions[i] = txn.Description
		}

		keywords := textutil.ExtractCommonWords(descriptions, o.config.KeywordThreshold)
		if len(keywords) == 0 {
			remaining = append(remaining, members...)
			continue
		}

		title := fmt.Sprintf("%s - %s", strings.Join(keywords, " "), directionLabel(txType))
		chunks := splitByDate(members, o.config.MaxBatchSize)
		for _, chunk := range chunks {
			source := model.SourceSimilarDescription
			if len(chunks) > 1 {
				source = model.SourceSimilarDescriptionDate
			}
			batch := o.newBatch(chunk, title, source)
			batch.Metadata.Keywords = keywords
			batches = append(batches, batch)
		}
	}

	return batches, remaining
}

// fallbackPass groups whatever is left by (type, year-month), or by account
// source when configured.
func (o *Organizer) fallbackPass(transactions []model.Transaction) []model.Batch {
	if o.config.GroupBySource {
		return o.sourcePass(transactions)
	}

	type groupKey struct {
		month  string
		txType model.TransactionType
	}

	groups := make(map[groupKey][]model.Transaction)
	var keyOrder []groupKey

	for _, txn := range transactions {
		month := ""
		if !txn.Date.IsZero() {
			month = txn.Date.Format("2006-01")
		}
		key := groupKey{month: month, txType: txn.Type}
		if _, ok := groups[key]; !ok {
			keyOrder = append(keyOrder, key)
		}
		groups[key] = append(groups[key], txn)
	}

	var batches []model.Batch
	for _, key := range keyOrder {
		title := fmt.Sprintf("%s Transactions", directionLabel(key.txType))
		for _, chunk := range splitByDate(groups[key], o.config.MaxBatchSize) {
			batches = append(batches, o.newBatch(chunk, title, model.SourceDate))
		}
	}

	return batches
}

// sourcePass is the fallback variant that groups by (account source, type).
func (o *Organizer) sourcePass(transactions []model.Transaction) []model.Batch {
	type groupKey struct {
		source string
		txType model.TransactionType
	}

	groups := make(map[groupKey][]model.Transaction)
	var keyOrder []groupKey

	for _, txn := range transactions {
		source := string(txn.AccountKind)
		if source == "" {
			source = string(model.AccountOther)
		}
		key := groupKey{source: source, txType: txn.Type}
		if _, ok := groups[key]; !ok {
			keyOrder = append(keyOrder, key)
		}
		groups[key] = append(groups[key], txn)
	}

	var batches []model.Batch
	for _, key := range keyOrder {
		title := fmt.Sprintf("%s %s transactions", key.source, key.txType)
		chunks := splitByDate(groups[key], o.config.MaxBatchSize)
		for _, chunk := range chunks {
			source := model.SourceSourceType
			if len(chunks) > 1 {
				source = model.SourceSourceTypeDate
			}
			batches = append(batches, o.newBatch(chunk, title, source))
		}
	}

	return batches
}

// RebatchByKeywords regroups an existing set of transactions around shared
// description keywords, using the tighter keyword batch bound. Transactions
// without a keyword match fall back to month grouping.
func (o *Organizer) RebatchByKeywords(transactions []model.Transaction) []model.Batch {
	buckets, order := splitByType(transactions)

	var batches []model.Batch
	var leftover []model.Transaction

	for _, txType := range order {
		members := buckets[txType]

		descriptions := make([]string, len(members))
		for i, txn := range members {
			descriptions[i] = txn.Description
		}

		keywords := textutil.ExtractCommonWords(descriptions, o.config.KeywordThreshold)
		if len(keywords) == 0 {
			leftover = append(leftover, members...)
			continue
		}

		title := fmt.Sprintf("%s - %s", strings.Join(keywords, " "), directionLabel(txType))
		for _, chunk := range splitByDate(members, o.config.KeywordMaxBatchSize) {
			batch := o.newBatch(chunk, title, model.SourceKeywords)
			batch.Metadata.Keywords = keywords
			batches = append(batches, batch)
		}
	}

	return append(batches, o.fallbackPass(leftover)...)
}

// newBatch assembles a batch with its own statistics, date range, and a
// short factual summary.
func (o *Organizer) newBatch(members []model.Transaction, title string, source model.BatchSource) model.Batch {
	ids := make([]string, len(members))
	uploadID := ""
	for i, txn := range members {
		ids[i] = txn.ID
		if uploadID == "" {
			uploadID = txn.UploadID
		}
	}

	statistics := stats.Aggregate(members)

	return model.Batch{
		ID:             uuid.NewString(),
		Title:          truncateTitle(title),
		Summary:        batchSummary(members, statistics),
		TransactionIDs: ids,
		Metadata: model.BatchMetadata{
			CreatedAt: time.Now().UTC(),
			Source:    source,
			UploadID:  uploadID,
		},
		Statistics: &statistics,
		DateRange:  statistics.DateRange,
	}
}

func batchSummary(members []model.Transaction, statistics model.Statistics) string {
	if statistics.DateRange.From == nil || statistics.DateRange.To == nil {
		return fmt.Sprintf("%d transactions", len(members))
	}
	return fmt.Sprintf("%d transactions from %s to %s",
		len(members),
		statistics.DateRange.From.Format("2006-01-02"),
		statistics.DateRange.To.Format("2006-01-02"))
}

// splitByDate splits members into chunks of at most maxSize, ordered by
// ascending date. A single undersized group comes back unchanged, in input
// order.
func splitByDate(members []model.Transaction, maxSize int) [][]model.Transaction {
	if len(members) <= maxSize {
		return [][]model.Transaction{members}
	}

	sorted := make([]model.Transaction, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var chunks [][]model.Transaction
	for start := 0; start < len(sorted); start += maxSize {
		end := start + maxSize
		if end > len(sorted) {
			end = len(sorted)
		}
		chunks = append(chunks, sorted[start:end])
	}
	return chunks
}

// splitByType buckets transactions by type, preserving input order within
// each bucket and first-seen order across buckets.
func splitByType(transactions []model.Transaction) (map[model.TransactionType][]model.Transaction, []model.TransactionType) {
	buckets := make(map[model.TransactionType][]model.Transaction)
	var order []model.TransactionType

	for _, txn := range transactions {
		if _, ok := buckets[txn.Type]; !ok {
			order = append(order, txn.Type)
		}
		buckets[txn.Type] = append(buckets[txn.Type], txn)
	}

	return buckets, order
}

func directionLabel(txType model.TransactionType) string {
	if txType == model.TypeIncome {
		return "Income"
	}
	return "Expenses"
}

// truncateTitle enforces the eight-word title bound.
func truncateTitle(title string) string {
	words := strings.Fields(title)
	if len(words) <= 8 {
		return title
	}
	return strings.Join(words[:8], " ")
}
