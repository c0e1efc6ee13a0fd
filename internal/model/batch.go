package model

import "time"

// BatchSource records which organizer pass formed a batch.
type BatchSource string

// Batch source constants, one per organizer strategy.
const (
	SourceMerchant               BatchSource = "merchant"
	SourceMerchantType           BatchSource = "merchant_type"
	SourceMerchantTypeDate       BatchSource = "merchant_type_date"
	SourceSimilarDescription     BatchSource = "similar_description"
	SourceSimilarDescriptionDate BatchSource = "similar_description_date"
	SourceSourceType             BatchSource = "source_type"
	SourceSourceTypeDate         BatchSource = "source_type_date"
	SourceKeywords               BatchSource = "keywords"
	SourceDate                   BatchSource = "date"
	SourceRecovered              BatchSource = "recovered"
)

// DateRange is the inclusive calendar span covered by a set of transactions.
// From and To are nil when no member carries a parseable date.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// BatchMetadata describes how a batch was formed.
type BatchMetadata struct {
	CreatedAt time.Time
	Source    BatchSource
	UploadID  string
	Merchant  string   // Set for merchant-pass batches
	Keywords  []string // Set for keyword-pass batches
}

// Batch is a derived grouping of transactions. Membership is a set; order
// carries no meaning.
type Batch struct {
	ID             string
	Title          string // Short, at most eight words
	Summary        string
	Insights       []string
	TransactionIDs []string
	Metadata       BatchMetadata
	Statistics     *Statistics
	DateRange      DateRange
}

// Size returns the number of member transactions.
func (b *Batch) Size() int {
	return len(b.TransactionIDs)
}

// BatchSummary is the result of title/summary generation for a batch.
type BatchSummary struct {
	Summary  string
	Source   string
	Insights []string
	TimedOut bool
}
