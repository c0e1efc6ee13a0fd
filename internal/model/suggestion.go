package model

// SuggestionSource identifies which layer of the classifier chain produced
// a category suggestion.
type SuggestionSource string

// Suggestion source constants. Remote sources carry the configured provider
// name ("openai" by default); the cache variant appends "-cache".
const (
	SourceBayesClassifier   SuggestionSource = "bayes-classifier"
	SourceNoClassifications SuggestionSource = "no-classifications"
	SourceError             SuggestionSource = "error"
)

// RemoteSource returns the suggestion source tag for a remote provider.
func RemoteSource(provider string) SuggestionSource {
	return SuggestionSource(provider)
}

// RemoteCacheSource returns the suggestion source tag for a cached remote
// result.
func RemoteCacheSource(provider string) SuggestionSource {
	return SuggestionSource(provider + "-cache")
}

// CategorySuggestion is the outcome of one suggestion attempt for one
// transaction. CategoryID is empty when no category could be matched.
type CategorySuggestion struct {
	TransactionID string
	CategoryID    string
	Source        SuggestionSource
	Reasoning     string
	Confidence    float64
	NeedsReview   bool
}
