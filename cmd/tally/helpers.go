package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/kwestin/tally/internal/llm"
	"github.com/kwestin/tally/internal/storage"
	"github.com/kwestin/tally/internal/suggest"
	"github.com/kwestin/tally/internal/summary"
)

// openStore opens the configured database and brings its schema up to date.
func openStore(ctx context.Context) (*storage.SQLiteStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "tally", "tally.db")
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// newLLMClient builds the configured remote classifier client, or nil when
// no provider is configured. The pipeline works fully offline without one.
func newLLMClient(ctx context.Context) (llm.Client, error) {
	provider := viper.GetString("llm.provider")
	if provider == "" {
		return nil, nil
	}

	apiKey := viper.GetString("llm.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("TALLY_LLM_API_KEY")
	}

	return llm.NewClient(ctx, llm.Config{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       viper.GetString("llm.model"),
		Timeout:     viper.GetDuration("llm.timeout"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
	})
}

// newEngine assembles the suggestion engine from config.
func newEngine(ctx context.Context, store *storage.SQLiteStore) (*suggest.Engine, error) {
	client, err := newLLMClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client: %w", err)
	}

	cfg := suggest.DefaultConfig()
	if threshold := viper.GetFloat64("suggest.confidence_threshold"); threshold > 0 {
		cfg.ConfidenceThreshold = threshold
	}
	if ttl := viper.GetDuration("suggest.cache_ttl"); ttl > 0 {
		cfg.CacheTTL = ttl
	}
	if cooldown := viper.GetDuration("suggest.cooldown"); cooldown > 0 {
		cfg.Cooldown = cooldown
	}

	return suggest.NewWithConfig(client, store, nil, cfg), nil
}

// newSummarizer assembles the batch summary generator. The breaker keeps
// a throttled provider from being called once per batch; after the first
// quota error the remaining batches use the local summary.
func newSummarizer(ctx context.Context) (*summary.Generator, error) {
	client, err := newLLMClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create summarizer client: %w", err)
	}
	return summary.New(client, llm.NewBreaker(0), nil), nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
