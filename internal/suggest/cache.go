package suggest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/textutil"
)

const (
	defaultCacheTTL  = 24 * time.Hour
	defaultCacheSize = 1000
	evictionFraction = 0.10
)

// cacheKey builds the lookup key for a suggestion request. The description
// is normalized so formatting variants of the same charge share an entry.
func cacheKey(description string, amount *decimal.Decimal, txType model.TransactionType) string {
	amountPart := ""
	if amount != nil {
		amountPart = amount.StringFixed(2)
	}
	return fmt.Sprintf("%s|%s|%s", textutil.Normalize(description), amountPart, txType)
}

type cacheEntry struct {
	expiry     time.Time
	insertedAt time.Time
	suggestion model.CategorySuggestion
}

// suggestionCache is a bounded TTL cache for suggestions. When full, the
// oldest tenth of the entries is evicted.
type suggestionCache struct {
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	mu         sync.RWMutex
}

func newSuggestionCache(ttl time.Duration, maxEntries int) *suggestionCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheSize
	}
	return &suggestionCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *suggestionCache) get(key string) (model.CategorySuggestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return model.CategorySuggestion{}, false
	}
	return entry.suggestion, true
}

func (c *suggestionCache) set(key string, suggestion model.CategorySuggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = cacheEntry{
		suggestion: suggestion,
		insertedAt: now,
		expiry:     now.Add(c.ttl),
	}
}

// evictOldest removes the oldest tenth of entries. Caller holds the lock.
func (c *suggestionCache) evictOldest() {
	count := int(float64(c.maxEntries) * evictionFraction)
	if count < 1 {
		count = 1
	}

	type aged struct {
		key        string
		insertedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key: key, insertedAt: entry.insertedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].insertedAt.Before(all[j].insertedAt)
	})

	for i := 0; i < count && i < len(all); i++ {
		delete(c.entries, all[i].key)
	}
}

func (c *suggestionCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *suggestionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
