package classifier

import (
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Lora-Technologies/LoraGuard/internal/config"
	"github.com/Lora-Technologies/LoraGuard/internal/observability"
)

// CachedResult is the flattened outcome kept per normalized message.
type CachedResult struct {
	Flagged  bool
	Category string
	Score    float64
}

// ResultCache remembers classification outcomes by message content.
// Entries are shared across senders: the key is the normalized text,
// never the player.
type ResultCache struct {
	lru *expirable.LRU[string, CachedResult]
}

func NewResultCache(cfg config.Cache) *ResultCache {
	cache := &ResultCache{}
	if cfg.Enabled {
		cache.lru = expirable.NewLRU[string, CachedResult](cfg.MaxSize, nil, cfg.TTL)
	}
	return cache
}

// Get returns the cached outcome for text, or false on a miss. A
// disabled cache always misses.
func (c *ResultCache) Get(text string) (CachedResult, bool) {
	if c.lru == nil {
		return CachedResult{}, false
	}
	cached, ok := c.lru.Get(Normalize(text))
	if ok {
		observability.RecordCacheHit()
	} else {
		observability.RecordCacheMiss()
	}
	return cached, ok
}

func (c *ResultCache) Put(text string, result *Result) {
	if c.lru == nil || result == nil {
		return
	}
	c.lru.Add(Normalize(text), CachedResult{
		Flagged:  result.Flagged,
		Category: result.HighestCategory(),
		Score:    result.HighestScore(),
	})
}

func (c *ResultCache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// Normalize case-folds, trims, and collapses internal whitespace so
// trivially restyled repeats of a message address the same entry.
// Normalize is idempotent.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
