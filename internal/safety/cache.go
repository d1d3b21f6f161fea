package safety

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey identifies a verdict by content hash, rule-set version, and hint.
// Version in the key means entries for a replaced rule set can never be
// returned; they simply age out of the LRU.
type cacheKey struct {
	hash    uint64
	version uint64
	hint    Hint
}

// verdictCache is a bounded LRU of safety verdicts. Bounded by entry count,
// not memory, to keep lookup latency predictable. The underlying LRU is
// mutex-guarded, so the cache stays correct if the dispatcher ever serves
// requests concurrently.
type verdictCache struct {
	entries *lru.Cache[cacheKey, Verdict]
}

func newVerdictCache(size int) *verdictCache {
	// lru.New only errors on non-positive size, which the caller guards.
	entries, err := lru.New[cacheKey, Verdict](size)
	if err != nil {
		panic(err)
	}
	return &verdictCache{entries: entries}
}

func hashText(text string) uint64 {
	return xxhash.Sum64String(text)
}

func (c *verdictCache) get(key cacheKey) (Verdict, bool) {
	return c.entries.Get(key)
}

func (c *verdictCache) put(key cacheKey, v Verdict) {
	c.entries.Add(key, v)
}

// Len returns the current entry count (test hook).
func (c *verdictCache) Len() int {
	return c.entries.Len()
}
