// Package routecache provides time-bounded memoization of computed routes,
// keyed by a fingerprint of the full routing request.
package routecache

import (
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// DefaultTTL is the initial validity window for cached routes
const DefaultTTL = 60 * time.Second

// defaultMaxEntries bounds the backing store; eviction is LRU
const defaultMaxEntries = 4096

// CachedRoute is a route plus the bookkeeping needed for expiry
type CachedRoute struct {
	Route    model.Route
	Score    int64
	CachedAt time.Time
	Valid    bool
}

// Cache memoizes computed routes. Validity is always recomputed at read time
// from the stored timestamp and the current TTL, so changing the TTL takes
// effect immediately for existing entries in both directions.
type Cache struct {
	mu      sync.RWMutex
	entries *lru.Cache[common.Hash, CachedRoute]
	ttl     time.Duration
	clock   clock.Clock
}

// New creates a cache with the default TTL and capacity
func New() *Cache {
	entries, err := lru.New[common.Hash, CachedRoute](defaultMaxEntries)
	if err != nil {
		// Only reachable with a non-positive size constant
		panic(err)
	}
	return &Cache{
		entries: entries,
		ttl:     DefaultTTL,
		clock:   clock.New(),
	}
}

// WithClock injects a clock, used by tests to control expiry
func (c *Cache) WithClock(cl clock.Clock) *Cache {
	c.clock = cl
	return c
}

// Key derives the deterministic fingerprint for a routing request. Identical
// inputs always hash to the same key; any field change produces a new one.
func Key(tokenIn, tokenOut common.Address, amountIn *big.Int, srcChain, dstChain types.ChainID, prefs model.RoutePreferences) common.Hash {
	var buf []byte
	buf = append(buf, tokenIn.Bytes()...)
	buf = append(buf, tokenOut.Bytes()...)
	if amountIn != nil {
		buf = append(buf, amountIn.Bytes()...)
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(srcChain))
	buf = binary.BigEndian.AppendUint64(buf, uint64(dstChain))
	buf = append(buf, []byte(prefs.Mode)...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(prefs.MaxSlippageBps))
	buf = binary.BigEndian.AppendUint64(buf, uint64(prefs.MaxTimeMinutes))
	if prefs.MaxFeeWei != nil {
		buf = append(buf, prefs.MaxFeeWei.Bytes()...)
	}
	return common.BytesToHash(crypto.Keccak256(buf))
}

// Get returns the cached route for a key if it is still within the TTL window
func (c *Cache) Get(key common.Hash) (CachedRoute, bool) {
	c.mu.RLock()
	ttl := c.ttl
	c.mu.RUnlock()

	entry, ok := c.entries.Get(key)
	if !ok || !entry.Valid {
		return CachedRoute{}, false
	}
	if c.clock.Since(entry.CachedAt) >= ttl {
		return CachedRoute{}, false
	}
	return entry, true
}

// Put stores a scored route under the fingerprint of the request that produced it
func (c *Cache) Put(route model.Route, prefs model.RoutePreferences, score int64) common.Hash {
	key := Key(route.TokenIn, route.TokenOut, route.AmountIn, route.SrcChainID, route.DstChainID, prefs)
	c.entries.Add(key, CachedRoute{
		Route:    route,
		Score:    score,
		CachedAt: c.clock.Now(),
		Valid:    true,
	})

	logrus.WithFields(logrus.Fields{
		"key":    key.Hex(),
		"bridge": route.Bridge,
		"score":  score,
	}).Debug("Route cached")
	return key
}

// Invalidate drops a single entry regardless of age
func (c *Cache) Invalidate(key common.Hash) {
	c.entries.Remove(key)
}

// SetTTL changes the validity window. Existing entries are re-judged against
// the new TTL on their next read; nothing is recomputed eagerly.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()

	logrus.WithField("ttl", ttl).Info("Route cache TTL updated")
}

// TTL returns the current validity window
func (c *Cache) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// Len returns the number of stored entries, expired ones included
func (c *Cache) Len() int {
	return c.entries.Len()
}
