package finance

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
	"sync"
	"time"
)

type chartCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[uint64]chartCacheEntry
	now     func() time.Time
}

func newChartCache(ttl time.Duration) *chartCache {
	if ttl <= 0 {
		ttl = defaultChartCacheTTL
	}
	return &chartCache{ttl: ttl, entries: map[uint64]chartCacheEntry{}, now: time.Now}
}

func (c *chartCache) get(key uint64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		if c.now().Before(entry.createdAt.Add(c.ttl)) {
			img := make([]byte, len(entry.image))
			copy(img, entry.image)
			return img, true
		}
		delete(c.entries, key)
	}
	return nil, false
}

func (c *chartCache) set(key uint64, img []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.createdAt.Add(c.ttl)) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = chartCacheEntry{createdAt: now, image: img}
}

// chartKey fingerprints everything that changes the rendered image.
type chartKey struct {
	h   hash.Hash64
	buf [8]byte
}

func newChartKey(kind, title string) *chartKey {
	k := &chartKey{h: fnv.New64a()}
	k.str(kind)
	k.str(title)
	return k
}

func (k *chartKey) str(s string) {
	k.h.Write([]byte(s))
	k.h.Write([]byte{0})
}

func (k *chartKey) num(f float64) {
	binary.LittleEndian.PutUint64(k.buf[:], math.Float64bits(f))
	k.h.Write(k.buf[:])
}

func (k *chartKey) date(t time.Time) {
	binary.LittleEndian.PutUint64(k.buf[:], uint64(t.Unix()))
	k.h.Write(k.buf[:])
}

func (k *chartKey) sum() uint64 { return k.h.Sum64() }
