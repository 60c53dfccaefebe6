// Package cache provides a content-addressable cache of worker execution
// results. Keys are derived from file content digests rather than
// timestamps so they stay correct under clock skew, and from a coarse
// time bucket so retries within a window hit the same entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/revuekit/revue/internal/types"
)

const (
	// DefaultTTL is how long an entry stays valid after insertion
	DefaultTTL = 15 * time.Minute

	// DefaultCapacity is the maximum number of entries held at once
	DefaultCapacity = 100

	// keyTimeBucket is the granularity of the time component in keys.
	// Retries within one bucket produce identical keys.
	keyTimeBucket = 15 * time.Minute
)

// entry is one cached result. Owned exclusively by the cache; the stored
// result is a deep copy and lookups hand out fresh copies.
type entry struct {
	result     *types.ExecutionResult
	insertedAt time.Time
}

// ResultCache caches execution results keyed by worker, file content
// digests, and iteration. Safe for concurrent use during a tier's
// fan-out: reads and writes from overlapping worker completions are
// serialized by a single mutex.
type ResultCache struct {
	mu       sync.Mutex
	entries  map[string]entry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// Option configures a ResultCache
type Option func(*ResultCache)

// WithTTL overrides the default entry lifetime
func WithTTL(ttl time.Duration) Option {
	return func(c *ResultCache) { c.ttl = ttl }
}

// WithCapacity overrides the default capacity
func WithCapacity(n int) Option {
	return func(c *ResultCache) { c.capacity = n }
}

// New creates an empty result cache. Construct one per scheduler and
// pass it in explicitly; there is no package-level instance.
func New(opts ...Option) *ResultCache {
	c := &ResultCache{
		entries:  make(map[string]entry),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.capacity <= 0 {
		c.capacity = DefaultCapacity
	}
	return c
}

// Key derives the cache key for one (worker, files, iteration) run.
// It combines the worker identity, the sorted per-file content digests,
// the iteration, and a coarse time bucket. A file that cannot be read
// degrades to a path+timestamp surrogate digest: caching for that key
// becomes effectively unique instead of the whole operation failing.
func (c *ResultCache) Key(w types.Worker, files types.FileSet, iteration int) string {
	digests := make([]string, 0, len(files))
	for _, path := range files {
		digest, err := fileDigest(path)
		if err != nil {
			// Non-fatal: cache integrity degrades for this key only.
			fmt.Fprintf(os.Stderr, "warning: cache digest degraded for %s: %v\n", path, err)
			digest = surrogateDigest(path, c.now())
		}
		digests = append(digests, digest)
	}
	sort.Strings(digests)

	bucket := c.now().Truncate(keyTimeBucket).Unix()

	h := sha256.New()
	_, _ = io.WriteString(h, w.ID)
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, w.ModelTag)
	_, _ = io.WriteString(h, "\x00")
	for _, d := range digests {
		_, _ = io.WriteString(h, d)
		_, _ = io.WriteString(h, "\x00")
	}
	_, _ = io.WriteString(h, strconv.Itoa(iteration))
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, strconv.FormatInt(bucket, 10))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached result for key, if present and not
// past its TTL. Expired entries are evicted on the spot.
func (c *ResultCache) Get(key string) (*types.ExecutionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.result.Clone(), true
}

// Put stores a deep copy of result under key. If the cache is at
// capacity, the single entry with the oldest insertion time is evicted
// first. Mutating result after Put never affects the stored value.
func (c *ResultCache) Put(key string, result *types.ExecutionResult) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = entry{
		result:     result.Clone(),
		insertedAt: c.now(),
	}
}

// Len returns the number of entries currently held
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestLocked removes the entry with the oldest insertedAt.
// Caller must hold the mutex.
func (c *ResultCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.insertedAt.Before(oldest) {
			oldestKey = k
			oldest = e.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// fileDigest hashes the content of one file
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// surrogateDigest stands in for an unreadable file's content digest
func surrogateDigest(path string, now time.Time) string {
	h := sha256.Sum256([]byte(path + "\x00" + strconv.FormatInt(now.UnixNano(), 10)))
	return hex.EncodeToString(h[:])
}
