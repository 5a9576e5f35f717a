// Package embcache is a content-addressed cache for audio embeddings.
//
// Computing a neural embedding is the most expensive step of feature
// extraction, so embeddings are keyed by an [Fingerprint] of the source file
// and reused across requests. The cache is bounded: after every insert,
// entries are evicted oldest-timestamp-first until the configured limit
// holds. Reads never refresh recency.
//
// The cache persists itself to a single msgpack snapshot file after every
// insert and loads it once at construction. All snapshot I/O errors are
// swallowed (logged at Warn): the cache is an optimization and must never
// propagate failures into the detection path.
//
// All operations are safe for concurrent use.
package embcache

import (
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// DefaultMaxEntries is the default cache capacity.
const DefaultMaxEntries = 100

// Entry is one cached embedding.
type Entry struct {
	Fingerprint string    `msgpack:"fingerprint"`
	Embedding   []float32 `msgpack:"embedding"`
	Timestamp   time.Time `msgpack:"timestamp"`
	Filename    string    `msgpack:"filename"`

	// Seq breaks timestamp ties deterministically: entries inserted later
	// carry a larger value.
	Seq uint64 `msgpack:"seq"`
}

// Cache maps audio fingerprints to embeddings with bounded size.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxEntries int
	path       string
	seq        uint64
	log        *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries sets the capacity. Values below 1 keep the default.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a cache persisted at path. An empty path keeps the cache
// memory-only. A corrupt or missing snapshot starts an empty cache.
func New(path string, opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*Entry),
		maxEntries: DefaultMaxEntries,
		path:       path,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.load()
	return c
}

// Get returns the cached entry for a fingerprint. The returned entry must
// be treated as read-only. Lookups do not affect eviction order.
func (c *Cache) Get(fingerprint string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint]
	return e, ok
}

// Put inserts or replaces an embedding, evicts down to capacity, and
// snapshots to disk.
func (c *Cache) Put(fingerprint string, embedding []float32, filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[fingerprint] = &Entry{
		Fingerprint: fingerprint,
		Embedding:   embedding,
		Timestamp:   time.Now(),
		Filename:    filename,
		Seq:         c.seq,
	}
	c.evictLocked()
	c.saveLocked()
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a snapshot of all entries, oldest first.
func (c *Cache) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sortOldestFirst(out)
	return out
}

// Clear drops all entries and removes the snapshot file.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	if c.path != "" {
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			c.log.Warn("embedding cache: remove snapshot", "path", c.path, "err", err)
		}
	}
}

// evictLocked removes oldest-timestamp entries until the capacity holds.
func (c *Cache) evictLocked() {
	excess := len(c.entries) - c.maxEntries
	if excess <= 0 {
		return
	}
	all := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	sortOldestFirst(all)
	for _, e := range all[:excess] {
		delete(c.entries, e.Fingerprint)
	}
}

func sortOldestFirst(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

// saveLocked writes the snapshot. Errors are logged and swallowed.
func (c *Cache) saveLocked() {
	if c.path == "" || len(c.entries) == 0 {
		return
	}
	data, err := msgpack.Marshal(c.entries)
	if err != nil {
		c.log.Warn("embedding cache: encode snapshot", "err", err)
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		c.log.Warn("embedding cache: write snapshot", "path", c.path, "err", err)
	}
}

// load reads the snapshot once at construction. Errors are swallowed.
func (c *Cache) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("embedding cache: read snapshot", "path", c.path, "err", err)
		}
		return
	}
	var entries map[string]*Entry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		c.log.Warn("embedding cache: decode snapshot", "path", c.path, "err", err)
		return
	}
	// A degenerate snapshot (msgpack nil, nil values) must not replace the
	// live map with something Put cannot write to.
	for fp, e := range entries {
		if fp == "" || e == nil {
			continue
		}
		c.entries[fp] = e
		if e.Seq > c.seq {
			c.seq = e.Seq
		}
	}
}
