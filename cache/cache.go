// Package cache provides bounded, time-expiring memoization of document
// records and raw content bytes.
//
// Entries are purely derived and never authoritative: dropping the whole
// cache at any point only costs extra network round-trips. Eviction at
// capacity removes the single oldest-by-insertion entry; access recency
// is not tracked. A background sweep bounds the memory held by expired
// entries between accesses.
//
// A Cache is an explicitly constructed instance passed into the
// orchestrators; lifecycle (Start/Stop of the sweeper) belongs to
// whoever wires the system together.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/docvault/docvault/interfaces"
)

const (
	// DefaultTTL is the per-entry expiration applied when Set is called
	// with a zero TTL.
	DefaultTTL = 15 * time.Minute

	// DefaultSweepInterval is how often the background sweep removes
	// expired entries.
	DefaultSweepInterval = 5 * time.Minute

	// DefaultMaxRecords bounds the record cache.
	DefaultMaxRecords = 1024

	// DefaultMaxContent bounds the content cache.
	DefaultMaxContent = 256
)

type entry[T any] struct {
	value      T
	insertedAt time.Time
	expiresAt  time.Time
}

// boundedMap is a mutex-guarded map with FIFO-by-insertion eviction and
// lazy expiry on access.
type boundedMap[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	maxSize int
}

func newBoundedMap[T any](maxSize int) *boundedMap[T] {
	return &boundedMap[T]{
		entries: make(map[string]entry[T]),
		maxSize: maxSize,
	}
}

func (m *boundedMap[T]) set(key string, value T, ttl time.Duration, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		m.evictOldestLocked()
	}

	m.entries[key] = entry[T]{
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
}

// evictOldestLocked removes the single entry with the earliest insertion
// time. Linear scan; cache sizes are small and bounded.
func (m *boundedMap[T]) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, e := range m.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.insertedAt
			first = false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}

func (m *boundedMap[T]) get(key string, now time.Time) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if now.After(e.expiresAt) {
		delete(m.entries, key)
		var zero T
		return zero, false
	}
	return e.value, true
}

func (m *boundedMap[T]) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *boundedMap[T]) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *boundedMap[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Config tunes cache bounds and timing. Zero values fall back to the
// package defaults.
type Config struct {
	MaxRecords    int
	MaxContent    int
	TTL           time.Duration
	SweepInterval time.Duration
}

// Cache fronts the orchestrators with two independent bounded maps: one
// for document records, one for raw verified content bytes.
type Cache struct {
	records *boundedMap[*interfaces.DocumentRecord]
	content *boundedMap[[]byte]

	ttl           time.Duration
	sweepInterval time.Duration
	log           *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// New creates a cache instance. The background sweeper does not run
// until Start is called.
func New(cfg Config, log *slog.Logger) *Cache {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.MaxContent <= 0 {
		cfg.MaxContent = DefaultMaxContent
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if log == nil {
		log = slog.Default()
	}

	return &Cache{
		records:       newBoundedMap[*interfaces.DocumentRecord](cfg.MaxRecords),
		content:       newBoundedMap[[]byte](cfg.MaxContent),
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		log:           log,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// SetRecord inserts or overwrites a record entry. A zero ttl uses the
// cache default. The record is copied in, so later mutations by the
// caller do not leak into the cache.
func (c *Cache) SetRecord(key string, record *interfaces.DocumentRecord, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	clone := *record
	c.records.set(key, &clone, ttl, time.Now())
}

// Record returns a copy of the cached record for key, or false if
// absent/expired. Callers own the returned record and may mutate it
// freely without racing other readers.
func (c *Cache) Record(key string) (*interfaces.DocumentRecord, bool) {
	record, ok := c.records.get(key, time.Now())
	if !ok {
		return nil, false
	}
	clone := *record
	return &clone, true
}

// DropRecord removes a record entry, e.g. after a mutation.
func (c *Cache) DropRecord(key string) {
	c.records.delete(key)
}

// SetContent inserts or overwrites a content entry. Only verified bytes
// belong here; the download orchestrator enforces that.
func (c *Cache) SetContent(key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.content.set(key, data, ttl, time.Now())
}

// Content returns the cached bytes for key, or false if absent/expired.
func (c *Cache) Content(key string) ([]byte, bool) {
	return c.content.get(key, time.Now())
}

// Size returns the current number of record entries.
func (c *Cache) Size() int {
	return c.records.len()
}

// ContentSize returns the current number of content entries.
func (c *Cache) ContentSize() int {
	return c.content.len()
}

// Start launches the background sweeper. Further calls are no-ops.
func (c *Cache) Start() {
	c.startOnce.Do(c.startSweeper)
}

func (c *Cache) startSweeper() {
	c.started.Store(true)
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				removed := c.records.sweep(now) + c.content.sweep(now)
				if removed > 0 {
					c.log.Debug("Cache sweep removed expired entries",
						slog.Int("removed", removed))
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop terminates the background sweeper and waits for it to exit.
// Stopping a cache that was never started returns immediately.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
}
