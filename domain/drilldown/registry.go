package drilldown

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Defaults for registry sizing and expiry.
const (
	DefaultMaxEntries    = 10000
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// evictFraction is the share of entries dropped when the registry is full.
const evictFraction = 5 // one fifth

// Registry maps integer handles to entries and back. All access is
// serialized; the two maps are always mutated together.
type Registry struct {
	mu      sync.Mutex
	entries map[int]*Entry
	reverse map[string]int
	nextID  int

	maxEntries    int
	ttl           time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxEntries bounds the registry size.
func WithMaxEntries(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxEntries = n
		}
	}
}

// WithTTL sets how long an untouched entry survives.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often the sweeper runs.
func WithSweepInterval(interval time.Duration) Option {
	return func(r *Registry) {
		if interval > 0 {
			r.sweepInterval = interval
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a Registry and starts its TTL sweeper. Call
// Shutdown to stop the sweeper; it never blocks process exit.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries:       make(map[int]*Entry),
		reverse:       make(map[string]int),
		nextID:        1,
		maxEntries:    DefaultMaxEntries,
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		logger:        slog.Default(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.sweepLoop()
	return r
}

// RegisterOption attaches optional fields at registration.
type RegisterOption func(*Entry)

// WithParent records the handle this entry was discovered from.
func WithParent(parentID int) RegisterOption {
	return func(e *Entry) { e.parentID = parentID }
}

// WithSearchQuery records the query that produced the entry.
func WithSearchQuery(query string) RegisterOption {
	return func(e *Entry) { e.searchQuery = query }
}

// WithZoomLevel records the zoom level active at registration.
func WithZoomLevel(level string) RegisterOption {
	return func(e *Entry) { e.zoomLevel = level }
}

// Register returns the handle for a key, minting one when the key is new.
// Re-registering an existing key touches it and returns the existing
// handle unchanged.
func (r *Registry) Register(key string, entryType EntryType, opts ...RegisterOption) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if id, ok := r.reverse[key]; ok {
		entry := r.entries[id]
		entry.lastAccessed = now
		entry.accessCount++
		return id
	}

	if len(r.entries) >= r.maxEntries {
		r.evictLocked()
	}

	entry := &Entry{
		id:          r.nextID,
		memoryID:    key,
		entryType:   entryType,
		createdAt:   now,
		accessCount: 1,
	}
	for _, opt := range opts {
		opt(entry)
	}

	r.nextID++
	r.entries[entry.id] = entry
	r.reverse[key] = entry.id
	return entry.id
}

// evictLocked drops the least recently used fifth of the registry.
func (r *Registry) evictLocked() {
	count := r.maxEntries / evictFraction
	if count < 1 {
		count = 1
	}

	victims := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		victims = append(victims, entry)
	}
	sort.Slice(victims, func(i, j int) bool {
		ti, tj := victims[i].effectiveLastAccess(), victims[j].effectiveLastAccess()
		if ti.Equal(tj) {
			return victims[i].id < victims[j].id
		}
		return ti.Before(tj)
	})

	if count > len(victims) {
		count = len(victims)
	}
	for _, entry := range victims[:count] {
		delete(r.entries, entry.id)
		delete(r.reverse, entry.memoryID)
	}

	r.logger.Debug("evicted drilldown entries", slog.Int("evicted", count), slog.Int("remaining", len(r.entries)))
}

// ResolveID resolves an exact handle, touching the entry.
func (r *Registry) ResolveID(id int) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return r.touchLocked(entry), true
}

// Resolve resolves a handle reference: a numeric string resolves as an
// exact handle first; otherwise the reference matches as a
// case-insensitive prefix of the dash-stripped key. Prefix ties resolve
// to the first-created entry.
func (r *Registry) Resolve(ref string) (Entry, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Entry{}, false
	}

	if id, err := strconv.Atoi(ref); err == nil {
		if entry, ok := r.ResolveID(id); ok {
			return entry, true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := normalizeKey(ref)
	if prefix == "" {
		return Entry{}, false
	}

	var match *Entry
	for _, entry := range r.entries {
		if !strings.HasPrefix(normalizeKey(entry.memoryID), prefix) {
			continue
		}
		if match == nil || entry.id < match.id {
			match = entry
		}
	}
	if match == nil {
		return Entry{}, false
	}
	return r.touchLocked(match), true
}

// touchLocked updates access bookkeeping and returns a snapshot.
func (r *Registry) touchLocked(entry *Entry) Entry {
	entry.lastAccessed = time.Now()
	entry.accessCount++
	return *entry
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "-", ""))
}

// Stats is a point-in-time readout of the registry.
type Stats struct {
	Total    int
	ByType   map[EntryType]int
	Capacity int
	NextID   int
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	byType := make(map[EntryType]int)
	for _, entry := range r.entries {
		byType[entry.entryType]++
	}
	return Stats{
		Total:    len(r.entries),
		ByType:   byType,
		Capacity: r.maxEntries,
		NextID:   r.nextID,
	}
}

// Clear removes every entry. Handles are not reused afterwards.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[int]*Entry)
	r.reverse = make(map[string]int)
}

// Shutdown stops the sweeper. Safe to call more than once.
func (r *Registry) Shutdown() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

// sweep evicts entries untouched for longer than the TTL.
func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.entries {
		if now.Sub(entry.effectiveLastAccess()) > r.ttl {
			delete(r.entries, id)
			delete(r.reverse, entry.memoryID)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("swept expired drilldown entries", slog.Int("removed", removed), slog.Int("remaining", len(r.entries)))
	}
	return removed
}
