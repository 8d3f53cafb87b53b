package querycache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Key addresses one cache entry. Empty fields act as wildcards in prefix
// matching, so Key{Scope: "state"} matches every state entry.
type Key struct {
	Scope string
	Kind  string
	ID    string
}

// NewKey builds a key from up to three parts.
func NewKey(parts ...string) Key {
	var key Key
	if len(parts) > 0 {
		key.Scope = parts[0]
	}
	if len(parts) > 1 {
		key.Kind = parts[1]
	}
	if len(parts) > 2 {
		key.ID = parts[2]
	}
	return key
}

// String renders the key as a bracketed path for logs.
func (k Key) String() string {
	parts := []string{k.Scope}
	if k.Kind != "" || k.ID != "" {
		parts = append(parts, k.Kind)
	}
	if k.ID != "" {
		parts = append(parts, k.ID)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// HasPrefix reports whether k falls under prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if prefix.Scope != "" && prefix.Scope != k.Scope {
		return false
	}
	if prefix.Kind != "" && prefix.Kind != k.Kind {
		return false
	}
	if prefix.ID != "" && prefix.ID != k.ID {
		return false
	}
	return true
}

func (k Key) less(other Key) bool {
	if k.Scope != other.Scope {
		return k.Scope < other.Scope
	}
	if k.Kind != other.Kind {
		return k.Kind < other.Kind
	}
	return k.ID < other.ID
}

// Entry is a cached value with its bookkeeping.
type Entry struct {
	Key       Key
	Value     any
	UpdatedAt time.Time
	Stale     bool
}

// Listener observes writes to one key. ok is false after a removal.
type Listener func(value any, ok bool)

// Cache is a keyed store with per-key subscriptions. Writes are atomic and
// visible to Get before listeners run; listeners run on the writer's
// goroutine after the lock is released.
type Cache struct {
	mu        sync.Mutex
	entries   map[Key]*Entry
	listeners map[Key]map[uint64]Listener
	nextID    uint64
	now       func() time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries:   map[Key]*Entry{},
		listeners: map[Key]map[uint64]Listener{},
		now:       time.Now,
	}
}

// Get returns the value stored at key.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Set stores value at key and notifies the key's listeners.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	c.entries[key] = &Entry{Key: key, Value: value, UpdatedAt: c.now()}
	listeners := c.listenersLocked(key)
	c.mu.Unlock()
	notify(listeners, value, true)
}

// Update computes a new value from the previous one under the lock. When fn
// returns keep=false the entry is left untouched and nobody is notified.
func (c *Cache) Update(key Key, fn func(prev any, ok bool) (next any, keep bool)) bool {
	c.mu.Lock()
	var prev any
	entry, ok := c.entries[key]
	if ok {
		prev = entry.Value
	}
	next, keep := fn(prev, ok)
	if !keep {
		c.mu.Unlock()
		return false
	}
	c.entries[key] = &Entry{Key: key, Value: next, UpdatedAt: c.now()}
	listeners := c.listenersLocked(key)
	c.mu.Unlock()
	notify(listeners, next, true)
	return true
}

// Remove deletes key. Listeners are notified only when an entry existed.
func (c *Cache) Remove(key Key) bool {
	c.mu.Lock()
	if _, ok := c.entries[key]; !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.entries, key)
	listeners := c.listenersLocked(key)
	c.mu.Unlock()
	notify(listeners, nil, false)
	return true
}

// Subscribe registers fn for writes to exactly key.
func (c *Cache) Subscribe(key Key, fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	set := c.listeners[key]
	if set == nil {
		set = map[uint64]Listener{}
		c.listeners[key] = set
	}
	set[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if set := c.listeners[key]; set != nil {
				delete(set, id)
				if len(set) == 0 {
					delete(c.listeners, key)
				}
			}
		})
	}
}

// Find returns copies of every entry under prefix, sorted by key.
func (c *Cache) Find(prefix Key) []Entry {
	c.mu.Lock()
	out := make([]Entry, 0)
	for key, entry := range c.entries {
		if key.HasPrefix(prefix) {
			out = append(out, *entry)
		}
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// Invalidate marks every entry under prefix stale and returns how many were marked.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for key, entry := range c.entries {
		if key.HasPrefix(prefix) {
			entry.Stale = true
			count++
		}
	}
	return count
}

// IsFresh reports whether key holds a value that is neither stale nor older than maxAge.
func (c *Cache) IsFresh(key Key, maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || entry.Stale {
		return false
	}
	if maxAge <= 0 {
		return true
	}
	return c.now().Sub(entry.UpdatedAt) < maxAge
}

func (c *Cache) listenersLocked(key Key) []Listener {
	set := c.listeners[key]
	if len(set) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, set[id])
	}
	return out
}

func notify(listeners []Listener, value any, ok bool) {
	for _, fn := range listeners {
		fn(value, ok)
	}
}
