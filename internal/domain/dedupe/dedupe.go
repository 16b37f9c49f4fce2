// Package dedupe tracks release IDs already seen during a fetch run.
package dedupe

import (
	"sync"
)

// Deduper records seen release IDs so a record repeated across pages is kept once.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(id string) bool

	// Unrecord removes an ID, allowing it to be recorded again.
	Unrecord(id string)

	// Reset forgets every recorded ID.
	Reset()

	Size() int
}

// inMemoryDeduper implements Deduper with a map plus an insertion-order ring.
// For bounded mode (maxSize > 0) the oldest ID is evicted when full.
// For unbounded mode (maxSize <= 0) only the map is used.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // id -> slot in order, -1 in unbounded mode
	order   []string       // ring of ids in insertion order, bounded mode only
	next    int            // next ring slot to write
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 0, // a fetch run is capped by max pages, so unbounded is the default
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Reset()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}

	if d.maxSize <= 0 {
		d.seen[id] = -1
		return false
	}

	if old := d.order[d.next]; old != "" {
		if slot, ok := d.seen[old]; ok && slot == d.next {
			delete(d.seen, old)
		}
	}
	d.order[d.next] = id
	d.seen[id] = d.next
	d.next = (d.next + 1) % d.maxSize
	return false
}

func (d *inMemoryDeduper) Unrecord(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.seen[id]
	if !ok {
		return
	}
	delete(d.seen, id)
	if slot >= 0 {
		d.order[slot] = ""
	}
}

func (d *inMemoryDeduper) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen = make(map[string]int)
	d.next = 0
	if d.maxSize > 0 {
		d.order = make([]string, d.maxSize)
	} else {
		d.order = nil
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
