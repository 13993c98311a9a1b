package usecase

import (
	"sync"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

const DefaultActivityCapacity = 10

// ActivityBuffer is a fixed-capacity summary of the most recent transactions,
// keyed by id. Entries are evicted oldest-inserted first. It is a cache and can
// be rebuilt from the store at any time.
type ActivityBuffer struct {
	mu       sync.Mutex
	capacity int
	// insertion order of ids, oldest first
	order   []int64
	entries map[int64]domain.ActivityEntry

	requested int
}

func NewActivityBuffer(capacity int) *ActivityBuffer {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityBuffer{
		capacity: capacity,
		order:    make([]int64, 0, capacity+1),
		entries:  make(map[int64]domain.ActivityEntry, capacity+1),
	}
}

// Add inserts e or replaces the entry with the same id in place.
func (b *ActivityBuffer) Add(e domain.ActivityEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(e)
}

func (b *ActivityBuffer) addLocked(e domain.ActivityEntry) {
	if _, ok := b.entries[e.ID]; ok {
		b.entries[e.ID] = e
		return
	}
	b.entries[e.ID] = e
	b.order = append(b.order, e.ID)
	if e.Status == domain.StatusRequested {
		b.requested++
	}
	if len(b.order) > b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.entries, oldest)
	}
}

// Snapshot returns a copy of the entries, most recent first.
func (b *ActivityBuffer) Snapshot() []domain.ActivityEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.ActivityEntry, 0, len(b.order))
	for i := len(b.order) - 1; i >= 0; i-- {
		out = append(out, b.entries[b.order[i]])
	}
	return out
}

// RequestedCount is the number of distinct requested transactions seen since
// the last Clear.
func (b *ActivityBuffer) RequestedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requested
}

func (b *ActivityBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

func (b *ActivityBuffer) Capacity() int { return b.capacity }

func (b *ActivityBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

func (b *ActivityBuffer) clearLocked() {
	b.order = b.order[:0]
	b.entries = make(map[int64]domain.ActivityEntry, b.capacity+1)
	b.requested = 0
}

// Rebuild replaces the contents with txs, which are expected newest first
// as returned by TransactionRepository.Query.
func (b *ActivityBuffer) Rebuild(txs []domain.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	for i := len(txs) - 1; i >= 0; i-- {
		b.addLocked(domain.NewActivityEntry(txs[i]))
	}
}
