package usecase_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/azikar24/WormaCeptor-sub003/internal/adapters/storage/memory"
	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

var errDisk = errors.New("disk full")

type recorder struct {
	mu          sync.Mutex
	captured    map[domain.Status]int
	writeFailed map[string]int
	purges      map[string]int
	deleted     int64
}

func newRecorder() *recorder {
	return &recorder{captured: map[domain.Status]int{}, writeFailed: map[string]int{}, purges: map[string]int{}}
}

func (r *recorder) Captured(s domain.Status) {
	r.mu.Lock()
	r.captured[s]++
	r.mu.Unlock()
}

func (r *recorder) WriteFailed(op string) {
	r.mu.Lock()
	r.writeFailed[op]++
	r.mu.Unlock()
}

func (r *recorder) QueueDepth(int)   {}
func (r *recorder) ActivitySize(int) {}

func (r *recorder) Purged(result string, deleted int64) {
	r.mu.Lock()
	r.purges[result]++
	r.deleted += deleted
	r.mu.Unlock()
}

func (r *recorder) failures(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeFailed[op]
}

func (r *recorder) purgeCount(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.purges[result]
}

type sink struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (s *sink) Publish(ev domain.ChangeEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *sink) all() []domain.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChangeEvent(nil), s.events...)
}

// faultyStore fails selected operations on top of a memory store.
type faultyStore struct {
	*memory.Store
	mu            sync.Mutex
	failInsert    bool
	failUpdate    bool
	failDelete    bool
	deleteCalls   int
	insertGate    chan struct{}
	insertEntered chan struct{}
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.NewStore(0)}
}

func (f *faultyStore) set(fn func(*faultyStore)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func (f *faultyStore) Insert(ctx context.Context, tx domain.Transaction) error {
	f.mu.Lock()
	fail, gate, entered := f.failInsert, f.insertGate, f.insertEntered
	f.mu.Unlock()
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if fail {
		return errDisk
	}
	return f.Store.Insert(ctx, tx)
}

func (f *faultyStore) Update(ctx context.Context, tx domain.Transaction) error {
	f.mu.Lock()
	fail := f.failUpdate
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.Store.Update(ctx, tx)
}

func (f *faultyStore) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	f.mu.Lock()
	f.deleteCalls++
	fail := f.failDelete
	f.mu.Unlock()
	if fail {
		return 0, errDisk
	}
	return f.Store.DeleteBefore(ctx, t)
}

func (f *faultyStore) deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls
}

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
