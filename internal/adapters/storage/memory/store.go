package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

// Store is a process-local TransactionRepository and StateRepository.
// Records are copied on the way in and out so callers never share memory
// with stored rows.
type Store struct {
	mu sync.RWMutex
	// ids in insertion order; ids are allocated increasing so this is also id order
	order []int64
	items map[int64]*domain.Transaction

	// maxRecords caps the table; <= 0 means unlimited. Oldest rows go first.
	maxRecords int

	lastCleanup   time.Time
	period        domain.RetentionPeriod
	periodPresent bool
}

func NewStore(maxRecords int) *Store {
	return &Store{
		order:      make([]int64, 0, 256),
		items:      make(map[int64]*domain.Transaction, 256),
		maxRecords: maxRecords,
	}
}

func (s *Store) Insert(ctx context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[tx.ID]; ok {
		return fmt.Errorf("insert %d: %w", tx.ID, usecase.ErrDuplicateID)
	}
	c := tx.Clone()
	s.items[tx.ID] = &c
	// keep order sorted by id even if writes arrive slightly out of order
	n := len(s.order)
	if n == 0 || s.order[n-1] < tx.ID {
		s.order = append(s.order, tx.ID)
	} else {
		i := sort.Search(n, func(i int) bool { return s.order[i] > tx.ID })
		s.order = append(s.order, 0)
		copy(s.order[i+1:], s.order[i:])
		s.order[i] = tx.ID
	}
	if s.maxRecords > 0 && len(s.order) > s.maxRecords {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[tx.ID]
	if !ok {
		return fmt.Errorf("update %d: %w", tx.ID, usecase.ErrNotFound)
	}
	if cur.Status.Terminal() {
		return fmt.Errorf("update %d: %w", tx.ID, usecase.ErrTerminal)
	}
	c := tx.Clone()
	s.items[tx.ID] = &c
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tx, ok := s.items[id]; ok {
		return tx.Clone(), nil
	}
	return domain.Transaction{}, fmt.Errorf("get %d: %w", id, usecase.ErrNotFound)
}

func (s *Store) Query(ctx context.Context, f usecase.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0, 32)
	skipped := 0
	// newest first
	for i := len(s.order) - 1; i >= 0; i-- {
		tx := s.items[s.order[i]]
		if tx == nil || !f.Matches(*tx) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, tx.Clone())
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.order[:0]
	for _, id := range s.order {
		tx := s.items[id]
		if tx == nil || tx.RequestedAt.Before(t) {
			delete(s.items, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return n, nil
}

func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.items))
	s.items = make(map[int64]*domain.Transaction, len(s.items))
	s.order = s.order[:0]
	return n, nil
}

func (s *Store) MaxID(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return 0, nil
	}
	return s.order[len(s.order)-1], nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

// StateRepository

func (s *Store) LastCleanup(ctx context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCleanup, !s.lastCleanup.IsZero(), nil
}

func (s *Store) SetLastCleanup(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCleanup = t
	return nil
}

func (s *Store) RetentionPeriod(ctx context.Context) (domain.RetentionPeriod, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.period, s.periodPresent, nil
}

func (s *Store) SetRetentionPeriod(ctx context.Context, p domain.RetentionPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = p
	s.periodPresent = true
	return nil
}

func (s *Store) Close() error { return nil }
