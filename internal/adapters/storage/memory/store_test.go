package memory

import (
	"context"
	"testing"
	"time"

	"github.com/azikar24/WormaCeptor-sub003/internal/adapters/storage/storetest"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return NewStore(0) })
}

func TestStoreCapacityEvictsOldest(t *testing.T) {
	s := NewStore(3)
	ctx := context.Background()
	now := time.Now()
	for i := int64(1); i <= 5; i++ {
		if err := s.Insert(ctx, storetest.Requested(i, "GET", "a.test", "/", now)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	items, _ := s.Query(ctx, usecase.TransactionFilter{})
	if len(items) != 3 || items[0].ID != 5 || items[2].ID != 3 {
		t.Fatalf("unexpected items after eviction: %+v", items)
	}
}

func TestStoreOutOfOrderInsertKeepsIDOrder(t *testing.T) {
	s := NewStore(0)
	ctx := context.Background()
	now := time.Now()
	for _, id := range []int64{1, 3, 2} {
		if err := s.Insert(ctx, storetest.Requested(id, "GET", "a.test", "/", now)); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}
	items, _ := s.Query(ctx, usecase.TransactionFilter{})
	if len(items) != 3 || items[0].ID != 3 || items[1].ID != 2 || items[2].ID != 1 {
		t.Fatalf("unexpected order: %+v", items)
	}
	if maxID, _ := s.MaxID(ctx); maxID != 3 {
		t.Fatalf("MaxID = %d", maxID)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore(0)
	ctx := context.Background()
	tx := storetest.Requested(1, "GET", "a.test", "/", time.Now())
	if err := s.Insert(ctx, tx); err != nil {
		t.Fatal(err)
	}
	tx.RequestHeaders[0].Value = "mutated"
	got, _ := s.Get(ctx, 1)
	if got.RequestHeaders[0].Value == "mutated" {
		t.Fatalf("store aliased caller headers")
	}
	got.RequestBody.Content[0] = 'X'
	again, _ := s.Get(ctx, 1)
	if again.RequestBody.Content[0] == 'X' {
		t.Fatalf("store aliased returned body")
	}
}
