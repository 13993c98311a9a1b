// Package storetest holds the behaviour every transaction store must share.
// Adapters call Run from their own tests with a fresh store per subtest.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

type Store interface {
	usecase.TransactionRepository
	usecase.StateRepository
}

type Factory func(t *testing.T) Store

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Requested builds a requested transaction with deterministic fields.
func Requested(id int64, method, host, path string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:             id,
		SessionID:      "test-session",
		Status:         domain.StatusRequested,
		Method:         method,
		URL:            "https://" + host + path,
		Scheme:         "https",
		Host:           host,
		Path:           path,
		RequestHeaders: domain.Headers{{Name: "Accept", Value: "*/*"}, {Name: "X-Dup", Value: "a"}, {Name: "X-Dup", Value: "b"}},
		RequestBody:    domain.Body{Content: []byte(`{"q":1}`), ContentType: "application/json", Size: 7, PlainText: true},
		RequestedAt:    at,
	}
}

// Completed returns tx moved to the complete state with code.
func Completed(tx domain.Transaction, code int) domain.Transaction {
	tx.Status = domain.StatusComplete
	tx.Response = &domain.Response{
		Code:       code,
		Headers:    domain.Headers{{Name: "Content-Type", Value: "text/plain"}},
		Body:       domain.Body{Content: []byte("ok"), ContentType: "text/plain", Size: 2, PlainText: true},
		ReceivedAt: tx.RequestedAt.Add(150 * time.Millisecond),
		Protocol:   "HTTP/1.1",
		TLS:        true,
		Timings:    domain.Timings{TTFB: 120, Total: 150},
	}
	tx.Duration = 150 * time.Millisecond
	return tx
}

func ids(txs []domain.Transaction) []int64 {
	out := make([]int64, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}

func Run(t *testing.T, newStore Factory) {
	t.Run("insert then get round trips", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		tx := Requested(1, "GET", "a.test", "/x", base)
		require.NoError(t, s.Insert(ctx, tx))

		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRequested, got.Status)
		assert.Equal(t, "GET", got.Method)
		assert.Equal(t, "a.test", got.Host)
		assert.True(t, got.RequestedAt.Equal(base))
		assert.Equal(t, tx.RequestHeaders, got.RequestHeaders)
		assert.Equal(t, `{"q":1}`, string(got.RequestBody.Content))
		assert.Nil(t, got.Response)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, Requested(1, "GET", "a.test", "/x", base)))
		err := s.Insert(ctx, Requested(1, "POST", "b.test", "/y", base))
		assert.ErrorIs(t, err, usecase.ErrDuplicateID)
	})

	t.Run("update missing id is not found", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(context.Background(), Completed(Requested(9, "GET", "a.test", "/x", base), 200))
		assert.ErrorIs(t, err, usecase.ErrNotFound)
		_, err = s.Get(context.Background(), 9)
		assert.ErrorIs(t, err, usecase.ErrNotFound)
	})

	t.Run("terminal records are immutable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		tx := Requested(1, "GET", "a.test", "/x", base)
		require.NoError(t, s.Insert(ctx, tx))
		require.NoError(t, s.Update(ctx, Completed(tx, 200)))

		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusComplete, got.Status)
		require.NotNil(t, got.Response)
		assert.Equal(t, 200, got.Response.Code)
		assert.Equal(t, "ok", got.Response.Body.Text())
		assert.Equal(t, 150*time.Millisecond, got.Duration)

		err = s.Update(ctx, Completed(tx, 500))
		assert.ErrorIs(t, err, usecase.ErrTerminal)
		got, _ = s.Get(ctx, 1)
		assert.Equal(t, 200, got.Response.Code)
	})

	t.Run("query orders newest first and filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, Requested(1, "GET", "api.example.com", "/users", base)))
		require.NoError(t, s.Insert(ctx, Requested(2, "POST", "auth.example.com", "/login", base.Add(time.Second))))
		require.NoError(t, s.Insert(ctx, Requested(3, "DELETE", "api.example.com", "/users/7", base.Add(2*time.Second))))
		tx4 := Requested(4, "GET", "cdn.test", "/logo.png", base.Add(3*time.Second))
		require.NoError(t, s.Insert(ctx, tx4))
		require.NoError(t, s.Update(ctx, Completed(tx4, 404)))

		all, err := s.Query(ctx, usecase.TransactionFilter{})
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 3, 2, 1}, ids(all))

		cases := map[string][]int64{
			"post":      {2},
			"API.EXAMP": {3, 1},
			"/users":    {3, 1},
			"404":       {4},
			"requested": {3, 2, 1},
			"complete":  {4},
			"nomatch":   {},
		}
		for q, want := range cases {
			got, err := s.Query(ctx, usecase.TransactionFilter{Text: q})
			require.NoError(t, err)
			assert.Equal(t, want, ids(got), "filter %q", q)
		}
	})

	t.Run("query folds unicode case", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, Requested(1, "GET", "bücher.test", "/Straße", base)))
		require.NoError(t, s.Insert(ctx, Requested(2, "GET", "ascii.test", "/street", base.Add(time.Second))))

		for _, q := range []string{"BÜCHER", "bÜcher.TEST", "straße", "STRAßE"} {
			got, err := s.Query(ctx, usecase.TransactionFilter{Text: q})
			require.NoError(t, err)
			assert.Equal(t, []int64{1}, ids(got), "filter %q", q)
		}
	})

	t.Run("query pages by cursor and offset", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := int64(1); i <= 7; i++ {
			require.NoError(t, s.Insert(ctx, Requested(i, "GET", "a.test", fmt.Sprintf("/%d", i), base.Add(time.Duration(i)*time.Second))))
		}
		page, err := s.Query(ctx, usecase.TransactionFilter{Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 6, 5}, ids(page))

		// a concurrent insert must not shift the next page
		require.NoError(t, s.Insert(ctx, Requested(8, "GET", "a.test", "/8", base.Add(8*time.Second))))
		page, err = s.Query(ctx, usecase.TransactionFilter{Limit: 3, BeforeID: 5})
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 3, 2}, ids(page))

		page, err = s.Query(ctx, usecase.TransactionFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 6}, ids(page))
	})

	t.Run("delete before is strict and idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		t0 := base
		require.NoError(t, s.Insert(ctx, Requested(1, "GET", "a.test", "/old", t0)))
		require.NoError(t, s.Insert(ctx, Requested(2, "GET", "a.test", "/new", t0.Add(2*time.Hour))))
		require.NoError(t, s.Insert(ctx, Requested(3, "GET", "a.test", "/edge", t0.Add(time.Hour))))

		now := t0.Add(2*time.Hour + time.Second)
		n, err := s.DeleteBefore(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = s.DeleteBefore(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		left, err := s.Query(ctx, usecase.TransactionFilter{})
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 2}, ids(left))

		// the record exactly at the threshold is not older than it
		n, err = s.DeleteBefore(ctx, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
	})

	t.Run("clear all reports count", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := int64(1); i <= 4; i++ {
			require.NoError(t, s.Insert(ctx, Requested(i, "GET", "a.test", "/", base)))
		}
		maxID, err := s.MaxID(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 4, maxID)

		n, err := s.ClearAll(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 4, n)
		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
		n, err = s.ClearAll(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
	})

	t.Run("state round trips", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, ok, err := s.LastCleanup(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = s.RetentionPeriod(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SetLastCleanup(ctx, base))
		require.NoError(t, s.SetRetentionPeriod(ctx, domain.RetentionOneDay))
		last, ok, err := s.LastCleanup(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, last.Equal(base))
		p, ok, err := s.RetentionPeriod(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, domain.RetentionOneDay, p)
	})

	t.Run("concurrent inserts of the same id succeed once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var ok atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Insert(ctx, Requested(42, "GET", "a.test", "/", base)); err == nil {
					ok.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, ok.Load())
	})

	t.Run("concurrent writers and readers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var next atomic.Int64
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					id := next.Add(1)
					tx := Requested(id, "GET", "a.test", "/", base.Add(time.Duration(id)*time.Millisecond))
					if err := s.Insert(ctx, tx); err != nil {
						t.Errorf("insert %d: %v", id, err)
						return
					}
					if err := s.Update(ctx, Completed(tx, 200)); err != nil {
						t.Errorf("update %d: %v", id, err)
						return
					}
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				page, err := s.Query(ctx, usecase.TransactionFilter{Limit: 10})
				if err != nil {
					t.Errorf("query: %v", err)
					return
				}
				seen := map[int64]bool{}
				for j, tx := range page {
					if seen[tx.ID] {
						t.Errorf("duplicate id %d in page", tx.ID)
					}
					seen[tx.ID] = true
					if j > 0 && page[j-1].ID <= tx.ID {
						t.Errorf("page not strictly descending: %v", ids(page))
					}
					if tx.Status == domain.StatusComplete && tx.Response == nil {
						t.Errorf("torn record %d", tx.ID)
					}
				}
			}
		}()
		wg.Wait()
		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 100, count)
	})
}
