package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azikar24/WormaCeptor-sub003/internal/adapters/storage/memory"
	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

func TestCursor(t *testing.T) {
	assert.Equal(t, "", usecase.BuildCursor(0))
	assert.Equal(t, ":17", usecase.BuildCursor(17))

	id, err := usecase.ParseCursor(":17")
	require.NoError(t, err)
	assert.EqualValues(t, 17, id)
	id, err = usecase.ParseCursor("")
	require.NoError(t, err)
	assert.EqualValues(t, 0, id)

	for _, bad := range []string{"17", ":", ":-3", ":abc", ":0"} {
		_, err := usecase.ParseCursor(bad)
		assert.ErrorIs(t, err, usecase.ErrInvalidCursor, bad)
	}
}

func TestPagingUnderConcurrentBegins(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(0)
	svc := usecase.NewCaptureService(store, nil, nil, usecase.CaptureOptions{})
	q := usecase.NewQueryService(store, nil, nil, nil)
	for i := 0; i < 30; i++ {
		_, err := svc.Begin(ctx, getReq("http://a.test/"))
		require.NoError(t, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if _, err := svc.Begin(ctx, getReq("http://b.test/")); err != nil {
					t.Errorf("begin: %v", err)
					return
				}
			}
		}
	}()

	first, err := q.Page(ctx, "a.test", 7, "")
	require.NoError(t, err)
	seen := map[int64]bool{}
	prev := int64(1 << 62)
	cursor := ""
	pages := 0
	for {
		p, err := q.Page(ctx, "a.test", 7, cursor)
		require.NoError(t, err)
		for _, tx := range p.Items {
			assert.False(t, seen[tx.ID], "duplicate %d", tx.ID)
			assert.Less(t, tx.ID, prev)
			seen[tx.ID] = true
			prev = tx.ID
		}
		pages++
		if p.NextCursor == "" {
			break
		}
		cursor = p.NextCursor
	}
	close(stop)
	wg.Wait()

	assert.Len(t, seen, 30)
	assert.Equal(t, 5, pages)
	assert.EqualValues(t, 30, first.Items[0].ID)
}

func TestPageSizeBounds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(0)
	svc := usecase.NewCaptureService(store, nil, nil, usecase.CaptureOptions{})
	q := usecase.NewQueryService(store, nil, nil, nil)
	for i := 0; i < usecase.DefaultPageSize+1; i++ {
		_, err := svc.Begin(ctx, getReq("http://a.test/"))
		require.NoError(t, err)
	}
	p, err := q.Page(ctx, "", 0, "")
	require.NoError(t, err)
	assert.Len(t, p.Items, usecase.DefaultPageSize)
	assert.Equal(t, usecase.BuildCursor(2), p.NextCursor)

	_, err = q.Page(ctx, "", 10, "bogus")
	assert.ErrorIs(t, err, usecase.ErrInvalidCursor)

	empty, err := q.Page(ctx, "nothing-matches", 10, "")
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

func TestAllWalksEveryPage(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(0)
	svc := usecase.NewCaptureService(store, nil, nil, usecase.CaptureOptions{})
	q := usecase.NewQueryService(store, nil, nil, nil)
	for i := 0; i < usecase.MaxPageSize+3; i++ {
		_, err := svc.Begin(ctx, getReq("http://a.test/"))
		require.NoError(t, err)
	}
	n := 0
	require.NoError(t, q.All(ctx, "", func(domain.Transaction) error { n++; return nil }))
	assert.Equal(t, usecase.MaxPageSize+3, n)
}

func TestClearAllAndDeleteBefore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(0)
	buf := usecase.NewActivityBuffer(5)
	events := &sink{}
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := &clock{t: old}
	svc := usecase.NewCaptureService(store, buf, nil, usecase.CaptureOptions{Now: clk.Now})
	q := usecase.NewQueryService(store, buf, events, nil)

	_, err := svc.Begin(ctx, getReq("http://a.test/old"))
	require.NoError(t, err)
	clk.Set(old.Add(48 * time.Hour))
	_, err = svc.Begin(ctx, getReq("http://a.test/new"))
	require.NoError(t, err)

	n, err := q.DeleteBefore(ctx, old.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = q.DeleteBefore(ctx, old.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = q.ClearAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Empty(t, q.RecentActivity())

	got := events.all()
	require.Len(t, got, 2)
	assert.Equal(t, domain.EventTransactionsDeleted, got[0].Type)
	assert.Equal(t, domain.EventTransactionsCleared, got[1].Type)
}
