package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azikar24/WormaCeptor-sub003/internal/adapters/storage/memory"
	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

func entry(id int64, st domain.Status) domain.ActivityEntry {
	return domain.ActivityEntry{ID: id, Status: st, Summary: "x", UpdatedAt: time.Now()}
}

func entryIDs(es []domain.ActivityEntry) []int64 {
	out := make([]int64, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestActivityBufferEvictsOldest(t *testing.T) {
	b := usecase.NewActivityBuffer(3)
	for id := int64(1); id <= 4; id++ {
		b.Add(entry(id, domain.StatusRequested))
	}
	assert.Equal(t, []int64{4, 3, 2}, entryIDs(b.Snapshot()))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 4, b.RequestedCount())
}

func TestActivityBufferReplacesInPlace(t *testing.T) {
	b := usecase.NewActivityBuffer(3)
	b.Add(entry(1, domain.StatusRequested))
	b.Add(entry(2, domain.StatusRequested))
	b.Add(entry(1, domain.StatusComplete))

	snap := b.Snapshot()
	assert.Equal(t, []int64{2, 1}, entryIDs(snap))
	assert.Equal(t, domain.StatusComplete, snap[1].Status)
	assert.Equal(t, 2, b.RequestedCount(), "completion does not count as a new request")

	b.Clear()
	assert.Empty(t, b.Snapshot())
	assert.Equal(t, 0, b.RequestedCount())
}

func TestActivityDefaultCapacity(t *testing.T) {
	assert.Equal(t, usecase.DefaultActivityCapacity, usecase.NewActivityBuffer(0).Capacity())
}

func TestRecentActivityKeepsTenMostRecent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(0)
	buf := usecase.NewActivityBuffer(10)
	svc := usecase.NewCaptureService(store, buf, nil, usecase.CaptureOptions{})
	q := usecase.NewQueryService(store, buf, nil, nil)

	for i := 0; i < 15; i++ {
		_, err := svc.Begin(ctx, getReq("http://a.test/p"))
		require.NoError(t, err)
	}
	got := entryIDs(q.RecentActivity())
	assert.Equal(t, []int64{15, 14, 13, 12, 11, 10, 9, 8, 7, 6}, got)
	for _, old := range []int64{1, 2, 3, 4, 5} {
		assert.NotContains(t, got, old)
	}
	assert.Equal(t, 15, q.RecentRequestedCount())

	require.NoError(t, svc.Complete(ctx, 15, usecase.ResponseMetadata{Code: 404}))
	first := q.RecentActivity()[0]
	assert.Equal(t, domain.ColorClientError, first.Color)
	assert.Equal(t, "404 GET /p", first.Summary)
}

func TestRebuildActivityFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(0)
	svc := usecase.NewCaptureService(store, nil, nil, usecase.CaptureOptions{})
	for i := 0; i < 4; i++ {
		_, err := svc.Begin(ctx, getReq("http://a.test/"))
		require.NoError(t, err)
	}

	buf := usecase.NewActivityBuffer(3)
	events := &sink{}
	q := usecase.NewQueryService(store, buf, events, nil)
	require.NoError(t, q.RebuildActivity(ctx))
	assert.Equal(t, []int64{4, 3, 2}, entryIDs(q.RecentActivity()))

	q.ClearActivity()
	assert.Empty(t, q.RecentActivity())
	n, _ := store.Count(ctx)
	assert.EqualValues(t, 4, n, "clearing activity leaves the store alone")
	require.Len(t, events.all(), 1)
	assert.Equal(t, domain.EventActivityCleared, events.all()[0].Type)
}
