package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type Page struct {
	Items      []domain.Transaction `json:"items"`
	NextCursor string               `json:"nextCursor"`
}

// QueryService is the read and user-driven mutation surface over the store.
type QueryService struct {
	repo   TransactionRepository
	buffer *ActivityBuffer
	sink   EventSink
	logger *zerolog.Logger
}

func NewQueryService(repo TransactionRepository, buffer *ActivityBuffer, sink EventSink, logger *zerolog.Logger) *QueryService {
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &QueryService{repo: repo, buffer: buffer, sink: sink, logger: logger}
}

// Page returns up to pageSize records newest first. The cursor is keyed on the
// immutable id, so inserts between calls never shift later pages.
func (q *QueryService) Page(ctx context.Context, text string, pageSize int, cursor string) (Page, error) {
	before, err := ParseCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	items, err := q.repo.Query(ctx, TransactionFilter{Text: text, Limit: pageSize + 1, BeforeID: before})
	if err != nil {
		return Page{}, fmt.Errorf("query transactions: %w", err)
	}
	p := Page{Items: items}
	if len(items) > pageSize {
		p.Items = items[:pageSize]
		p.NextCursor = BuildCursor(p.Items[pageSize-1].ID)
	}
	if p.Items == nil {
		p.Items = []domain.Transaction{}
	}
	return p, nil
}

func (q *QueryService) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	return q.repo.Get(ctx, id)
}

// All walks every page matching text, newest first.
func (q *QueryService) All(ctx context.Context, text string, fn func(domain.Transaction) error) error {
	cursor := ""
	for {
		p, err := q.Page(ctx, text, MaxPageSize, cursor)
		if err != nil {
			return err
		}
		for _, tx := range p.Items {
			if err := fn(tx); err != nil {
				return err
			}
		}
		if p.NextCursor == "" {
			return nil
		}
		cursor = p.NextCursor
	}
}

func (q *QueryService) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	n, err := q.repo.DeleteBefore(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("delete before %s: %w", t.Format(time.RFC3339), err)
	}
	if n > 0 {
		q.sink.Publish(domain.ChangeEvent{Type: domain.EventTransactionsDeleted, Count: n})
	}
	return n, nil
}

// ClearAll deletes every record and empties the activity buffer.
func (q *QueryService) ClearAll(ctx context.Context) (int64, error) {
	n, err := q.repo.ClearAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear transactions: %w", err)
	}
	if q.buffer != nil {
		q.buffer.Clear()
	}
	q.logger.Info().Int64("deleted", n).Msg("transactions cleared")
	q.sink.Publish(domain.ChangeEvent{Type: domain.EventTransactionsCleared, Count: n})
	return n, nil
}

// RecentActivity returns the buffered activity, most recent first.
func (q *QueryService) RecentActivity() []domain.ActivityEntry {
	if q.buffer == nil {
		return nil
	}
	return q.buffer.Snapshot()
}

func (q *QueryService) RecentRequestedCount() int {
	if q.buffer == nil {
		return 0
	}
	return q.buffer.RequestedCount()
}

func (q *QueryService) ClearActivity() {
	if q.buffer == nil {
		return
	}
	q.buffer.Clear()
	q.sink.Publish(domain.ChangeEvent{Type: domain.EventActivityCleared})
}

// RebuildActivity refills the activity buffer from the newest stored records.
func (q *QueryService) RebuildActivity(ctx context.Context) error {
	if q.buffer == nil {
		return nil
	}
	items, err := q.repo.Query(ctx, TransactionFilter{Limit: q.buffer.Capacity()})
	if err != nil {
		return fmt.Errorf("rebuild activity: %w", err)
	}
	q.buffer.Rebuild(items)
	return nil
}
