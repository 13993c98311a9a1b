package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

var (
	ErrCaptureWriteFailed   = errors.New("capture write failed")
	ErrNotFound             = errors.New("transaction not found")
	ErrDuplicateID          = errors.New("duplicate transaction id")
	ErrTerminal             = errors.New("transaction already terminal")
	ErrRetentionPurgeFailed = errors.New("retention purge failed")
	ErrInvalidCursor        = errors.New("invalid cursor")
)

// TransactionRepository is the durable store of captured transactions.
// Implementations must make Insert and Update atomic per record.
type TransactionRepository interface {
	Insert(ctx context.Context, tx domain.Transaction) error
	Update(ctx context.Context, tx domain.Transaction) error
	Get(ctx context.Context, id int64) (domain.Transaction, error)
	// Query returns matching records ordered by id descending.
	Query(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error)
	// DeleteBefore removes records requested strictly before t.
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	MaxID(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// StateRepository keeps the small amount of persisted state outside the
// transaction table.
type StateRepository interface {
	LastCleanup(ctx context.Context) (time.Time, bool, error)
	SetLastCleanup(ctx context.Context, t time.Time) error
	RetentionPeriod(ctx context.Context) (domain.RetentionPeriod, bool, error)
	SetRetentionPeriod(ctx context.Context, p domain.RetentionPeriod) error
}

// EventSink receives change notifications for live consumers.
type EventSink interface {
	Publish(ev domain.ChangeEvent)
}

type TransactionFilter struct {
	Text     string
	Limit    int
	Offset   int
	BeforeID int64 // keyset cursor: only ids < BeforeID when > 0
}

// Matches applies the text filter: case-insensitive substring over method,
// path, host, response code and status.
func (f TransactionFilter) Matches(tx domain.Transaction) bool {
	if f.BeforeID > 0 && tx.ID >= f.BeforeID {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Text))
	if q == "" {
		return true
	}
	fields := []string{tx.Method, tx.Path, tx.Host, string(tx.Status)}
	if code := tx.ResponseCode(); code > 0 {
		fields = append(fields, strconv.Itoa(code))
	}
	for _, v := range fields {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// Recorder receives engine metrics. observability.Metrics implements it.
type Recorder interface {
	Captured(status domain.Status)
	WriteFailed(op string)
	QueueDepth(n int)
	ActivitySize(n int)
	Purged(result string, deleted int64)
}

type nopRecorder struct{}

func (nopRecorder) Captured(domain.Status) {}
func (nopRecorder) WriteFailed(string)     {}
func (nopRecorder) QueueDepth(int)         {}
func (nopRecorder) ActivitySize(int)       {}
func (nopRecorder) Purged(string, int64)   {}

type nopSink struct{}

func (nopSink) Publish(domain.ChangeEvent) {}
