package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

const DefaultQueueSize = 1024

// RequestMetadata describes an outbound request at the moment it starts.
// RequestedAt is stamped by Begin, never taken from the caller.
type RequestMetadata struct {
	Method  string
	URL     string
	Headers domain.Headers
	Body    domain.Body
}

// ResponseMetadata describes a received response. Duration is derived from
// ReceivedAt when zero.
type ResponseMetadata struct {
	Code       int
	Message    string
	Headers    domain.Headers
	Body       domain.Body
	ReceivedAt time.Time
	Protocol   string
	TLS        bool
	Timings    domain.Timings
	Duration   time.Duration
}

type CaptureOptions struct {
	SessionID string
	// LastID seeds the id allocator, normally the store's current max id.
	LastID int64
	// Async moves store writes onto a single background writer.
	Async     bool
	QueueSize int
	Recorder  Recorder
	Sink      EventSink
	Now       func() time.Time
}

type opKind string

const (
	opInsert  opKind = "insert"
	opUpdate  opKind = "update"
	opBarrier opKind = "barrier"
)

type writeOp struct {
	kind opKind
	tx   domain.Transaction
	done chan struct{}
}

// CaptureService creates and transitions transaction records. It never lets
// a storage failure escape to the instrumented request path: callers get an
// error they are expected to log and ignore.
type CaptureService struct {
	repo      TransactionRepository
	buffer    *ActivityBuffer
	logger    *zerolog.Logger
	rec       Recorder
	sink      EventSink
	now       func() time.Time
	sessionID string

	// bmu makes id allocation and the RequestedAt stamp one step, so id
	// order is request-time order.
	bmu    sync.Mutex
	nextID atomic.Int64
	lastAt time.Time

	mu       sync.Mutex
	inflight map[int64]domain.Transaction

	qmu    sync.RWMutex
	queue  chan writeOp
	closed bool
	done   chan struct{}
}

func NewCaptureService(repo TransactionRepository, buffer *ActivityBuffer, logger *zerolog.Logger, opts CaptureOptions) *CaptureService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &CaptureService{
		repo:      repo,
		buffer:    buffer,
		logger:    logger,
		rec:       opts.Recorder,
		sink:      opts.Sink,
		now:       opts.Now,
		sessionID: opts.SessionID,
		inflight:  make(map[int64]domain.Transaction),
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.sink == nil {
		s.sink = nopSink{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.nextID.Store(opts.LastID)
	if opts.Async {
		size := opts.QueueSize
		if size <= 0 {
			size = DefaultQueueSize
		}
		s.queue = make(chan writeOp, size)
		s.done = make(chan struct{})
		go s.writeLoop()
	}
	return s
}

// Begin records a new transaction in the requested state and returns its id.
// On a synchronous write failure the record is dropped and
// ErrCaptureWriteFailed is returned.
func (s *CaptureService) Begin(ctx context.Context, req RequestMetadata) (int64, error) {
	id, at := s.allocate()
	tx := domain.Transaction{
		ID:             id,
		SessionID:      s.sessionID,
		Status:         domain.StatusRequested,
		Method:         req.Method,
		URL:            req.URL,
		RequestHeaders: req.Headers,
		RequestBody:    req.Body,
		RequestedAt:    at,
	}
	if u, err := url.Parse(req.URL); err == nil {
		tx.Scheme = u.Scheme
		tx.Host = u.Host
		tx.Path = u.EscapedPath()
		if u.RawQuery != "" {
			tx.Path += "?" + u.RawQuery
		}
	}

	s.mu.Lock()
	s.inflight[tx.ID] = tx
	s.mu.Unlock()

	if err := s.write(ctx, writeOp{kind: opInsert, tx: tx}); err != nil {
		s.take(tx.ID)
		return 0, err
	}
	return tx.ID, nil
}

// allocate returns the next id with its request time. The time never goes
// backwards across ids even if the wall clock does.
func (s *CaptureService) allocate() (int64, time.Time) {
	s.bmu.Lock()
	defer s.bmu.Unlock()
	at := s.now().UTC()
	if at.Before(s.lastAt) {
		at = s.lastAt
	}
	s.lastAt = at
	return s.nextID.Add(1), at
}

// SetRequestBody replaces the request body of an in-flight transaction. The
// interceptor calls it once the transport has consumed the body; the value
// is persisted by the following Complete or Fail.
func (s *CaptureService) SetRequestBody(id int64, body domain.Body) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.inflight[id]
	if ok {
		tx.RequestBody = body
		s.inflight[id] = tx
	}
	return ok
}

// Complete moves id to the complete state. Only the first of Complete/Fail
// for an id has any effect; later calls return ErrNotFound.
func (s *CaptureService) Complete(ctx context.Context, id int64, resp ResponseMetadata) error {
	tx, ok := s.take(id)
	if !ok {
		return fmt.Errorf("complete %d: %w", id, ErrNotFound)
	}
	at := resp.ReceivedAt
	if at.IsZero() {
		at = s.now()
	}
	tx.Status = domain.StatusComplete
	tx.Response = &domain.Response{
		Code:       resp.Code,
		Message:    resp.Message,
		Headers:    resp.Headers,
		Body:       resp.Body,
		ReceivedAt: at.UTC(),
		Protocol:   resp.Protocol,
		TLS:        resp.TLS,
		Timings:    resp.Timings,
	}
	tx.Duration = resp.Duration
	if tx.Duration <= 0 {
		tx.Duration = at.Sub(tx.RequestedAt)
	}
	if tx.Response.Timings.Total == 0 {
		tx.Response.Timings.Total = tx.Duration.Milliseconds()
	}
	return s.write(ctx, writeOp{kind: opUpdate, tx: tx})
}

// Fail moves id to the failed state with message.
func (s *CaptureService) Fail(ctx context.Context, id int64, message string, elapsed time.Duration) error {
	tx, ok := s.take(id)
	if !ok {
		return fmt.Errorf("fail %d: %w", id, ErrNotFound)
	}
	tx.Status = domain.StatusFailed
	tx.Error = message
	tx.Duration = elapsed
	if tx.Duration <= 0 {
		tx.Duration = s.now().Sub(tx.RequestedAt)
	}
	return s.write(ctx, writeOp{kind: opUpdate, tx: tx})
}

// InFlight returns the number of transactions awaiting a response.
func (s *CaptureService) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *CaptureService) take(id int64) (domain.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.inflight[id]
	if ok {
		delete(s.inflight, id)
	}
	return tx, ok
}

func (s *CaptureService) write(ctx context.Context, op writeOp) error {
	if s.queue == nil {
		return s.apply(ctx, op)
	}
	s.qmu.RLock()
	defer s.qmu.RUnlock()
	if s.closed {
		s.rec.WriteFailed(string(op.kind))
		return fmt.Errorf("%w: capture closed", ErrCaptureWriteFailed)
	}
	select {
	case s.queue <- op:
		s.rec.QueueDepth(len(s.queue))
		return nil
	default:
		s.rec.WriteFailed(string(op.kind))
		s.logger.Warn().Int64("id", op.tx.ID).Str("op", string(op.kind)).Msg("capture queue full, write dropped")
		return fmt.Errorf("%w: queue full", ErrCaptureWriteFailed)
	}
}

func (s *CaptureService) apply(ctx context.Context, op writeOp) error {
	var err error
	switch op.kind {
	case opInsert:
		err = s.repo.Insert(ctx, op.tx)
	case opUpdate:
		err = s.repo.Update(ctx, op.tx)
	}
	if err != nil {
		s.rec.WriteFailed(string(op.kind))
		switch {
		case errors.Is(err, ErrDuplicateID):
			s.logger.Error().Err(err).Int64("id", op.tx.ID).Bool("defect", true).Msg("id allocator produced a duplicate")
		case errors.Is(err, ErrNotFound):
			s.logger.Warn().Err(err).Int64("id", op.tx.ID).Str("op", string(op.kind)).Msg("capture update dropped")
			return fmt.Errorf("%s %d: %w", op.kind, op.tx.ID, err)
		default:
			s.logger.Error().Err(err).Int64("id", op.tx.ID).Str("op", string(op.kind)).Msg("capture write failed")
		}
		return fmt.Errorf("%w: %s %d: %w", ErrCaptureWriteFailed, op.kind, op.tx.ID, err)
	}

	s.rec.Captured(op.tx.Status)
	if s.buffer != nil {
		s.buffer.Add(domain.NewActivityEntry(op.tx))
		s.rec.ActivitySize(s.buffer.Len())
	}
	ev := domain.ChangeEvent{Type: domain.EventTransactionAdded, ID: op.tx.ID}
	if op.kind == opUpdate {
		ev.Type = domain.EventTransactionUpdated
	}
	s.sink.Publish(ev)
	return nil
}

func (s *CaptureService) writeLoop() {
	defer close(s.done)
	for op := range s.queue {
		if op.kind == opBarrier {
			close(op.done)
			continue
		}
		_ = s.apply(context.Background(), op)
		s.rec.QueueDepth(len(s.queue))
	}
}

// Flush blocks until every write queued before the call has been applied.
func (s *CaptureService) Flush(ctx context.Context) error {
	if s.queue == nil {
		return nil
	}
	op := writeOp{kind: opBarrier, done: make(chan struct{})}
	s.qmu.RLock()
	if s.closed {
		s.qmu.RUnlock()
		return nil
	}
	select {
	case s.queue <- op:
		s.qmu.RUnlock()
	case <-ctx.Done():
		s.qmu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-op.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued writes and stops the background writer.
func (s *CaptureService) Close() {
	if s.queue == nil {
		return
	}
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.qmu.Unlock()
	<-s.done
}
