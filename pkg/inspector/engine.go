// Package inspector wires the capture engine together: store, capture
// service, activity buffer, retention scheduler and the HTTP surface.
//
//	eng, err := inspector.New(ctx, inspector.DefaultConfig(), nil, nil)
//	...
//	eng.Start(ctx)
//	defer eng.Close()
//	client := eng.Client() // every request made with it is captured
package inspector

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azikar24/WormaCeptor-sub003/internal/adapters/capture"
	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
	"github.com/azikar24/WormaCeptor-sub003/internal/infrastructure/config"
	"github.com/azikar24/WormaCeptor-sub003/internal/infrastructure/httpapi"
	obs "github.com/azikar24/WormaCeptor-sub003/internal/infrastructure/observability"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
	"github.com/azikar24/WormaCeptor-sub003/pkg/shared/redact"
)

type (
	Config           = config.Config
	Transaction      = domain.Transaction
	ActivityEntry    = domain.ActivityEntry
	RetentionPeriod  = domain.RetentionPeriod
	RequestMetadata  = usecase.RequestMetadata
	ResponseMetadata = usecase.ResponseMetadata
	Page             = usecase.Page
	PurgeResult      = usecase.PurgeResult
)

func DefaultConfig() Config { return config.Default() }

type Engine struct {
	SessionID string

	cfg       config.Config
	logger    *zerolog.Logger
	metrics   *obs.Metrics
	store     Store
	buffer    *usecase.ActivityBuffer
	monitor   *httpapi.MonitorHub
	capture   *usecase.CaptureService
	query     *usecase.QueryService
	retention *usecase.RetentionScheduler
	redactor  *redact.Redactor
	transport http.RoundTripper

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New opens the configured store and builds every component. Ids continue
// after the largest stored id and the activity buffer is refilled from the
// newest records.
func New(ctx context.Context, cfg Config, logger *zerolog.Logger, metrics *obs.Metrics) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if metrics == nil {
		metrics = obs.NewMetrics()
	}
	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	lastID, err := store.MaxID(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("seed ids: %w", err)
	}

	e := &Engine{
		SessionID: uuid.NewString(),
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		store:     store,
		buffer:    usecase.NewActivityBuffer(cfg.Buffer.Capacity),
		monitor:   httpapi.NewMonitorHub(logger),
		redactor:  redact.New(cfg.Capture.RedactHeaders, cfg.Capture.RedactBodyKeys),
	}
	l := logger.With().Str("session", e.SessionID).Logger()
	e.capture = usecase.NewCaptureService(store, e.buffer, &l, usecase.CaptureOptions{
		SessionID: e.SessionID,
		LastID:    lastID,
		Async:     cfg.Capture.AsyncWrites,
		QueueSize: cfg.Capture.QueueSize,
		Recorder:  metrics,
		Sink:      e.monitor,
	})
	e.query = usecase.NewQueryService(store, e.buffer, e.monitor, &l)
	e.retention = usecase.NewRetentionScheduler(store, store, &l, usecase.RetentionOptions{
		DefaultPeriod: cfg.RetentionPeriod(),
		Cooldowns:     cfg.Cooldowns(),
		Recorder:      metrics,
		Sink:          e.monitor,
	})
	e.transport = e.Transport(httpapi.NewUpstreamTransport(cfg))

	if err := e.query.RebuildActivity(ctx); err != nil {
		logger.Warn().Err(err).Msg("activity rebuild failed, starting empty")
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Int64("last_id", lastID).Str("session", e.SessionID).Msg("engine ready")
	return e, nil
}

// Start launches the retention scheduler. It is a no-op on a started or
// closed engine.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil || e.closed {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = e.retention.Run(ctx, e.cfg.Retention.CheckInterval)
	}(e.done)
}

// Close stops the scheduler, drains pending capture writes and closes the store.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	e.capture.Close()
	e.monitor.Close()
	return e.store.Close()
}

// Transport wraps base (http.DefaultTransport when nil) with capture.
func (e *Engine) Transport(base http.RoundTripper) http.RoundTripper {
	return capture.NewTransport(base, e.capture, capture.Options{
		MaxContentLength: e.cfg.Capture.MaxContentLength,
		Decompress:       e.cfg.Capture.Decompress,
		Redactor:         e.redactor,
		Logger:           e.logger,
	})
}

// Client returns an http.Client whose requests are captured.
func (e *Engine) Client() *http.Client {
	return &http.Client{Transport: e.transport, Timeout: 60 * time.Second}
}

// Handler serves the inspection API, the live feed and /proxy.
func (e *Engine) Handler() http.Handler {
	return httpapi.NewRouter(&httpapi.Deps{
		Cfg:       e.cfg,
		Logger:    e.logger,
		Metrics:   e.metrics,
		Query:     e.query,
		Retention: e.retention,
		Monitor:   e.monitor,
		Transport: e.transport,
		Ready:     e.Ping,
	})
}

// Ping checks that the store answers.
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.store.Count(ctx)
	return err
}

func (e *Engine) Begin(ctx context.Context, req RequestMetadata) (int64, error) {
	return e.capture.Begin(ctx, req)
}

func (e *Engine) Complete(ctx context.Context, id int64, resp ResponseMetadata) error {
	return e.capture.Complete(ctx, id, resp)
}

func (e *Engine) Fail(ctx context.Context, id int64, message string, elapsed time.Duration) error {
	return e.capture.Fail(ctx, id, message, elapsed)
}

// Flush waits for queued capture writes to reach the store.
func (e *Engine) Flush(ctx context.Context) error { return e.capture.Flush(ctx) }

func (e *Engine) Page(ctx context.Context, text string, size int, cursor string) (Page, error) {
	return e.query.Page(ctx, text, size, cursor)
}

func (e *Engine) Get(ctx context.Context, id int64) (Transaction, error) {
	return e.query.Get(ctx, id)
}

func (e *Engine) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	return e.query.DeleteBefore(ctx, t)
}

func (e *Engine) ClearAll(ctx context.Context) (int64, error) { return e.query.ClearAll(ctx) }

func (e *Engine) RecentActivity() []ActivityEntry { return e.query.RecentActivity() }

func (e *Engine) RecentRequestedCount() int { return e.query.RecentRequestedCount() }

func (e *Engine) Maintain(ctx context.Context) (PurgeResult, error) { return e.retention.Maintain(ctx) }

// ForcePurge runs retention ignoring the cooldown.
func (e *Engine) ForcePurge(ctx context.Context) (PurgeResult, error) { return e.retention.Force(ctx) }

func (e *Engine) SetRetention(ctx context.Context, p RetentionPeriod) error {
	return e.retention.SetPeriod(ctx, p)
}

func (e *Engine) Retention(ctx context.Context) RetentionPeriod { return e.retention.Period(ctx) }
