package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

type SchedulerState string

const (
	SchedulerIdle       SchedulerState = "idle"
	SchedulerEvaluating SchedulerState = "evaluating"
	SchedulerPurging    SchedulerState = "purging"
)

const DefaultCheckInterval = 5 * time.Minute

type RetentionOptions struct {
	DefaultPeriod domain.RetentionPeriod
	Cooldowns     domain.Cooldowns
	Recorder      Recorder
	Sink          EventSink
	Now           func() time.Time
}

// PurgeResult describes one evaluation of the retention policy.
type PurgeResult struct {
	Period    domain.RetentionPeriod `json:"period"`
	Purged    bool                   `json:"purged"`
	Deleted   int64                  `json:"deleted"`
	Threshold time.Time              `json:"threshold,omitempty"`
	NextDue   time.Time              `json:"nextDue,omitempty"`
	Skipped   string                 `json:"skipped,omitempty"`
}

// RetentionScheduler deletes transactions older than the configured horizon,
// at most once per cooldown. lastCleanupAt is written only after a
// successful purge.
type RetentionScheduler struct {
	repo   TransactionRepository
	state  StateRepository
	logger *zerolog.Logger
	opts   RetentionOptions

	run sync.Mutex

	mu      sync.RWMutex
	current SchedulerState
}

func NewRetentionScheduler(repo TransactionRepository, state StateRepository, logger *zerolog.Logger, opts RetentionOptions) *RetentionScheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.DefaultPeriod == "" {
		opts.DefaultPeriod = domain.RetentionOneWeek
	}
	if opts.Cooldowns == (domain.Cooldowns{}) {
		opts.Cooldowns = domain.DefaultCooldowns()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RetentionScheduler{repo: repo, state: state, logger: logger, opts: opts, current: SchedulerIdle}
}

func (s *RetentionScheduler) State() SchedulerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *RetentionScheduler) setState(st SchedulerState) {
	s.mu.Lock()
	s.current = st
	s.mu.Unlock()
}

// Period returns the persisted retention period, or the configured default.
func (s *RetentionScheduler) Period(ctx context.Context) domain.RetentionPeriod {
	p, ok, err := s.state.RetentionPeriod(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read retention period failed, using default")
		return s.opts.DefaultPeriod
	}
	if !ok {
		return s.opts.DefaultPeriod
	}
	return p
}

func (s *RetentionScheduler) SetPeriod(ctx context.Context, p domain.RetentionPeriod) error {
	if err := s.state.SetRetentionPeriod(ctx, p); err != nil {
		return fmt.Errorf("persist retention period: %w", err)
	}
	s.logger.Info().Str("period", string(p)).Msg("retention period updated")
	return nil
}

func (s *RetentionScheduler) LastCleanup(ctx context.Context) (time.Time, bool, error) {
	return s.state.LastCleanup(ctx)
}

// Maintain evaluates the policy once. Redundant calls inside the cooldown are
// no-ops.
func (s *RetentionScheduler) Maintain(ctx context.Context) (PurgeResult, error) {
	return s.maintain(ctx, false)
}

// Force purges regardless of the cooldown. RetentionNever still disables it.
func (s *RetentionScheduler) Force(ctx context.Context) (PurgeResult, error) {
	return s.maintain(ctx, true)
}

func (s *RetentionScheduler) maintain(ctx context.Context, force bool) (PurgeResult, error) {
	s.run.Lock()
	defer s.run.Unlock()
	s.setState(SchedulerEvaluating)
	defer s.setState(SchedulerIdle)

	period := s.Period(ctx)
	res := PurgeResult{Period: period}
	if period == domain.RetentionNever {
		res.Skipped = "disabled"
		return res, nil
	}

	now := s.opts.Now()
	cooldown := s.opts.Cooldowns.For(period)
	last, ok, err := s.state.LastCleanup(ctx)
	if err != nil {
		s.opts.Recorder.Purged("error", 0)
		return res, fmt.Errorf("%w: read last cleanup: %w", ErrRetentionPurgeFailed, err)
	}
	if ok && !force && now.Sub(last) < cooldown {
		res.Skipped = "cooldown"
		res.NextDue = last.Add(cooldown)
		s.opts.Recorder.Purged("skipped", 0)
		return res, nil
	}

	s.setState(SchedulerPurging)
	res.Threshold = now.Add(-period.Horizon())
	n, err := s.repo.DeleteBefore(ctx, res.Threshold)
	if err != nil {
		s.opts.Recorder.Purged("error", 0)
		s.logger.Error().Err(err).Str("period", string(period)).Msg("retention purge failed")
		return res, fmt.Errorf("%w: %w", ErrRetentionPurgeFailed, err)
	}
	res.Purged = true
	res.Deleted = n
	res.NextDue = now.Add(cooldown)
	s.opts.Recorder.Purged("ok", n)
	if n > 0 {
		s.opts.Sink.Publish(domain.ChangeEvent{Type: domain.EventTransactionsDeleted, Count: n})
	}
	s.logger.Info().Int64("deleted", n).Str("period", string(period)).Time("threshold", res.Threshold).Msg("retention purge done")

	if err := s.state.SetLastCleanup(ctx, now); err != nil {
		// the next tick purges again, which is harmless
		return res, fmt.Errorf("persist last cleanup: %w", err)
	}
	return res, nil
}

// Run evaluates once immediately and then on every tick until ctx is done.
func (s *RetentionScheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	s.tick(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *RetentionScheduler) tick(ctx context.Context) {
	if _, err := s.Maintain(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("retention evaluation failed, retrying next tick")
	}
}
