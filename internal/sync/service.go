package sync

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/routewise/fieldsync/pkg/config"
	"github.com/routewise/fieldsync/pkg/enums"
	"github.com/routewise/fieldsync/pkg/event"
	"github.com/routewise/fieldsync/pkg/logger"
	"github.com/routewise/fieldsync/pkg/metrics"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 50
	defaultMaxBackoff   = 5 * time.Minute
	jitterWindow        = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type eventStore interface {
	ListPending(ctx context.Context, limit int) ([]event.Envelope, error)
	MarkSynced(ctx context.Context, eventID uuid.UUID) error
	IncrementRetry(ctx context.Context, eventID uuid.UUID) error
	DeadLetter(ctx context.Context, eventID uuid.UUID, reason enums.DLQReason, cause error) error
}

// ServiceParams configure the sync engine.
type ServiceParams struct {
	Logger   *logger.Logger
	Store    eventStore
	Pusher   Pusher
	Notifier *Notifier
	Metrics  *metrics.SyncMetrics
	Config   config.SyncConfig
}

// Service drains the durable store's unsynced queue to the remote
// authority. One drain is in flight at a time; triggers arriving during a
// drain coalesce into a single follow-up pass.
type Service struct {
	logg         *logger.Logger
	store        eventStore
	pusher       Pusher
	notifier     *Notifier
	metrics      *metrics.SyncMetrics
	pollInterval time.Duration
	batchSize    int
	maxBackoff   time.Duration
	draining     atomic.Bool
}

// NewService builds a sync engine.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Store == nil {
		return nil, errors.New("event store is required")
	}
	if params.Pusher == nil {
		return nil, errors.New("pusher is required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = NewNotifier()
	}

	pollInterval := params.Config.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	batchSize := params.Config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxBackoff := params.Config.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	return &Service{
		logg:         params.Logger,
		store:        params.Store,
		pusher:       params.Pusher,
		notifier:     notifier,
		metrics:      params.Metrics,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxBackoff:   maxBackoff,
	}, nil
}

// Notifier returns the trigger the capture service hands its callers.
func (s *Service) Notifier() *Notifier {
	return s.notifier
}

// Run executes the drain loop until the context is canceled. Drains fire on
// capture triggers and on a steady poll cadence; failures back off
// exponentially with jitter instead of spinning.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "sync engine context canceled")
			return ctx.Err()
		case <-s.notifier.C():
		case <-ticker.C:
		}

		if err := s.Drain(ctx); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "sync drain failed")
			backoff = nextBackoff(backoff, s.pollInterval, s.maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			s.notifier.Notify()
			continue
		}
		backoff = s.pollInterval
	}
}

// Drain pushes pending events in capture order, one batch per pass. On the
// first transient failure the pass stops so a later event never overtakes
// an earlier one; the failed event is retried on the next pass, indefinitely.
// Prolonged unreachability is a normal condition for a field device, so only
// a non-retryable rejection ever parks an event.
func (s *Service) Drain(ctx context.Context) error {
	if !s.draining.CompareAndSwap(false, true) {
		s.notifier.Notify()
		return nil
	}
	defer s.draining.Store(false)

	start := time.Now()

	pending, err := s.store.ListPending(ctx, s.batchSize)
	if err != nil {
		if pending == nil {
			return fmt.Errorf("listing pending events: %w", err)
		}
		// Per-record decrypt failures: the readable queue still drains.
		s.logg.Error(ctx, "undecodable records skipped during drain", err)
	}
	s.metrics.SetQueueDepth(len(pending))

	for i, env := range pending {
		evCtx := s.logg.WithEventID(ctx, env.EventID.String())
		evCtx = s.logg.WithTripID(evCtx, env.TripID)
		evCtx = s.logg.WithFields(evCtx, map[string]any{
			"event_type":  env.Type,
			"retry_count": env.RetryCount,
		})

		pushErr := s.pusher.Push(ctx, env.OperationalEvent)
		if pushErr == nil {
			if err := s.store.MarkSynced(ctx, env.EventID); err != nil {
				return fmt.Errorf("mark synced %s: %w", env.EventID, err)
			}
			s.metrics.IncSynced()
			s.logg.Info(evCtx, "event synced")
			continue
		}

		var nonRetry NonRetryableError
		if errors.As(pushErr, &nonRetry) {
			if err := s.deadLetter(evCtx, env, enums.DLQReasonNonRetryable, pushErr); err != nil {
				return err
			}
			continue
		}

		if err := s.store.IncrementRetry(ctx, env.EventID); err != nil {
			return fmt.Errorf("increment retry %s: %w", env.EventID, err)
		}
		s.metrics.IncFailed()

		s.logg.Warn(s.logg.WithField(evCtx, "error", pushErr.Error()), "event push failed, stopping drain")
		s.metrics.SetQueueDepth(len(pending) - i)
		return fmt.Errorf("pushing event %s: %w", env.EventID, pushErr)
	}

	s.metrics.SetQueueDepth(0)
	s.metrics.ObserveDrainDuration(time.Since(start))

	// A full batch may leave more behind; schedule the next pass.
	if len(pending) == s.batchSize {
		s.notifier.Notify()
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, env event.Envelope, reason enums.DLQReason, cause error) error {
	if err := s.store.DeadLetter(ctx, env.EventID, reason, cause); err != nil {
		return fmt.Errorf("dead-letter %s: %w", env.EventID, err)
	}
	s.metrics.IncDeadLettered()
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"reason": reason,
		"error":  cause.Error(),
	}), "event will not be retried")
	return nil
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
