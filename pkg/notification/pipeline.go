package notification

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/Sternrassler/catalog-client/pkg/resource"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is the delay between cycles when none is configured.
const DefaultPollInterval = 60 * time.Second

// ErrAlreadyRunning is returned by Start while another Start is active on
// the same pipeline.
var ErrAlreadyRunning = errors.New("pipeline already running")

// Feed consumes pending change notifications. *client.Client implements it.
type Feed interface {
	Consume(ctx context.Context, limit int) (*client.Batch, error)
}

// State is the position of a pipeline in its cycle.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateReconciling
	StateDistributing
	StateSleeping
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateReconciling:
		return "reconciling"
	case StateDistributing:
		return "distributing"
	case StateSleeping:
		return "sleeping"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds the pipeline configuration.
type Config struct {
	// Feed supplies change notifications. Required.
	Feed Feed

	// Fetcher retrieves pinned representations. It may be nil while no
	// override applies to the consumed notifications.
	Fetcher Fetcher

	// Overrides pins resources to versions (nil = no reconciliation).
	Overrides *VersionOverrides

	// PollInterval is the delay between cycles (default: 60s).
	PollInterval time.Duration
}

// Pipeline polls, reconciles and distributes change notifications to its
// subscribers. T is resource.ChangeNotification for one-at-a-time delivery
// or []resource.ChangeNotification for whole-batch delivery.
type Pipeline[T any] struct {
	Subscription[T]

	feed       Feed
	reconciler *Reconciler
	interval   time.Duration
	split      func([]resource.ChangeNotification) []T

	running   atomic.Bool
	cancelled atomic.Bool
	state     atomic.Int32

	logger zerolog.Logger
}

// NewPipeline creates a pipeline that hands subscribers one notification
// at a time, in feed order.
func NewPipeline(cfg Config) (*Pipeline[resource.ChangeNotification], error) {
	return newPipeline(cfg, func(batch []resource.ChangeNotification) []resource.ChangeNotification {
		return batch
	})
}

// NewBatchPipeline creates a pipeline that hands subscribers each polled
// batch as one ordered slice. Empty polls deliver nothing.
func NewBatchPipeline(cfg Config) (*Pipeline[[]resource.ChangeNotification], error) {
	return newPipeline(cfg, func(batch []resource.ChangeNotification) [][]resource.ChangeNotification {
		if len(batch) == 0 {
			return nil
		}
		return [][]resource.ChangeNotification{batch}
	})
}

func newPipeline[T any](cfg Config, split func([]resource.ChangeNotification) []T) (*Pipeline[T], error) {
	if cfg.Feed == nil {
		return nil, fmt.Errorf("%w: notification feed is required", ErrInvalidConfig)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Pipeline[T]{
		feed:       cfg.Feed,
		reconciler: NewReconciler(cfg.Fetcher, cfg.Overrides),
		interval:   cfg.PollInterval,
		split:      split,
		logger:     logging.NewLogger(logging.ComponentPipeline),
	}, nil
}

// State returns the current state.
func (p *Pipeline[T]) State() State {
	return State(p.state.Load())
}

func (p *Pipeline[T]) setState(s State) {
	p.state.Store(int32(s))
}

// Cancel asks the running loop to finish after its current distribution
// pass. An in-flight poll or sleep is not interrupted; cancel ctx for that.
func (p *Pipeline[T]) Cancel() {
	p.cancelled.Store(true)
}

// Start runs the loop until Cancel is observed, a poll or reconciliation
// fails, or ctx ends. limit is passed to the feed unchecked. On return
// every subscriber has been completed and detached.
func (p *Pipeline[T]) Start(ctx context.Context, limit int) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	logger := p.logger.With().Str("run_id", uuid.NewString()).Logger()
	logger.Info().
		Int("limit", limit).
		Dur("poll_interval", p.interval).
		Int("subscribers", p.Len()).
		Msg("Notification pipeline started")

	for {
		p.setState(StatePolling)
		batch, err := p.feed.Consume(ctx, limit)
		if err != nil {
			return p.complete(logger, fmt.Errorf("poll change notifications: %w", err))
		}

		var notifications []resource.ChangeNotification
		if batch != nil {
			notifications = batch.Notifications
			logger.Debug().
				Int("count", len(notifications)).
				Int("remaining", batch.Remaining).
				Msg("Polled change notifications")
		}
		notificationsConsumedTotal.Add(float64(len(notifications)))

		p.setState(StateReconciling)
		reconciled, err := p.reconciler.ReconcileAll(ctx, notifications)
		if err != nil {
			return p.complete(logger, err)
		}

		p.setState(StateDistributing)
		for _, value := range p.split(reconciled) {
			p.distribute(ctx, logger, value)
		}
		pipelineCyclesTotal.Inc()

		if p.cancelled.Load() {
			return p.complete(logger, nil)
		}

		p.setState(StateSleeping)
		if err := p.sleep(ctx); err != nil {
			return p.complete(logger, err)
		}
	}
}

// distribute hands value to a snapshot of the subscribers.
func (p *Pipeline[T]) distribute(ctx context.Context, logger zerolog.Logger, value T) {
	for _, sub := range p.snapshot() {
		err := invoke(ctx, sub, value)
		if err == nil {
			continue
		}

		subscriberErrorsTotal.Inc()
		logger.Warn().Err(err).Msg("Subscriber failed to handle notification")
		safely(logger, "OnError", func() { sub.OnError(err) })
	}
}

func invoke[T any](ctx context.Context, sub Subscriber[T], value T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := sub.OnNotification(ctx, value); err != nil {
		return &HandlerError{Err: err}
	}
	return nil
}

// safely runs a subscriber callback whose panic must not escape the loop.
func safely(logger zerolog.Logger, callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("callback", callback).
				Interface("panic", r).
				Msg("Subscriber callback panicked")
		}
	}()
	fn()
}

func (p *Pipeline[T]) sleep(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// complete signals completion to every subscriber, clears the set and
// returns err.
func (p *Pipeline[T]) complete(logger zerolog.Logger, err error) error {
	p.setState(StateCompleted)

	for _, sub := range p.snapshot() {
		safely(logger, "OnCompleted", func() { sub.OnCompleted() })
	}
	p.clear()
	p.cancelled.Store(false)

	if err != nil {
		logger.Error().Err(err).Msg("Notification pipeline terminated")
		return err
	}
	logger.Info().Msg("Notification pipeline completed")
	return nil
}
