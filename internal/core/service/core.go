package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// Metadata accompanies every mutating request.
type Metadata struct {
	ActorID   string
	Note      string
	PhotoRef  string
	RequestID string // optional idempotency key
}

func (m Metadata) validate() error {
	if m.ActorID == "" {
		return fmt.Errorf("%w: actor is required", domain.ErrInvalidArgument)
	}
	return nil
}

// core holds the collaborators shared by every service.
type core struct {
	store    port.Store
	locker   port.ItemLocker
	notifier port.Notifier
	logger   *zap.Logger
	opts     options
}

func newCore(store port.Store, locker port.ItemLocker, notifier port.Notifier, logger *zap.Logger, opts []Option) core {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return core{
		store:    store,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
		opts:     o,
	}
}

func (c *core) now() time.Time { return c.opts.now() }

// withItem runs fn under the item lock inside one store transaction. A lost
// optimistic version check re-runs fn from a fresh read, up to maxAttempts.
func (c *core) withItem(ctx context.Context, op, itemID string, fn func(ctx context.Context, r port.Repositories) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, c.opts.lockTimeout)
	unlock, err := c.locker.Lock(lockCtx, itemID)
	cancel()
	if err != nil {
		c.logger.Error("failed to lock item", zap.String("op", op), zap.String("item_id", itemID), zap.Error(err))
		return domain.ErrDependencyUnavailable
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		err = c.store.WithinTx(ctx, fn)
		if !errors.Is(err, port.ErrConflict) || attempt >= c.opts.maxAttempts {
			break
		}
		c.logger.Warn("optimistic lock conflict, retrying",
			zap.String("op", op),
			zap.String("item_id", itemID),
			zap.Int("attempt", attempt),
		)
	}
	return c.mapError(op, err)
}

// inTx runs fn in one store transaction without an item lock.
func (c *core) inTx(ctx context.Context, op string, fn func(ctx context.Context, r port.Repositories) error) error {
	return c.mapError(op, c.store.WithinTx(ctx, fn))
}

// mapError passes domain errors through and hides everything else behind
// ErrDependencyUnavailable.
func (c *core) mapError(op string, err error) error {
	if err == nil || domain.IsKnown(err) {
		return err
	}
	c.logger.Error("operation failed", zap.String("op", op), zap.Error(err))
	return domain.ErrDependencyUnavailable
}

// claim reserves md.RequestID for op. The returned func releases the key
// when the operation failed so the caller may retry.
func (c *core) claim(ctx context.Context, op string, md Metadata) (func(err error), error) {
	if md.RequestID == "" || c.opts.idempotency == nil {
		return func(error) {}, nil
	}

	key := fmt.Sprintf("%s:%s:%s", op, md.ActorID, md.RequestID)
	ok, err := c.opts.idempotency.Claim(ctx, key)
	if err != nil {
		c.logger.Error("idempotency check failed", zap.String("op", op), zap.Error(err))
		return nil, domain.ErrDependencyUnavailable
	}
	if !ok {
		return nil, fmt.Errorf("request %s: %w", md.RequestID, domain.ErrDuplicateRequest)
	}

	return func(opErr error) {
		if opErr == nil {
			return
		}
		if err := c.opts.idempotency.Release(context.WithoutCancel(ctx), key); err != nil {
			c.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (c *core) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.opts.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// requireItem loads an item or fails with ErrNotFound.
func requireItem(ctx context.Context, r port.Repositories, id string) (*domain.Item, error) {
	item, err := r.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return item, nil
}

// requireLocation loads a location or fails with ErrNotFound. When receiving
// is set the location must also be active.
func requireLocation(ctx context.Context, r port.Repositories, id string, receiving bool) (*domain.Location, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: location is required", domain.ErrInvalidArgument)
	}
	loc, err := r.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, fmt.Errorf("location %s: %w", id, domain.ErrNotFound)
	}
	if receiving && !loc.Active {
		return nil, fmt.Errorf("%w: location %s is inactive", domain.ErrInvalidArgument, loc.Name)
	}
	return loc, nil
}

func validQuantity(q int) error {
	if q <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrInvalidArgument, q)
	}
	return nil
}
