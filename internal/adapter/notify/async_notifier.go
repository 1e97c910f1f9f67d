package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/port"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("notifier closed")
)

type job struct {
	ctx context.Context
	n   port.Notification
}

// AsyncNotifier hands notifications to a pool of workers so callers never
// wait on the transport.
type AsyncNotifier struct {
	next    port.Notifier
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

var _ port.Notifier = (*AsyncNotifier)(nil)

func NewAsyncNotifier(next port.Notifier, workerCount, queueSize int, timeout time.Duration, logger *zap.Logger) *AsyncNotifier {
	a := &AsyncNotifier{
		next:    next,
		logger:  logger,
		timeout: timeout,
		queue:   make(chan job, queueSize),
	}

	for i := 0; i < workerCount; i++ {
		a.wg.Add(1)
		go func(id int) {
			defer a.wg.Done()
			a.workerLoop(id)
		}(i)
	}
	return a
}

func (a *AsyncNotifier) Notify(ctx context.Context, n port.Notification) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- job{ctx: context.WithoutCancel(ctx), n: n}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (a *AsyncNotifier) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
}

func (a *AsyncNotifier) workerLoop(id int) {
	for j := range a.queue {
		ctx, cancel := context.WithTimeout(j.ctx, a.timeout)

		if err := a.next.Notify(ctx, j.n); err != nil {
			a.logger.Warn("failed to deliver notification",
				zap.Int("worker", id),
				zap.String("title", j.n.Title),
				zap.Error(err),
			)
		} else {
			a.logger.Debug("notification delivered", zap.Int("worker", id), zap.String("title", j.n.Title))
		}

		cancel()
	}
}
