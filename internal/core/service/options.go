package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	defaultNotifyTimeout = 5 * time.Second
	defaultLockTimeout   = 10 * time.Second
	defaultMaxAttempts   = 3
	tracerName           = "github.com/rl1809/stock-ledger/internal/core/service"
)

type options struct {
	now           func() time.Time
	newID         func() string
	newBarcode    func() string
	notifyTimeout time.Duration
	lockTimeout   time.Duration
	maxAttempts   int
	tracer        trace.Tracer
	idempotency   port.IdempotencyStore
}

type Option func(*options)

func defaultOptions() options {
	return options{
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
		newBarcode:    randomBarcode,
		notifyTimeout: defaultNotifyTimeout,
		lockTimeout:   defaultLockTimeout,
		maxAttempts:   defaultMaxAttempts,
		tracer:        otel.Tracer(tracerName),
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func WithBarcodeGenerator(gen func() string) Option {
	return func(o *options) { o.newBarcode = gen }
}

// WithNotifyTimeout bounds each notification dispatch.
func WithNotifyTimeout(d time.Duration) Option {
	return func(o *options) { o.notifyTimeout = d }
}

// WithLockTimeout bounds how long an operation waits for the item lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithIdempotency enables request-id deduplication on mutating operations.
func WithIdempotency(store port.IdempotencyStore) Option {
	return func(o *options) { o.idempotency = store }
}

// randomBarcode returns 8 uppercase hex characters.
func randomBarcode() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
