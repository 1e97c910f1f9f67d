package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// Mock Notifier
type mockNotifier struct {
	mu      sync.Mutex
	sent    []port.Notification
	err     error
	hang    chan struct{} // when set, Notify blocks until closed and ignores ctx
	started atomic.Int32
}

func (m *mockNotifier) Notify(ctx context.Context, n port.Notification) error {
	m.started.Add(1)
	if m.hang != nil {
		<-m.hang
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

func (m *mockNotifier) titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, n := range m.sent {
		out = append(out, n.Title)
	}
	return out
}

func (m *mockNotifier) find(title string) *port.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sent {
		if m.sent[i].Title == title {
			n := m.sent[i]
			return &n
		}
	}
	return nil
}

func steppingClock() func() time.Time {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var n atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
}

type fixture struct {
	store    *storage.MemoryStore
	notifier *mockNotifier
	ledger   *LedgerService
	repairs  *RepairService
	catalog  *CatalogService
	reports  *ReportService
	a, b     *domain.Location
}

var (
	staff = Metadata{ActorID: "staff-1"}
	admin = "admin-1"
)

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, storage.NewMemoryStore(), opts...)
}

func newFixtureWithStore(t *testing.T, store port.Store, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWith(t, store, storage.NewMemoryLocker(), opts...)
}

func newFixtureWith(t *testing.T, store port.Store, locker port.ItemLocker, opts ...Option) *fixture {
	t.Helper()

	opts = append([]Option{WithClock(steppingClock()), WithIDGenerator(sequentialIDs())}, opts...)
	notifier := &mockNotifier{}
	logger := zap.NewNop()

	f := &fixture{
		notifier: notifier,
		ledger:   NewLedgerService(store, locker, notifier, logger, opts...),
		repairs:  NewRepairService(store, locker, notifier, logger, opts...),
		catalog:  NewCatalogService(store, locker, logger, opts...),
		reports:  NewReportService(store, logger, opts...),
	}
	if ms, ok := store.(*storage.MemoryStore); ok {
		f.store = ms
	}

	ctx := context.Background()
	var err error
	if f.a, err = f.catalog.RegisterLocation(ctx, "Location A", "1 Main St", admin); err != nil {
		t.Fatalf("register location A: %v", err)
	}
	if f.b, err = f.catalog.RegisterLocation(ctx, "Location B", "2 Side St", admin); err != nil {
		t.Fatalf("register location B: %v", err)
	}
	return f
}

// widget registers an item and stocks it at location A.
func (f *fixture) widget(t *testing.T, sku string, threshold, atA int) *domain.Item {
	t.Helper()
	ctx := context.Background()

	item, err := f.catalog.RegisterItem(ctx, NewItemInput{SKU: sku, Name: "Widget " + sku, Unit: "pcs", Threshold: threshold}, admin)
	if err != nil {
		t.Fatalf("register item: %v", err)
	}
	if atA > 0 {
		if _, err := f.ledger.AddStock(ctx, item.ID, f.a.ID, atA, staff); err != nil {
			t.Fatalf("seed stock: %v", err)
		}
	}
	return item
}

func (f *fixture) quantities(t *testing.T, itemID string) (int, int) {
	t.Helper()
	item, err := f.catalog.GetItem(context.Background(), itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	return item.Quantity(f.a.ID), item.Quantity(f.b.ID)
}
