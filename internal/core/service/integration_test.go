package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func TestIntegration_SQLite_Workflow(t *testing.T) {
	db, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store := storage.NewSQLStore(db)
	defer store.Close()

	f := newFixtureWithStore(t, store)
	ctx := context.Background()
	item := f.widget(t, "WID-1", 2, 15)

	// pending transfer, approved once
	tx, err := f.ledger.TransferStock(ctx, item.ID, f.a.ID, f.b.ID, 5, false, staff)
	if err != nil {
		t.Fatalf("TransferStock failed: %v", err)
	}
	if _, err := f.ledger.ReviewTransfer(ctx, tx.ID, true, admin); err != nil {
		t.Fatalf("ReviewTransfer failed: %v", err)
	}
	if _, err := f.ledger.ReviewTransfer(ctx, tx.ID, true, admin); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Errorf("expected ErrAlreadyProcessed, got %v", err)
	}
	a, b := f.quantities(t, item.ID)
	if a != 10 || b != 5 {
		t.Errorf("expected 10/5, got %d/%d", a, b)
	}

	// repair out from A, back into B
	ticket, err := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 3, "Acme", "", staff)
	if err != nil {
		t.Fatalf("SendForRepair failed: %v", err)
	}
	if _, err := f.repairs.ReturnFromRepair(ctx, ticket.ID, f.b.ID, staff); err != nil {
		t.Fatalf("ReturnFromRepair failed: %v", err)
	}
	a, b = f.quantities(t, item.ID)
	if a != 7 || b != 8 {
		t.Errorf("expected 7/8, got %d/%d", a, b)
	}

	// over-withdrawal leaves no trace
	if _, err := f.ledger.RequestDisposal(ctx, item.ID, f.a.ID, 100, domain.ReasonBroken, staff); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}

	summary, err := f.reports.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if summary.TotalStock != 15 || len(summary.Recent) != 4 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestIntegration_SQLite_ConcurrentWithdrawals(t *testing.T) {
	db, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store := storage.NewSQLStore(db)
	defer store.Close()

	f := newFixtureWithStore(t, store)
	ctx := context.Background()
	item := f.widget(t, "WID-1", 0, 10)

	var (
		wg           sync.WaitGroup
		successCount atomic.Int32
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 1, "Acme", "", staff); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 10 {
		t.Errorf("expected 10 successful withdrawals, got %d", successCount.Load())
	}
	if a, _ := f.quantities(t, item.ID); a != 0 {
		t.Errorf("expected stock 0, got %d", a)
	}
}

func TestIntegration_MySQLRedis_ConcurrentWithdrawals(t *testing.T) {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		t.Skip("MYSQL_DSN not set")
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer rdb.Close()

	db, err := storage.OpenMySQL(ctx, mysqlDSN, storage.PoolConfig{MaxOpenConns: 20, MaxIdleConns: 10, ConnMaxLifetime: time.Minute})
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	store := storage.NewSQLStore(db)
	defer store.Close()

	// unique names keep reruns against a shared database apart
	run := uuid.NewString()[:8]
	redisAdapter := storage.NewRedisAdapter(rdb)
	f := &fixture{notifier: &mockNotifier{}}
	opts := []Option{WithIdempotency(redisAdapter)}
	f.ledger = NewLedgerService(store, redisAdapter, f.notifier, nil, opts...)
	f.repairs = NewRepairService(store, redisAdapter, f.notifier, nil, opts...)
	f.catalog = NewCatalogService(store, redisAdapter, nil, opts...)

	if f.a, err = f.catalog.RegisterLocation(ctx, "A-"+run, "", admin); err != nil {
		t.Fatalf("register location: %v", err)
	}
	if f.b, err = f.catalog.RegisterLocation(ctx, "B-"+run, "", admin); err != nil {
		t.Fatalf("register location: %v", err)
	}
	item := f.widget(t, "WID-"+run, 0, 10)

	var (
		wg           sync.WaitGroup
		successCount atomic.Int32
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			md := Metadata{ActorID: "staff-1", RequestID: uuid.NewString()}
			if _, err := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 1, "Acme", "", md); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 10 {
		t.Errorf("expected 10 successful withdrawals, got %d", successCount.Load())
	}
	if a, _ := f.quantities(t, item.ID); a != 0 {
		t.Errorf("expected stock 0, got %d", a)
	}
}
