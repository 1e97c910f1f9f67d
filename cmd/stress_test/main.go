package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/notify"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/port"
)

const actorID = "stress-test"

func main() {
	initialStock := pflag.Int("stock", 20, "initial stock at the source location")
	totalRequests := pflag.Int("requests", 50, "concurrent withdrawals, each of one unit")
	redisAddr := pflag.String("redis-addr", "", "use the Redis item lock at this address")
	sqliteDSN := pflag.String("sqlite-dsn", "", "use a SQLite store instead of memory")
	pflag.Parse()

	ctx := context.Background()
	logger := zap.NewNop()

	var store port.Store = storage.NewMemoryStore()
	if *sqliteDSN != "" {
		db, err := storage.OpenSQLite(ctx, *sqliteDSN)
		if err != nil {
			log.Fatalf("failed to open sqlite: %v", err)
		}
		store = storage.NewSQLStore(db)
	}
	defer store.Close()

	var locker port.ItemLocker = storage.NewMemoryLocker()
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		locker = storage.NewRedisAdapter(rdb)
	}

	notifier := notify.NewLogNotifier(logger)
	catalog := service.NewCatalogService(store, locker, logger)
	ledger := service.NewLedgerService(store, locker, notifier, logger)
	repairs := service.NewRepairService(store, locker, notifier, logger)

	suffix := time.Now().Format("150405.000")
	from, err := catalog.RegisterLocation(ctx, "stress-source-"+suffix, "", actorID)
	if err != nil {
		log.Fatalf("failed to create location: %v", err)
	}
	to, err := catalog.RegisterLocation(ctx, "stress-target-"+suffix, "", actorID)
	if err != nil {
		log.Fatalf("failed to create location: %v", err)
	}
	item, err := catalog.RegisterItem(ctx, service.NewItemInput{
		SKU: "STRESS-" + suffix, Name: "Stress item", Unit: "pcs",
	}, actorID)
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}
	md := service.Metadata{ActorID: actorID}
	if _, err := ledger.AddStock(ctx, item.ID, from.ID, *initialStock, md); err != nil {
		log.Fatalf("failed to add stock: %v", err)
	}

	// Counters
	var successCount, insufficientCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			var err error
			if n%2 == 0 {
				_, err = ledger.TransferStock(ctx, item.ID, from.ID, to.ID, 1, true, md)
			} else {
				_, err = repairs.SendForRepair(ctx, item.ID, from.ID, 1, "Acme", fmt.Sprintf("SN-%d", n), md)
			}

			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficientCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("request %d: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := int(successCount.Load())
	insufficient := int(insufficientCount.Load())
	wantSuccess := min(*initialStock, *totalRequests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:      %d\n", *initialStock)
	fmt.Printf("Total Requests:     %d\n", *totalRequests)
	fmt.Printf("Successful:         %d\n", success)
	fmt.Printf("Insufficient Stock: %d\n", insufficient)
	fmt.Printf("Other Errors:       %d\n", otherCount.Load())
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if success != wantSuccess || insufficient != *totalRequests-wantSuccess {
		fmt.Printf("FAIL: Expected %d success/%d insufficient, got %d/%d\n",
			wantSuccess, *totalRequests-wantSuccess, success, insufficient)
		failed = true
	} else {
		fmt.Printf("PASS: Exactly %d withdrawals succeeded\n", success)
	}

	final, err := catalog.GetItem(ctx, item.ID)
	if err != nil {
		log.Fatalf("failed to reload item: %v", err)
	}
	tickets, err := repairs.ListRepairTickets(ctx, port.RepairFilter{ItemID: item.ID, Status: domain.RepairStatusSent})
	if err != nil {
		log.Fatalf("failed to list repairs: %v", err)
	}
	fmt.Printf("Final Source Stock: %d\n", final.Quantity(from.ID))
	fmt.Printf("Final Target Stock: %d\n", final.Quantity(to.ID))
	fmt.Printf("Units At Repair:    %d\n", len(tickets))

	if final.Quantity(from.ID) < 0 || final.TotalStock()+len(tickets) != *initialStock {
		fmt.Println("FAIL: Stock is not conserved")
		failed = true
	} else {
		fmt.Println("PASS: Stock conserved and never negative")
	}

	if err := verifyReplay(ctx, ledger, *final); err != nil {
		fmt.Printf("FAIL: %v\n", err)
		failed = true
	} else {
		fmt.Println("PASS: Transaction log replays to current locations")
	}

	if failed {
		os.Exit(1)
	}
}

func verifyReplay(ctx context.Context, ledger *service.LedgerService, item domain.Item) error {
	txs, _, err := ledger.ListTransactions(ctx, port.TransactionFilter{ItemID: item.ID})
	if err != nil {
		return err
	}
	// Oldest first by the time each transaction took effect.
	effective := func(t domain.Transaction) time.Time {
		if t.ApprovedAt != nil {
			return *t.ApprovedAt
		}
		return t.CreatedAt
	}
	sort.SliceStable(txs, func(i, j int) bool { return effective(txs[i]).Before(effective(txs[j])) })

	entries, err := domain.Replay(txs)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if item.Quantity(e.LocationID) != e.Quantity {
			return fmt.Errorf("replay mismatch at %s: log says %d, item holds %d",
				e.LocationID, e.Quantity, item.Quantity(e.LocationID))
		}
	}
	return nil
}
