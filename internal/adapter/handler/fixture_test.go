package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/notify"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const testSecret = "test-secret"

type fixture struct {
	svc        Services
	router     http.Handler
	staffToken string
	adminToken string
	locA       *domain.Location
	locB       *domain.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	locker := storage.NewMemoryLocker()
	logger := zap.NewNop()
	notifier := notify.NewLogNotifier(logger)
	opts := []service.Option{service.WithIdempotency(storage.NewMemoryIdempotency())}

	svc := Services{
		Ledger:  service.NewLedgerService(store, locker, notifier, logger, opts...),
		Repairs: service.NewRepairService(store, locker, notifier, logger, opts...),
		Catalog: service.NewCatalogService(store, locker, logger, opts...),
		Reports: service.NewReportService(store, logger, opts...),
	}

	ctx := context.Background()
	locA, err := svc.Catalog.RegisterLocation(ctx, "Warehouse A", "", "admin-1")
	if err != nil {
		t.Fatalf("RegisterLocation failed: %v", err)
	}
	locB, err := svc.Catalog.RegisterLocation(ctx, "Warehouse B", "", "admin-1")
	if err != nil {
		t.Fatalf("RegisterLocation failed: %v", err)
	}

	return &fixture{
		svc:        svc,
		router:     NewHTTPHandler(svc, testSecret, logger).Router(),
		staffToken: token(t, Actor{ID: "staff-1", Role: domain.RoleStaff}),
		adminToken: token(t, Actor{ID: "admin-1", Role: domain.RoleAdmin}),
		locA:       locA,
		locB:       locB,
	}
}

func token(t *testing.T, actor Actor) string {
	t.Helper()
	tok, err := IssueToken(testSecret, actor, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return tok
}

func (f *fixture) item(t *testing.T, sku string, threshold, stockAtA int) *domain.Item {
	t.Helper()
	ctx := context.Background()
	item, err := f.svc.Catalog.RegisterItem(ctx, service.NewItemInput{
		SKU: sku, Name: "Widget " + sku, Unit: "pcs", Threshold: threshold,
	}, "admin-1")
	if err != nil {
		t.Fatalf("RegisterItem failed: %v", err)
	}
	if stockAtA > 0 {
		if _, err := f.svc.Ledger.AddStock(ctx, item.ID, f.locA.ID, stockAtA, service.Metadata{ActorID: "staff-1"}); err != nil {
			t.Fatalf("AddStock failed: %v", err)
		}
	}
	return item
}

func (f *fixture) do(t *testing.T, method, path, token string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}
