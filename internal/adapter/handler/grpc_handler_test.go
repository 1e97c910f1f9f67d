package handler

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newGRPCClient(t *testing.T, f *fixture) *LedgerClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(AuthInterceptor(testSecret)))
	RegisterLedgerServer(srv, NewGRPCHandler(f.svc, zap.NewNop()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return NewLedgerClient(conn)
}

func TestGRPCHandler_TransferFlow(t *testing.T) {
	f := newFixture(t)
	client := newGRPCClient(t, f)
	item := f.item(t, "WID-1", 2, 0)

	staff := WithBearerToken(context.Background(), f.staffToken)
	admin := WithBearerToken(context.Background(), f.adminToken)

	added, err := client.AddStock(staff, &AddStockRequest{ItemID: item.ID, LocationID: f.locA.ID, Quantity: 15})
	if err != nil {
		t.Fatalf("AddStock failed: %v", err)
	}
	if added.Kind != "ADD" || added.Status != "approved" || added.CreatedBy != "staff-1" {
		t.Errorf("unexpected transaction %+v", added)
	}

	tx, err := client.TransferStock(staff, &TransferStockRequest{
		ItemID: item.ID, FromLocationID: f.locA.ID, ToLocationID: f.locB.ID, Quantity: 5,
	})
	if err != nil {
		t.Fatalf("TransferStock failed: %v", err)
	}
	if tx.Status != "pending" {
		t.Fatalf("expected pending, got %s", tx.Status)
	}

	_, err = client.ReviewTransfer(staff, &ReviewRequest{TransactionID: tx.ID, Approve: true})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("staff review: expected PermissionDenied, got %v", err)
	}

	approved, err := client.ReviewTransfer(admin, &ReviewRequest{TransactionID: tx.ID, Approve: true})
	if err != nil {
		t.Fatalf("ReviewTransfer failed: %v", err)
	}
	if approved.Status != "approved" {
		t.Errorf("expected approved, got %s", approved.Status)
	}

	_, err = client.ReviewTransfer(admin, &ReviewRequest{TransactionID: tx.ID, Approve: true})
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("second review: expected FailedPrecondition, got %v", err)
	}

	got, err := client.GetTransaction(staff, &GetTransactionRequest{TransactionID: tx.ID})
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.ApprovedBy != "admin-1" || got.FromLocationID != f.locA.ID {
		t.Errorf("unexpected transaction %+v", got)
	}
}

func TestGRPCHandler_DisposalAndRepair(t *testing.T) {
	f := newFixture(t)
	client := newGRPCClient(t, f)
	item := f.item(t, "WID-1", 0, 10)

	staff := WithBearerToken(context.Background(), f.staffToken)
	admin := WithBearerToken(context.Background(), f.adminToken)

	_, err := client.RequestDisposal(staff, &DisposalRequest{ItemID: item.ID, LocationID: f.locA.ID, Quantity: 11, Reason: "Broken"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("over-withdrawal: expected FailedPrecondition, got %v", err)
	}

	disposal, err := client.RequestDisposal(staff, &DisposalRequest{ItemID: item.ID, LocationID: f.locA.ID, Quantity: 2, Reason: "Broken"})
	if err != nil {
		t.Fatalf("RequestDisposal failed: %v", err)
	}
	if _, err := client.ApproveDisposal(admin, &ReviewRequest{TransactionID: disposal.ID, Approve: false}); err != nil {
		t.Fatalf("ApproveDisposal failed: %v", err)
	}

	ticket, err := client.SendForRepair(staff, &SendForRepairRequest{ItemID: item.ID, LocationID: f.locA.ID, Quantity: 3, VendorName: "Acme"})
	if err != nil {
		t.Fatalf("SendForRepair failed: %v", err)
	}
	returned, err := client.ReturnFromRepair(staff, &ReturnFromRepairRequest{TicketID: ticket.ID, LocationID: f.locB.ID})
	if err != nil {
		t.Fatalf("ReturnFromRepair failed: %v", err)
	}
	if returned.Status != "returned" {
		t.Errorf("expected returned, got %s", returned.Status)
	}

	_, err = client.ReturnFromRepair(staff, &ReturnFromRepairRequest{TicketID: ticket.ID, LocationID: f.locB.ID})
	if status.Code(err) != codes.NotFound {
		t.Errorf("second return: expected NotFound, got %v", err)
	}

	current, err := f.svc.Catalog.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Quantity(f.locA.ID) != 7 || current.Quantity(f.locB.ID) != 3 {
		t.Errorf("expected 7/3, got %d/%d", current.Quantity(f.locA.ID), current.Quantity(f.locB.ID))
	}
}

func TestGRPCHandler_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	client := newGRPCClient(t, f)

	_, err := client.GetTransaction(context.Background(), &GetTransactionRequest{TransactionID: "x"})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}

	_, err = client.GetTransaction(WithBearerToken(context.Background(), "bogus"), &GetTransactionRequest{TransactionID: "x"})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}
}

func TestGRPCHandler_InvalidArgument(t *testing.T) {
	f := newFixture(t)
	client := newGRPCClient(t, f)
	item := f.item(t, "WID-1", 0, 5)
	staff := WithBearerToken(context.Background(), f.staffToken)

	_, err := client.TransferStock(staff, &TransferStockRequest{ItemID: item.ID, FromLocationID: f.locA.ID, ToLocationID: f.locA.ID, Quantity: 1})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("same location: expected InvalidArgument, got %v", err)
	}

	_, err = client.RequestDisposal(staff, &DisposalRequest{ItemID: item.ID, LocationID: f.locA.ID, Quantity: 1, Reason: "Lost"})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("bad reason: expected InvalidArgument, got %v", err)
	}
}
