package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

func TestRepair_ReturnToOtherLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.widget(t, "WID-1", 0, 10)

	ticket, err := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 3, "Acme", "SN-9", Metadata{ActorID: "staff-1", Note: "cracked screen"})
	if err != nil {
		t.Fatalf("SendForRepair failed: %v", err)
	}
	if ticket.Status != domain.RepairStatusSent || ticket.Note != "cracked screen" {
		t.Errorf("unexpected ticket %+v", ticket)
	}
	a, b := f.quantities(t, item.ID)
	if a != 7 || b != 0 {
		t.Errorf("expected 7/0 after send, got %d/%d", a, b)
	}

	out, _, _ := f.ledger.ListTransactions(ctx, port.TransactionFilter{Kind: domain.KindRepairOut})
	if len(out) != 1 {
		t.Fatalf("expected 1 REPAIR_OUT, got %d", len(out))
	}
	details := out[0].Details.(domain.RepairOutDetails)
	if details.RepairTicketID != ticket.ID || details.VendorName != "Acme" || details.SerialNumber != "SN-9" {
		t.Errorf("unexpected REPAIR_OUT details %+v", details)
	}

	returned, err := f.repairs.ReturnFromRepair(ctx, ticket.ID, f.b.ID, staff)
	if err != nil {
		t.Fatalf("ReturnFromRepair failed: %v", err)
	}
	if returned.Status != domain.RepairStatusReturned || returned.ReturnedAt == nil {
		t.Errorf("expected returned ticket, got %+v", returned)
	}
	a, b = f.quantities(t, item.ID)
	if a != 7 || b != 3 {
		t.Errorf("expected 7/3 after return, got %d/%d", a, b)
	}

	in, _, _ := f.ledger.ListTransactions(ctx, port.TransactionFilter{Kind: domain.KindRepairIn})
	if len(in) != 1 || in[0].Details.(domain.RepairInDetails).RepairTicketID != ticket.ID || in[0].Quantity != 3 {
		t.Errorf("unexpected REPAIR_IN %+v", in)
	}

	if f.notifier.find("Item sent for repair") == nil || f.notifier.find("Repair completed") == nil {
		t.Errorf("expected repair notifications, got %v", f.notifier.titles())
	}
}

func TestRepair_ReturnTwiceIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.widget(t, "WID-1", 0, 10)

	ticket, _ := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 2, "Acme", "", staff)
	if _, err := f.repairs.ReturnFromRepair(ctx, ticket.ID, f.a.ID, staff); err != nil {
		t.Fatalf("first return failed: %v", err)
	}
	if _, err := f.repairs.ReturnFromRepair(ctx, ticket.ID, f.a.ID, staff); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.repairs.ReturnFromRepair(ctx, "missing", f.a.ID, staff); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if a, _ := f.quantities(t, item.ID); a != 10 {
		t.Errorf("expected stock 10, got %d", a)
	}
}

func TestRepair_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.widget(t, "WID-1", 0, 10)

	if _, err := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 11, "Acme", "", staff); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if _, err := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 1, "", "", staff); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument without vendor, got %v", err)
	}
	if _, err := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 0, "Acme", "", staff); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for zero quantity, got %v", err)
	}

	tickets, _ := f.repairs.ListRepairTickets(ctx, port.RepairFilter{})
	if len(tickets) != 0 {
		t.Errorf("expected no tickets, got %d", len(tickets))
	}
}

func TestRepair_ReturnToUnknownLocationKeepsTicketSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.widget(t, "WID-1", 0, 10)

	ticket, _ := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 2, "Acme", "", staff)
	if _, err := f.repairs.ReturnFromRepair(ctx, ticket.ID, "missing", staff); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stored, _ := f.repairs.GetRepairTicket(ctx, ticket.ID)
	if stored.Status != domain.RepairStatusSent {
		t.Errorf("expected ticket still sent, got %s", stored.Status)
	}
}

func TestRepair_MarkLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.widget(t, "WID-1", 0, 10)

	ticket, _ := f.repairs.SendForRepair(ctx, item.ID, f.a.ID, 4, "Acme", "", staff)
	lost, err := f.repairs.MarkLost(ctx, ticket.ID, Metadata{ActorID: admin, Note: "vendor closed"})
	if err != nil {
		t.Fatalf("MarkLost failed: %v", err)
	}
	if lost.Status != domain.RepairStatusLost || lost.Note != "vendor closed" {
		t.Errorf("unexpected ticket %+v", lost)
	}
	if a, _ := f.quantities(t, item.ID); a != 6 {
		t.Errorf("expected stock 6, got %d", a)
	}

	if _, err := f.repairs.ReturnFromRepair(ctx, ticket.ID, f.a.ID, staff); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for lost ticket, got %v", err)
	}

	sent, _ := f.repairs.ListRepairTickets(ctx, port.RepairFilter{Status: domain.RepairStatusSent})
	if len(sent) != 0 {
		t.Errorf("expected no sent tickets, got %d", len(sent))
	}
	all, _ := f.repairs.ListRepairTickets(ctx, port.RepairFilter{ItemID: item.ID})
	if len(all) != 1 {
		t.Errorf("expected 1 ticket for item, got %d", len(all))
	}
}
