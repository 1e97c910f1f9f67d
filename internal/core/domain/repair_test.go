package domain

import (
	"errors"
	"testing"
	"time"
)

func TestRepairTicket_Lifecycle(t *testing.T) {
	now := time.Now()
	ticket, err := NewRepairTicket("r-1", "item", "A", 3, "Acme", "SN-1", "user", now)
	if err != nil {
		t.Fatalf("NewRepairTicket failed: %v", err)
	}
	if ticket.Status != RepairStatusSent {
		t.Errorf("expected sent, got %s", ticket.Status)
	}

	if err := ticket.MarkReturned(now); err != nil {
		t.Fatalf("MarkReturned failed: %v", err)
	}
	if ticket.Status != RepairStatusReturned || ticket.ReturnedAt == nil {
		t.Errorf("expected returned with timestamp, got %+v", ticket)
	}

	if err := ticket.MarkReturned(now); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second return, got: %v", err)
	}
	if err := ticket.MarkLost(now); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound marking a returned ticket lost, got: %v", err)
	}
}

func TestNewRepairTicket_Validation(t *testing.T) {
	now := time.Now()
	if _, err := NewRepairTicket("r", "item", "A", 0, "Acme", "", "user", now); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for zero quantity, got: %v", err)
	}
	if _, err := NewRepairTicket("r", "item", "A", 1, "", "", "user", now); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for missing vendor, got: %v", err)
	}
}
