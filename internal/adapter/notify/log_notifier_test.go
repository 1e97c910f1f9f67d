package notify

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

func TestLogNotifier_Notify(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewLogNotifier(zap.New(core))

	err := l.Notify(context.Background(), port.Notification{
		Audience: port.OnlyRoles(domain.RoleAdmin),
		Title:    "Low stock alert",
		Message:  "Widget is low",
		Data:     map[string]string{"itemId": "item-1"},
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	entries := logs.FilterMessage("Low stock alert").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["all_users"] != false {
		t.Errorf("expected all_users=false, got %v", fields["all_users"])
	}
	if fields["message"] != "Widget is low" {
		t.Errorf("unexpected message field: %v", fields["message"])
	}
}
