package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// Audience selects recipients. No roles means every user.
type Audience struct {
	Roles []domain.Role
}

func AllUsers() Audience { return Audience{} }

func OnlyRoles(roles ...domain.Role) Audience { return Audience{Roles: roles} }

func (a Audience) All() bool { return len(a.Roles) == 0 }

type Email struct {
	Subject string
	HTML    string
}

type Notification struct {
	Audience Audience
	Title    string
	Message  string
	Data     map[string]string
	Email    *Email
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
