package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// RepairService tracks stock sent to outside vendors. Sending debits the
// location immediately; returning credits the chosen location.
type RepairService struct {
	core
}

func NewRepairService(store port.Store, locker port.ItemLocker, notifier port.Notifier, logger *zap.Logger, opts ...Option) *RepairService {
	return &RepairService{core: newCore(store, locker, notifier, logger, opts)}
}

func (s *RepairService) SendForRepair(ctx context.Context, itemID, locationID string, quantity int, vendor, serial string, md Metadata) (result *domain.RepairTicket, err error) {
	ctx, span := s.startSpan(ctx, "repair.SendForRepair",
		attribute.String("item.id", itemID),
		attribute.String("location.id", locationID),
		attribute.Int("quantity", quantity),
		attribute.String("vendor", vendor),
	)
	defer func() { endSpan(span, err) }()

	if err := md.validate(); err != nil {
		return nil, err
	}
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}
	if vendor == "" {
		return nil, fmt.Errorf("%w: vendor is required", domain.ErrInvalidArgument)
	}

	release, err := s.claim(ctx, "repair-out", md)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	var (
		item   domain.Item
		loc    domain.Location
		ticket *domain.RepairTicket
	)
	err = s.withItem(ctx, "repair-out", itemID, func(ctx context.Context, r port.Repositories) error {
		current, err := requireItem(ctx, r, itemID)
		if err != nil {
			return err
		}
		l, err := requireLocation(ctx, r, locationID, false)
		if err != nil {
			return err
		}

		now := s.now()
		ticket, err = domain.NewRepairTicket(s.opts.newID(), itemID, locationID, quantity, vendor, serial, md.ActorID, now)
		if err != nil {
			return err
		}
		ticket.Note, ticket.PhotoRef = md.Note, md.PhotoRef

		tx, err := domain.NewTransaction(s.opts.newID(), itemID, quantity, domain.RepairOutDetails{
			FromLocationID: locationID,
			VendorName:     vendor,
			SerialNumber:   serial,
			RepairTicketID: ticket.ID,
		}, md.ActorID, now, false)
		if err != nil {
			return err
		}
		tx.Note, tx.PhotoRef = md.Note, md.PhotoRef

		if err := current.Apply(tx.Deltas()); err != nil {
			return err
		}
		current.UpdatedAt = now
		if err := r.UpdateItem(ctx, *current); err != nil {
			return err
		}
		if err := r.CreateRepairTicket(ctx, *ticket); err != nil {
			return err
		}
		if err := r.CreateTransaction(ctx, *tx); err != nil {
			return err
		}

		item, loc = *current, *l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item sent for repair",
		zap.String("ticket_id", ticket.ID),
		zap.String("item_id", itemID),
		zap.String("vendor", vendor),
		zap.Int("quantity", quantity),
	)
	s.notify(ctx, sentForRepairNotification(item, loc, *ticket))
	s.checkLowStock(ctx, item)
	return ticket, nil
}

// ReturnFromRepair closes a sent ticket and credits its quantity at
// locationID, which need not be the location it left from.
func (s *RepairService) ReturnFromRepair(ctx context.Context, ticketID, locationID string, md Metadata) (result *domain.RepairTicket, err error) {
	ctx, span := s.startSpan(ctx, "repair.ReturnFromRepair",
		attribute.String("ticket.id", ticketID),
		attribute.String("location.id", locationID),
	)
	defer func() { endSpan(span, err) }()

	if err := md.validate(); err != nil {
		return nil, err
	}

	pre, err := s.store.GetRepairTicket(ctx, ticketID)
	if err != nil {
		return nil, s.mapError("repair-in", err)
	}
	if pre == nil {
		return nil, fmt.Errorf("repair ticket %s: %w", ticketID, domain.ErrNotFound)
	}

	release, err := s.claim(ctx, "repair-in", md)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	var (
		item   domain.Item
		loc    domain.Location
		ticket *domain.RepairTicket
	)
	err = s.withItem(ctx, "repair-in", pre.ItemID, func(ctx context.Context, r port.Repositories) error {
		t, err := r.GetRepairTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("repair ticket %s: %w", ticketID, domain.ErrNotFound)
		}

		now := s.now()
		if err := t.MarkReturned(now); err != nil {
			return err
		}
		l, err := requireLocation(ctx, r, locationID, true)
		if err != nil {
			return err
		}
		current, err := requireItem(ctx, r, t.ItemID)
		if err != nil {
			return err
		}

		tx, err := domain.NewTransaction(s.opts.newID(), t.ItemID, t.Quantity, domain.RepairInDetails{
			ToLocationID:   locationID,
			RepairTicketID: t.ID,
		}, md.ActorID, now, false)
		if err != nil {
			return err
		}
		tx.Note, tx.PhotoRef = md.Note, md.PhotoRef

		if err := current.Apply(tx.Deltas()); err != nil {
			return err
		}
		current.UpdatedAt = now
		if err := r.UpdateItem(ctx, *current); err != nil {
			return err
		}
		if err := r.UpdateRepairTicket(ctx, *t); err != nil {
			return err
		}
		if err := r.CreateTransaction(ctx, *tx); err != nil {
			return err
		}

		ticket, item, loc = t, *current, *l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("repair returned",
		zap.String("ticket_id", ticket.ID),
		zap.String("item_id", ticket.ItemID),
		zap.String("location_id", locationID),
	)
	s.notify(ctx, repairReturnedNotification(item, loc, *ticket))
	return ticket, nil
}

// MarkLost closes a sent ticket without returning stock.
func (s *RepairService) MarkLost(ctx context.Context, ticketID string, md Metadata) (result *domain.RepairTicket, err error) {
	ctx, span := s.startSpan(ctx, "repair.MarkLost", attribute.String("ticket.id", ticketID))
	defer func() { endSpan(span, err) }()

	if err := md.validate(); err != nil {
		return nil, err
	}

	pre, err := s.store.GetRepairTicket(ctx, ticketID)
	if err != nil {
		return nil, s.mapError("repair-lost", err)
	}
	if pre == nil {
		return nil, fmt.Errorf("repair ticket %s: %w", ticketID, domain.ErrNotFound)
	}

	var (
		item   domain.Item
		ticket *domain.RepairTicket
	)
	err = s.withItem(ctx, "repair-lost", pre.ItemID, func(ctx context.Context, r port.Repositories) error {
		t, err := r.GetRepairTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("repair ticket %s: %w", ticketID, domain.ErrNotFound)
		}
		if err := t.MarkLost(s.now()); err != nil {
			return err
		}
		if md.Note != "" {
			t.Note = md.Note
		}
		current, err := requireItem(ctx, r, t.ItemID)
		if err != nil {
			return err
		}
		if err := r.UpdateRepairTicket(ctx, *t); err != nil {
			return err
		}

		ticket, item = t, *current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("repair marked lost", zap.String("ticket_id", ticket.ID), zap.String("item_id", ticket.ItemID))
	s.notify(ctx, repairLostNotification(item, *ticket))
	return ticket, nil
}

func (s *RepairService) GetRepairTicket(ctx context.Context, id string) (*domain.RepairTicket, error) {
	ticket, err := s.store.GetRepairTicket(ctx, id)
	if err != nil {
		return nil, s.mapError("get repair ticket", err)
	}
	if ticket == nil {
		return nil, fmt.Errorf("repair ticket %s: %w", id, domain.ErrNotFound)
	}
	return ticket, nil
}

// ListRepairTickets returns tickets newest first.
func (s *RepairService) ListRepairTickets(ctx context.Context, filter port.RepairFilter) ([]domain.RepairTicket, error) {
	tickets, err := s.store.ListRepairTickets(ctx, filter)
	if err != nil {
		return nil, s.mapError("list repair tickets", err)
	}
	return tickets, nil
}
