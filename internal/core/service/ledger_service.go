package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// LedgerService applies stock movements and runs the approval workflow for
// transfers and disposals. It is the only writer of item locations and
// transaction status.
type LedgerService struct {
	core
}

func NewLedgerService(store port.Store, locker port.ItemLocker, notifier port.Notifier, logger *zap.Logger, opts ...Option) *LedgerService {
	return &LedgerService{core: newCore(store, locker, notifier, logger, opts)}
}

// AddStock credits quantity at locationID. The transaction is approved on creation.
func (s *LedgerService) AddStock(ctx context.Context, itemID, locationID string, quantity int, md Metadata) (result *domain.Transaction, err error) {
	ctx, span := s.startSpan(ctx, "ledger.AddStock",
		attribute.String("item.id", itemID),
		attribute.String("location.id", locationID),
		attribute.Int("quantity", quantity),
	)
	defer func() { endSpan(span, err) }()

	if err := md.validate(); err != nil {
		return nil, err
	}
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}

	release, err := s.claim(ctx, "add", md)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	var (
		item domain.Item
		loc  domain.Location
		tx   *domain.Transaction
	)
	err = s.withItem(ctx, "add", itemID, func(ctx context.Context, r port.Repositories) error {
		current, err := requireItem(ctx, r, itemID)
		if err != nil {
			return err
		}
		l, err := requireLocation(ctx, r, locationID, true)
		if err != nil {
			return err
		}

		now := s.now()
		tx, err = domain.NewTransaction(s.opts.newID(), itemID, quantity,
			domain.AddDetails{ToLocationID: locationID}, md.ActorID, now, false)
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
		if err := r.CreateTransaction(ctx, *tx); err != nil {
			return err
		}

		item, loc = *current, *l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock added",
		zap.String("transaction_id", tx.ID),
		zap.String("item_id", itemID),
		zap.String("location_id", locationID),
		zap.Int("quantity", quantity),
	)
	s.notify(ctx, stockAddedNotification(item, loc, *tx))
	s.checkLowStock(ctx, item)
	return tx, nil
}

// TransferStock moves quantity between two locations. A privileged requester
// moves stock immediately; otherwise a pending transfer is recorded and
// nothing moves until ReviewTransfer approves it.
func (s *LedgerService) TransferStock(ctx context.Context, itemID, fromID, toID string, quantity int, privileged bool, md Metadata) (result *domain.Transaction, err error) {
	ctx, span := s.startSpan(ctx, "ledger.TransferStock",
		attribute.String("item.id", itemID),
		attribute.String("location.from", fromID),
		attribute.String("location.to", toID),
		attribute.Int("quantity", quantity),
		attribute.Bool("privileged", privileged),
	)
	defer func() { endSpan(span, err) }()

	if err := md.validate(); err != nil {
		return nil, err
	}
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, fmt.Errorf("%w: source and destination must differ", domain.ErrInvalidArgument)
	}

	release, err := s.claim(ctx, "transfer", md)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	var (
		item     domain.Item
		from, to domain.Location
		tx       *domain.Transaction
	)
	err = s.withItem(ctx, "transfer", itemID, func(ctx context.Context, r port.Repositories) error {
		current, err := requireItem(ctx, r, itemID)
		if err != nil {
			return err
		}
		src, err := requireLocation(ctx, r, fromID, false)
		if err != nil {
			return err
		}
		dst, err := requireLocation(ctx, r, toID, true)
		if err != nil {
			return err
		}

		now := s.now()
		tx, err = domain.NewTransaction(s.opts.newID(), itemID, quantity,
			domain.TransferDetails{FromLocationID: fromID, ToLocationID: toID}, md.ActorID, now, !privileged)
		if err != nil {
			return err
		}
		tx.Note, tx.PhotoRef = md.Note, md.PhotoRef

		// pending transfers are checked against the balance but not applied
		probe := current.Clone()
		if err := probe.Apply(tx.Deltas()); err != nil {
			return err
		}
		if tx.Status == domain.StatusApproved {
			probe.UpdatedAt = now
			if err := r.UpdateItem(ctx, probe); err != nil {
				return err
			}
		}
		if err := r.CreateTransaction(ctx, *tx); err != nil {
			return err
		}

		item, from, to = probe, *src, *dst
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer recorded",
		zap.String("transaction_id", tx.ID),
		zap.String("item_id", itemID),
		zap.String("status", string(tx.Status)),
		zap.Int("quantity", quantity),
	)
	s.notify(ctx, transferNotification(item, from, to, *tx))
	return tx, nil
}

// RequestDisposal records a pending disposal. Stock is only debited when
// ApproveDisposal approves it.
func (s *LedgerService) RequestDisposal(ctx context.Context, itemID, locationID string, quantity int, reason domain.DisposalReason, md Metadata) (result *domain.Transaction, err error) {
	ctx, span := s.startSpan(ctx, "ledger.RequestDisposal",
		attribute.String("item.id", itemID),
		attribute.String("location.id", locationID),
		attribute.Int("quantity", quantity),
		attribute.String("reason", string(reason)),
	)
	defer func() { endSpan(span, err) }()

	if err := md.validate(); err != nil {
		return nil, err
	}
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}
	if _, err := domain.ParseDisposalReason(string(reason)); err != nil {
		return nil, err
	}

	release, err := s.claim(ctx, "dispose", md)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	var (
		item domain.Item
		loc  domain.Location
		tx   *domain.Transaction
	)
	err = s.withItem(ctx, "dispose", itemID, func(ctx context.Context, r port.Repositories) error {
		current, err := requireItem(ctx, r, itemID)
		if err != nil {
			return err
		}
		l, err := requireLocation(ctx, r, locationID, false)
		if err != nil {
			return err
		}

		tx, err = domain.NewTransaction(s.opts.newID(), itemID, quantity,
			domain.DisposeDetails{FromLocationID: locationID, Reason: reason}, md.ActorID, s.now(), true)
		if err != nil {
			return err
		}
		tx.Note, tx.PhotoRef = md.Note, md.PhotoRef

		probe := current.Clone()
		if err := probe.Apply(tx.Deltas()); err != nil {
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

	s.logger.Info("disposal requested",
		zap.String("transaction_id", tx.ID),
		zap.String("item_id", itemID),
		zap.String("reason", string(reason)),
		zap.Int("quantity", quantity),
	)
	s.notify(ctx, disposalRequestedNotification(item, loc, *tx, reason))
	return tx, nil
}

// ReviewTransfer approves or rejects a pending transfer. Approval re-checks
// the source balance and moves the stock.
func (s *LedgerService) ReviewTransfer(ctx context.Context, transactionID string, approve bool, approverID string) (result *domain.Transaction, err error) {
	ctx, span := s.startSpan(ctx, "ledger.ReviewTransfer",
		attribute.String("transaction.id", transactionID),
		attribute.Bool("approve", approve),
	)
	defer func() { endSpan(span, err) }()

	tx, item, err := s.review(ctx, domain.KindTransfer, transactionID, approve, approverID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, reviewNotification(item, *tx))
	return tx, nil
}

// ApproveDisposal approves or rejects a pending disposal. Approval re-checks
// the balance, debits the stock and runs the low-stock check.
func (s *LedgerService) ApproveDisposal(ctx context.Context, transactionID string, approve bool, approverID string) (result *domain.Transaction, err error) {
	ctx, span := s.startSpan(ctx, "ledger.ApproveDisposal",
		attribute.String("transaction.id", transactionID),
		attribute.Bool("approve", approve),
	)
	defer func() { endSpan(span, err) }()

	tx, item, err := s.review(ctx, domain.KindDispose, transactionID, approve, approverID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, reviewNotification(item, *tx))
	if tx.Status == domain.StatusApproved {
		s.checkLowStock(ctx, item)
	}
	return tx, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, s.mapError("get transaction", err)
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return tx, nil
}

// ListTransactions returns one page of the ledger, newest first, and the
// number of matching transactions.
func (s *LedgerService) ListTransactions(ctx context.Context, filter port.TransactionFilter) ([]domain.Transaction, int, error) {
	if filter.Offset < 0 || filter.Limit < 0 {
		return nil, 0, fmt.Errorf("%w: offset and limit must not be negative", domain.ErrInvalidArgument)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, 0, fmt.Errorf("%w: range end is before its start", domain.ErrInvalidArgument)
	}

	txs, total, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, 0, s.mapError("list transactions", err)
	}
	return txs, total, nil
}

func (s *LedgerService) ListPendingTransfers(ctx context.Context) ([]domain.Transaction, error) {
	txs, _, err := s.ListTransactions(ctx, port.TransactionFilter{Kind: domain.KindTransfer, Status: domain.StatusPending})
	return txs, err
}

func (s *LedgerService) ListPendingDisposals(ctx context.Context) ([]domain.Transaction, error) {
	txs, _, err := s.ListTransactions(ctx, port.TransactionFilter{Kind: domain.KindDispose, Status: domain.StatusPending})
	return txs, err
}
