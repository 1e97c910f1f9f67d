package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// review resolves a pending transaction of the given kind. A missing
// transaction or one of another kind is ErrNotFound; a terminal one is
// ErrAlreadyProcessed and nothing is applied twice.
func (s *LedgerService) review(ctx context.Context, kind domain.TransactionKind, transactionID string, approve bool, approverID string) (*domain.Transaction, domain.Item, error) {
	if approverID == "" {
		return nil, domain.Item{}, fmt.Errorf("%w: approver is required", domain.ErrInvalidArgument)
	}

	// the item id is needed before the lock can be taken
	pre, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, domain.Item{}, s.mapError("review", err)
	}
	if pre == nil || pre.Kind() != kind {
		return nil, domain.Item{}, fmt.Errorf("%s transaction %s: %w", kind, transactionID, domain.ErrNotFound)
	}

	var (
		tx   *domain.Transaction
		item domain.Item
	)
	err = s.withItem(ctx, "review", pre.ItemID, func(ctx context.Context, r port.Repositories) error {
		current, err := r.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%s transaction %s: %w", kind, transactionID, domain.ErrNotFound)
		}

		stock, err := requireItem(ctx, r, current.ItemID)
		if err != nil {
			return err
		}

		now := s.now()
		if !approve {
			if err := current.Reject(approverID, now); err != nil {
				return err
			}
			if err := r.ResolveTransaction(ctx, *current); err != nil {
				return err
			}
			tx, item = current, *stock
			return nil
		}

		if err := current.Approve(approverID, now); err != nil {
			return err
		}
		if to := current.ToLocationID(); to != "" {
			if _, err := requireLocation(ctx, r, to, true); err != nil {
				return err
			}
		}
		if err := stock.Apply(current.Deltas()); err != nil {
			return err
		}
		stock.UpdatedAt = now
		if err := r.UpdateItem(ctx, *stock); err != nil {
			return err
		}
		if err := r.ResolveTransaction(ctx, *current); err != nil {
			return err
		}
		tx, item = current, *stock
		return nil
	})
	if err != nil {
		return nil, domain.Item{}, err
	}

	s.logger.Info("transaction reviewed",
		zap.String("transaction_id", tx.ID),
		zap.String("kind", string(kind)),
		zap.String("status", string(tx.Status)),
		zap.String("approver", approverID),
	)
	return tx, item, nil
}
