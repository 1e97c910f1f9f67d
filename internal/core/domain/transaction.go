package domain

import (
	"fmt"
	"time"
)

type TransactionKind string

const (
	KindAdd       TransactionKind = "ADD"
	KindTransfer  TransactionKind = "TRANSFER"
	KindRepairOut TransactionKind = "REPAIR_OUT"
	KindRepairIn  TransactionKind = "REPAIR_IN"
	KindDispose   TransactionKind = "DISPOSE"
)

func ParseTransactionKind(s string) (TransactionKind, error) {
	switch TransactionKind(s) {
	case KindAdd, KindTransfer, KindRepairOut, KindRepairIn, KindDispose:
		return TransactionKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown transaction kind %q", ErrInvalidArgument, s)
}

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
)

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch TransactionStatus(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return TransactionStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown transaction status %q", ErrInvalidArgument, s)
}

func (s TransactionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type DisposalReason string

const (
	ReasonBroken   DisposalReason = "Broken"
	ReasonExpired  DisposalReason = "Expired"
	ReasonObsolete DisposalReason = "Obsolete"
)

func ParseDisposalReason(s string) (DisposalReason, error) {
	switch DisposalReason(s) {
	case ReasonBroken, ReasonExpired, ReasonObsolete:
		return DisposalReason(s), nil
	}
	return "", fmt.Errorf("%w: unknown disposal reason %q", ErrInvalidArgument, s)
}

// Details holds the kind-specific part of a transaction. The set of
// implementations is closed: one per TransactionKind.
type Details interface {
	Kind() TransactionKind
	deltas(quantity int) []Delta
}

type AddDetails struct {
	ToLocationID string
}

type TransferDetails struct {
	FromLocationID string
	ToLocationID   string
}

type RepairOutDetails struct {
	FromLocationID string
	VendorName     string
	SerialNumber   string
	RepairTicketID string
}

type RepairInDetails struct {
	ToLocationID   string
	RepairTicketID string
}

type DisposeDetails struct {
	FromLocationID string
	Reason         DisposalReason
}

func (AddDetails) Kind() TransactionKind       { return KindAdd }
func (TransferDetails) Kind() TransactionKind  { return KindTransfer }
func (RepairOutDetails) Kind() TransactionKind { return KindRepairOut }
func (RepairInDetails) Kind() TransactionKind  { return KindRepairIn }
func (DisposeDetails) Kind() TransactionKind   { return KindDispose }

func (d AddDetails) deltas(q int) []Delta {
	return []Delta{{LocationID: d.ToLocationID, Amount: q}}
}

func (d TransferDetails) deltas(q int) []Delta {
	return []Delta{
		{LocationID: d.FromLocationID, Amount: -q},
		{LocationID: d.ToLocationID, Amount: q},
	}
}

func (d RepairOutDetails) deltas(q int) []Delta {
	return []Delta{{LocationID: d.FromLocationID, Amount: -q}}
}

func (d RepairInDetails) deltas(q int) []Delta {
	return []Delta{{LocationID: d.ToLocationID, Amount: q}}
}

func (d DisposeDetails) deltas(q int) []Delta {
	return []Delta{{LocationID: d.FromLocationID, Amount: -q}}
}

type Transaction struct {
	ID         string
	ItemID     string
	Quantity   int
	Details    Details
	Note       string
	PhotoRef   string
	Status     TransactionStatus
	ApprovedBy string
	ApprovedAt *time.Time
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewTransaction builds a transaction in the initial status for its kind:
// DISPOSE always starts pending, TRANSFER starts pending unless pending is
// false, every other kind is approved on creation.
func NewTransaction(id, itemID string, quantity int, details Details, createdBy string, now time.Time, pending bool) (*Transaction, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, quantity)
	}
	if details == nil {
		return nil, fmt.Errorf("%w: transaction details are required", ErrInvalidArgument)
	}

	status := StatusApproved
	switch details.Kind() {
	case KindDispose:
		status = StatusPending
	case KindTransfer:
		if pending {
			status = StatusPending
		}
	}

	t := &Transaction{
		ID:        id,
		ItemID:    itemID,
		Quantity:  quantity,
		Details:   details,
		Status:    status,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == StatusApproved && details.Kind() == KindTransfer {
		t.ApprovedBy = createdBy
		t.ApprovedAt = &now
	}
	return t, nil
}

func (t Transaction) Kind() TransactionKind {
	if t.Details == nil {
		return ""
	}
	return t.Details.Kind()
}

// Deltas returns the quantity effect of the transaction regardless of status.
func (t Transaction) Deltas() []Delta {
	if t.Details == nil {
		return nil
	}
	return t.Details.deltas(t.Quantity)
}

// Effects returns the quantity effect the transaction has had on its item:
// the deltas when approved, nothing otherwise.
func (t Transaction) Effects() []Delta {
	if t.Status != StatusApproved {
		return nil
	}
	return t.Deltas()
}

// Approve moves a pending transaction to approved.
func (t *Transaction) Approve(by string, at time.Time) error {
	return t.resolve(StatusApproved, by, at)
}

// Reject moves a pending transaction to rejected.
func (t *Transaction) Reject(by string, at time.Time) error {
	return t.resolve(StatusRejected, by, at)
}

func (t *Transaction) resolve(to TransactionStatus, by string, at time.Time) error {
	if t.Status.Terminal() {
		return fmt.Errorf("transaction %s is %s: %w", t.ID, t.Status, ErrAlreadyProcessed)
	}
	if t.Status != StatusPending {
		return fmt.Errorf("%w: transaction %s has unknown status %q", ErrInvalidArgument, t.ID, t.Status)
	}
	t.Status = to
	t.ApprovedBy = by
	t.ApprovedAt = &at
	t.UpdatedAt = at
	return nil
}

// FromLocationID returns the source location, if the kind has one.
func (t Transaction) FromLocationID() string {
	switch d := t.Details.(type) {
	case TransferDetails:
		return d.FromLocationID
	case RepairOutDetails:
		return d.FromLocationID
	case DisposeDetails:
		return d.FromLocationID
	}
	return ""
}

// ToLocationID returns the destination location, if the kind has one.
func (t Transaction) ToLocationID() string {
	switch d := t.Details.(type) {
	case AddDetails:
		return d.ToLocationID
	case TransferDetails:
		return d.ToLocationID
	case RepairInDetails:
		return d.ToLocationID
	}
	return ""
}

// Replay rebuilds an item's location entries from its transaction log,
// oldest first. Only approved transactions contribute.
func Replay(txs []Transaction) ([]LocationEntry, error) {
	item := Item{Locations: []LocationEntry{}}
	for _, t := range txs {
		effects := t.Effects()
		if len(effects) == 0 {
			continue
		}
		if err := item.Apply(effects); err != nil {
			return nil, fmt.Errorf("replay transaction %s: %w", t.ID, err)
		}
	}
	return item.Locations, nil
}
