package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// ErrConflict is returned when a write loses an optimistic concurrency check:
// the stored item version moved, or a transaction/ticket left its expected state.
var ErrConflict = errors.New("optimistic lock conflict")

type ItemFilter struct {
	ActiveOnly bool
}

type TransactionFilter struct {
	Kind   domain.TransactionKind
	Status domain.TransactionStatus
	ItemID string
	From   time.Time
	To     time.Time
	Offset int
	Limit  int // zero means no limit
}

type RepairFilter struct {
	Status domain.RepairStatus
	ItemID string
}

// Lookups return (nil, nil) when the entity does not exist.
type ItemRepository interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	FindItemBySKU(ctx context.Context, sku string) (*domain.Item, error)
	FindItemByBarcode(ctx context.Context, barcode string) (*domain.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) error

	// UpdateItem persists item if the stored version still equals item.Version
	// and increments the stored version. Returns ErrConflict otherwise.
	UpdateItem(ctx context.Context, item domain.Item) error
}

type LocationRepository interface {
	GetLocation(ctx context.Context, id string) (*domain.Location, error)
	FindLocationByName(ctx context.Context, name string) (*domain.Location, error)
	ListLocations(ctx context.Context, activeOnly bool) ([]domain.Location, error)
	CreateLocation(ctx context.Context, loc domain.Location) error
	UpdateLocation(ctx context.Context, loc domain.Location) error
}

type TransactionRepository interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	// ListTransactions returns one page, newest first, and the total match count.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, int, error)
	CreateTransaction(ctx context.Context, tx domain.Transaction) error

	// ResolveTransaction persists a pending → approved|rejected transition.
	// Returns ErrConflict if the stored transaction is no longer pending.
	ResolveTransaction(ctx context.Context, tx domain.Transaction) error
}

type RepairRepository interface {
	GetRepairTicket(ctx context.Context, id string) (*domain.RepairTicket, error)
	ListRepairTickets(ctx context.Context, filter RepairFilter) ([]domain.RepairTicket, error)
	CreateRepairTicket(ctx context.Context, ticket domain.RepairTicket) error

	// UpdateRepairTicket persists a transition out of sent. Returns ErrConflict
	// if the stored ticket is no longer sent.
	UpdateRepairTicket(ctx context.Context, ticket domain.RepairTicket) error
}

type Repositories interface {
	ItemRepository
	LocationRepository
	TransactionRepository
	RepairRepository
}

// Store is the unit-of-work boundary. Every write made through the
// Repositories handed to fn is committed together or not at all.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Close() error
}
