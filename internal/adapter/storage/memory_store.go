package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// MemoryStore keeps all state in process. Writes made inside WithinTx are
// staged and applied under one lock at commit, after optimistic checks.
type MemoryStore struct {
	mu           sync.RWMutex
	items        map[string]domain.Item
	itemOrder    []string
	locations    map[string]domain.Location
	transactions map[string]domain.Transaction
	txOrder      []string
	repairs      map[string]domain.RepairTicket
	repairOrder  []string

	failNext error
}

var _ port.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:        make(map[string]domain.Item),
		locations:    make(map[string]domain.Location),
		transactions: make(map[string]domain.Transaction),
		repairs:      make(map[string]domain.RepairTicket),
	}
}

// FailNextCommit makes the next commit return err without applying anything.
func (m *MemoryStore) FailNextCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := m.begin()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return m.commit(tx)
}

func (m *MemoryStore) write(ctx context.Context, fn func(r port.Repositories) error) error {
	return m.WithinTx(ctx, func(_ context.Context, r port.Repositories) error { return fn(r) })
}

func (m *MemoryStore) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return m.begin().GetItem(ctx, id)
}

func (m *MemoryStore) FindItemBySKU(ctx context.Context, sku string) (*domain.Item, error) {
	return m.begin().FindItemBySKU(ctx, sku)
}

func (m *MemoryStore) FindItemByBarcode(ctx context.Context, barcode string) (*domain.Item, error) {
	return m.begin().FindItemByBarcode(ctx, barcode)
}

func (m *MemoryStore) ListItems(ctx context.Context, filter port.ItemFilter) ([]domain.Item, error) {
	return m.begin().ListItems(ctx, filter)
}

func (m *MemoryStore) CreateItem(ctx context.Context, item domain.Item) error {
	return m.write(ctx, func(r port.Repositories) error { return r.CreateItem(ctx, item) })
}

func (m *MemoryStore) UpdateItem(ctx context.Context, item domain.Item) error {
	return m.write(ctx, func(r port.Repositories) error { return r.UpdateItem(ctx, item) })
}

func (m *MemoryStore) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	return m.begin().GetLocation(ctx, id)
}

func (m *MemoryStore) FindLocationByName(ctx context.Context, name string) (*domain.Location, error) {
	return m.begin().FindLocationByName(ctx, name)
}

func (m *MemoryStore) ListLocations(ctx context.Context, activeOnly bool) ([]domain.Location, error) {
	return m.begin().ListLocations(ctx, activeOnly)
}

func (m *MemoryStore) CreateLocation(ctx context.Context, loc domain.Location) error {
	return m.write(ctx, func(r port.Repositories) error { return r.CreateLocation(ctx, loc) })
}

func (m *MemoryStore) UpdateLocation(ctx context.Context, loc domain.Location) error {
	return m.write(ctx, func(r port.Repositories) error { return r.UpdateLocation(ctx, loc) })
}

func (m *MemoryStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return m.begin().GetTransaction(ctx, id)
}

func (m *MemoryStore) ListTransactions(ctx context.Context, filter port.TransactionFilter) ([]domain.Transaction, int, error) {
	return m.begin().ListTransactions(ctx, filter)
}

func (m *MemoryStore) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	return m.write(ctx, func(r port.Repositories) error { return r.CreateTransaction(ctx, tx) })
}

func (m *MemoryStore) ResolveTransaction(ctx context.Context, tx domain.Transaction) error {
	return m.write(ctx, func(r port.Repositories) error { return r.ResolveTransaction(ctx, tx) })
}

func (m *MemoryStore) GetRepairTicket(ctx context.Context, id string) (*domain.RepairTicket, error) {
	return m.begin().GetRepairTicket(ctx, id)
}

func (m *MemoryStore) ListRepairTickets(ctx context.Context, filter port.RepairFilter) ([]domain.RepairTicket, error) {
	return m.begin().ListRepairTickets(ctx, filter)
}

func (m *MemoryStore) CreateRepairTicket(ctx context.Context, ticket domain.RepairTicket) error {
	return m.write(ctx, func(r port.Repositories) error { return r.CreateRepairTicket(ctx, ticket) })
}

func (m *MemoryStore) UpdateRepairTicket(ctx context.Context, ticket domain.RepairTicket) error {
	return m.write(ctx, func(r port.Repositories) error { return r.UpdateRepairTicket(ctx, ticket) })
}

type stagedItem struct {
	item        domain.Item
	created     bool
	baseVersion int
}

type stagedLocation struct {
	loc     domain.Location
	created bool
}

type stagedTransaction struct {
	tx      domain.Transaction
	created bool
}

type stagedRepair struct {
	ticket  domain.RepairTicket
	created bool
}

// memoryTx is a read-through view over the store with a private write set.
type memoryTx struct {
	store        *MemoryStore
	items        map[string]stagedItem
	newItems     []string
	locations    map[string]stagedLocation
	transactions map[string]stagedTransaction
	newTxs       []string
	repairs      map[string]stagedRepair
	newRepairs   []string
}

func (m *MemoryStore) begin() *memoryTx {
	return &memoryTx{
		store:        m,
		items:        make(map[string]stagedItem),
		locations:    make(map[string]stagedLocation),
		transactions: make(map[string]stagedTransaction),
		repairs:      make(map[string]stagedRepair),
	}
}

func (t *memoryTx) GetItem(_ context.Context, id string) (*domain.Item, error) {
	if s, ok := t.items[id]; ok {
		item := s.item.Clone()
		return &item, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if item, ok := t.store.items[id]; ok {
		c := item.Clone()
		return &c, nil
	}
	return nil, nil
}

func (t *memoryTx) findItem(match func(domain.Item) bool) *domain.Item {
	for _, item := range t.allItems() {
		if match(item) {
			return &item
		}
	}
	return nil
}

func (t *memoryTx) FindItemBySKU(_ context.Context, sku string) (*domain.Item, error) {
	return t.findItem(func(i domain.Item) bool { return i.SKU == sku }), nil
}

func (t *memoryTx) FindItemByBarcode(_ context.Context, barcode string) (*domain.Item, error) {
	if barcode == "" {
		return nil, nil
	}
	return t.findItem(func(i domain.Item) bool { return i.Barcode == barcode }), nil
}

func (t *memoryTx) ListItems(_ context.Context, filter port.ItemFilter) ([]domain.Item, error) {
	var out []domain.Item
	for _, item := range t.allItems() {
		if filter.ActiveOnly && item.Status != domain.ItemStatusActive {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// allItems merges committed and staged items in creation order.
func (t *memoryTx) allItems() []domain.Item {
	t.store.mu.RLock()
	out := make([]domain.Item, 0, len(t.store.itemOrder)+len(t.newItems))
	for _, id := range t.store.itemOrder {
		if s, ok := t.items[id]; ok {
			out = append(out, s.item.Clone())
			continue
		}
		out = append(out, t.store.items[id].Clone())
	}
	t.store.mu.RUnlock()

	for _, id := range t.newItems {
		out = append(out, t.items[id].item.Clone())
	}
	return out
}

func (t *memoryTx) CreateItem(_ context.Context, item domain.Item) error {
	if _, ok := t.items[item.ID]; ok {
		return fmt.Errorf("item %s: %w", item.ID, domain.ErrAlreadyExists)
	}
	item.Version = 0
	t.items[item.ID] = stagedItem{item: item.Clone(), created: true}
	t.newItems = append(t.newItems, item.ID)
	return nil
}

func (t *memoryTx) UpdateItem(_ context.Context, item domain.Item) error {
	base := item.Version
	if s, ok := t.items[item.ID]; ok {
		if s.item.Version != item.Version {
			return port.ErrConflict
		}
		base = s.baseVersion
		next := item.Clone()
		if !s.created {
			next.Version = item.Version + 1
		}
		t.items[item.ID] = stagedItem{item: next, created: s.created, baseVersion: base}
		return nil
	}

	next := item.Clone()
	next.Version = item.Version + 1
	t.items[item.ID] = stagedItem{item: next, baseVersion: base}
	return nil
}

func (t *memoryTx) GetLocation(_ context.Context, id string) (*domain.Location, error) {
	if s, ok := t.locations[id]; ok {
		loc := s.loc
		return &loc, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if loc, ok := t.store.locations[id]; ok {
		return &loc, nil
	}
	return nil, nil
}

func (t *memoryTx) FindLocationByName(ctx context.Context, name string) (*domain.Location, error) {
	locs, err := t.ListLocations(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, loc := range locs {
		if loc.Name == name {
			return &loc, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) ListLocations(_ context.Context, activeOnly bool) ([]domain.Location, error) {
	merged := make(map[string]domain.Location)
	t.store.mu.RLock()
	for id, loc := range t.store.locations {
		merged[id] = loc
	}
	t.store.mu.RUnlock()
	for id, s := range t.locations {
		merged[id] = s.loc
	}

	out := make([]domain.Location, 0, len(merged))
	for _, loc := range merged {
		if activeOnly && !loc.Active {
			continue
		}
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memoryTx) CreateLocation(_ context.Context, loc domain.Location) error {
	if _, ok := t.locations[loc.ID]; ok {
		return fmt.Errorf("location %s: %w", loc.ID, domain.ErrAlreadyExists)
	}
	t.locations[loc.ID] = stagedLocation{loc: loc, created: true}
	return nil
}

func (t *memoryTx) UpdateLocation(_ context.Context, loc domain.Location) error {
	created := false
	if s, ok := t.locations[loc.ID]; ok {
		created = s.created
	}
	t.locations[loc.ID] = stagedLocation{loc: loc, created: created}
	return nil
}

func (t *memoryTx) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	if s, ok := t.transactions[id]; ok {
		tx := cloneTransaction(s.tx)
		return &tx, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if tx, ok := t.store.transactions[id]; ok {
		c := cloneTransaction(tx)
		return &c, nil
	}
	return nil, nil
}

func (t *memoryTx) ListTransactions(_ context.Context, filter port.TransactionFilter) ([]domain.Transaction, int, error) {
	t.store.mu.RLock()
	all := make([]domain.Transaction, 0, len(t.store.txOrder)+len(t.newTxs))
	for _, id := range t.store.txOrder {
		if s, ok := t.transactions[id]; ok {
			all = append(all, cloneTransaction(s.tx))
			continue
		}
		all = append(all, cloneTransaction(t.store.transactions[id]))
	}
	t.store.mu.RUnlock()
	for _, id := range t.newTxs {
		all = append(all, cloneTransaction(t.transactions[id].tx))
	}

	var matched []domain.Transaction
	for i := len(all) - 1; i >= 0; i-- {
		if matchTransaction(all[i], filter) {
			matched = append(matched, all[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	return page(matched, filter.Offset, filter.Limit), total, nil
}

func matchTransaction(tx domain.Transaction, f port.TransactionFilter) bool {
	if f.Kind != "" && tx.Kind() != f.Kind {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if f.ItemID != "" && tx.ItemID != f.ItemID {
		return false
	}
	if !f.From.IsZero() && tx.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.CreatedAt.After(f.To) {
		return false
	}
	return true
}

func page[T any](in []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (t *memoryTx) CreateTransaction(_ context.Context, tx domain.Transaction) error {
	if _, ok := t.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, domain.ErrAlreadyExists)
	}
	t.transactions[tx.ID] = stagedTransaction{tx: cloneTransaction(tx), created: true}
	t.newTxs = append(t.newTxs, tx.ID)
	return nil
}

func (t *memoryTx) ResolveTransaction(_ context.Context, tx domain.Transaction) error {
	if s, ok := t.transactions[tx.ID]; ok {
		if s.tx.Status != domain.StatusPending {
			return port.ErrConflict
		}
		t.transactions[tx.ID] = stagedTransaction{tx: cloneTransaction(tx), created: s.created}
		return nil
	}
	t.transactions[tx.ID] = stagedTransaction{tx: cloneTransaction(tx)}
	return nil
}

func (t *memoryTx) GetRepairTicket(_ context.Context, id string) (*domain.RepairTicket, error) {
	if s, ok := t.repairs[id]; ok {
		ticket := cloneRepair(s.ticket)
		return &ticket, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if ticket, ok := t.store.repairs[id]; ok {
		c := cloneRepair(ticket)
		return &c, nil
	}
	return nil, nil
}

func (t *memoryTx) ListRepairTickets(_ context.Context, filter port.RepairFilter) ([]domain.RepairTicket, error) {
	t.store.mu.RLock()
	all := make([]domain.RepairTicket, 0, len(t.store.repairOrder)+len(t.newRepairs))
	for _, id := range t.store.repairOrder {
		if s, ok := t.repairs[id]; ok {
			all = append(all, cloneRepair(s.ticket))
			continue
		}
		all = append(all, cloneRepair(t.store.repairs[id]))
	}
	t.store.mu.RUnlock()
	for _, id := range t.newRepairs {
		all = append(all, cloneRepair(t.repairs[id].ticket))
	}

	var out []domain.RepairTicket
	for i := len(all) - 1; i >= 0; i-- {
		ticket := all[i]
		if filter.Status != "" && ticket.Status != filter.Status {
			continue
		}
		if filter.ItemID != "" && ticket.ItemID != filter.ItemID {
			continue
		}
		out = append(out, ticket)
	}
	return out, nil
}

func (t *memoryTx) CreateRepairTicket(_ context.Context, ticket domain.RepairTicket) error {
	if _, ok := t.repairs[ticket.ID]; ok {
		return fmt.Errorf("repair ticket %s: %w", ticket.ID, domain.ErrAlreadyExists)
	}
	t.repairs[ticket.ID] = stagedRepair{ticket: cloneRepair(ticket), created: true}
	t.newRepairs = append(t.newRepairs, ticket.ID)
	return nil
}

func (t *memoryTx) UpdateRepairTicket(_ context.Context, ticket domain.RepairTicket) error {
	if s, ok := t.repairs[ticket.ID]; ok {
		if s.ticket.Status != domain.RepairStatusSent {
			return port.ErrConflict
		}
		t.repairs[ticket.ID] = stagedRepair{ticket: cloneRepair(ticket), created: s.created}
		return nil
	}
	t.repairs[ticket.ID] = stagedRepair{ticket: cloneRepair(ticket)}
	return nil
}

// commit validates the write set against committed state and applies it.
func (m *MemoryStore) commit(t *memoryTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}

	if err := m.checkItems(t); err != nil {
		return err
	}
	if err := m.checkLocations(t); err != nil {
		return err
	}
	if err := m.checkTransactions(t); err != nil {
		return err
	}
	if err := m.checkRepairs(t); err != nil {
		return err
	}

	for id, s := range t.items {
		m.items[id] = s.item
	}
	m.itemOrder = append(m.itemOrder, t.newItems...)
	for id, s := range t.locations {
		m.locations[id] = s.loc
	}
	for id, s := range t.transactions {
		m.transactions[id] = s.tx
	}
	m.txOrder = append(m.txOrder, t.newTxs...)
	for id, s := range t.repairs {
		m.repairs[id] = s.ticket
	}
	m.repairOrder = append(m.repairOrder, t.newRepairs...)
	return nil
}

func (m *MemoryStore) checkItems(t *memoryTx) error {
	if len(t.items) == 0 {
		return nil
	}

	final := make(map[string]domain.Item, len(m.items)+len(t.items))
	for id, item := range m.items {
		final[id] = item
	}
	for id, s := range t.items {
		current, exists := m.items[id]
		if s.created && exists {
			return fmt.Errorf("item %s: %w", id, domain.ErrAlreadyExists)
		}
		if !s.created && (!exists || current.Version != s.baseVersion) {
			return port.ErrConflict
		}
		final[id] = s.item
	}

	for id, s := range t.items {
		for otherID, other := range final {
			if otherID == id {
				continue
			}
			if other.SKU == s.item.SKU {
				return fmt.Errorf("sku %s: %w", s.item.SKU, domain.ErrAlreadyExists)
			}
			if s.item.Barcode != "" && other.Barcode == s.item.Barcode {
				return fmt.Errorf("barcode %s: %w", s.item.Barcode, domain.ErrAlreadyExists)
			}
		}
	}
	return nil
}

func (m *MemoryStore) checkLocations(t *memoryTx) error {
	if len(t.locations) == 0 {
		return nil
	}

	final := make(map[string]domain.Location, len(m.locations)+len(t.locations))
	for id, loc := range m.locations {
		final[id] = loc
	}
	for id, s := range t.locations {
		_, exists := m.locations[id]
		if s.created && exists {
			return fmt.Errorf("location %s: %w", id, domain.ErrAlreadyExists)
		}
		if !s.created && !exists {
			return port.ErrConflict
		}
		final[id] = s.loc
	}

	for id, s := range t.locations {
		for otherID, other := range final {
			if otherID != id && other.Name == s.loc.Name {
				return fmt.Errorf("location name %s: %w", s.loc.Name, domain.ErrAlreadyExists)
			}
		}
	}
	return nil
}

func (m *MemoryStore) checkTransactions(t *memoryTx) error {
	for id, s := range t.transactions {
		current, exists := m.transactions[id]
		if s.created {
			if exists {
				return fmt.Errorf("transaction %s: %w", id, domain.ErrAlreadyExists)
			}
			continue
		}
		if !exists || current.Status != domain.StatusPending {
			return port.ErrConflict
		}
	}
	return nil
}

func (m *MemoryStore) checkRepairs(t *memoryTx) error {
	for id, s := range t.repairs {
		current, exists := m.repairs[id]
		if s.created {
			if exists {
				return fmt.Errorf("repair ticket %s: %w", id, domain.ErrAlreadyExists)
			}
			continue
		}
		if !exists || current.Status != domain.RepairStatusSent {
			return port.ErrConflict
		}
	}
	return nil
}

func cloneTransaction(tx domain.Transaction) domain.Transaction {
	if tx.ApprovedAt != nil {
		at := *tx.ApprovedAt
		tx.ApprovedAt = &at
	}
	return tx
}

func cloneRepair(ticket domain.RepairTicket) domain.RepairTicket {
	if ticket.ReturnedAt != nil {
		at := *ticket.ReturnedAt
		ticket.ReturnedAt = &at
	}
	return ticket
}
