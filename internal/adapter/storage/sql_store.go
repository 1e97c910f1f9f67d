package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

const mysqlDuplicateEntry = 1062

// SQLStore persists the ledger through sqlx. The same queries run on MySQL
// and SQLite.
type SQLStore struct {
	sqlRepos
	db *sqlx.DB
}

var _ port.Store = (*SQLStore)(nil)

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{sqlRepos: sqlRepos{q: db}, db: db}
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, sqlRepos{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Item writes touch two tables; outside WithinTx they get their own transaction.

func (s *SQLStore) CreateItem(ctx context.Context, item domain.Item) error {
	return s.WithinTx(ctx, func(ctx context.Context, r port.Repositories) error {
		return r.CreateItem(ctx, item)
	})
}

func (s *SQLStore) UpdateItem(ctx context.Context, item domain.Item) error {
	return s.WithinTx(ctx, func(ctx context.Context, r port.Repositories) error {
		return r.UpdateItem(ctx, item)
	})
}

type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type sqlRepos struct {
	q queryer
}

type itemRow struct {
	ID        string         `db:"id"`
	SKU       string         `db:"sku"`
	Barcode   sql.NullString `db:"barcode"`
	Name      string         `db:"name"`
	Unit      string         `db:"unit"`
	Threshold int            `db:"threshold"`
	Status    string         `db:"status"`
	ImageRef  string         `db:"image_ref"`
	Version   int            `db:"version"`
	CreatedBy string         `db:"created_by"`
	CreatedAt int64          `db:"created_at"`
	UpdatedAt int64          `db:"updated_at"`
}

type entryRow struct {
	ItemID     string `db:"item_id"`
	LocationID string `db:"location_id"`
	Quantity   int    `db:"quantity"`
}

const itemColumns = `id, sku, barcode, name, unit, threshold, status, image_ref, version, created_by, created_at, updated_at`

func (row itemRow) toDomain(entries []domain.LocationEntry) domain.Item {
	if entries == nil {
		entries = []domain.LocationEntry{}
	}
	return domain.Item{
		ID:        row.ID,
		SKU:       row.SKU,
		Barcode:   row.Barcode.String,
		Name:      row.Name,
		Unit:      row.Unit,
		Threshold: row.Threshold,
		Status:    domain.ItemStatus(row.Status),
		ImageRef:  row.ImageRef,
		Locations: entries,
		Version:   row.Version,
		CreatedBy: row.CreatedBy,
		CreatedAt: fromNanos(row.CreatedAt),
		UpdatedAt: fromNanos(row.UpdatedAt),
	}
}

func (r sqlRepos) getItemWhere(ctx context.Context, where string, arg any) (*domain.Item, error) {
	var row itemRow
	err := r.q.GetContext(ctx, &row, `SELECT `+itemColumns+` FROM items WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	var entries []entryRow
	if err := r.q.SelectContext(ctx, &entries, `
		SELECT item_id, location_id, quantity
		FROM item_locations WHERE item_id = ? ORDER BY position`, row.ID,
	); err != nil {
		return nil, fmt.Errorf("query item locations: %w", err)
	}

	item := row.toDomain(toEntries(entries))
	return &item, nil
}

func (r sqlRepos) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return r.getItemWhere(ctx, `id = ?`, id)
}

func (r sqlRepos) FindItemBySKU(ctx context.Context, sku string) (*domain.Item, error) {
	return r.getItemWhere(ctx, `sku = ?`, sku)
}

func (r sqlRepos) FindItemByBarcode(ctx context.Context, barcode string) (*domain.Item, error) {
	if barcode == "" {
		return nil, nil
	}
	return r.getItemWhere(ctx, `barcode = ?`, barcode)
}

func (r sqlRepos) ListItems(ctx context.Context, filter port.ItemFilter) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	if filter.ActiveOnly {
		query += ` WHERE status = ?`
		args = append(args, string(domain.ItemStatusActive))
	}
	query += ` ORDER BY created_at, id`

	var rows []itemRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	var entries []entryRow
	if err := r.q.SelectContext(ctx, &entries, `
		SELECT item_id, location_id, quantity
		FROM item_locations ORDER BY item_id, position`,
	); err != nil {
		return nil, fmt.Errorf("list item locations: %w", err)
	}

	byItem := make(map[string][]domain.LocationEntry)
	for _, e := range entries {
		byItem[e.ItemID] = append(byItem[e.ItemID], domain.LocationEntry{LocationID: e.LocationID, Quantity: e.Quantity})
	}

	items := make([]domain.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain(byItem[row.ID]))
	}
	return items, nil
}

func (r sqlRepos) CreateItem(ctx context.Context, item domain.Item) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		item.ID, item.SKU, nullString(item.Barcode), item.Name, item.Unit, item.Threshold,
		string(item.Status), item.ImageRef, item.CreatedBy, toNanos(item.CreatedAt), toNanos(item.UpdatedAt),
	)
	if err != nil {
		return mapWriteError("insert item", err)
	}
	return r.writeEntries(ctx, item)
}

func (r sqlRepos) UpdateItem(ctx context.Context, item domain.Item) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE items
		SET sku = ?, barcode = ?, name = ?, unit = ?, threshold = ?, status = ?, image_ref = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		item.SKU, nullString(item.Barcode), item.Name, item.Unit, item.Threshold, string(item.Status),
		item.ImageRef, toNanos(item.UpdatedAt), item.ID, item.Version,
	)
	if err != nil {
		return mapWriteError("update item", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrConflict
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM item_locations WHERE item_id = ?`, item.ID); err != nil {
		return fmt.Errorf("clear item locations: %w", err)
	}
	return r.writeEntries(ctx, item)
}

func (r sqlRepos) writeEntries(ctx context.Context, item domain.Item) error {
	for pos, e := range item.Locations {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO item_locations (item_id, location_id, position, quantity)
			VALUES (?, ?, ?, ?)`,
			item.ID, e.LocationID, pos, e.Quantity,
		); err != nil {
			return fmt.Errorf("insert item location: %w", err)
		}
	}
	return nil
}

type locationRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Address   string `db:"address"`
	Active    bool   `db:"active"`
	CreatedBy string `db:"created_by"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

const locationColumns = `id, name, address, active, created_by, created_at, updated_at`

func (row locationRow) toDomain() domain.Location {
	return domain.Location{
		ID:        row.ID,
		Name:      row.Name,
		Address:   row.Address,
		Active:    row.Active,
		CreatedBy: row.CreatedBy,
		CreatedAt: fromNanos(row.CreatedAt),
		UpdatedAt: fromNanos(row.UpdatedAt),
	}
}

func (r sqlRepos) getLocationWhere(ctx context.Context, where string, arg any) (*domain.Location, error) {
	var row locationRow
	err := r.q.GetContext(ctx, &row, `SELECT `+locationColumns+` FROM locations WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query location: %w", err)
	}
	loc := row.toDomain()
	return &loc, nil
}

func (r sqlRepos) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	return r.getLocationWhere(ctx, `id = ?`, id)
}

func (r sqlRepos) FindLocationByName(ctx context.Context, name string) (*domain.Location, error) {
	return r.getLocationWhere(ctx, `name = ?`, name)
}

func (r sqlRepos) ListLocations(ctx context.Context, activeOnly bool) ([]domain.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations`
	var args []any
	if activeOnly {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name`

	var rows []locationRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	locs := make([]domain.Location, 0, len(rows))
	for _, row := range rows {
		locs = append(locs, row.toDomain())
	}
	return locs, nil
}

func (r sqlRepos) CreateLocation(ctx context.Context, loc domain.Location) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO locations (`+locationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loc.ID, loc.Name, loc.Address, loc.Active, loc.CreatedBy, toNanos(loc.CreatedAt), toNanos(loc.UpdatedAt),
	)
	return mapWriteError("insert location", err)
}

func (r sqlRepos) UpdateLocation(ctx context.Context, loc domain.Location) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE locations SET name = ?, address = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		loc.Name, loc.Address, loc.Active, toNanos(loc.UpdatedAt), loc.ID,
	)
	return mapWriteError("update location", err)
}

// transactionRow flattens the kind-specific details into nullable columns.
type transactionRow struct {
	ID             string         `db:"id"`
	Kind           string         `db:"kind"`
	ItemID         string         `db:"item_id"`
	FromLocationID sql.NullString `db:"from_location_id"`
	ToLocationID   sql.NullString `db:"to_location_id"`
	Quantity       int            `db:"quantity"`
	Note           string         `db:"note"`
	PhotoRef       string         `db:"photo_ref"`
	VendorName     sql.NullString `db:"vendor_name"`
	SerialNumber   sql.NullString `db:"serial_number"`
	Reason         sql.NullString `db:"reason"`
	RepairTicketID sql.NullString `db:"repair_ticket_id"`
	Status         string         `db:"status"`
	ApprovedBy     sql.NullString `db:"approved_by"`
	ApprovedAt     sql.NullInt64  `db:"approved_at"`
	CreatedBy      string         `db:"created_by"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

const transactionColumns = `id, kind, item_id, from_location_id, to_location_id, quantity, note, photo_ref,
	vendor_name, serial_number, reason, repair_ticket_id, status, approved_by, approved_at,
	created_by, created_at, updated_at`

func toTransactionRow(tx domain.Transaction) transactionRow {
	row := transactionRow{
		ID:             tx.ID,
		Kind:           string(tx.Kind()),
		ItemID:         tx.ItemID,
		FromLocationID: nullString(tx.FromLocationID()),
		ToLocationID:   nullString(tx.ToLocationID()),
		Quantity:       tx.Quantity,
		Note:           tx.Note,
		PhotoRef:       tx.PhotoRef,
		Status:         string(tx.Status),
		ApprovedBy:     nullString(tx.ApprovedBy),
		CreatedBy:      tx.CreatedBy,
		CreatedAt:      toNanos(tx.CreatedAt),
		UpdatedAt:      toNanos(tx.UpdatedAt),
	}
	if tx.ApprovedAt != nil {
		row.ApprovedAt = sql.NullInt64{Int64: toNanos(*tx.ApprovedAt), Valid: true}
	}

	switch d := tx.Details.(type) {
	case domain.RepairOutDetails:
		row.VendorName = nullString(d.VendorName)
		row.SerialNumber = nullString(d.SerialNumber)
		row.RepairTicketID = nullString(d.RepairTicketID)
	case domain.RepairInDetails:
		row.RepairTicketID = nullString(d.RepairTicketID)
	case domain.DisposeDetails:
		row.Reason = nullString(string(d.Reason))
	}
	return row
}

func (row transactionRow) toDomain() (domain.Transaction, error) {
	kind, err := domain.ParseTransactionKind(row.Kind)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", row.ID, err)
	}

	var details domain.Details
	switch kind {
	case domain.KindAdd:
		details = domain.AddDetails{ToLocationID: row.ToLocationID.String}
	case domain.KindTransfer:
		details = domain.TransferDetails{FromLocationID: row.FromLocationID.String, ToLocationID: row.ToLocationID.String}
	case domain.KindRepairOut:
		details = domain.RepairOutDetails{
			FromLocationID: row.FromLocationID.String,
			VendorName:     row.VendorName.String,
			SerialNumber:   row.SerialNumber.String,
			RepairTicketID: row.RepairTicketID.String,
		}
	case domain.KindRepairIn:
		details = domain.RepairInDetails{ToLocationID: row.ToLocationID.String, RepairTicketID: row.RepairTicketID.String}
	case domain.KindDispose:
		details = domain.DisposeDetails{FromLocationID: row.FromLocationID.String, Reason: domain.DisposalReason(row.Reason.String)}
	}

	tx := domain.Transaction{
		ID:         row.ID,
		ItemID:     row.ItemID,
		Quantity:   row.Quantity,
		Details:    details,
		Note:       row.Note,
		PhotoRef:   row.PhotoRef,
		Status:     domain.TransactionStatus(row.Status),
		ApprovedBy: row.ApprovedBy.String,
		CreatedBy:  row.CreatedBy,
		CreatedAt:  fromNanos(row.CreatedAt),
		UpdatedAt:  fromNanos(row.UpdatedAt),
	}
	if row.ApprovedAt.Valid {
		at := fromNanos(row.ApprovedAt.Int64)
		tx.ApprovedAt = &at
	}
	return tx, nil
}

func (r sqlRepos) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var row transactionRow
	err := r.q.GetContext(ctx, &row, `SELECT `+transactionColumns+` FROM stock_transactions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}

	tx, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r sqlRepos) ListTransactions(ctx context.Context, filter port.TransactionFilter) ([]domain.Transaction, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Kind != "" {
		conds = append(conds, `kind = ?`)
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.ItemID != "" {
		conds = append(conds, `item_id = ?`)
		args = append(args, filter.ItemID)
	}
	if !filter.From.IsZero() {
		conds = append(conds, `created_at >= ?`)
		args = append(args, toNanos(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, `created_at <= ?`)
		args = append(args, toNanos(filter.To))
	}

	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}

	var total int
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_transactions`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM stock_transactions` + where +
		` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	} else if filter.Offset > 0 {
		// LIMIT is mandatory before OFFSET in both dialects
		query += ` LIMIT ? OFFSET ?`
		args = append(args, int64(1<<62), filter.Offset)
	}

	var rows []transactionRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}
	return txs, total, nil
}

func (r sqlRepos) CreateTransaction(ctx context.Context, tx domain.Transaction) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO stock_transactions (`+transactionColumns+`)
		VALUES (:id, :kind, :item_id, :from_location_id, :to_location_id, :quantity, :note, :photo_ref,
			:vendor_name, :serial_number, :reason, :repair_ticket_id, :status, :approved_by, :approved_at,
			:created_by, :created_at, :updated_at)`,
		toTransactionRow(tx),
	)
	return mapWriteError("insert transaction", err)
}

func (r sqlRepos) ResolveTransaction(ctx context.Context, tx domain.Transaction) error {
	row := toTransactionRow(tx)
	result, err := r.q.ExecContext(ctx, `
		UPDATE stock_transactions
		SET status = ?, approved_by = ?, approved_at = ?, note = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		row.Status, row.ApprovedBy, row.ApprovedAt, row.Note, row.UpdatedAt,
		row.ID, string(domain.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("resolve transaction: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrConflict
	}
	return nil
}

type repairRow struct {
	ID           string        `db:"id"`
	ItemID       string        `db:"item_id"`
	LocationID   string        `db:"location_id"`
	Quantity     int           `db:"quantity"`
	VendorName   string        `db:"vendor_name"`
	SerialNumber string        `db:"serial_number"`
	Note         string        `db:"note"`
	PhotoRef     string        `db:"photo_ref"`
	Status       string        `db:"status"`
	SentAt       int64         `db:"sent_at"`
	ReturnedAt   sql.NullInt64 `db:"returned_at"`
	CreatedBy    string        `db:"created_by"`
	CreatedAt    int64         `db:"created_at"`
	UpdatedAt    int64         `db:"updated_at"`
}

const repairColumns = `id, item_id, location_id, quantity, vendor_name, serial_number, note, photo_ref,
	status, sent_at, returned_at, created_by, created_at, updated_at`

func toRepairRow(t domain.RepairTicket) repairRow {
	row := repairRow{
		ID:           t.ID,
		ItemID:       t.ItemID,
		LocationID:   t.LocationID,
		Quantity:     t.Quantity,
		VendorName:   t.VendorName,
		SerialNumber: t.SerialNumber,
		Note:         t.Note,
		PhotoRef:     t.PhotoRef,
		Status:       string(t.Status),
		SentAt:       toNanos(t.SentAt),
		CreatedBy:    t.CreatedBy,
		CreatedAt:    toNanos(t.CreatedAt),
		UpdatedAt:    toNanos(t.UpdatedAt),
	}
	if t.ReturnedAt != nil {
		row.ReturnedAt = sql.NullInt64{Int64: toNanos(*t.ReturnedAt), Valid: true}
	}
	return row
}

func (row repairRow) toDomain() domain.RepairTicket {
	t := domain.RepairTicket{
		ID:           row.ID,
		ItemID:       row.ItemID,
		LocationID:   row.LocationID,
		Quantity:     row.Quantity,
		VendorName:   row.VendorName,
		SerialNumber: row.SerialNumber,
		Note:         row.Note,
		PhotoRef:     row.PhotoRef,
		Status:       domain.RepairStatus(row.Status),
		SentAt:       fromNanos(row.SentAt),
		CreatedBy:    row.CreatedBy,
		CreatedAt:    fromNanos(row.CreatedAt),
		UpdatedAt:    fromNanos(row.UpdatedAt),
	}
	if row.ReturnedAt.Valid {
		at := fromNanos(row.ReturnedAt.Int64)
		t.ReturnedAt = &at
	}
	return t
}

func (r sqlRepos) GetRepairTicket(ctx context.Context, id string) (*domain.RepairTicket, error) {
	var row repairRow
	err := r.q.GetContext(ctx, &row, `SELECT `+repairColumns+` FROM repair_tickets WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query repair ticket: %w", err)
	}
	t := row.toDomain()
	return &t, nil
}

func (r sqlRepos) ListRepairTickets(ctx context.Context, filter port.RepairFilter) ([]domain.RepairTicket, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.ItemID != "" {
		conds = append(conds, `item_id = ?`)
		args = append(args, filter.ItemID)
	}

	query := `SELECT ` + repairColumns + ` FROM repair_tickets`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY seq DESC`

	var rows []repairRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list repair tickets: %w", err)
	}

	tickets := make([]domain.RepairTicket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, row.toDomain())
	}
	return tickets, nil
}

func (r sqlRepos) CreateRepairTicket(ctx context.Context, ticket domain.RepairTicket) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO repair_tickets (`+repairColumns+`)
		VALUES (:id, :item_id, :location_id, :quantity, :vendor_name, :serial_number, :note, :photo_ref,
			:status, :sent_at, :returned_at, :created_by, :created_at, :updated_at)`,
		toRepairRow(ticket),
	)
	return mapWriteError("insert repair ticket", err)
}

func (r sqlRepos) UpdateRepairTicket(ctx context.Context, ticket domain.RepairTicket) error {
	row := toRepairRow(ticket)
	result, err := r.q.ExecContext(ctx, `
		UPDATE repair_tickets
		SET status = ?, returned_at = ?, note = ?, photo_ref = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		row.Status, row.ReturnedAt, row.Note, row.PhotoRef, row.UpdatedAt,
		row.ID, string(domain.RepairStatusSent),
	)
	if err != nil {
		return fmt.Errorf("update repair ticket: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrConflict
	}
	return nil
}

func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrAlreadyExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toEntries(rows []entryRow) []domain.LocationEntry {
	entries := make([]domain.LocationEntry, 0, len(rows))
	for _, e := range rows {
		entries = append(entries, domain.LocationEntry{LocationID: e.LocationID, Quantity: e.Quantity})
	}
	return entries
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
