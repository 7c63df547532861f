/*
Package sqlite provides the embedded SQLite implementation of the finance
storage contracts.

PURPOSE:
  One Store type implements all three persistence interfaces
  (finance.ClientStore, finance.InvoiceStore, finance.SalaryLedger)
  over a single local database file.

KEY TABLES:
  clients:        Invoicing counterparties
  invoices:       Amounts in paise, ISO dates, FK to clients
  salary_records: Derived per-month salary rows, unique per month key

CASCADE:
  invoices.client_id carries ON DELETE CASCADE. DeleteClient collects the
  distinct month keys of the client's invoices inside the same transaction
  before the delete runs, and returns them so the reconciliation engine can
  re-aggregate the orphaned months.

MONTH QUERIES:
  The month key of an invoice is substr(date, 1, 7) of its ISO date. An
  expression index on that substring keeps InvoicesByMonth and
  InvoiceMonths cheap.

WAL MODE:
  The database opens with WAL and foreign keys on. Readers don't block,
  one writer at a time, sane crash recovery. A sync.RWMutex serializes
  writers at the Go level on top of that.

MIGRATION:
  Schema is auto-migrated on New(). The schema is small and stable enough
  that inline migration beats carrying a migration tool.

USAGE:
  store, err := sqlite.New("./eagerinvoice.db")
  if err != nil { ... }
  defer store.Close()
  engine := finance.NewEngine(store, store, logger)

SEE ALSO:
  - finance/store.go: the contracts this package implements
  - finance/store/memory.go: the in-memory twin used in tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eagerinvoice/finance-engine/finance"
)

// Store implements all finance storage interfaces over SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		invoice_no TEXT NOT NULL UNIQUE,
		client_id TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		amount INTEGER NOT NULL CHECK (amount > 0),
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_client
		ON invoices(client_id);
	-- Month bucketing (hot path for aggregation)
	CREATE INDEX IF NOT EXISTS idx_invoices_month
		ON invoices(substr(date, 1, 7));
	CREATE INDEX IF NOT EXISTS idx_invoices_date
		ON invoices(date DESC);

	CREATE TABLE IF NOT EXISTS salary_records (
		id TEXT PRIMARY KEY,
		month TEXT NOT NULL UNIQUE,
		retainer INTEGER NOT NULL,
		commission INTEGER NOT NULL,
		total INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// wrapDBErr maps driver-level failures on a closed connection to the
// sentinel the reconciliation engine treats as critical.
func wrapDBErr(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrConnDone || strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %v", finance.ErrStoreClosed, err)
	}
	return err
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseISO(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// =============================================================================
// CLIENT STORE (finance.ClientStore interface)
// =============================================================================

func (s *Store) CreateClient(ctx context.Context, c finance.Client) (finance.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = finance.ClientID(uuid.NewString())
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, type, start_date, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), c.Name, string(c.Type), string(c.StartDate), c.Notes,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return finance.Client{}, wrapDBErr(err)
	}
	return c, nil
}

func (s *Store) UpdateClient(ctx context.Context, id finance.ClientID, upd finance.ClientUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := []string{"updated_at = ?"}
	args := []any{nowISO()}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, string(*upd.Type))
	}
	if upd.StartDate != nil {
		sets = append(sets, "start_date = ?")
		args = append(args, string(*upd.StartDate))
	}
	if upd.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *upd.Notes)
	}
	args = append(args, string(id))

	res, err := s.db.ExecContext(ctx,
		"UPDATE clients SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return wrapDBErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr(err)
	}
	if n == 0 {
		return finance.ErrClientNotFound
	}
	return nil
}

// DeleteClient removes the client. The FK cascade removes its invoices;
// the months those invoices occupied are collected first, inside the same
// transaction, and returned for re-aggregation.
func (s *Store) DeleteClient(ctx context.Context, id finance.ClientID) ([]finance.MonthKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT DISTINCT substr(date, 1, 7) FROM invoices WHERE client_id = ? ORDER BY 1", string(id))
	if err != nil {
		return nil, wrapDBErr(err)
	}
	var months []finance.MonthKey
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			rows.Close()
			return nil, err
		}
		months = append(months, finance.MonthKey(m))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", string(id))
	if err != nil {
		return nil, wrapDBErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, finance.ErrClientNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDBErr(err)
	}
	return months, nil
}

func (s *Store) GetClient(ctx context.Context, id finance.ClientID) (*finance.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, type, start_date, notes, created_at, updated_at FROM clients WHERE id = ?",
		string(id))
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBErr(err)
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]finance.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, type, start_date, notes, created_at, updated_at FROM clients ORDER BY name")
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer rows.Close()

	var clients []finance.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (finance.Client, error) {
	var (
		c                    finance.Client
		id, typ, startDate   string
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &c.Name, &typ, &startDate, &c.Notes, &createdAt, &updatedAt); err != nil {
		return c, err
	}
	c.ID = finance.ClientID(id)
	c.Type = finance.ClientType(typ)
	c.StartDate = finance.Date(startDate)
	c.CreatedAt = parseISO(createdAt)
	c.UpdatedAt = parseISO(updatedAt)
	return c, nil
}

// =============================================================================
// INVOICE STORE (finance.InvoiceStore interface)
// =============================================================================

func (s *Store) CreateInvoice(ctx context.Context, inv finance.Invoice) (finance.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !inv.Amount.IsPositive() {
		return finance.Invoice{}, finance.ErrInvalidAmount
	}
	if _, err := finance.ParseDate(string(inv.Date)); err != nil {
		return finance.Invoice{}, err
	}
	if err := s.clientExists(ctx, inv.ClientID); err != nil {
		return finance.Invoice{}, err
	}

	if inv.ID == "" {
		inv.ID = finance.InvoiceID(uuid.NewString())
	}
	if inv.InvoiceNo == "" {
		maxSeq, err := s.maxInvoiceSeq(ctx)
		if err != nil {
			return finance.Invoice{}, err
		}
		no, err := finance.GenerateInvoiceNo(maxSeq, func(candidate string) (bool, error) {
			return s.invoiceNoExists(ctx, candidate)
		})
		if err != nil {
			return finance.Invoice{}, err
		}
		inv.InvoiceNo = no
	}

	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, invoice_no, client_id, amount, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(inv.ID), inv.InvoiceNo, string(inv.ClientID), int64(inv.Amount), string(inv.Date),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return finance.Invoice{}, wrapDBErr(err)
	}
	return inv, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, id finance.InvoiceID, upd finance.InvoiceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := []string{"updated_at = ?"}
	args := []any{nowISO()}
	if upd.ClientID != nil {
		if err := s.clientExists(ctx, *upd.ClientID); err != nil {
			return err
		}
		sets = append(sets, "client_id = ?")
		args = append(args, string(*upd.ClientID))
	}
	if upd.Amount != nil {
		if !upd.Amount.IsPositive() {
			return finance.ErrInvalidAmount
		}
		sets = append(sets, "amount = ?")
		args = append(args, int64(*upd.Amount))
	}
	if upd.Date != nil {
		if _, err := finance.ParseDate(string(*upd.Date)); err != nil {
			return err
		}
		sets = append(sets, "date = ?")
		args = append(args, string(*upd.Date))
	}
	args = append(args, string(id))

	res, err := s.db.ExecContext(ctx,
		"UPDATE invoices SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return wrapDBErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr(err)
	}
	if n == 0 {
		return finance.ErrInvoiceNotFound
	}
	return nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id finance.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", string(id))
	if err != nil {
		return wrapDBErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr(err)
	}
	if n == 0 {
		return finance.ErrInvoiceNotFound
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id finance.InvoiceID) (*finance.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, invoice_no, client_id, amount, date, created_at, updated_at FROM invoices WHERE id = ?",
		string(id))
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBErr(err)
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context) ([]finance.Invoice, error) {
	return s.queryInvoices(ctx,
		"SELECT id, invoice_no, client_id, amount, date, created_at, updated_at FROM invoices ORDER BY date DESC, invoice_no")
}

func (s *Store) InvoicesByMonth(ctx context.Context, month finance.MonthKey) ([]finance.Invoice, error) {
	return s.queryInvoices(ctx,
		"SELECT id, invoice_no, client_id, amount, date, created_at, updated_at FROM invoices WHERE substr(date, 1, 7) = ? ORDER BY date DESC, invoice_no",
		string(month))
}

func (s *Store) InvoicesByClient(ctx context.Context, clientID finance.ClientID) ([]finance.Invoice, error) {
	return s.queryInvoices(ctx,
		"SELECT id, invoice_no, client_id, amount, date, created_at, updated_at FROM invoices WHERE client_id = ? ORDER BY date DESC, invoice_no",
		string(clientID))
}

func (s *Store) InvoiceMonths(ctx context.Context) ([]finance.MonthKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT substr(date, 1, 7) FROM invoices ORDER BY 1")
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer rows.Close()

	var months []finance.MonthKey
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		months = append(months, finance.MonthKey(m))
	}
	return months, rows.Err()
}

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]finance.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer rows.Close()

	var invoices []finance.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(row rowScanner) (finance.Invoice, error) {
	var (
		inv                  finance.Invoice
		id, clientID, date   string
		amount               int64
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &inv.InvoiceNo, &clientID, &amount, &date, &createdAt, &updatedAt); err != nil {
		return inv, err
	}
	inv.ID = finance.InvoiceID(id)
	inv.ClientID = finance.ClientID(clientID)
	inv.Amount = finance.Money(amount)
	inv.Date = finance.Date(date)
	inv.CreatedAt = parseISO(createdAt)
	inv.UpdatedAt = parseISO(updatedAt)
	return inv, nil
}

func (s *Store) clientExists(ctx context.Context, id finance.ClientID) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM clients WHERE id = ?", string(id)).Scan(&count)
	if err != nil {
		return wrapDBErr(err)
	}
	if count == 0 {
		return finance.ErrClientNotFound
	}
	return nil
}

func (s *Store) maxInvoiceSeq(ctx context.Context) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(CAST(substr(invoice_no, 5, 4) AS INTEGER)), 0)
		FROM invoices WHERE invoice_no LIKE 'INV-%'`).Scan(&max)
	if err != nil {
		return 0, wrapDBErr(err)
	}
	return max, nil
}

func (s *Store) invoiceNoExists(ctx context.Context, no string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM invoices WHERE invoice_no = ?", no).Scan(&count)
	if err != nil {
		return false, wrapDBErr(err)
	}
	return count > 0, nil
}

// =============================================================================
// SALARY LEDGER (finance.SalaryLedger interface)
// =============================================================================

func (s *Store) SalaryByMonth(ctx context.Context, month finance.MonthKey) (*finance.SalaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, month, retainer, commission, total, created_at, updated_at FROM salary_records WHERE month = ?",
		string(month))
	rec, err := scanSalary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBErr(err)
	}
	return &rec, nil
}

// UpsertSalary inserts or overwrites the month's row. created_at is
// preserved on conflict; updated_at always bumps.
func (s *Store) UpsertSalary(ctx context.Context, month finance.MonthKey, b finance.SalaryBreakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowISO()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salary_records (id, month, retainer, commission, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(month) DO UPDATE SET
			retainer = excluded.retainer,
			commission = excluded.commission,
			total = excluded.total,
			updated_at = excluded.updated_at`,
		uuid.NewString(), string(month),
		int64(b.Retainer), int64(b.Commission), int64(b.Total),
		now, now,
	)
	return wrapDBErr(err)
}

func (s *Store) ListSalaries(ctx context.Context) ([]finance.SalaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, month, retainer, commission, total, created_at, updated_at FROM salary_records ORDER BY month")
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer rows.Close()

	var records []finance.SalaryRecord
	for rows.Next() {
		rec, err := scanSalary(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanSalary(row rowScanner) (finance.SalaryRecord, error) {
	var (
		rec                         finance.SalaryRecord
		month                       string
		retainer, commission, total int64
		createdAt, updatedAt        string
	)
	if err := row.Scan(&rec.ID, &month, &retainer, &commission, &total, &createdAt, &updatedAt); err != nil {
		return rec, err
	}
	rec.Month = finance.MonthKey(month)
	rec.Retainer = finance.Money(retainer)
	rec.Commission = finance.Money(commission)
	rec.Total = finance.Money(total)
	rec.CreatedAt = parseISO(createdAt)
	rec.UpdatedAt = parseISO(updatedAt)
	return rec, nil
}
