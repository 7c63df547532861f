/*
store.go - Persistence contracts consumed by the engine

PURPOSE:
  Defines the interfaces between the finance engine and storage. The
  engine never touches SQL; it only requires these read/write contracts
  and that amounts and dates round-trip faithfully.

KEY INTERFACES:
  ClientStore:  Client lifecycle, including the invoice cascade on delete
  InvoiceStore: Invoice lifecycle plus the month/client queries the
                aggregator depends on
  SalaryLedger: The derived per-month salary rows. One writer exists:
                the reconciliation engine. Nothing else may upsert.

ABSENCE CONVENTION:
  Single-record getters return (nil, nil) when the record does not exist.
  Mutations on missing records return ErrClientNotFound / ErrInvoiceNotFound.

CASCADE REPORTING:
  DeleteClient removes the client's invoices in the same transaction and
  returns the distinct month keys those invoices occupied, collected
  before the rows disappear. The caller hands that slice straight to
  Engine.AfterClientDelete so the orphaned months get re-aggregated.

IMPLEMENTATIONS:
  - store/sqlite: production embedded store (one type, all three contracts)
  - finance/store: in-memory store for tests and throwaway runs

SEE ALSO:
  - invoiceno.go: the numbering policy stores implement on create
  - aggregate.go, recon.go, report.go: the consumers
*/
package finance

import "context"

// =============================================================================
// CLIENT STORE
// =============================================================================

// ClientStore owns the Client lifecycle.
type ClientStore interface {
	// CreateClient assigns an id and timestamps and persists the client.
	CreateClient(ctx context.Context, c Client) (Client, error)

	// UpdateClient applies a partial edit. ErrClientNotFound if absent.
	UpdateClient(ctx context.Context, id ClientID, upd ClientUpdate) error

	// DeleteClient removes the client and cascades to its invoices,
	// returning the distinct month keys of the invoices it removed.
	DeleteClient(ctx context.Context, id ClientID) ([]MonthKey, error)

	// GetClient returns the client, or (nil, nil) if absent.
	GetClient(ctx context.Context, id ClientID) (*Client, error)

	// ListClients returns all clients ordered by name.
	ListClients(ctx context.Context) ([]Client, error)
}

// =============================================================================
// INVOICE STORE
// =============================================================================

// InvoiceStore owns the Invoice lifecycle.
type InvoiceStore interface {
	// CreateInvoice validates the amount, date, and client reference,
	// assigns an id and (when absent) a unique invoice number, and
	// persists. Returns the stored invoice.
	CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)

	// UpdateInvoice applies a partial edit. ErrInvoiceNotFound if absent;
	// ErrClientNotFound if the edit points at a missing client.
	UpdateInvoice(ctx context.Context, id InvoiceID, upd InvoiceUpdate) error

	// DeleteInvoice removes the invoice. ErrInvoiceNotFound if absent.
	DeleteInvoice(ctx context.Context, id InvoiceID) error

	// GetInvoice returns the invoice, or (nil, nil) if absent.
	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)

	// ListInvoices returns all invoices ordered by date descending.
	ListInvoices(ctx context.Context) ([]Invoice, error)

	// InvoicesByMonth returns invoices whose date truncates to the key.
	InvoicesByMonth(ctx context.Context, month MonthKey) ([]Invoice, error)

	// InvoicesByClient returns all invoices billed to the client.
	InvoicesByClient(ctx context.Context, clientID ClientID) ([]Invoice, error)

	// InvoiceMonths returns every distinct month key present in the store,
	// sorted ascending. Drives full resyncs.
	InvoiceMonths(ctx context.Context) ([]MonthKey, error)
}

// =============================================================================
// SALARY LEDGER - derived rows, engine-owned
// =============================================================================

// SalaryLedger stores the derived per-month salary rows. The reconciliation
// engine is the exclusive writer; reporting reads.
type SalaryLedger interface {
	// SalaryByMonth returns the record, or (nil, nil) if absent.
	SalaryByMonth(ctx context.Context, month MonthKey) (*SalaryRecord, error)

	// UpsertSalary inserts the row for the month, or overwrites all three
	// amounts and bumps UpdatedAt while preserving CreatedAt.
	UpsertSalary(ctx context.Context, month MonthKey, b SalaryBreakdown) error

	// ListSalaries returns all records ordered by month ascending.
	ListSalaries(ctx context.Context) ([]SalaryRecord, error)
}
