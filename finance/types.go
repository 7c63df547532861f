/*
Package finance is the monthly financial reconciliation engine behind
EagerInvoice: clients issue invoices, invoice revenue buckets by calendar
month, and a derived salary (fixed retainer plus tiered commission) is
maintained per month as a materialized view of the invoice store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Client:       Who the invoice bills; owns a lifecycle outside the engine
  - Invoice:      A dated, positive amount of revenue attributed to a client
  - SalaryRecord: The derived per-month salary row; never edited directly
  - Update types: Partial-update carriers for store mutations

DESIGN PRINCIPLES:
  1. Derived, never authored: SalaryRecord is a pure function of the
     invoices in its month. The reconciliation engine is its only writer.
  2. Integer money: amounts are paise (see money.go); no floats persist.
  3. Type-safe IDs: ClientID and InvoiceID cannot be mixed up silently.

SEE ALSO:
  - store.go: persistence contracts for these types
  - recon.go: how SalaryRecord stays consistent with Invoice
*/
package finance

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type InvoiceID string

// =============================================================================
// CLIENT
// =============================================================================

// ClientType categorizes a client by engagement size.
type ClientType string

const (
	ClientMicro         ClientType = "Micro"
	ClientMid           ClientType = "Mid"
	ClientCore          ClientType = "Core"
	ClientLargeRetainer ClientType = "Large Retainer"
)

// ValidClientType reports whether t is one of the known categories.
func ValidClientType(t ClientType) bool {
	switch t {
	case ClientMicro, ClientMid, ClientCore, ClientLargeRetainer:
		return true
	}
	return false
}

// Client is an invoicing counterparty. Deleting a client cascades to its
// invoices at the store level; the engine re-aggregates the affected months
// afterwards (see Engine.AfterClientDelete).
type Client struct {
	ID        ClientID
	Name      string
	Type      ClientType
	StartDate Date
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientUpdate carries a partial client edit. Nil fields are left unchanged.
type ClientUpdate struct {
	Name      *string
	Type      *ClientType
	StartDate *Date
	Notes     *string
}

// =============================================================================
// INVOICE
// =============================================================================

// Invoice is a single billed amount on a calendar date. Amount is always a
// positive paise count; the date's YYYY-MM truncation decides which month's
// salary the invoice feeds.
type Invoice struct {
	ID        InvoiceID
	InvoiceNo string
	ClientID  ClientID
	Amount    Money
	Date      Date
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Month returns the month key the invoice's revenue belongs to.
func (inv Invoice) Month() MonthKey { return inv.Date.Month() }

// InvoiceUpdate carries a partial invoice edit. Nil fields are left
// unchanged. A Date change may move the invoice to a different month;
// callers must reconcile both the old and the new month afterwards.
type InvoiceUpdate struct {
	ClientID *ClientID
	Amount   *Money
	Date     *Date
}

// =============================================================================
// SALARY RECORD - Derived per-month view, one row per month key
// =============================================================================

// SalaryBreakdown is the computed salary for one month's revenue.
type SalaryBreakdown struct {
	Retainer   Money
	Commission Money
	Total      Money
}

// SalaryRecord is the persisted breakdown for a month. At most one record
// exists per month key; upserts overwrite the amounts in place and bump
// UpdatedAt while preserving CreatedAt.
type SalaryRecord struct {
	ID    string
	Month MonthKey
	SalaryBreakdown
	CreatedAt time.Time
	UpdatedAt time.Time
}
