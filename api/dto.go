/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP surface, decoupled from the domain types.
  Monetary amounts cross the wire twice: amount_minor as the integer
  paise count (the authoritative value) and amount as the formatted
  major-unit display string. Clients submit amounts as major-unit
  decimal strings ("12500.50").

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SYNC REPORTING:
  Every mutation response carries a sync field describing the
  reconciliation triggered by the mutation. sync.success == false is a
  soft warning: the mutation itself already committed.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/eagerinvoice/finance-engine/finance"
)

// =============================================================================
// CLIENT TYPES
// =============================================================================

type ClientDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	StartDate string `json:"start_date"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type CreateClientRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	StartDate string `json:"start_date"`
	Notes     string `json:"notes"`
}

type UpdateClientRequest struct {
	Name      *string `json:"name"`
	Type      *string `json:"type"`
	StartDate *string `json:"start_date"`
	Notes     *string `json:"notes"`
}

func toClientDTO(c finance.Client) ClientDTO {
	return ClientDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Type:      string(c.Type),
		StartDate: string(c.StartDate),
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// INVOICE TYPES
// =============================================================================

type InvoiceDTO struct {
	ID          string `json:"id"`
	InvoiceNo   string `json:"invoice_no"`
	ClientID    string `json:"client_id"`
	AmountMinor int64  `json:"amount_minor"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type CreateInvoiceRequest struct {
	ClientID  string `json:"client_id"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	InvoiceNo string `json:"invoice_no"` // optional; generated when empty
}

type UpdateInvoiceRequest struct {
	ClientID *string `json:"client_id"`
	Amount   *string `json:"amount"`
	Date     *string `json:"date"`
}

func toInvoiceDTO(inv finance.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:          string(inv.ID),
		InvoiceNo:   inv.InvoiceNo,
		ClientID:    string(inv.ClientID),
		AmountMinor: int64(inv.Amount),
		Amount:      inv.Amount.Format(),
		Date:        string(inv.Date),
		CreatedAt:   inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   inv.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SYNC TYPES
// =============================================================================

type SyncResultDTO struct {
	Success        bool     `json:"success"`
	AffectedMonths []string `json:"affected_months"`
	Errors         []string `json:"errors,omitempty"`
}

type SyncStatusDTO struct {
	Busy    bool   `json:"busy"`
	LastRun string `json:"last_run,omitempty"`
}

// InvoiceMutationResponse wraps a mutated invoice with the outcome of the
// reconciliation it triggered.
type InvoiceMutationResponse struct {
	Invoice InvoiceDTO     `json:"invoice"`
	Sync    *SyncResultDTO `json:"sync,omitempty"`
}

// DeleteResponse reports a deletion plus its reconciliation outcome.
type DeleteResponse struct {
	Deleted bool           `json:"deleted"`
	Sync    *SyncResultDTO `json:"sync,omitempty"`
}

func toSyncDTO(res finance.SyncResult) *SyncResultDTO {
	dto := &SyncResultDTO{Success: res.Success, AffectedMonths: []string{}}
	for _, m := range res.AffectedMonths {
		dto.AffectedMonths = append(dto.AffectedMonths, string(m))
	}
	dto.Errors = res.Errors
	return dto
}

// =============================================================================
// REPORT TYPES
// =============================================================================

type SalaryDTO struct {
	Month      string `json:"month"`
	Retainer   string `json:"retainer"`
	Commission string `json:"commission"`
	Total      string `json:"total"`
	TotalMinor int64  `json:"total_minor"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type ClientShareDTO struct {
	ClientID string `json:"client_id"`
	Revenue  string `json:"revenue"`
	Share    string `json:"share_percent"`
}

type MonthlyOverviewDTO struct {
	Month        string           `json:"month"`
	Revenue      string           `json:"revenue"`
	RevenueMinor int64            `json:"revenue_minor"`
	InvoiceCount int              `json:"invoice_count"`
	PerClient    []ClientShareDTO `json:"per_client"`
	Salary       *SalaryDTO       `json:"salary,omitempty"`
	NetProfit    string           `json:"net_profit"`
}

type AllTimeStatsDTO struct {
	TotalRevenue  string `json:"total_revenue"`
	TotalSalary   string `json:"total_salary"`
	NetProfit     string `json:"net_profit"`
	MonthsTracked int    `json:"months_tracked"`
	InvoiceCount  int    `json:"invoice_count"`
}

type TopClientDTO struct {
	ClientID     string `json:"client_id"`
	Name         string `json:"name,omitempty"`
	Revenue      string `json:"revenue"`
	RevenueMinor int64  `json:"revenue_minor"`
	InvoiceCount int    `json:"invoice_count"`
}

func toSalaryDTO(rec *finance.SalaryRecord) *SalaryDTO {
	if rec == nil {
		return nil
	}
	return &SalaryDTO{
		Month:      string(rec.Month),
		Retainer:   rec.Retainer.Format(),
		Commission: rec.Commission.Format(),
		Total:      rec.Total.Format(),
		TotalMinor: int64(rec.Total),
		UpdatedAt:  rec.UpdatedAt.Format(time.RFC3339),
	}
}
