// Package store provides an in-memory implementation of the finance
// persistence contracts, for tests and throwaway runs.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eagerinvoice/finance-engine/finance"
)

// =============================================================================
// MEMORY STORE - implements ClientStore, InvoiceStore, and SalaryLedger
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	closed   bool
	clients  map[finance.ClientID]finance.Client
	invoices map[finance.InvoiceID]finance.Invoice
	salaries map[finance.MonthKey]finance.SalaryRecord
}

func NewMemory() *Memory {
	return &Memory{
		clients:  make(map[finance.ClientID]finance.Client),
		invoices: make(map[finance.InvoiceID]finance.Invoice),
		salaries: make(map[finance.MonthKey]finance.SalaryRecord),
	}
}

// Close marks the store closed; every subsequent operation fails with
// finance.ErrStoreClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) checkOpen() error {
	if m.closed {
		return finance.ErrStoreClosed
	}
	return nil
}

// =============================================================================
// CLIENT STORE
// =============================================================================

func (m *Memory) CreateClient(_ context.Context, c finance.Client) (finance.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return finance.Client{}, err
	}

	if c.ID == "" {
		c.ID = finance.ClientID(uuid.NewString())
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.clients[c.ID] = c
	return c, nil
}

func (m *Memory) UpdateClient(_ context.Context, id finance.ClientID, upd finance.ClientUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}

	c, ok := m.clients[id]
	if !ok {
		return finance.ErrClientNotFound
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Type != nil {
		c.Type = *upd.Type
	}
	if upd.StartDate != nil {
		c.StartDate = *upd.StartDate
	}
	if upd.Notes != nil {
		c.Notes = *upd.Notes
	}
	c.UpdatedAt = time.Now().UTC()
	m.clients[id] = c
	return nil
}

func (m *Memory) DeleteClient(_ context.Context, id finance.ClientID) ([]finance.MonthKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	if _, ok := m.clients[id]; !ok {
		return nil, finance.ErrClientNotFound
	}

	// Collect affected months before the cascade removes the rows.
	var months []finance.MonthKey
	for invID, inv := range m.invoices {
		if inv.ClientID == id {
			months = append(months, inv.Month())
			delete(m.invoices, invID)
		}
	}
	delete(m.clients, id)
	return finance.DedupeMonths(months), nil
}

func (m *Memory) GetClient(_ context.Context, id finance.ClientID) (*finance.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	c, ok := m.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListClients(_ context.Context) ([]finance.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	out := make([]finance.Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// INVOICE STORE
// =============================================================================

func (m *Memory) CreateInvoice(_ context.Context, inv finance.Invoice) (finance.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return finance.Invoice{}, err
	}

	if !inv.Amount.IsPositive() {
		return finance.Invoice{}, finance.ErrInvalidAmount
	}
	if _, err := finance.ParseDate(string(inv.Date)); err != nil {
		return finance.Invoice{}, err
	}
	if _, ok := m.clients[inv.ClientID]; !ok {
		return finance.Invoice{}, finance.ErrClientNotFound
	}

	if inv.ID == "" {
		inv.ID = finance.InvoiceID(uuid.NewString())
	}
	if inv.InvoiceNo == "" {
		no, err := finance.GenerateInvoiceNo(m.maxInvoiceSeqLocked(), func(candidate string) (bool, error) {
			return m.invoiceNoExistsLocked(candidate), nil
		})
		if err != nil {
			return finance.Invoice{}, err
		}
		inv.InvoiceNo = no
	}

	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *Memory) UpdateInvoice(_ context.Context, id finance.InvoiceID, upd finance.InvoiceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}

	inv, ok := m.invoices[id]
	if !ok {
		return finance.ErrInvoiceNotFound
	}
	if upd.ClientID != nil {
		if _, ok := m.clients[*upd.ClientID]; !ok {
			return finance.ErrClientNotFound
		}
		inv.ClientID = *upd.ClientID
	}
	if upd.Amount != nil {
		if !upd.Amount.IsPositive() {
			return finance.ErrInvalidAmount
		}
		inv.Amount = *upd.Amount
	}
	if upd.Date != nil {
		if _, err := finance.ParseDate(string(*upd.Date)); err != nil {
			return err
		}
		inv.Date = *upd.Date
	}
	inv.UpdatedAt = time.Now().UTC()
	m.invoices[id] = inv
	return nil
}

func (m *Memory) DeleteInvoice(_ context.Context, id finance.InvoiceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}

	if _, ok := m.invoices[id]; !ok {
		return finance.ErrInvoiceNotFound
	}
	delete(m.invoices, id)
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id finance.InvoiceID) (*finance.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	inv, ok := m.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (m *Memory) ListInvoices(_ context.Context) ([]finance.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.collectLocked(func(finance.Invoice) bool { return true }), nil
}

func (m *Memory) InvoicesByMonth(_ context.Context, month finance.MonthKey) ([]finance.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.collectLocked(func(inv finance.Invoice) bool { return inv.Month() == month }), nil
}

func (m *Memory) InvoicesByClient(_ context.Context, clientID finance.ClientID) ([]finance.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.collectLocked(func(inv finance.Invoice) bool { return inv.ClientID == clientID }), nil
}

func (m *Memory) InvoiceMonths(_ context.Context) ([]finance.MonthKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	var months []finance.MonthKey
	for _, inv := range m.invoices {
		months = append(months, inv.Month())
	}
	return finance.DedupeMonths(months), nil
}

// collectLocked returns matching invoices ordered by date descending.
func (m *Memory) collectLocked(match func(finance.Invoice) bool) []finance.Invoice {
	var out []finance.Invoice
	for _, inv := range m.invoices {
		if match(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].InvoiceNo < out[j].InvoiceNo
	})
	return out
}

func (m *Memory) maxInvoiceSeqLocked() int {
	max := 0
	for _, inv := range m.invoices {
		if seq := finance.ParseInvoiceSeq(inv.InvoiceNo); seq > max {
			max = seq
		}
	}
	return max
}

func (m *Memory) invoiceNoExistsLocked(no string) bool {
	for _, inv := range m.invoices {
		if inv.InvoiceNo == no {
			return true
		}
	}
	return false
}

// =============================================================================
// SALARY LEDGER
// =============================================================================

func (m *Memory) SalaryByMonth(_ context.Context, month finance.MonthKey) (*finance.SalaryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rec, ok := m.salaries[month]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) UpsertSalary(_ context.Context, month finance.MonthKey, b finance.SalaryBreakdown) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}

	now := time.Now().UTC()
	rec, ok := m.salaries[month]
	if !ok {
		rec = finance.SalaryRecord{
			ID:        uuid.NewString(),
			Month:     month,
			CreatedAt: now,
		}
	}
	rec.SalaryBreakdown = b
	rec.UpdatedAt = now
	m.salaries[month] = rec
	return nil
}

func (m *Memory) ListSalaries(_ context.Context) ([]finance.SalaryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	out := make([]finance.SalaryRecord, 0, len(m.salaries))
	for _, rec := range m.salaries {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}
