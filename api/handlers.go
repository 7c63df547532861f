/*
handlers.go - HTTP handlers for the EagerInvoice finance engine

PURPOSE:
  Exposes client/invoice CRUD, the reporting views, and manual sync over
  REST. Handlers parse and validate input, delegate to the stores and
  the reconciliation engine, and serialize responses.

ENDPOINTS:
  Clients:
    GET    /api/clients            List clients
    POST   /api/clients            Create client
    GET    /api/clients/{id}       Get client
    PUT    /api/clients/{id}       Update client
    DELETE /api/clients/{id}       Delete client (cascades to invoices)

  Invoices:
    GET    /api/invoices           List invoices
    POST   /api/invoices           Create invoice
    GET    /api/invoices/{id}      Get invoice
    PUT    /api/invoices/{id}      Update invoice
    DELETE /api/invoices/{id}      Delete invoice

  Reports:
    GET    /api/reports/monthly/{month}   Monthly overview
    GET    /api/reports/all-time          All-time stats
    GET    /api/reports/top-clients       Lifetime client ranking

  Sync:
    POST   /api/sync/full          Manual full resync
    GET    /api/sync/status        Busy flag + last run time

MUTATION FLOW:
  Commit the store mutation first, then trigger the matching engine
  hook. A failed or busy reconcile never rolls back or fails the
  mutation; it is reported in the response's sync field as a warning
  the UI can surface.

ERROR HANDLING:
  - 400: validation errors (amount, date, month key)
  - 404: missing client/invoice
  - 409: invoice numbering exhausted
  - 503: sync busy (manual sync endpoint only)
  - 500: everything else

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eagerinvoice/finance-engine/finance"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for the HTTP surface.
type Handler struct {
	Clients  finance.ClientStore
	Invoices finance.InvoiceStore
	Engine   *finance.Engine
	Reports  *finance.Reports
	Log      zerolog.Logger
}

// NewHandler wires the handler over the given stores and engine.
func NewHandler(clients finance.ClientStore, invoices finance.InvoiceStore, engine *finance.Engine, reports *finance.Reports, log zerolog.Logger) *Handler {
	return &Handler{
		Clients:  clients,
		Invoices: invoices,
		Engine:   engine,
		Reports:  reports,
		Log:      log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Clients.ListClients(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]ClientDTO, 0, len(clients))
	for _, c := range clients {
		dtos = append(dtos, toClientDTO(c))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.badRequest(w, "name is required")
		return
	}
	if !finance.ValidClientType(finance.ClientType(req.Type)) {
		h.badRequest(w, "unknown client type")
		return
	}
	startDate, err := finance.ParseDate(req.StartDate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	client, err := h.Clients.CreateClient(r.Context(), finance.Client{
		Name:      req.Name,
		Type:      finance.ClientType(req.Type),
		StartDate: startDate,
		Notes:     req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toClientDTO(client))
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := finance.ClientID(chi.URLParam(r, "id"))
	client, err := h.Clients.GetClient(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if client == nil {
		h.writeError(w, finance.ErrClientNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, toClientDTO(*client))
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id := finance.ClientID(chi.URLParam(r, "id"))
	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	upd := finance.ClientUpdate{Name: req.Name, Notes: req.Notes}
	if req.Type != nil {
		t := finance.ClientType(*req.Type)
		if !finance.ValidClientType(t) {
			h.badRequest(w, "unknown client type")
			return
		}
		upd.Type = &t
	}
	if req.StartDate != nil {
		d, err := finance.ParseDate(*req.StartDate)
		if err != nil {
			h.writeError(w, err)
			return
		}
		upd.StartDate = &d
	}

	if err := h.Clients.UpdateClient(r.Context(), id, upd); err != nil {
		h.writeError(w, err)
		return
	}
	client, err := h.Clients.GetClient(r.Context(), id)
	if err != nil || client == nil {
		h.writeError(w, finance.ErrClientNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, toClientDTO(*client))
}

// DeleteClient removes the client and its invoices, then reconciles every
// month the cascade touched.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id := finance.ClientID(chi.URLParam(r, "id"))
	months, err := h.Clients.DeleteClient(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sync := h.runSync(r, func() (finance.SyncResult, error) {
		return h.Engine.AfterClientDelete(r.Context(), months)
	})
	h.writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true, Sync: sync})
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	var (
		invoices []finance.Invoice
		err      error
	)
	switch {
	case r.URL.Query().Get("month") != "":
		month, perr := finance.ParseMonthKey(r.URL.Query().Get("month"))
		if perr != nil {
			h.writeError(w, perr)
			return
		}
		invoices, err = h.Invoices.InvoicesByMonth(r.Context(), month)
	case r.URL.Query().Get("client_id") != "":
		invoices, err = h.Invoices.InvoicesByClient(r.Context(), finance.ClientID(r.URL.Query().Get("client_id")))
	default:
		invoices, err = h.Invoices.ListInvoices(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]InvoiceDTO, 0, len(invoices))
	for _, inv := range invoices {
		dtos = append(dtos, toInvoiceDTO(inv))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	amount, err := finance.MoneyFromMajorString(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	date, err := finance.ParseDate(req.Date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	invoice, err := h.Invoices.CreateInvoice(r.Context(), finance.Invoice{
		InvoiceNo: req.InvoiceNo,
		ClientID:  finance.ClientID(req.ClientID),
		Amount:    amount,
		Date:      date,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	sync := h.runSync(r, func() (finance.SyncResult, error) {
		return h.Engine.AfterInvoiceCreate(r.Context(), invoice.Month())
	})
	h.writeJSON(w, http.StatusCreated, InvoiceMutationResponse{Invoice: toInvoiceDTO(invoice), Sync: sync})
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := finance.InvoiceID(chi.URLParam(r, "id"))
	invoice, err := h.Invoices.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if invoice == nil {
		h.writeError(w, finance.ErrInvoiceNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, toInvoiceDTO(*invoice))
}

// UpdateInvoice applies a partial edit and reconciles both the invoice's
// previous month and (when the date moved) its new month.
func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id := finance.InvoiceID(chi.URLParam(r, "id"))
	var req UpdateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	before, err := h.Invoices.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if before == nil {
		h.writeError(w, finance.ErrInvoiceNotFound)
		return
	}

	upd := finance.InvoiceUpdate{}
	if req.ClientID != nil {
		cid := finance.ClientID(*req.ClientID)
		upd.ClientID = &cid
	}
	if req.Amount != nil {
		amount, err := finance.MoneyFromMajorString(*req.Amount)
		if err != nil {
			h.writeError(w, err)
			return
		}
		upd.Amount = &amount
	}
	if req.Date != nil {
		date, err := finance.ParseDate(*req.Date)
		if err != nil {
			h.writeError(w, err)
			return
		}
		upd.Date = &date
	}

	if err := h.Invoices.UpdateInvoice(r.Context(), id, upd); err != nil {
		h.writeError(w, err)
		return
	}
	after, err := h.Invoices.GetInvoice(r.Context(), id)
	if err != nil || after == nil {
		h.writeError(w, finance.ErrInvoiceNotFound)
		return
	}

	sync := h.runSync(r, func() (finance.SyncResult, error) {
		return h.Engine.AfterInvoiceUpdate(r.Context(), before.Month(), after.Month())
	})
	h.writeJSON(w, http.StatusOK, InvoiceMutationResponse{Invoice: toInvoiceDTO(*after), Sync: sync})
}

func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := finance.InvoiceID(chi.URLParam(r, "id"))
	invoice, err := h.Invoices.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if invoice == nil {
		h.writeError(w, finance.ErrInvoiceNotFound)
		return
	}

	if err := h.Invoices.DeleteInvoice(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	sync := h.runSync(r, func() (finance.SyncResult, error) {
		return h.Engine.AfterInvoiceDelete(r.Context(), invoice.Month())
	})
	h.writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true, Sync: sync})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) MonthlyOverview(w http.ResponseWriter, r *http.Request) {
	month, err := finance.ParseMonthKey(chi.URLParam(r, "month"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	overview, err := h.Reports.MonthlyOverview(r.Context(), month)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dto := MonthlyOverviewDTO{
		Month:        string(overview.Month),
		Revenue:      overview.Revenue.TotalRevenue.Format(),
		RevenueMinor: int64(overview.Revenue.TotalRevenue),
		InvoiceCount: overview.Revenue.InvoiceCount,
		PerClient:    []ClientShareDTO{},
		Salary:       toSalaryDTO(overview.Salary),
		NetProfit:    overview.NetProfit.Format(),
	}
	for clientID, revenue := range overview.Revenue.PerClient {
		dto.PerClient = append(dto.PerClient, ClientShareDTO{
			ClientID: string(clientID),
			Revenue:  revenue.Format(),
			Share:    overview.Revenue.Shares[clientID].StringFixed(2),
		})
	}
	h.writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) AllTimeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reports.AllTime(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, AllTimeStatsDTO{
		TotalRevenue:  stats.TotalRevenue.Format(),
		TotalSalary:   stats.TotalSalary.Format(),
		NetProfit:     stats.NetProfit.Format(),
		MonthsTracked: stats.MonthsTracked,
		InvoiceCount:  stats.InvoiceCount,
	})
}

func (h *Handler) TopClients(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ranking, err := h.Reports.TopClients(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]TopClientDTO, 0, len(ranking))
	for _, entry := range ranking {
		dto := TopClientDTO{
			ClientID:     string(entry.ClientID),
			Revenue:      entry.Revenue.Format(),
			RevenueMinor: int64(entry.Revenue),
			InvoiceCount: entry.InvoiceCount,
		}
		if client, err := h.Clients.GetClient(r.Context(), entry.ClientID); err == nil && client != nil {
			dto.Name = client.Name
		}
		dtos = append(dtos, dto)
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SYNC HANDLERS
// =============================================================================

func (h *Handler) FullSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.FullResync(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSyncDTO(result))
}

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status := SyncStatusDTO{Busy: h.Engine.Busy()}
	if last := h.Engine.LastRun(); !last.IsZero() {
		status.LastRun = last.Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusOK, status)
}

// =============================================================================
// HELPERS
// =============================================================================

// runSync invokes an engine hook after a committed mutation and folds the
// outcome into a DTO. Reconciliation failure never fails the request; a
// busy engine or a critical error is reported as a warning the next full
// sync will repair.
func (h *Handler) runSync(r *http.Request, hook func() (finance.SyncResult, error)) *SyncResultDTO {
	result, err := hook()
	if err != nil {
		h.Log.Warn().Err(err).Str("path", r.URL.Path).Msg("post-mutation sync failed")
		return &SyncResultDTO{Success: false, AffectedMonths: []string{}, Errors: []string{err.Error()}}
	}
	if !result.Success {
		h.Log.Warn().Strs("errors", result.Errors).Str("path", r.URL.Path).Msg("post-mutation sync partially failed")
	}
	return toSyncDTO(result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case finance.IsValidation(err):
		status = http.StatusBadRequest
	case finance.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, finance.ErrInvoiceNumberGeneration):
		status = http.StatusConflict
	case errors.Is(err, finance.ErrSyncBusy):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
