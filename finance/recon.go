/*
recon.go - The reconciliation engine

PURPOSE:
  Keeps the salary ledger consistent with the invoice store. The ledger
  is a materialized view: each row is a pure function of its month's
  invoices. Whenever an invoice is created, edited, moved between
  months, or deleted, the engine recomputes the affected months and
  upserts the ledger.

RUN PROTOCOL:
  Reconcile(months...) deduplicates the keys and processes each month
  independently: aggregate revenue -> calculate salary -> upsert ledger.
  A failing month is recorded in SyncResult.Errors and the remaining
  months still run; one bad month must not block the others. Months
  that upserted successfully stay upserted regardless of later errors.

  Critical failures are different: a canceled context or a closed store
  aborts the whole run and propagates as a returned error, because
  continuing would fail every remaining month the same way.

OVERLAP GUARD:
  At most one run may be in flight per engine instance. A second
  Reconcile while one is running gets ErrSyncBusy immediately;
  reconciliation is cheap and idempotent, so callers simply retry.
  The busy flag releases in a defer, so a panic mid-run cannot wedge
  the engine.

IDEMPOTENCE:
  Re-running Reconcile with unchanged invoices writes identical
  retainer/commission/total amounts. The aggregator re-reads the store
  and CalculateSalary is pure, so nothing drifts.

STALENESS:
  Readers of the salary ledger may observe a stale row between an
  invoice mutation and the completion of its triggered reconcile.
  That window is the accepted contract: eventually consistent within
  one reconcile call. LastRun exposes the wall-clock time of the most
  recent run for staleness queries.

SEE ALSO:
  - aggregate.go: the read side of a run
  - commission.go: the arithmetic of a run
  - store.go: SalaryLedger, the write side of a run
*/
package finance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SyncResult reports the outcome of one reconciliation run.
// Success means every requested month upserted; AffectedMonths lists the
// months that did, in sorted order; Errors describes the months that failed.
type SyncResult struct {
	Success        bool
	AffectedMonths []MonthKey
	Errors         []string
}

// Engine maintains the salary ledger as a derived view of the invoice store.
// Construct with NewEngine and inject wherever mutations happen; each
// instance owns its own busy state, so tests run engines independently.
type Engine struct {
	agg    Aggregator
	ledger SalaryLedger
	log    zerolog.Logger

	running atomic.Bool

	mu      sync.Mutex
	lastRun time.Time
}

// NewEngine builds an engine over the given stores.
func NewEngine(invoices InvoiceStore, ledger SalaryLedger, log zerolog.Logger) *Engine {
	return &Engine{
		agg:    Aggregator{Invoices: invoices},
		ledger: ledger,
		log:    log.With().Str("component", "recon").Logger(),
	}
}

// Reconcile recomputes and upserts the salary row for each given month.
// Months are deduplicated and processed independently; per-month failures
// are collected into the result, not returned as an error. Returns
// ErrSyncBusy if a run is already in flight, or the underlying error on a
// critical failure that aborted the run.
func (e *Engine) Reconcile(ctx context.Context, months ...MonthKey) (SyncResult, error) {
	keys := DedupeMonths(months)

	if !e.running.CompareAndSwap(false, true) {
		return SyncResult{}, ErrSyncBusy
	}
	defer e.running.Store(false)

	result := SyncResult{Success: true}
	for _, month := range keys {
		if err := e.reconcileMonth(ctx, month); err != nil {
			if isCritical(err) {
				e.log.Error().Err(err).Str("month", string(month)).Msg("reconciliation aborted")
				return SyncResult{}, err
			}
			result.Success = false
			result.Errors = append(result.Errors, (&MonthSyncError{Month: month, Err: err}).Error())
			continue
		}
		result.AffectedMonths = append(result.AffectedMonths, month)
	}

	e.mu.Lock()
	e.lastRun = time.Now().UTC()
	e.mu.Unlock()

	e.log.Info().
		Int("requested", len(keys)).
		Int("updated", len(result.AffectedMonths)).
		Int("failed", len(result.Errors)).
		Bool("success", result.Success).
		Msg("reconciliation run finished")
	return result, nil
}

// reconcileMonth derives and persists one month's salary row. Months with
// zero invoices still get a row: revenue zero, commission zero, bare
// retainer. That keeps the ledger total honest for months that once had
// invoices and lost them.
func (e *Engine) reconcileMonth(ctx context.Context, month MonthKey) error {
	agg, err := e.agg.AggregateMonth(ctx, month)
	if err != nil {
		return err
	}
	return e.ledger.UpsertSalary(ctx, month, CalculateSalary(agg.TotalRevenue))
}

// isCritical reports whether the error should abort the remaining months.
func isCritical(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrStoreClosed)
}

// =============================================================================
// MUTATION HOOKS - thin wrappers the CRUD surface calls after each commit
// =============================================================================

// AfterInvoiceCreate reconciles the month the new invoice landed in.
func (e *Engine) AfterInvoiceCreate(ctx context.Context, month MonthKey) (SyncResult, error) {
	return e.Reconcile(ctx, month)
}

// AfterInvoiceUpdate reconciles both the invoice's previous and current
// months. When an edit moves the invoice's date across a month boundary the
// origin month loses revenue and the destination gains it, so both recompute.
func (e *Engine) AfterInvoiceUpdate(ctx context.Context, oldMonth, newMonth MonthKey) (SyncResult, error) {
	return e.Reconcile(ctx, oldMonth, newMonth)
}

// AfterInvoiceDelete reconciles the month the invoice was removed from.
func (e *Engine) AfterInvoiceDelete(ctx context.Context, month MonthKey) (SyncResult, error) {
	return e.Reconcile(ctx, month)
}

// AfterClientDelete reconciles the months reported by the client-delete
// cascade (ClientStore.DeleteClient collects them before the invoices
// disappear).
func (e *Engine) AfterClientDelete(ctx context.Context, months []MonthKey) (SyncResult, error) {
	return e.Reconcile(ctx, months...)
}

// FullResync reconciles every distinct month present in the invoice store.
// Used for manual refresh and consistency repair after out-of-band changes.
func (e *Engine) FullResync(ctx context.Context) (SyncResult, error) {
	months, err := e.agg.Invoices.InvoiceMonths(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	return e.Reconcile(ctx, months...)
}

// =============================================================================
// STATE INSPECTION
// =============================================================================

// Busy reports whether a run is currently in flight.
func (e *Engine) Busy() bool { return e.running.Load() }

// LastRun returns the completion time of the most recent run, zero if none.
func (e *Engine) LastRun() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRun
}
