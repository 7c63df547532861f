package finance_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eagerinvoice/finance-engine/finance"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// flakyLedger fails upserts for one month and passes everything else through.
type flakyLedger struct {
	finance.SalaryLedger
	failMonth finance.MonthKey
}

func (f *flakyLedger) UpsertSalary(ctx context.Context, month finance.MonthKey, b finance.SalaryBreakdown) error {
	if month == f.failMonth {
		return fmt.Errorf("simulated ledger write failure")
	}
	return f.SalaryLedger.UpsertSalary(ctx, month, b)
}

// closedLedger fails every write the way a closed store would.
type closedLedger struct {
	finance.SalaryLedger
}

func (c *closedLedger) UpsertSalary(context.Context, finance.MonthKey, finance.SalaryBreakdown) error {
	return finance.ErrStoreClosed
}

// gatedInvoices blocks the first month read until released, to hold a
// reconciliation run open while a second one is issued.
type gatedInvoices struct {
	finance.InvoiceStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedInvoices) InvoicesByMonth(ctx context.Context, month finance.MonthKey) ([]finance.Invoice, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.InvoiceStore.InvoicesByMonth(ctx, month)
}

func newTestEngine(invoices finance.InvoiceStore, ledger finance.SalaryLedger) *finance.Engine {
	return finance.NewEngine(invoices, ledger, zerolog.Nop())
}

// =============================================================================
// IDEMPOTENCE
// =============================================================================

func TestReconcile_Idempotent(t *testing.T) {
	// GIVEN: A reconciled month
	// WHEN: Reconciling again with no invoice changes in between
	// THEN: The salary row carries identical amounts both times

	mem, x, _ := newFixture(t)
	addInvoice(t, mem, x, major(50_000), "2024-01-15")
	engine := newTestEngine(mem, mem)
	ctx := context.Background()

	first, err := engine.Reconcile(ctx, "2024-01")
	require.NoError(t, err)
	require.True(t, first.Success)
	rec1, err := mem.SalaryByMonth(ctx, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, rec1)

	second, err := engine.Reconcile(ctx, "2024-01")
	require.NoError(t, err)
	require.True(t, second.Success)
	rec2, err := mem.SalaryByMonth(ctx, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, rec2)

	assert.Equal(t, rec1.SalaryBreakdown, rec2.SalaryBreakdown)
	assert.Equal(t, rec1.CreatedAt, rec2.CreatedAt, "upsert must preserve CreatedAt")
	assert.Equal(t, major(20_000), rec2.Total)
}

func TestReconcile_DeduplicatesMonths(t *testing.T) {
	mem, x, _ := newFixture(t)
	addInvoice(t, mem, x, major(1_000), "2024-01-05")
	engine := newTestEngine(mem, mem)

	result, err := engine.Reconcile(context.Background(), "2024-01", "2024-01", "2024-01")
	require.NoError(t, err)
	assert.Equal(t, []finance.MonthKey{"2024-01"}, result.AffectedMonths)
}

// =============================================================================
// CROSS-MONTH MOVE
// =============================================================================

func TestAfterInvoiceUpdate_DateMoveRecomputesBothMonths(t *testing.T) {
	// GIVEN: A 50,000 invoice dated 2024-01, reconciled
	// WHEN: Its date moves to 2024-02 and both months reconcile
	// THEN: January drops to bare retainer and February picks up the revenue

	mem, x, _ := newFixture(t)
	inv := addInvoice(t, mem, x, major(50_000), "2024-01-15")
	engine := newTestEngine(mem, mem)
	ctx := context.Background()

	_, err := engine.AfterInvoiceCreate(ctx, inv.Month())
	require.NoError(t, err)

	newDate := finance.Date("2024-02-10")
	require.NoError(t, mem.UpdateInvoice(ctx, inv.ID, finance.InvoiceUpdate{Date: &newDate}))

	result, err := engine.AfterInvoiceUpdate(ctx, "2024-01", "2024-02")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []finance.MonthKey{"2024-01", "2024-02"}, result.AffectedMonths)

	jan, err := mem.SalaryByMonth(ctx, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, jan)
	assert.Equal(t, finance.Money(0), jan.Commission)
	assert.Equal(t, major(15_000), jan.Total, "origin month falls back to bare retainer")

	feb, err := mem.SalaryByMonth(ctx, "2024-02")
	require.NoError(t, err)
	require.NotNil(t, feb)
	assert.Equal(t, major(5_000), feb.Commission)
	assert.Equal(t, major(20_000), feb.Total, "destination month picks up the revenue")
}

// =============================================================================
// PARTIAL FAILURE ISOLATION
// =============================================================================

func TestReconcile_PartialFailureIsolation(t *testing.T) {
	// GIVEN: Three months where the ledger write for 2024-03 fails
	// WHEN: Reconciling all three in one run
	// THEN: The other two upsert correctly and the failure is reported

	mem, x, _ := newFixture(t)
	addInvoice(t, mem, x, major(10_000), "2024-01-10")
	addInvoice(t, mem, x, major(20_000), "2024-02-10")
	addInvoice(t, mem, x, major(30_000), "2024-03-10")

	ledger := &flakyLedger{SalaryLedger: mem, failMonth: "2024-03"}
	engine := newTestEngine(mem, ledger)
	ctx := context.Background()

	result, err := engine.Reconcile(ctx, "2024-01", "2024-02", "2024-03")
	require.NoError(t, err, "per-month failures are reported, not returned")

	assert.False(t, result.Success)
	assert.Equal(t, []finance.MonthKey{"2024-01", "2024-02"}, result.AffectedMonths)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "2024-03")

	jan, err := mem.SalaryByMonth(ctx, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, jan)
	assert.Equal(t, major(16_000), jan.Total)

	feb, err := mem.SalaryByMonth(ctx, "2024-02")
	require.NoError(t, err)
	require.NotNil(t, feb)
	assert.Equal(t, major(17_000), feb.Total)

	mar, err := mem.SalaryByMonth(ctx, "2024-03")
	require.NoError(t, err)
	assert.Nil(t, mar, "failed month must not have a row")
}

func TestReconcile_CriticalFailureAbortsRun(t *testing.T) {
	mem, x, _ := newFixture(t)
	addInvoice(t, mem, x, major(1_000), "2024-01-05")
	engine := newTestEngine(mem, &closedLedger{SalaryLedger: mem})

	_, err := engine.Reconcile(context.Background(), "2024-01", "2024-02")
	assert.ErrorIs(t, err, finance.ErrStoreClosed)
}

func TestReconcile_CanceledContextAborts(t *testing.T) {
	// The memory store ignores ctx, so surface the cancellation from the
	// ledger the way a real driver would.
	mem, x, _ := newFixture(t)
	addInvoice(t, mem, x, major(1_000), "2024-01-05")
	engine := newTestEngine(mem, &ctxLedger{SalaryLedger: mem})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Reconcile(ctx, "2024-01")
	assert.ErrorIs(t, err, context.Canceled)
}

type ctxLedger struct {
	finance.SalaryLedger
}

func (c *ctxLedger) UpsertSalary(ctx context.Context, m finance.MonthKey, b finance.SalaryBreakdown) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.SalaryLedger.UpsertSalary(ctx, m, b)
}

// =============================================================================
// BUSY REJECTION
// =============================================================================

func TestReconcile_BusyRejection(t *testing.T) {
	// GIVEN: A run held open inside its first store read
	// WHEN: A second Reconcile is issued
	// THEN: It returns ErrSyncBusy and the first run completes untouched

	mem, x, _ := newFixture(t)
	addInvoice(t, mem, x, major(50_000), "2024-01-15")

	gated := &gatedInvoices{
		InvoiceStore: mem,
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	engine := newTestEngine(gated, mem)
	ctx := context.Background()

	done := make(chan struct{})
	var firstResult finance.SyncResult
	var firstErr error
	go func() {
		defer close(done)
		firstResult, firstErr = engine.Reconcile(ctx, "2024-01")
	}()

	<-gated.entered
	assert.True(t, engine.Busy())
	_, err := engine.Reconcile(ctx, "2024-01")
	assert.ErrorIs(t, err, finance.ErrSyncBusy)

	close(gated.release)
	<-done

	require.NoError(t, firstErr)
	assert.True(t, firstResult.Success)
	assert.False(t, engine.Busy(), "busy flag must release after the run")

	rec, err := mem.SalaryByMonth(ctx, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, major(20_000), rec.Total)
}

// =============================================================================
// CASCADE AND FULL RESYNC
// =============================================================================

func TestAfterClientDelete_ReaggregatesOrphanedMonths(t *testing.T) {
	// GIVEN: Client Y invoiced in Jan and Feb, both months reconciled
	// WHEN: Y is deleted (cascade removes its invoices) and the engine
	//       reconciles the months the cascade reported
	// THEN: Both months recompute without Y's revenue

	mem, x, y := newFixture(t)
	addInvoice(t, mem, x, major(10_000), "2024-01-05")
	addInvoice(t, mem, y, major(40_000), "2024-01-20")
	addInvoice(t, mem, y, major(25_000), "2024-02-11")
	engine := newTestEngine(mem, mem)
	ctx := context.Background()

	_, err := engine.FullResync(ctx)
	require.NoError(t, err)

	months, err := mem.DeleteClient(ctx, y)
	require.NoError(t, err)
	assert.Equal(t, []finance.MonthKey{"2024-01", "2024-02"}, months)

	result, err := engine.AfterClientDelete(ctx, months)
	require.NoError(t, err)
	assert.True(t, result.Success)

	jan, err := mem.SalaryByMonth(ctx, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, jan)
	assert.Equal(t, major(16_000), jan.Total, "January keeps only X's 10,000")

	feb, err := mem.SalaryByMonth(ctx, "2024-02")
	require.NoError(t, err)
	require.NotNil(t, feb)
	assert.Equal(t, major(15_000), feb.Total, "February falls back to bare retainer")
}

func TestFullResync_CoversEveryInvoicedMonth(t *testing.T) {
	mem, x, y := newFixture(t)
	addInvoice(t, mem, x, major(5_000), "2023-11-02")
	addInvoice(t, mem, y, major(7_000), "2024-01-15")
	addInvoice(t, mem, x, major(9_000), "2024-04-20")
	engine := newTestEngine(mem, mem)

	result, err := engine.FullResync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []finance.MonthKey{"2023-11", "2024-01", "2024-04"}, result.AffectedMonths)
}

func TestReconcile_ZeroInvoiceMonthKeepsBareRetainerRow(t *testing.T) {
	// Deleting a month's only invoice leaves the row in place at zero
	// revenue rather than deleting it.
	mem, x, _ := newFixture(t)
	inv := addInvoice(t, mem, x, major(20_000), "2024-05-09")
	engine := newTestEngine(mem, mem)
	ctx := context.Background()

	_, err := engine.AfterInvoiceCreate(ctx, inv.Month())
	require.NoError(t, err)
	require.NoError(t, mem.DeleteInvoice(ctx, inv.ID))

	result, err := engine.AfterInvoiceDelete(ctx, inv.Month())
	require.NoError(t, err)
	assert.True(t, result.Success)

	rec, err := mem.SalaryByMonth(ctx, "2024-05")
	require.NoError(t, err)
	require.NotNil(t, rec, "empty month retains its row")
	assert.Equal(t, finance.Money(0), rec.Commission)
	assert.Equal(t, major(15_000), rec.Total)
}

func TestReconcile_InvalidMonthKeyIsPerMonthError(t *testing.T) {
	mem, x, _ := newFixture(t)
	addInvoice(t, mem, x, major(1_000), "2024-01-05")
	engine := newTestEngine(mem, mem)

	result, err := engine.Reconcile(context.Background(), "2024-01", "not-a-month")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []finance.MonthKey{"2024-01"}, result.AffectedMonths)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not-a-month")
}
