package finance_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eagerinvoice/finance-engine/finance"
	"github.com/eagerinvoice/finance-engine/finance/store"
)

// =============================================================================
// TEST HELPERS (shared across aggregate, recon, and report tests)
// =============================================================================

func newFixture(t *testing.T) (*store.Memory, finance.ClientID, finance.ClientID) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	x, err := mem.CreateClient(ctx, finance.Client{Name: "Client X", Type: finance.ClientCore, StartDate: "2023-06-01"})
	require.NoError(t, err)
	y, err := mem.CreateClient(ctx, finance.Client{Name: "Client Y", Type: finance.ClientMid, StartDate: "2023-09-01"})
	require.NoError(t, err)
	return mem, x.ID, y.ID
}

func addInvoice(t *testing.T, mem *store.Memory, clientID finance.ClientID, amount finance.Money, date finance.Date) finance.Invoice {
	t.Helper()
	inv, err := mem.CreateInvoice(context.Background(), finance.Invoice{
		ClientID: clientID,
		Amount:   amount,
		Date:     date,
	})
	require.NoError(t, err)
	return inv
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestAggregateMonth_TotalsAndPerClientBreakdown(t *testing.T) {
	// GIVEN: A(X, 1000, 2024-01-05), B(Y, 2000, 2024-01-20), C(X, 500, 2024-02-01)
	// WHEN: Aggregating each month
	// THEN: January totals 3000 split X:1000/Y:2000; February totals 500, X only

	mem, x, y := newFixture(t)
	addInvoice(t, mem, x, major(1_000), "2024-01-05")
	addInvoice(t, mem, y, major(2_000), "2024-01-20")
	addInvoice(t, mem, x, major(500), "2024-02-01")

	agg := finance.Aggregator{Invoices: mem}
	ctx := context.Background()

	jan, err := agg.AggregateMonth(ctx, "2024-01")
	require.NoError(t, err)
	assert.Equal(t, major(3_000), jan.TotalRevenue)
	assert.Equal(t, 2, jan.InvoiceCount)
	assert.Equal(t, major(1_000), jan.PerClient[x])
	assert.Equal(t, major(2_000), jan.PerClient[y])

	feb, err := agg.AggregateMonth(ctx, "2024-02")
	require.NoError(t, err)
	assert.Equal(t, major(500), feb.TotalRevenue)
	assert.Equal(t, major(500), feb.PerClient[x])
	assert.NotContains(t, feb.PerClient, y)
}

func TestAggregateMonth_SharesRoundToTwoDecimals(t *testing.T) {
	mem, x, y := newFixture(t)
	addInvoice(t, mem, x, major(1_000), "2024-01-05")
	addInvoice(t, mem, y, major(2_000), "2024-01-20")

	agg := finance.Aggregator{Invoices: mem}
	res, err := agg.AggregateMonth(context.Background(), "2024-01")
	require.NoError(t, err)

	assert.True(t, res.Shares[x].Equal(decimal.RequireFromString("33.33")), "got %s", res.Shares[x])
	assert.True(t, res.Shares[y].Equal(decimal.RequireFromString("66.67")), "got %s", res.Shares[y])
}

func TestAggregateMonth_EmptyMonthIsZero(t *testing.T) {
	mem, _, _ := newFixture(t)
	agg := finance.Aggregator{Invoices: mem}

	res, err := agg.AggregateMonth(context.Background(), "2024-07")
	require.NoError(t, err)
	assert.Equal(t, finance.Money(0), res.TotalRevenue)
	assert.Empty(t, res.PerClient)
}

func TestAggregateMonth_RejectsMalformedKey(t *testing.T) {
	mem, _, _ := newFixture(t)
	agg := finance.Aggregator{Invoices: mem}

	_, err := agg.AggregateMonth(context.Background(), "2024-1")
	assert.ErrorIs(t, err, finance.ErrInvalidMonthKey)
}

func TestAggregateMonth_ReReadsStoreEveryCall(t *testing.T) {
	// No caching: a mutation between calls is visible immediately.
	mem, x, _ := newFixture(t)
	agg := finance.Aggregator{Invoices: mem}
	ctx := context.Background()

	addInvoice(t, mem, x, major(1_000), "2024-01-05")
	before, err := agg.AggregateMonth(ctx, "2024-01")
	require.NoError(t, err)
	assert.Equal(t, major(1_000), before.TotalRevenue)

	addInvoice(t, mem, x, major(250), "2024-01-06")
	after, err := agg.AggregateMonth(ctx, "2024-01")
	require.NoError(t, err)
	assert.Equal(t, major(1_250), after.TotalRevenue)
}
