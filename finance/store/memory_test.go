package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eagerinvoice/finance-engine/finance"
	"github.com/eagerinvoice/finance-engine/finance/store"
)

func seedClient(t *testing.T, mem *store.Memory, name string) finance.Client {
	t.Helper()
	c, err := mem.CreateClient(context.Background(), finance.Client{
		Name: name, Type: finance.ClientCore, StartDate: "2023-01-01",
	})
	require.NoError(t, err)
	return c
}

func TestMemory_InvoiceLifecycle(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	c := seedClient(t, mem, "Acme")

	inv, err := mem.CreateInvoice(ctx, finance.Invoice{ClientID: c.ID, Amount: 12_500_00, Date: "2024-01-10"})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, "INV-0001", inv.InvoiceNo)

	got, err := mem.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, finance.Money(12_500_00), got.Amount)

	amount := finance.Money(20_000_00)
	require.NoError(t, mem.UpdateInvoice(ctx, inv.ID, finance.InvoiceUpdate{Amount: &amount}))
	got, err = mem.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, amount, got.Amount)

	require.NoError(t, mem.DeleteInvoice(ctx, inv.ID))
	got, err = mem.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, mem.DeleteInvoice(ctx, inv.ID), finance.ErrInvoiceNotFound)
}

func TestMemory_CreateInvoice_Validation(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	c := seedClient(t, mem, "Acme")

	_, err := mem.CreateInvoice(ctx, finance.Invoice{ClientID: c.ID, Amount: 0, Date: "2024-01-10"})
	assert.ErrorIs(t, err, finance.ErrInvalidAmount)

	_, err = mem.CreateInvoice(ctx, finance.Invoice{ClientID: c.ID, Amount: 100, Date: "bad-date"})
	assert.ErrorIs(t, err, finance.ErrInvalidDate)

	_, err = mem.CreateInvoice(ctx, finance.Invoice{ClientID: "ghost", Amount: 100, Date: "2024-01-10"})
	assert.ErrorIs(t, err, finance.ErrClientNotFound)
}

func TestMemory_InvoiceNumbersIncrement(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	c := seedClient(t, mem, "Acme")

	first, err := mem.CreateInvoice(ctx, finance.Invoice{ClientID: c.ID, Amount: 100, Date: "2024-01-10"})
	require.NoError(t, err)
	second, err := mem.CreateInvoice(ctx, finance.Invoice{ClientID: c.ID, Amount: 100, Date: "2024-01-11"})
	require.NoError(t, err)

	assert.Equal(t, "INV-0001", first.InvoiceNo)
	assert.Equal(t, "INV-0002", second.InvoiceNo)

	// A caller-supplied number is kept as-is and the sequence continues past it.
	third, err := mem.CreateInvoice(ctx, finance.Invoice{InvoiceNo: "INV-0100", ClientID: c.ID, Amount: 100, Date: "2024-01-12"})
	require.NoError(t, err)
	assert.Equal(t, "INV-0100", third.InvoiceNo)

	fourth, err := mem.CreateInvoice(ctx, finance.Invoice{ClientID: c.ID, Amount: 100, Date: "2024-01-13"})
	require.NoError(t, err)
	assert.Equal(t, "INV-0101", fourth.InvoiceNo)
}

func TestMemory_DeleteClient_CascadesAndReportsMonths(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	keep := seedClient(t, mem, "Keeper")
	gone := seedClient(t, mem, "Goner")

	_, err := mem.CreateInvoice(ctx, finance.Invoice{ClientID: keep.ID, Amount: 100, Date: "2024-01-05"})
	require.NoError(t, err)
	_, err = mem.CreateInvoice(ctx, finance.Invoice{ClientID: gone.ID, Amount: 200, Date: "2024-01-20"})
	require.NoError(t, err)
	_, err = mem.CreateInvoice(ctx, finance.Invoice{ClientID: gone.ID, Amount: 300, Date: "2024-03-02"})
	require.NoError(t, err)

	months, err := mem.DeleteClient(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, []finance.MonthKey{"2024-01", "2024-03"}, months)

	remaining, err := mem.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ClientID)

	_, err = mem.DeleteClient(ctx, gone.ID)
	assert.ErrorIs(t, err, finance.ErrClientNotFound)
}

func TestMemory_MonthQueries(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	c := seedClient(t, mem, "Acme")

	for _, date := range []finance.Date{"2024-01-05", "2024-01-20", "2024-02-01"} {
		_, err := mem.CreateInvoice(ctx, finance.Invoice{ClientID: c.ID, Amount: 100, Date: date})
		require.NoError(t, err)
	}

	jan, err := mem.InvoicesByMonth(ctx, "2024-01")
	require.NoError(t, err)
	assert.Len(t, jan, 2)

	months, err := mem.InvoiceMonths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []finance.MonthKey{"2024-01", "2024-02"}, months)
}

func TestMemory_SalaryUpsertOverwrites(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	first := finance.SalaryBreakdown{Retainer: 15_000_00, Commission: 1_000_00, Total: 16_000_00}
	require.NoError(t, mem.UpsertSalary(ctx, "2024-01", first))
	rec1, err := mem.SalaryByMonth(ctx, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, rec1)

	second := finance.SalaryBreakdown{Retainer: 15_000_00, Commission: 2_500_00, Total: 17_500_00}
	require.NoError(t, mem.UpsertSalary(ctx, "2024-01", second))
	rec2, err := mem.SalaryByMonth(ctx, "2024-01")
	require.NoError(t, err)
	require.NotNil(t, rec2)

	assert.Equal(t, rec1.ID, rec2.ID, "overwrite, not append")
	assert.Equal(t, rec1.CreatedAt, rec2.CreatedAt)
	assert.Equal(t, second, rec2.SalaryBreakdown)

	all, err := mem.ListSalaries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "exactly one row per month key")
}

func TestMemory_ClosedStoreFailsEverything(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	c := seedClient(t, mem, "Acme")
	require.NoError(t, mem.Close())

	_, err := mem.GetClient(ctx, c.ID)
	assert.ErrorIs(t, err, finance.ErrStoreClosed)
	_, err = mem.ListInvoices(ctx)
	assert.ErrorIs(t, err, finance.ErrStoreClosed)
	assert.ErrorIs(t, mem.UpsertSalary(ctx, "2024-01", finance.SalaryBreakdown{}), finance.ErrStoreClosed)
}
