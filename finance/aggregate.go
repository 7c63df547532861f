/*
aggregate.go - Month-keyed revenue aggregation

PURPOSE:
  Derives, for one month key, the total invoice revenue and the
  per-client breakdown. This is the read side the reconciliation
  engine and the monthly report both sit on.

FRESHNESS:
  Every call re-reads the invoice store. There is no cache to
  invalidate, so the aggregate is always consistent with the store at
  call time. Reconciliation correctness depends on that.
*/
package finance

import (
	"context"

	"github.com/shopspring/decimal"
)

// MonthAggregate is the revenue picture of one month.
type MonthAggregate struct {
	Month        MonthKey
	TotalRevenue Money
	InvoiceCount int

	// PerClient maps each billed client to its revenue within the month.
	PerClient map[ClientID]Money

	// Shares maps each billed client to its percentage of the month's
	// total, rounded to two decimals. All zeros when the total is zero.
	Shares map[ClientID]decimal.Decimal
}

// Aggregator computes MonthAggregates from an InvoiceStore.
type Aggregator struct {
	Invoices InvoiceStore
}

// AggregateMonth sums the month's invoices and groups them by client.
// Deterministic given store contents at call time.
func (a *Aggregator) AggregateMonth(ctx context.Context, month MonthKey) (MonthAggregate, error) {
	if _, err := ParseMonthKey(string(month)); err != nil {
		return MonthAggregate{}, err
	}

	invoices, err := a.Invoices.InvoicesByMonth(ctx, month)
	if err != nil {
		return MonthAggregate{}, err
	}

	agg := MonthAggregate{
		Month:     month,
		PerClient: make(map[ClientID]Money),
		Shares:    make(map[ClientID]decimal.Decimal),
	}
	for _, inv := range invoices {
		agg.TotalRevenue += inv.Amount
		agg.PerClient[inv.ClientID] += inv.Amount
		agg.InvoiceCount++
	}

	hundred := decimal.NewFromInt(100)
	total := decimal.NewFromInt(int64(agg.TotalRevenue))
	for clientID, revenue := range agg.PerClient {
		if agg.TotalRevenue == 0 {
			agg.Shares[clientID] = decimal.Zero
			continue
		}
		share := decimal.NewFromInt(int64(revenue)).Mul(hundred).Div(total)
		agg.Shares[clientID] = share.Round(2)
	}
	return agg, nil
}
