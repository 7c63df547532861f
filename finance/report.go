/*
report.go - Read-only reporting over invoices and the salary ledger

PURPOSE:
  Joins the aggregator's revenue view with the salary ledger to answer
  the display questions: how did a month go, how is all time going,
  who are the biggest clients.

  Reports never mutate and never trigger reconciliation. Between an
  invoice mutation and the completion of its reconcile, a report may
  show the previous salary row; that staleness resolves on the next
  mutation-triggered run.
*/
package finance

import (
	"context"
	"sort"
)

// MonthlyOverview is one month's revenue joined with its salary row.
// Salary is nil when the month has never been reconciled.
type MonthlyOverview struct {
	Month     MonthKey
	Revenue   MonthAggregate
	Salary    *SalaryRecord
	NetProfit Money
}

// AllTimeStats sums every month that has a salary row.
type AllTimeStats struct {
	TotalRevenue  Money
	TotalSalary   Money
	NetProfit     Money
	MonthsTracked int
	InvoiceCount  int
}

// ClientRevenue is one entry of the lifetime top-clients ranking.
type ClientRevenue struct {
	ClientID     ClientID
	Revenue      Money
	InvoiceCount int
}

// Reports is the read-only facade over the stores.
type Reports struct {
	agg    Aggregator
	ledger SalaryLedger
}

// NewReports builds the facade.
func NewReports(invoices InvoiceStore, ledger SalaryLedger) *Reports {
	return &Reports{agg: Aggregator{Invoices: invoices}, ledger: ledger}
}

// MonthlyOverview joins the month's aggregate with its salary row.
// NetProfit = revenue - salary total (revenue itself when no row exists yet).
func (r *Reports) MonthlyOverview(ctx context.Context, month MonthKey) (MonthlyOverview, error) {
	agg, err := r.agg.AggregateMonth(ctx, month)
	if err != nil {
		return MonthlyOverview{}, err
	}
	salary, err := r.ledger.SalaryByMonth(ctx, month)
	if err != nil {
		return MonthlyOverview{}, err
	}

	overview := MonthlyOverview{Month: month, Revenue: agg, Salary: salary}
	overview.NetProfit = agg.TotalRevenue
	if salary != nil {
		overview.NetProfit -= salary.Total
	}
	return overview, nil
}

// AllTime sums revenue and salary across every month with a salary row.
// Months never reconciled (which means never invoiced) contribute nothing.
func (r *Reports) AllTime(ctx context.Context) (AllTimeStats, error) {
	records, err := r.ledger.ListSalaries(ctx)
	if err != nil {
		return AllTimeStats{}, err
	}

	tracked := make(map[MonthKey]bool, len(records))
	var stats AllTimeStats
	for _, rec := range records {
		tracked[rec.Month] = true
		stats.TotalSalary += rec.Total
		stats.MonthsTracked++
	}

	invoices, err := r.agg.Invoices.ListInvoices(ctx)
	if err != nil {
		return AllTimeStats{}, err
	}
	for _, inv := range invoices {
		if !tracked[inv.Month()] {
			continue
		}
		stats.TotalRevenue += inv.Amount
		stats.InvoiceCount++
	}

	stats.NetProfit = stats.TotalRevenue - stats.TotalSalary
	return stats, nil
}

// TopClients ranks clients by lifetime revenue, descending, at most limit
// entries. Ties break by client id so the order is stable.
func (r *Reports) TopClients(ctx context.Context, limit int) ([]ClientRevenue, error) {
	invoices, err := r.agg.Invoices.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}

	byClient := make(map[ClientID]*ClientRevenue)
	for _, inv := range invoices {
		entry, ok := byClient[inv.ClientID]
		if !ok {
			entry = &ClientRevenue{ClientID: inv.ClientID}
			byClient[inv.ClientID] = entry
		}
		entry.Revenue += inv.Amount
		entry.InvoiceCount++
	}

	ranking := make([]ClientRevenue, 0, len(byClient))
	for _, entry := range byClient {
		ranking = append(ranking, *entry)
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Revenue != ranking[j].Revenue {
			return ranking[i].Revenue > ranking[j].Revenue
		}
		return ranking[i].ClientID < ranking[j].ClientID
	})

	if limit > 0 && len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking, nil
}
