/*
commission.go - Tiered salary calculation

PURPOSE:
  Maps a month's aggregate invoice revenue to the salary for that month:
  a fixed retainer plus a commission computed over ascending revenue
  tiers, with the total capped.

THE TIER TABLE LIVES HERE AND ONLY HERE.
  Every component that needs tier arithmetic (reconciliation, reporting)
  calls CalculateSalary. Duplicating the constants elsewhere is how the
  commission silently diverges between screens.

ALGORITHM:
  Walk the tiers in ascending order. Each tier contributes
  slice * rate, where slice is the revenue falling inside
  [tier floor, tier ceiling). Stop once revenue is exhausted. The
  per-tier products accumulate as exact decimals; rounding to the
  nearest paisa happens once, on the final sum.

DETERMINISM:
  CalculateSalary is pure. The reconciliation engine calls it repeatedly
  during idempotent re-sync; same revenue in, bit-identical salary out.

SEE ALSO:
  - recon.go: the single caller that persists the result
  - report.go: read-only consumers of the same table
*/
package finance

import "github.com/shopspring/decimal"

// Salary constants, in paise.
const (
	// MonthlyRetainer is the fixed salary component, independent of revenue.
	MonthlyRetainer Money = 15_000 * minorPerMajor

	// SalaryCap bounds retainer + commission for any single month.
	SalaryCap Money = 60_000 * minorPerMajor
)

// commissionTier is one ascending revenue band. A zero ceiling means the
// tier is unbounded above.
type commissionTier struct {
	ceiling Money
	rate    decimal.Decimal
}

// commissionTiers is the single source of truth for commission rates:
// first 50,000 at 10%, next 50,000 at 15%, everything above at 20%
// (bounds in major units).
var commissionTiers = []commissionTier{
	{ceiling: 50_000 * minorPerMajor, rate: decimal.New(10, -2)},
	{ceiling: 100_000 * minorPerMajor, rate: decimal.New(15, -2)},
	{ceiling: 0, rate: decimal.New(20, -2)},
}

// CalculateSalary computes the salary breakdown for one month's aggregate
// revenue. Negative revenue clamps to zero; the function never fails.
func CalculateSalary(monthlyRevenue Money) SalaryBreakdown {
	if monthlyRevenue < 0 {
		monthlyRevenue = 0
	}

	commission := decimal.Zero
	floor := Money(0)
	for _, tier := range commissionTiers {
		ceiling := tier.ceiling
		if ceiling == 0 || ceiling > monthlyRevenue {
			ceiling = monthlyRevenue
		}
		slice := ceiling - floor
		if slice <= 0 {
			break
		}
		commission = commission.Add(decimal.NewFromInt(int64(slice)).Mul(tier.rate))
		floor = ceiling
	}

	breakdown := SalaryBreakdown{
		Retainer:   MonthlyRetainer,
		Commission: Money(commission.Round(0).IntPart()),
	}
	breakdown.Total = (breakdown.Retainer + breakdown.Commission).Min(SalaryCap)
	return breakdown
}
