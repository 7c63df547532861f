package finance

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// DATE - ISO calendar date (YYYY-MM-DD), the only date form the system stores
// =============================================================================

// Date is an ISO calendar date string. Invoices and clients carry dates at
// day granularity only; there is no time-of-day anywhere in the model.
type Date string

const dateLayout = "2006-01-02"

// ParseDate validates an ISO date string.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidDate, s)
	}
	return Date(s), nil
}

// DateOf truncates a time to its calendar date.
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format(dateLayout))
}

// Month returns the month key the date falls in.
func (d Date) Month() MonthKey {
	if len(d) < 7 {
		return ""
	}
	return MonthKey(d[:7])
}

func (d Date) String() string { return string(d) }

// =============================================================================
// MONTH KEY - YYYY-MM bucket for invoices and salary records
// =============================================================================

// MonthKey is the YYYY-MM truncation of a calendar date. It is the unit of
// reconciliation: invoice revenue aggregates per month key, and the salary
// ledger holds at most one row per month key.
type MonthKey string

const monthLayout = "2006-01"

// ParseMonthKey validates a YYYY-MM string.
func ParseMonthKey(s string) (MonthKey, error) {
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q is not a YYYY-MM month key", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// MonthKeyFor returns the month key containing t.
func MonthKeyFor(t time.Time) MonthKey {
	return MonthKey(t.UTC().Format(monthLayout))
}

func (m MonthKey) String() string { return string(m) }

// Time returns midnight UTC on the first day of the month.
// Zero time for a malformed key.
func (m MonthKey) Time() time.Time {
	t, _ := time.Parse(monthLayout, string(m))
	return t
}

// DedupeMonths returns the distinct non-empty month keys in sorted order.
// Reconciliation runs visit months in this order so results are deterministic.
func DedupeMonths(months []MonthKey) []MonthKey {
	seen := make(map[MonthKey]bool, len(months))
	var out []MonthKey
	for _, m := range months {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
