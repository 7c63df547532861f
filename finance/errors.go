/*
errors.go - Centralized error types for the finance engine

PURPOSE:
  All sentinel errors in one place. Stores and the reconciliation engine
  wrap these with context; callers classify with errors.Is/errors.As.

ERROR CATEGORIES:
  1. Validation errors  - bad amounts, dates, month keys (caller's input)
  2. Lookup errors      - missing clients/invoices
  3. Sync errors        - busy engine, per-month reconciliation failures
  4. Store errors       - closed or exhausted store operations

USAGE:
  if errors.Is(err, finance.ErrClientNotFound) { ... 404 ... }

  var monthErr *finance.MonthSyncError
  if errors.As(err, &monthErr) { ... which month failed ... }
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for non-numeric, non-finite, or
	// non-positive monetary input. Rejected at the boundary; it never
	// reaches the reconciliation engine.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned for a malformed calendar date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidMonthKey is returned for a malformed YYYY-MM month key.
	ErrInvalidMonthKey = errors.New("invalid month key")

	// ErrClientNotFound is returned when an invoice references a client id
	// that does not resolve. The engine never substitutes a client.
	ErrClientNotFound = errors.New("client not found")

	// ErrInvoiceNotFound is returned when an invoice id does not resolve.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvoiceNumberGeneration is returned when the uniqueness retry
	// budget for invoice numbers is exhausted. Fatal: no invoice is created.
	ErrInvoiceNumberGeneration = errors.New("invoice number generation failed")

	// ErrSyncBusy is returned when a reconcile request arrives while another
	// run is in flight. The caller retries; the in-flight run is unaffected.
	ErrSyncBusy = errors.New("reconciliation already running")

	// ErrStoreClosed is returned by store operations after Close. Treated as
	// critical by the engine: the whole run aborts rather than skipping months.
	ErrStoreClosed = errors.New("store is closed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MonthSyncError records the failure of a single month inside a
// reconciliation run. Other months in the same run are unaffected.
type MonthSyncError struct {
	Month MonthKey
	Err   error
}

func (e *MonthSyncError) Error() string {
	return fmt.Sprintf("month %s: %v", e.Month, e.Err)
}

func (e *MonthSyncError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}

// IsValidation reports whether the error is due to invalid caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidMonthKey)
}

// IsRetryable reports whether the operation might succeed if re-issued.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSyncBusy)
}
