package finance

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// =============================================================================
// INVOICE NUMBERING - "INV-0042", "INV-0042-X7Q" on collision
// =============================================================================

// invoiceNoAttempts bounds the uniqueness retries before numbering fails.
const invoiceNoAttempts = 5

const suffixAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateInvoiceNo produces a unique invoice number. The first candidate is
// the next sequence after maxSeq ("INV-0043"); collisions retry with a short
// random suffix ("INV-0043-X7Q"). taken reports whether a candidate already
// exists in the store. Exhausting the retry budget is fatal: the caller must
// not create the invoice.
func GenerateInvoiceNo(maxSeq int, taken func(string) (bool, error)) (string, error) {
	base := fmt.Sprintf("INV-%04d", maxSeq+1)
	for attempt := 0; attempt < invoiceNoAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = base + "-" + randomSuffix(3)
		}
		exists, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %d attempts from %s", ErrInvoiceNumberGeneration, invoiceNoAttempts, base)
}

// ParseInvoiceSeq extracts the numeric sequence from an invoice number.
// Returns 0 for anything that does not look like "INV-dddd[-XXX]".
func ParseInvoiceSeq(invoiceNo string) int {
	rest, ok := strings.CutPrefix(invoiceNo, "INV-")
	if !ok {
		return 0
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		rest = rest[:i]
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}
