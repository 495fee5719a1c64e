// Package ledger implements the reconciliation engine for tax debit/credit
// ledgers: row classification, group and grand total recomputation, separator
// normalization, offsetting-transaction detection, and debit-family linkage
// validation.
//
// The package is pure in-memory table manipulation. It performs no I/O and has
// no knowledge of where tables come from (see internal/importer) or where they
// are persisted (see internal/store).
package ledger

import (
	"fmt"
	"strings"
)

// Canonical column names, in documented order. The importer guarantees the
// table handed to this package carries exactly these columns in this order.
const (
	ColValueDate     = "Value Date"
	ColPeriod        = "Period"
	ColYearOfPayment = "Year of Payment"
	ColPayrollYear   = "Payroll Year"
	ColTaxType       = "Tax Type"
	ColCaseType      = "Case Type"
	ColDebitNo       = "Debit No"
	ColDebitAmount   = "Debit Amount"
	ColCreditAmount  = "Credit Amount"
	ColArrears       = "Arrears"
	ColLastEvent     = "Last Event"
)

// Columns is the canonical column order for a ledger table.
var Columns = []string{
	ColValueDate,
	ColPeriod,
	ColYearOfPayment,
	ColPayrollYear,
	ColTaxType,
	ColCaseType,
	ColDebitNo,
	ColDebitAmount,
	ColCreditAmount,
	ColArrears,
	ColLastEvent,
}

// numericColumns are the monetary columns ignored by the non-numeric-empty
// check during row classification.
var numericColumns = map[string]bool{
	ColDebitAmount:  true,
	ColCreditAmount: true,
	ColArrears:      true,
}

// HeaderIndex maps column names (lowercase, trimmed) to their position in a row.
type HeaderIndex map[string]int

// NewHeaderIndex builds a HeaderIndex from a header row.
// Matching is case-insensitive and whitespace-trimmed.
func NewHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

// Lookup returns the position of a column by name.
func (h HeaderIndex) Lookup(name string) (int, bool) {
	pos, ok := h[strings.ToLower(strings.TrimSpace(name))]
	return pos, ok
}

// Require verifies that all named columns are present.
// Returns a *MissingColumnsError naming every absent column.
func (h HeaderIndex) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := h.Lookup(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

// MissingColumnsError reports required columns absent from a table header.
// It is the only hard-stop condition in the engine: operations that hit it
// abort without mutating the table.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("columns not found: %s", strings.Join(e.Columns, ", "))
}
