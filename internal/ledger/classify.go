package ledger

// classify.go derives the structural kind of a row from its content alone.
// Classification is stateless and recomputed on every pass; the normalizer
// depends on the same row classifying the same way no matter how many times
// it is asked.

import "strings"

// RowKind is the structural kind of a ledger row.
type RowKind int

const (
	// KindHeader is the column header row (row 0 of the serialized table).
	KindHeader RowKind = iota
	// KindData is an ordinary debit/credit entry.
	KindData
	// KindGroupTotal is a per-group totals row, including labeled totals
	// whose Tax Type cell carries a "TOTAL" marker.
	KindGroupTotal
	// KindBlankSeparator is the blank row following a group totals row.
	KindBlankSeparator
	// KindGrandTotal is the final whole-table summary row.
	KindGrandTotal
)

// String returns the kind name for logs and test failure messages.
func (k RowKind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindData:
		return "data"
	case KindGroupTotal:
		return "group-total"
	case KindBlankSeparator:
		return "blank-separator"
	case KindGrandTotal:
		return "grand-total"
	default:
		return "unknown"
	}
}

// Classify determines the structural kind of a row under the given header.
//
// The grand-total check overrides everything else: any cell whose uppercased
// text contains both "GRAND" and "TOTAL" makes the row a grand total. A row
// whose non-monetary cells are all empty is a group-total row when a debit or
// credit value is present and a blank separator otherwise. A row whose
// Tax Type cell contains "TOTAL" is a labeled totals row and classifies as
// group total. Everything else is data.
func Classify(row Row, idx HeaderIndex) RowKind {
	for _, cell := range row.Cells {
		up := strings.ToUpper(cell)
		if strings.Contains(up, "GRAND") && strings.Contains(up, "TOTAL") {
			return KindGrandTotal
		}
	}

	if nonNumericEmpty(row, idx) {
		if hasAmount(row, idx, ColDebitAmount) || hasAmount(row, idx, ColCreditAmount) {
			return KindGroupTotal
		}
		return KindBlankSeparator
	}

	if taxType, ok := idx.Lookup(ColTaxType); ok {
		if strings.Contains(strings.ToUpper(row.Cell(taxType)), "TOTAL") {
			return KindGroupTotal
		}
	}

	return KindData
}

// Kind classifies a row under this table's header.
func (t *Table) Kind(row Row) RowKind {
	return Classify(row, t.Index())
}

// nonNumericEmpty reports whether every cell outside the monetary columns
// (Debit Amount, Credit Amount, Arrears) is empty.
func nonNumericEmpty(row Row, idx HeaderIndex) bool {
	for name, pos := range idx {
		if numericColumnLower(name) {
			continue
		}
		if row.Cell(pos) != "" {
			return false
		}
	}
	return true
}

// hasAmount reports whether the named monetary column holds a non-empty value.
func hasAmount(row Row, idx HeaderIndex, col string) bool {
	pos, ok := idx.Lookup(col)
	return ok && row.Cell(pos) != ""
}

func numericColumnLower(lowerName string) bool {
	for col := range numericColumns {
		if strings.ToLower(col) == lowerName {
			return true
		}
	}
	return false
}
