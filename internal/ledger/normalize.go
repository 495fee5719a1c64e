package ledger

// normalize.go rebuilds the structural scaffolding of a ledger table: one
// totals row plus one blank row after every group with nonzero arrears, and a
// single grand-total block at the end. All three passes are pure table
// transforms; callers replace their table reference with the result.

// groupKey identifies a contiguous run of data rows belonging to one group.
// Groups are positional, never sorted: two runs sharing a key separated by a
// different key form two distinct groups.
type groupKey struct {
	taxType     string
	payrollYear string
}

// RecomputeGroupTotals regenerates the per-group totals and separator rows.
//
// Data rows are buffered per contiguous (Tax Type, Payroll Year) run. When the
// key changes, the buffered group is flushed: its rows verbatim, then, if the
// group's arrears (debit sum minus credit sum) is nonzero, one totals row and
// one blank row. Zero-arrears groups get no separator at all. Stale totals and
// blank rows encountered mid-scan are dropped; grand-total rows are collected
// and re-appended unchanged at the end.
func RecomputeGroupTotals(t *Table) *Table {
	out := NewTable(t.Headers)

	var grand []Row
	var buf []Row
	var key groupKey
	inGroup := false

	flush := func() {
		if len(buf) == 0 {
			return
		}
		var debitSum, creditSum float64
		for _, row := range buf {
			out.AppendRow(row)
			debitSum += ParseAmount(t.Cell(row, ColDebitAmount))
			creditSum += ParseAmount(t.Cell(row, ColCreditAmount))
		}
		arrears := debitSum - creditSum
		if !amountZero(arrears) {
			out.AppendRow(totalsRow(out, debitSum, creditSum, arrears))
			out.AppendRow(out.BlankRow())
		}
		buf = buf[:0]
	}

	for _, row := range t.Rows {
		switch t.Kind(row) {
		case KindGrandTotal:
			grand = append(grand, row)
		case KindGroupTotal, KindBlankSeparator:
			// Stale separators; regenerated on flush.
		case KindData:
			k := groupKey{
				taxType:     t.Cell(row, ColTaxType),
				payrollYear: t.Cell(row, ColPayrollYear),
			}
			if !inGroup || k != key {
				flush()
				key = k
				inGroup = true
			}
			buf = append(buf, row)
		default:
			// Defensive fallback: unknown structural rows pass through.
			flush()
			inGroup = false
			out.AppendRow(row)
		}
	}
	flush()

	for _, row := range grand {
		out.AppendRow(row)
	}
	return out
}

// RecomputeGrandTotal replaces the grand-total block with one recomputed from
// the rows currently classified as data. Stale grand-total rows are dropped;
// the lead-in blank is only added when the table does not already end in a
// blank row, so re-invoking the pass reproduces identical row content.
func RecomputeGrandTotal(t *Table) *Table {
	out := NewTable(t.Headers)

	var debitSum, creditSum float64
	for _, row := range t.Rows {
		if t.Kind(row) == KindGrandTotal {
			continue
		}
		out.AppendRow(row)
		if t.Kind(row) == KindData {
			debitSum += ParseAmount(t.Cell(row, ColDebitAmount))
			creditSum += ParseAmount(t.Cell(row, ColCreditAmount))
		}
	}

	if n := len(out.Rows); n == 0 || out.Kind(out.Rows[n-1]) != KindBlankSeparator {
		out.AppendRow(out.BlankRow())
	}
	out.AppendRow(grandTotalRow(out, debitSum, creditSum, debitSum-creditSum))
	return out
}

// CompressSeparatorRows enforces the two-row separator invariant with a single
// forward pass. A totals row always resets the window; the first blank after a
// totals row (or the first stray blank) is kept; every further consecutive
// blank is dropped. Idempotent: compressing a compressed table is a no-op.
func CompressSeparatorRows(t *Table) *Table {
	const (
		stateNone = iota
		stateSawTotals
		stateSawBlank
	)

	out := NewTable(t.Headers)
	state := stateNone

	for _, row := range t.Rows {
		switch t.Kind(row) {
		case KindGroupTotal:
			state = stateSawTotals
			out.AppendRow(row)
		case KindBlankSeparator:
			if state == stateSawBlank {
				continue
			}
			state = stateSawBlank
			out.AppendRow(row)
		default:
			state = stateNone
			out.AppendRow(row)
		}
	}
	return out
}

// Normalize runs the full structural pass: group totals, separator
// compression, then the grand total.
func Normalize(t *Table) *Table {
	return RecomputeGrandTotal(CompressSeparatorRows(RecomputeGroupTotals(t)))
}

// RequireAmountColumns verifies the monetary columns every recomputation
// depends on. This is checked before any mutating operation so a malformed
// table aborts cleanly instead of being half-rewritten.
func RequireAmountColumns(t *Table) error {
	return t.Index().Require(ColDebitAmount, ColCreditAmount)
}

// totalsRow builds a group totals row: monetary cells formatted, all other
// cells blank.
func totalsRow(t *Table, debit, credit, arrears float64) Row {
	row := t.BlankRow()
	setCell(t, &row, ColDebitAmount, FormatAmount(debit))
	setCell(t, &row, ColCreditAmount, FormatAmount(credit))
	setCell(t, &row, ColArrears, FormatAmount(arrears))
	return row
}

// grandTotalRow builds the final summary row, labeled so the classifier
// recognizes it on every subsequent pass.
func grandTotalRow(t *Table, debit, credit, arrears float64) Row {
	row := t.BlankRow()
	setCell(t, &row, ColTaxType, "GRAND TOTAL")
	setCell(t, &row, ColDebitAmount, FormatAmount(debit))
	setCell(t, &row, ColCreditAmount, FormatAmount(credit))
	setCell(t, &row, ColArrears, FormatAmount(arrears))
	return row
}

func setCell(t *Table, row *Row, col, value string) {
	if pos, ok := t.Index().Lookup(col); ok && pos < len(row.Cells) {
		row.Cells[pos] = value
	}
}
