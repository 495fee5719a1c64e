package ledger

// offset.go detects offsetting transactions: pairs or groups of entries whose
// debits and credits cancel within Tolerance. Four rules run in fixed order
// over the data rows; a row marked by one rule is never unmarked or
// re-examined by a later one. Structural rows are never candidates.

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// missingDebitNo values are treated as "no debit number", never as a real
// identifier. The en-dash shows up in ledgers pasted from formatted reports.
var missingDebitNoValues = map[string]bool{
	"":       true,
	"-":      true,
	"–": true,
}

// MissingDebitNo reports whether a Debit No cell holds no usable identifier.
func MissingDebitNo(s string) bool {
	return missingDebitNoValues[s]
}

// pairDateWindow is the maximum date distance for Rule 2 implicit pairing.
const pairDateWindow = 31 * 24 * time.Hour

// valueDateLayouts are the accepted Value Date formats. A date that parses
// under neither is treated as infinitely far from everything.
var valueDateLayouts = []string{"02/01/2006", "2006-01-02"}

// RemovedRow records a data row dropped by the detector.
type RemovedRow struct {
	ID            uuid.UUID `json:"id"`
	OriginalIndex int       `json:"originalIndex"`
	Content       string    `json:"content"`
	Cells         []string  `json:"cells"`
	Rule          int       `json:"rule"`
}

// OffsetReport summarizes one detector pass.
type OffsetReport struct {
	Examined    int          `json:"examined"`
	Marked      int          `json:"marked"`
	RuleCounts  [5]int       `json:"-"` // index 1..4; 0 unused
	RemovedRows []RemovedRow `json:"removedRows"`
}

// OffsetDetector applies the four offset rules and tracks every row it has
// removed. The removed-row cache is keyed on (original index, serialized
// content) so repeated passes over evolving tables never record a row twice.
type OffsetDetector struct {
	removed map[string]RemovedRow
}

// NewOffsetDetector creates a detector with an empty removed-row cache.
func NewOffsetDetector() *OffsetDetector {
	return &OffsetDetector{removed: make(map[string]RemovedRow)}
}

// Removed returns every row the detector has dropped across all passes.
func (d *OffsetDetector) Removed() []RemovedRow {
	out := make([]RemovedRow, 0, len(d.removed))
	for _, r := range d.removed {
		out = append(out, r)
	}
	return out
}

// Reset clears the removed-row cache.
func (d *OffsetDetector) Reset() {
	d.removed = make(map[string]RemovedRow)
}

// Apply runs the four rules over the table's data rows, drops every marked
// row, and returns the rebuilt, renormalized table together with a report.
// Grand-total rows are dropped during the rebuild and recomputed fresh; all
// other structural rows are preserved as-is and then renormalized.
func (d *OffsetDetector) Apply(t *Table) (*Table, *OffsetReport, error) {
	if err := RequireAmountColumns(t); err != nil {
		return nil, nil, err
	}

	// Candidate set: data rows only, in table order, with their positions.
	type candidate struct {
		row     Row
		index   int
		debit   float64
		credit  float64
		debitNo string
	}
	var cands []candidate
	for i, row := range t.Rows {
		if t.Kind(row) != KindData {
			continue
		}
		cands = append(cands, candidate{
			row:     row,
			index:   i,
			debit:   ParseAmount(t.Cell(row, ColDebitAmount)),
			credit:  ParseAmount(t.Cell(row, ColCreditAmount)),
			debitNo: t.Cell(row, ColDebitNo),
		})
	}

	marked := make(map[uuid.UUID]int) // row ID -> rule that marked it
	mark := func(c candidate, rule int) {
		if _, done := marked[c.row.ID]; !done {
			marked[c.row.ID] = rule
		}
	}

	// Rule 1: full offset by Debit No. Groups of two or more entries sharing
	// a real debit number whose debits and credits cancel.
	byDebitNo := make(map[string][]int)
	for i, c := range cands {
		if !MissingDebitNo(c.debitNo) {
			byDebitNo[c.debitNo] = append(byDebitNo[c.debitNo], i)
		}
	}
	for _, members := range byDebitNo {
		if len(members) < 2 {
			continue
		}
		var debitSum, creditSum float64
		for _, i := range members {
			debitSum += cands[i].debit
			creditSum += cands[i].credit
		}
		if amountEqual(debitSum, creditSum) {
			for _, i := range members {
				mark(cands[i], 1)
			}
		}
	}

	// Rule 2: implicit pairing for rows without a debit number. First match
	// wins; marked rows are skipped on both sides.
	for i, ci := range cands {
		if _, done := marked[ci.row.ID]; done {
			continue
		}
		if !MissingDebitNo(ci.debitNo) {
			continue
		}
		for j := i + 1; j < len(cands); j++ {
			cj := cands[j]
			if _, done := marked[cj.row.ID]; done {
				continue
			}
			if d.pairMatches(t, ci.row, cj.row, ci.debit+cj.debit, ci.credit+cj.credit) {
				mark(ci, 2)
				mark(cj, 2)
				break
			}
		}
	}

	// Rule 3: zero debit with no debit number, whatever the credit says.
	for _, c := range cands {
		if _, done := marked[c.row.ID]; done {
			continue
		}
		if amountZero(c.debit) && MissingDebitNo(c.debitNo) {
			mark(c, 3)
		}
	}

	// Rule 4: fully empty amounts.
	for _, c := range cands {
		if _, done := marked[c.row.ID]; done {
			continue
		}
		if amountZero(c.debit) && amountZero(c.credit) {
			mark(c, 4)
		}
	}

	report := &OffsetReport{Examined: len(cands)}

	// Rebuild: keep structural rows except grand totals, which get
	// recomputed, and drop marked data rows into the removed cache.
	rebuilt := NewTable(t.Headers)
	for i, row := range t.Rows {
		kind := t.Kind(row)
		if kind == KindGrandTotal {
			continue
		}
		rule, isMarked := marked[row.ID]
		if kind == KindData && isMarked {
			report.Marked++
			report.RuleCounts[rule]++
			removed := RemovedRow{
				ID:            row.ID,
				OriginalIndex: i,
				Content:       row.Serialize(),
				Cells:         append([]string(nil), row.Cells...),
				Rule:          rule,
			}
			key := fmt.Sprintf("%d|%s", i, removed.Content)
			if _, dup := d.removed[key]; !dup {
				d.removed[key] = removed
				report.RemovedRows = append(report.RemovedRows, removed)
			}
			continue
		}
		rebuilt.AppendRow(row)
	}

	return Normalize(rebuilt), report, nil
}

// pairMatches applies the Rule 2 pairing predicate to two unmarked rows, at
// least one of which is known to have no debit number.
func (d *OffsetDetector) pairMatches(t *Table, a, b Row, debitSum, creditSum float64) bool {
	if !MissingDebitNo(t.Cell(a, ColDebitNo)) && !MissingDebitNo(t.Cell(b, ColDebitNo)) {
		return false
	}
	// Combined debits must cancel combined credits, and must not be a
	// trivial zero-zero match.
	if !amountEqual(debitSum, creditSum) || amountZero(debitSum) {
		return false
	}
	if !strings.EqualFold(t.Cell(a, ColTaxType), t.Cell(b, ColTaxType)) {
		return false
	}
	if t.Cell(a, ColPayrollYear) != t.Cell(b, ColPayrollYear) {
		return false
	}
	if !strings.EqualFold(t.Cell(a, ColCaseType), t.Cell(b, ColCaseType)) {
		return false
	}
	return withinDateWindow(t.Cell(a, ColValueDate), t.Cell(b, ColValueDate))
}

// withinDateWindow reports whether two value dates are at most 31 days apart.
// Either date failing to parse makes the distance infinite.
func withinDateWindow(a, b string) bool {
	ta, ok := parseValueDate(a)
	if !ok {
		return false
	}
	tb, ok := parseValueDate(b)
	if !ok {
		return false
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return diff <= pairDateWindow
}

func parseValueDate(s string) (time.Time, bool) {
	for _, layout := range valueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
