package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Row is a single ledger row. The ID is assigned once, at import time, and
// survives every rewrite pass so that selection and removal sets can key on
// rows that keep their identity while their position shifts.
type Row struct {
	ID    uuid.UUID
	Cells []string
}

// Cell returns the trimmed cell at position pos, or "" when the row is short.
func (r Row) Cell(pos int) string {
	if pos < 0 || pos >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[pos])
}

// Serialize returns a content key for the row, used together with the
// original index to deduplicate removed-row records across repeated passes.
func (r Row) Serialize() string {
	return strings.Join(r.Cells, "|")
}

// Table is an ordered in-memory ledger table. Headers are held apart from the
// data region; at the persistence boundary the header travels as row 0 of the
// array-of-arrays blob (see FromRecords / Records).
type Table struct {
	Headers []string
	Rows    []Row

	idx HeaderIndex
}

// NewTable creates an empty table with the given header.
func NewTable(headers []string) *Table {
	hs := make([]string, len(headers))
	copy(hs, headers)
	return &Table{
		Headers: hs,
		idx:     NewHeaderIndex(hs),
	}
}

// Index returns the header index for this table.
func (t *Table) Index() HeaderIndex {
	if t.idx == nil {
		t.idx = NewHeaderIndex(t.Headers)
	}
	return t.idx
}

// Append adds a row with a freshly assigned ID. Short rows are padded and long
// rows truncated to the header width so every row stays positionally aligned.
func (t *Table) Append(cells []string) Row {
	row := Row{ID: uuid.New(), Cells: alignCells(cells, len(t.Headers))}
	t.Rows = append(t.Rows, row)
	return row
}

// AppendRow adds an existing row (keeping its ID).
func (t *Table) AppendRow(row Row) {
	row.Cells = alignCells(row.Cells, len(t.Headers))
	t.Rows = append(t.Rows, row)
}

// Cell returns the trimmed value of the named column in the given row,
// or "" when the column is absent.
func (t *Table) Cell(row Row, col string) string {
	pos, ok := t.Index().Lookup(col)
	if !ok {
		return ""
	}
	return row.Cell(pos)
}

// Clone returns a deep copy of the table. Row IDs are preserved, so a clone
// can serve as an undo snapshot that later removals can still be keyed against.
func (t *Table) Clone() *Table {
	c := NewTable(t.Headers)
	c.Rows = make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row.Cells))
		copy(cells, row.Cells)
		c.Rows[i] = Row{ID: row.ID, Cells: cells}
	}
	return c
}

// BlankRow returns a row of empty cells matching the table width, with a
// fresh ID. Structural rows are regenerated on every normalization pass and
// do not need stable identity.
func (t *Table) BlankRow() Row {
	return Row{ID: uuid.New(), Cells: make([]string, len(t.Headers))}
}

// FromRecords builds a Table from the array-of-arrays form used at the
// persistence boundary. The first record must be the header row.
func FromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("empty table: no header row")
	}
	t := NewTable(records[0])
	for _, rec := range records[1:] {
		t.Append(rec)
	}
	return t, nil
}

// Records converts the table back to array-of-arrays form, header first.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	header := make([]string, len(t.Headers))
	copy(header, t.Headers)
	out = append(out, header)
	for _, row := range t.Rows {
		cells := make([]string, len(row.Cells))
		copy(cells, row.Cells)
		out = append(out, cells)
	}
	return out
}

// RowByID returns the row with the given ID and its current position.
func (t *Table) RowByID(id uuid.UUID) (Row, int, bool) {
	for i, row := range t.Rows {
		if row.ID == id {
			return row, i, true
		}
	}
	return Row{}, -1, false
}

func alignCells(cells []string, width int) []string {
	aligned := make([]string, width)
	copy(aligned, cells)
	return aligned
}
