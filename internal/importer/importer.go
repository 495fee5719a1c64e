// Package importer ingests spreadsheet-shaped ledger exports (CSV or XLSX)
// and hands the reconciliation engine a table in canonical column order.
//
// This is the upstream collaborator of the engine: after import, the table is
// guaranteed to carry exactly the documented columns in the documented order,
// so the engine itself never does header matching.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/taxledger/recon/internal/ledger"
)

// Result is an imported ledger ready for the engine.
type Result struct {
	Records     [][]string // header first, canonical column order
	SourceRows  int        // data rows read from the source
	SkippedRows int        // rows dropped for being entirely empty
}

// ImportFile reads a ledger from a CSV or XLSX payload, picking the parser by
// file extension.
func ImportFile(name string, data []byte) (*Result, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ImportXLSX(data)
	default:
		return ImportCSV(bytes.NewReader(data))
	}
}

// ImportCSV reads a comma-separated ledger. The first record must be the
// header row.
func ImportCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // pasted exports have ragged rows

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return fromRawRecords(records)
}

// ImportXLSX reads the first sheet of an XLSX workbook.
func ImportXLSX(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return fromRawRecords(rows)
}

// fromRawRecords maps raw records onto the canonical column order and drops
// fully empty source rows. Missing required columns abort the import.
func fromRawRecords(raw [][]string) (*Result, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty table: no header row")
	}

	matched := MatchHeaders(raw[0])
	if missing := MissingColumns(matched); len(missing) > 0 {
		return nil, &ledger.MissingColumnsError{Columns: missing}
	}

	result := &Result{
		Records: [][]string{append([]string(nil), ledger.Columns...)},
	}

	for _, src := range raw[1:] {
		if rowEmpty(src) {
			result.SkippedRows++
			continue
		}
		row := make([]string, len(ledger.Columns))
		for c, col := range ledger.Columns {
			pos := matched[col]
			if pos < len(src) {
				row[c] = strings.TrimSpace(src[pos])
			}
		}
		result.Records = append(result.Records, row)
		result.SourceRows++
	}

	return result, nil
}

func rowEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
