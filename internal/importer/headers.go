package importer

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/taxledger/recon/internal/ledger"
)

// maxHeaderDistance is the levenshtein budget for fuzzy header matching.
// Pasted exports regularly carry near-miss headers ("Debit Nr", "Tax  Type");
// anything further away than this is treated as an unknown column.
const maxHeaderDistance = 2

// headerAliases maps common alternate spellings to canonical column names.
// Checked before the fuzzy fallback so aliases win over distance.
var headerAliases = map[string]string{
	"date":          ledger.ColValueDate,
	"value dt":      ledger.ColValueDate,
	"debit number":  ledger.ColDebitNo,
	"debit nr":      ledger.ColDebitNo,
	"debit":         ledger.ColDebitAmount,
	"credit":        ledger.ColCreditAmount,
	"balance":       ledger.ColArrears,
	"payment year":  ledger.ColYearOfPayment,
	"salary year":   ledger.ColPayrollYear,
	"last activity": ledger.ColLastEvent,
}

// MatchHeaders maps each source header to a canonical column name.
// The returned map is keyed by canonical column name, valued by the source
// column position. Matching order: exact (case-insensitive, trimmed), alias,
// then closest levenshtein match within budget.
func MatchHeaders(source []string) map[string]int {
	normalized := make([]string, len(source))
	for i, h := range source {
		normalized[i] = normalizeHeader(h)
	}

	matched := make(map[string]int)
	used := make(map[int]bool)

	// Pass 1: exact matches.
	for _, col := range ledger.Columns {
		want := normalizeHeader(col)
		for i, have := range normalized {
			if !used[i] && have == want {
				matched[col] = i
				used[i] = true
				break
			}
		}
	}

	// Pass 2: aliases.
	for _, col := range ledger.Columns {
		if _, ok := matched[col]; ok {
			continue
		}
		for i, have := range normalized {
			if used[i] {
				continue
			}
			if canonical, ok := headerAliases[have]; ok && canonical == col {
				matched[col] = i
				used[i] = true
				break
			}
		}
	}

	// Pass 3: closest fuzzy match within budget.
	for _, col := range ledger.Columns {
		if _, ok := matched[col]; ok {
			continue
		}
		want := normalizeHeader(col)
		best, bestDist := -1, maxHeaderDistance+1
		for i, have := range normalized {
			if used[i] || have == "" {
				continue
			}
			if d := levenshtein.ComputeDistance(want, have); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			matched[col] = best
			used[best] = true
		}
	}

	return matched
}

// MissingColumns lists canonical columns absent from a header match.
func MissingColumns(matched map[string]int) []string {
	var missing []string
	for _, col := range ledger.Columns {
		if _, ok := matched[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// normalizeHeader lowercases a header and collapses internal whitespace.
func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}
