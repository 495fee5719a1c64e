package ledger

// family.go groups ledger entries into debit families, one per liability
// lifecycle, and judges whether each family is a coherent chain or an
// orphaned/invalid fragment. A family is keyed by (Debit No, Tax Type,
// Payroll Year, Period); credit-only entries with no usable debit number form
// standalone "orphaned credit" families under a sentinel key.

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// NoDebitNumber is the sentinel Debit No for orphaned-credit families.
const NoDebitNumber = "NO DEBIT NUMBER"

// Suggestion is the validator's verdict on what to do with a family.
type Suggestion string

const (
	SuggestKeep   Suggestion = "KEEP"
	SuggestRemove Suggestion = "REMOVE"
)

// FamilyKey identifies one debit family.
type FamilyKey struct {
	DebitNo     string `json:"debitNo"`
	TaxType     string `json:"taxType"`
	PayrollYear string `json:"payrollYear"`
	Period      string `json:"period"`
}

// String renders the key in a stable pipe-joined form usable as a map key
// and as a selection handle in the API.
func (k FamilyKey) String() string {
	return strings.Join([]string{k.DebitNo, k.TaxType, k.PayrollYear, k.Period}, "|")
}

// FamilyEntry is one ledger row viewed as a member of a debit family.
type FamilyEntry struct {
	RowID     uuid.UUID `json:"rowId"`
	Index     int       `json:"index"`
	CaseType  string    `json:"caseType"`
	Category  Category  `json:"category"`
	Debit     float64   `json:"debit"`
	Credit    float64   `json:"credit"`
	Arrears   float64   `json:"arrears"`
	ValueDate string    `json:"valueDate"`
	LastEvent string    `json:"lastEvent"`
}

// Family is a group of entries sharing one liability, with the validator's
// verdict and the user's selection state.
type Family struct {
	Key        FamilyKey     `json:"key"`
	Entries    []FamilyEntry `json:"entries"`
	Valid      bool          `json:"valid"`
	Orphaned   bool          `json:"orphaned"`
	Reason     string        `json:"reason"`
	Suggestion Suggestion    `json:"suggestion"`
	Selected   bool          `json:"selected"`
}

// RowIDs returns the IDs of every row in the family.
func (f *Family) RowIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(f.Entries))
	for i, e := range f.Entries {
		ids[i] = e.RowID
	}
	return ids
}

// LinkageReport is the result of a family analysis pass.
type LinkageReport struct {
	Families []*Family `json:"families"`
	// Unlinked counts data rows with no usable debit number that were not
	// orphaned credits; they cannot be grouped at all.
	Unlinked int `json:"unlinked"`
}

// AnalyzeFamilies groups the table's data rows into debit families, validates
// each family's structure, and returns them in presentation order: invalid
// before valid, orphaned-credit families first among the invalid, ties broken
// by debit number. Invalid families come pre-selected for removal.
func AnalyzeFamilies(t *Table, rules CategoryRules) (*LinkageReport, error) {
	if err := t.Index().Require(ColDebitAmount, ColCreditAmount, ColDebitNo); err != nil {
		return nil, err
	}

	report := &LinkageReport{}
	byKey := make(map[FamilyKey]*Family)
	var ordered []*Family

	for i, row := range t.Rows {
		if t.Kind(row) != KindData {
			continue
		}

		debit := ParseAmount(t.Cell(row, ColDebitAmount))
		credit := ParseAmount(t.Cell(row, ColCreditAmount))
		debitNo := t.Cell(row, ColDebitNo)

		entry := FamilyEntry{
			RowID:     row.ID,
			Index:     i,
			CaseType:  t.Cell(row, ColCaseType),
			Category:  rules.Classify(t.Cell(row, ColCaseType)),
			Debit:     debit,
			Credit:    credit,
			Arrears:   debit - credit,
			ValueDate: t.Cell(row, ColValueDate),
			LastEvent: t.Cell(row, ColLastEvent),
		}

		if MissingDebitNo(debitNo) {
			if amountZero(debit) && credit > Tolerance {
				// Orphaned credit: a standalone family per entry.
				fam := &Family{
					Key: FamilyKey{
						DebitNo:     NoDebitNumber,
						TaxType:     t.Cell(row, ColTaxType),
						PayrollYear: t.Cell(row, ColPayrollYear),
						Period:      t.Cell(row, ColPeriod),
					},
					Entries:  []FamilyEntry{entry},
					Orphaned: true,
				}
				ordered = append(ordered, fam)
				continue
			}
			// No debit number and not an orphaned credit: cannot be linked.
			report.Unlinked++
			continue
		}

		key := FamilyKey{
			DebitNo:     debitNo,
			TaxType:     t.Cell(row, ColTaxType),
			PayrollYear: t.Cell(row, ColPayrollYear),
			Period:      t.Cell(row, ColPeriod),
		}
		fam, ok := byKey[key]
		if !ok {
			fam = &Family{Key: key}
			byKey[key] = fam
			ordered = append(ordered, fam)
		}
		fam.Entries = append(fam.Entries, entry)
	}

	for _, fam := range ordered {
		validateFamily(fam)
		fam.Selected = !fam.Valid
	}

	sortFamilies(ordered)
	report.Families = ordered
	return report, nil
}

// validateFamily fills in Valid, Reason and Suggestion.
func validateFamily(f *Family) {
	if f.Orphaned {
		f.Valid = false
		f.Suggestion = SuggestRemove
		f.Reason = "orphaned credit: no debit number, no debit amount, only credit amount"
		return
	}

	if len(f.Entries) == 1 {
		validateSingle(f)
		return
	}
	validateChain(f)
}

// validateSingle judges a one-entry family.
func validateSingle(f *Family) {
	e := f.Entries[0]
	caseType := strings.ToLower(e.CaseType)

	keep := func(reason string) {
		f.Valid = true
		f.Suggestion = SuggestKeep
		f.Reason = reason
	}
	remove := func(reason string) {
		f.Valid = false
		f.Suggestion = SuggestRemove
		f.Reason = reason
	}

	switch e.Category {
	case CategoryCore:
		switch {
		case strings.Contains(caseType, "final original"):
			keep("standalone liability (final original)")
		case strings.Contains(caseType, "provisional original"):
			keep("standalone preliminary assessment (provisional original)")
		case strings.Contains(caseType, "additional assessment"):
			keep("standalone additional liability")
		default:
			keep("standalone audit finding")
		}
	case CategoryAdjustment:
		switch {
		case strings.Contains(caseType, "arrears"):
			keep("carryover liability (arrears)")
		case strings.Contains(caseType, "provisional amended"):
			remove("no Provisional Original to amend")
		default:
			remove("enforcement action with no underlying liability")
		}
	case CategorySettlement:
		if strings.Contains(caseType, "discharge") {
			remove("orphaned settlement: no matching core liability")
		} else {
			remove("orphaned payment: no matching core liability")
		}
	case CategoryPenalty:
		remove("standalone penalty with no underlying liability")
	default:
		remove("unrecognized standalone entry")
	}
}

// validateChain judges a multi-entry family. The family needs an anchor (a
// core entry or a carryover arrears entry); with an anchor present, amended
// assessments need their original and enforcement needs a liability to act on.
func validateChain(f *Family) {
	var hasCore, hasArrears, hasProvOriginal bool
	var hasSettlement, hasPenalty bool

	for _, e := range f.Entries {
		caseType := strings.ToLower(e.CaseType)
		switch e.Category {
		case CategoryCore:
			hasCore = true
			if strings.Contains(caseType, "provisional original") {
				hasProvOriginal = true
			}
		case CategoryAdjustment:
			if strings.Contains(caseType, "arrears") {
				hasArrears = true
			}
		case CategorySettlement:
			hasSettlement = true
		case CategoryPenalty:
			hasPenalty = true
		}
	}

	remove := func(reason string) {
		f.Valid = false
		f.Suggestion = SuggestRemove
		f.Reason = reason
	}

	if !hasCore && !hasArrears {
		switch {
		case hasSettlement:
			remove("settlement entries with no core liability in family")
		case hasPenalty:
			remove("penalty entries with no core liability in family")
		default:
			remove("no core liability in family")
		}
		return
	}

	for _, e := range f.Entries {
		caseType := strings.ToLower(e.CaseType)
		if strings.Contains(caseType, "provisional amended") && !hasProvOriginal {
			remove("Provisional Amended with no Provisional Original in family")
			return
		}
		if strings.Contains(caseType, "enforcement") && !hasCore && !hasArrears {
			remove("enforcement with no liability in family")
			return
		}
	}

	f.Valid = true
	f.Suggestion = SuggestKeep
	f.Reason = strings.Join(distinctComponents(f.Entries), " + ")
}

// distinctComponents lists the distinct case types present, in order of first
// appearance, title-cased for display.
func distinctComponents(entries []FamilyEntry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		name := titleCase(e.CaseType)
		if name == "" {
			name = "Unspecified"
		}
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// sortFamilies orders families for presentation: invalid before valid,
// orphaned-credit first among the invalid, then debit number.
func sortFamilies(families []*Family) {
	sort.SliceStable(families, func(i, j int) bool {
		a, b := families[i], families[j]
		if a.Valid != b.Valid {
			return !a.Valid
		}
		if a.Orphaned != b.Orphaned {
			return a.Orphaned
		}
		return a.Key.DebitNo < b.Key.DebitNo
	})
}
