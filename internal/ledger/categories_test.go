package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyCaseType(t *testing.T) {
	tests := []struct {
		caseType string
		want     Category
	}{
		{"Final Original", CategoryCore},
		{"FINAL ORIGINAL", CategoryCore},
		{"Provisional Original", CategoryCore},
		{"Additional Assessment", CategoryCore},
		{"Audit Assessment", CategoryCore},
		{"Provisional Amended", CategoryAdjustment},
		{"Arrears", CategoryAdjustment},
		{"Enforcement Order", CategoryAdjustment},
		{"Discharge", CategorySettlement},
		{"Regular Payment", CategorySettlement},
		{"Penalty Fine", CategoryPenalty},
		{"Interest Charge", CategoryPenalty},
		{"Late Submission Fee", CategoryPenalty},
		{"Unknown Thing", CategoryMisc},
		{"", CategoryMisc},
	}

	for _, tt := range tests {
		if got := ClassifyCaseType(tt.caseType); got != tt.want {
			t.Errorf("ClassifyCaseType(%q) = %v, want %v", tt.caseType, got, tt.want)
		}
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	// A text matching several keyword sets resolves to the highest-priority
	// category: core beats adjustment beats settlement beats penalty.
	rules := DefaultCategoryRules()

	if got := rules.Classify("Audit Penalty"); got != CategoryCore {
		t.Errorf("Classify(Audit Penalty) = %v, want core", got)
	}
	if got := rules.Classify("Arrears Interest"); got != CategoryAdjustment {
		t.Errorf("Classify(Arrears Interest) = %v, want adjustment", got)
	}
	if got := rules.Classify("Discharge Penalty"); got != CategorySettlement {
		t.Errorf("Classify(Discharge Penalty) = %v, want settlement", got)
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryCore, "core"},
		{CategoryAdjustment, "adjustment"},
		{CategorySettlement, "settlement"},
		{CategoryPenalty, "penalty"},
		{CategoryMisc, "misc"},
	}
	for _, tt := range tests {
		if got := tt.cat.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestLoadCategoryRules_OverridesAndFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := []byte("core:\n  - veranlagung\n  - bescheid\npenalty:\n  - saumnis\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadCategoryRules(path)
	if err != nil {
		t.Fatalf("LoadCategoryRules: %v", err)
	}

	if got := rules.Classify("Veranlagung 2023"); got != CategoryCore {
		t.Errorf("overridden core keyword not applied, got %v", got)
	}
	if got := rules.Classify("Saumnis"); got != CategoryPenalty {
		t.Errorf("overridden penalty keyword not applied, got %v", got)
	}
	// Default keyword replaced by override.
	if got := rules.Classify("Final Original"); got == CategoryCore {
		t.Error("overridden section should drop default core keywords")
	}
	// Untouched sections keep their defaults.
	if got := rules.Classify("Discharge"); got != CategorySettlement {
		t.Errorf("settlement defaults lost, got %v", got)
	}
}

func TestLoadCategoryRules_MissingFile(t *testing.T) {
	_, err := LoadCategoryRules(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing rules file")
	}
}
