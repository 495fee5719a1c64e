package ledger

// categories.go maps free-text case types onto lifecycle categories via
// keyword matching. The built-in keyword sets cover the case types seen in
// practice; deployments with localized ledger exports can override them from
// a YAML rules file.

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is the lifecycle role a ledger entry plays within a debit family.
type Category int

const (
	// CategoryCore entries establish a liability: original and additional
	// assessments and audit findings.
	CategoryCore Category = iota
	// CategoryAdjustment entries modify an existing liability.
	CategoryAdjustment
	// CategorySettlement entries pay a liability down.
	CategorySettlement
	// CategoryPenalty entries are sanctions layered on a liability.
	CategoryPenalty
	// CategoryMisc is everything that matched no keyword.
	CategoryMisc
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCore:
		return "core"
	case CategoryAdjustment:
		return "adjustment"
	case CategorySettlement:
		return "settlement"
	case CategoryPenalty:
		return "penalty"
	default:
		return "misc"
	}
}

// CategoryRules holds the keyword sets used to categorize case types,
// evaluated in priority order: core, adjustment, settlement, penalty.
type CategoryRules struct {
	Core       []string `yaml:"core"`
	Adjustment []string `yaml:"adjustment"`
	Settlement []string `yaml:"settlement"`
	Penalty    []string `yaml:"penalty"`
}

// DefaultCategoryRules returns the built-in keyword sets.
func DefaultCategoryRules() CategoryRules {
	return CategoryRules{
		Core:       []string{"final original", "provisional original", "additional assessment", "audit"},
		Adjustment: []string{"provisional amended", "arrears", "enforcement"},
		Settlement: []string{"discharge", "regular payment"},
		Penalty:    []string{"fine", "penalt", "interest", "late submission"},
	}
}

// LoadCategoryRules reads keyword overrides from a YAML file. Empty sections
// fall back to the built-in keywords.
func LoadCategoryRules(path string) (CategoryRules, error) {
	rules := DefaultCategoryRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read category rules: %w", err)
	}

	var loaded CategoryRules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return rules, fmt.Errorf("parse category rules: %w", err)
	}

	if len(loaded.Core) > 0 {
		rules.Core = loaded.Core
	}
	if len(loaded.Adjustment) > 0 {
		rules.Adjustment = loaded.Adjustment
	}
	if len(loaded.Settlement) > 0 {
		rules.Settlement = loaded.Settlement
	}
	if len(loaded.Penalty) > 0 {
		rules.Penalty = loaded.Penalty
	}
	return rules, nil
}

// Classify maps a case-type text to its category by case-insensitive
// substring match, in priority order.
func (r CategoryRules) Classify(caseType string) Category {
	text := strings.ToLower(caseType)

	match := func(keywords []string) bool {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case match(r.Core):
		return CategoryCore
	case match(r.Adjustment):
		return CategoryAdjustment
	case match(r.Settlement):
		return CategorySettlement
	case match(r.Penalty):
		return CategoryPenalty
	default:
		return CategoryMisc
	}
}

// ClassifyCaseType categorizes a case type under the built-in keyword sets.
func ClassifyCaseType(caseType string) Category {
	return DefaultCategoryRules().Classify(caseType)
}
