package ledger

// money.go handles the messy monetary cells found in pasted ledger exports:
// values arrive as plain numbers, comma-grouped strings, or free text. Parsing
// never fails; anything unparsable is coerced to 0 so a stray annotation in an
// amount column cannot abort a reconciliation pass.

import (
	"strconv"
	"strings"
)

// Tolerance is the matching tolerance for monetary comparisons. Two sums whose
// difference is below this value are considered equal.
const Tolerance = 0.01

// ParseAmount interprets a monetary cell as a float64.
// Thousands separators (commas) and surrounding whitespace are stripped first.
// Unparsable values yield 0.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatAmount renders a monetary value with exactly two decimal digits and
// comma thousands separators, e.g. 1234567.8 -> "1,234,567.80".
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart := s[:len(s)-3]
	decPart := s[len(s)-3:] // includes the dot

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	b.WriteString(decPart)
	return b.String()
}

// amountEqual reports whether two monetary values match within Tolerance.
func amountEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < Tolerance
}

// amountZero reports whether a monetary value is zero within Tolerance.
func amountZero(v float64) bool {
	return amountEqual(v, 0)
}
