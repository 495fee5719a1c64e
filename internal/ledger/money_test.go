package ledger

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"   ", 0},
		{"42", 42},
		{" 42 ", 42},
		{"1,234.50", 1234.5},
		{"12,345,678.90", 12345678.9},
		{"-15.75", -15.75},
		{"not a number", 0},
		{"14/03/2023", 0},
	}

	for _, tt := range tests {
		if got := ParseAmount(tt.in); got != tt.want {
			t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{123, "123.00"},
		{1234.5, "1,234.50"},
		{1234567.8, "1,234,567.80"},
		{-9876.5, "-9,876.50"},
		{-0.004, "-0.00"},
	}

	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAmountEqual_Tolerance(t *testing.T) {
	if !amountEqual(1.0, 1.009) {
		t.Error("values 0.009 apart should match")
	}
	if amountEqual(1.0, 1.011) {
		t.Error("values 0.011 apart should not match")
	}
	if !amountZero(0.005) {
		t.Error("0.005 should count as zero")
	}
	if amountZero(0.02) {
		t.Error("0.02 should not count as zero")
	}
}

func TestFormatParse_RoundTrip(t *testing.T) {
	for _, v := range []float64{0, 12.34, 9999.99, 1234567.89, -500.5} {
		if got := ParseAmount(FormatAmount(v)); !amountEqual(got, v) {
			t.Errorf("round trip %v -> %q -> %v", v, FormatAmount(v), got)
		}
	}
}
