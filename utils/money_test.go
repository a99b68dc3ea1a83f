package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMoney_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"1.234.567", "1234567"},
		{"-1.500", "-1500"},
		{"", "0"},
		{"  250 000 ", "250000"},
	}
	for _, tc := range cases {
		d, err := ParseMoney(tc.in)
		if err != nil {
			t.Fatalf("ParseMoney(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseMoney(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestParseMoney_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"abc", "12a", "$50"} {
		if _, err := ParseMoney(in); err == nil {
			t.Fatalf("ParseMoney(%q) expected error, got nil", in)
		}
	}
}

func TestFormatMoney_GroupsThousands(t *testing.T) {
	cases := []struct {
		in       int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.000"},
		{1234567, "1.234.567"},
		{-1500, "-1.500"},
	}
	for _, tc := range cases {
		got := FormatMoney(decimal.NewFromInt(tc.in))
		if got != tc.expected {
			t.Fatalf("FormatMoney(%d) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}

func TestFormatMoney_RoundTripsParse(t *testing.T) {
	d := decimal.NewFromInt(98765432)
	back, err := ParseMoney(FormatMoney(d))
	if err != nil {
		t.Fatalf("ParseMoney(FormatMoney): %v", err)
	}
	if !back.Equal(d) {
		t.Fatalf("round trip mismatch: %s != %s", back, d)
	}
}
