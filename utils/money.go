package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money travels on the wire as a locale-formatted string ("1.234.567") for
// compatibility with existing clients. Internally everything is decimal;
// these two functions are the only place the string shape exists.

// ParseMoney accepts user-formatted amounts like:
// - "20000"
// - "1.234.567" (thousand separators)
// - "20,000"
// - "-1.500"
//
// Separator characters are stripped; the remainder must be an integer amount.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '.' || r == ',' || r == ' ' {
			continue
		} else {
			return decimal.Zero, fmt.Errorf("invalid amount %q", s)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		clean = "-" + clean
	}
	return decimal.NewFromString(clean)
}

// FormatMoney renders an amount with "." thousand separators, truncated to a
// whole number (amounts are tracked in whole currency units).
func FormatMoney(d decimal.Decimal) string {
	s := d.Truncate(0).String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = strings.TrimPrefix(s, "-")
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ".")
	if neg {
		out = "-" + out
	}
	return out
}
