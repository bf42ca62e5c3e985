// Money amounts are integer cents. User input is parsed from free-form
// decimal text; everything downstream works in cents so there is no
// floating point in balance arithmetic.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts free-form decimal text to Money. Both the decimal
// comma (12,34) and the decimal point (12.34) are accepted; a third
// decimal digit rounds half-up. Non-numeric, negative and zero inputs
// fail with ErrInvalidAmount.
func ParseAmount(s string) (Money, error) {
	cents, err := parseCents(s, false)
	if err != nil {
		return Money{}, err
	}
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// ParseBalance is ParseAmount with zero allowed, for balance adjustments
// that reset the balance to exactly zero.
func ParseBalance(s string) (Money, error) {
	cents, err := parseCents(s, true)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

func parseCents(s string, allowZero bool) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	if intPart == "0" && fracPart == "" && !allowZero {
		return 0, ErrInvalidAmount
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}
	// First two fractional digits are cents; the third rounds half-up.
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return iv*100 + frac, nil
}

// Units returns the amount in currency units as a float64, for display
// by the presentation layer. Calculations must stay in cents.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}
