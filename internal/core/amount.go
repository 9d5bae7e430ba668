// Package core provides amount parsing and formatting.
//
// Amounts are whole currency units. The ledger's reference currency is the
// yen, which has no minor unit, so there is no decimal part to round.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts user input to a positive Amount.
//
// It accepts an optional leading yen sign (¥ or ￥) and comma thousands
// separators. Zero, signed values and anything non-numeric are rejected.
//
// Examples:
//
//	ParseAmount("1000")    -> 1000, nil
//	ParseAmount("1,000")   -> 1000, nil
//	ParseAmount("￥12,345") -> 12345, nil
//	ParseAmount("0")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return Amount(v), nil
}

// String formats the amount with comma thousands separators, e.g. "-1,234".
func (a Amount) String() string {
	neg := a < 0
	u := uint64(a)
	if neg {
		u = -u // two's complement, so math.MinInt64 keeps its magnitude
	}
	digits := strconv.FormatUint(u, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Yen formats the amount for display with a leading ￥.
func (a Amount) Yen() string {
	if a < 0 {
		return "-￥" + (-a).String()
	}
	return "￥" + a.String()
}
