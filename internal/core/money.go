package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Sum adds amounts in decimal so that totals such as 0.1+0.2 stay exact.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}

// Product multiplies amounts in decimal.
func Product(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	p := decimal.NewFromInt(1)
	for _, v := range values {
		p = p.Mul(decimal.NewFromFloat(v))
	}
	f, _ := p.Float64()
	return f
}

// Ratio returns a/b, or 0 when b is zero.
func Ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(a).DivRound(decimal.NewFromFloat(b), 8).Float64()
	return f
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// ParseAmount reads a non-negative amount from spreadsheet text. Blank is zero;
// thousands separators and a leading currency sign are ignored.
//
//	ParseAmount("1,250.50") -> 1250.5
//	ParseAmount("₹ 300")    -> 300
//	ParseAmount("")         -> 0
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimPrefix(s, "Rs.")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Float64()
	return f, nil
}
