package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	GuntasPerAcre = 40
	CentsPerGunta = 100
)

// ParseArea converts "acres.guntas.cents" text into guntas.
//
// Missing trailing segments count as zero, so "2" is two acres and "0.20" is
// twenty guntas. A one-digit cents segment is read as tenths of a gunta
// ("0.81.6" is 81.6). It reports false for empty or malformed text and then
// returns 0. At least one segment must hold digits, so "." is malformed.
func ParseArea(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return 0, false
	}

	var segs [3]int64
	digits := false
	for i, p := range parts {
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		segs[i] = n
		digits = true
	}
	if !digits {
		return 0, false
	}

	cents := decimal.NewFromInt(segs[2])
	if len(parts) == 3 && len(parts[2]) == 1 {
		cents = cents.Mul(decimal.NewFromInt(10))
	}

	guntas := decimal.NewFromInt(segs[0]).Mul(decimal.NewFromInt(GuntasPerAcre)).
		Add(decimal.NewFromInt(segs[1])).
		Add(cents.Div(decimal.NewFromInt(CentsPerGunta)))
	f, _ := guntas.Float64()
	return f, true
}
