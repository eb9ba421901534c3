package core

import "testing"

func TestParseArea(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"0.20.00", 20, true},
		{"1.10.50", 50.5, true},
		{"0.81.6", 81.6, true},
		{"0.52.18", 52.18, true},
		{"1.50.0", 90, true},
		{"2", 80, true},
		{"0.20", 20, true},
		{"3..", 120, true},
		{" 0.5.25 ", 5.25, true},
		{"", 0, false},
		{".", 0, false},
		{"..", 0, false},
		{" . ", 0, false},
		{".20.", 20, true},
		{"abc", 0, false},
		{"1.x.00", 0, false},
		{"1.2.3.4", 0, false},
		{"-1.0.0", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseArea(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseArea(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
