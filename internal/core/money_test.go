package core

import "testing"

func TestSum(t *testing.T) {
	cases := []struct {
		in   []float64
		want float64
	}{
		{nil, 0},
		{[]float64{0.1, 0.2}, 0.3},
		{[]float64{1000, 250.5, 49.5}, 1300},
		{[]float64{19.99, 0.01, 80}, 100},
	}
	for _, tc := range cases {
		if got := Sum(tc.in...); got != tc.want {
			t.Fatalf("Sum(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestProductAndRatio(t *testing.T) {
	if got := Product(12.5, 1000, 3); got != 37500 {
		t.Fatalf("Product = %v, want 37500", got)
	}
	if got := Product(); got != 0 {
		t.Fatalf("empty Product = %v, want 0", got)
	}
	if got := Ratio(10, 0); got != 0 {
		t.Fatalf("Ratio by zero = %v, want 0", got)
	}
	if got := Ratio(1, 4); got != 0.25 {
		t.Fatalf("Ratio(1,4) = %v, want 0.25", got)
	}
	if got := Round2(2.345); got != 2.35 {
		t.Fatalf("Round2(2.345) = %v, want 2.35", got)
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"1.23", 1.23, true},
		{"1,250.50", 1250.5, true},
		{" ₹ 300 ", 300, true},
		{"Rs.45", 45, true},
		{"", 0, true},
		{"-", 0, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}
