package core

import (
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out Amount
		ok  bool
	}{
		{"1", 1, true},
		{"1000", 1000, true},
		{"1,000", 1000, true},
		{" 12,345 ", 12345, true},
		{"¥500", 500, true},
		{"￥1,200", 1200, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"1.5", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"１２", 0, false}, // full-width digits
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestAmountFormat(t *testing.T) {
	cases := map[Amount]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-500:     "-500",
		-1234567: "-1,234,567",

		math.MaxInt64: "9,223,372,036,854,775,807",
		math.MinInt64: "-9,223,372,036,854,775,808",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Fatalf("%d: got %q, want %q", in, got, want)
		}
	}
	if got := Amount(-1500).Yen(); got != "-￥1,500" {
		t.Fatalf("Yen: got %q", got)
	}
	if got := Amount(1500).Yen(); got != "￥1,500" {
		t.Fatalf("Yen: got %q", got)
	}
}
