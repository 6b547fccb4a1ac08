package ledger

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 100},
		{"12", 1_200},
		{"12.5", 1_250},
		{"12.50", 1_250},
		{"0.01", 1},
		{"50.00", 5_000},
		{"25.50", 2_550},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAmountRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "-1", "+1", "1.234", "1.", ".5", "1e2", "12,50", "abc", "1 0"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q): expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestParseAmountRejectsOverflow(t *testing.T) {
	// each of these is regex-valid but whole*100+frac would wrap negative
	for _, in := range []string{
		"184467440737095516.00",
		"92233720368547758.08",
		"99999999999999999999",
	} {
		got, err := ParseAmount(in)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q) = %d, expected ErrInvalidAmount, got %v", in, got, err)
		}
	}

	// largest accepted whole part still converts cleanly
	got, err := ParseAmount("92233720368547757.99")
	if err != nil {
		t.Fatalf("ParseAmount boundary: %v", err)
	}
	if got != 9_223_372_036_854_775_799 {
		t.Fatalf("ParseAmount boundary = %d", got)
	}
	if got < 0 {
		t.Fatal("parsed amount must never be negative")
	}
}
