package currency

import (
	"errors"
	"testing"
)

func TestConvertIdentity(t *testing.T) {
	c := NewConverter()
	got, err := c.Convert(12_345, USD, USD)
	if err != nil {
		t.Fatalf("identity conversion failed: %v", err)
	}
	if got != 12_345 {
		t.Fatalf("expected 12345, got %d", got)
	}
}

func TestConvertEurToUsd(t *testing.T) {
	c := NewConverter()
	got, err := c.Convert(1_000, EUR, USD)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	// 1000 * 11000 / 10000
	if got != 1_100 {
		t.Fatalf("expected 1100, got %d", got)
	}
}

func TestConvertUsdToEurTruncates(t *testing.T) {
	c := NewConverter()
	got, err := c.Convert(999, USD, EUR)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	// 999 * 10000 / 11000 = 908.18..., truncated
	if got != 908 {
		t.Fatalf("expected 908, got %d", got)
	}
}

func TestConvertRoundTripLosesToTruncation(t *testing.T) {
	c := NewConverter()
	eur, err := c.Convert(10_000, USD, EUR)
	if err != nil {
		t.Fatalf("usd->eur: %v", err)
	}
	back, err := c.Convert(eur, EUR, USD)
	if err != nil {
		t.Fatalf("eur->usd: %v", err)
	}
	if back > 10_000 {
		t.Fatalf("round trip must never gain value, got %d from 10000", back)
	}
}

func TestConvertUnsupportedPair(t *testing.T) {
	c := NewConverter()
	if _, err := c.Convert(100, USD, Code("GBP")); !errors.Is(err, ErrUnsupportedConversion) {
		t.Fatalf("expected ErrUnsupportedConversion, got %v", err)
	}
	if c.Supports(USD, "GBP") {
		t.Fatal("GBP pair should not be supported")
	}
	if !c.Supports(EUR, USD) {
		t.Fatal("EUR->USD should be supported")
	}
}
