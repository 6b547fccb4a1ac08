package currency

import "errors"

// ErrUnsupportedConversion occurs when no rate is configured for the requested
// currency pair.
var ErrUnsupportedConversion = errors.New("unsupported currency conversion")

// Code identifies a supported currency.
type Code string

const (
	USD Code = "USD"
	EUR Code = "EUR"
)

// Valid reports whether the code is one of the supported currencies.
func (c Code) Valid() bool {
	switch c {
	case USD, EUR:
		return true
	default:
		return false
	}
}

// Rate expresses an exchange rate as a rational number so conversions stay in
// integer arithmetic. amount * Num / Scale, truncated.
type Rate struct {
	Num   int64
	Scale int64
}

type pair struct {
	from Code
	to   Code
}

// Converter converts minor-unit amounts between currencies using a fixed rate
// table keyed by ordered pair. Pairs absent from the table are rejected.
type Converter struct {
	rates map[pair]Rate
}

// rateScale is the denominator used by the default rate table.
const rateScale = 10_000

// eurToUsd is the fixed EUR→USD rate at rateScale (1 EUR = 1.10 USD).
const eurToUsd = 11_000

// NewConverter builds a converter with the default USD↔EUR rate table.
func NewConverter() *Converter {
	return &Converter{rates: map[pair]Rate{
		{from: EUR, to: USD}: {Num: eurToUsd, Scale: rateScale},
		{from: USD, to: EUR}: {Num: rateScale, Scale: eurToUsd},
	}}
}

// Convert translates an amount in minor units from one currency to another.
// The result is truncated toward zero, so cross-currency round trips lose up
// to one minor unit per hop; that asymmetry is intentional. Same-currency
// conversion is the identity.
func (c *Converter) Convert(amount int64, from, to Code) (int64, error) {
	if from == to {
		return amount, nil
	}
	rate, ok := c.rates[pair{from: from, to: to}]
	if !ok {
		return 0, ErrUnsupportedConversion
	}
	return amount * rate.Num / rate.Scale, nil
}

// Supports reports whether a direct rate exists for the pair.
func (c *Converter) Supports(from, to Code) bool {
	if from == to {
		return true
	}
	_, ok := c.rates[pair{from: from, to: to}]
	return ok
}
