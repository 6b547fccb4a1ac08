package ledger

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// amountPattern accepts a non-negative decimal with at most two fractional
// digits. No signs, no exponents, no locale separators.
var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// maxWholeUnits bounds the whole part so whole*100+fraction stays within
// int64. Anything larger would wrap negative.
const maxWholeUnits = (math.MaxInt64 - 99) / 100

// ParseAmount converts a decimal amount string into integer minor units.
// "12.5" becomes 1250. Returns ErrInvalidAmount for anything outside the
// strict format or too large to represent.
func ParseAmount(s string) (int64, error) {
	if !amountPattern.MatchString(s) {
		return 0, ErrInvalidAmount
	}
	whole, frac, _ := strings.Cut(s, ".")
	// right-pad the fractional part to two digits
	frac = (frac + "00")[:2]

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > maxWholeUnits {
		return 0, ErrInvalidAmount
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return w*100 + f, nil
}
