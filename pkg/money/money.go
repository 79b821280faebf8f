// Package money converts between minor-unit integer amounts and the
// major-unit representations used by payment providers and the dashboard.
// Balances are stored exclusively as signed integer cents; floats only
// appear at the provider boundary.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToMinorUnits parses a major-unit amount into cents, rounding half up on
// anything beyond two decimal places. Both "," and "." are accepted as the
// decimal separator since the provider reports locale-formatted strings.
func ToMinorUnits(amount string) (int64, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return 0, fmt.Errorf("malformed amount %q", amount)
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed amount %q: %w", amount, err)
	}

	var frac int64
	if fracPart != "" {
		if _, err := strconv.ParseUint(fracPart, 10, 64); err != nil {
			return 0, fmt.Errorf("malformed amount %q: %w", amount, err)
		}

		switch {
		case len(fracPart) == 1:
			frac, _ = strconv.ParseInt(fracPart, 10, 64)
			frac *= 10
		case len(fracPart) == 2:
			frac, _ = strconv.ParseInt(fracPart, 10, 64)
		default:
			v, _ := strconv.ParseInt(fracPart[:3], 10, 64)
			frac = v / 10
			if v%10 >= 5 {
				frac++
			}
		}
	}

	cents := whole*100 + frac
	if neg {
		cents = -cents
	}
	return cents, nil
}

// FromFloat converts a major-unit float into cents, rounding half away
// from zero.
func FromFloat(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FormatDisplay renders cents as a major-unit string with "," as the
// decimal separator, e.g. 1250 -> "12,50".
func FormatDisplay(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d,%02d", sign, cents/100, cents%100)
}
