package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenDecimals is the stablecoin's fractional-unit convention. Amounts on
// the wire are integers scaled by 10^6.
const TokenDecimals = 6

// ParseUnits converts a decimal string such as "100" or "12.5" into its
// base-unit integer at the given scale. Negative values and fractions finer
// than the scale are rejected.
func ParseUnits(value string, decimals int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(value, "-") {
		return nil, fmt.Errorf("amount must be positive: %s", value)
	}

	whole, frac := value, ""
	if i := strings.IndexByte(value, '.'); i >= 0 {
		whole, frac = value[:i], value[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %s has more than %d fractional digits", value, decimals)
	}
	frac = frac + strings.Repeat("0", decimals-len(frac))

	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return out, nil
}

// FormatUnits renders a base-unit integer as a decimal string, trimming
// trailing fractional zeros ("6500000000" at scale 6 becomes "6500").
func FormatUnits(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(value, scale, new(big.Int))

	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := strings.TrimRight(leftPadZero(frac.Abs(frac).String(), decimals), "0")
	return whole.String() + "." + fracStr
}

func leftPadZero(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// FormatFixed renders a base-unit integer with exactly the given number of
// display decimals, as wallet balances are shown.
func FormatFixed(value *big.Int, decimals, places int) string {
	if value == nil {
		value = new(big.Int)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Set(value), scale, new(big.Int))
	if places <= 0 {
		return whole.String()
	}

	fracStr := leftPadZero(frac.Abs(frac).String(), decimals)
	if places > decimals {
		fracStr += strings.Repeat("0", places-decimals)
	}
	return whole.String() + "." + fracStr[:places]
}
