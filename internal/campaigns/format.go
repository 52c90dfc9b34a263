package campaigns

import (
	"math/big"
	"strings"

	"chainraise/internal/chain"
)

// Progress computes raised/goal as a percentage with two decimals, straight
// from the raw base-unit integers so no scaling error creeps in. Values
// above 100 are possible; the contract does not cap raised at goal. A zero
// goal reports "0.00" instead of dividing by zero.
func Progress(raised, goal *big.Int) string {
	if raised == nil || goal == nil || goal.Sign() == 0 {
		return "0.00"
	}
	// raised * 100 * 100 / goal, then place the decimal point.
	scaled := new(big.Int).Mul(raised, big.NewInt(10000))
	scaled.Quo(scaled, goal)
	return chain.FormatFixed(scaled, 2, 2)
}

// FormatUSD renders a base-unit amount as a dollar string with thousands
// separators: 6500000000 at scale 6 becomes "$6,500".
func FormatUSD(amount *big.Int) string {
	dec := chain.FormatUnits(amount, chain.TokenDecimals)
	whole, frac := dec, ""
	if i := strings.IndexByte(dec, '.'); i >= 0 {
		whole, frac = dec[:i], dec[i+1:]
	}
	out := groupThousands(whole)
	if frac != "" {
		out += "." + frac
	}
	return "$" + out
}

func groupThousands(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
