// Package format renders ledger quantities for people.
package format

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
)

// TokenDecimals is the decimal precision of $BKC.
const TokenDecimals = 18

var (
	ErrEmptyAmount   = errors.New("format: amount is empty")
	ErrInvalidAmount = errors.New("format: amount is not a decimal number")
	ErrTooPrecise    = errors.New("format: amount has more fractional digits than the token supports")
)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Units renders v (base units with the given decimals) rounded half-up to
// places fractional digits, with thousands separators.
func Units(v *big.Int, decimals, places int) string {
	if v == nil {
		v = new(big.Int)
	}
	if places < 0 {
		places = 0
	}
	abs := new(big.Int).Abs(v)
	scaled := new(big.Int).Mul(abs, pow10(places))
	divisor := pow10(decimals)
	quo, rem := new(big.Int).QuoRem(scaled, divisor, new(big.Int))
	if rem.Lsh(rem, 1).Cmp(divisor) >= 0 {
		quo.Add(quo, big.NewInt(1))
	}
	intPart, frac := new(big.Int).QuoRem(quo, pow10(places), new(big.Int))
	out := humanize.BigComma(intPart)
	if places > 0 {
		out += "." + fmt.Sprintf("%0*s", places, frac.String())
	}
	if v.Sign() < 0 && quo.Sign() != 0 {
		out = "-" + out
	}
	return out
}

// Tokens renders an 18-decimal amount with two fractional digits.
func Tokens(v *big.Int) string {
	return Units(v, TokenDecimals, 2)
}

// Float converts base units to a display float.
func Float(v *big.Int, decimals int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(v, pow10(decimals)).Float64()
	return f
}

// ParseUnits converts a decimal string such as "12.5" into base units.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil, ErrEmptyAmount
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, ErrInvalidAmount
	}
	if len(frac) > decimals {
		if strings.Trim(frac[decimals:], "0") != "" {
			return nil, ErrTooPrecise
		}
		frac = frac[:decimals]
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	if digits == "" {
		digits = "0"
	}
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok || strings.ContainsAny(digits, "+-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if neg {
		out.Neg(out)
	}
	return out, nil
}

// ParseTokens parses an 18-decimal amount.
func ParseTokens(s string) (*big.Int, error) {
	return ParseUnits(s, TokenDecimals)
}

var pstakeSuffixes = []string{"k", "M", "B", "T"}

// PStake renders a raw pStake figure with k/M/B/T suffixes and two decimals.
// Values below one thousand print as plain integers; values past trillions
// fall back to separated digits.
func PStake(v *big.Int) string {
	if v == nil {
		return "0"
	}
	thousand := big.NewInt(1000)
	if new(big.Int).Abs(v).Cmp(thousand) < 0 {
		return v.String()
	}
	scaled := new(big.Rat).SetInt(v)
	div := new(big.Rat).SetInt(thousand)
	for _, suffix := range pstakeSuffixes {
		scaled.Quo(scaled, div)
		abs := new(big.Rat).Abs(scaled)
		if abs.Cmp(new(big.Rat).SetInt(thousand)) < 0 {
			return scaled.FloatString(2) + suffix
		}
	}
	return humanize.BigComma(v)
}

// Address shortens a to 0x1234...abcd.
func Address(a common.Address) string {
	hex := a.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// Countdown renders a remaining duration as dd:hh:mm:ss, or "Unlocked" once
// it has elapsed.
func Countdown(d time.Duration) string {
	if d <= 0 {
		return "Unlocked"
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02dd:%02dh:%02dm:%02ds", days, hours, minutes, seconds)
}

// Bips renders basis points as a percentage, trimming trailing zeros.
func Bips(bips uint64) string {
	whole := bips / 100
	frac := bips % 100
	switch {
	case frac == 0:
		return fmt.Sprintf("%d%%", whole)
	case frac%10 == 0:
		return fmt.Sprintf("%d.%d%%", whole, frac/10)
	default:
		return fmt.Sprintf("%d.%02d%%", whole, frac)
	}
}

// TxURL links a transaction hash on a block explorer.
func TxURL(explorer string, hash common.Hash) string {
	base := strings.TrimRight(strings.TrimSpace(explorer), "/")
	if base == "" {
		return ""
	}
	return base + "/tx/" + hash.Hex()
}
