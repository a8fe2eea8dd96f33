package wallet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Decimals is the number of lovelace decimal places in one ADA.
const Decimals = 6

// LovelacePerADA is the number of lovelace in one ADA.
const LovelacePerADA = 1_000_000

// AllSentinel requests the entire balance of the source address.
const AllSentinel = "all"

// Amount is a payment amount: a positive number of lovelace, or All.
type Amount struct {
	Lovelace uint64
	All      bool
}

// Lovelace returns a fixed amount.
func Lovelace(v uint64) Amount { return Amount{Lovelace: v} }

// EntireBalance returns the "all" sentinel.
func EntireBalance() Amount { return Amount{All: true} }

func (a Amount) String() string {
	if a.All {
		return AllSentinel
	}
	return FormatADA(a.Lovelace) + " ADA"
}

// ParseAmount parses an ADA amount such as "1.5" or the "all" sentinel.
// Amounts with more than six decimal places are rejected, never rounded.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, AllSentinel) {
		return EntireBalance(), nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q is neither a positive number nor %q", ErrInvalidAmount, s, AllSentinel)
	}
	if !d.IsPositive() {
		return Amount{}, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, s)
	}

	lovelace := d.Shift(Decimals)
	if !lovelace.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, Decimals)
	}
	v := lovelace.BigInt()
	if !v.IsUint64() {
		return Amount{}, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, s)
	}
	return Lovelace(v.Uint64()), nil
}

// FormatADA renders lovelace as ADA with digit grouping and trailing
// fractional zeros trimmed: 1234567500000 -> "1,234,567.5".
func FormatADA(lovelace uint64) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(lovelace), -Decimals)
	_, frac, _ := strings.Cut(d.String(), ".")
	whole := humanize.BigComma(d.BigInt())
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// FormatLovelace renders lovelace with digit grouping.
func FormatLovelace(lovelace uint64) string {
	return humanize.BigComma(new(big.Int).SetUint64(lovelace))
}
