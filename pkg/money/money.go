// Package money holds the decimal arithmetic shared by pool pricing,
// settlement and delivery cost splitting. Amounts are two decimal places.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const Places int32 = 2

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to cents, which is half-up for the
// non-negative amounts handled here.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// ApplyDiscount returns unitPrice × (1 − pct/100) rounded once.
func ApplyDiscount(unitPrice, pct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	return Round(unitPrice.Mul(factor))
}

// DiscountPercent derives the percentage discount of poolPrice against
// currentPrice, rounded to cents.
func DiscountPercent(currentPrice, poolPrice decimal.Decimal) (decimal.Decimal, error) {
	if !currentPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("current price must be positive")
	}
	return Round(currentPrice.Sub(poolPrice).Div(currentPrice).Mul(hundred)), nil
}

// Percent returns amount × rate rounded to cents.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate))
}

// Mul returns price × qty rounded to cents.
func Mul(price decimal.Decimal, qty int64) decimal.Decimal {
	return Round(price.Mul(decimal.NewFromInt(qty)))
}

// SplitEvenly divides total into n shares that differ by at most one cent
// and sum to total exactly. Every share starts at total/n truncated to cents;
// the leftover cents go one each to the last shares, so shares[0] is the base
// share.
func SplitEvenly(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, fmt.Errorf("split requires at least one share, got %d", n)
	}
	cents := Round(total).Shift(Places).IntPart()
	base, rem := cents/int64(n), cents%int64(n)
	step := int64(1)
	if rem < 0 {
		step, rem = -1, -rem
	}
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		c := base
		if int64(n-i) <= rem {
			c += step
		}
		shares[i] = decimal.New(c, -Places)
	}
	return shares, nil
}

// Sum adds the supplied amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	out := decimal.Zero
	for _, a := range amounts {
		out = out.Add(a)
	}
	return out
}
