package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DisplayPrice is the discounted price rounded to cents. Discounts outside
// 0..100 are clamped.
func (p Product) DisplayPrice() float64 {
	price, _ := p.displayPrice().Float64()
	return price
}

// HasDiscount reports whether the listing shows a reduced price.
func (p Product) HasDiscount() bool {
	return p.DiscountPercentage > 0
}

func (p Product) displayPrice() decimal.Decimal {
	discount := decimal.NewFromFloat(p.DiscountPercentage)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(hundred) {
		discount = hundred
	}
	factor := decimal.NewFromInt(1).Sub(discount.Div(hundred))
	return decimal.NewFromFloat(p.Price).Mul(factor).Round(2)
}

// FormatUSD renders an amount as US dollars, e.g. $1,234.56.
func FormatUSD(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + cents
}
