package transaction

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	feeHigh = decimal.RequireFromString("0.08")
	feeMid  = decimal.RequireFromString("0.05")
	feeLow  = decimal.RequireFromString("0.02")

	tierHigh = decimal.NewFromInt(200)
	tierMid  = decimal.NewFromInt(100)

	two = decimal.NewFromInt(2)
)

// MoneyPattern is the accepted textual form of a price or amount: no leading
// zeros and at most two decimals.
var MoneyPattern = regexp.MustCompile(`^(0\.\d{1,2}|[1-9]\d*(\.\d{1,2})?)$`)

// ParseMoney validates and parses a money string.
func ParseMoney(s string) (decimal.Decimal, error) {
	if !MoneyPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("invalid amount format %q", s)
	}
	return decimal.NewFromString(s)
}

// Subtotal is price × quantity + shipping.
func Subtotal(price float64, quantity int, shipping float64) decimal.Decimal {
	return decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(int64(quantity))).
		Add(decimal.NewFromFloat(shipping))
}

// Fee applies the tiered schedule: above 200 pays 8%, above 100 pays 5%,
// everything else 2%.
func Fee(amount decimal.Decimal) decimal.Decimal {
	switch {
	case amount.GreaterThan(tierHigh):
		return amount.Mul(feeHigh)
	case amount.GreaterThan(tierMid):
		return amount.Mul(feeMid)
	default:
		return amount.Mul(feeLow)
	}
}

// Settlement is what each side pays or receives once fees are applied.
type Settlement struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Fee      decimal.Decimal `json:"fee"`
	Buyer    decimal.Decimal `json:"buyer_amount"`
	Seller   decimal.Decimal `json:"seller_amount"`
}

// Settle splits the fee according to feeType. Amounts are rounded to cents.
func Settle(subtotal, fee decimal.Decimal, feeType FeeType) Settlement {
	s := Settlement{Subtotal: subtotal, Fee: fee}
	switch feeType {
	case FeeBuyer:
		s.Buyer = subtotal.Add(fee)
		s.Seller = subtotal
	case FeeSeller:
		s.Buyer = subtotal
		s.Seller = subtotal.Sub(fee)
	case FeeSplit:
		half := fee.Div(two)
		s.Buyer = subtotal.Add(half)
		s.Seller = subtotal.Sub(half)
	default:
		s.Buyer = subtotal
		s.Seller = subtotal
	}
	s.Buyer = s.Buyer.Round(2)
	s.Seller = s.Seller.Round(2)
	return s
}

// SettleTransaction settles a stored transaction given the product's unit price.
func SettleTransaction(t Transaction, unitPrice float64) Settlement {
	sub := Subtotal(unitPrice, t.ProductNumber, t.ShippingPrice)
	return Settle(sub, decimal.NewFromFloat(t.Fee), t.FeeType)
}
