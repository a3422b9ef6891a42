package utils

import (
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// LineItemAmounts carries both the persisted 2-decimal amounts of one
// invoice line and the full-precision values used for invoice-level
// accumulation. Summing ExactHt/ExactVat across lines and rounding once at
// the invoice level avoids cent drift; rounding happens exactly once per
// aggregate.
type LineItemAmounts struct {
	BasePrice      decimal.Decimal // qty x unit price, full precision
	DiscountAmount decimal.Decimal // rounded, persisted
	TotalHt        decimal.Decimal // rounded, persisted
	VatAmount      decimal.Decimal // rounded, persisted
	TotalTtc       decimal.Decimal // rounded, persisted

	ExactHt  decimal.Decimal
	ExactVat decimal.Decimal
	ExactTtc decimal.Decimal
}

// CalculateLineItem converts one (quantity, unit price, discount %, VAT %)
// tuple into HT/VAT/TTC amounts. Inputs must already be validated by the
// caller: quantity >= 0, unit price >= 0, rates within [0, 100].
func CalculateLineItem(qty, unitPrice, discountRate, vatRate decimal.Decimal) LineItemAmounts {

	basePrice := qty.Mul(unitPrice)

	exactDiscount := basePrice.Mul(discountRate).Div(decimalOneHundred)
	exactHt := basePrice.Sub(exactDiscount)
	exactVat := exactHt.Mul(vatRate).Div(decimalOneHundred)

	discountAmount := RoundMoney(exactDiscount)
	totalHt := RoundMoney(basePrice).Sub(discountAmount)
	vatAmount := RoundMoney(totalHt.Mul(vatRate).Div(decimalOneHundred))

	return LineItemAmounts{
		BasePrice:      basePrice,
		DiscountAmount: discountAmount,
		TotalHt:        totalHt,
		VatAmount:      vatAmount,
		TotalTtc:       totalHt.Add(vatAmount),
		ExactHt:        exactHt,
		ExactVat:       exactVat,
		ExactTtc:       exactHt.Add(exactVat),
	}
}
