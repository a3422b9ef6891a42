package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateLineItem(t *testing.T) {
	amounts := CalculateLineItem(
		decimal.NewFromInt(2),
		decimal.NewFromInt(500),
		decimal.NewFromInt(10),
		decimal.NewFromInt(19),
	)

	if !amounts.BasePrice.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("base price = %s, want 1000", amounts.BasePrice)
	}
	if !amounts.DiscountAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("discount = %s, want 100", amounts.DiscountAmount)
	}
	if !amounts.TotalHt.Equal(decimal.NewFromInt(900)) {
		t.Errorf("total HT = %s, want 900", amounts.TotalHt)
	}
	if !amounts.VatAmount.Equal(decimal.NewFromInt(171)) {
		t.Errorf("vat = %s, want 171", amounts.VatAmount)
	}
	if !amounts.TotalTtc.Equal(decimal.NewFromInt(1071)) {
		t.Errorf("total TTC = %s, want 1071", amounts.TotalTtc)
	}
}

func TestCalculateLineItemZeroQuantity(t *testing.T) {
	amounts := CalculateLineItem(decimal.Zero, decimal.NewFromInt(500), decimal.Zero, decimal.NewFromInt(19))
	if !amounts.TotalTtc.IsZero() {
		t.Errorf("total TTC = %s, want 0", amounts.TotalTtc)
	}
}

func TestCalculateLineItemIdentityHolds(t *testing.T) {
	// Persisted amounts must satisfy HT + VAT = TTC exactly at 2 decimals.
	cases := []struct {
		qty, price, discount, vat string
	}{
		{"3", "99.99", "0", "19"},
		{"1", "0.01", "50", "9"},
		{"7", "123.45", "12.5", "19"},
		{"2.5", "19.99", "33.33", "9"},
	}
	for _, tc := range cases {
		amounts := CalculateLineItem(
			decimal.RequireFromString(tc.qty),
			decimal.RequireFromString(tc.price),
			decimal.RequireFromString(tc.discount),
			decimal.RequireFromString(tc.vat),
		)
		if !amounts.TotalHt.Add(amounts.VatAmount).Equal(amounts.TotalTtc) {
			t.Errorf("qty=%s price=%s: %s + %s != %s", tc.qty, tc.price, amounts.TotalHt, amounts.VatAmount, amounts.TotalTtc)
		}
		if amounts.TotalHt.Exponent() < -2 || amounts.VatAmount.Exponent() < -2 {
			t.Errorf("qty=%s price=%s: amounts not rounded to 2 decimals", tc.qty, tc.price)
		}
	}
}

func TestRoundMoneyHalfUp(t *testing.T) {
	if got := RoundMoney(decimal.RequireFromString("1.005")); !got.Equal(decimal.RequireFromString("1.01")) {
		t.Errorf("RoundMoney(1.005) = %s, want 1.01", got)
	}
	if got := RoundMoney(decimal.RequireFromString("2.674")); !got.Equal(decimal.RequireFromString("2.67")) {
		t.Errorf("RoundMoney(2.674) = %s, want 2.67", got)
	}
}
