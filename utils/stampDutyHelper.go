package utils

import (
	"github.com/shopspring/decimal"
)

// StampDutyBracket charges RatePer100 for each started 100-unit chunk of the
// amount slice falling within (previous ceiling, UpTo]. UpTo == nil means
// the bracket is open-ended.
type StampDutyBracket struct {
	UpTo       *decimal.Decimal `json:"up_to"`
	RatePer100 decimal.Decimal  `json:"rate_per_100"`
}

type StampDutyConfig struct {
	MinAmountSubject decimal.Decimal    `json:"min_amount_subject"`
	MinDuty          decimal.Decimal    `json:"min_duty"`
	MaxDuty          *decimal.Decimal   `json:"max_duty"`
	Brackets         []StampDutyBracket `json:"brackets"`
}

// DefaultStampDutyConfig is the legacy flat rule: 1 DA per started 100 DA,
// clamped to [5, 10000], amounts under 20 DA exempt.
func DefaultStampDutyConfig() StampDutyConfig {
	maxDuty := decimal.NewFromInt(10000)
	return StampDutyConfig{
		MinAmountSubject: decimal.NewFromInt(20),
		MinDuty:          decimal.NewFromInt(5),
		MaxDuty:          &maxDuty,
		Brackets: []StampDutyBracket{
			{UpTo: nil, RatePer100: decimal.NewFromInt(1)},
		},
	}
}

// CalculateStampDuty computes the droit de timbre on a pre-stamp TTC amount.
// Duty is charged per started 100-unit chunk inside each bracket, then the
// total is clamped to [MinDuty, MaxDuty]. The cash-only gating lives at the
// invoice level; this function only sees amounts already subject to duty.
func CalculateStampDuty(amount decimal.Decimal, cfg StampDutyConfig) decimal.Decimal {
	if amount.LessThan(cfg.MinAmountSubject) || !amount.IsPositive() {
		return decimal.Zero
	}

	total := decimal.Zero
	previousCeiling := decimal.Zero
	for _, bracket := range cfg.Brackets {
		upper := amount
		if bracket.UpTo != nil && bracket.UpTo.LessThan(amount) {
			upper = *bracket.UpTo
		}
		portion := upper.Sub(previousCeiling)
		if portion.IsPositive() {
			chunks := portion.Div(decimalOneHundred).Ceil()
			total = total.Add(chunks.Mul(bracket.RatePer100))
		}
		if bracket.UpTo == nil || !bracket.UpTo.LessThan(amount) {
			break
		}
		previousCeiling = *bracket.UpTo
	}

	if total.LessThan(cfg.MinDuty) {
		total = cfg.MinDuty
	}
	if cfg.MaxDuty != nil && total.GreaterThan(*cfg.MaxDuty) {
		total = *cfg.MaxDuty
	}
	return RoundMoney(total)
}

// InverseStampDuty solves for the pre-stamp amount x such that
// x + duty(x) lands on the target post-stamp total. Duty is a
// non-decreasing step function so a binary search converges; exact hits are
// not always possible at chunk boundaries, the caller tolerates one duty
// step of slack.
func InverseStampDuty(target decimal.Decimal, cfg StampDutyConfig) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}

	lo := decimal.Zero
	hi := target
	two := decimal.NewFromInt(2)
	for i := 0; i < 60; i++ {
		mid := lo.Add(hi).Div(two)
		if mid.Add(CalculateStampDuty(mid, cfg)).GreaterThan(target) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return RoundMoney(lo)
}
