package service

import (
	"fmt"

	"taxaudit/internal/model"

	"github.com/shopspring/decimal"
)

// currencyPlaces is the rounding precision for withheld amounts (BRL cents)
const currencyPlaces = 2

var oneHundred = decimal.NewFromInt(100)

// RetentionResult holds the withholding decomposition of a single payment
type RetentionResult struct {
	Withheld      model.LevyMap   `json:"withheld"` // levy name -> withheld amount
	TotalWithheld decimal.Decimal `json:"total_withheld"`
	NetValue      decimal.Decimal `json:"net_value"`
}

// ComputeRetention decomposes a base amount into per-levy withheld values
// using the rule's percentages, and derives the net payable value.
//
// Each withheld amount is baseAmount * percentage / 100, rounded to cents
// with round-half-to-even (decimal.RoundBank), so repeated runs over the same
// inputs reproduce identical results. The function is pure: no I/O, no
// mutation of its inputs.
//
// A rule whose percentages sum above 100%, carry a negative percentage, or
// whose rounded decomposition would exceed the base amount is rejected with
// ErrInvalidRateRule — a negative net value is never returned.
func ComputeRetention(baseAmount decimal.Decimal, rule *model.RetentionRate) (RetentionResult, error) {
	if rule == nil || len(rule.Rates) == 0 {
		return RetentionResult{}, fmt.Errorf("%w: rule has no levy percentages", ErrInvalidRateRule)
	}

	totalPct := decimal.Zero
	for levy, pct := range rule.Rates {
		if pct.IsNegative() {
			return RetentionResult{}, fmt.Errorf("%w: negative percentage for levy %q", ErrInvalidRateRule, levy)
		}
		totalPct = totalPct.Add(pct)
	}
	if totalPct.GreaterThan(oneHundred) {
		return RetentionResult{}, fmt.Errorf("%w: percentages sum to %s%%", ErrInvalidRateRule, totalPct.String())
	}

	withheld := make(model.LevyMap, len(rule.Rates))
	totalWithheld := decimal.Zero
	for levy, pct := range rule.Rates {
		amount := baseAmount.Mul(pct).Div(oneHundred).RoundBank(currencyPlaces)
		withheld[levy] = amount
		totalWithheld = totalWithheld.Add(amount)
	}

	netValue := baseAmount.Sub(totalWithheld)
	if netValue.IsNegative() {
		// Sub-cent rate splits can round each levy up past the base amount.
		return RetentionResult{}, fmt.Errorf("%w: rounded withholdings %s exceed base %s",
			ErrInvalidRateRule, totalWithheld.String(), baseAmount.String())
	}

	return RetentionResult{
		Withheld:      withheld,
		TotalWithheld: totalWithheld,
		NetValue:      netValue,
	}, nil
}
