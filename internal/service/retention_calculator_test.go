package service

import (
	"errors"
	"testing"

	"taxaudit/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestComputeRetention_Decomposition(t *testing.T) {
	rule := &model.RetentionRate{
		ActivityCode: "6201-5/01",
		Rates: model.LevyMap{
			model.LevyIRRF:   mustDecimal(t, "1.5"),
			model.LevyPIS:    mustDecimal(t, "0.65"),
			model.LevyCOFINS: mustDecimal(t, "3"),
		},
	}

	result, err := ComputeRetention(mustDecimal(t, "1000.00"), rule)
	require.NoError(t, err)

	assert.Equal(t, "15.00", result.Withheld[model.LevyIRRF].StringFixed(2))
	assert.Equal(t, "6.50", result.Withheld[model.LevyPIS].StringFixed(2))
	assert.Equal(t, "30.00", result.Withheld[model.LevyCOFINS].StringFixed(2))
	assert.Equal(t, "51.50", result.TotalWithheld.StringFixed(2))
	assert.Equal(t, "948.50", result.NetValue.StringFixed(2))
}

func TestComputeRetention_NetPlusWithheldEqualsBase(t *testing.T) {
	rule := &model.RetentionRate{
		Rates: model.LevyMap{
			model.LevyIRRF: mustDecimal(t, "4.8"),
			model.LevyINSS: mustDecimal(t, "11"),
			model.LevyISS:  mustDecimal(t, "2.5"),
		},
	}

	for _, base := range []string{"0.01", "1.00", "333.33", "1500.75", "98765.43"} {
		baseAmount := mustDecimal(t, base)
		result, err := ComputeRetention(baseAmount, rule)
		require.NoError(t, err, "base %s", base)

		assert.True(t, result.NetValue.Add(result.TotalWithheld).Equal(baseAmount),
			"base %s: net %s + withheld %s != base", base, result.NetValue, result.TotalWithheld)
		assert.True(t, result.Withheld.Total().Equal(result.TotalWithheld))
		assert.False(t, result.NetValue.IsNegative())
	}
}

func TestComputeRetention_Deterministic(t *testing.T) {
	rule := &model.RetentionRate{
		Rates: model.LevyMap{
			model.LevyPIS:    mustDecimal(t, "0.65"),
			model.LevyCOFINS: mustDecimal(t, "3"),
			model.LevyCSLL:   mustDecimal(t, "1"),
		},
	}
	base := mustDecimal(t, "12345.67")

	first, err := ComputeRetention(base, rule)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := ComputeRetention(base, rule)
		require.NoError(t, err)
		assert.True(t, first.TotalWithheld.Equal(again.TotalWithheld))
		assert.True(t, first.NetValue.Equal(again.NetValue))
		for levy, amount := range first.Withheld {
			assert.True(t, amount.Equal(again.Withheld[levy]), "levy %s drifted", levy)
		}
	}
}

func TestComputeRetention_RoundsHalfToEven(t *testing.T) {
	rule := &model.RetentionRate{
		Rates: model.LevyMap{model.LevyIRRF: mustDecimal(t, "0.125")},
	}

	// 100.00 * 0.125% = 0.125 -> rounds to 0.12, not 0.13
	result, err := ComputeRetention(mustDecimal(t, "100.00"), rule)
	require.NoError(t, err)
	assert.Equal(t, "0.12", result.Withheld[model.LevyIRRF].StringFixed(2))

	// 300.00 * 0.125% = 0.375 -> rounds to 0.38
	result, err = ComputeRetention(mustDecimal(t, "300.00"), rule)
	require.NoError(t, err)
	assert.Equal(t, "0.38", result.Withheld[model.LevyIRRF].StringFixed(2))
}

func TestComputeRetention_RejectsInvalidRules(t *testing.T) {
	base := mustDecimal(t, "1000.00")

	_, err := ComputeRetention(base, nil)
	assert.True(t, errors.Is(err, ErrInvalidRateRule))

	_, err = ComputeRetention(base, &model.RetentionRate{Rates: model.LevyMap{}})
	assert.True(t, errors.Is(err, ErrInvalidRateRule))

	_, err = ComputeRetention(base, &model.RetentionRate{
		Rates: model.LevyMap{model.LevyIRRF: mustDecimal(t, "-1")},
	})
	assert.True(t, errors.Is(err, ErrInvalidRateRule))

	_, err = ComputeRetention(base, &model.RetentionRate{
		Rates: model.LevyMap{
			model.LevyIRRF: mustDecimal(t, "60"),
			model.LevyINSS: mustDecimal(t, "50"),
		},
	})
	assert.True(t, errors.Is(err, ErrInvalidRateRule))
}

func TestComputeRetention_DoesNotMutateRule(t *testing.T) {
	rates := model.LevyMap{model.LevyISS: mustDecimal(t, "5")}
	rule := &model.RetentionRate{Rates: rates}

	_, err := ComputeRetention(mustDecimal(t, "200.00"), rule)
	require.NoError(t, err)

	assert.Len(t, rule.Rates, 1)
	assert.True(t, rule.Rates[model.LevyISS].Equal(mustDecimal(t, "5")))
}
