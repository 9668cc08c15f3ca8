package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeverageRiskRatioRoundTrip(t *testing.T) {
	for _, r := range []float64{1.0001, 1.05, 1.2, 1.5, 2, 3.8908, 10, 250} {
		lev := LeverageFromRiskRatio(r)
		assert.InDelta(t, r, RiskRatioFromLeverage(lev), 1e-9*r, "ratio %v", r)
	}
}

func TestLeverageFromRiskRatio_Degenerate(t *testing.T) {
	for _, r := range []float64{1, 0.99, 0.5, 0, -3} {
		assert.True(t, math.IsInf(LeverageFromRiskRatio(r), 1), "ratio %v", r)
	}
	assert.True(t, math.IsInf(RiskRatioFromLeverage(1), 1))
	assert.True(t, math.IsInf(RiskRatioFromLeverage(0.5), 1))

	// no debt means no leverage beyond 1x
	assert.Equal(t, 1.0, LeverageFromRiskRatio(math.Inf(1)))
	assert.InDelta(t, 2.0, LeverageFromRiskRatio(2), 1e-12)
}

func TestLTVFromRiskRatio(t *testing.T) {
	for _, r := range []float64{0.1, 0.5, 1, 1.5, 2, 40} {
		assert.InDelta(t, 1.0, LTVFromRiskRatio(r)*r, 1e-12, "ratio %v", r)
	}
	assert.Equal(t, 0.0, LTVFromRiskRatio(math.Inf(1)))
	assert.True(t, math.IsInf(LTVFromRiskRatio(0), 1))
}

func TestCollateralNeeded(t *testing.T) {
	// target 2 on 56 of debt needs 112 of assets
	assert.InDelta(t, 12.0, CollateralNeeded(100, 56, 2), 1e-12)
	// already above target: negative result is passed through
	assert.InDelta(t, -105.8843, CollateralNeeded(217.8843, 56, 2), 1e-9)
}

func TestWithdrawableCollateral(t *testing.T) {
	assert.InDelta(t, 88.0, WithdrawableCollateral(200, 56, 2), 1e-12)
	assert.Equal(t, 0.0, WithdrawableCollateral(100, 56, 2))

	assets := []float64{0, 10, 100, 1000}
	debts := []float64{0, 5, 50, 500}
	ratios := []float64{1.05, 1.5, 2, 3}

	for _, d := range debts {
		for _, r := range ratios {
			prev := -1.0
			for _, a := range assets {
				w := WithdrawableCollateral(a, d, r)
				assert.GreaterOrEqual(t, w, 0.0)
				assert.GreaterOrEqual(t, w, prev, "non-decreasing in assets")
				prev = w
			}
		}
	}
	for _, a := range assets {
		for _, r := range ratios {
			prev := math.Inf(1)
			for _, d := range debts {
				w := WithdrawableCollateral(a, d, r)
				assert.LessOrEqual(t, w, prev, "non-increasing in debts")
				prev = w
			}
		}
	}
	for _, a := range assets {
		for _, d := range debts {
			prev := math.Inf(1)
			for _, r := range ratios {
				w := WithdrawableCollateral(a, d, r)
				assert.LessOrEqual(t, w, prev, "non-increasing in min ratio")
				prev = w
			}
		}
	}
}

func TestLiquidationPrice(t *testing.T) {
	t.Run("net long", func(t *testing.T) {
		liq := LiquidationPrice(1, 0, 0, 100, 1, 100)
		assert.InDelta(t, 100.0, liq.Long, 1e-12)
		assert.Equal(t, 0.0, liq.Short)
	})

	t.Run("net long with quote cushion", func(t *testing.T) {
		// 0.2 base + 105.8843 quote against 0.1 base debt never reaches 1.05
		// at a positive price, the solution is negative
		liq := LiquidationPrice(0.2, 105.8843, 0.1, 0, 1.05, 560)
		assert.Less(t, liq.Long, 0.0)
		assert.Equal(t, 0.0, liq.Short)
	})

	t.Run("net short", func(t *testing.T) {
		// 1000 quote, 5 base debt: (1000) / (5p) = 1.1 -> p = 181.81...
		liq := LiquidationPrice(0, 1000, 5, 0, 1.1, 100)
		assert.Equal(t, 0.0, liq.Long)
		assert.InDelta(t, 1000/5.5, liq.Short, 1e-9)
	})

	t.Run("flat", func(t *testing.T) {
		liq := LiquidationPrice(2, 100, 2, 50, 1.1, 100)
		assert.Equal(t, LiquidationPrices{}, liq)
	})

	t.Run("zero denominator surfaces infinity", func(t *testing.T) {
		// baseAsset == ratio*baseDebt with a positive net base
		liq := LiquidationPrice(2, 0, 1, 10, 2, 100)
		assert.True(t, math.IsInf(liq.Long, 1))
	})
}
