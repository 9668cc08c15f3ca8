// Package risk converts margin position state into risk ratio, leverage, LTV,
// liquidation price and rebalance decisions.
//
// Everything in this package is a pure function of its arguments. Degenerate
// arithmetic (zero debt, zero equity, a vanishing liquidation denominator) is
// reported as signed infinity or NaN rather than as an error; callers must
// special-case those values when comparing or formatting.
package risk

import "math"

// LeverageFromRiskRatio converts a risk ratio (assets / debts) to leverage
// (exposure / equity). Ratios at or below 1 have no positive equity and map to +Inf.
func LeverageFromRiskRatio(riskRatio float64) float64 {
	if riskRatio <= 1 {
		return math.Inf(1)
	}
	return 1 / (1 - 1/riskRatio)
}

// RiskRatioFromLeverage is the inverse of LeverageFromRiskRatio.
// Leverage at or below 1 means no debt and maps to +Inf.
func RiskRatioFromLeverage(leverage float64) float64 {
	if leverage <= 1 {
		return math.Inf(1)
	}
	return 1 / (1 - 1/leverage)
}

// LTVFromRiskRatio returns debts / assets. A risk ratio of +Inf yields 0.
func LTVFromRiskRatio(riskRatio float64) float64 {
	if riskRatio <= 0 {
		return math.Inf(1)
	}
	return 1 / riskRatio
}

// CollateralNeeded returns how much quote value must be added so that
// (assets + X) / debts == targetRatio. A result <= 0 means no top-up is
// needed; the caller decides whether to clamp it.
func CollateralNeeded(assets, debts, targetRatio float64) float64 {
	return targetRatio*debts - assets
}

// WithdrawableCollateral returns the largest amount that can be removed while
// keeping (assets - X) / debts >= minRatio. It is never negative.
func WithdrawableCollateral(assets, debts, minRatio float64) float64 {
	return math.Max(0, assets-minRatio*debts)
}

// LiquidationPrices holds the price at which a position reaches the
// liquidation ratio. Only the field matching the position's direction is set.
type LiquidationPrices struct {
	Long  float64 // net-long base: liquidated on a fall to this price
	Short float64 // net-short base: liquidated on a rise to this price
}

// LiquidationPrice solves
//
//	(baseAsset*p + quoteAsset) / (baseDebt*p + quoteDebt) == liquidationRatio
//
// for p. The sign of baseAsset-baseDebt picks the direction; with no net base
// exposure both prices are 0, meaning price alone cannot liquidate the
// position. A zero denominator propagates as ±Inf (or NaN for 0/0).
// The trailing current price does not enter the solution.
func LiquidationPrice(baseAsset, quoteAsset, baseDebt, quoteDebt, liquidationRatio, _ float64) LiquidationPrices {
	var out LiquidationPrices
	netBase := baseAsset - baseDebt
	switch {
	case netBase > 0:
		out.Long = (liquidationRatio*quoteDebt - quoteAsset) / (baseAsset - liquidationRatio*baseDebt)
	case netBase < 0:
		out.Short = (quoteAsset - liquidationRatio*quoteDebt) / (liquidationRatio*baseDebt - baseAsset)
	}
	return out
}
