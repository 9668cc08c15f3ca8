package risk

// DefaultLevelExposure is the share of equity spread across all quote levels
const DefaultLevelExposure = 0.1

// MaxPositionSize is the gross exposure equity supports at the given leverage.
func MaxPositionSize(equity, leverage float64) float64 {
	return equity * leverage
}

// InterestCost is simple interest on debt over a number of days, using a 365-day year.
func InterestCost(debt, annualRate, days float64) float64 {
	return debt * (annualRate / 365) * days
}

// BreakEvenPrices are the prices at which a quote around entry covers spread and carry
type BreakEvenPrices struct {
	Bid float64
	Ask float64
}

// BreakEven widens entry by the spread plus the carry of interestRate over holdingDays.
func BreakEven(entryPrice, spread, interestRate, holdingDays float64) BreakEvenPrices {
	carry := (interestRate / 365) * holdingDays
	return BreakEvenPrices{
		Bid: entryPrice * (1 - spread - carry),
		Ask: entryPrice * (1 + spread + carry),
	}
}

// OptimalOrderSizes splits equity*exposure across levels, growing each level
// 10% over the previous one. exposure <= 0 means DefaultLevelExposure.
func OptimalOrderSizes(equity float64, levels int, exposure float64) []float64 {
	if levels <= 0 {
		return nil
	}
	if exposure <= 0 {
		exposure = DefaultLevelExposure
	}
	base := equity * exposure / float64(levels)
	sizes := make([]float64, levels)
	for i := range sizes {
		sizes[i] = base * (1 + float64(i)*0.1)
	}
	return sizes
}

// RiskAdjustedSize scales baseSize down proportionally while the risk ratio
// sits below target.
func RiskAdjustedSize(baseSize, riskRatio, targetRiskRatio float64) float64 {
	if riskRatio < targetRiskRatio {
		return baseSize * (riskRatio / targetRiskRatio)
	}
	return baseSize
}
