package risk

import (
	"fmt"
	"math"

	"margin_maker/internal/core"
)

// PriceMoveResult projects a position under a hypothetical price change.
//
// EquityChangePercent is (newEquity-currentEquity)/currentEquity*100. With zero
// current equity it is ±Inf, or NaN when equity does not change either.
type PriceMoveResult struct {
	NewPrice            float64
	NewRiskRatio        float64
	NewEquity           float64
	EquityChange        float64
	EquityChangePercent float64
}

// SimulatePriceMove reprices the position at currentPrice*(1+priceChange).
// priceChange is a fraction: -0.1 is a 10% drop. Moves below -100% are rejected.
func SimulatePriceMove(p core.PositionSnapshot, currentPrice, priceChange float64) (PriceMoveResult, error) {
	if err := ValidateSnapshot(p); err != nil {
		return PriceMoveResult{}, err
	}
	if err := ValidatePrice(currentPrice); err != nil {
		return PriceMoveResult{}, err
	}
	if math.IsNaN(priceChange) || math.IsInf(priceChange, 0) || priceChange < -1 {
		return PriceMoveResult{}, fmt.Errorf("%w: price change %v", ErrInvalidInput, priceChange)
	}

	newPrice := currentPrice * (1 + priceChange)
	before := Value(p, currentPrice)
	after := Value(p, newPrice)
	change := after.Equity - before.Equity

	return PriceMoveResult{
		NewPrice:            newPrice,
		NewRiskRatio:        after.RiskRatio,
		NewEquity:           after.Equity,
		EquityChange:        change,
		EquityChangePercent: change / before.Equity * 100,
	}, nil
}

// StressTest runs SimulatePriceMove for each move in order.
func StressTest(p core.PositionSnapshot, currentPrice float64, moves []float64) ([]PriceMoveResult, error) {
	out := make([]PriceMoveResult, 0, len(moves))
	for _, move := range moves {
		res, err := SimulatePriceMove(p, currentPrice, move)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
