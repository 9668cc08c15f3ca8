package risk

import (
	"fmt"
	"math"

	"margin_maker/internal/core"
)

// Valuation is a snapshot priced in quote units
type Valuation struct {
	Price       float64
	TotalAssets float64
	TotalDebts  float64
	Equity      float64
	RiskRatio   float64 // +Inf when TotalDebts == 0
}

// Leverage derived from the risk ratio
func (v Valuation) Leverage() float64 {
	return LeverageFromRiskRatio(v.RiskRatio)
}

// LTV derived from the risk ratio
func (v Valuation) LTV() float64 {
	return LTVFromRiskRatio(v.RiskRatio)
}

// Value prices a snapshot at the given base price. It performs no validation;
// use ValidateSnapshot first when the input is untrusted.
func Value(p core.PositionSnapshot, price float64) Valuation {
	assets := p.BaseAsset*price + p.QuoteAsset
	debts := p.BaseDebt*price + p.QuoteDebt
	return Valuation{
		Price:       price,
		TotalAssets: assets,
		TotalDebts:  debts,
		Equity:      assets - debts,
		RiskRatio:   riskRatio(assets, debts),
	}
}

func riskRatio(assets, debts float64) float64 {
	if debts == 0 {
		return math.Inf(1)
	}
	return assets / debts
}

// ValidateSnapshot rejects negative, NaN or infinite quantities.
func ValidateSnapshot(p core.PositionSnapshot) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"base_asset", p.BaseAsset},
		{"quote_asset", p.QuoteAsset},
		{"base_debt", p.BaseDebt},
		{"quote_debt", p.QuoteDebt},
	}
	for _, f := range fields {
		if !isQuantity(f.value) {
			return fmt.Errorf("%w: manager %q %s=%v", ErrInvalidInput, p.ManagerKey, f.name, f.value)
		}
	}
	return nil
}

// ValidatePrice requires a finite, strictly positive price.
func ValidatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("%w: price=%v", ErrInvalidInput, price)
	}
	return nil
}

// ValidateThresholds checks Target > Warning > Danger > Liquidation > 0.
func ValidateThresholds(t core.Thresholds) error {
	for _, v := range []float64{t.Target, t.Warning, t.Danger, t.Liquidation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite boundary %v", ErrInvalidThresholds, v)
		}
	}
	if !(t.Target > t.Warning && t.Warning > t.Danger && t.Danger > t.Liquidation && t.Liquidation > 0) {
		return fmt.Errorf("%w: need target > warning > danger > liquidation > 0, got %.4f > %.4f > %.4f > %.4f",
			ErrInvalidThresholds, t.Target, t.Warning, t.Danger, t.Liquidation)
	}
	return nil
}

func isQuantity(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
