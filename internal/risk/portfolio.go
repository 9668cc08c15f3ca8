package risk

import (
	"fmt"
	"math"
	"sort"

	"margin_maker/internal/core"
)

// DeltaNeutralTolerance is the absolute net base exposure, in base units,
// below which a portfolio counts as delta-neutral.
const DeltaNeutralTolerance = 1.0

// PositionMetrics is the per-position input to Aggregate
type PositionMetrics struct {
	ManagerKey  string
	Equity      float64
	TotalAssets float64
	TotalDebts  float64
	RiskRatio   float64
	BaseAsset   float64
	BaseDebt    float64
}

// MetricsOf builds the aggregation input from a snapshot and its valuation.
func MetricsOf(p core.PositionSnapshot, v Valuation) PositionMetrics {
	return PositionMetrics{
		ManagerKey:  p.ManagerKey,
		Equity:      v.Equity,
		TotalAssets: v.TotalAssets,
		TotalDebts:  v.TotalDebts,
		RiskRatio:   v.RiskRatio,
		BaseAsset:   p.BaseAsset,
		BaseDebt:    p.BaseDebt,
	}
}

// PortfolioMetrics summarises a fleet of margin managers.
//
// AvgRiskRatio and EquityWeightedRiskRatio are +Inf when any member carries
// no debt. Leverage is ±Inf when total equity is zero.
type PortfolioMetrics struct {
	Positions               int
	TotalEquity             float64
	TotalAssets             float64
	TotalDebts              float64
	AvgRiskRatio            float64
	EquityWeightedRiskRatio float64
	NetBaseExposure         float64
	Leverage                float64
	LTV                     float64
	IsDeltaNeutral          bool
}

// Aggregate sums the positions and derives fleet-level ratios. The sums run
// in a total order over every field so the result does not depend on input
// order, even when manager keys repeat or are empty.
func Aggregate(positions []PositionMetrics) (PortfolioMetrics, error) {
	if len(positions) == 0 {
		return PortfolioMetrics{}, ErrEmptyPortfolio
	}

	sorted := make([]PositionMetrics, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool { return lessMetrics(sorted[i], sorted[j]) })

	var m PortfolioMetrics
	var ratioSum, weightedSum float64
	for _, p := range sorted {
		if err := validateMetrics(p); err != nil {
			return PortfolioMetrics{}, err
		}
		m.TotalEquity += p.Equity
		m.TotalAssets += p.TotalAssets
		m.TotalDebts += p.TotalDebts
		m.NetBaseExposure += p.BaseAsset - p.BaseDebt
		ratioSum += p.RiskRatio
		weightedSum += weighted(p.RiskRatio, p.Equity)
	}

	m.Positions = len(sorted)
	m.AvgRiskRatio = ratioSum / float64(len(sorted))
	m.EquityWeightedRiskRatio = weightedSum / m.TotalEquity
	m.Leverage = m.TotalAssets / m.TotalEquity
	m.LTV = m.TotalDebts / m.TotalAssets
	m.IsDeltaNeutral = math.Abs(m.NetBaseExposure) < DeltaNeutralTolerance
	return m, nil
}

func lessMetrics(a, b PositionMetrics) bool {
	if a.ManagerKey != b.ManagerKey {
		return a.ManagerKey < b.ManagerKey
	}
	av := [...]float64{a.Equity, a.TotalAssets, a.TotalDebts, a.RiskRatio, a.BaseAsset, a.BaseDebt}
	bv := [...]float64{b.Equity, b.TotalAssets, b.TotalDebts, b.RiskRatio, b.BaseAsset, b.BaseDebt}
	for i := range av {
		if av[i] != bv[i] {
			return av[i] < bv[i]
		}
	}
	return false
}

// weighted avoids Inf*0 = NaN for a debt-free position with no equity
func weighted(ratio, equity float64) float64 {
	if equity == 0 {
		return 0
	}
	return ratio * equity
}

func validateMetrics(p PositionMetrics) error {
	for _, v := range []float64{p.TotalAssets, p.TotalDebts, p.BaseAsset, p.BaseDebt} {
		if !isQuantity(v) {
			return fmt.Errorf("%w: manager %q has a negative or non-finite quantity", ErrInvalidInput, p.ManagerKey)
		}
	}
	if math.IsNaN(p.Equity) || math.IsNaN(p.RiskRatio) || p.RiskRatio < 0 {
		return fmt.Errorf("%w: manager %q has equity=%v risk_ratio=%v", ErrInvalidInput, p.ManagerKey, p.Equity, p.RiskRatio)
	}
	return nil
}
