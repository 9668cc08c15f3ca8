package risk

import (
	"fmt"
	"math"

	"margin_maker/internal/core"
)

// SafetyStatus is the tier a position's risk ratio falls into
type SafetyStatus string

const (
	StatusSafe     SafetyStatus = "safe"
	StatusWarning  SafetyStatus = "warning"
	StatusDanger   SafetyStatus = "danger"
	StatusCritical SafetyStatus = "critical"
)

// Severity orders statuses from 0 (safe) to 3 (critical)
func (s SafetyStatus) Severity() int {
	switch s {
	case StatusSafe:
		return 0
	case StatusWarning:
		return 1
	case StatusDanger:
		return 2
	default:
		return 3
	}
}

// SafetyVerdict is the outcome of evaluating one position
type SafetyVerdict struct {
	ManagerKey string
	Status     SafetyStatus
	Message    string
	Valuation  Valuation

	// CollateralNeeded is the top-up that restores the target ratio, clamped
	// at zero. It is only set when Status is not safe.
	CollateralNeeded float64
	// RawCollateralDelta is target*debts - assets without clamping; a value
	// <= 0 is the surplus above target.
	RawCollateralDelta float64
}

// ClassifyRiskRatio walks the boundaries from the top and returns the first
// tier whose boundary the ratio meets. Ties go to the safer tier.
func ClassifyRiskRatio(riskRatio float64, t core.Thresholds) SafetyStatus {
	switch {
	case riskRatio >= t.Target:
		return StatusSafe
	case riskRatio >= t.Warning:
		return StatusWarning
	case riskRatio >= t.Danger:
		return StatusDanger
	default:
		return StatusCritical
	}
}

// Evaluate prices the snapshot, classifies it against the thresholds and sizes
// the top-up needed to get back to Target.
func Evaluate(p core.PositionSnapshot, price float64, t core.Thresholds) (SafetyVerdict, error) {
	if err := ValidateThresholds(t); err != nil {
		return SafetyVerdict{}, err
	}
	if err := ValidatePrice(price); err != nil {
		return SafetyVerdict{}, err
	}
	if err := ValidateSnapshot(p); err != nil {
		return SafetyVerdict{}, err
	}

	v := Value(p, price)
	status := ClassifyRiskRatio(v.RiskRatio, t)
	verdict := SafetyVerdict{
		ManagerKey:         p.ManagerKey,
		Status:             status,
		Message:            statusMessage(status, v.RiskRatio),
		Valuation:          v,
		RawCollateralDelta: CollateralNeeded(v.TotalAssets, v.TotalDebts, t.Target),
	}
	if status != StatusSafe {
		verdict.CollateralNeeded = math.Max(0, verdict.RawCollateralDelta)
	}
	return verdict, nil
}

func statusMessage(s SafetyStatus, riskRatio float64) string {
	r := FormatRatio(riskRatio)
	switch s {
	case StatusSafe:
		return fmt.Sprintf("Position is safe at %s", r)
	case StatusWarning:
		return fmt.Sprintf("Position in warning zone at %s", r)
	case StatusDanger:
		return fmt.Sprintf("Position in danger zone at %s", r)
	default:
		return fmt.Sprintf("Position CRITICAL at %s - liquidation imminent!", r)
	}
}
