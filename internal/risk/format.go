package risk

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"margin_maker/internal/core"
)

// FormatFloat renders v with prec decimals, writing infinities as ∞/-∞ and NaN as n/a.
func FormatFloat(v float64, prec int) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// FormatRatio renders a risk ratio with three decimals
func FormatRatio(v float64) string {
	return FormatFloat(v, 3)
}

// FormatPositionSummary renders a multi-line report of one position.
func FormatPositionSummary(p core.PositionSnapshot, v Valuation, base, quote core.Asset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Position: %s\n", p.ManagerKey)
	fmt.Fprintf(&b, "  Risk Ratio: %s\n", FormatRatio(v.RiskRatio))
	fmt.Fprintf(&b, "  Leverage: %sx\n", FormatFloat(v.Leverage(), 2))
	fmt.Fprintf(&b, "  LTV: %s%%\n", FormatFloat(v.LTV()*100, 1))
	fmt.Fprintf(&b, "  Equity: $%s\n", FormatFloat(v.Equity, 2))
	fmt.Fprintf(&b, "  Assets: $%s\n", FormatFloat(v.TotalAssets, 2))
	fmt.Fprintf(&b, "  Debts: $%s\n", FormatFloat(v.TotalDebts, 2))
	fmt.Fprintf(&b, "  Base: %s %s (debt: %s)\n", FormatFloat(p.BaseAsset, 4), base, FormatFloat(p.BaseDebt, 4))
	fmt.Fprintf(&b, "  Quote: %s %s (debt: %s)\n", FormatFloat(p.QuoteAsset, 2), quote, FormatFloat(p.QuoteDebt, 2))
	fmt.Fprintf(&b, "  Open Orders: %d", len(p.OpenOrders))
	return b.String()
}

// FormatDuration renders d as "1h 5m", "5m 3s" or "42s".
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
