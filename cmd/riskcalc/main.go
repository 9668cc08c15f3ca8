// Command riskcalc evaluates a single margin position from the command line.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"margin_maker/internal/config"
	"margin_maker/internal/core"
	"margin_maker/internal/risk"
)

type options struct {
	configPath string
	base       string
	quote      string
	baseAsset  float64
	quoteAsset float64
	baseDebt   float64
	quoteDebt  float64
	price      float64
	moves      string
	leverage   float64
	levels     int
	exposure   float64
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Optional config file supplying risk thresholds")
	flag.StringVar(&o.base, "base", "SUI", "Base asset symbol")
	flag.StringVar(&o.quote, "quote", "USDC", "Quote asset symbol")
	flag.Float64Var(&o.baseAsset, "base-asset", 0, "Base asset held")
	flag.Float64Var(&o.quoteAsset, "quote-asset", 0, "Quote asset held")
	flag.Float64Var(&o.baseDebt, "base-debt", 0, "Base asset borrowed")
	flag.Float64Var(&o.quoteDebt, "quote-debt", 0, "Quote asset borrowed")
	flag.Float64Var(&o.price, "price", 0, "Base price in quote units")
	flag.Float64Var(&o.leverage, "leverage", 3, "Leverage used for the maximum position size")
	flag.IntVar(&o.levels, "levels", 5, "Quote levels to size orders for")
	flag.Float64Var(&o.exposure, "exposure", risk.DefaultLevelExposure, "Share of equity spread across all quote levels")
	flag.StringVar(&o.moves, "moves", "-0.3,-0.2,-0.1,0.1,0.2,0.3", "Comma-separated price moves to stress test, as fractions")
	flag.Parse()

	if err := run(os.Stdout, o); err != nil {
		fmt.Fprintf(os.Stderr, "riskcalc: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, o options) error {
	base, err := core.ParseAsset(o.base)
	if err != nil {
		return err
	}
	quote, err := core.ParseAsset(o.quote)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if o.configPath != "" {
		if cfg, err = config.LoadConfig(o.configPath); err != nil {
			return err
		}
	}
	thresholds := cfg.Risk.Thresholds

	moves, err := parseMoves(o.moves)
	if err != nil {
		return err
	}

	p := core.PositionSnapshot{
		ManagerKey: "cli",
		BaseAsset:  o.baseAsset,
		QuoteAsset: o.quoteAsset,
		BaseDebt:   o.baseDebt,
		QuoteDebt:  o.quoteDebt,
	}

	verdict, err := risk.Evaluate(p, o.price, thresholds)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, risk.FormatPositionSummary(p, verdict.Valuation, base, quote))
	fmt.Fprintf(w, "\nStatus: %s\n", verdict.Message)
	if verdict.CollateralNeeded > 0 {
		fmt.Fprintf(w, "Collateral needed: %s %s\n", risk.FormatFloat(verdict.CollateralNeeded, 2), quote)
	}

	liq := risk.LiquidationPrice(p.BaseAsset, p.QuoteAsset, p.BaseDebt, p.QuoteDebt, thresholds.Liquidation, o.price)
	fmt.Fprintf(w, "Liquidation price (long): %s\n", risk.FormatFloat(liq.Long, 4))
	fmt.Fprintf(w, "Liquidation price (short): %s\n", risk.FormatFloat(liq.Short, 4))

	equity := verdict.Valuation.Equity
	fmt.Fprintln(w, "\nSizing:")
	fmt.Fprintf(w, "  Max position (%sx): %s %s\n",
		risk.FormatFloat(o.leverage, 1), risk.FormatFloat(risk.MaxPositionSize(equity, o.leverage), 2), quote)
	for i, size := range risk.OptimalOrderSizes(equity, o.levels, o.exposure) {
		adjusted := risk.RiskAdjustedSize(size, verdict.Valuation.RiskRatio, thresholds.Target)
		fmt.Fprintf(w, "  Level %d: %s %s (risk adjusted %s)\n",
			i+1, risk.FormatFloat(size, 2), quote, risk.FormatFloat(adjusted, 2))
	}

	if agg, err := config.AggregatorFor(cfg.App.Network, base); err == nil {
		fmt.Fprintf(w, "Price feed (%s): %s via aggregator %s\n", cfg.App.Network, agg.PythPriceID, agg.PriceAggregator.ObjectID)
	} else {
		fmt.Fprintf(w, "Price feed (%s): none for %s\n", cfg.App.Network, base)
	}

	if len(moves) == 0 {
		return nil
	}
	results, err := risk.StressTest(p, o.price, moves)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nStress test:")
	for i, r := range results {
		fmt.Fprintf(w, "  %+6.1f%%  price %s  ratio %s (%s)  equity %s (%s%%)\n",
			moves[i]*100,
			risk.FormatFloat(r.NewPrice, 4),
			risk.FormatRatio(r.NewRiskRatio),
			risk.ClassifyRiskRatio(r.NewRiskRatio, thresholds),
			risk.FormatFloat(r.NewEquity, 2),
			risk.FormatFloat(r.EquityChangePercent, 1))
	}
	return nil
}

func parseMoves(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid move %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}
