package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricRiskRatio         = "margin_maker_risk_ratio"
	MetricLeverage          = "margin_maker_leverage"
	MetricEquity            = "margin_maker_equity"
	MetricSafetyTier        = "margin_maker_safety_tier"
	MetricPortfolioEquity   = "margin_maker_portfolio_equity"
	MetricPortfolioLeverage = "margin_maker_portfolio_leverage"
	MetricNetBaseExposure   = "margin_maker_net_base_exposure"
	MetricDeltaNeutrality   = "margin_maker_delta_neutrality"
	MetricActionsTotal      = "margin_maker_actions_total"
	MetricEvalErrorsTotal   = "margin_maker_evaluation_errors_total"
	MetricCycleDuration     = "margin_maker_cycle_duration_ms"
)

type positionGauges struct {
	riskRatio float64
	leverage  float64
	equity    float64
	tier      int64
}

type portfolioGauges struct {
	equity       float64
	leverage     float64
	netBase      float64
	deltaNeutral int64
}

// MetricsHolder holds initialized instruments and the state behind the observable gauges
type MetricsHolder struct {
	RiskRatio         metric.Float64ObservableGauge
	Leverage          metric.Float64ObservableGauge
	Equity            metric.Float64ObservableGauge
	SafetyTier        metric.Int64ObservableGauge
	PortfolioEquity   metric.Float64ObservableGauge
	PortfolioLeverage metric.Float64ObservableGauge
	NetBaseExposure   metric.Float64ObservableGauge
	DeltaNeutrality   metric.Int64ObservableGauge
	ActionsTotal      metric.Int64Counter
	EvalErrorsTotal   metric.Int64Counter
	CycleDuration     metric.Float64Histogram

	mu        sync.RWMutex
	positions  map[string]positionGauges
	portfolios map[string]portfolioGauges
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// NewMetricsHolder returns an holder with no instruments; call InitMetrics to register them.
func NewMetricsHolder() *MetricsHolder {
	return &MetricsHolder{
		positions:  make(map[string]positionGauges),
		portfolios: make(map[string]portfolioGauges),
	}
}

// GetGlobalMetrics returns the process-wide metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = NewMetricsHolder()
	})
	return globalMetrics
}

// InitMetrics registers the instruments with the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.ActionsTotal, err = meter.Int64Counter(MetricActionsTotal, metric.WithDescription("Corrective actions handed to the transaction builder"))
	if err != nil {
		return err
	}

	m.EvalErrorsTotal, err = meter.Int64Counter(MetricEvalErrorsTotal, metric.WithDescription("Accounts that failed evaluation"))
	if err != nil {
		return err
	}

	m.CycleDuration, err = meter.Float64Histogram(MetricCycleDuration, metric.WithDescription("Duration of one polling cycle"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	positionGauge := func(name, desc string, pick func(positionGauges) float64) (metric.Float64ObservableGauge, error) {
		return meter.Float64ObservableGauge(name, metric.WithDescription(desc),
			metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
				m.mu.RLock()
				defer m.mu.RUnlock()
				for key, g := range m.positions {
					obs.Observe(pick(g), metric.WithAttributes(attribute.String("manager", key)))
				}
				return nil
			}))
	}

	m.RiskRatio, err = positionGauge(MetricRiskRatio, "Assets over debts per margin manager", func(g positionGauges) float64 { return g.riskRatio })
	if err != nil {
		return err
	}
	m.Leverage, err = positionGauge(MetricLeverage, "Leverage per margin manager", func(g positionGauges) float64 { return g.leverage })
	if err != nil {
		return err
	}
	m.Equity, err = positionGauge(MetricEquity, "Equity per margin manager in quote units", func(g positionGauges) float64 { return g.equity })
	if err != nil {
		return err
	}

	m.SafetyTier, err = meter.Int64ObservableGauge(MetricSafetyTier, metric.WithDescription("Safety tier (0=safe, 1=warning, 2=danger, 3=critical)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for key, g := range m.positions {
				obs.Observe(g.tier, metric.WithAttributes(attribute.String("manager", key)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	portfolioGauge := func(name, desc string, pick func(portfolioGauges) float64) (metric.Float64ObservableGauge, error) {
		return meter.Float64ObservableGauge(name, metric.WithDescription(desc),
			metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
				m.mu.RLock()
				defer m.mu.RUnlock()
				for pair, p := range m.portfolios {
					obs.Observe(pick(p), metric.WithAttributes(attribute.String("pair", pair)))
				}
				return nil
			}))
	}

	m.PortfolioEquity, err = portfolioGauge(MetricPortfolioEquity, "Total equity across managers", func(p portfolioGauges) float64 { return p.equity })
	if err != nil {
		return err
	}
	m.PortfolioLeverage, err = portfolioGauge(MetricPortfolioLeverage, "Total assets over total equity", func(p portfolioGauges) float64 { return p.leverage })
	if err != nil {
		return err
	}
	m.NetBaseExposure, err = portfolioGauge(MetricNetBaseExposure, "Net base asset exposure across managers", func(p portfolioGauges) float64 { return p.netBase })
	if err != nil {
		return err
	}

	m.DeltaNeutrality, err = meter.Int64ObservableGauge(MetricDeltaNeutrality, metric.WithDescription("Portfolio delta neutral (1=neutral, 0=directional)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for pair, p := range m.portfolios {
				obs.Observe(p.deltaNeutral, metric.WithAttributes(attribute.String("pair", pair)))
			}
			return nil
		}))
	return err
}

// SetPosition records the latest valuation of one manager
func (m *MetricsHolder) SetPosition(manager string, riskRatio, leverage, equity float64, tier int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[manager] = positionGauges{
		riskRatio: riskRatio,
		leverage:  leverage,
		equity:    equity,
		tier:      int64(tier),
	}
}

// RemovePosition stops reporting a manager
func (m *MetricsHolder) RemovePosition(manager string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, manager)
}

// SetPortfolio records the latest aggregate of the managers trading one pair
func (m *MetricsHolder) SetPortfolio(pair string, equity, leverage, netBase float64, deltaNeutral bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var neutral int64
	if deltaNeutral {
		neutral = 1
	}
	m.portfolios[pair] = portfolioGauges{
		equity:       equity,
		leverage:     leverage,
		netBase:      netBase,
		deltaNeutral: neutral,
	}
}

// RecordAction counts one corrective action attempt
func (m *MetricsHolder) RecordAction(ctx context.Context, manager, kind string, ok bool) {
	if m.ActionsTotal == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.ActionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("manager", manager),
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

// RecordEvaluationError counts an account that could not be evaluated
func (m *MetricsHolder) RecordEvaluationError(ctx context.Context, manager string) {
	if m.EvalErrorsTotal == nil {
		return
	}
	m.EvalErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("manager", manager)))
}

// RecordCycle observes the duration of one polling cycle
func (m *MetricsHolder) RecordCycle(ctx context.Context, durationMs float64) {
	if m.CycleDuration == nil {
		return
	}
	m.CycleDuration.Record(ctx, durationMs)
}
