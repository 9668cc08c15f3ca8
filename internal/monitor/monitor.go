// Package monitor runs the polling loop around the risk engine: it reads
// margin manager snapshots, prices them, evaluates every account in parallel,
// and hands corrective actions to the executor behind the cooldown gate.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"margin_maker/internal/alert"
	"margin_maker/internal/core"
	"margin_maker/internal/risk"
	"margin_maker/internal/store"
	"margin_maker/pkg/concurrency"
	"margin_maker/pkg/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrMissingSnapshot = errors.New("no snapshot for manager")

// Pair is the base/quote assets of a margin manager's pool
type Pair struct {
	Base  core.Asset
	Quote core.Asset
}

func (p Pair) String() string {
	return p.Base.String() + "/" + p.Quote.String()
}

// Options configures a Monitor
type Options struct {
	Thresholds     core.Thresholds
	Cooldown       time.Duration
	PollInterval   time.Duration
	WithdrawExcess bool
	MinWithdraw    float64
	// Managers maps each watched manager key to its pool's assets
	Managers map[string]Pair
}

// Deps are the collaborators a Monitor drives
type Deps struct {
	Source   core.ISnapshotSource
	Oracle   core.IPriceOracle
	Executor core.IActionExecutor
	Ledger   store.Store
	Pool     *concurrency.WorkerPool
	Alerts   *alert.AlertManager      // optional
	Metrics  *telemetry.MetricsHolder // optional
	Logger   core.ILogger
}

// AccountResult is the outcome of one account in one cycle
type AccountResult struct {
	ManagerKey  string
	Snapshot    core.PositionSnapshot
	Verdict     risk.SafetyVerdict
	Liquidation risk.LiquidationPrices
	Action      *core.RebalanceAction // executed action, nil when none ran
	Deferred    bool                  // an action was due but the cooldown held it back
	Err         error
	EvaluatedAt time.Time
}

// CycleReport summarises one poll cycle
type CycleReport struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	Accounts  []AccountResult // sorted by manager key
	// Portfolios aggregates evaluated accounts per pool pair. Amounts on
	// different pairs are in different units and are never summed.
	Portfolios map[Pair]risk.PortfolioMetrics
}

// Failed counts accounts that could not be evaluated or acted on
func (r CycleReport) Failed() int {
	n := 0
	for _, a := range r.Accounts {
		if a.Err != nil {
			n++
		}
	}
	return n
}

// Monitor is the caller-side scheduler around the risk engine
type Monitor struct {
	source   core.ISnapshotSource
	oracle   core.IPriceOracle
	executor core.IActionExecutor
	ledger   store.Store
	pool     *concurrency.WorkerPool
	alerts   *alert.AlertManager
	metrics  *telemetry.MetricsHolder
	tracer   trace.Tracer
	logger   core.ILogger
	opts     Options
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu          sync.RWMutex
	last        *CycleReport
	lastSuccess time.Time
}

// New creates a Monitor
func New(opts Options, deps Deps) (*Monitor, error) {
	if err := risk.ValidateThresholds(opts.Thresholds); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Oracle == nil || deps.Executor == nil || deps.Ledger == nil || deps.Pool == nil {
		return nil, errors.New("monitor: source, oracle, executor, ledger and pool are required")
	}
	if len(opts.Managers) == 0 {
		return nil, errors.New("monitor: no managers configured")
	}
	if opts.Cooldown < 0 {
		return nil, fmt.Errorf("%w: negative cooldown %s", risk.ErrInvalidInput, opts.Cooldown)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}

	return &Monitor{
		source:   deps.Source,
		oracle:   deps.Oracle,
		executor: deps.Executor,
		ledger:   deps.Ledger,
		pool:     deps.Pool,
		alerts:   deps.Alerts,
		metrics:  deps.Metrics,
		tracer:   telemetry.GetTracer("margin-monitor"),
		logger:   deps.Logger.WithField("component", "margin_monitor"),
		opts:     opts,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Run polls until ctx is canceled
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Starting margin monitor",
		"managers", len(m.opts.Managers),
		"poll_interval", m.opts.PollInterval.String(),
		"cooldown", risk.FormatDuration(m.opts.Cooldown))

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := m.RunCycle(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("Monitor cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			m.logger.Info("Margin monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle evaluates every configured manager once. It returns an error only
// when the snapshot source itself fails; per-account failures are reported in
// the CycleReport.
func (m *Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{CycleID: uuid.NewString(), StartedAt: m.now()}

	ctx, span := m.tracer.Start(ctx, "monitor.cycle",
		trace.WithAttributes(attribute.String("cycle_id", report.CycleID)))
	defer span.End()

	snapshots, err := m.source.Snapshots(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot source failed")
		return report, fmt.Errorf("failed to read snapshots: %w", err)
	}

	jobs, missing := m.match(snapshots)
	prices := m.fetchPrices(ctx, jobs)

	results := make([]AccountResult, len(jobs))
	tasks := make([]func(), len(jobs))
	for i, job := range jobs {
		tasks[i] = func() {
			results[i] = m.processAccount(ctx, job, prices[job.pair])
		}
	}
	skipped := m.pool.RunAll(ctx, tasks)

	for i := range results {
		// a panicking or skipped task leaves its slot empty
		if results[i].ManagerKey == "" {
			err := errors.New("evaluation panicked")
			if skipped > 0 && ctx.Err() != nil {
				err = fmt.Errorf("evaluation skipped: %w", ctx.Err())
			}
			results[i] = AccountResult{ManagerKey: jobs[i].snap.ManagerKey, Err: err}
		}
	}
	results = append(results, missing...)
	sort.Slice(results, func(i, j int) bool { return results[i].ManagerKey < results[j].ManagerKey })
	report.Accounts = results

	report.Portfolios = m.aggregate(results)
	report.Duration = m.now().Sub(report.StartedAt)

	span.SetAttributes(
		attribute.Int("accounts", len(results)),
		attribute.Int("failed", report.Failed()))
	if m.metrics != nil {
		m.metrics.RecordCycle(ctx, float64(report.Duration.Microseconds())/1000)
	}

	m.mu.Lock()
	m.last = &report
	if report.Failed() < len(results) || len(results) == 0 {
		m.lastSuccess = report.StartedAt
	}
	m.mu.Unlock()

	stats := m.pool.Stats()
	m.logger.Info("Monitor cycle complete",
		"cycle_id", report.CycleID,
		"accounts", len(results),
		"failed", report.Failed(),
		"duration_ms", report.Duration.Milliseconds(),
		"pool_panics", stats.FailedTasks)

	return report, nil
}

type accountJob struct {
	snap core.PositionSnapshot
	pair Pair
}

// match pairs snapshots with configured managers. Configured managers with
// no snapshot come back as failed results.
func (m *Monitor) match(snapshots []core.PositionSnapshot) ([]accountJob, []AccountResult) {
	seen := make(map[string]bool, len(snapshots))
	jobs := make([]accountJob, 0, len(snapshots))
	var missing []AccountResult

	for _, s := range snapshots {
		pair, ok := m.opts.Managers[s.ManagerKey]
		if !ok {
			m.logger.Warn("Ignoring snapshot for unconfigured manager", "manager", s.ManagerKey)
			continue
		}
		if seen[s.ManagerKey] {
			m.logger.Warn("Duplicate snapshot, keeping the first", "manager", s.ManagerKey)
			continue
		}
		seen[s.ManagerKey] = true
		jobs = append(jobs, accountJob{snap: s, pair: pair})
	}

	for key := range m.opts.Managers {
		if !seen[key] {
			missing = append(missing, AccountResult{
				ManagerKey:  key,
				Err:         fmt.Errorf("%w: %s", ErrMissingSnapshot, key),
				EvaluatedAt: m.now(),
			})
			m.forget(key)
		}
	}
	return jobs, missing
}

type pairPrice struct {
	price float64
	err   error
}

func (m *Monitor) fetchPrices(ctx context.Context, jobs []accountJob) map[Pair]pairPrice {
	prices := make(map[Pair]pairPrice)
	for _, j := range jobs {
		if _, ok := prices[j.pair]; ok {
			continue
		}
		p, err := m.oracle.BasePrice(ctx, j.pair.Base, j.pair.Quote)
		if err != nil {
			m.logger.Error("Failed to fetch price",
				"base", j.pair.Base.String(),
				"quote", j.pair.Quote.String(),
				"error", err)
		}
		prices[j.pair] = pairPrice{price: p, err: err}
	}
	return prices
}

func (m *Monitor) processAccount(ctx context.Context, job accountJob, pp pairPrice) AccountResult {
	key := job.snap.ManagerKey
	res := AccountResult{ManagerKey: key, Snapshot: job.snap, EvaluatedAt: m.now()}
	log := m.logger.WithField("manager", key)

	ctx, span := m.tracer.Start(ctx, "monitor.account",
		trace.WithAttributes(attribute.String("manager", key)))
	defer span.End()

	if pp.err != nil {
		res.Err = fmt.Errorf("price unavailable: %w", pp.err)
		m.fail(ctx, span, key, res.Err)
		return res
	}

	verdict, err := risk.Evaluate(job.snap, pp.price, m.opts.Thresholds)
	if err != nil {
		res.Err = err
		log.Error("Evaluation rejected", "error", err)
		m.fail(ctx, span, key, err)
		return res
	}
	res.Verdict = verdict
	v := verdict.Valuation
	res.Liquidation = risk.LiquidationPrice(job.snap.BaseAsset, job.snap.QuoteAsset,
		job.snap.BaseDebt, job.snap.QuoteDebt, m.opts.Thresholds.Liquidation, pp.price)

	span.SetAttributes(
		attribute.String("status", string(verdict.Status)),
		attribute.Float64("equity", v.Equity))
	if m.metrics != nil {
		m.metrics.SetPosition(key, v.RiskRatio, v.Leverage(), v.Equity, verdict.Status.Severity())
	}
	LogHealthCheck(log, verdict, job.pair.Quote)
	m.alertOnVerdict(ctx, verdict)

	action := m.decide(verdict)
	if action == nil {
		return res
	}

	executed, deferred, err := m.rebalance(ctx, log, *action)
	res.Deferred = deferred
	if err != nil {
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "rebalance failed")
		return res
	}
	if executed {
		res.Action = action
	}
	return res
}

func (m *Monitor) fail(ctx context.Context, span trace.Span, key string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	m.forget(key)
	if m.metrics != nil {
		m.metrics.RecordEvaluationError(ctx, key)
	}
}

// forget stops exporting gauges for a manager whose state is unknown
func (m *Monitor) forget(key string) {
	if m.metrics != nil {
		m.metrics.RemovePosition(key)
	}
}

// decide turns a verdict into a corrective action, or nil when none is due
func (m *Monitor) decide(v risk.SafetyVerdict) *core.RebalanceAction {
	val := v.Valuation
	action := &core.RebalanceAction{
		ID:         uuid.NewString(),
		ManagerKey: v.ManagerKey,
		RiskRatio:  val.RiskRatio,
		CreatedAt:  m.now(),
	}

	switch {
	case v.Status != risk.StatusSafe && v.CollateralNeeded > 0:
		action.Kind = core.ActionTopUp
		action.Amount = v.CollateralNeeded
		action.Reason = v.Message
		return action

	case v.Status == risk.StatusSafe && m.opts.WithdrawExcess && val.TotalDebts > 0:
		excess := risk.WithdrawableCollateral(val.TotalAssets, val.TotalDebts, m.opts.Thresholds.Target)
		if excess <= m.opts.MinWithdraw {
			return nil
		}
		action.Kind = core.ActionWithdraw
		action.Amount = excess
		action.Reason = fmt.Sprintf("Excess collateral above target %s", risk.FormatRatio(m.opts.Thresholds.Target))
		return action
	}
	return nil
}

// rebalance serializes gate check, execution and ledger update per manager.
// The ledger is written only after the executor reports success.
func (m *Monitor) rebalance(ctx context.Context, log core.ILogger, action core.RebalanceAction) (executed, deferred bool, err error) {
	lock := m.lockFor(action.ManagerKey)
	lock.Lock()
	defer lock.Unlock()

	last, err := m.ledger.LastAction(ctx, action.ManagerKey)
	if err != nil {
		return false, false, fmt.Errorf("failed to read rebalance ledger: %w", err)
	}
	if !risk.ShouldRebalanceAt(m.now(), last, m.opts.Cooldown) {
		log.Info("Rebalance deferred by cooldown",
			"kind", string(action.Kind),
			"amount", risk.FormatFloat(action.Amount, 2),
			"since_last", risk.FormatDuration(m.now().Sub(last)))
		return false, true, nil
	}

	log.Info("Executing rebalance",
		"action_id", action.ID,
		"kind", string(action.Kind),
		"amount", risk.FormatFloat(action.Amount, 2),
		"risk_ratio", risk.FormatRatio(action.RiskRatio))

	if err := m.executor.Execute(ctx, action); err != nil {
		if m.metrics != nil {
			m.metrics.RecordAction(ctx, action.ManagerKey, string(action.Kind), false)
		}
		if m.alerts != nil {
			m.alerts.Alert(ctx, fmt.Sprintf("%s rebalance failed", action.ManagerKey), err.Error(), alert.Error,
				map[string]string{"kind": string(action.Kind), "amount": risk.FormatFloat(action.Amount, 2)})
		}
		return false, false, fmt.Errorf("executor rejected %s: %w", action.Kind, err)
	}

	if m.metrics != nil {
		m.metrics.RecordAction(ctx, action.ManagerKey, string(action.Kind), true)
	}
	if err := m.ledger.RecordAction(ctx, store.NewActionRecord(action, m.now())); err != nil {
		// the action ran; without a ledger entry the next cycle may repeat it
		log.Error("Failed to record executed action", "action_id", action.ID, "error", err)
		return true, false, fmt.Errorf("failed to record action %s: %w", action.ID, err)
	}
	return true, false, nil
}

func (m *Monitor) lockFor(key string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *Monitor) alertOnVerdict(ctx context.Context, v risk.SafetyVerdict) {
	if m.alerts == nil || v.Status == risk.StatusSafe {
		return
	}
	level := alert.Warning
	switch v.Status {
	case risk.StatusDanger:
		level = alert.Error
	case risk.StatusCritical:
		level = alert.Critical
	}
	m.alerts.Alert(ctx, fmt.Sprintf("%s %s", v.ManagerKey, v.Status), v.Message, level, map[string]string{
		"manager":    v.ManagerKey,
		"risk_ratio": risk.FormatRatio(v.Valuation.RiskRatio),
		"top_up":     risk.FormatFloat(v.CollateralNeeded, 2),
	})
}

func (m *Monitor) aggregate(results []AccountResult) map[Pair]risk.PortfolioMetrics {
	byPair := make(map[Pair][]risk.PositionMetrics)
	for _, r := range results {
		// a failed rebalance still carries a valid valuation
		if r.Verdict.ManagerKey == "" {
			continue
		}
		pair := m.opts.Managers[r.ManagerKey]
		byPair[pair] = append(byPair[pair], risk.MetricsOf(r.Snapshot, r.Verdict.Valuation))
	}
	if len(byPair) == 0 {
		m.logger.Warn("No account evaluated this cycle; portfolio metrics skipped")
		return nil
	}

	out := make(map[Pair]risk.PortfolioMetrics, len(byPair))
	for pair, positions := range byPair {
		pm, err := risk.Aggregate(positions)
		if err != nil {
			m.logger.Error("Portfolio aggregation failed", "pair", pair.String(), "error", err)
			continue
		}
		out[pair] = pm

		if m.metrics != nil {
			m.metrics.SetPortfolio(pair.String(), pm.TotalEquity, pm.Leverage, pm.NetBaseExposure, pm.IsDeltaNeutral)
		}
		m.logger.Info("Portfolio",
			"pair", pair.String(),
			"positions", pm.Positions,
			"equity", risk.FormatFloat(pm.TotalEquity, 2),
			"avg_risk_ratio", risk.FormatRatio(pm.AvgRiskRatio),
			"leverage", risk.FormatFloat(pm.Leverage, 2),
			"net_base", risk.FormatFloat(pm.NetBaseExposure, 4),
			"delta_neutral", pm.IsDeltaNeutral)
	}
	return out
}

// Snapshot returns the report of the last completed cycle
func (m *Monitor) Snapshot() (CycleReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return CycleReport{}, false
	}
	return *m.last, true
}

// CheckHealth fails when no cycle evaluated an account within three poll intervals
func (m *Monitor) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastSuccess.IsZero() {
		return errors.New("no successful monitor cycle yet")
	}
	if age := m.now().Sub(m.lastSuccess); age > 3*m.opts.PollInterval {
		return fmt.Errorf("last successful cycle %s ago", risk.FormatDuration(age))
	}
	return nil
}
