package monitor

import (
	"context"
	"fmt"
	"os"

	"margin_maker/internal/chain"
	"margin_maker/internal/core"
	"margin_maker/internal/risk"

	"gopkg.in/yaml.v3"
)

type snapshotFile struct {
	Managers []chain.RawMarginState `yaml:"managers"`
}

// FileSource reads raw margin state from a YAML file kept current by an
// external chain reader. The file is re-read on every call.
type FileSource struct {
	path     string
	managers map[string]Pair
	logger   core.ILogger
}

func NewFileSource(path string, managers map[string]Pair, logger core.ILogger) *FileSource {
	return &FileSource{
		path:     path,
		managers: managers,
		logger:   logger.WithField("component", "file_source"),
	}
}

// Snapshots decodes every entry it can. A malformed entry is logged and
// skipped so the monitor reports only that manager as missing.
func (f *FileSource) Snapshots(ctx context.Context) ([]core.PositionSnapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}

	out := make([]core.PositionSnapshot, 0, len(file.Managers))
	for _, raw := range file.Managers {
		pair, ok := f.managers[raw.ManagerKey]
		if !ok {
			f.logger.Debug("Skipping unconfigured manager", "manager", raw.ManagerKey)
			continue
		}
		snap, err := chain.DecodeSnapshot(raw, pair.Base, pair.Quote)
		if err != nil {
			f.logger.Error("Failed to decode manager state", "manager", raw.ManagerKey, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// DryRunExecutor logs actions instead of submitting transactions
type DryRunExecutor struct {
	logger core.ILogger
}

func NewDryRunExecutor(logger core.ILogger) *DryRunExecutor {
	return &DryRunExecutor{logger: logger.WithField("component", "dry_run_executor")}
}

func (d *DryRunExecutor) Execute(ctx context.Context, action core.RebalanceAction) error {
	d.logger.Info("[DRY RUN] Would execute rebalance",
		"action_id", action.ID,
		"manager", action.ManagerKey,
		"kind", string(action.Kind),
		"amount", risk.FormatFloat(action.Amount, 6),
		"reason", action.Reason)
	return nil
}

func statusSymbol(s risk.SafetyStatus) string {
	switch s {
	case risk.StatusSafe:
		return "✅"
	case risk.StatusWarning:
		return "⚠️"
	case risk.StatusDanger:
		return "🔶"
	default:
		return "🚨"
	}
}

// LogHealthCheck writes the verdict line and, for unsafe positions, the top-up
// in quote units that restores the target ratio.
func LogHealthCheck(logger core.ILogger, v risk.SafetyVerdict, quote core.Asset) {
	msg := statusSymbol(v.Status) + " " + v.Message
	switch v.Status {
	case risk.StatusSafe:
		logger.Info(msg)
		return
	case risk.StatusWarning:
		logger.Warn(msg)
	default:
		logger.Error(msg)
	}
	logger.Warn(fmt.Sprintf("Need %s %s collateral to reach target", risk.FormatFloat(v.CollateralNeeded, 2), quote))
}
