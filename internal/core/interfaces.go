// Package core defines the shared types and collaborator interfaces of the margin monitor
package core

import "context"

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// ISnapshotSource produces the current snapshot of every managed margin account.
// Implementations wrap the chain client; the risk engine never calls them directly.
type ISnapshotSource interface {
	Snapshots(ctx context.Context) ([]PositionSnapshot, error)
}

// IPriceOracle supplies the price of one base unit in quote units
type IPriceOracle interface {
	BasePrice(ctx context.Context, base, quote Asset) (float64, error)
}

// IActionExecutor hands a corrective action to the transaction builder.
// A nil error means the action executed on-chain.
type IActionExecutor interface {
	Execute(ctx context.Context, action RebalanceAction) error
}
