// Package store persists the rebalance ledger: which corrective actions were
// executed for each margin manager and when. The monitor reads the last action
// time to drive the cooldown gate.
package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	"margin_maker/internal/core"

	"github.com/google/uuid"
)

var ErrCorruptRecord = errors.New("checksum verification failed: data corruption detected")

// ActionRecord is one executed rebalance action
type ActionRecord struct {
	ID         string
	ManagerKey string
	Kind       core.ActionKind
	Amount     float64
	RiskRatio  float64
	ExecutedAt time.Time
}

// NewActionRecord stamps an executed action with a fresh id
func NewActionRecord(a core.RebalanceAction, executedAt time.Time) ActionRecord {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	return ActionRecord{
		ID:         id,
		ManagerKey: a.ManagerKey,
		Kind:       a.Kind,
		Amount:     a.Amount,
		RiskRatio:  a.RiskRatio,
		ExecutedAt: executedAt,
	}
}

func (r ActionRecord) checksum() []byte {
	payload := r.ID + "|" + r.ManagerKey + "|" + string(r.Kind) + "|" +
		strconv.FormatFloat(r.Amount, 'g', -1, 64) + "|" +
		strconv.FormatFloat(r.RiskRatio, 'g', -1, 64) + "|" +
		strconv.FormatInt(r.ExecutedAt.UnixNano(), 10)
	sum := sha256.Sum256([]byte(payload))
	return sum[:]
}

// Store is the rebalance ledger
type Store interface {
	// LastAction returns the time of the most recent executed action, or the
	// zero time when the manager has never been rebalanced.
	LastAction(ctx context.Context, managerKey string) (time.Time, error)
	RecordAction(ctx context.Context, rec ActionRecord) error
	// Recent returns up to limit records for the manager, newest first.
	Recent(ctx context.Context, managerKey string, limit int) ([]ActionRecord, error)
	Close() error
}

// Open creates the store selected by driver ("memory" or "sqlite")
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
