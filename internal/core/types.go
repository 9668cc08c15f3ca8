package core

import "time"

// OpenOrder is a resting order owned by a margin manager. It is carried for
// reporting only and never enters the risk formulas.
type OpenOrder struct {
	OrderID         string  `yaml:"order_id"`
	ClientOrderID   string  `yaml:"client_order_id"`
	IsBid           bool    `yaml:"is_bid"`
	Price           float64 `yaml:"price"`
	Quantity        float64 `yaml:"quantity"`
	FilledQuantity  float64 `yaml:"filled_quantity"`
	ExpireTimestamp uint64  `yaml:"expire_timestamp"`
}

// PositionSnapshot is the decoded state of one margin manager at a point in time.
// Quantities are in whole base/quote units, not on-chain integer units.
type PositionSnapshot struct {
	ManagerKey string
	BaseAsset  float64
	QuoteAsset float64
	BaseDebt   float64
	QuoteDebt  float64
	OpenOrders []OpenOrder
}

// NetBase returns base holdings minus base debt.
func (p PositionSnapshot) NetBase() float64 {
	return p.BaseAsset - p.BaseDebt
}

// Thresholds are the risk-ratio boundaries used to classify a position.
// A well-formed set satisfies Target > Warning > Danger > Liquidation > 0.
type Thresholds struct {
	Target      float64 `yaml:"target"`
	Warning     float64 `yaml:"warning"`
	Danger      float64 `yaml:"danger"`
	Liquidation float64 `yaml:"liquidation"`
}

// ActionKind identifies a corrective action on a margin manager
type ActionKind string

const (
	ActionTopUp    ActionKind = "TOP_UP"
	ActionWithdraw ActionKind = "WITHDRAW"
)

// RebalanceAction is a decision handed to the transaction builder.
// Amount is denominated in quote units.
type RebalanceAction struct {
	ID         string
	ManagerKey string
	Kind       ActionKind
	Amount     float64
	RiskRatio  float64
	Reason     string
	CreatedAt  time.Time
}
