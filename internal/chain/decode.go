// Package chain converts raw on-chain margin manager state into position snapshots.
//
// Balances arrive as u64 integers in the coin's smallest unit; order prices use
// DeepBook's fixed 1e9 float scaling adjusted by the base/quote decimal gap.
package chain

import (
	"errors"
	"fmt"
	"strings"

	"margin_maker/internal/core"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid on-chain amount")

// FloatScaling is the fixed-point factor of DeepBook order prices
const FloatScaling = 9

var maxU64 = decimal.RequireFromString("18446744073709551615")

// RawOrder is an open order as read from the pool's account table
type RawOrder struct {
	OrderID         string `yaml:"order_id"`
	ClientOrderID   string `yaml:"client_order_id"`
	IsBid           bool   `yaml:"is_bid"`
	Price           string `yaml:"price"`
	Quantity        string `yaml:"quantity"`
	FilledQuantity  string `yaml:"filled_quantity"`
	ExpireTimestamp string `yaml:"expire_timestamp"`
}

// RawMarginState is the undecoded asset and debt state of one margin manager
type RawMarginState struct {
	ManagerKey string     `yaml:"manager_key"`
	BaseAsset  string     `yaml:"base_asset"`
	QuoteAsset string     `yaml:"quote_asset"`
	BaseDebt   string     `yaml:"base_debt"`
	QuoteDebt  string     `yaml:"quote_debt"`
	OpenOrders []RawOrder `yaml:"open_orders"`
}

// ParseU64 parses a decimal u64 string. Empty input is zero.
func ParseU64(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if d.IsNegative() || !d.IsInteger() || d.GreaterThan(maxU64) {
		return decimal.Zero, fmt.Errorf("%w: %q is not a u64", ErrInvalidAmount, raw)
	}
	return d, nil
}

// ScaleAmount converts a raw integer balance into whole coin units
func ScaleAmount(raw string, asset core.Asset) (decimal.Decimal, error) {
	decimals, err := asset.Decimals()
	if err != nil {
		return decimal.Zero, err
	}
	d, err := ParseU64(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-decimals), nil
}

// ScalePrice converts a raw order price into quote units per base unit
func ScalePrice(raw string, base, quote core.Asset) (decimal.Decimal, error) {
	baseDecimals, err := base.Decimals()
	if err != nil {
		return decimal.Zero, err
	}
	quoteDecimals, err := quote.Decimals()
	if err != nil {
		return decimal.Zero, err
	}
	d, err := ParseU64(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(baseDecimals - quoteDecimals - FloatScaling), nil
}

// DecodeSnapshot converts a raw state into a snapshot in whole units
func DecodeSnapshot(raw RawMarginState, base, quote core.Asset) (core.PositionSnapshot, error) {
	snap := core.PositionSnapshot{ManagerKey: raw.ManagerKey}
	fields := []struct {
		name  string
		raw   string
		asset core.Asset
		out   *float64
	}{
		{"base_asset", raw.BaseAsset, base, &snap.BaseAsset},
		{"quote_asset", raw.QuoteAsset, quote, &snap.QuoteAsset},
		{"base_debt", raw.BaseDebt, base, &snap.BaseDebt},
		{"quote_debt", raw.QuoteDebt, quote, &snap.QuoteDebt},
	}

	for _, f := range fields {
		v, err := ScaleAmount(f.raw, f.asset)
		if err != nil {
			return core.PositionSnapshot{}, fmt.Errorf("manager %q %s: %w", raw.ManagerKey, f.name, err)
		}
		*f.out = v.InexactFloat64()
	}

	for _, ro := range raw.OpenOrders {
		o, err := decodeOrder(ro, base, quote)
		if err != nil {
			return core.PositionSnapshot{}, fmt.Errorf("manager %q order %s: %w", raw.ManagerKey, ro.OrderID, err)
		}
		snap.OpenOrders = append(snap.OpenOrders, o)
	}

	return snap, nil
}

func decodeOrder(ro RawOrder, base, quote core.Asset) (core.OpenOrder, error) {
	price, err := ScalePrice(ro.Price, base, quote)
	if err != nil {
		return core.OpenOrder{}, err
	}
	qty, err := ScaleAmount(ro.Quantity, base)
	if err != nil {
		return core.OpenOrder{}, err
	}
	filled, err := ScaleAmount(ro.FilledQuantity, base)
	if err != nil {
		return core.OpenOrder{}, err
	}
	expire, err := ParseU64(ro.ExpireTimestamp)
	if err != nil {
		return core.OpenOrder{}, err
	}

	return core.OpenOrder{
		OrderID:         ro.OrderID,
		ClientOrderID:   ro.ClientOrderID,
		IsBid:           ro.IsBid,
		Price:           price.InexactFloat64(),
		Quantity:        qty.InexactFloat64(),
		FilledQuantity:  filled.InexactFloat64(),
		ExpireTimestamp: expire.BigInt().Uint64(),
	}, nil
}
