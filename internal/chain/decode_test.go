package chain

import (
	"errors"
	"testing"

	"margin_maker/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		asset   core.Asset
		want    string
		wantErr error
	}{
		{"one SUI", "1000000000", core.AssetSUI, "1", nil},
		{"fractional USDC", "105884300", core.AssetUSDC, "105.8843", nil},
		{"empty is zero", "", core.AssetUSDC, "0", nil},
		{"max u64", "18446744073709551615", core.AssetSUI, "18446744073.709551615", nil},
		{"negative", "-5", core.AssetSUI, "", ErrInvalidAmount},
		{"fraction", "1.5", core.AssetSUI, "", ErrInvalidAmount},
		{"overflow", "18446744073709551616", core.AssetSUI, "", ErrInvalidAmount},
		{"garbage", "12abc", core.AssetUSDC, "", ErrInvalidAmount},
		{"unknown asset", "1", core.Asset(0), "", core.ErrUnsupportedAsset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScaleAmount(tt.raw, tt.asset)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestScalePrice(t *testing.T) {
	// 1.25 USDC per SUI: 1.25 * 1e9 * 1e6 / 1e9
	got, err := ScalePrice("1250000", core.AssetSUI, core.AssetUSDC)
	require.NoError(t, err)
	assert.Equal(t, "1.25", got.String())
}

func TestDecodeSnapshot(t *testing.T) {
	raw := RawMarginState{
		ManagerKey: "primary",
		BaseAsset:  "200000000",
		QuoteAsset: "105884300",
		BaseDebt:   "100000000",
		QuoteDebt:  "0",
		OpenOrders: []RawOrder{
			{
				OrderID:         "170141183460491367824575755177969832142",
				ClientOrderID:   "12710855276398252170",
				Price:           "3500000",
				Quantity:        "1000000000",
				FilledQuantity:  "0",
				ExpireTimestamp: "18446744073709551615",
			},
		},
	}

	snap, err := DecodeSnapshot(raw, core.AssetSUI, core.AssetUSDC)
	require.NoError(t, err)

	assert.Equal(t, "primary", snap.ManagerKey)
	assert.InDelta(t, 0.2, snap.BaseAsset, 1e-12)
	assert.InDelta(t, 105.8843, snap.QuoteAsset, 1e-9)
	assert.InDelta(t, 0.1, snap.BaseDebt, 1e-12)
	assert.Zero(t, snap.QuoteDebt)

	require.Len(t, snap.OpenOrders, 1)
	o := snap.OpenOrders[0]
	assert.InDelta(t, 3.5, o.Price, 1e-12)
	assert.InDelta(t, 1.0, o.Quantity, 1e-12)
	assert.Equal(t, uint64(18446744073709551615), o.ExpireTimestamp)
}

func TestDecodeSnapshot_RejectsBadField(t *testing.T) {
	_, err := DecodeSnapshot(RawMarginState{ManagerKey: "m", QuoteDebt: "-1"}, core.AssetSUI, core.AssetUSDC)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
	assert.Contains(t, err.Error(), "quote_debt")

	_, err = DecodeSnapshot(RawMarginState{
		ManagerKey: "m",
		OpenOrders: []RawOrder{{OrderID: "1", Quantity: "x"}},
	}, core.AssetSUI, core.AssetUSDC)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}
