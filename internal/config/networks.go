package config

import (
	"fmt"

	"margin_maker/internal/core"
)

// ObjectRef points at a shared on-chain object
type ObjectRef struct {
	ObjectID             string
	InitialSharedVersion uint64
	Mutable              bool
}

// AggregatorInfo pairs a price aggregator object with the Pyth feed it reads
type AggregatorInfo struct {
	PriceAggregator ObjectRef
	PythPriceID     string
}

// NetworkConfig holds the oracle deployment of one network
type NetworkConfig struct {
	PythStateID          string
	PriceServiceEndpoint string
	WormholeStateID      string
	CoinTypes            map[core.Asset]string
	Aggregators          map[core.Asset]AggregatorInfo
}

const (
	suiCoinType         = "0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI"
	mainnetUSDCCoinType = "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC"
	testnetUSDCCoinType = "0xa1ec7fc00a6f40db9693ad1415d0c193ad3906494428cf252621037bd7117e29::usdc::USDC"
)

var networks = map[core.Network]NetworkConfig{
	core.NetworkMainnet: {
		PythStateID:          "0x1f9310238ee9298fb703c3419030b35b22bb1cc37113e3bb5007c99aec79e5b8",
		PriceServiceEndpoint: "https://hermes.pyth.network",
		WormholeStateID:      "0xaeab97f96cf9877fee2883315d459552b2b921edc16d7ceac6eab944dd88919c",
		CoinTypes: map[core.Asset]string{
			core.AssetSUI:  suiCoinType,
			core.AssetUSDC: mainnetUSDCCoinType,
		},
		Aggregators: map[core.Asset]AggregatorInfo{
			core.AssetSUI: {
				PriceAggregator: ObjectRef{
					ObjectID:             "0x795e888b88d2cfd5aa5174cba71418e87878c7dd7d1980e5b0b2e51cc499aa53",
					InitialSharedVersion: 610893705,
				},
				PythPriceID: "0x23d7315113f5b1d3ba7a83604c44b94d79f4fd69af77f804fc7f920a6dc65744",
			},
			core.AssetUSDC: {
				PriceAggregator: ObjectRef{
					ObjectID:             "0x4b612d4d2039d90f596a362f15346a95149728613ca9d2e2c7e471b72b86c105",
					InitialSharedVersion: 610893707,
				},
				PythPriceID: "0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a",
			},
		},
	},
	core.NetworkTestnet: {
		PythStateID:          "0x2d82612a354f0b7e52809fc2845642911c7190404620cec8688f68808f8800d8",
		PriceServiceEndpoint: "https://hermes-beta.pyth.network",
		WormholeStateID:      "0xebba4cc4d614f7a7cdbe883acc76d1cc767922bc96778e7b68be0d15fce27c02",
		CoinTypes: map[core.Asset]string{
			core.AssetSUI:  suiCoinType,
			core.AssetUSDC: testnetUSDCCoinType,
		},
		// Testnet only deploys a USDC aggregator, fed by the beta price service.
		Aggregators: map[core.Asset]AggregatorInfo{
			core.AssetUSDC: {
				PriceAggregator: ObjectRef{
					ObjectID:             "0x50bfd18d36bf7a9a24c83d2a16e13eb88b824fd181e71e76acb649fae3143b8a",
					InitialSharedVersion: 442159459,
					Mutable:              true,
				},
				PythPriceID: "0x41f3625971ca2ed2263e78573fe5ce23e13d2558ed3f2e47ab0f84fb9e7ae722",
			},
		},
	},
}

// NetworkConfigFor returns the oracle deployment of a network
func NetworkConfigFor(n core.Network) (NetworkConfig, error) {
	nc, ok := networks[n]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: %s", core.ErrUnsupportedNetwork, n)
	}
	return nc, nil
}

// AggregatorFor returns the price aggregator of an asset on a network
func AggregatorFor(n core.Network, a core.Asset) (AggregatorInfo, error) {
	nc, err := NetworkConfigFor(n)
	if err != nil {
		return AggregatorInfo{}, err
	}
	info, ok := nc.Aggregators[a]
	if !ok {
		return AggregatorInfo{}, fmt.Errorf("%w: no price aggregator for %s on %s", core.ErrUnsupportedAsset, a, n)
	}
	return info, nil
}

// CoinType returns the fully qualified Move type of an asset on a network
func CoinType(n core.Network, a core.Asset) (string, error) {
	nc, err := NetworkConfigFor(n)
	if err != nil {
		return "", err
	}
	t, ok := nc.CoinTypes[a]
	if !ok {
		return "", fmt.Errorf("%w: no coin type for %s on %s", core.ErrUnsupportedAsset, a, n)
	}
	return t, nil
}

// PriceFeeds maps each asset with an aggregator to its Pyth feed id
func PriceFeeds(n core.Network) (map[core.Asset]string, error) {
	nc, err := NetworkConfigFor(n)
	if err != nil {
		return nil, err
	}
	feeds := make(map[core.Asset]string, len(nc.Aggregators))
	for a, info := range nc.Aggregators {
		feeds[a] = info.PythPriceID
	}
	return feeds, nil
}
