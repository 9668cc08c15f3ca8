package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedAsset   = errors.New("unsupported asset")
	ErrUnsupportedNetwork = errors.New("unsupported network")
)

// Asset is a coin the margin pools can hold
type Asset int

const (
	AssetSUI Asset = iota + 1
	AssetUSDC
)

// Assets lists every supported asset
var Assets = []Asset{AssetSUI, AssetUSDC}

func (a Asset) String() string {
	switch a {
	case AssetSUI:
		return "SUI"
	case AssetUSDC:
		return "USDC"
	default:
		return fmt.Sprintf("Asset(%d)", int(a))
	}
}

// Decimals returns the number of on-chain decimal places for the coin.
func (a Asset) Decimals() (int32, error) {
	switch a {
	case AssetSUI:
		return 9, nil
	case AssetUSDC:
		return 6, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAsset, a)
	}
}

// ParseAsset maps a symbol such as "sui" or "USDC" to an Asset.
func ParseAsset(symbol string) (Asset, error) {
	switch strings.ToUpper(strings.TrimSpace(symbol)) {
	case "SUI":
		return AssetSUI, nil
	case "USDC":
		return AssetUSDC, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAsset, symbol)
	}
}

// UnmarshalText lets assets be used directly in YAML config
func (a *Asset) UnmarshalText(text []byte) error {
	parsed, err := ParseAsset(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Asset) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Network is the chain environment a manager lives on
type Network int

const (
	NetworkMainnet Network = iota + 1
	NetworkTestnet
)

func (n Network) String() string {
	switch n {
	case NetworkMainnet:
		return "mainnet"
	case NetworkTestnet:
		return "testnet"
	default:
		return fmt.Sprintf("Network(%d)", int(n))
	}
}

func ParseNetwork(name string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mainnet":
		return NetworkMainnet, nil
	case "testnet":
		return NetworkTestnet, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, name)
	}
}

func (n *Network) UnmarshalText(text []byte) error {
	parsed, err := ParseNetwork(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

func (n Network) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}
