// Package oracle fetches USD prices from the Pyth Hermes price service
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"margin_maker/internal/config"
	"margin_maker/internal/core"
	httpclient "margin_maker/pkg/http"

	"github.com/shopspring/decimal"
)

var (
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrStalePrice       = errors.New("stale price")
)

const latestPricePath = "/v2/updates/price/latest"

// Price is a decoded Pyth price in USD
type Price struct {
	Value       decimal.Decimal
	Conf        decimal.Decimal
	PublishTime time.Time
}

type hermesPrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

type hermesParsed struct {
	ID    string      `json:"id"`
	Price hermesPrice `json:"price"`
}

type hermesResponse struct {
	Parsed []hermesParsed `json:"parsed"`
}

// HermesClient implements core.IPriceOracle against a Hermes endpoint
type HermesClient struct {
	client *httpclient.Client
	feeds  map[core.Asset]string
	maxAge time.Duration
	now    func() time.Time
	logger core.ILogger
}

// Options configures a HermesClient
type Options struct {
	Endpoint string
	Network  core.Network
	HTTP     httpclient.Options
	MaxAge   time.Duration // 0 disables the staleness check
}

// NewHermesClient creates a client for the feeds deployed on the given network
func NewHermesClient(opts Options, logger core.ILogger) (*HermesClient, error) {
	feeds, err := config.PriceFeeds(opts.Network)
	if err != nil {
		return nil, err
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		nc, err := config.NetworkConfigFor(opts.Network)
		if err != nil {
			return nil, err
		}
		endpoint = nc.PriceServiceEndpoint
	}

	return &HermesClient{
		client: httpclient.NewClient(strings.TrimRight(endpoint, "/"), opts.HTTP),
		feeds:  feeds,
		maxAge: opts.MaxAge,
		now:    time.Now,
		logger: logger.WithField("component", "hermes_oracle"),
	}, nil
}

// Prices fetches the latest USD price of each asset in one request
func (h *HermesClient) Prices(ctx context.Context, assets ...core.Asset) (map[core.Asset]Price, error) {
	query := url.Values{}
	byID := make(map[string]core.Asset, len(assets))
	for _, a := range assets {
		id, ok := h.feeds[a]
		if !ok {
			return nil, fmt.Errorf("%w: no price feed for %s", core.ErrUnsupportedAsset, a)
		}
		query.Add("ids[]", id)
		byID[normalizeID(id)] = a
	}
	query.Set("parsed", "true")

	body, err := h.client.Get(ctx, latestPricePath, query)
	if err != nil {
		return nil, fmt.Errorf("hermes request failed: %w", err)
	}

	var resp hermesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode hermes response: %w", err)
	}

	prices := make(map[core.Asset]Price, len(assets))
	for _, p := range resp.Parsed {
		a, ok := byID[normalizeID(p.ID)]
		if !ok {
			continue
		}
		price, err := p.Price.decode()
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", a, err)
		}
		if h.maxAge > 0 && h.now().Sub(price.PublishTime) > h.maxAge {
			return nil, fmt.Errorf("%w: %s published at %s", ErrStalePrice, a, price.PublishTime.UTC().Format(time.RFC3339))
		}
		prices[a] = price
	}

	for _, a := range assets {
		if _, ok := prices[a]; !ok {
			return nil, fmt.Errorf("%w: %s missing from response", ErrPriceUnavailable, a)
		}
	}

	return prices, nil
}

// BasePrice returns the price of one base unit in quote units
func (h *HermesClient) BasePrice(ctx context.Context, base, quote core.Asset) (float64, error) {
	prices, err := h.Prices(ctx, base, quote)
	if err != nil {
		return 0, err
	}

	quoteUSD := prices[quote].Value
	if !quoteUSD.IsPositive() {
		return 0, fmt.Errorf("%w: %s price is %s", ErrPriceUnavailable, quote, quoteUSD)
	}

	price := prices[base].Value.Div(quoteUSD)
	h.logger.Debug("Oracle price",
		"base", base.String(),
		"quote", quote.String(),
		"price", price.String())

	return price.InexactFloat64(), nil
}

func (p hermesPrice) decode() (Price, error) {
	value, err := decimal.NewFromString(p.Price)
	if err != nil {
		return Price{}, fmt.Errorf("%w: bad price %q", ErrPriceUnavailable, p.Price)
	}
	conf, err := decimal.NewFromString(p.Conf)
	if err != nil {
		return Price{}, fmt.Errorf("%w: bad confidence %q", ErrPriceUnavailable, p.Conf)
	}
	return Price{
		Value:       value.Shift(p.Expo),
		Conf:        conf.Shift(p.Expo),
		PublishTime: time.Unix(p.PublishTime, 0),
	}, nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimPrefix(id, "0x"))
}
