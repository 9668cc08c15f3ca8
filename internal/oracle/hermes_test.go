package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"margin_maker/internal/config"
	"margin_maker/internal/core"
	httpclient "margin_maker/pkg/http"
	"margin_maker/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedID(t *testing.T, a core.Asset) string {
	t.Helper()
	info, err := config.AggregatorFor(core.NetworkMainnet, a)
	require.NoError(t, err)
	return strings.TrimPrefix(info.PythPriceID, "0x")
}

func entry(id, price string, expo int32, published int64) string {
	return fmt.Sprintf(`{"id":%q,"price":{"price":%q,"conf":"1000","expo":%d,"publish_time":%d}}`, id, price, expo, published)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HermesClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewHermesClient(Options{
		Endpoint: srv.URL,
		Network:  core.NetworkMainnet,
		HTTP:     httpclient.Options{MaxRetries: 1, InitialBackoff: time.Millisecond},
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestHermesClient_BasePrice(t *testing.T) {
	sui, usdc := feedID(t, core.AssetSUI), feedID(t, core.AssetUSDC)
	now := time.Now().Unix()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, latestPricePath, r.URL.Path)
		assert.Len(t, r.URL.Query()["ids[]"], 2)
		assert.Equal(t, "true", r.URL.Query().Get("parsed"))

		fmt.Fprintf(w, `{"binary":{"encoding":"hex","data":[]},"parsed":[%s,%s]}`,
			entry(sui, "350000000", -8, now),
			entry(usdc, "99990000", -8, now))
	})

	price, err := c.BasePrice(context.Background(), core.AssetSUI, core.AssetUSDC)
	require.NoError(t, err)
	assert.InDelta(t, 3.5/0.9999, price, 1e-9)
}

func TestHermesClient_Prices(t *testing.T) {
	sui := feedID(t, core.AssetSUI)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"parsed":[%s]}`, entry("0x"+strings.ToUpper(sui), "123", -2, 1700000000))
	})

	prices, err := c.Prices(context.Background(), core.AssetSUI)
	require.NoError(t, err)
	assert.Equal(t, "1.23", prices[core.AssetSUI].Value.String())
	assert.Equal(t, "10", prices[core.AssetSUI].Conf.String())
	assert.Equal(t, int64(1700000000), prices[core.AssetSUI].PublishTime.Unix())
}

func TestHermesClient_MissingFeed(t *testing.T) {
	sui := feedID(t, core.AssetSUI)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"parsed":[%s]}`, entry(sui, "350000000", -8, time.Now().Unix()))
	})

	_, err := c.BasePrice(context.Background(), core.AssetSUI, core.AssetUSDC)
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
}

func TestHermesClient_BadConfidence(t *testing.T) {
	sui := feedID(t, core.AssetSUI)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"parsed":[{"id":%q,"price":{"price":"350000000","conf":"n/a","expo":-8,"publish_time":%d}}]}`,
			sui, time.Now().Unix())
	})

	_, err := c.Prices(context.Background(), core.AssetSUI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
	assert.Contains(t, err.Error(), `bad confidence "n/a"`)
}

func TestHermesClient_StalePrice(t *testing.T) {
	sui := feedID(t, core.AssetSUI)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"parsed":[%s]}`, entry(sui, "1", 0, 1000))
	})
	c.maxAge = time.Minute

	_, err := c.Prices(context.Background(), core.AssetSUI)
	assert.True(t, errors.Is(err, ErrStalePrice))
}

func TestHermesClient_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad id"}`))
	})

	_, err := c.Prices(context.Background(), core.AssetSUI)
	require.Error(t, err)
	var apiErr *httpclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestNewHermesClient_UnsupportedFeed(t *testing.T) {
	c, err := NewHermesClient(Options{Network: core.NetworkTestnet}, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = c.BasePrice(context.Background(), core.AssetSUI, core.AssetUSDC)
	assert.True(t, errors.Is(err, core.ErrUnsupportedAsset))

	_, err = NewHermesClient(Options{Network: core.Network(7)}, logging.NewNopLogger())
	assert.True(t, errors.Is(err, core.ErrUnsupportedNetwork))
}
