package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"margin_maker/internal/infrastructure/health"
	"margin_maker/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Health(t *testing.T) {
	hm := health.NewHealthManager(nil)
	hm.Register("monitor", func() error { return nil })

	srv := httptest.NewServer(NewServer(0, hm, logging.NewNopLogger()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body health.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Healthy)
	assert.True(t, body.Components["monitor"].Healthy)

	hm.Register("oracle", func() error { return errors.New("timeout") })
	resp2, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)

	var failed health.Report
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&failed))
	assert.Equal(t, "timeout", failed.Components["oracle"].Error)
}

func TestServer_Metrics(t *testing.T) {
	srv := httptest.NewServer(NewServer(0, nil, logging.NewNopLogger()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
