package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastOptions = Options{
	Timeout:        time.Second,
	MaxRetries:     3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
}

func TestClient_Retry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	client := NewClient(server.URL, fastOptions)
	body, err := client.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "success", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_PostJSONReplaysBodyOnRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "hello", got["text"])
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(server.URL, fastOptions)
	body, err := client.PostJSON(context.Background(), "", map[string]string{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestClient_RepeatedQueryKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["ids[]"])
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewClient(server.URL, fastOptions)
	_, err := client.Get(context.Background(), "/prices", url.Values{"ids[]": {"a", "b"}})
	require.NoError(t, err)
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastOptions)
	_, err := client.Get(context.Background(), "/", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClient_CircuitBreaker(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastOptions)

	// 5 failures out of 10 opens the breaker
	for i := 0; i < 6; i++ {
		_, _ = client.Get(context.Background(), "/", nil)
	}

	startAttempts := atomic.LoadInt32(&attempts)
	_, err := client.Get(context.Background(), "/", nil)
	assert.Error(t, err)
	assert.Equal(t, startAttempts, atomic.LoadInt32(&attempts), "server reached with open circuit")
}
