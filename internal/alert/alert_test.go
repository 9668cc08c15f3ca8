package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"margin_maker/internal/core"
	httpclient "margin_maker/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAlertChannel struct {
	name     string
	sent     []AlertPayload
	sendFunc func(ctx context.Context, alert AlertPayload) error
	mu       sync.Mutex
}

func (m *mockAlertChannel) Name() string {
	return m.name
}

func (m *mockAlertChannel) Send(ctx context.Context, alert AlertPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, alert)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, alert)
	}
	return nil
}

func (m *mockAlertChannel) getSent() []AlertPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]AlertPayload, len(m.sent))
	copy(res, m.sent)
	return res
}

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, f ...interface{})               {}
func (m *mockLogger) Info(msg string, f ...interface{})                {}
func (m *mockLogger) Warn(msg string, f ...interface{})                {}
func (m *mockLogger) Error(msg string, f ...interface{})               {}
func (m *mockLogger) Fatal(msg string, f ...interface{})               {}
func (m *mockLogger) WithField(k string, v interface{}) core.ILogger   { return m }
func (m *mockLogger) WithFields(f map[string]interface{}) core.ILogger { return m }

func TestAlertManager_Alert(t *testing.T) {
	am := NewAlertManager(&mockLogger{}, 0)

	ch1 := &mockAlertChannel{name: "mock1"}
	ch2 := &mockAlertChannel{name: "mock2", sendFunc: func(ctx context.Context, a AlertPayload) error {
		return errors.New("unreachable")
	}}
	am.AddChannel(ch1)
	am.AddChannel(ch2)

	assert.True(t, am.Alert(context.Background(), "Position danger", "ratio 1.15", Error, map[string]string{"manager": "primary"}))
	am.Flush()

	sent1 := ch1.getSent()
	require.Len(t, sent1, 1)
	assert.Len(t, ch2.getSent(), 1)
	assert.Equal(t, "Position danger", sent1[0].Title)
	assert.Equal(t, Error, sent1[0].Level)
	assert.Equal(t, "primary", sent1[0].Fields["manager"])
}

func TestAlertManager_Throttle(t *testing.T) {
	am := NewAlertManager(&mockLogger{}, time.Hour)
	ch := &mockAlertChannel{name: "mock"}
	am.AddChannel(ch)

	ctx := context.Background()
	assert.True(t, am.Alert(ctx, "primary critical", "", Critical, nil))
	assert.False(t, am.Alert(ctx, "primary critical", "", Critical, nil))
	assert.True(t, am.Alert(ctx, "secondary critical", "", Critical, nil))
	am.Flush()

	assert.Len(t, ch.getSent(), 2)
}

func TestAlertManager_CanceledCallerStillDelivers(t *testing.T) {
	am := NewAlertManager(&mockLogger{}, 0)
	ch := &mockAlertChannel{name: "mock", sendFunc: func(ctx context.Context, a AlertPayload) error {
		return ctx.Err()
	}}
	am.AddChannel(ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	am.Alert(ctx, "t", "m", Warning, nil)
	am.Flush()

	assert.Len(t, ch.getSent(), 1)
}

var slackOptions = httpclient.Options{Timeout: time.Second, InitialBackoff: time.Millisecond}

func TestSlackChannel_Send(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewSlackChannel(server.URL, slackOptions)
	err := ch.Send(context.Background(), AlertPayload{
		Level:     Critical,
		Title:     "Liquidation imminent",
		Message:   "primary at 1.02",
		Timestamp: time.Unix(1700000000, 0),
		Fields:    map[string]string{"b": "2", "a": "1"},
	})
	require.NoError(t, err)

	attachments := got["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	att := attachments[0].(map[string]interface{})
	assert.Equal(t, "#8b0000", att["color"])
	assert.Equal(t, "[CRITICAL] Liquidation imminent", att["pretext"])
	fields := att["fields"].([]interface{})
	assert.Equal(t, "a", fields[0].(map[string]interface{})["title"])
}

func TestSlackChannel_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := NewSlackChannel(server.URL, slackOptions).Send(context.Background(), AlertPayload{Level: Info})
	assert.ErrorContains(t, err, "403")
}
