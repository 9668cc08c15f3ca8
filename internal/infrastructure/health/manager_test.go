package health

import (
	"bytes"
	"errors"
	"testing"

	"margin_maker/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthManager_Aggregation(t *testing.T) {
	hm := NewHealthManager(nil)
	assert.True(t, hm.Check().Healthy, "empty manager is healthy")

	hm.Register("monitor", func() error { return nil })
	assert.True(t, hm.Check().Healthy)

	hm.Register("oracle", func() error { return errors.New("stale") })
	report := hm.Check()
	assert.False(t, report.Healthy)
	assert.Equal(t, ComponentStatus{Healthy: true}, report.Components["monitor"])
	assert.Equal(t, ComponentStatus{Error: "stale"}, report.Components["oracle"])
}

func TestHealthManager_ReRegisterReplaces(t *testing.T) {
	hm := NewHealthManager(nil)
	hm.Register("monitor", func() error { return errors.New("down") })
	hm.Register("monitor", func() error { return nil })
	assert.True(t, hm.Check().Healthy)
}

func TestHealthManager_LogsTransitionsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "INFO", Output: &buf})
	require.NoError(t, err)

	failing := true
	hm := NewHealthManager(logger)
	hm.Register("monitor", func() error {
		if failing {
			return errors.New("no successful cycle yet")
		}
		return nil
	})

	hm.Check()
	hm.Check()
	failing = false
	hm.Check()
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Equal(t, 1, bytes.Count([]byte(out), []byte("Component unhealthy")))
	assert.Contains(t, out, "Component recovered")
}
