package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeouts_EnvironmentDefaultsMatchDefaultTimeouts(t *testing.T) {
	cfg, err := Load(LoadOptions{Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeouts(), cfg.Timeouts)
}

func TestTimeouts_Overrides(t *testing.T) {
	cfg, err := Load(LoadOptions{Environment: map[string]string{
		"DSDEPLOY_TIMEOUT_MOUNT_VERIFY": "5s",
		"DSDEPLOY_TIMEOUT_STOP_GRACE":   "1m",
		"DSDEPLOY_TIMEOUT_CLEANUP":      "30s",
		"DSDEPLOY_TIMEOUT_COMMAND":      "1h",
		"DSDEPLOY_RETRY_INITIAL_DELAY":  "2s",
	}})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Timeouts.MountVerify)
	assert.Equal(t, time.Minute, cfg.Timeouts.StopGrace)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Cleanup)
	assert.Equal(t, time.Hour, cfg.Timeouts.Command)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.RetryInitialDelay)
	assert.Equal(t, 60*time.Minute, cfg.Timeouts.ServiceStartup, "unset values keep their default")
}

func TestTimeouts_InvalidDuration(t *testing.T) {
	_, err := Load(LoadOptions{Environment: map[string]string{"DSDEPLOY_TIMEOUT_CLEANUP": "soon"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse environment")
}
