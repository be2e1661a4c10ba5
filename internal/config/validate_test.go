package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty repo", func(c *Config) { c.ModelRepo = " " }, "MODEL_REPO is required"},
		{"repo without owner", func(c *Config) { c.ModelRepo = "DeepSeek-R1" }, "MODEL_REPO must be <owner>/<name>"},
		{"empty model dir", func(c *Config) { c.ModelDir = "" }, "MODEL_DIR is required"},
		{"model name with slash", func(c *Config) { c.ModelName = "a/b" }, "MODEL_NAME must be a single path element"},
		{"port out of range", func(c *Config) { c.GrafanaPort = 70000 }, "GRAFANA_PORT must be between 1 and 65535"},
		{"duplicate port", func(c *Config) { c.PrometheusPort = c.ModelPort }, "MODEL_PORT and PROMETHEUS_PORT both use port 8000"},
		{"zero tensor parallel", func(c *Config) { c.TensorParallelSize = 0 }, "TENSOR_PARALLEL_SIZE must be positive"},
		{"negative block size", func(c *Config) { c.BlockSize = -8 }, "BLOCK_SIZE must be positive"},
		{"no devices", func(c *Config) { c.MinDevices = 0 }, "MIN_NEURON_DEVICES must be at least 1"},
		{"no download workers", func(c *Config) { c.DownloadParallel = 0 }, "DOWNLOAD_CONCURRENCY must be at least 1"},
		{"empty bucket prefix", func(c *Config) { c.BucketPrefix = "" }, "BUCKET_PREFIX is required"},
		{"empty serve command", func(c *Config) { c.ServeCommand = "  " }, "SERVE_COMMAND is required"},
		{"unknown halt", func(c *Config) { c.SetupHalt = "model" }, "SETUP_ONLY_HALT must be"},
		{"zero monitor interval", func(c *Config) { c.MonitorInterval = 0 }, "MONITOR_INTERVAL must be positive"},
		{"negative settle", func(c *Config) { c.SettleInterval = -1 }, "MONITORING_SETTLE must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
