package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for common errors and returns a detailed error if validation fails.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelRepo) == "" {
		return fmt.Errorf("MODEL_REPO is required")
	}
	if strings.Count(c.ModelRepo, "/") != 1 {
		return fmt.Errorf("MODEL_REPO must be <owner>/<name>, got %q", c.ModelRepo)
	}
	if c.ModelDir == "" {
		return fmt.Errorf("MODEL_DIR is required")
	}
	if c.ModelName == "" || strings.ContainsAny(c.ModelName, `/\`) {
		return fmt.Errorf("MODEL_NAME must be a single path element, got %q", c.ModelName)
	}

	if err := c.validatePorts(); err != nil {
		return err
	}

	tuning := map[string]int{
		"TENSOR_PARALLEL_SIZE": c.TensorParallelSize,
		"MAX_MODEL_LEN":        c.MaxModelLen,
		"MAX_NUM_SEQS":         c.MaxNumSeqs,
		"BLOCK_SIZE":           c.BlockSize,
	}
	for name, v := range tuning {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}

	if c.MinDevices < 1 {
		return fmt.Errorf("MIN_NEURON_DEVICES must be at least 1, got %d", c.MinDevices)
	}
	if c.DownloadParallel < 1 {
		return fmt.Errorf("DOWNLOAD_CONCURRENCY must be at least 1, got %d", c.DownloadParallel)
	}
	if c.BucketPrefix == "" {
		return fmt.Errorf("BUCKET_PREFIX is required")
	}
	if len(c.ServeArgv()) == 0 {
		return fmt.Errorf("SERVE_COMMAND is required")
	}

	switch c.SetupHalt {
	case HaltAfterDeps, HaltAfterStorage:
	default:
		return fmt.Errorf("SETUP_ONLY_HALT must be %q or %q, got %q", HaltAfterDeps, HaltAfterStorage, c.SetupHalt)
	}

	if c.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive")
	}
	if c.SettleInterval < 0 {
		return fmt.Errorf("MONITORING_SETTLE must not be negative")
	}

	return nil
}

func (c *Config) validatePorts() error {
	ports := []struct {
		name string
		port int
	}{
		{"MODEL_PORT", c.ModelPort},
		{"PROMETHEUS_PORT", c.PrometheusPort},
		{"GRAFANA_PORT", c.GrafanaPort},
	}

	seen := make(map[int]string, len(ports))
	for _, p := range ports {
		if p.port < 1 || p.port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", p.name, p.port)
		}
		if other, dup := seen[p.port]; dup {
			return fmt.Errorf("%s and %s both use port %d", other, p.name, p.port)
		}
		seen[p.port] = p.name
	}
	return nil
}
