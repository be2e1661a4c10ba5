package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RecommendedParams is the detector's recommendation as persisted in
// recommended_params.json. Absent keys mean "no opinion".
type RecommendedParams struct {
	TensorParallelSize int     `json:"tensor_parallel_size,omitempty"`
	MaxModelLen        int     `json:"max_model_len,omitempty"`
	MaxNumSeqs         int     `json:"max_num_seqs,omitempty"`
	BlockSize          int     `json:"block_size,omitempty"`
	Temperature        float64 `json:"temperature,omitempty"`
	TopP               float64 `json:"top_p,omitempty"`
}

// CurrentConfig is the deployment configuration actually in effect, as
// persisted in current_config.json for diagnosis.
type CurrentConfig struct {
	ModelRepo          string  `json:"model_repo"`
	ModelDir           string  `json:"model_dir"`
	ModelName          string  `json:"model_name"`
	ModelPath          string  `json:"model_path,omitempty"`
	TensorParallelSize int     `json:"tensor_parallel_size"`
	MaxModelLen        int     `json:"max_model_len"`
	MaxNumSeqs         int     `json:"max_num_seqs"`
	BlockSize          int     `json:"block_size"`
	Temperature        float64 `json:"temperature"`
	TopP               float64 `json:"top_p"`
	ModelPort          int     `json:"model_port"`
	PrometheusPort     int     `json:"prometheus_port"`
	GrafanaPort        int     `json:"grafana_port"`
	Detected           bool    `json:"detected"`
}

// WriteRecord writes v as indented JSON, creating the parent directory.
func WriteRecord(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadRecord decodes a JSON record written by WriteRecord.
func ReadRecord(path string, v any) error {
	// #nosec G304 - records live in the configured config directory
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
