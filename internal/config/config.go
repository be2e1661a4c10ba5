package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Setup-only halt points.
const (
	HaltAfterDeps    = "deps"
	HaltAfterStorage = "storage"
)

// Config holds the deployment configuration.
//
// A Config is built once by Load and treated as read-only afterwards. Every
// component receives it explicitly; nothing downstream reads the process
// environment.
type Config struct {
	// Model
	ModelRepo     string `env:"MODEL_REPO" envDefault:"deepseek-ai/DeepSeek-R1" json:"model_repo"`
	ModelRevision string `env:"MODEL_REVISION" envDefault:"main" json:"model_revision"`
	ModelDir      string `env:"MODEL_DIR" envDefault:"/home/ubuntu/models" json:"model_dir"`
	ModelName     string `env:"MODEL_NAME" envDefault:"deepseek-685b" json:"model_name"`
	HFEndpoint    string `env:"HF_ENDPOINT" envDefault:"https://huggingface.co" json:"hf_endpoint"`

	// HFToken is the model repository credential. HF_TOKEN is accepted when
	// HUGGING_FACE_TOKEN is unset.
	HFToken       string `env:"HUGGING_FACE_TOKEN" json:"-"`
	LegacyHFToken string `env:"HF_TOKEN" json:"-"`

	// Ports
	ModelPort      int `env:"MODEL_PORT" envDefault:"8000" json:"model_port"`
	PrometheusPort int `env:"PROMETHEUS_PORT" envDefault:"9090" json:"prometheus_port"`
	GrafanaPort    int `env:"GRAFANA_PORT" envDefault:"3000" json:"grafana_port"`

	// Tuning defaults, overridden field-by-field by detection.
	TensorParallelSize int     `env:"TENSOR_PARALLEL_SIZE" envDefault:"2" json:"tensor_parallel_size"`
	MaxModelLen        int     `env:"MAX_MODEL_LEN" envDefault:"2048" json:"max_model_len"`
	MaxNumSeqs         int     `env:"MAX_NUM_SEQS" envDefault:"4" json:"max_num_seqs"`
	BlockSize          int     `env:"BLOCK_SIZE" envDefault:"8" json:"block_size"`
	Temperature        float64 `env:"TEMPERATURE" envDefault:"0.6" json:"temperature"`
	TopP               float64 `env:"TOP_P" envDefault:"0.95" json:"top_p"`

	// Workspace
	LogDir    string `env:"LOG_DIR" envDefault:"logs" json:"log_dir"`
	CacheDir  string `env:"CACHE_DIR" envDefault:"cache" json:"cache_dir"`
	ConfigDir string `env:"CONFIG_DIR" envDefault:"configs" json:"config_dir"`

	// Storage
	BucketPrefix     string `env:"BUCKET_PREFIX" envDefault:"deepseek-models" json:"bucket_prefix"`
	StorageIdentity  string `env:"STORAGE_IDENTITY" json:"storage_identity,omitempty"`
	AWSRegion        string `env:"AWS_REGION" json:"aws_region,omitempty"`
	S3Endpoint       string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3AccessKeyID    string `env:"S3_ACCESS_KEY_ID" json:"-"`
	S3SecretKey      string `env:"S3_SECRET_ACCESS_KEY" json:"-"`
	MountS3DebURL    string `env:"MOUNT_S3_PACKAGE_URL" envDefault:"https://s3.amazonaws.com/mountpoint-s3-release/latest/x86_64/mount-s3.deb" json:"-"`
	MachineIDPath    string `env:"MACHINE_ID_PATH" envDefault:"/etc/machine-id" json:"-"`
	DownloadParallel int    `env:"DOWNLOAD_CONCURRENCY" envDefault:"8" json:"-"`

	// Environment
	MinDevices int    `env:"MIN_NEURON_DEVICES" envDefault:"1" json:"-"`
	DeviceKind string `env:"ACCELERATOR_KIND" envDefault:"neuron" json:"-"`

	// Dependencies
	SystemPackages []string `env:"SYSTEM_PACKAGES" envDefault:"python3-pip,git" envSeparator:"," json:"-"`
	PythonPackages []string `env:"PYTHON_PACKAGES" envDefault:"transformers,vllm" envSeparator:"," json:"-"`

	// Serving
	ServeCommand    string `env:"SERVE_COMMAND" envDefault:"python3 -m vllm.entrypoints.openai.api_server" json:"-"`
	ServeDevice     string `env:"SERVE_DEVICE" envDefault:"neuron" json:"-"`
	DetectorCommand string `env:"DETECTOR_COMMAND" json:"-"`

	// Monitoring
	MonitoringDir   string        `env:"MONITORING_DIR" envDefault:"monitoring" json:"-"`
	MonitorInterval time.Duration `env:"MONITOR_INTERVAL" envDefault:"2s" json:"-"`
	SettleInterval  time.Duration `env:"MONITORING_SETTLE" envDefault:"10s" json:"-"`

	// SetupHalt selects where --setup-only stops: "deps" or "storage".
	SetupHalt string `env:"SETUP_ONLY_HALT" envDefault:"deps" json:"-"`

	Timeouts Timeouts `envPrefix:"DSDEPLOY_" json:"-"`
}

// Token returns the model repository credential.
func (c *Config) Token() string {
	if c.HFToken != "" {
		return c.HFToken
	}
	return c.LegacyHFToken
}

// ServeArgv splits ServeCommand into an argv.
func (c *Config) ServeArgv() []string {
	return strings.Fields(c.ServeCommand)
}

// DetectorArgv splits DetectorCommand into an argv. An empty result means
// the built-in detector of the running binary.
func (c *Config) DetectorArgv() []string {
	return strings.Fields(c.DetectorCommand)
}

// RecommendedParamsPath is where the detector records its recommendation.
func (c *Config) RecommendedParamsPath() string {
	return filepath.Join(c.ConfigDir, "recommended_params.json")
}

// CurrentConfigPath is where the resolved deployment configuration is recorded.
func (c *Config) CurrentConfigPath() string {
	return filepath.Join(c.ConfigDir, "current_config.json")
}

// CheckReportPath is where the host check records its last result.
func (c *Config) CheckReportPath() string {
	return filepath.Join(c.ConfigDir, "resource_check.json")
}

// MetricsPath is the Prometheus textfile written at shutdown.
func (c *Config) MetricsPath() string {
	return filepath.Join(c.LogDir, "dsdeploy.prom")
}
