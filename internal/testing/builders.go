package testing

import (
	"path/filepath"
	"time"

	"github.com/ddipass/deepseek-bedrock/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a builder from the built-in defaults with every
// workspace path rooted at root and short timeouts suitable for tests.
func NewConfigBuilder(root string) *ConfigBuilder {
	cfg := *config.Default()
	cfg.ModelDir = filepath.Join(root, "models")
	cfg.LogDir = filepath.Join(root, "logs")
	cfg.CacheDir = filepath.Join(root, "cache")
	cfg.ConfigDir = filepath.Join(root, "configs")
	cfg.MonitoringDir = filepath.Join(root, "monitoring")
	cfg.MachineIDPath = filepath.Join(root, "machine-id")
	cfg.SettleInterval = 0
	cfg.Timeouts.MountVerify = 200 * time.Millisecond
	cfg.Timeouts.RetryMaxAttempts = 2
	cfg.Timeouts.RetryInitialDelay = 10 * time.Millisecond
	cfg.Timeouts.StopGrace = 2 * time.Second
	cfg.Timeouts.ServiceStartup = 10 * time.Second
	return &ConfigBuilder{cfg: cfg}
}

// WithStorageIdentity pins the storage identity.
func (b *ConfigBuilder) WithStorageIdentity(id string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.StorageIdentity = id
	return nb
}

// WithModel sets the repository and endpoint used for downloads.
func (b *ConfigBuilder) WithModel(repo, endpoint string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.ModelRepo = repo
	nb.cfg.HFEndpoint = endpoint
	return nb
}

// WithModelPort sets the serving port.
func (b *ConfigBuilder) WithModelPort(port int) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.ModelPort = port
	return nb
}

// WithServeCommand sets the serving command line.
func (b *ConfigBuilder) WithServeCommand(cmd string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.ServeCommand = cmd
	return nb
}

// WithDetectorCommand sets the parameter detector command line.
func (b *ConfigBuilder) WithDetectorCommand(cmd string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.DetectorCommand = cmd
	return nb
}

// WithSetupHalt sets the setup-only halt point.
func (b *ConfigBuilder) WithSetupHalt(halt string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.SetupHalt = halt
	return nb
}

// Build returns a copy of the configuration.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.cfg
	cfg.SystemPackages = append([]string(nil), b.cfg.SystemPackages...)
	cfg.PythonPackages = append([]string(nil), b.cfg.PythonPackages...)
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	return &ConfigBuilder{cfg: *b.Build()}
}
