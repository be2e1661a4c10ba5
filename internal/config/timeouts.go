package config

import "time"

// Timeouts holds all configurable timeout values.
//
// Environment Variables:
//   - DSDEPLOY_TIMEOUT_MOUNT_VERIFY (default: 60s)
//   - DSDEPLOY_TIMEOUT_STARTUP (default: 60m)
//   - DSDEPLOY_TIMEOUT_STOP_GRACE (default: 30s)
//   - DSDEPLOY_TIMEOUT_CLEANUP (default: 2m)
//   - DSDEPLOY_TIMEOUT_COMMAND (default: 30m)
//   - DSDEPLOY_RETRY_MAX_ATTEMPTS (default: 8)
//   - DSDEPLOY_RETRY_INITIAL_DELAY (default: 500ms)
type Timeouts struct {
	MountVerify       time.Duration `env:"TIMEOUT_MOUNT_VERIFY" envDefault:"60s"` // Upper bound for mount table verification
	ServiceStartup    time.Duration `env:"TIMEOUT_STARTUP" envDefault:"60m"`      // Serving process readiness (Neuron compilation is slow)
	StopGrace         time.Duration `env:"TIMEOUT_STOP_GRACE" envDefault:"30s"`   // SIGTERM to SIGKILL delay for child processes
	Cleanup           time.Duration `env:"TIMEOUT_CLEANUP" envDefault:"2m"`       // Per teardown step
	Command           time.Duration `env:"TIMEOUT_COMMAND" envDefault:"30m"`      // Package installs and other external tools
	RetryMaxAttempts  int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"8"`
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"500ms"`
}

// DefaultTimeouts returns the timeout defaults without consulting the environment.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		MountVerify:       60 * time.Second,
		ServiceStartup:    60 * time.Minute,
		StopGrace:         30 * time.Second,
		Cleanup:           2 * time.Minute,
		Command:           30 * time.Minute,
		RetryMaxAttempts:  8,
		RetryInitialDelay: 500 * time.Millisecond,
	}
}
