package testing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/metrics"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestLogger returns a zerolog logger writing to the test log.
func TestLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// ProvisioningContext returns a provisioning context for cfg with a fresh
// session, test logging and a private metrics registry.
func ProvisioningContext(t *testing.T, cfg *config.Config) *provisioning.Context {
	t.Helper()
	observer := provisioning.NewLogObserver(TestLogger(t))
	return provisioning.NewContext(TestContext(t), cfg, observer, metrics.NewRecorder())
}
