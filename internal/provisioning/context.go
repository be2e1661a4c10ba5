package provisioning

import (
	"context"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/metrics"
)

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Config   *config.Config
	Session  *Session
	Observer Observer
	Metrics  *metrics.Recorder
	Timeouts *config.Timeouts
}

// NewContext creates a new provisioning context with a fresh session.
func NewContext(ctx context.Context, cfg *config.Config, observer Observer, recorder *metrics.Recorder) *Context {
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Session:  NewSession(),
		Observer: observer,
		Metrics:  recorder,
		Timeouts: &cfg.Timeouts,
	}
}
