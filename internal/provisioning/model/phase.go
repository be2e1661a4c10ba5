package model

import (
	"errors"
	"path/filepath"

	"github.com/ddipass/deepseek-bedrock/internal/platform/hfhub"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
)

const phaseName = "model"

// Phase acquires the configured model into the mounted storage.
type Phase struct {
	Hub Hub
}

// NewPhase creates the model phase backed by the Hub at the configured
// endpoint.
func NewPhase(endpoint, token string) *Phase {
	return &Phase{Hub: hfhub.NewClient(endpoint, token)}
}

// Name implements provisioning.Phase.
func (p *Phase) Name() string { return phaseName }

// Provision implements provisioning.Phase.
func (p *Phase) Provision(ctx *provisioning.Context) error {
	if ctx.Session.MountPath == "" {
		return &provisioning.DownloadError{Repo: ctx.Config.ModelRepo, Stage: "download", Err: errors.New("model storage is not mounted")}
	}
	cfg := ctx.Config
	a := &Acquirer{
		Hub:        p.Hub,
		Revision:   cfg.ModelRevision,
		CacheDir:   cfg.CacheDir,
		Parallel:   cfg.DownloadParallel,
		Retries:    ctx.Timeouts.RetryMaxAttempts,
		RetryDelay: ctx.Timeouts.RetryInitialDelay,
		Observer:   ctx.Observer,
		Metrics:    ctx.Metrics,
	}

	target := filepath.Join(ctx.Session.MountPath, cfg.ModelName)
	path, err := a.Acquire(ctx, cfg.ModelRepo, target)
	if err != nil {
		return err
	}

	outcome := provisioning.NewlyCreated
	if a.Reused {
		outcome = provisioning.AlreadyPresent
	}
	provisioning.LogOutcome(ctx.Observer, phaseName, "model", cfg.ModelRepo, outcome)
	ctx.Session.ModelPath = path
	return nil
}
