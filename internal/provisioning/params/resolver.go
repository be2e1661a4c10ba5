package params

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/platform/neuron"
	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
)

const phaseName = "params"

// Resolver runs the detector and overlays its output on the defaults.
type Resolver struct {
	Runner shell.Runner
	// Self is the running executable, used for the built-in detector when no
	// detector command is configured.
	Self string
	// EnvFile is passed on to the built-in detector.
	EnvFile  string
	Observer provisioning.Observer
	Timeout  time.Duration
}

// DetectorArgv returns the detector command line.
func (r *Resolver) DetectorArgv(cfg *config.Config) []string {
	if argv := cfg.DetectorArgv(); len(argv) > 0 {
		return argv
	}
	argv := []string{r.Self, "detect", "--json"}
	if r.EnvFile != "" {
		argv = append(argv, "--env-file", r.EnvFile)
	}
	return argv
}

// Resolve returns the tuning to launch with. It never fails.
func (r *Resolver) Resolve(ctx context.Context, cfg *config.Config, useDetection bool) ParameterSet {
	params := Defaults(cfg)
	if !useDetection {
		return params
	}

	argv := r.DetectorArgv(cfg)
	rec, err := r.detect(ctx, argv)
	if err != nil {
		r.Observer.Warn(&provisioning.ParameterDetectionWarning{Detector: strings.Join(argv, " "), Err: err}, "parameter detection failed")
		return params
	}
	return Overlay(params, rec)
}

func (r *Resolver) detect(ctx context.Context, argv []string) (config.RecommendedParams, error) {
	var rec config.RecommendedParams
	if len(argv) == 0 || argv[0] == "" {
		return rec, errors.New("no detector command")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	res, err := r.Runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return rec, err
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return rec, errors.New("detector printed nothing")
	}
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		return rec, fmt.Errorf("malformed detector output: %w", err)
	}
	return rec, nil
}

// Phase resolves parameters into the session and records them.
type Phase struct {
	Resolver     *Resolver
	UseDetection bool
}

// Name implements provisioning.Phase.
func (p *Phase) Name() string { return phaseName }

// Provision implements provisioning.Phase. Only context cancellation fails
// it; detection and record problems are warnings.
func (p *Phase) Provision(ctx *provisioning.Context) error {
	params := p.Resolver.Resolve(ctx, ctx.Config, p.UseDetection)
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx.Session.Params = params

	source := "defaults"
	if params.Detected {
		source = "detection"
	}
	ctx.Observer.Printf("[%s] tensor_parallel_size=%d max_model_len=%d max_num_seqs=%d block_size=%d (%s)",
		phaseName, params.TensorParallelSize, params.MaxModelLen, params.MaxNumSeqs, params.BlockSize, source)

	if err := WriteCurrent(ctx.Config, params, ctx.Session.ModelPath); err != nil {
		ctx.Observer.Warn(err, "failed to record current configuration")
	}
	return nil
}

// WriteCurrent records the configuration in effect to current_config.json.
func WriteCurrent(cfg *config.Config, params ParameterSet, modelPath string) error {
	return config.WriteRecord(cfg.CurrentConfigPath(), config.CurrentConfig{
		ModelRepo:          cfg.ModelRepo,
		ModelDir:           cfg.ModelDir,
		ModelName:          cfg.ModelName,
		ModelPath:          modelPath,
		TensorParallelSize: params.TensorParallelSize,
		MaxModelLen:        params.MaxModelLen,
		MaxNumSeqs:         params.MaxNumSeqs,
		BlockSize:          params.BlockSize,
		Temperature:        cfg.Temperature,
		TopP:               cfg.TopP,
		ModelPort:          cfg.ModelPort,
		PrometheusPort:     cfg.PrometheusPort,
		GrafanaPort:        cfg.GrafanaPort,
		Detected:           params.Detected,
	})
}

// InventoryLister reads the device inventory. Implemented by neuron.Lister.
type InventoryLister interface {
	List(ctx context.Context) (neuron.Inventory, error)
}

// Detection is the built-in detector's result.
type Detection struct {
	Inventory   neuron.Inventory
	Recommended config.RecommendedParams
}

// Detect lists the devices, derives a recommendation and records it in
// recommended_params.json.
func Detect(ctx context.Context, lister InventoryLister, cfg *config.Config) (Detection, error) {
	inv, err := lister.List(ctx)
	if err != nil {
		return Detection{}, fmt.Errorf("failed to read device inventory: %w", err)
	}
	rec := Recommend(inv, cfg)
	if err := config.WriteRecord(cfg.RecommendedParamsPath(), rec); err != nil {
		return Detection{}, err
	}
	return Detection{Inventory: inv, Recommended: rec}, nil
}

// LoadRecommended reads recommended_params.json, falling back to the
// configured defaults when it is absent or unreadable.
func LoadRecommended(cfg *config.Config) config.RecommendedParams {
	var rec config.RecommendedParams
	if err := config.ReadRecord(cfg.RecommendedParamsPath(), &rec); err != nil {
		d := Defaults(cfg)
		return config.RecommendedParams{
			TensorParallelSize: d.TensorParallelSize,
			MaxModelLen:        d.MaxModelLen,
			MaxNumSeqs:         d.MaxNumSeqs,
			BlockSize:          d.BlockSize,
			Temperature:        cfg.Temperature,
			TopP:               cfg.TopP,
		}
	}
	return rec
}

// LoadCurrent returns the tuning recorded by the running deployment in
// current_config.json, or the configured defaults when none is recorded.
func LoadCurrent(cfg *config.Config) ParameterSet {
	var cur config.CurrentConfig
	if err := config.ReadRecord(cfg.CurrentConfigPath(), &cur); err != nil {
		return Defaults(cfg)
	}
	out := Overlay(Defaults(cfg), config.RecommendedParams{
		TensorParallelSize: cur.TensorParallelSize,
		MaxModelLen:        cur.MaxModelLen,
		MaxNumSeqs:         cur.MaxNumSeqs,
		BlockSize:          cur.BlockSize,
	})
	out.Detected = cur.Detected
	return out
}
