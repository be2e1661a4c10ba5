package handlers

import (
	"context"
	"fmt"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/metrics"
	"github.com/ddipass/deepseek-bedrock/internal/platform/imds"
	"github.com/ddipass/deepseek-bedrock/internal/platform/mount"
	"github.com/ddipass/deepseek-bedrock/internal/platform/s3"
	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/dependencies"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/environment"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/model"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/monitoring"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/params"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/service"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/storage"
)

// DeployOptions carries the root command flags.
type DeployOptions struct {
	EnvFile     string
	UseDetected bool
	SetupOnly   bool
}

// Factory function variables for the deploy pipeline - can be replaced in tests.
var (
	// newHostMetadata creates the EC2 instance metadata client.
	newHostMetadata = func() storage.HostMetadata { return imds.NewClient("") }

	// newBucketClient creates the S3 client used to create the model bucket.
	newBucketClient = func(cfg *config.Config) storage.BucketClientFactory {
		return func(ctx context.Context, region string) (storage.BucketClient, error) {
			return s3.NewClient(ctx, s3.Options{
				Region:          region,
				Endpoint:        cfg.S3Endpoint,
				AccessKeyID:     cfg.S3AccessKeyID,
				SecretAccessKey: cfg.S3SecretKey,
			})
		}
	}

	// buildPipeline assembles the deployment stages.
	buildPipeline = newPipeline
)

// Deploy runs the full deployment: every setup stage in order, then the
// serving engine in the foreground until ctx is cancelled or the engine
// exits. Acquired resources are released before Deploy returns.
func Deploy(ctx context.Context, opts DeployOptions) error {
	cfg, err := loadConfig(opts.EnvFile)
	if err != nil {
		return err
	}
	if err := cfg.EnsureWorkspace(); err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	observer := provisioning.NewLogObserver(logger)
	recorder := metrics.NewRecorder()
	pctx := provisioning.NewContext(ctx, cfg, observer, recorder)

	self, err := executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}

	orch := buildPipeline(cfg, opts, newRunner(), self, observer)
	orch.Cleanup = &provisioning.Coordinator{
		Observer:    observer,
		Metrics:     recorder,
		StepTimeout: cfg.Timeouts.Cleanup,
	}

	runErr := orch.Run(pctx)
	if err := recorder.WriteTextfile(cfg.MetricsPath()); err != nil {
		observer.Warn(err, "failed to write metrics textfile")
	}
	return runErr
}

// newPipeline wires the deployment stages. Setup-only runs stop after the
// dependency stage, or after the storage stage with the mount kept in place.
func newPipeline(cfg *config.Config, opts DeployOptions, runner shell.Runner, self string, observer provisioning.Observer) *provisioning.Orchestrator {
	installer := dependencies.NewInstaller(runner, cfg.CacheDir)
	supervisor := monitoring.NewSupervisor(cfg, runner, self)
	if opts.EnvFile != "" {
		supervisor.MonitorArgv = append(supervisor.MonitorArgv, "--env-file", opts.EnvFile)
	}
	pkgs := append(dependencies.AptPackages(cfg.SystemPackages), dependencies.PipPackages(cfg.PythonPackages)...)

	orch := &provisioning.Orchestrator{
		Stages: []provisioning.Stage{
			{State: provisioning.StateValidated, Phase: environment.NewPhase(environment.NewValidator(runner, cfg.DeviceKind, cfg.MinDevices))},
			{State: provisioning.StateDepsReady, Phase: dependencies.NewPhase(installer, pkgs)},
			{State: provisioning.StateStorageReady, Phase: &storage.Provisioner{
				Host:      newHostMetadata(),
				Buckets:   newBucketClient(cfg),
				Mounter:   mount.NewMounter(runner),
				Tools:     installer,
				MountTool: dependencies.DebPackage(mount.Binary, cfg.MountS3DebURL),
			}},
			{State: provisioning.StateModelReady, Phase: model.NewPhase(cfg.HFEndpoint, cfg.Token())},
			{State: provisioning.StateParamsResolved, Phase: &params.Phase{
				Resolver: &params.Resolver{
					Runner:   runner,
					Self:     self,
					EnvFile:  opts.EnvFile,
					Observer: observer,
					Timeout:  cfg.Timeouts.Command,
				},
				UseDetection: opts.UseDetected,
			}},
			{State: provisioning.StateMonitoringUp, Phase: supervisor},
		},
		Foreground: &service.Phase{Launcher: service.NewLauncher(cfg, observer)},
	}

	if opts.SetupOnly {
		orch.SetupOnly = true
		orch.HaltAfter = provisioning.StateDepsReady
		if cfg.SetupHalt == config.HaltAfterStorage {
			orch.HaltAfter = provisioning.StateStorageReady
			orch.RetainOnHalt = []provisioning.Resource{provisioning.ResourceMount}
		}
	}
	return orch
}
