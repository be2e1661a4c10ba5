package handlers

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/ddipass/deepseek-bedrock/internal/logging"
	"github.com/ddipass/deepseek-bedrock/internal/platform/vllm"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/params"
	"github.com/ddipass/deepseek-bedrock/internal/ui/tui"
)

// Factory function variables for the monitor - can be replaced in tests.
var (
	runMonitorTUI = tui.RunMonitorTUI
	runPlain      = tui.RunPlain

	// isInteractive reports whether stdout is a terminal.
	isInteractive = func() bool {
		fd := os.Stdout.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

// Monitor watches the devices and the serving engine and suggests tuning
// changes. plain, or a non-terminal stdout, selects line-oriented logging
// instead of the dashboard.
func Monitor(ctx context.Context, envFile string, plain bool) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	sampler := &tui.Sampler{
		Devices: newLister(),
		Metrics: vllm.NewScraper(cfg.ModelPort),
	}
	model := tui.NewModel(ctx, sampler, cfg.ModelName, params.LoadCurrent(cfg),
		tui.Dashboards{Model: cfg.ModelPort, Prometheus: cfg.PrometheusPort, Grafana: cfg.GrafanaPort},
		cfg.MonitorInterval)

	if plain || !isInteractive() {
		logger, _, err := logging.New(logging.Options{Console: os.Stdout, Level: zerolog.InfoLevel})
		if err != nil {
			return err
		}
		return runPlain(ctx, model, logger)
	}
	return runMonitorTUI(ctx, model)
}
