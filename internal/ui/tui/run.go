package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// RunMonitorTUI runs the dashboard until the user quits or ctx is done.
func RunMonitorTUI(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	fm := finalModel.(Model)
	if fm.Err != nil {
		return fm.Err
	}
	return nil
}

// RunPlain logs one line per sample until ctx is done. It is used when
// stdout is not a terminal, e.g. when the deployment supervises the monitor.
func RunPlain(ctx context.Context, m Model, logger zerolog.Logger) error {
	interval := m.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		LogSample(logger, m.sampler.Sample(ctx), m)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// LogSample writes a sample and its advice as structured log lines.
func LogSample(logger zerolog.Logger, s Sample, m Model) {
	e := logger.Info().
		Int("devices", s.Devices.Count()).
		Int("busy", s.Devices.Busy())
	if usage, ok := s.Devices.MemoryUsage(); ok {
		e = e.Float64("device_memory_pct", usage*100)
	}
	if s.DeviceErr != nil {
		e = e.AnErr("device_error", s.DeviceErr)
	}

	if s.MetricsErr != nil {
		e.AnErr("metrics_error", s.MetricsErr).Msg("engine metrics unavailable")
		return
	}
	e = e.Float64("running", s.Metrics.Running).
		Float64("waiting", s.Metrics.Waiting).
		Float64("cache_usage_pct", s.Metrics.CacheUsage*100)
	if s.HasRates {
		e = e.Dur("first_token_latency", s.Rates.FirstTokenLatency).
			Float64("tokens_per_second", s.Rates.TokensPerSecond).
			Float64("requests_per_second", s.Rates.RequestsPerSecond)
	}
	e.Msg("sample")

	for _, a := range Advise(s, m.Params) {
		logger.Warn().Strs("suggestions", a.Items).Msg(a.Reason)
	}
}
