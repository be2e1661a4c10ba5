package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ddipass/deepseek-bedrock/internal/platform/neuron"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderDevices(&b, m)
	renderServing(&b, m)
	renderParams(&b, m)
	if len(m.Advice) > 0 {
		renderAdvice(&b, m)
	}
	renderDashboards(&b, m)
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	b.WriteString(titleStyle.Render(fmt.Sprintf("dsdeploy monitor: %s", m.ModelName)))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case !m.Sampled:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame) + " sampling...")
	case m.Sample.MetricsErr != nil:
		status += warningStyle.Render(currentSpinner(m.SpinnerFrame) + " waiting for engine")
	default:
		status += readyStyle.Render("Serving")
	}
	b.WriteString(status)
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("  " + m.Sample.Time.Format(time.DateTime)))
	b.WriteString("\n")
}

func renderDevices(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Neuron Devices"))
	b.WriteString("\n")

	if m.Sample.DeviceErr != nil {
		fmt.Fprintf(b, "    %s %s\n", failedStyle.Render(crossMark), dimStyle.Render(m.Sample.DeviceErr.Error()))
		return
	}
	inv := m.Sample.Devices
	if inv.Count() == 0 {
		fmt.Fprintf(b, "    %s %s\n", dimStyle.Render(pending), dimStyle.Render("no devices reported"))
		return
	}

	for _, d := range inv.Devices {
		icon, style := deviceIcon(d)
		fmt.Fprintf(b, "    %s %-10s %s %s\n",
			style(icon), style(fmt.Sprintf("device %d", d.Index)), memoryBar(d), dimStyle.Render(deviceDetail(d)))
	}
	fmt.Fprintf(b, "    %s %d devices, %d cores, %.0f GiB, %d busy\n",
		labelStyle.Render("total"), inv.Count(), inv.Cores(), inv.MemoryGB(), inv.Busy())
}

func renderServing(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Performance"))
	b.WriteString("\n")

	s := m.Sample
	if s.MetricsErr != nil {
		fmt.Fprintf(b, "    %s %s\n", warningStyle.Render(warnMark), dimStyle.Render(s.MetricsErr.Error()))
		return
	}

	rate := func(f string, v float64) string {
		if !s.HasRates {
			return dimStyle.Render("-")
		}
		return fmt.Sprintf(f, v)
	}
	latency := dimStyle.Render("-")
	if s.HasRates && s.Rates.FirstTokenLatency > 0 {
		latency = fmt.Sprintf("%.3fs", s.Rates.FirstTokenLatency.Seconds())
	}

	rows := []struct{ label, value string }{
		{"first token latency", latency},
		{"token throughput", rate("%.1f tokens/s", s.Rates.TokensPerSecond)},
		{"requests", rate("%.2f/s", s.Rates.RequestsPerSecond)},
		{"running / waiting", fmt.Sprintf("%.0f / %.0f", s.Metrics.Running, s.Metrics.Waiting)},
		{"cache usage", fmt.Sprintf("%.1f%%", s.Metrics.CacheUsage*100)},
	}
	for _, r := range rows {
		fmt.Fprintf(b, "    %s %s\n", labelStyle.Render(r.label), r.value)
	}
}

func renderParams(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Current Parameters"))
	b.WriteString("\n")

	source := "configured"
	if m.Params.Detected {
		source = "detected"
	}
	rows := []struct {
		label string
		value int
	}{
		{"tensor_parallel_size", m.Params.TensorParallelSize},
		{"max_model_len", m.Params.MaxModelLen},
		{"max_num_seqs", m.Params.MaxNumSeqs},
		{"block_size", m.Params.BlockSize},
	}
	for _, r := range rows {
		fmt.Fprintf(b, "    %s %d\n", labelStyle.Render(r.label), r.value)
	}
	fmt.Fprintf(b, "    %s\n", dimStyle.Render("("+source+")"))
}

func renderAdvice(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Recommendations"))
	b.WriteString("\n")

	for _, a := range m.Advice {
		fmt.Fprintf(b, "    %s %s\n", warningStyle.Render(warnMark), a.Reason)
		for _, item := range a.Items {
			fmt.Fprintf(b, "        - %s\n", item)
		}
	}
}

func renderDashboards(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Dashboards"))
	b.WriteString("\n")

	fmt.Fprintf(b, "    %s http://localhost:%d/v1\n", labelStyle.Render("API"), m.Dashboards.Model)
	fmt.Fprintf(b, "    %s http://localhost:%d\n", labelStyle.Render("Prometheus"), m.Dashboards.Prometheus)
	fmt.Fprintf(b, "    %s http://localhost:%d\n", labelStyle.Render("Grafana"), m.Dashboards.Grafana)
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(time.Since(m.StartTime))
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed: %s  |  every %s  |  r: refresh  |  q: quit", elapsed, m.Interval)))
	b.WriteString("\n")
}

// Helper functions

func deviceIcon(d neuron.Device) (string, styleFunc) {
	if len(d.Processes) > 0 {
		return checkMark, sf(readyStyle)
	}
	return pending, sf(dimStyle)
}

func deviceDetail(d neuron.Device) string {
	total := float64(d.MemoryBytes) / (1 << 30)
	detail := fmt.Sprintf("%.1f GiB, %d cores", total, d.Cores)
	if d.MemoryUsed > 0 {
		detail = fmt.Sprintf("%.1f/%.1f GiB, %d cores", float64(d.MemoryUsed)/(1<<30), total, d.Cores)
	}
	if d.Utilization > 0 {
		detail += fmt.Sprintf(", %.1f%% util", d.Utilization)
	}
	return detail
}

func memoryBar(d neuron.Device) string {
	if d.MemoryBytes == 0 {
		return miniBar(0)
	}
	return miniBar(float64(d.MemoryUsed) / float64(d.MemoryBytes))
}

func currentSpinner(frame int) string {
	if len(spinnerFrames) == 0 {
		return spinner
	}
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func miniBar(progress float64) string {
	const width = 10
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * width)
	return progressBarFull.Render(strings.Repeat("█", filled)) + progressBarEmpty.Render(strings.Repeat("░", width-filled))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
