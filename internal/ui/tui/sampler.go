package tui

import (
	"context"
	"time"

	"github.com/ddipass/deepseek-bedrock/internal/platform/neuron"
	"github.com/ddipass/deepseek-bedrock/internal/platform/vllm"
)

// DeviceLister reads the accelerator inventory. Implemented by neuron.Lister.
type DeviceLister interface {
	List(ctx context.Context) (neuron.Inventory, error)
}

// MetricsScraper reads the serving engine metrics. Implemented by vllm.Scraper.
type MetricsScraper interface {
	Scrape(ctx context.Context) (vllm.Snapshot, error)
}

// Sample is one observation of the deployment.
type Sample struct {
	Time time.Time

	Devices   neuron.Inventory
	DeviceErr error

	Metrics    vllm.Snapshot
	MetricsErr error
	// Rates is valid once two consecutive scrapes succeeded.
	Rates    vllm.Rates
	HasRates bool
}

// Sampler collects samples. It keeps the previous scrape to derive rates
// and is not safe for concurrent use.
type Sampler struct {
	Devices DeviceLister
	Metrics MetricsScraper
	Now     func() time.Time

	prev *vllm.Snapshot
}

// Sample reads devices and metrics. Failures are recorded in the sample,
// never returned: the engine may still be compiling.
func (s *Sampler) Sample(ctx context.Context) Sample {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	out := Sample{Time: now()}

	out.Devices, out.DeviceErr = s.Devices.List(ctx)

	snap, err := s.Metrics.Scrape(ctx)
	if err != nil {
		out.MetricsErr = err
		s.prev = nil
		return out
	}
	out.Metrics = snap
	if s.prev != nil {
		out.Rates = snap.Since(*s.prev)
		out.HasRates = true
	}
	s.prev = &snap
	return out
}
