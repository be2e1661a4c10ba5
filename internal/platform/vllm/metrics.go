// Package vllm reads the serving engine's Prometheus metrics endpoint.
package vllm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Metric families read from /metrics. Cache usage was renamed in newer
// engine releases; both names are accepted.
const (
	FirstTokenLatency = "vllm:time_to_first_token_seconds"
	GenerationTokens  = "vllm:generation_tokens_total"
	RequestSuccess    = "vllm:request_success_total"
	RequestsRunning   = "vllm:num_requests_running"
	RequestsWaiting   = "vllm:num_requests_waiting"
	GPUCacheUsage     = "vllm:gpu_cache_usage_perc"
	KVCacheUsage      = "vllm:kv_cache_usage_perc"
)

// Snapshot is one scrape of cumulative counters and current gauges.
type Snapshot struct {
	Time time.Time

	FirstTokenSum   float64
	FirstTokenCount uint64
	GenerationTotal float64
	RequestsTotal   float64
	Running         float64
	Waiting         float64
	// CacheUsage is a fraction in [0, 1].
	CacheUsage float64
}

// Rates are derived from two consecutive snapshots.
type Rates struct {
	// FirstTokenLatency is the mean time to first token over the window, or
	// the lifetime mean when no request completed in the window.
	FirstTokenLatency time.Duration
	TokensPerSecond   float64
	RequestsPerSecond float64
}

// Since computes rates between prev and s. Counter resets count from zero.
func (s Snapshot) Since(prev Snapshot) Rates {
	var r Rates
	if dt := s.Time.Sub(prev.Time).Seconds(); dt > 0 {
		r.TokensPerSecond = delta(s.GenerationTotal, prev.GenerationTotal) / dt
		r.RequestsPerSecond = delta(s.RequestsTotal, prev.RequestsTotal) / dt
	}

	switch {
	case s.FirstTokenCount > prev.FirstTokenCount:
		mean := (s.FirstTokenSum - prev.FirstTokenSum) / float64(s.FirstTokenCount-prev.FirstTokenCount)
		r.FirstTokenLatency = seconds(mean)
	case s.FirstTokenCount > 0:
		r.FirstTokenLatency = seconds(s.FirstTokenSum / float64(s.FirstTokenCount))
	}
	return r
}

func delta(cur, prev float64) float64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// Parse decodes the text exposition format into a Snapshot. Families the
// engine does not export are left at zero.
func Parse(r io.Reader, at time.Time) (Snapshot, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse metrics: %w", err)
	}

	s := Snapshot{Time: at}
	if mf := families[FirstTokenLatency]; mf != nil {
		for _, m := range mf.GetMetric() {
			s.FirstTokenSum += m.GetHistogram().GetSampleSum()
			s.FirstTokenCount += m.GetHistogram().GetSampleCount()
		}
	}
	s.GenerationTotal = sum(families[GenerationTokens])
	s.RequestsTotal = sum(families[RequestSuccess])
	s.Running = sum(families[RequestsRunning])
	s.Waiting = sum(families[RequestsWaiting])
	if mf := families[KVCacheUsage]; mf != nil {
		s.CacheUsage = sum(mf)
	} else {
		s.CacheUsage = sum(families[GPUCacheUsage])
	}
	return s, nil
}

// sum adds every series of a counter or gauge family.
func sum(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			total += m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			total += m.GetGauge().GetValue()
		default:
			total += m.GetUntyped().GetValue()
		}
	}
	return total
}

// Scraper fetches the metrics endpoint.
type Scraper struct {
	URL  string
	HTTP *http.Client
	Now  func() time.Time
}

// NewScraper creates a scraper for the engine listening on port.
func NewScraper(port int) *Scraper {
	return &Scraper{
		URL:  fmt.Sprintf("http://127.0.0.1:%d/metrics", port),
		HTTP: &http.Client{Timeout: 5 * time.Second},
		Now:  time.Now,
	}
}

// Scrape fetches and parses one snapshot.
func (s *Scraper) Scrape(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Snapshot{}, err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to scrape %s: %w", s.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Snapshot{}, fmt.Errorf("scrape %s returned %d: %s", s.URL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return Parse(resp.Body, s.Now())
}
