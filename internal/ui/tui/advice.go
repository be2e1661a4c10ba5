package tui

import (
	"fmt"
	"time"

	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
)

// Tuning thresholds.
const (
	MemoryHigh        = 0.9
	MemoryLow         = 0.5
	FirstTokenSlow    = time.Second
	ThroughputLowToks = 10.0
)

// Advice is a group of tuning suggestions triggered by one observation.
type Advice struct {
	Reason string
	Items  []string
}

// Advise derives tuning suggestions from a sample and the parameters the
// engine runs with. Signals that were not observed produce no advice.
func Advise(s Sample, p provisioning.ParameterSet) []Advice {
	var out []Advice

	if usage, ok := s.Devices.MemoryUsage(); ok {
		switch {
		case usage > MemoryHigh:
			out = append(out, Advice{
				Reason: fmt.Sprintf("device memory %.0f%% used", usage*100),
				Items: []string{
					fmt.Sprintf("lower max_model_len (now %d)", p.MaxModelLen),
					fmt.Sprintf("lower max_num_seqs (now %d)", p.MaxNumSeqs),
					fmt.Sprintf("lower block_size (now %d)", p.BlockSize),
				},
			})
		case usage < MemoryLow:
			out = append(out, Advice{
				Reason: fmt.Sprintf("device memory %.0f%% used", usage*100),
				Items: []string{
					fmt.Sprintf("max_model_len can grow (now %d)", p.MaxModelLen),
					fmt.Sprintf("max_num_seqs can grow (now %d)", p.MaxNumSeqs),
					fmt.Sprintf("block_size can grow (now %d)", p.BlockSize),
				},
			})
		}
	}

	if !s.HasRates {
		return out
	}

	if s.Rates.FirstTokenLatency > FirstTokenSlow {
		out = append(out, Advice{
			Reason: fmt.Sprintf("first token latency %s", s.Rates.FirstTokenLatency.Round(time.Millisecond)),
			Items: []string{
				fmt.Sprintf("raise tensor_parallel_size (now %d)", p.TensorParallelSize),
				fmt.Sprintf("lower max_num_seqs (now %d)", p.MaxNumSeqs),
			},
		})
	}

	if s.Rates.TokensPerSecond < ThroughputLowToks {
		out = append(out, Advice{
			Reason: fmt.Sprintf("throughput %.1f tokens/s", s.Rates.TokensPerSecond),
			Items: []string{
				fmt.Sprintf("raise max_num_seqs (now %d)", p.MaxNumSeqs),
				fmt.Sprintf("raise block_size (now %d)", p.BlockSize),
				fmt.Sprintf("check tensor_parallel_size (now %d)", p.TensorParallelSize),
			},
		})
	}
	return out
}
