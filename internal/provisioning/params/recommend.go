// Package params resolves the tuning parameters the serving process is
// launched with.
//
// Defaults come from configuration. When detection is requested, a detector
// command is run and every positive value it reports replaces the matching
// default. Detection never fails the deployment: any problem is logged as a
// warning and the defaults are used.
package params

import (
	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/platform/neuron"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
)

// ParameterSet is the resolved tuning.
type ParameterSet = provisioning.ParameterSet

// Defaults returns the configured tuning.
func Defaults(cfg *config.Config) ParameterSet {
	return ParameterSet{
		TensorParallelSize: cfg.TensorParallelSize,
		MaxModelLen:        cfg.MaxModelLen,
		MaxNumSeqs:         cfg.MaxNumSeqs,
		BlockSize:          cfg.BlockSize,
	}
}

// Overlay replaces each field of base with the matching positive value of
// rec. Detected is set when at least one field was replaced.
func Overlay(base ParameterSet, rec config.RecommendedParams) ParameterSet {
	out := base
	apply := func(dst *int, v int) {
		if v > 0 {
			*dst = v
			out.Detected = true
		}
	}
	apply(&out.TensorParallelSize, rec.TensorParallelSize)
	apply(&out.MaxModelLen, rec.MaxModelLen)
	apply(&out.MaxNumSeqs, rec.MaxNumSeqs)
	apply(&out.BlockSize, rec.BlockSize)
	return out
}

// memory tiers in GiB of total device memory.
var tiers = []struct {
	minGB       float64
	blockSize   int
	maxNumSeqs  int
	maxModelLen int
}{
	{384, 32, 16, 8192}, // inf2.48xlarge: 12 x 32 GiB
	{256, 24, 12, 6144},
	{128, 16, 8, 4096},
	{0, 8, 4, 2048},
}

// Recommend derives tuning from the device inventory: tensor parallelism
// from the device count and the KV cache shape from total device memory.
// Sampling values are carried over from cfg.
func Recommend(inv neuron.Inventory, cfg *config.Config) config.RecommendedParams {
	rec := config.RecommendedParams{
		TensorParallelSize: 2,
		Temperature:        cfg.Temperature,
		TopP:               cfg.TopP,
	}
	switch n := inv.Count(); {
	case n >= 8:
		rec.TensorParallelSize = 8
	case n >= 4:
		rec.TensorParallelSize = 4
	}

	gb := inv.MemoryGB()
	for _, t := range tiers {
		if gb >= t.minGB {
			rec.BlockSize = t.blockSize
			rec.MaxNumSeqs = t.maxNumSeqs
			rec.MaxModelLen = t.maxModelLen
			break
		}
	}
	return rec
}
