package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ddipass/deepseek-bedrock/internal/platform/neuron"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/params"
)

// newLister creates the device inventory lister.
var newLister = func() params.InventoryLister {
	return &neuron.Lister{Runner: newRunner()}
}

// Detect lists the accelerators, derives recommended tuning and records it.
// With jsonOutput only the recommendation is printed, as one JSON object on
// stdout; this is the form the deployment consumes.
func Detect(ctx context.Context, envFile string, jsonOutput bool) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	det, err := params.Detect(ctx, newLister(), cfg)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(stdout).Encode(det.Recommended)
	}

	devices := table.NewWriter()
	devices.SetOutputMirror(stdout)
	devices.AppendHeader(table.Row{"Device", "BDF", "Cores", "Memory", "Processes"})
	for _, d := range det.Inventory.Devices {
		devices.AppendRow(table.Row{d.Index, d.BDF, d.Cores, fmt.Sprintf("%.1f GiB", float64(d.MemoryBytes)/(1<<30)), len(d.Processes)})
	}
	devices.AppendFooter(table.Row{"Total", det.Inventory.Count(), det.Inventory.Cores(), fmt.Sprintf("%.1f GiB", det.Inventory.MemoryGB()), det.Inventory.Busy()})
	devices.Render()

	rec := det.Recommended
	tuning := table.NewWriter()
	tuning.SetOutputMirror(stdout)
	tuning.AppendHeader(table.Row{"Parameter", "Recommended"})
	tuning.AppendRows([]table.Row{
		{"tensor_parallel_size", rec.TensorParallelSize},
		{"max_model_len", rec.MaxModelLen},
		{"max_num_seqs", rec.MaxNumSeqs},
		{"block_size", rec.BlockSize},
		{"temperature", strconv.FormatFloat(rec.Temperature, 'f', -1, 64)},
		{"top_p", strconv.FormatFloat(rec.TopP, 'f', -1, 64)},
	})
	tuning.Render()

	fmt.Fprintf(stdout, "Recorded in %s\n", cfg.RecommendedParamsPath())
	return nil
}
