// Package neuron reads the AWS Neuron device inventory reported by neuron-ls.
package neuron

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
)

// ListCommand is the device listing tool.
const ListCommand = "neuron-ls"

// Device is one accelerator as reported by neuron-ls --json-output.
type Device struct {
	Index       int    `json:"neuron_device"`
	BDF         string `json:"bdf"`
	ConnectedTo []int  `json:"connected_to"`
	Cores       int    `json:"nc_count"`
	MemoryBytes int64  `json:"memory_size"`
	// MemoryUsed and Utilization are only reported by driver releases with
	// runtime counters; zero otherwise.
	MemoryUsed  int64   `json:"memory_used"`
	Utilization float64 `json:"nc_utilization"`
	Processes   []struct {
		PID     int    `json:"pid"`
		Command string `json:"command"`
	} `json:"neuron_processes"`
}

// Inventory is the set of devices on the host.
type Inventory struct {
	Devices []Device
}

// Count returns the number of devices.
func (i Inventory) Count() int { return len(i.Devices) }

// Cores returns the total NeuronCore count.
func (i Inventory) Cores() int {
	total := 0
	for _, d := range i.Devices {
		total += d.Cores
	}
	return total
}

// MemoryBytes returns the total device memory.
func (i Inventory) MemoryBytes() int64 {
	var total int64
	for _, d := range i.Devices {
		total += d.MemoryBytes
	}
	return total
}

// MemoryGB returns total device memory in GiB.
func (i Inventory) MemoryGB() float64 {
	return float64(i.MemoryBytes()) / (1 << 30)
}

// MemoryUsage returns used over total device memory. ok is false when the
// driver does not report usage.
func (i Inventory) MemoryUsage() (fraction float64, ok bool) {
	var used int64
	for _, d := range i.Devices {
		used += d.MemoryUsed
	}
	total := i.MemoryBytes()
	if total == 0 || used == 0 {
		return 0, false
	}
	return float64(used) / float64(total), true
}

// Busy returns the number of devices with at least one attached process.
func (i Inventory) Busy() int {
	n := 0
	for _, d := range i.Devices {
		if len(d.Processes) > 0 {
			n++
		}
	}
	return n
}

// Parse decodes neuron-ls JSON output.
func Parse(data []byte) (Inventory, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return Inventory{}, nil
	}
	var devices []Device
	if err := json.Unmarshal([]byte(trimmed), &devices); err != nil {
		return Inventory{}, fmt.Errorf("failed to parse %s output: %w", ListCommand, err)
	}
	return Inventory{Devices: devices}, nil
}

// Lister queries the device inventory.
type Lister struct {
	Runner shell.Runner
}

// List runs neuron-ls and parses its JSON output.
func (l *Lister) List(ctx context.Context) (Inventory, error) {
	if _, err := l.Runner.LookPath(ListCommand); err != nil {
		return Inventory{}, fmt.Errorf("%s not found on PATH: %w", ListCommand, err)
	}
	res, err := l.Runner.Run(ctx, ListCommand, "--json-output")
	if err != nil {
		return Inventory{}, err
	}
	return Parse([]byte(res.Stdout))
}
