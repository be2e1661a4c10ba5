// Package environment validates the host before any resource is provisioned.
package environment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ddipass/deepseek-bedrock/internal/platform/neuron"
	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
)

const phaseName = "environment"

// RuntimeBinary is the container runtime CLI.
const RuntimeBinary = "docker"

// DeviceReport describes the accelerators found on the host.
type DeviceReport struct {
	Kind        string
	Count       int
	Cores       int
	MemoryBytes int64
}

// RuntimeReport describes the container runtime.
type RuntimeReport struct {
	Name    string
	Version string
}

// Report is the typed result of a successful validation.
type Report struct {
	Devices DeviceReport
	Runtime RuntimeReport
}

// Validator checks accelerator hardware and the container runtime.
type Validator struct {
	Runner     shell.Runner
	DeviceKind string
	MinDevices int
}

// NewValidator creates a validator using runner for all external tools.
func NewValidator(runner shell.Runner, kind string, minDevices int) *Validator {
	return &Validator{Runner: runner, DeviceKind: kind, MinDevices: minDevices}
}

// Validate runs both checks. Neither has side effects.
func (v *Validator) Validate(ctx context.Context) (Report, error) {
	devices, err := v.CheckDevices(ctx)
	if err != nil {
		return Report{}, err
	}
	runtime, err := v.CheckRuntime(ctx)
	if err != nil {
		return Report{Devices: devices}, err
	}
	return Report{Devices: devices, Runtime: runtime}, nil
}

// CheckDevices lists accelerators and enforces the minimum count.
func (v *Validator) CheckDevices(ctx context.Context) (DeviceReport, error) {
	lister := &neuron.Lister{Runner: v.Runner}
	inv, err := lister.List(ctx)
	if err != nil {
		return DeviceReport{}, &provisioning.HardwareNotFoundError{Kind: v.DeviceKind, Required: v.MinDevices, Err: err}
	}

	report := DeviceReport{
		Kind:        v.DeviceKind,
		Count:       inv.Count(),
		Cores:       inv.Cores(),
		MemoryBytes: inv.MemoryBytes(),
	}
	if report.Count < v.MinDevices {
		return report, &provisioning.HardwareNotFoundError{Kind: v.DeviceKind, Found: report.Count, Required: v.MinDevices}
	}
	return report, nil
}

// CheckRuntime verifies the container runtime is installed and its daemon answers.
func (v *Validator) CheckRuntime(ctx context.Context) (RuntimeReport, error) {
	if _, err := v.Runner.LookPath(RuntimeBinary); err != nil {
		return RuntimeReport{}, &provisioning.RuntimeUnavailableError{Runtime: RuntimeBinary, Err: err}
	}

	res, err := v.Runner.Run(ctx, RuntimeBinary, "info", "--format", "{{json .ServerVersion}}")
	if err != nil {
		return RuntimeReport{}, &provisioning.RuntimeUnavailableError{Runtime: RuntimeBinary, Err: err}
	}

	version := strings.Trim(strings.TrimSpace(res.Stdout), `"`)
	if version == "" {
		return RuntimeReport{}, &provisioning.RuntimeUnavailableError{
			Runtime: RuntimeBinary,
			Err:     errors.New("daemon reported no server version"),
		}
	}
	return RuntimeReport{Name: RuntimeBinary, Version: version}, nil
}

// Phase adapts the validator to the provisioning pipeline.
type Phase struct {
	Validator *Validator
	// Report holds the last successful validation.
	Report Report
}

// NewPhase creates the environment phase.
func NewPhase(v *Validator) *Phase {
	return &Phase{Validator: v}
}

// Name implements provisioning.Phase.
func (p *Phase) Name() string { return phaseName }

// Provision implements provisioning.Phase.
func (p *Phase) Provision(ctx *provisioning.Context) error {
	report, err := p.Validator.Validate(ctx)
	if err != nil {
		return err
	}
	p.Report = report
	ctx.Observer.Printf("[%s] %d %s device(s), %d cores, %.0f GiB device memory; %s %s",
		phaseName, report.Devices.Count, report.Devices.Kind, report.Devices.Cores,
		float64(report.Devices.MemoryBytes)/(1<<30), report.Runtime.Name, report.Runtime.Version)
	return nil
}

// Describe renders the report for humans.
func (r Report) Describe() string {
	return fmt.Sprintf("%d %s device(s) (%d cores), %s %s",
		r.Devices.Count, r.Devices.Kind, r.Devices.Cores, r.Runtime.Name, r.Runtime.Version)
}
