package environment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	tu "github.com/ddipass/deepseek-bedrock/internal/testing"
)

const twoDevices = `[{"neuron_device":0,"nc_count":2,"memory_size":34359738368},{"neuron_device":1,"nc_count":2,"memory_size":34359738368}]`

func healthyRunner() *tu.FakeRunner {
	return tu.NewFakeRunner().
		WithBinary("neuron-ls", "docker").
		On("neuron-ls --json-output", shell.Result{Stdout: twoDevices}, nil).
		On("docker info", shell.Result{Stdout: "\"27.1.1\"\n"}, nil)
}

func TestValidate_Healthy(t *testing.T) {
	t.Parallel()

	report, err := NewValidator(healthyRunner(), "neuron", 1).Validate(tu.TestContext(t))

	require.NoError(t, err)
	assert.Equal(t, DeviceReport{Kind: "neuron", Count: 2, Cores: 4, MemoryBytes: 68719476736}, report.Devices)
	assert.Equal(t, RuntimeReport{Name: "docker", Version: "27.1.1"}, report.Runtime)
	assert.Contains(t, report.Describe(), "2 neuron device(s)")
}

func TestValidate_ListingToolMissing(t *testing.T) {
	t.Parallel()
	runner := tu.NewFakeRunner().WithBinary("docker")

	_, err := NewValidator(runner, "neuron", 1).Validate(tu.TestContext(t))

	var hw *provisioning.HardwareNotFoundError
	require.ErrorAs(t, err, &hw)
	assert.Contains(t, err.Error(), "not found on PATH")
	assert.Zero(t, runner.Called("docker"), "runtime not probed after hardware failure")
}

func TestValidate_TooFewDevices(t *testing.T) {
	t.Parallel()

	_, err := NewValidator(healthyRunner(), "neuron", 4).Validate(tu.TestContext(t))

	var hw *provisioning.HardwareNotFoundError
	require.ErrorAs(t, err, &hw)
	assert.Equal(t, 2, hw.Found)
	assert.Equal(t, 4, hw.Required)
}

func TestValidate_NoDevicesListed(t *testing.T) {
	t.Parallel()
	runner := healthyRunner().On("neuron-ls --json-output", shell.Result{Stdout: "[]"}, nil)

	_, err := NewValidator(runner, "neuron", 1).Validate(tu.TestContext(t))

	var hw *provisioning.HardwareNotFoundError
	require.ErrorAs(t, err, &hw)
	assert.Equal(t, 0, hw.Found)
}

func TestValidate_MalformedListing(t *testing.T) {
	t.Parallel()
	runner := healthyRunner().On("neuron-ls --json-output", shell.Result{Stdout: "NEURON DEVICE | NC COUNT"}, nil)

	_, err := NewValidator(runner, "neuron", 1).Validate(tu.TestContext(t))

	var hw *provisioning.HardwareNotFoundError
	require.ErrorAs(t, err, &hw)
}

func TestValidate_RuntimeMissing(t *testing.T) {
	t.Parallel()
	runner := tu.NewFakeRunner().
		WithBinary("neuron-ls").
		On("neuron-ls --json-output", shell.Result{Stdout: twoDevices}, nil)

	report, err := NewValidator(runner, "neuron", 1).Validate(tu.TestContext(t))

	var rt *provisioning.RuntimeUnavailableError
	require.ErrorAs(t, err, &rt)
	assert.Equal(t, 2, report.Devices.Count)
}

func TestValidate_RuntimeDaemonDown(t *testing.T) {
	t.Parallel()
	runner := healthyRunner().Fail("docker info", 1, "Cannot connect to the Docker daemon")

	_, err := NewValidator(runner, "neuron", 1).Validate(tu.TestContext(t))

	var rt *provisioning.RuntimeUnavailableError
	require.ErrorAs(t, err, &rt)
	assert.Contains(t, err.Error(), "Cannot connect to the Docker daemon")
}

func TestValidate_RuntimeEmptyVersion(t *testing.T) {
	t.Parallel()
	runner := healthyRunner().On("docker info", shell.Result{Stdout: "\"\""}, nil)

	_, err := NewValidator(runner, "neuron", 1).Validate(tu.TestContext(t))

	var rt *provisioning.RuntimeUnavailableError
	require.ErrorAs(t, err, &rt)
	assert.True(t, errors.Unwrap(err) != nil)
}

func TestPhase_Provision(t *testing.T) {
	t.Parallel()
	cfg := tu.NewConfigBuilder(t.TempDir()).Build()
	ctx := tu.ProvisioningContext(t, cfg)
	phase := NewPhase(NewValidator(healthyRunner(), "neuron", 1))

	require.NoError(t, phase.Provision(ctx))
	assert.Equal(t, "environment", phase.Name())
	assert.Equal(t, 2, phase.Report.Devices.Count)
}
