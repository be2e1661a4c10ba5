package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddipass/deepseek-bedrock/cmd/dsdeploy/handlers"
)

func stubDeploy(t *testing.T) *[]handlers.DeployOptions {
	t.Helper()
	orig := deploy
	t.Cleanup(func() { deploy = orig })

	var calls []handlers.DeployOptions
	deploy = func(_ context.Context, opts handlers.DeployOptions) error {
		calls = append(calls, opts)
		return nil
	}
	return &calls
}

func execute(args ...string) (stdout, stderr string, err error) {
	cmd := Root()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "dsdeploy", cmd.Use)
	assert.Equal(t, "Deploy a large language model on an AWS Neuron host", cmd.Short)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	expectedSubcommands := []string{"detect", "monitor", "check", "version", "completion"}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range expectedSubcommands {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
	assert.Len(t, cmd.Commands(), len(expectedSubcommands))
}

func TestRoot_PassesFlagsToDeploy(t *testing.T) {
	calls := stubDeploy(t)

	_, _, err := execute("--use-detected", "--setup-only", "--env-file", "/etc/dsdeploy.env")

	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, handlers.DeployOptions{EnvFile: "/etc/dsdeploy.env", UseDetected: true, SetupOnly: true}, (*calls)[0])
}

func TestRoot_DefaultsToFullDeployment(t *testing.T) {
	calls := stubDeploy(t)

	_, _, err := execute()

	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, handlers.DeployOptions{}, (*calls)[0])
}

func TestRoot_UnknownFlagPrintsUsage(t *testing.T) {
	calls := stubDeploy(t)

	_, stderr, err := execute("--bogus")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag: --bogus")
	assert.Contains(t, stderr, "Usage:")
	assert.Empty(t, *calls, "nothing may be provisioned on a bad command line")
}

func TestRoot_RejectsArguments(t *testing.T) {
	calls := stubDeploy(t)

	_, _, err := execute("now")

	require.Error(t, err)
	assert.Empty(t, *calls)
}

func TestRoot_Help(t *testing.T) {
	calls := stubDeploy(t)

	stdout, _, err := execute("--help")

	require.NoError(t, err)
	assert.Contains(t, stdout, "--use-detected")
	assert.Contains(t, stdout, "--setup-only")
	assert.Empty(t, *calls)
}

func TestDetect_Flags(t *testing.T) {
	env := ""
	cmd := Detect(&env)

	assert.Equal(t, "detect", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("json"))
}

func TestMonitor_Flags(t *testing.T) {
	env := ""
	cmd := Monitor(&env)

	assert.Equal(t, "monitor", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("plain"))
}

func TestCompletion_Bash(t *testing.T) {
	stdout, _, err := execute("completion", "bash")

	require.NoError(t, err)
	assert.Contains(t, stdout, "dsdeploy")
}
