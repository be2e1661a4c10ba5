package prerequisites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
	tu "github.com/ddipass/deepseek-bedrock/internal/testing"
)

func TestCheck(t *testing.T) {
	t.Parallel()
	runner := tu.NewFakeRunner().
		WithBinary("docker").
		On("docker --version", shell.Result{Stdout: "Docker version 27.3.1, build ce12230\n"}, nil)

	results := Check(tu.TestContext(t), runner, []Tool{{Name: "docker", Required: true}})

	require.Len(t, results.Results, 1)
	assert.True(t, results.Results[0].Found)
	assert.Equal(t, "/usr/bin/docker", results.Results[0].Path)
	assert.Equal(t, "Docker version 27.3.1, build ce12230", results.Results[0].Version)
	assert.False(t, results.HasErrors())
	assert.NoError(t, results.Error())
}

func TestCheckMissingTool(t *testing.T) {
	t.Parallel()
	tools := []Tool{{
		Name:        "neuron-ls",
		Required:    true,
		Description: "Lists Neuron devices",
		InstallURL:  "https://example.com/neuron",
	}}

	results := Check(tu.TestContext(t), tu.NewFakeRunner(), tools)

	assert.False(t, results.Results[0].Found)
	require.Len(t, results.Missing, 1)
	assert.True(t, results.HasErrors())
	require.Error(t, results.Error())
	assert.Contains(t, results.Error().Error(), "neuron-ls (https://example.com/neuron)")
}

func TestCheckOptionalMissing(t *testing.T) {
	t.Parallel()

	results := Check(tu.TestContext(t), tu.NewFakeRunner(), []Tool{{Name: "mount-s3", Required: false}})

	assert.Len(t, results.Missing, 1)
	assert.False(t, results.HasErrors())
	assert.NoError(t, results.Error())
}

func TestCheck_VersionFromStderr(t *testing.T) {
	t.Parallel()
	runner := tu.NewFakeRunner().
		WithBinary("python3").
		On("python3 --version", shell.Result{Stderr: "Python 3.10.12\n"}, nil)

	results := Check(tu.TestContext(t), runner, []Tool{{Name: "python3"}})

	assert.Equal(t, "Python 3.10.12", results.Results[0].Version)
}

func TestCheck_VersionUnavailable(t *testing.T) {
	t.Parallel()
	runner := tu.NewFakeRunner().WithBinary("neuron-ls")

	results := Check(tu.TestContext(t), runner, []Tool{{Name: "neuron-ls", Required: true}})

	assert.True(t, results.Results[0].Found)
	assert.Empty(t, results.Results[0].Version)
}

func TestCheckAll(t *testing.T) {
	t.Parallel()
	runner := tu.NewFakeRunner().WithBinary("neuron-ls", "docker", "python3")

	results := CheckAll(tu.TestContext(t), runner)

	assert.Len(t, results.Results, len(DefaultTools())+len(OptionalTools()))
	assert.False(t, results.HasErrors(), "only optional tools missing")
	assert.Len(t, results.Missing, len(OptionalTools()))
}

func TestDefaultToolsRequired(t *testing.T) {
	t.Parallel()
	for _, tool := range DefaultTools() {
		assert.True(t, tool.Required, tool.Name)
		assert.NotEmpty(t, tool.InstallURL, tool.Name)
	}
	for _, tool := range OptionalTools() {
		assert.False(t, tool.Required, tool.Name)
	}
}
