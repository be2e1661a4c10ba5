// Package prerequisites reports whether the host has the tools and
// resources a deployment needs.
package prerequisites

import (
	"context"
	"fmt"
	"strings"

	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
)

// Tool represents a host tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory before deployment starts.
	// Tools the dependency phase installs are not required.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// DefaultTools returns the tools a deployment cannot start without.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "neuron-ls",
			Required:    true,
			Description: "Lists Neuron devices; ships with the Neuron driver",
			InstallURL:  "https://awsdocs-neuron.readthedocs-hosted.com/en/latest/general/setup/",
		},
		{
			Name:        "docker",
			Required:    true,
			Description: "Runs the Prometheus and Grafana stack",
			InstallURL:  "https://docs.docker.com/engine/install/",
		},
		{
			Name:        "python3",
			Required:    true,
			Description: "Runs the serving engine",
			InstallURL:  "https://www.python.org/downloads/",
		},
	}
}

// OptionalTools returns tools the dependency phase installs when missing.
func OptionalTools() []Tool {
	return []Tool{
		{
			Name:        "mount-s3",
			Required:    false,
			Description: "Mounts the model bucket; installed on first deploy",
			InstallURL:  "https://github.com/awslabs/mountpoint-s3",
		},
		{
			Name:        "git",
			Required:    false,
			Description: "Installed with the system packages",
			InstallURL:  "https://git-scm.com/downloads",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check verifies that the specified tools are available.
func Check(ctx context.Context, runner shell.Runner, tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := runner.LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
			result.Version = toolVersion(ctx, runner, tool.Name)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// CheckAll checks the default and optional tools.
func CheckAll(ctx context.Context, runner shell.Runner) *CheckResults {
	return Check(ctx, runner, append(DefaultTools(), OptionalTools()...))
}

// toolVersion returns the first line of "<name> --version", or "" when the
// tool does not answer.
func toolVersion(ctx context.Context, runner shell.Runner, name string) string {
	res, err := runner.Run(ctx, name, "--version")
	if err != nil {
		return ""
	}
	out := res.Stdout
	if strings.TrimSpace(out) == "" {
		out = res.Stderr
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(line)
}
