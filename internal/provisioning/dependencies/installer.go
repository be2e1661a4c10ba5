// Package dependencies idempotently ensures system and Python packages are
// installed and usable.
package dependencies

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
)

const phaseName = "dependencies"

// Result reports what Ensure did for one package.
type Result struct {
	Package Package
	Outcome provisioning.Outcome
}

// Installer checks and installs packages.
type Installer struct {
	// Runner performs read-only checks and pip installs.
	Runner shell.Runner
	// Privileged performs system package installs.
	Privileged shell.Runner
	// CacheDir receives downloaded .deb files.
	CacheDir string
	// HTTPClient fetches .deb files. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	aptUpdated bool
}

// NewInstaller creates an installer; system installs go through sudo unless root.
func NewInstaller(runner shell.Runner, cacheDir string) *Installer {
	return &Installer{
		Runner:     runner,
		Privileged: shell.NewPrivileged(runner),
		CacheDir:   cacheDir,
	}
}

// Ensure installs every absent package, then verifies all of them are
// usable, including those that were already present. Nothing is rolled
// back on failure.
func (i *Installer) Ensure(ctx context.Context, pkgs []Package) ([]Result, error) {
	results := make([]Result, 0, len(pkgs))

	for _, pkg := range pkgs {
		present, err := i.IsInstalled(ctx, pkg)
		if err != nil {
			return results, &provisioning.DependencyVerificationError{Package: pkg.Name, Err: err}
		}
		if present {
			results = append(results, Result{Package: pkg, Outcome: provisioning.AlreadyPresent})
			continue
		}

		if err := i.install(ctx, pkg); err != nil {
			return results, &provisioning.DependencyVerificationError{Package: pkg.Name, Err: fmt.Errorf("install failed: %w", err)}
		}
		results = append(results, Result{Package: pkg, Outcome: provisioning.NewlyCreated})
	}

	for _, r := range results {
		if err := i.Verify(ctx, r.Package); err != nil {
			return results, &provisioning.DependencyVerificationError{Package: r.Package.Name, Err: err}
		}
	}
	return results, nil
}

// IsInstalled reports whether pkg is already present. A non-zero exit from
// the probe means "absent", not an error.
func (i *Installer) IsInstalled(ctx context.Context, pkg Package) (bool, error) {
	switch pkg.Kind {
	case KindApt:
		res, err := i.Runner.Run(ctx, "dpkg-query", "-W", "-f=${Status}", pkg.Name)
		if err != nil {
			return false, probeError(err)
		}
		return strings.Contains(res.Stdout, "install ok installed"), nil
	case KindDeb:
		_, err := i.Runner.LookPath(pkg.Binary)
		return err == nil, nil
	case KindPip:
		_, err := i.Runner.Run(ctx, "python3", "-m", "pip", "show", "-q", pkg.Name)
		return err == nil, probeError(err)
	default:
		return false, fmt.Errorf("unknown package kind %q", pkg.Kind)
	}
}

// Verify proves pkg is usable rather than merely listed.
func (i *Installer) Verify(ctx context.Context, pkg Package) error {
	if len(pkg.Verify) > 0 {
		if _, err := i.Runner.Run(ctx, pkg.Verify[0], pkg.Verify[1:]...); err != nil {
			return fmt.Errorf("%s is installed but not usable: %w", pkg.Name, err)
		}
		return nil
	}

	switch pkg.Kind {
	case KindPip:
		if _, err := i.Runner.Run(ctx, "python3", "-c", "import "+pkg.Import); err != nil {
			return fmt.Errorf("python module %s cannot be imported: %w", pkg.Import, err)
		}
		return nil
	default:
		present, err := i.IsInstalled(ctx, pkg)
		if err != nil {
			return err
		}
		if !present {
			return fmt.Errorf("%s still not installed after install", pkg.Name)
		}
		return nil
	}
}

func (i *Installer) install(ctx context.Context, pkg Package) error {
	switch pkg.Kind {
	case KindApt:
		if err := i.aptUpdate(ctx); err != nil {
			return err
		}
		_, err := i.Privileged.Run(ctx, "apt-get", "install", "-y", "-q", pkg.Name)
		return err
	case KindDeb:
		file, err := i.fetch(ctx, pkg.URL)
		if err != nil {
			return err
		}
		if err := i.aptUpdate(ctx); err != nil {
			return err
		}
		_, err = i.Privileged.Run(ctx, "apt-get", "install", "-y", "-q", file)
		return err
	case KindPip:
		_, err := i.Runner.Run(ctx, "python3", "-m", "pip", "install", "-q", pkg.Name)
		return err
	default:
		return fmt.Errorf("unknown package kind %q", pkg.Kind)
	}
}

func (i *Installer) aptUpdate(ctx context.Context) error {
	if i.aptUpdated {
		return nil
	}
	if _, err := i.Privileged.Run(ctx, "apt-get", "update", "-q"); err != nil {
		return fmt.Errorf("apt-get update: %w", err)
	}
	i.aptUpdated = true
	return nil
}

// fetch downloads url into the cache directory and returns the absolute path.
func (i *Installer) fetch(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(i.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	dest, err := filepath.Abs(filepath.Join(i.CacheDir, path.Base(url)))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid package URL %s: %w", url, err)
	}
	client := i.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode)
	}

	tmp := dest + ".part"
	// #nosec G304 - destination is inside the configured cache directory
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return dest, os.Rename(tmp, dest)
}

// probeError keeps real failures (binary missing, cancelled) and treats a
// non-zero exit as a negative answer.
func probeError(err error) error {
	if err == nil {
		return nil
	}
	var cmdErr *shell.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return nil
	}
	return err
}

// Phase ensures the configured system and Python packages.
type Phase struct {
	Installer *Installer
	Packages  []Package
	Results   []Result
}

// NewPhase creates the dependencies phase.
func NewPhase(installer *Installer, pkgs []Package) *Phase {
	return &Phase{Installer: installer, Packages: pkgs}
}

// Name implements provisioning.Phase.
func (p *Phase) Name() string { return phaseName }

// Provision implements provisioning.Phase.
func (p *Phase) Provision(ctx *provisioning.Context) error {
	results, err := p.Installer.Ensure(ctx, p.Packages)
	p.Results = results
	for _, r := range results {
		provisioning.LogOutcome(ctx.Observer, phaseName, "package", r.Package.String(), r.Outcome)
	}
	return err
}
