package dependencies

import (
	"path"
	"strings"
)

// Kind selects how a package is detected and installed.
type Kind string

const (
	// KindApt is a Debian package from the configured repositories.
	KindApt Kind = "apt"
	// KindDeb is a standalone .deb fetched from a URL.
	KindDeb Kind = "deb"
	// KindPip is a Python package installed with pip.
	KindPip Kind = "pip"
)

// Package is a single requirement.
type Package struct {
	Name string
	Kind Kind
	// URL is the .deb location for KindDeb.
	URL string
	// Binary is the executable a KindDeb package provides.
	Binary string
	// Import is the Python module name for KindPip.
	Import string
	// Verify is the command proving the package is usable. Empty means the
	// kind's default check.
	Verify []string
}

func (p Package) String() string {
	return string(p.Kind) + ":" + p.Name
}

// knownVerifiers maps apt packages to a command that exercises them.
var knownVerifiers = map[string][]string{
	"python3-pip": {"python3", "-m", "pip", "--version"},
	"python3":     {"python3", "--version"},
	"git":         {"git", "--version"},
	"curl":        {"curl", "--version"},
	"docker.io":   {"docker", "--version"},
}

// AptPackages builds apt requirements from package names.
func AptPackages(names []string) []Package {
	pkgs := make([]Package, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		pkgs = append(pkgs, Package{Name: n, Kind: KindApt, Verify: knownVerifiers[n]})
	}
	return pkgs
}

// PipPackages builds pip requirements. Entries may be "dist" or
// "dist:module" when the import name differs from the distribution name.
func PipPackages(specs []string) []Package {
	pkgs := make([]Package, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		name, module, found := strings.Cut(s, ":")
		if !found {
			module = defaultImportName(name)
		}
		pkgs = append(pkgs, Package{Name: name, Kind: KindPip, Import: module})
	}
	return pkgs
}

// DebPackage builds a requirement for a binary shipped as a .deb.
func DebPackage(binary, url string) Package {
	name := strings.TrimSuffix(path.Base(url), ".deb")
	if name == "" || name == "." || name == "/" {
		name = binary
	}
	return Package{Name: name, Kind: KindDeb, URL: url, Binary: binary, Verify: []string{binary, "--version"}}
}

// defaultImportName strips version pins and extras and maps dashes to
// underscores, which matches most distributions.
func defaultImportName(dist string) string {
	name := dist
	if i := strings.IndexAny(name, "<>=!~[; "); i >= 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(strings.ToLower(name), "-", "_")
}
