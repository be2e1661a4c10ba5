package monitoring

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// File names inside the monitoring directory.
const (
	ComposeFile    = "docker-compose.yml"
	PrometheusFile = "prometheus.yml"
)

// Ports are the published ports of the stack and the scrape target.
type Ports struct {
	Model      int
	Prometheus int
	Grafana    int
}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image       string            `yaml:"image"`
	Ports       []string          `yaml:"ports,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	ExtraHosts  []string          `yaml:"extra_hosts,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Restart     string            `yaml:"restart,omitempty"`
}

type prometheusConfig struct {
	Global        prometheusGlobal `yaml:"global"`
	ScrapeConfigs []scrapeConfig   `yaml:"scrape_configs"`
}

type prometheusGlobal struct {
	ScrapeInterval string `yaml:"scrape_interval"`
}

type scrapeConfig struct {
	JobName       string         `yaml:"job_name"`
	MetricsPath   string         `yaml:"metrics_path,omitempty"`
	StaticConfigs []staticConfig `yaml:"static_configs"`
}

type staticConfig struct {
	Targets []string `yaml:"targets"`
}

// Compose renders the docker compose file for Prometheus and Grafana.
func Compose(p Ports) ([]byte, error) {
	return yaml.Marshal(composeFile{Services: map[string]composeService{
		"prometheus": {
			Image:      "prom/prometheus:latest",
			Ports:      []string{publish(p.Prometheus, 9090)},
			Volumes:    []string{"./" + PrometheusFile + ":/etc/prometheus/prometheus.yml:ro"},
			ExtraHosts: []string{"host.docker.internal:host-gateway"},
			Restart:    "unless-stopped",
		},
		"grafana": {
			Image: "grafana/grafana:latest",
			Ports: []string{publish(p.Grafana, 3000)},
			Environment: map[string]string{
				"GF_AUTH_ANONYMOUS_ENABLED":  "true",
				"GF_AUTH_ANONYMOUS_ORG_ROLE": "Viewer",
			},
			DependsOn: []string{"prometheus"},
			Restart:   "unless-stopped",
		},
	}})
}

// Prometheus renders a scrape configuration for the serving process.
func Prometheus(p Ports) ([]byte, error) {
	return yaml.Marshal(prometheusConfig{
		Global: prometheusGlobal{ScrapeInterval: "5s"},
		ScrapeConfigs: []scrapeConfig{{
			JobName:       "vllm",
			MetricsPath:   "/metrics",
			StaticConfigs: []staticConfig{{Targets: []string{"host.docker.internal:" + strconv.Itoa(p.Model)}}},
		}},
	})
}

// WriteFiles renders the stack into dir. Existing files are left alone so
// local edits survive re-runs. It returns the compose file path.
func WriteFiles(dir string, p Ports) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	files := []struct {
		name   string
		render func(Ports) ([]byte, error)
	}{
		{ComposeFile, Compose},
		{PrometheusFile, Prometheus},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		data, err := f.render(p)
		if err != nil {
			return "", fmt.Errorf("failed to render %s: %w", f.name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return filepath.Join(dir, ComposeFile), nil
}

func publish(host, container int) string {
	return strconv.Itoa(host) + ":" + strconv.Itoa(container)
}
