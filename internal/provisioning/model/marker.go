package model

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// MarkerName is the completion marker written last into a committed model
// directory. A directory without it is never treated as complete.
const MarkerName = ".dsdeploy-complete"

// Marker records what a complete model directory holds.
type Marker struct {
	Repo        string    `json:"repo"`
	Revision    string    `json:"revision"`
	Files       int       `json:"files"`
	Bytes       int64     `json:"bytes"`
	CompletedAt time.Time `json:"completed_at"`
}

// Matches reports whether the marker describes repo at revision.
func (m *Marker) Matches(repo, revision string) bool {
	return m != nil && m.Repo == repo && m.Revision == revision
}

// ReadMarker loads the marker of dir. A missing marker returns nil, nil.
func ReadMarker(dir string) (*Marker, error) {
	// #nosec G304 - path is the managed model directory
	data, err := os.ReadFile(filepath.Join(dir, MarkerName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func writeMarker(dir string, m Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, MarkerName), data, 0o644)
}
