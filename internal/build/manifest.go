package build

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/conneroisu/swimport/internal/errors"
)

// ManifestFile is the name of the manifest written to the output directory.
const ManifestFile = "manifest.json"

// Manifest maps sources to the public URLs of their build outputs.
type Manifest struct {
	// Entries maps each application entry point to its bundle URL.
	Entries map[string]string `json:"entries"`
	// Workers maps each worker entry file to its emitted asset URL.
	Workers map[string]string `json:"workers"`
}

// WriteManifest writes m as indented JSON to dir/manifest.json.
func WriteManifest(dir string, m *Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", errors.NewBuildError(errors.ErrCodeWriteFailed, "encode manifest", err)
	}

	target := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(target, append(data, '\n'), 0o644); err != nil {
		return "", errors.NewIOError(errors.ErrCodeWriteFailed, "write manifest", err).WithLocation(target, 0, 0)
	}
	return target, nil
}

// ReadManifest loads dir/manifest.json.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
