package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/haasonsaas/graphloom/pkg/models"
)

// ManifestFilename is the cached manifest persisted alongside a caller's
// endpoint or connector definition.
const ManifestFilename = "manifest.json"

// ErrManifestNotFound indicates no cached manifest exists in the given
// directory.
var ErrManifestNotFound = errors.New("manifest not found")

// WriteManifest persists the manifest into dir.
func WriteManifest(dir string, manifest *models.TransformManifest) error {
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFilename), payload, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a cached manifest from dir.
func LoadManifest(dir string) (*models.TransformManifest, error) {
	payload, err := os.ReadFile(filepath.Join(dir, ManifestFilename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest models.TransformManifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &manifest, nil
}

// SchemaDrifted reports whether a cached manifest was produced under a
// different output model than currentHash.
func SchemaDrifted(cached *models.TransformManifest, currentHash string) bool {
	if cached == nil || cached.SchemaHash == "" || currentHash == "" {
		return false
	}
	return cached.SchemaHash != currentHash
}
