package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SidecarName is the sandbox-local file that points graph tools at the
// current workflow's storage.
const SidecarName = ".graph_config.json"

// Config names the workflow and backing store for sandbox-local graph
// access.
type Config struct {
	WorkflowID string `json:"workflow_id"`
	DBPath     string `json:"db_path"`
}

// WriteConfig writes the sidecar into dir.
func WriteConfig(dir string, cfg Config) error {
	if cfg.WorkflowID == "" {
		return errors.New("graph: workflow id is required")
	}
	if cfg.DBPath == "" {
		return errors.New("graph: database path is required")
	}
	payload, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode graph config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SidecarName), payload, 0o644); err != nil {
		return fmt.Errorf("write graph config: %w", err)
	}
	return nil
}

// ReadConfig reads the sidecar from dir.
func ReadConfig(dir string) (Config, error) {
	payload, err := os.ReadFile(filepath.Join(dir, SidecarName))
	if err != nil {
		return Config{}, fmt.Errorf("read graph config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode graph config: %w", err)
	}
	if cfg.WorkflowID == "" || cfg.DBPath == "" {
		return Config{}, errors.New("graph: config missing workflow_id or db_path")
	}
	return cfg, nil
}

// OpenFromSidecar opens the store named by dir's sidecar file.
func OpenFromSidecar(dir string) (*SQLiteStore, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		return nil, err
	}
	return Open(cfg.DBPath, cfg.WorkflowID)
}
