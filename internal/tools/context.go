// Package tools implements the sandbox-confined tool set exposed to the
// coding agent: file enumeration, bounded reads, writes, artifact
// validation, script execution, and read-only graph queries.
package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/graphloom/internal/agent"
	"github.com/haasonsaas/graphloom/pkg/models"
)

// Context is the per-run sandbox descriptor shared by every tool: the
// sandbox root plus the output model and format the validator enforces.
type Context struct {
	WorkDir     string
	OutputModel models.OutputModel
	Format      models.OutputFormat
}

// Resolver resolves and validates sandbox-relative paths.
type Resolver struct {
	Root string
}

// Resolve returns an absolute, cleaned path within the sandbox root.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve sandbox root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes sandbox")
	}
	return targetAbs, nil
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Content: message, IsError: true}
	}
	return &agent.ToolResult{Content: string(payload), IsError: true}
}

func mustSchema(schema map[string]any) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// RegisterTransformTools registers the orchestrator tool set for one run.
// run_transformer is only exposed in code mode.
func RegisterTransformTools(registry *agent.Registry, tc Context, mode models.TransformMode) {
	registry.Register(NewListFilesTool(tc))
	registry.Register(NewReadFileTool(tc))
	registry.Register(NewWriteFileTool(tc))
	registry.Register(NewValidateArtifactTool(tc))
	if mode == models.ModeCode {
		registry.Register(NewRunTransformerTool(tc))
	}
}

// RegisterGraphTools registers the read-only graph query tools. The tools
// locate the backing store through the sandbox sidecar file.
func RegisterGraphTools(registry *agent.Registry, tc Context) {
	registry.Register(NewSearchNodesTool(tc))
	registry.Register(NewGetNodeTool(tc))
	registry.Register(NewGetNeighborsTool(tc))
	registry.Register(NewCountNodesTool(tc))
}
