package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/graphloom/internal/agent"
	"github.com/haasonsaas/graphloom/internal/validate"
	"github.com/haasonsaas/graphloom/pkg/models"
)

// ValidateArtifactTool runs structural validation against the run's
// output model and format and serialises the result for the agent.
type ValidateArtifactTool struct {
	resolver  Resolver
	validator *validate.Validator
	model     models.OutputModel
	format    models.OutputFormat
}

// NewValidateArtifactTool creates a validation tool bound to the run's
// output model.
func NewValidateArtifactTool(tc Context) *ValidateArtifactTool {
	return &ValidateArtifactTool{
		resolver:  Resolver{Root: tc.WorkDir},
		validator: validate.New(),
		model:     tc.OutputModel,
		format:    tc.Format,
	}
}

func (t *ValidateArtifactTool) Name() string {
	return "validate_artifact"
}

func (t *ValidateArtifactTool) Description() string {
	return "Validate an artifact file against the required output schema and format."
}

func (t *ValidateArtifactTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the artifact, relative to the sandbox.",
			},
		},
		"required": []string{"file_path"},
	})
}

func (t *ValidateArtifactTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.FilePath) == "" {
		return toolError("file_path is required"), nil
	}

	resolved, err := t.resolver.Resolve(input.FilePath)
	if err != nil {
		return toolError(err.Error()), nil
	}

	result, err := t.validator.ValidateArtifact(resolved, t.model, t.format)
	if err != nil {
		return toolError(fmt.Sprintf("validate artifact: %v", err)), nil
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
