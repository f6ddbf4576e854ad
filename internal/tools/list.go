package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/haasonsaas/graphloom/internal/agent"
)

// ListFilesTool enumerates sandbox directory entries with names, types,
// and sizes.
type ListFilesTool struct {
	resolver Resolver
}

// NewListFilesTool creates a list tool scoped to the sandbox.
func NewListFilesTool(tc Context) *ListFilesTool {
	return &ListFilesTool{resolver: Resolver{Root: tc.WorkDir}}
}

func (t *ListFilesTool) Name() string {
	return "list_files"
}

func (t *ListFilesTool) Description() string {
	return "List files in a sandbox directory with names, types, and sizes. Defaults to ./inputs."
}

func (t *ListFilesTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"directory": map[string]any{
				"type":        "string",
				"description": "Directory to list, relative to the sandbox (default: ./inputs).",
			},
		},
	})
}

type listEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

func (t *ListFilesTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Directory string `json:"directory"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	dir := strings.TrimSpace(input.Directory)
	if dir == "" {
		dir = "./inputs"
	}

	resolved, err := t.resolver.Resolve(dir)
	if err != nil {
		return toolError(err.Error()), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("list directory: %v", err)), nil
	}

	listing := make([]listEntry, 0, len(entries))
	for _, entry := range entries {
		kind := "file"
		var size int64
		if entry.IsDir() {
			kind = "directory"
		} else if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		listing = append(listing, listEntry{Name: entry.Name(), Type: kind, Size: size})
	}
	sort.Slice(listing, func(i, j int) bool { return listing[i].Name < listing[j].Name })

	payload, err := json.MarshalIndent(map[string]any{
		"directory": dir,
		"entries":   listing,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
