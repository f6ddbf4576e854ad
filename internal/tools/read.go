package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/haasonsaas/graphloom/internal/agent"
)

// defaultMaxLines bounds read_file output when the agent does not ask for
// a limit.
const defaultMaxLines = 100

// ReadFileTool reads a bounded number of lines from a sandbox file.
type ReadFileTool struct {
	resolver Resolver
}

// NewReadFileTool creates a read tool scoped to the sandbox.
func NewReadFileTool(tc Context) *ReadFileTool {
	return &ReadFileTool{resolver: Resolver{Root: tc.WorkDir}}
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read a sandbox file, returning at most max_lines lines split between the head and tail of the file, with a truncation indicator when cut."
}

func (t *ReadFileTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path to the file, relative to the sandbox.",
			},
			"max_lines": map[string]any{
				"type":        "integer",
				"description": "Maximum lines to return (default: 100).",
				"minimum":     1,
			},
		},
		"required": []string{"file_path"},
	})
}

func (t *ReadFileTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		FilePath string `json:"file_path"`
		MaxLines int    `json:"max_lines"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.FilePath) == "" {
		return toolError("file_path is required"), nil
	}
	maxLines := input.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}

	resolved, err := t.resolver.Resolve(input.FilePath)
	if err != nil {
		return toolError(err.Error()), nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("open file: %v", err)), nil
	}
	defer file.Close()

	// The budget is split between the start and the end of the file so
	// large inputs show both their header and their trailing rows.
	headMax := maxLines - maxLines/2
	tailMax := maxLines / 2

	var head []string
	ring := make([]string, tailMax)
	overflow := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
	for scanner.Scan() {
		if len(head) < headMax {
			head = append(head, scanner.Text())
			continue
		}
		if tailMax > 0 {
			ring[overflow%tailMax] = scanner.Text()
		}
		overflow++
	}
	if err := scanner.Err(); err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}

	var tail []string
	if tailMax > 0 {
		n := min(overflow, tailMax)
		tail = make([]string, 0, n)
		for i := overflow - n; i < overflow; i++ {
			tail = append(tail, ring[i%tailMax])
		}
	}
	omitted := overflow - len(tail)
	truncated := omitted > 0

	content := strings.Join(head, "\n")
	if truncated {
		content += fmt.Sprintf("\n... (%d lines omitted) ...", omitted)
	}
	if len(tail) > 0 {
		content += "\n" + strings.Join(tail, "\n")
	}

	payload, err := json.MarshalIndent(map[string]any{
		"file_path": input.FilePath,
		"content":   content,
		"lines":     len(head) + len(tail),
		"truncated": truncated,
	}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload)}, nil
}
