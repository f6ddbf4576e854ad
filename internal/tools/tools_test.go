package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/graphloom/internal/agent"
	"github.com/haasonsaas/graphloom/pkg/models"
)

func testContext(t *testing.T) Context {
	t.Helper()
	return Context{
		WorkDir: t.TempDir(),
		OutputModel: models.OutputModel{
			Name:   "Person",
			Schema: []byte(`{"type":"object","required":["name","age"],"properties":{"name":{"type":"string"},"age":{"type":"integer"}}}`),
		},
		Format: models.FormatJSONL,
	}
}

func decodeResult(t *testing.T, result *agent.ToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(result.Content), &out); err != nil {
		t.Fatalf("decode tool result: %v\n%s", err, result.Content)
	}
	return out
}

func TestListFilesDefaultsToInputs(t *testing.T) {
	tc := testContext(t)
	inputs := filepath.Join(tc.WorkDir, "inputs")
	if err := os.MkdirAll(filepath.Join(inputs, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(inputs, "data.csv"), []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := NewListFilesTool(tc).Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	out := decodeResult(t, result)
	entries := out["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	first := entries[0].(map[string]any)
	if first["name"] != "data.csv" || first["type"] != "file" {
		t.Fatalf("first entry = %v", first)
	}
	second := entries[1].(map[string]any)
	if second["type"] != "directory" {
		t.Fatalf("second entry = %v", second)
	}
}

func TestListFilesMissingDirectory(t *testing.T) {
	tc := testContext(t)
	result, err := NewListFilesTool(tc).Execute(context.Background(), json.RawMessage(`{"directory":"./nope"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing directory")
	}
}

func TestReadFileTruncatesHeadAndTail(t *testing.T) {
	tc := testContext(t)
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	if err := os.WriteFile(filepath.Join(tc.WorkDir, "big.txt"), []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := NewReadFileTool(tc).Execute(context.Background(), json.RawMessage(`{"file_path":"big.txt","max_lines":4}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out := decodeResult(t, result)
	if out["truncated"] != true {
		t.Fatal("expected truncated=true")
	}
	// Half the budget shows the start, half the end, with the gap marked.
	content := out["content"].(string)
	want := "line 1\nline 2\n... (6 lines omitted) ...\nline 9\nline 10"
	if content != want {
		t.Fatalf("content = %q, want %q", content, want)
	}
	if out["lines"].(float64) != 4 {
		t.Fatalf("lines = %v, want 4", out["lines"])
	}
}

func TestReadFileShortFileNotTruncated(t *testing.T) {
	tc := testContext(t)
	if err := os.WriteFile(filepath.Join(tc.WorkDir, "small.txt"), []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := NewReadFileTool(tc).Execute(context.Background(), json.RawMessage(`{"file_path":"small.txt","max_lines":4}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out := decodeResult(t, result)
	if out["truncated"] != false {
		t.Fatal("expected truncated=false")
	}
	if out["content"].(string) != "a\nb\nc" {
		t.Fatalf("content = %q", out["content"])
	}
	if out["lines"].(float64) != 3 {
		t.Fatalf("lines = %v, want 3", out["lines"])
	}
}

func TestReadFileEscapeRejected(t *testing.T) {
	tc := testContext(t)
	result, err := NewReadFileTool(tc).Execute(context.Background(), json.RawMessage(`{"file_path":"../secret.txt"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for sandbox escape")
	}
	if !strings.Contains(result.Content, "escapes sandbox") {
		t.Fatalf("unexpected content: %s", result.Content)
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	tc := testContext(t)
	result, err := NewWriteFileTool(tc).Execute(context.Background(),
		json.RawMessage(`{"file_path":"nested/dir/out.txt","content":"hello"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	payload, err := os.ReadFile(filepath.Join(tc.WorkDir, "nested", "dir", "out.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(payload) != "hello" {
		t.Fatalf("content = %q", payload)
	}
}

func TestValidateArtifactTool(t *testing.T) {
	tc := testContext(t)
	content := "{\"name\":\"Alice\",\"age\":30}\n{\"name\":\"Bob\",\"age\":25}\n"
	if err := os.WriteFile(filepath.Join(tc.WorkDir, "output.jsonl"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := NewValidateArtifactTool(tc).Execute(context.Background(), json.RawMessage(`{"file_path":"./output.jsonl"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}

	var parsed models.ValidationResult
	if err := json.Unmarshal([]byte(result.Content), &parsed); err != nil {
		t.Fatalf("decode validation result: %v", err)
	}
	if !parsed.Valid || parsed.ItemCount != 2 {
		t.Fatalf("validation result = %+v", parsed)
	}
}

func TestValidateArtifactToolMissingFile(t *testing.T) {
	tc := testContext(t)
	result, err := NewValidateArtifactTool(tc).Execute(context.Background(), json.RawMessage(`{"file_path":"./output.jsonl"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing artifact")
	}
}

func TestRegisterTransformToolsModeGating(t *testing.T) {
	tc := testContext(t)

	direct := agent.NewRegistry()
	RegisterTransformTools(direct, tc, models.ModeDirect)
	if _, ok := direct.Get("run_transformer"); ok {
		t.Fatal("run_transformer must not be registered in direct mode")
	}

	code := agent.NewRegistry()
	RegisterTransformTools(code, tc, models.ModeCode)
	if _, ok := code.Get("run_transformer"); !ok {
		t.Fatal("run_transformer missing in code mode")
	}
	for _, name := range []string{"list_files", "read_file", "write_file", "validate_artifact"} {
		if _, ok := code.Get(name); !ok {
			t.Fatalf("%s not registered", name)
		}
	}
}
