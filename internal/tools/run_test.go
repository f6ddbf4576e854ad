package tools

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestRunTransformerSuccess(t *testing.T) {
	requirePython(t)
	tc := testContext(t)
	script := "with open('output.jsonl', 'w') as f:\n    f.write('{\"name\":\"Alice\",\"age\":30}\\n')\nprint('done')\n"
	if err := os.WriteFile(filepath.Join(tc.WorkDir, "transform.py"), []byte(script), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	result, err := NewRunTransformerTool(tc).Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	out := decodeResult(t, result)
	if out["success"] != true || out["exit_code"].(float64) != 0 {
		t.Fatalf("result = %v", out)
	}
	if _, err := os.Stat(filepath.Join(tc.WorkDir, "output.jsonl")); err != nil {
		t.Fatalf("script output missing: %v", err)
	}
}

func TestRunTransformerFailure(t *testing.T) {
	requirePython(t)
	tc := testContext(t)
	script := "import sys\nsys.stderr.write('boom\\n')\nsys.exit(3)\n"
	if err := os.WriteFile(filepath.Join(tc.WorkDir, "transform.py"), []byte(script), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	result, err := NewRunTransformerTool(tc).Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for failing script")
	}
	out := decodeResult(t, result)
	if out["success"] != false || out["exit_code"].(float64) != 3 {
		t.Fatalf("result = %v", out)
	}
	if out["stderr"].(string) == "" {
		t.Fatal("expected captured stderr")
	}
}

func TestRunTransformerTimeout(t *testing.T) {
	requirePython(t)
	tc := testContext(t)
	script := "import time\ntime.sleep(30)\n"
	if err := os.WriteFile(filepath.Join(tc.WorkDir, "transform.py"), []byte(script), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	result, err := NewRunTransformerTool(tc).Execute(context.Background(), json.RawMessage(`{"timeout_seconds":1}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result on timeout")
	}
	out := decodeResult(t, result)
	if out["timed_out"] != true {
		t.Fatalf("result = %v", out)
	}
}

func TestRunTransformerEscapeRejected(t *testing.T) {
	tc := testContext(t)
	result, err := NewRunTransformerTool(tc).Execute(context.Background(), json.RawMessage(`{"script_path":"../evil.py"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for sandbox escape")
	}
}

func TestTailTruncate(t *testing.T) {
	short := "hello"
	if got := tailTruncate(short); got != short {
		t.Fatalf("tailTruncate(short) = %q", got)
	}
	long := make([]byte, maxOutputBytes*2)
	for i := range long {
		long[i] = 'x'
	}
	got := tailTruncate(string(long))
	if len(got) > maxOutputBytes+32 {
		t.Fatalf("truncated length = %d", len(got))
	}
}
