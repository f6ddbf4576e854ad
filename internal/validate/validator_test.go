package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/graphloom/pkg/models"
)

var personModel = models.OutputModel{
	Name:   "Person",
	Schema: []byte(`{"type":"object","required":["name","age"],"properties":{"name":{"type":"string"},"age":{"type":"integer"}}}`),
}

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestValidateArtifactJSONValid(t *testing.T) {
	path := writeArtifact(t, "output.json", `{"name":"Alice","age":30}`)
	result, err := New().ValidateArtifact(path, personModel, models.FormatJSON)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, errors = %v", result.Errors)
	}
	if result.ItemCount != 1 {
		t.Fatalf("ItemCount = %d, want 1", result.ItemCount)
	}
	if len(result.Sample) != 1 {
		t.Fatalf("Sample length = %d, want 1", len(result.Sample))
	}
}

func TestValidateArtifactJSONSchemaViolation(t *testing.T) {
	path := writeArtifact(t, "output.json", `{"name":"Alice","age":"thirty"}`)
	result, err := New().ValidateArtifact(path, personModel, models.FormatJSON)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected at least one error")
	}
	if !strings.Contains(result.Errors[0], "age") {
		t.Fatalf("error should name the offending path, got %q", result.Errors[0])
	}
}

func TestValidateArtifactJSONMalformed(t *testing.T) {
	path := writeArtifact(t, "output.json", `{broken`)
	result, err := New().ValidateArtifact(path, personModel, models.FormatJSON)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	if result.Valid || len(result.Errors) != 1 {
		t.Fatalf("expected single parse error, got %+v", result)
	}
}

func TestValidateArtifactJSONLSkipsBlankLines(t *testing.T) {
	content := "{\"name\":\"Alice\",\"age\":30}\n\n   \n{\"name\":\"Bob\",\"age\":25}\n"
	path := writeArtifact(t, "output.jsonl", content)
	result, err := New().ValidateArtifact(path, personModel, models.FormatJSONL)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, errors = %v", result.Errors)
	}
	if result.ItemCount != 2 {
		t.Fatalf("ItemCount = %d, want 2", result.ItemCount)
	}
}

func TestValidateArtifactJSONLLineNumbers(t *testing.T) {
	content := "{\"name\":\"Alice\",\"age\":30}\n{\"name\":\"Bob\"}\n"
	path := writeArtifact(t, "output.jsonl", content)
	result, err := New().ValidateArtifact(path, personModel, models.FormatJSONL)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if result.ItemCount != 1 {
		t.Fatalf("ItemCount = %d, want 1", result.ItemCount)
	}
	if !strings.HasPrefix(result.Errors[0], "line 2: ") {
		t.Fatalf("error should carry the line number, got %q", result.Errors[0])
	}
}

func TestValidateArtifactJSONLStopsAtMaxErrors(t *testing.T) {
	var b strings.Builder
	for i := 0; i < maxErrors+5; i++ {
		fmt.Fprintf(&b, "{\"name\":%d}\n", i)
	}
	path := writeArtifact(t, "output.jsonl", b.String())
	result, err := New().ValidateArtifact(path, personModel, models.FormatJSONL)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	last := result.Errors[len(result.Errors)-1]
	if !strings.Contains(last, "stopped after") {
		t.Fatalf("expected truncation marker, got %q", last)
	}
	if len(result.Errors) > maxErrors+1 {
		t.Fatalf("errors = %d, want at most %d", len(result.Errors), maxErrors+1)
	}
}

func TestValidateArtifactJSONLCountsValidPastErrorBudget(t *testing.T) {
	// Valid lines after the error budget is exhausted still count.
	var b strings.Builder
	for i := 0; i < maxErrors; i++ {
		fmt.Fprintf(&b, "{\"name\":%d}\n", i)
	}
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, "{\"name\":\"p%d\",\"age\":%d}\n", i, 20+i)
	}
	b.WriteString("not json at all\n")

	path := writeArtifact(t, "output.jsonl", b.String())
	result, err := New().ValidateArtifact(path, personModel, models.FormatJSONL)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if result.ItemCount != 5 {
		t.Fatalf("ItemCount = %d, want 5", result.ItemCount)
	}
	if len(result.Errors) != maxErrors+1 {
		t.Fatalf("errors = %d, want %d", len(result.Errors), maxErrors+1)
	}
	if last := result.Errors[len(result.Errors)-1]; !strings.Contains(last, "stopped after") {
		t.Fatalf("expected truncation marker, got %q", last)
	}
}

func TestValidateArtifactJSONLEmptyFile(t *testing.T) {
	path := writeArtifact(t, "output.jsonl", "")
	result, err := New().ValidateArtifact(path, personModel, models.FormatJSONL)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, errors = %v", result.Errors)
	}
	if result.ItemCount != 0 {
		t.Fatalf("ItemCount = %d, want 0", result.ItemCount)
	}
}

func TestValidateArtifactMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.json")
	if _, err := New().ValidateArtifact(missing, personModel, models.FormatJSON); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestValidateArtifactUnsupportedFormat(t *testing.T) {
	path := writeArtifact(t, "output.json", `{}`)
	if _, err := New().ValidateArtifact(path, personModel, models.OutputFormat("xml")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestValidateArtifactStableAcrossRuns(t *testing.T) {
	content := "{\"name\":\"Alice\",\"age\":30}\n{\"name\":\"Bob\"}\n"
	path := writeArtifact(t, "output.jsonl", content)
	v := New()
	first, err := v.ValidateArtifact(path, personModel, models.FormatJSONL)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	second, err := v.ValidateArtifact(path, personModel, models.FormatJSONL)
	if err != nil {
		t.Fatalf("ValidateArtifact() error = %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("expected equal results, got %+v vs %+v", first, second)
	}
}

func TestPointerToPath(t *testing.T) {
	cases := map[string]string{
		"":                 "$",
		"/":                "$",
		"/name":            "name",
		"/nodes/0/temp_id": "nodes[0].temp_id",
		"/items/12":        "items[12]",
	}
	for pointer, want := range cases {
		if got := pointerToPath(pointer); got != want {
			t.Fatalf("pointerToPath(%q) = %q, want %q", pointer, got, want)
		}
	}
}
