package transform

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/graphloom/internal/agent/agenttest"
	"github.com/haasonsaas/graphloom/internal/validate"
	"github.com/haasonsaas/graphloom/pkg/models"
)

var personModel = models.OutputModel{
	Name:   "Person",
	Schema: []byte(`{"type":"object","required":["name","age"],"properties":{"name":{"type":"string"},"age":{"type":"integer"}}}`),
}

type eventLog struct {
	events []models.Event
}

func (l *eventLog) sink() models.EventSink {
	return func(event models.Event) {
		l.events = append(l.events, event)
	}
}

func (l *eventLog) byKind(kind models.EventKind) []models.Event {
	var out []models.Event
	for _, event := range l.events {
		if event.Kind == kind {
			out = append(out, event)
		}
	}
	return out
}

func writeAction(t *testing.T, path, content string) agenttest.Action {
	t.Helper()
	input, err := json.Marshal(map[string]string{"file_path": path, "content": content})
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}
	return agenttest.Action{ToolName: "write_file", Input: input}
}

func validateAction(path string) agenttest.Action {
	return agenttest.Action{ToolName: "validate_artifact", Input: json.RawMessage(`{"file_path":"` + path + `"}`)}
}

func csvInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("name,age\nAlice,30\nBob,25\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestRunDirectMode(t *testing.T) {
	artifact := "{\"name\":\"Alice\",\"age\":30}\n{\"name\":\"Bob\",\"age\":25}\n"
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		{ToolName: "list_files"},
		{ToolName: "read_file", Input: json.RawMessage(`{"file_path":"inputs/data.csv"}`)},
		writeAction(t, "output.jsonl", artifact),
		validateAction("./output.jsonl"),
		{Text: "Converted 2 rows to Person records."},
	}}}}

	log := &eventLog{}
	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	run, err := transformer.Run(context.Background(), Request{
		InputPaths:  []string{csvInput(t)},
		Instruction: "Convert rows to Person records",
		Model:       personModel,
		Config:      models.TransformConfig{Mode: models.ModeDirect, Format: models.FormatJSONL},
		Sink:        log.sink(),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Manifest.ItemCount != 2 {
		t.Fatalf("ItemCount = %d, want 2", run.Manifest.ItemCount)
	}
	if !run.Manifest.ValidationPassed {
		t.Fatal("ValidationPassed = false")
	}
	if len(run.Items) != 2 || run.Items[0]["name"] != "Alice" {
		t.Fatalf("Items = %+v", run.Items)
	}

	validations := log.byKind(models.EventValidation)
	if len(validations) == 0 {
		t.Fatal("no validation event")
	}
	if v := validations[0]; v.Valid == nil || !*v.Valid || v.ItemCount != 2 {
		t.Fatalf("validation event = %+v", v)
	}

	last := log.events[len(log.events)-1]
	if last.Kind != models.EventComplete || last.ItemCount != 2 || last.Manifest == nil {
		t.Fatalf("last event = %+v", last)
	}
}

func TestRunEventOrdering(t *testing.T) {
	artifact := "{\"name\":\"Alice\",\"age\":30}\n"
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		writeAction(t, "output.jsonl", artifact),
		validateAction("./output.jsonl"),
	}}}}

	log := &eventLog{}
	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	if _, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{},
		Sink:   log.sink(),
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var lastSeq uint64
	for _, event := range log.events {
		if event.Sequence <= lastSeq {
			t.Fatalf("sequence not monotonic: %d after %d (%s)", event.Sequence, lastSeq, event.Kind)
		}
		lastSeq = event.Sequence
	}

	// tool_result for a tool never precedes its tool_call.
	calls := 0
	for _, event := range log.events {
		switch event.Kind {
		case models.EventToolCall:
			calls++
		case models.EventToolResult:
			if calls == 0 {
				t.Fatal("tool_result before any tool_call")
			}
		}
	}
}

func TestRunEmitsInAgentOrder(t *testing.T) {
	// Text spoken before the tool calls must reach the sink first; tool
	// events may not jump ahead of it.
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		{Text: "Writing the artifact now."},
		writeAction(t, "output.jsonl", "{\"name\":\"Alice\",\"age\":30}\n"),
		validateAction("./output.jsonl"),
	}}}}

	log := &eventLog{}
	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	if _, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{},
		Sink:   log.sink(),
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []models.EventKind{
		models.EventPhase,
		models.EventPhase,
		models.EventIterationStart,
		models.EventText,
		models.EventToolCall,
		models.EventToolResult,
		models.EventToolCall,
		models.EventToolResult,
		models.EventValidation,
		models.EventComplete,
	}
	if len(log.events) != len(want) {
		kinds := make([]models.EventKind, len(log.events))
		for i, event := range log.events {
			kinds[i] = event.Kind
		}
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i, kind := range want {
		if log.events[i].Kind != kind {
			t.Fatalf("events[%d] = %v, want %v", i, log.events[i].Kind, kind)
		}
	}

	// Tool events carry the call id pairing a result with its call.
	calls := log.byKind(models.EventToolCall)
	results := log.byKind(models.EventToolResult)
	for i := range calls {
		if calls[i].ToolCallID == "" || calls[i].ToolCallID != results[i].ToolCallID {
			t.Fatalf("call/result ids = %q / %q", calls[i].ToolCallID, results[i].ToolCallID)
		}
	}
}

func TestRunNoOutput(t *testing.T) {
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		{Text: "I could not find usable inputs."},
	}}}}

	log := &eventLog{}
	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	_, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{},
		Sink:   log.sink(),
	})
	if !errors.Is(err, ErrNoOutput) {
		t.Fatalf("Run() error = %v, want ErrNoOutput", err)
	}
	if len(log.byKind(models.EventError)) != 1 {
		t.Fatal("expected one error event")
	}
}

func TestRunValidationFailed(t *testing.T) {
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		writeAction(t, "output.jsonl", "{\"name\":\"Alice\"}\n"),
		{Text: "done"},
	}}}}

	log := &eventLog{}
	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	_, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{},
		Sink:   log.sink(),
	})

	var vf *ValidationFailedError
	if !errors.As(err, &vf) {
		t.Fatalf("Run() error = %v, want ValidationFailedError", err)
	}
	// The final explicit validation is surfaced as a validation event.
	validations := log.byKind(models.EventValidation)
	if len(validations) != 1 || *validations[0].Valid {
		t.Fatalf("validation events = %+v", validations)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	transformer := NewTransformer(agenttest.Factory(agenttest.Script{}, nil), nil, nil)
	_, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{Format: models.OutputFormat("xml")},
	})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Run() error = %v, want ConfigError", err)
	}
}

func TestRunDomainGateBlocks(t *testing.T) {
	schema := &models.GraphSchema{
		NodeTypes: []models.NodeTypeDef{{Name: "account"}},
	}
	seedModel, err := schema.OutputModel()
	if err != nil {
		t.Fatalf("OutputModel() error = %v", err)
	}

	seed := `{"nodes":[{"temp_id":"n_1","type":"account"},{"temp_id":"n_1","type":"account"}],"edges":[]}`
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		writeAction(t, "output.json", seed),
		validateAction("./output.json"),
	}}}}

	log := &eventLog{}
	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	_, err = transformer.Run(context.Background(), Request{
		Model:           seedModel,
		Config:          models.TransformConfig{Format: models.FormatJSON},
		Sink:            log.sink(),
		DomainValidator: validate.SeedValidator(schema),
	})

	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("Run() error = %v, want DomainError", err)
	}
	if len(de.Issues) != 1 || de.Issues[0].Code != "duplicate_temp_id" {
		t.Fatalf("Issues = %+v", de.Issues)
	}
	if len(log.byKind(models.EventComplete)) != 0 {
		t.Fatal("complete event emitted despite domain failure")
	}
}

func TestRunDomainWarningsPass(t *testing.T) {
	schema := &models.GraphSchema{
		NodeTypes: []models.NodeTypeDef{{Name: "account"}},
	}
	seedModel, err := schema.OutputModel()
	if err != nil {
		t.Fatalf("OutputModel() error = %v", err)
	}

	seed := `{"nodes":[],"edges":[]}`
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		writeAction(t, "output.json", seed),
		validateAction("./output.json"),
	}}}}

	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	run, err := transformer.Run(context.Background(), Request{
		Model:           seedModel,
		Config:          models.TransformConfig{Format: models.FormatJSON},
		DomainValidator: validate.SeedValidator(schema),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Manifest == nil {
		t.Fatal("expected manifest despite warnings")
	}
}

func TestRunLearning(t *testing.T) {
	artifact := "{\"name\":\"Alice\",\"age\":30}\n"
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		writeAction(t, "output.jsonl", artifact),
		validateAction("./output.jsonl"),
		{Text: "Mapped the name and age columns directly."},
	}}}}

	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	run, err := transformer.Run(context.Background(), Request{
		Instruction: "Convert rows to Person records",
		Model:       personModel,
		Config:      models.TransformConfig{Learn: true},
		SkillName:   "people-import",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Learned == nil {
		t.Fatal("expected learned skill")
	}
	if run.Learned.Name != "people-import" {
		t.Fatalf("Learned.Name = %q", run.Learned.Name)
	}
	if run.Learned.Memo != "Mapped the name and age columns directly." {
		t.Fatalf("Learned.Memo = %q", run.Learned.Memo)
	}
	if run.Learned.SchemaHash != run.Manifest.SchemaHash {
		t.Fatal("skill and manifest schema hashes differ")
	}
}

func TestRunInjectsSkill(t *testing.T) {
	workDir := t.TempDir()
	artifact := "{\"name\":\"Alice\",\"age\":30}\n"
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		writeAction(t, "output.jsonl", artifact),
		validateAction("./output.jsonl"),
	}}}}

	hash, err := personModel.Hash()
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	skill := &models.LearnedSkill{
		Name:       "people-import",
		Memo:       "Map columns directly.",
		Script:     "print('cached')\n",
		SchemaHash: hash,
	}

	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	if _, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{WorkDir: workDir},
		Skill:  skill,
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(workDir, ".claude", "skills", "people-import", "SKILL.md")); err != nil {
		t.Fatalf("skill memo not injected: %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "transform.py")); err != nil {
		t.Fatalf("skill script not injected: %v", err)
	}
}

func TestRunDebugAndToolHistory(t *testing.T) {
	artifact := "{\"name\":\"Alice\",\"age\":30}\n"
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		{ToolName: "list_files"},
		writeAction(t, "output.jsonl", artifact),
		validateAction("./output.jsonl"),
	}}}}

	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	run, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{EnableRLM: true},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	history, ok := run.Debug["tool_calls"].([]string)
	if !ok {
		t.Fatalf("tool_calls has type %T", run.Debug["tool_calls"])
	}
	want := []string{"list_files", "write_file", "validate_artifact"}
	if len(history) != len(want) {
		t.Fatalf("tool_calls = %v", history)
	}
	for i, name := range want {
		if history[i] != name {
			t.Fatalf("tool_calls[%d] = %q, want %q", i, history[i], name)
		}
	}
	if run.Debug["mode"] != "direct" || run.Debug["format"] != "jsonl" {
		t.Fatalf("Debug = %v", run.Debug)
	}
	if run.Debug["rlm_enabled"] != true {
		t.Fatalf("rlm_enabled = %v, want true", run.Debug["rlm_enabled"])
	}
}

func TestRunCleansOwnedSandbox(t *testing.T) {
	var clients []*agenttest.ScriptedClient
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		writeAction(t, "output.jsonl", "{\"name\":\"Alice\",\"age\":30}\n"),
		validateAction("./output.jsonl"),
	}}}}

	transformer := NewTransformer(agenttest.Factory(script, &clients), nil, nil)
	run, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(run.Manifest.ArtifactPath); !os.IsNotExist(err) {
		t.Fatalf("owned sandbox not cleaned, stat err = %v", err)
	}
}

func TestRunKeepsCallerWorkDir(t *testing.T) {
	workDir := t.TempDir()
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		writeAction(t, "output.jsonl", "{\"name\":\"Alice\",\"age\":30}\n"),
		validateAction("./output.jsonl"),
	}}}}

	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	run, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{WorkDir: workDir},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(run.Manifest.ArtifactPath); err != nil {
		t.Fatalf("artifact missing from caller work dir: %v", err)
	}
}

func TestRunToolWhitelistByMode(t *testing.T) {
	// run_transformer is not registered in direct mode; the scripted
	// call surfaces as an error tool result, not a run failure.
	script := agenttest.Script{Turns: []agenttest.Turn{{Actions: []agenttest.Action{
		{ToolName: "run_transformer"},
		writeAction(t, "output.jsonl", "{\"name\":\"Alice\",\"age\":30}\n"),
		validateAction("./output.jsonl"),
	}}}}

	log := &eventLog{}
	transformer := NewTransformer(agenttest.Factory(script, nil), nil, nil)
	if _, err := transformer.Run(context.Background(), Request{
		Model:  personModel,
		Config: models.TransformConfig{Mode: models.ModeDirect},
		Sink:   log.sink(),
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	results := log.byKind(models.EventToolResult)
	if len(results) == 0 || !results[0].IsError {
		t.Fatalf("expected error tool result for run_transformer, got %+v", results)
	}
}

func TestSanitizeConfigDefaults(t *testing.T) {
	cfg, err := sanitizeConfig(models.TransformConfig{})
	if err != nil {
		t.Fatalf("sanitizeConfig() error = %v", err)
	}
	if cfg.Mode != models.ModeDirect || cfg.Format != models.FormatJSONL || cfg.MaxIterations != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}

	if _, err := sanitizeConfig(models.TransformConfig{Mode: "magic"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
