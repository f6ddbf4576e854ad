// Package transform implements the agentic data transformer: per-run
// sandboxing, the agent tool loop, validation gating, chunked generation,
// and manifest plus skill production.
package transform

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/graphloom/internal/agent"
	"github.com/haasonsaas/graphloom/internal/skills"
	"github.com/haasonsaas/graphloom/internal/tools"
	"github.com/haasonsaas/graphloom/internal/validate"
	"github.com/haasonsaas/graphloom/pkg/models"
)

// maxMaterializedItems bounds how many parsed items are attached to the
// run result.
const maxMaterializedItems = 100

// Request describes one transformation run.
type Request struct {
	// InputPaths are files or directories copied into the sandbox's
	// inputs directory before the agent starts.
	InputPaths []string

	// Instruction is the natural-language transformation request.
	Instruction string

	// Model is the output model each artifact item must match.
	Model models.OutputModel

	// Config is the run configuration.
	Config models.TransformConfig

	// Sink receives the run's ordered event stream. Optional.
	Sink models.EventSink

	// DomainValidator runs at the final gate over the parsed artifact
	// items. Optional; error-severity issues fail the run.
	DomainValidator validate.DomainValidator

	// Skill, when set, is injected into the sandbox before the agent
	// starts.
	Skill *models.LearnedSkill

	// SkillName names the learned skill produced when Config.Learn is
	// set. Defaults to the output model name.
	SkillName string
}

// Transformer runs end-to-end transformations through an agent client
// factory.
type Transformer struct {
	factory   agent.Factory
	validator *validate.Validator
	logger    *slog.Logger
	metrics   *Metrics

	nowFunc  func() time.Time
	newRunID func() string
}

// NewTransformer creates a transformer. logger and metrics may be nil.
func NewTransformer(factory agent.Factory, logger *slog.Logger, metrics *Metrics) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Transformer{
		factory:   factory,
		validator: validate.New(),
		logger:    logger,
		metrics:   metrics,
		nowFunc:   time.Now,
		newRunID:  uuid.NewString,
	}
}

// runState tracks loop progress shared between the tool hooks and the
// block consumer.
type runState struct {
	mu             sync.Mutex
	iteration      int
	toolCalls      []string
	lastValidation *models.ValidationResult
	validationSeen bool
	finalText      string
}

// Run executes one transformation and returns the result or a classified
// failure. Events are delivered synchronously through the request sink.
func (t *Transformer) Run(ctx context.Context, req Request) (*models.TransformRun, error) {
	start := t.nowFunc()
	cfg, err := sanitizeConfig(req.Config)
	if err != nil {
		return nil, err
	}
	schemaHash, err := req.Model.Hash()
	if err != nil {
		return nil, &ConfigError{Field: "output_model", Reason: err.Error()}
	}

	runID := t.newRunID()
	emitter := NewEmitter(runID, req.Sink)
	logger := t.logger.With("run_id", runID, "mode", string(cfg.Mode))
	t.metrics.RunsStarted.WithLabelValues(string(cfg.Mode)).Inc()

	box, err := newSandbox(cfg.WorkDir)
	if err != nil {
		return nil, t.fail(emitter, "sandbox", err)
	}
	defer box.cleanup()

	emitter.Emit(models.Event{Kind: models.EventPhase, Phase: "sandbox", Message: "populating sandbox"})
	if err := box.populate(req.InputPaths); err != nil {
		return nil, t.fail(emitter, "sandbox", err)
	}

	if req.Skill != nil {
		if _, err := skills.Inject(box.root, req.Skill, schemaHash, logger); err != nil {
			return nil, t.fail(emitter, "sandbox", &SandboxError{Op: "inject skill", Err: err})
		}
	}

	state := &runState{}
	registry := agent.NewRegistry()
	tc := tools.Context{WorkDir: box.root, OutputModel: req.Model, Format: cfg.Format}
	tools.RegisterTransformTools(registry, tc, cfg.Mode)

	opts := agent.Options{
		SystemPrompt:   systemPrompt(cfg.Mode, cfg.Format, req.Model),
		Registry:       registry,
		WorkDir:        box.root,
		MaxTurns:       cfg.MaxIterations,
		PermissionMode: agent.PermissionAcceptEdits,
		PreToolUse:     t.preToolHook(state),
		Logger:         logger,
	}
	client, err := t.factory(opts)
	if err != nil {
		return nil, t.fail(emitter, "agent_protocol", &AgentProtocolError{Reason: "create agent client", Err: err})
	}
	defer client.Close()

	if err := client.Open(ctx); err != nil {
		return nil, t.fail(emitter, "agent_protocol", &AgentProtocolError{Reason: "open agent client", Err: err})
	}

	emitter.Emit(models.Event{Kind: models.EventPhase, Phase: "agent_loop", Message: "starting agent"})
	if err := t.consumeLoop(ctx, client, req.Instruction, emitter, state); err != nil {
		return nil, t.fail(emitter, "agent_protocol", err)
	}

	run, err := t.finish(ctx, req, cfg, box, emitter, state, schemaHash, runID, start)
	if err != nil {
		return nil, err
	}
	t.metrics.RunsCompleted.WithLabelValues(string(cfg.Mode)).Inc()
	return run, nil
}

func sanitizeConfig(cfg models.TransformConfig) (models.TransformConfig, error) {
	if cfg.Mode == "" {
		cfg.Mode = models.ModeDirect
	}
	if cfg.Mode != models.ModeDirect && cfg.Mode != models.ModeCode {
		return cfg, &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", cfg.Mode)}
	}
	if cfg.Format == "" {
		cfg.Format = models.FormatJSONL
	}
	if !cfg.Format.Valid() {
		return cfg, &ConfigError{Field: "output_format", Reason: fmt.Sprintf("unknown format %q", cfg.Format)}
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	return cfg, nil
}

// preToolHook only records the call and bumps the counter. Tool events are
// emitted by the block consumer: hooks fire on the client's goroutine, and
// emitting from there would interleave with the consumer's text events.
func (t *Transformer) preToolHook(state *runState) agent.PreToolHook {
	return func(ctx context.Context, name string, input json.RawMessage) error {
		state.mu.Lock()
		state.toolCalls = append(state.toolCalls, name)
		state.mu.Unlock()

		t.metrics.ToolCalls.WithLabelValues(name).Inc()
		return nil
	}
}

// recordValidation parses a validate_artifact result block, remembers it as
// the latest in-loop validation, and emits the validation event.
func (t *Transformer) recordValidation(emitter *Emitter, state *runState, block agent.Block) {
	if block.ToolName != "validate_artifact" || block.IsError {
		return
	}
	var parsed models.ValidationResult
	if err := json.Unmarshal([]byte(block.Content), &parsed); err != nil {
		return
	}

	state.mu.Lock()
	state.lastValidation = &parsed
	state.validationSeen = true
	state.mu.Unlock()

	outcome := "invalid"
	if parsed.Valid {
		outcome = "valid"
	}
	t.metrics.Validations.WithLabelValues(outcome).Inc()
	emitter.Emit(models.Event{
		Kind:      models.EventValidation,
		Valid:     &parsed.Valid,
		ItemCount: parsed.ItemCount,
		Errors:    parsed.Errors,
	})
}

// consumeLoop drains the agent's block stream and is the single emission
// point for loop events, so the sink sees them in the agent's order. Turn
// exhaustion is not an error here; the post-loop evaluation decides whether
// the run produced a usable artifact.
func (t *Transformer) consumeLoop(ctx context.Context, client agent.Client, instruction string, emitter *Emitter, state *runState) error {
	blocks, err := client.Query(ctx, instruction)
	if err != nil {
		return &AgentProtocolError{Reason: "query agent", Err: err}
	}

	pendingIteration := true
	for block := range blocks {
		if block.Err != nil {
			if errors.Is(block.Err, agent.ErrMaxTurns) {
				break
			}
			state.mu.Lock()
			last := state.lastValidation
			state.mu.Unlock()
			return &AgentProtocolError{Reason: "agent stream failed", Err: block.Err, LastValidation: last}
		}

		if pendingIteration && block.Kind != agent.BlockTurnEnd {
			state.mu.Lock()
			iteration := state.iteration
			state.mu.Unlock()
			emitter.Emit(models.Event{Kind: models.EventIterationStart, Iteration: iteration})
			pendingIteration = false
		}

		switch block.Kind {
		case agent.BlockText:
			state.mu.Lock()
			state.finalText = block.Text
			state.mu.Unlock()
			emitter.Emit(models.Event{Kind: models.EventText, Text: block.Text})
		case agent.BlockToolUse:
			state.mu.Lock()
			iteration := state.iteration
			state.mu.Unlock()
			emitter.Emit(models.Event{
				Kind:       models.EventToolCall,
				ToolName:   block.ToolName,
				ToolCallID: block.ToolCallID,
				Input:      block.Input,
				Iteration:  iteration,
			})
		case agent.BlockToolResult:
			emitter.Emit(models.Event{
				Kind:       models.EventToolResult,
				ToolName:   block.ToolName,
				ToolCallID: block.ToolCallID,
				Output:     block.Content,
				IsError:    block.IsError,
			})
			t.recordValidation(emitter, state, block)
		case agent.BlockTurnEnd:
			state.mu.Lock()
			state.iteration++
			state.mu.Unlock()
			pendingIteration = true
		}
	}
	return nil
}

// finish runs the post-loop gates and assembles the run result.
func (t *Transformer) finish(ctx context.Context, req Request, cfg models.TransformConfig, box *sandbox, emitter *Emitter, state *runState, schemaHash, runID string, start time.Time) (*models.TransformRun, error) {
	artifact := box.artifactPath(string(cfg.Format))

	state.mu.Lock()
	lastValidation := state.lastValidation
	validationSeen := state.validationSeen
	finalText := state.finalText
	iterations := state.iteration
	toolCalls := append([]string(nil), state.toolCalls...)
	state.mu.Unlock()

	if _, err := os.Stat(artifact); err != nil {
		protoErr := &AgentProtocolError{Reason: "no output artifact", Err: ErrNoOutput, LastValidation: lastValidation}
		return nil, t.fail(emitter, "no_output", protoErr)
	}

	// Always re-validate so a complete event implies a passing artifact
	// even when the agent touched it after its last validate call.
	result, err := t.validator.ValidateArtifact(artifact, req.Model, cfg.Format)
	if err != nil {
		return nil, t.fail(emitter, "validation", &AgentProtocolError{Reason: "final validation", Err: err, LastValidation: lastValidation})
	}
	if !validationSeen {
		emitter.Emit(models.Event{
			Kind:      models.EventValidation,
			Valid:     &result.Valid,
			ItemCount: result.ItemCount,
			Errors:    result.Errors,
		})
	}
	if !result.Valid {
		return nil, t.fail(emitter, "validation_failed", &ValidationFailedError{Result: result})
	}

	items, parseErr := ParseItems(artifact, cfg.Format)
	if parseErr != nil {
		t.logger.Warn("artifact items could not be parsed", "run_id", runID, "error", parseErr)
	}

	if req.DomainValidator != nil {
		issues := req.DomainValidator(items)
		for _, issue := range issues {
			if issue.Severity == models.SeverityWarning {
				emitter.Emit(models.Event{
					Kind:    models.EventProgress,
					Message: fmt.Sprintf("warning %s at %s: %s", issue.Code, issue.Path, issue.Message),
				})
			}
		}
		if validate.HasBlockingIssues(issues) {
			blocking := make([]models.CustomValidationError, 0, len(issues))
			for _, issue := range issues {
				if issue.Severity == models.SeverityError {
					blocking = append(blocking, issue)
				}
			}
			return nil, t.fail(emitter, "domain", &DomainError{Issues: blocking})
		}
	}

	run := &models.TransformRun{
		Manifest: &models.TransformManifest{
			ArtifactPath:     artifact,
			ArtifactFormat:   cfg.Format,
			ItemCount:        result.ItemCount,
			SchemaHash:       schemaHash,
			ValidationPassed: true,
			Sample:           result.Sample,
			RunID:            runID,
			CreatedAt:        t.nowFunc(),
		},
		Debug: map[string]any{
			"iterations":  iterations,
			"tool_calls":  toolCalls,
			"elapsed_ms":  t.nowFunc().Sub(start).Milliseconds(),
			"mode":        string(cfg.Mode),
			"format":      string(cfg.Format),
			"rlm_enabled": cfg.EnableRLM,
		},
	}
	if result.ItemCount <= maxMaterializedItems {
		run.Items = items
	}

	if cfg.Learn {
		name := req.SkillName
		if name == "" {
			name = req.Model.Name
		}
		learned, err := deriveSkill(name, req.Instruction, finalText, box.root, schemaHash, cfg.Mode, t.nowFunc())
		if err != nil {
			t.logger.Warn("skill derivation failed", "run_id", runID, "error", err)
		} else {
			run.Learned = learned
		}
	}

	emitter.Emit(models.Event{
		Kind:      models.EventComplete,
		ItemCount: result.ItemCount,
		Manifest:  run.Manifest,
	})
	return run, nil
}

// fail emits the terminal error event, counts the failure, and returns
// the error for the caller.
func (t *Transformer) fail(emitter *Emitter, class string, err error) error {
	t.metrics.RunsFailed.WithLabelValues(class).Inc()
	t.logger.Error("transform run failed", "run_id", emitter.RunID(), "class", class, "error", err)
	emitter.Emit(models.Event{Kind: models.EventError, Message: err.Error()})
	return err
}

// ParseItems decodes the artifact into items: the whole object for json,
// one object per non-blank line for jsonl.
func ParseItems(path string, format models.OutputFormat) ([]map[string]any, error) {
	switch format {
	case models.FormatJSON:
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var item map[string]any
		if err := json.Unmarshal(payload, &item); err != nil {
			return nil, err
		}
		return []map[string]any{item}, nil

	case models.FormatJSONL:
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		var items []map[string]any
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var item map[string]any
			if err := json.Unmarshal([]byte(line), &item); err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, scanner.Err()

	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}
