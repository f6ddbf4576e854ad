// run.go contains the command handlers.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/haasonsaas/graphloom/internal/agent"
	"github.com/haasonsaas/graphloom/internal/skills"
	"github.com/haasonsaas/graphloom/internal/transform"
	"github.com/haasonsaas/graphloom/internal/validate"
	"github.com/haasonsaas/graphloom/pkg/models"
)

// loadModel resolves the output model from --model-file or --schema-file.
// The schema is returned when the model comes from a graph schema, so the
// caller can attach the seed-data domain checks.
func loadModel(modelFile, schemaFile string) (models.OutputModel, *models.GraphSchema, error) {
	switch {
	case modelFile != "" && schemaFile != "":
		return models.OutputModel{}, nil, errors.New("--model-file and --schema-file are mutually exclusive")

	case modelFile != "":
		payload, err := os.ReadFile(modelFile)
		if err != nil {
			return models.OutputModel{}, nil, fmt.Errorf("read model file: %w", err)
		}
		var model models.OutputModel
		if err := json.Unmarshal(payload, &model); err != nil {
			return models.OutputModel{}, nil, fmt.Errorf("decode model file: %w", err)
		}
		if model.Name == "" || len(model.Schema) == 0 {
			return models.OutputModel{}, nil, errors.New("model file must carry name and schema")
		}
		return model, nil, nil

	case schemaFile != "":
		payload, err := os.ReadFile(schemaFile)
		if err != nil {
			return models.OutputModel{}, nil, fmt.Errorf("read schema file: %w", err)
		}
		var schema models.GraphSchema
		if err := json.Unmarshal(payload, &schema); err != nil {
			return models.OutputModel{}, nil, fmt.Errorf("decode schema file: %w", err)
		}
		model, err := schema.OutputModel()
		if err != nil {
			return models.OutputModel{}, nil, err
		}
		return model, &schema, nil

	default:
		return models.OutputModel{}, nil, errors.New("one of --model-file or --schema-file is required")
	}
}

// eventPrinter writes each event as one JSON line to stdout.
func eventPrinter(quiet bool) models.EventSink {
	if quiet {
		return nil
	}
	encoder := json.NewEncoder(os.Stdout)
	return func(event models.Event) {
		if err := encoder.Encode(event); err != nil {
			slog.Warn("event encode failed", "error", err)
		}
	}
}

func runTransform(ctx context.Context, flags transformFlags) error {
	model, schema, err := loadModel(flags.modelFile, flags.schemaFile)
	if err != nil {
		return err
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return errors.New("ANTHROPIC_API_KEY is not set")
	}
	factory := agent.AnthropicFactory(agent.AnthropicConfig{
		APIKey:    apiKey,
		Model:     flags.agentModel,
		MaxTokens: flags.maxTokens,
	})

	req := transform.Request{
		InputPaths:  flags.inputs,
		Instruction: flags.instruction,
		Model:       model,
		Config: models.TransformConfig{
			Mode:          models.TransformMode(flags.mode),
			Format:        models.OutputFormat(flags.format),
			MaxIterations: flags.maxIterations,
			Learn:         flags.learn,
			EnableRLM:     flags.enableRLM,
			WorkDir:       flags.workDir,
		},
		Sink:      eventPrinter(flags.quiet),
		SkillName: flags.skillName,
	}
	if schema != nil {
		req.DomainValidator = validate.SeedValidator(schema)
	}

	var (
		store    *skills.Store
		storeDir string
	)
	if flags.skillsDir != "" {
		store = skills.NewStore(flags.skillsDir, slog.Default())
		name := flags.skillName
		if name == "" {
			name = model.Name
		}
		storeDir = filepath.Join(flags.skillsDir, skills.Slug(name))

		if hash, hashErr := model.Hash(); hashErr == nil {
			drifted, driftErr := checkSchemaDrift(storeDir, hash)
			switch {
			case driftErr != nil:
				slog.Warn("cached manifest unreadable", "skill", name, "error", driftErr)
			case drifted:
				slog.Warn("output model changed since the last run for this skill", "skill", name)
			}
		}

		cached, err := store.Load(name)
		switch {
		case err == nil:
			req.Skill = cached
		case errors.Is(err, skills.ErrSkillNotFound):
			// First run for this skill.
		default:
			return err
		}
	}

	transformer := transform.NewTransformer(factory, slog.Default(), nil)

	var run *models.TransformRun
	if flags.chunked {
		run, err = transformer.RunChunked(ctx, req, transform.ChunkedConfig{
			ChunkSize: flags.chunkSize,
			MaxChunks: flags.maxChunks,
		})
	} else {
		run, err = transformer.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	if store != nil {
		if err := persistRun(store, storeDir, run); err != nil {
			slog.Warn("skill store update failed", "error", err)
		}
	}

	return printJSON(run)
}

// checkSchemaDrift reports whether the manifest cached under dir was
// produced against a different output model hash. A missing manifest is
// not drift.
func checkSchemaDrift(dir, currentHash string) (bool, error) {
	cached, err := transform.LoadManifest(dir)
	if errors.Is(err, transform.ErrManifestNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return transform.SchemaDrifted(cached, currentHash), nil
}

// persistRun stores the learned skill (when one was derived) and the run
// manifest in the skill store, so later runs can compare schema hashes.
func persistRun(store *skills.Store, dir string, run *models.TransformRun) error {
	if run.Learned != nil {
		if err := store.Persist(*run.Learned); err != nil {
			return err
		}
	}
	return transform.WriteManifest(dir, run.Manifest)
}

func runValidate(artifact, modelFile, schemaFile, format string) error {
	model, schema, err := loadModel(modelFile, schemaFile)
	if err != nil {
		return err
	}
	outputFormat := models.OutputFormat(format)
	if !outputFormat.Valid() {
		return fmt.Errorf("unknown format %q", format)
	}

	result, err := validate.New().ValidateArtifact(artifact, model, outputFormat)
	if err != nil {
		return err
	}

	report := struct {
		*models.ValidationResult
		DomainIssues []models.CustomValidationError `json:"domain_issues,omitempty"`
	}{ValidationResult: result}

	if schema != nil && result.Valid {
		items, err := transform.ParseItems(artifact, outputFormat)
		if err != nil {
			return fmt.Errorf("parse artifact items: %w", err)
		}
		report.DomainIssues = validate.SeedValidator(schema)(items)
	}

	if err := printJSON(report); err != nil {
		return err
	}
	if !result.Valid || validate.HasBlockingIssues(report.DomainIssues) {
		return errors.New("artifact failed validation")
	}
	return nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
