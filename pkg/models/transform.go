package models

import (
	"time"
)

// TransformMode selects how the agent produces the output artifact.
type TransformMode string

const (
	// ModeDirect has the agent write the output artifact itself.
	ModeDirect TransformMode = "direct"

	// ModeCode has the agent write a transformer script to a fixed path
	// and invoke it to produce the artifact.
	ModeCode TransformMode = "code"
)

// OutputFormat is the artifact serialisation format.
type OutputFormat string

const (
	// FormatJSON is a single JSON object artifact.
	FormatJSON OutputFormat = "json"

	// FormatJSONL is one JSON object per non-blank line.
	FormatJSONL OutputFormat = "jsonl"
)

// Valid reports whether the format is a known artifact format.
func (f OutputFormat) Valid() bool {
	return f == FormatJSON || f == FormatJSONL
}

// TransformConfig is the immutable configuration for one transform run.
type TransformConfig struct {
	// Mode selects direct or code transformation. Default: direct.
	Mode TransformMode `json:"mode"`

	// Format is the artifact format. Default: jsonl.
	Format OutputFormat `json:"output_format"`

	// MaxIterations bounds agent turns. Must be >= 1. Default: 10.
	MaxIterations int `json:"max_iterations"`

	// Learn produces a learned-skill document on success.
	Learn bool `json:"learn,omitempty"`

	// EnableRLM requests the persistent scripting kernel for huge inputs.
	// The kernel is not shipped here; the flag is accepted, recorded in
	// the run diagnostics, and otherwise a no-op.
	EnableRLM bool `json:"enable_rlm,omitempty"`

	// WorkDir is an optional pre-provisioned sandbox directory. When
	// empty, a fresh scoped directory is created and destroyed on exit.
	WorkDir string `json:"work_dir,omitempty"`
}

// TransformManifest is the immutable summary of a successful run.
type TransformManifest struct {
	// ArtifactPath is the absolute path of the produced artifact.
	ArtifactPath string `json:"artifact_path"`

	// ArtifactFormat is the artifact serialisation format.
	ArtifactFormat OutputFormat `json:"artifact_format"`

	// ItemCount is the number of validated items in the artifact.
	ItemCount int `json:"item_count"`

	// SchemaHash is a stable hash of the output model's canonical
	// serialisation, used to detect schema drift across runs.
	SchemaHash string `json:"schema_hash"`

	// ValidationPassed is always true for a manifest; a run without a
	// passing validation never produces one.
	ValidationPassed bool `json:"validation_passed"`

	// Sample holds up to three parsed items, truncated to fit the
	// validator's sample budget.
	Sample []map[string]any `json:"sample,omitempty"`

	// RunID is an opaque identifier for the run.
	RunID string `json:"run_id"`

	// CreatedAt is when the manifest was produced.
	CreatedAt time.Time `json:"created_at"`
}

// LearnedSkill is a reusable transformation memo produced on successful
// runs when learning is enabled, and re-injected into the sandbox on later
// runs.
type LearnedSkill struct {
	// Name is the caller-facing skill name; its slug is stable across
	// learning cycles for one logical endpoint.
	Name string `json:"name"`

	// Description is a one-line summary for skill discovery.
	Description string `json:"description,omitempty"`

	// Memo is the natural-language transformation memo (markdown body).
	Memo string `json:"memo"`

	// Script is the persisted transformer script body (code mode only).
	Script string `json:"script,omitempty"`

	// SchemaHash records the output model the skill was learned against.
	SchemaHash string `json:"schema_hash"`

	// CreatedAt is when the skill was learned.
	CreatedAt time.Time `json:"created_at"`
}

// TransformRun is the result of a successful transform run.
type TransformRun struct {
	// Manifest summarises the run.
	Manifest *TransformManifest `json:"manifest"`

	// Items holds the parsed artifact items. Only materialised when the
	// artifact has at most 100 items.
	Items []map[string]any `json:"items,omitempty"`

	// Learned is the skill document produced when learning was enabled.
	Learned *LearnedSkill `json:"learned,omitempty"`

	// Debug carries run diagnostics: iterations, tool-call history,
	// elapsed time, mode, and format.
	Debug map[string]any `json:"debug,omitempty"`
}
