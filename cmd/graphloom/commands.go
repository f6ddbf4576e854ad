// commands.go contains the cobra command definitions and their flag
// configurations. Each builder wires a command to its handler in run.go.
package main

import (
	"github.com/spf13/cobra"
)

// transformFlags collects the flags shared by one transform invocation.
type transformFlags struct {
	instruction   string
	modelFile     string
	schemaFile    string
	inputs        []string
	mode          string
	format        string
	workDir       string
	maxIterations int
	learn         bool
	skillName     string
	skillsDir     string
	enableRLM     bool

	chunked   bool
	chunkSize int
	maxChunks int

	agentModel string
	maxTokens  int
	quiet      bool
}

func buildTransformCmd() *cobra.Command {
	var flags transformFlags

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Run an agentic transformation over input files",
		Long: `Run one transformation: inputs are copied into a sandbox, the agent
produces ./output.{format}, and the artifact is validated against the output
model before a manifest is printed.

The output model comes from --model-file (a JSON document with "name" and
"schema" keys) or from --schema-file (a workflow graph schema; enables the
seed-data domain checks).`,
		Example: `  # Direct mode, generic model
  graphloom transform -i "Convert rows to Person records" --model-file person.json --input data.csv

  # Code mode against a graph schema, learning enabled
  graphloom transform -i "Import the CRM export" --schema-file crm.json --input export.csv \
      --mode code --learn --skills-dir ./skills

  # Chunked generation
  graphloom transform -i "Generate a demo dataset" --model-file person.json --chunked --chunk-size 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.instruction, "instruction", "i", "", "Natural-language transformation instruction (required)")
	cmd.Flags().StringVar(&flags.modelFile, "model-file", "", "Path to an output model JSON file")
	cmd.Flags().StringVar(&flags.schemaFile, "schema-file", "", "Path to a workflow graph schema JSON file (enables seed-data checks)")
	cmd.Flags().StringArrayVar(&flags.inputs, "input", nil, "Input file or directory (repeatable)")
	cmd.Flags().StringVar(&flags.mode, "mode", "direct", "Transformation mode: direct or code")
	cmd.Flags().StringVar(&flags.format, "format", "jsonl", "Artifact format: json or jsonl")
	cmd.Flags().StringVar(&flags.workDir, "workdir", "", "Pre-provisioned sandbox directory (kept after the run)")
	cmd.Flags().IntVar(&flags.maxIterations, "max-iterations", 10, "Agent turn budget")
	cmd.Flags().BoolVar(&flags.learn, "learn", false, "Derive a learned skill on success")
	cmd.Flags().StringVar(&flags.skillName, "skill-name", "", "Name for the learned skill (default: model name)")
	cmd.Flags().StringVar(&flags.skillsDir, "skills-dir", "", "Skill store directory: persists learned skills and injects cached ones")
	cmd.Flags().BoolVar(&flags.enableRLM, "enable-rlm", false, "Request the persistent scripting kernel for huge inputs (recorded; no-op)")
	cmd.Flags().BoolVar(&flags.chunked, "chunked", false, "Chunked generation for unbounded outputs (forces jsonl)")
	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 100, "Target items per chunk")
	cmd.Flags().IntVar(&flags.maxChunks, "max-chunks", 10, "Chunk budget")
	cmd.Flags().StringVar(&flags.agentModel, "agent-model", "", "Anthropic model ID (default: client default)")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "Max tokens per agent turn (default: client default)")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress the event stream; print only the result")

	cobra.CheckErr(cmd.MarkFlagRequired("instruction"))
	return cmd
}

func buildValidateCmd() *cobra.Command {
	var (
		modelFile  string
		schemaFile string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "validate <artifact>",
		Short: "Validate an artifact against an output model",
		Long: `Validate one artifact file: structural JSON Schema validation, and the
seed-data domain checks when --schema-file is given. The validation result
is printed as JSON; the exit code is non-zero when the artifact is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args[0], modelFile, schemaFile, format)
		},
	}

	cmd.Flags().StringVar(&modelFile, "model-file", "", "Path to an output model JSON file")
	cmd.Flags().StringVar(&schemaFile, "schema-file", "", "Path to a workflow graph schema JSON file (enables seed-data checks)")
	cmd.Flags().StringVar(&format, "format", "jsonl", "Artifact format: json or jsonl")
	return cmd
}
