// Package main provides the CLI entry point for graphloom, the agentic
// data transformer.
//
// # Basic Usage
//
// Run a transformation:
//
//	graphloom transform --instruction "Convert the CSV rows to Person records" \
//	    --model-file person.json --input data.csv
//
// Validate an existing artifact:
//
//	graphloom validate output.jsonl --model-file person.json --format jsonl
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key for the agent client
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "graphloom",
		Short: "graphloom - agentic data transformer for workflow graphs",
		Long: `graphloom drives an agent with sandboxed tools to transform arbitrary
input files into schema-validated artifacts: generic JSON/JSONL outputs or
seed data for workflow graphs.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildTransformCmd(),
		buildValidateCmd(),
	)
	return rootCmd
}
