package transform

import (
	"fmt"

	"github.com/haasonsaas/graphloom/pkg/models"
)

const directPromptTemplate = `You are a data transformation agent working inside a sandboxed directory.

Your task: transform the input files under ./inputs into the artifact %s.

Requirements:
- Each artifact item must match this JSON Schema (model %q):
%s
- Output format: %s. %s
- Use list_files and read_file to inspect the inputs before writing.
- Write the artifact with write_file, then call validate_artifact on it.
- If validation reports errors, fix the artifact and validate again.
- Do not write files outside the sandbox.`

const codePromptTemplate = `You are a data transformation agent working inside a sandboxed directory.

Your task: write a Python script at ./transform.py that reads the input files under ./inputs and produces the artifact %s.

Requirements:
- Each artifact item must match this JSON Schema (model %q):
%s
- Output format: %s. %s
- Use list_files and read_file to inspect the inputs before writing code.
- Write the script with write_file, run it with run_transformer, then call validate_artifact on the artifact.
- If the script fails or validation reports errors, read the captured output, fix the script, and run it again.
- Do not write files outside the sandbox.`

const (
	jsonFormatHint  = "The artifact is a single JSON object."
	jsonlFormatHint = "The artifact has one JSON object per line; no wrapping array, no blank lines between items."
)

// systemPrompt builds the run's system prompt from the mode, the
// sandbox-relative artifact path, and the stringified output model.
func systemPrompt(mode models.TransformMode, format models.OutputFormat, model models.OutputModel) string {
	artifact := "./output." + string(format)
	hint := jsonlFormatHint
	if format == models.FormatJSON {
		hint = jsonFormatHint
	}
	template := directPromptTemplate
	if mode == models.ModeCode {
		template = codePromptTemplate
	}
	return fmt.Sprintf(template, artifact, model.Name, string(model.Schema), format, hint)
}

// firstChunkPrompt asks for the opening chunk of an unbounded run.
func firstChunkPrompt(instruction string, chunkSize int) string {
	return fmt.Sprintf("%s\n\nGenerate the first %d items and establish the conventions (identifiers, naming, references) the rest of the output will follow.", instruction, chunkSize)
}

// continuationChunkPrompt asks for one more chunk, carrying progress and a
// style-reference tail from the previous chunk.
func continuationChunkPrompt(instruction string, generated, chunkSize int, overlap string) string {
	prompt := fmt.Sprintf("%s\n\nProgress: %d items generated so far. Generate up to %d more items. Do not repeat earlier items. Maintain referential consistency with what was already generated.", instruction, generated, chunkSize)
	if overlap != "" {
		prompt += "\n\nLast items from the previous chunk, for style reference:\n" + overlap
	}
	return prompt
}
