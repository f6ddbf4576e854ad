// Package validate implements structural and domain validation for
// transformation artifacts. Structural validation checks an artifact file
// against an output model schema; domain validation runs semantic checks
// over decoded seed data.
package validate

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/graphloom/pkg/models"
)

// maxErrors bounds the number of structural errors reported per artifact.
const maxErrors = 10

// ErrUnsupportedFormat indicates an output format the validator cannot
// handle.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Validator performs structural validation of artifact files against an
// output model. Safe for concurrent use.
type Validator struct{}

// New creates a structural validator.
func New() *Validator {
	return &Validator{}
}

// ValidateArtifact validates the artifact at path against the output model
// under the given format. Content problems are reported through the
// result; the error return is reserved for infrastructure faults such as
// an unreadable file or an uncompilable schema.
func (v *Validator) ValidateArtifact(path string, model models.OutputModel, format models.OutputFormat) (*models.ValidationResult, error) {
	schema, err := compileSchema(model.Schema)
	if err != nil {
		return nil, fmt.Errorf("compile output model schema: %w", err)
	}

	switch format {
	case models.FormatJSON:
		return v.validateJSON(path, schema)
	case models.FormatJSONL:
		return v.validateJSONL(path, schema)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func (v *Validator) validateJSON(path string, schema *jsonschema.Schema) (*models.ValidationResult, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return &models.ValidationResult{
			Valid:  false,
			Errors: []string{"invalid JSON: " + err.Error()},
		}, nil
	}

	if err := schema.Validate(decoded); err != nil {
		return &models.ValidationResult{
			Valid:  false,
			Errors: formatSchemaError(err, ""),
		}, nil
	}

	result := &models.ValidationResult{Valid: true, ItemCount: 1}
	if item, ok := decoded.(map[string]any); ok {
		result.Sample = buildSample([]map[string]any{item})
	}
	return result, nil
}

func (v *Validator) validateJSONL(path string, schema *jsonschema.Schema) (*models.ValidationResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	defer file.Close()

	var (
		errs      []string
		itemCount int
		sample    []map[string]any
		truncated bool
	)

	// Error collection stops at the budget, but the scan keeps going so
	// the valid-item count covers the whole artifact.
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var decoded any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			if len(errs) < maxErrors {
				errs = append(errs, fmt.Sprintf("line %d: invalid JSON: %v", lineNo, err))
			} else {
				truncated = true
			}
			continue
		}
		if err := schema.Validate(decoded); err != nil {
			for _, msg := range formatSchemaError(err, fmt.Sprintf("line %d: ", lineNo)) {
				if len(errs) < maxErrors {
					errs = append(errs, msg)
				} else {
					truncated = true
				}
			}
			continue
		}

		itemCount++
		if len(sample) < maxSampleItems {
			if item, ok := decoded.(map[string]any); ok {
				sample = append(sample, item)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	if truncated {
		errs = append(errs, fmt.Sprintf("... (stopped after %d errors)", maxErrors))
	}

	return &models.ValidationResult{
		Valid:     len(errs) == 0,
		ItemCount: itemCount,
		Errors:    errs,
		Sample:    buildSample(sample),
	}, nil
}

// formatSchemaError flattens a schema validation error into
// "<dotted path>: <message>" strings, one per leaf cause.
func formatSchemaError(err error, prefix string) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{prefix + err.Error()}
	}

	leaves := leafCauses(ve)
	out := make([]string, 0, len(leaves))
	seen := make(map[string]struct{}, len(leaves))
	for _, leaf := range leaves {
		msg := fmt.Sprintf("%s%s: %s", prefix, pointerToPath(leaf.InstanceLocation), leaf.Message)
		if _, dup := seen[msg]; dup {
			continue
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}

func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, leafCauses(cause)...)
	}
	return out
}

// pointerToPath converts a JSON pointer like /nodes/0/temp_id into
// nodes[0].temp_id. The document root becomes "$".
func pointerToPath(pointer string) string {
	if pointer == "" || pointer == "/" {
		return "$"
	}
	var b strings.Builder
	for _, segment := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		if isIndex(segment) {
			b.WriteString("[" + segment + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(segment)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var schemaCache sync.Map

func compileSchema(schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("output_model.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
