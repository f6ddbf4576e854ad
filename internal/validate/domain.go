package validate

import (
	"encoding/json"

	"github.com/haasonsaas/graphloom/pkg/models"
)

// Domain validation bounds.
const (
	maxDomainErrors   = 10
	maxContextEntries = 5
)

// DomainValidator inspects parsed artifact items and returns structured
// issues. Error-severity issues block the run at the final gate; warnings
// pass through.
type DomainValidator func(items []map[string]any) []models.CustomValidationError

// SeedCheck is one semantic check over decoded seed data.
type SeedCheck func(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError

// ComposeSeedChecks runs checks left to right, truncating each issue's
// context arrays, and stops once accumulated error-severity issues reach
// maxDomainErrors.
func ComposeSeedChecks(data *models.SeedData, schema *models.GraphSchema, checks ...SeedCheck) []models.CustomValidationError {
	var issues []models.CustomValidationError
	errorCount := 0
	for _, check := range checks {
		if errorCount >= maxDomainErrors {
			break
		}
		for _, issue := range check(data, schema) {
			if issue.Severity == models.SeverityError {
				if errorCount >= maxDomainErrors {
					continue
				}
				errorCount++
			}
			issue.Context = truncateContext(issue.Context)
			issues = append(issues, issue)
		}
	}
	return issues
}

// SeedValidator adapts the seed-data check suite to the generic
// DomainValidator shape. The artifact is expected to hold one seed-data
// object as its sole item.
func SeedValidator(schema *models.GraphSchema) DomainValidator {
	return func(items []map[string]any) []models.CustomValidationError {
		if len(items) == 0 {
			return []models.CustomValidationError{{
				Path:     "$",
				Message:  "seed data artifact is empty",
				Code:     "empty_seed_data",
				Severity: models.SeverityWarning,
			}}
		}

		data, err := decodeSeedData(items[0])
		if err != nil {
			return []models.CustomValidationError{{
				Path:     "$",
				Message:  "seed data does not decode: " + err.Error(),
				Code:     "invalid_seed_data",
				Severity: models.SeverityError,
			}}
		}
		return ValidateSeedData(data, schema)
	}
}

// ValidateSeedData runs the full seed-data check suite: blocking checks
// first, then non-blocking aggregate warnings.
func ValidateSeedData(data *models.SeedData, schema *models.GraphSchema) []models.CustomValidationError {
	return ComposeSeedChecks(data, schema,
		checkDuplicateTempIDs,
		checkSelfLoopEdges,
		checkDuplicateEdges,
		checkNodeTypes,
		checkEdgeTypes,
		checkTempIDReferences,
		checkEdgeConnectivity,
		checkRequiredFields,
		checkUnknownPropertyKeys,
		checkEnumValues,
		checkStatus,
		checkDatetimes,
		checkNumbers,
		checkArrays,
		checkUniqueValues,
		warnEmptySeedData,
		warnOrphanNodes,
		warnLowEdgeDensity,
	)
}

// HasBlockingIssues reports whether any issue carries error severity.
func HasBlockingIssues(issues []models.CustomValidationError) bool {
	for _, issue := range issues {
		if issue.Severity == models.SeverityError {
			return true
		}
	}
	return false
}

func decodeSeedData(item map[string]any) (*models.SeedData, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	var data models.SeedData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// truncateContext cuts every array-valued context entry to
// maxContextEntries elements plus an ellipsis marker.
func truncateContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for key, value := range ctx {
		switch v := value.(type) {
		case []string:
			if len(v) > maxContextEntries {
				cut := make([]string, maxContextEntries, maxContextEntries+1)
				copy(cut, v[:maxContextEntries])
				out[key] = append(cut, "...")
				continue
			}
			out[key] = v
		case []any:
			if len(v) > maxContextEntries {
				cut := make([]any, maxContextEntries, maxContextEntries+1)
				copy(cut, v[:maxContextEntries])
				out[key] = append(cut, "...")
				continue
			}
			out[key] = v
		default:
			out[key] = value
		}
	}
	return out
}
