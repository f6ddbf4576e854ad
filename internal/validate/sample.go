package validate

import (
	"encoding/json"
)

// Sample bounds keep serialised validation results inside the tool-result
// budget.
const (
	maxSampleItems     = 3
	maxSampleArrayLen  = 3
	maxSampleStringLen = 500
	maxSampleBytes     = 50 << 10
)

// buildSample returns up to maxSampleItems sanitised copies of the given
// items. Long arrays are cut to maxSampleArrayLen elements with
// _<field>_count and _<field>_truncated sibling markers, long strings are
// cut to maxSampleStringLen characters, and whole items are dropped from
// the tail until the serialised sample fits maxSampleBytes.
func buildSample(items []map[string]any) []map[string]any {
	if len(items) == 0 {
		return nil
	}
	if len(items) > maxSampleItems {
		items = items[:maxSampleItems]
	}

	sample := make([]map[string]any, 0, len(items))
	for _, item := range items {
		sample = append(sample, sanitizeObject(item))
	}

	for len(sample) > 0 {
		payload, err := json.Marshal(sample)
		if err == nil && len(payload) <= maxSampleBytes {
			return sample
		}
		sample = sample[:len(sample)-1]
	}
	return nil
}

func sanitizeObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		if arr, ok := value.([]any); ok && len(arr) > maxSampleArrayLen {
			truncated := make([]any, maxSampleArrayLen)
			for i := range truncated {
				truncated[i] = sanitizeValue(arr[i])
			}
			out[key] = truncated
			out["_"+key+"_count"] = len(arr)
			out["_"+key+"_truncated"] = true
			continue
		}
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case string:
		if len(v) > maxSampleStringLen {
			return v[:maxSampleStringLen] + "..."
		}
		return v
	case map[string]any:
		return sanitizeObject(v)
	case []any:
		limit := len(v)
		if limit > maxSampleArrayLen {
			limit = maxSampleArrayLen
		}
		out := make([]any, limit)
		for i := 0; i < limit; i++ {
			out[i] = sanitizeValue(v[i])
		}
		return out
	default:
		return value
	}
}
