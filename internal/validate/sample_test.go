package validate

import (
	"strings"
	"testing"
)

func TestBuildSampleLimitsItems(t *testing.T) {
	items := []map[string]any{
		{"n": 1}, {"n": 2}, {"n": 3}, {"n": 4},
	}
	sample := buildSample(items)
	if len(sample) != maxSampleItems {
		t.Fatalf("sample length = %d, want %d", len(sample), maxSampleItems)
	}
}

func TestBuildSampleTruncatesArrays(t *testing.T) {
	items := []map[string]any{
		{"tags": []any{"a", "b", "c", "d", "e"}},
	}
	sample := buildSample(items)
	tags, ok := sample[0]["tags"].([]any)
	if !ok {
		t.Fatalf("tags has unexpected type %T", sample[0]["tags"])
	}
	if len(tags) != maxSampleArrayLen {
		t.Fatalf("tags length = %d, want %d", len(tags), maxSampleArrayLen)
	}
	if sample[0]["_tags_count"] != 5 {
		t.Fatalf("_tags_count = %v, want 5", sample[0]["_tags_count"])
	}
	if sample[0]["_tags_truncated"] != true {
		t.Fatal("_tags_truncated not set")
	}
}

func TestBuildSampleTruncatesStrings(t *testing.T) {
	long := strings.Repeat("x", maxSampleStringLen+100)
	sample := buildSample([]map[string]any{{"body": long}})
	body, ok := sample[0]["body"].(string)
	if !ok {
		t.Fatalf("body has unexpected type %T", sample[0]["body"])
	}
	if len(body) != maxSampleStringLen+3 {
		t.Fatalf("body length = %d, want %d", len(body), maxSampleStringLen+3)
	}
	if !strings.HasSuffix(body, "...") {
		t.Fatal("expected truncation suffix")
	}
}

func TestBuildSampleDropsOversizedItems(t *testing.T) {
	// Many medium-sized fields per item so one item stays under the
	// budget but two together exceed it.
	big := func() map[string]any {
		item := make(map[string]any)
		for i := 0; i < 60; i++ {
			item[strings.Repeat("k", 3)+string(rune('a'+i%26))+string(rune('a'+i/26))] = strings.Repeat("v", 490)
		}
		return item
	}
	sample := buildSample([]map[string]any{big(), big(), big()})
	if len(sample) == 0 || len(sample) == 3 {
		t.Fatalf("sample length = %d, want a truncated non-empty sample", len(sample))
	}
}

func TestBuildSampleNestedObjects(t *testing.T) {
	items := []map[string]any{
		{"outer": map[string]any{"inner": []any{"a", "b", "c", "d"}}},
	}
	sample := buildSample(items)
	outer := sample[0]["outer"].(map[string]any)
	inner := outer["inner"].([]any)
	if len(inner) != maxSampleArrayLen {
		t.Fatalf("inner length = %d, want %d", len(inner), maxSampleArrayLen)
	}
}
