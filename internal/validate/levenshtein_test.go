package validate

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"account_1", "acount_1", 1},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Fatalf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSuggestWithinDistance(t *testing.T) {
	got, ok := suggest("acount_1", []string{"account_1", "contact_1"})
	if !ok || got != "account_1" {
		t.Fatalf("suggest() = %q, %v; want account_1, true", got, ok)
	}
}

func TestSuggestRejectsDistantCandidates(t *testing.T) {
	if got, ok := suggest("warehouse_9", []string{"account_1", "contact_1"}); ok {
		t.Fatalf("expected no suggestion, got %q", got)
	}
}

func TestSuggestRejectsTies(t *testing.T) {
	// Both candidates are distance 1 away.
	if got, ok := suggest("node_x", []string{"node_a", "node_b"}); ok {
		t.Fatalf("expected no suggestion on tie, got %q", got)
	}
}

func TestSuggestPrefersStrictlyClosest(t *testing.T) {
	got, ok := suggest("node_1", []string{"node_12", "node_134"})
	if !ok || got != "node_12" {
		t.Fatalf("suggest() = %q, %v; want node_12, true", got, ok)
	}
}
