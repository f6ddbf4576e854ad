package validate

// maxSuggestDistance is the largest edit distance considered a plausible
// typo.
const maxSuggestDistance = 2

// suggest returns the candidate closest to target when its edit distance
// is at most maxSuggestDistance and strictly smaller than every other
// candidate's distance. Ties produce no suggestion.
func suggest(target string, candidates []string) (string, bool) {
	best := ""
	bestDistance := maxSuggestDistance + 1
	tie := false
	for _, candidate := range candidates {
		if candidate == target {
			continue
		}
		d := levenshtein(target, candidate)
		switch {
		case d < bestDistance:
			best, bestDistance, tie = candidate, d, false
		case d == bestDistance:
			tie = true
		}
	}
	if bestDistance > maxSuggestDistance || tie {
		return "", false
	}
	return best, true
}

// levenshtein computes the edit distance between two strings using two
// rolling rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
