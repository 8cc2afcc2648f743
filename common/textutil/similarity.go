package textutil

// Similarity computes a normalized similarity score in [0,1] between two
// strings: 1 minus the Levenshtein edit distance divided by the longer
// length, computed over runes so multi-byte scripts are not penalized.
// Two empty strings are identical (similarity 1).
//
// The repetition guard compares consecutive replies with this function; it
// is deliberately character-based rather than semantic — near-verbatim
// repeats are what the guard is after.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein returns the edit distance between two rune slices using the
// classic two-row dynamic program. Reply texts are short (a few hundred
// runes), so the quadratic cost is irrelevant here.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
