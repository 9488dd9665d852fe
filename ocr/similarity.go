package ocr

// ratcliffObershelp is the Gestalt pattern-matching score: twice the
// total length of the recursively matched common substrings over the
// combined length. Implements strutil.StringMetric.
type ratcliffObershelp struct{}

func (ratcliffObershelp) Compare(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 2 * float64(matchedRunes(ra, rb)) / float64(len(ra)+len(rb))
}

// matchedRunes counts the longest common substring, then recurses into
// the unmatched stretches on each side of it.
func matchedRunes(a, b []rune) int {
	ai, bi, size := longestCommonRun(a, b)
	if size == 0 {
		return 0
	}
	return size + matchedRunes(a[:ai], b[:bi]) + matchedRunes(a[ai+size:], b[bi+size:])
}

func longestCommonRun(a, b []rune) (ai, bi, size int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] != b[j-1] {
				cur[j] = 0
				continue
			}
			cur[j] = prev[j-1] + 1
			if cur[j] > size {
				size = cur[j]
				ai = i - size
				bi = j - size
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}
