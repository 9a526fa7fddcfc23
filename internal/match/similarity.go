// Package match scores OCR output against expected field values.
package match

// Similarity returns a Ratcliff/Obershelp similarity ratio in [0, 1]:
// twice the number of matching characters divided by the total number of
// characters in both strings. Two empty strings are identical (1.0); an empty
// string against a non-empty one scores 0.0.
//
// Comparison is case-sensitive; callers wanting case-insensitive scores
// lowercase both sides first (see Fields).
func Similarity(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}
	matches := matchingRunes(ar, br)
	return 2.0 * float64(matches) / float64(total)
}

// matchingRunes counts matching characters by recursively splitting around
// the longest common block, mirroring difflib's SequenceMatcher.
func matchingRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Positions of each rune in b, for O(1) candidate lookup.
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	var count func(alo, ahi, blo, bhi int) int
	count = func(alo, ahi, blo, bhi int) int {
		besti, bestj, bestsize := findLongestMatch(a, b2j, alo, ahi, blo, bhi)
		if bestsize == 0 {
			return 0
		}
		total := bestsize
		total += count(alo, besti, blo, bestj)
		total += count(besti+bestsize, ahi, bestj+bestsize, bhi)
		return total
	}

	return count(0, len(a), 0, len(b))
}

// findLongestMatch locates the longest block common to a[alo:ahi] and
// b[blo:bhi]. Of all maximal blocks it prefers the one starting earliest in a,
// then earliest in b, which keeps match selection deterministic.
func findLongestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo

	// j2len[j] is the length of the match ending at a[i-1], b[j-1].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}

	return besti, bestj, bestsize
}
