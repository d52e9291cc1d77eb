package reconcile

import (
	"math"
	"unicode/utf8"

	"github.com/ppiankov/flagspan/internal/sanitize"
)

// matchCaseInsensitive finds the first case-folded occurrence of the claim.
// The reported span addresses the original-case text.
func matchCaseInsensitive(doc, claim *document) (span, bool) {
	start := indexRunes(doc.lower, claim.lower)
	if start < 0 {
		return span{}, false
	}
	return span{start: start, end: start + claim.runeLen()}, true
}

// matchFuzzyWords anchors on the first distinctive claim word and accepts the
// surrounding window when enough of the other distinctive words appear in it.
func matchFuzzyWords(doc, claim *document) (span, bool) {
	words := distinctiveWords(claim.text)
	if len(words) == 0 {
		return span{}, false
	}

	anchor := indexRunes(doc.lower, lowerRunes(words[0]))
	if anchor < 0 {
		return span{}, false
	}

	claimLen := claim.runeLen()
	windowStart := max(0, anchor-WindowRadius)
	windowEnd := min(doc.runeLen(), anchor+claimLen+WindowRadius)
	window := doc.lower[windowStart:windowEnd]

	found := 0
	for _, w := range words {
		if indexRunes(window, lowerRunes(w)) >= 0 {
			found++
		}
	}

	if float64(found)/float64(len(words)) < FuzzyThreshold {
		return span{}, false
	}

	return span{start: windowStart, end: min(windowEnd, windowStart+claimLen)}, true
}

// distinctiveWords drops words too short to identify a location
func distinctiveWords(s string) []string {
	var words []string
	for _, w := range sanitize.Words(s) {
		if utf8.RuneCountInString(w) >= MinWordLength {
			words = append(words, w)
		}
	}
	return words
}

// minMatchLength is the shortest prefix match accepted for a claim of the given length
func minMatchLength(claimLen int) int {
	return min(MinMatchCap, int(math.Floor(MinMatchRatio*float64(claimLen))))
}

// matchLongestPrefix finds the longest text substring that case-insensitively
// equals a prefix of the claim. Starts are scanned in ascending order and only
// a strictly longer match replaces the best one, so ties go to the earliest start.
//
// For a fixed start, matching prefixes are downward-closed: if claim[:j]
// matches then every shorter prefix does. The longest common prefix at each
// start is therefore exactly the largest j an exhaustive length scan would accept.
func matchLongestPrefix(doc, claim *document) (span, bool) {
	n, m := doc.runeLen(), claim.runeLen()
	minLen := minMatchLength(m)

	bestStart, bestLen := -1, 0
	for i := 0; i < n; i++ {
		limit := min(m, n-i)
		if limit < minLen || limit <= bestLen {
			continue
		}

		l := 0
		for l < limit && doc.lower[i+l] == claim.lower[l] {
			l++
		}

		if l >= minLen && l > bestLen {
			bestStart, bestLen = i, l
		}
	}

	if bestStart < 0 {
		return span{}, false
	}
	return span{start: bestStart, end: bestStart + bestLen}, true
}
