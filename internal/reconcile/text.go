package reconcile

import "unicode"

// document is the canonical text prepared for rune-level matching.
// Matching arithmetic happens in runes; results are reported in bytes.
type document struct {
	text    string
	lower   []rune
	offsets []int // offsets[i] is the byte offset of rune i; offsets[len(lower)] == len(text)
}

func newDocument(s string) *document {
	d := &document{
		text:    s,
		lower:   make([]rune, 0, len(s)),
		offsets: make([]int, 0, len(s)+1),
	}
	for i, r := range s {
		d.offsets = append(d.offsets, i)
		d.lower = append(d.lower, unicode.ToLower(r))
	}
	d.offsets = append(d.offsets, len(s))
	return d
}

// runeLen returns the length of the text in runes
func (d *document) runeLen() int {
	return len(d.lower)
}

// span converts a rune range into a byte range and the matching substring
func (d *document) span(start, end int) (int, int, string) {
	bs, be := d.offsets[start], d.offsets[end]
	return bs, be, d.text[bs:be]
}

// lowerRunes lowercases s rune by rune so rune counts stay aligned
func lowerRunes(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, unicode.ToLower(r))
	}
	return out
}

// indexRunes returns the first index of needle in hay, or -1
func indexRunes(hay, needle []rune) int {
	n, m := len(hay), len(needle)
	if m == 0 {
		return 0
	}
outer:
	for i := 0; i+m <= n; i++ {
		for j := 0; j < m; j++ {
			if hay[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
