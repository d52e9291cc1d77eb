package reconcile

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/ppiankov/flagspan/internal/model"
	"github.com/ppiankov/flagspan/internal/sanitize"
)

func flag(text string, confidence int) model.FlagCandidate {
	return model.FlagCandidate{
		Kind:              model.KindGenericPhrasing,
		Severity:          model.SeverityMedium,
		ClaimedText:       text,
		ClaimedStartIndex: 999, // claimed offsets are never trusted
		ClaimedEndIndex:   1000,
		Confidence:        confidence,
		Explanation:       "explanation",
		Suggestion:        "suggestion",
	}
}

func assertValidSpan(t *testing.T, canonical string, r model.ResolvedFlag) {
	t.Helper()
	if r.ResolvedStartIndex < 0 || r.ResolvedStartIndex > r.ResolvedEndIndex || r.ResolvedEndIndex > len(canonical) {
		t.Fatalf("invalid span [%d,%d) for text of length %d", r.ResolvedStartIndex, r.ResolvedEndIndex, len(canonical))
	}
	if r.DocumentWide {
		return
	}
	if got := canonical[r.ResolvedStartIndex:r.ResolvedEndIndex]; got != r.ResolvedText {
		t.Errorf("resolved text %q does not match canonical slice %q", r.ResolvedText, got)
	}
}

func TestReconcile_ExactMatch(t *testing.T) {
	canonical := "The quick brown fox jumps over the lazy dog"
	r := New().ReconcileFlag(canonical, flag("quick brown fox", 80))

	if r.MatchStrategy != model.StrategyExact {
		t.Errorf("expected exact strategy, got %s", r.MatchStrategy)
	}
	if r.ResolvedStartIndex != 4 || r.ResolvedEndIndex != 19 {
		t.Errorf("expected [4,19), got [%d,%d)", r.ResolvedStartIndex, r.ResolvedEndIndex)
	}
	if r.AdjustedConfidence != 80 {
		t.Errorf("expected confidence unchanged at 80, got %d", r.AdjustedConfidence)
	}
	if r.Explanation != "explanation" || r.Suggestion != "suggestion" || r.ClaimedStartIndex != 999 {
		t.Error("expected candidate fields passed through unchanged")
	}
	assertValidSpan(t, canonical, r)
}

func TestReconcile_ExactMatchAfterSanitizingClaim(t *testing.T) {
	canonical := "Tom & Jerry are back"
	r := New().ReconcileFlag(canonical, flag("<b>Tom &amp; Jerry</b>", 70))

	if r.MatchStrategy != model.StrategyExact {
		t.Fatalf("expected exact strategy, got %s", r.MatchStrategy)
	}
	if r.ResolvedText != "Tom & Jerry" {
		t.Errorf("expected resolved text %q, got %q", "Tom & Jerry", r.ResolvedText)
	}
	if r.AdjustedConfidence != 70 {
		t.Errorf("expected unchanged confidence, got %d", r.AdjustedConfidence)
	}
}

func TestReconcile_CaseInsensitiveMatch(t *testing.T) {
	canonical := "The Quick Brown Fox"
	r := New().ReconcileFlag(canonical, flag("quick brown fox", 80))

	if r.MatchStrategy != model.StrategyCaseInsensitive {
		t.Fatalf("expected case-insensitive strategy, got %s", r.MatchStrategy)
	}
	if r.ResolvedStartIndex != 4 || r.ResolvedEndIndex != 19 {
		t.Errorf("expected [4,19), got [%d,%d)", r.ResolvedStartIndex, r.ResolvedEndIndex)
	}
	if r.ResolvedText != "Quick Brown Fox" {
		t.Errorf("expected original casing preserved, got %q", r.ResolvedText)
	}
	// Case differences always cost confidence
	if r.AdjustedConfidence != 60 {
		t.Errorf("expected penalized confidence 60, got %d", r.AdjustedConfidence)
	}
	assertValidSpan(t, canonical, r)
}

func TestReconcile_CaseInsensitiveMultibyte(t *testing.T) {
	canonical := "Café au lait est délicieux"
	r := New().ReconcileFlag(canonical, flag("CAFÉ AU LAIT", 90))

	if r.MatchStrategy != model.StrategyCaseInsensitive {
		t.Fatalf("expected case-insensitive strategy, got %s", r.MatchStrategy)
	}
	if r.ResolvedStartIndex != 0 || r.ResolvedEndIndex != 13 {
		t.Errorf("expected byte span [0,13), got [%d,%d)", r.ResolvedStartIndex, r.ResolvedEndIndex)
	}
	if r.ResolvedText != "Café au lait" {
		t.Errorf("expected %q, got %q", "Café au lait", r.ResolvedText)
	}
	assertValidSpan(t, canonical, r)
}

func TestReconcile_EntireTextShortcut(t *testing.T) {
	canonicals := []string{"", "short", "The quick brown fox jumps over the lazy dog"}

	for _, canonical := range canonicals {
		r := New().ReconcileFlag(canonical, flag("Entire text", 75))

		if !r.DocumentWide {
			t.Errorf("expected document-wide flag for %q", canonical)
		}
		if r.ResolvedStartIndex != 0 || r.ResolvedEndIndex != len(canonical) {
			t.Errorf("expected [0,%d), got [%d,%d)", len(canonical), r.ResolvedStartIndex, r.ResolvedEndIndex)
		}
		if r.ResolvedText != EntireTextSentinel {
			t.Errorf("expected sentinel text, got %q", r.ResolvedText)
		}
		if r.MatchStrategy != model.StrategyFallback {
			t.Errorf("expected fallback strategy, got %s", r.MatchStrategy)
		}
		if r.AdjustedConfidence != 75 {
			t.Errorf("expected unchanged confidence, got %d", r.AdjustedConfidence)
		}
	}
}

func TestReconcile_PreFilterTriggers(t *testing.T) {
	canonical := "Moreover, the committee carefully reviewed every proposal before the final vote took place in March."
	claims := []string{
		"Furthermore... in conclusion",
		"Formulaic transitions are used THROUGHOUT the essay",
		"A repeated Pattern of three-item lists",
		canonical + " and then some more words that were never there",
	}

	for _, claim := range claims {
		r := New().ReconcileFlag(canonical, flag(claim, 65))
		if !r.DocumentWide {
			t.Errorf("expected %q to be treated as document-wide", claim)
		}
	}
}

func TestReconcile_PreFilterLengthBoundary(t *testing.T) {
	canonical := "0123456789"

	// Exactly 80% of the text still runs the cascade
	atLimit := New().ReconcileFlag(canonical, flag("01234567", 80))
	if atLimit.DocumentWide || atLimit.MatchStrategy != model.StrategyExact {
		t.Errorf("expected exact match at the threshold, got %+v", atLimit)
	}
	if atLimit.ResolvedStartIndex != 0 || atLimit.ResolvedEndIndex != 8 {
		t.Errorf("expected span [0,8), got [%d,%d)", atLimit.ResolvedStartIndex, atLimit.ResolvedEndIndex)
	}

	overLimit := New().ReconcileFlag(canonical, flag("012345678", 80))
	if !overLimit.DocumentWide {
		t.Errorf("expected claim over the threshold to be document-wide, got %+v", overLimit)
	}
}

func TestReconcile_PreFilterMeasuresSanitizedClaim(t *testing.T) {
	canonical := "Tom & Jerry are back"
	claim := `<span class="hl"><b>Tom &amp; Jerry</b></span>`

	// The raw claim is longer than the text; the sanitized one is 11 runes
	r := New().ReconcileFlag(canonical, flag(claim, 70))
	if r.DocumentWide {
		t.Fatal("markup must not push a claim over the document-wide threshold")
	}
	if r.MatchStrategy != model.StrategyExact || r.ResolvedStartIndex != 0 || r.ResolvedEndIndex != 11 {
		t.Errorf("expected exact [0,11), got %s [%d,%d)", r.MatchStrategy, r.ResolvedStartIndex, r.ResolvedEndIndex)
	}
	assertValidSpan(t, canonical, r)
}

func TestReconcile_FuzzyWordOverlap(t *testing.T) {
	canonical := "Moreover, the committee carefully reviewed every proposal before the final vote took place in March."

	// 3 of 4 distinctive words near the anchor: 75% clears the 60% bar
	r := New().ReconcileFlag(canonical, flag("committee reviewed every suggestion", 80))

	if r.MatchStrategy != model.StrategyFuzzyWord {
		t.Fatalf("expected fuzzy strategy, got %s", r.MatchStrategy)
	}
	// Window starts 50 runes before the anchor, clamped to 0, and spans the claim length
	if r.ResolvedStartIndex != 0 || r.ResolvedEndIndex != 35 {
		t.Errorf("expected [0,35), got [%d,%d)", r.ResolvedStartIndex, r.ResolvedEndIndex)
	}
	if r.AdjustedConfidence != 60 {
		t.Errorf("expected penalized confidence 60, got %d", r.AdjustedConfidence)
	}
	assertValidSpan(t, canonical, r)
}

func TestReconcile_FuzzyWindowStartsBeforeAnchor(t *testing.T) {
	canonical := "Start of the document with plenty of neutral words before anything interesting happens at all. Later the committee carefully reviewed every single proposal on the table."
	r := New().ReconcileFlag(canonical, flag("committee reviewed every proposal", 80))

	if r.MatchStrategy != model.StrategyFuzzyWord {
		t.Fatalf("expected fuzzy strategy, got %s", r.MatchStrategy)
	}
	anchor := strings.Index(canonical, "committee")
	if r.ResolvedStartIndex != anchor-WindowRadius {
		t.Errorf("expected start %d, got %d", anchor-WindowRadius, r.ResolvedStartIndex)
	}
	if r.ResolvedEndIndex != 88 {
		t.Errorf("expected end 88, got %d", r.ResolvedEndIndex)
	}
	assertValidSpan(t, canonical, r)
}

func TestReconcile_LongestCommonPrefix(t *testing.T) {
	canonical := "In short, the quarterly numbers were strong across every region. Management expects the second half of the year to be slower, but remains confident in its guidance."
	claim := "the quarterly numbers beat forecasts despite supply chain turbulence and rising costs"

	r := New().ReconcileFlag(canonical, flag(claim, 90))

	if r.MatchStrategy != model.StrategyLongestCommon {
		t.Fatalf("expected longest-common-substring strategy, got %s", r.MatchStrategy)
	}
	if r.ResolvedStartIndex != 10 || r.ResolvedEndIndex != 32 {
		t.Errorf("expected [10,32), got [%d,%d)", r.ResolvedStartIndex, r.ResolvedEndIndex)
	}
	if r.ResolvedText != "the quarterly numbers " {
		t.Errorf("unexpected resolved text %q", r.ResolvedText)
	}
	if r.AdjustedConfidence != 70 {
		t.Errorf("expected confidence 70, got %d", r.AdjustedConfidence)
	}
	assertValidSpan(t, canonical, r)
}

func TestReconcile_LongestCommonPrefixTieGoesToEarliest(t *testing.T) {
	canonical := "Alpha beta gamma delta appear first here. Then a long stretch of unrelated filler words keeps the two mentions far apart from each other so windows differ. Finally alpha beta gamma delta appear again."
	claim := "alpha beta gamma delta xqzv wvut tsrq ponm mlkj jihg gfed dcba"

	r := New().ReconcileFlag(canonical, flag(claim, 80))

	if r.MatchStrategy != model.StrategyLongestCommon {
		t.Fatalf("expected longest-common-substring strategy, got %s", r.MatchStrategy)
	}
	if r.ResolvedStartIndex != 0 || r.ResolvedEndIndex != 23 {
		t.Errorf("expected earliest match [0,23), got [%d,%d)", r.ResolvedStartIndex, r.ResolvedEndIndex)
	}
}

func TestReconcile_FallbackForUnrelatedText(t *testing.T) {
	canonical := "Moreover, the committee carefully reviewed every proposal before the final vote took place in March."
	r := New().ReconcileFlag(canonical, flag("committee rejected a single idea quickly", 80))

	if r.MatchStrategy != model.StrategyFallback {
		t.Fatalf("expected fallback strategy, got %s", r.MatchStrategy)
	}
	if r.DocumentWide {
		t.Error("cascade fallback must not be marked document-wide")
	}
	if r.ResolvedStartIndex != 0 || r.ResolvedEndIndex != 40 {
		t.Errorf("expected [0,40), got [%d,%d)", r.ResolvedStartIndex, r.ResolvedEndIndex)
	}
	assertValidSpan(t, canonical, r)

	// Claims built only from short words and absent letters still resolve
	r = New().ReconcileFlag("hello world", flag("an", 80))
	if r.MatchStrategy != model.StrategyFallback || r.ResolvedText != "he" {
		t.Errorf("expected fallback to %q, got %s %q", "he", r.MatchStrategy, r.ResolvedText)
	}
}

func TestReconcile_EmptyInputs(t *testing.T) {
	r := New().ReconcileFlag("", flag("", 80))
	assertValidSpan(t, "", r)
	if r.MatchStrategy != model.StrategyExact || r.AdjustedConfidence != 80 {
		t.Errorf("expected empty claim to match exactly, got %s (%d)", r.MatchStrategy, r.AdjustedConfidence)
	}

	if got := New().Reconcile("text", nil); len(got) != 0 {
		t.Errorf("expected no results for no flags, got %d", len(got))
	}
}

func TestAdjustConfidence(t *testing.T) {
	tests := []struct {
		confidence int
		resolved   string
		claimed    string
		want       int
	}{
		{90, "same", "same", 90},
		{90, "Same", "same", 70},
		{60, "other", "same", 50},
		{50, "other", "same", 50},
		{30, "other", "same", 30}, // never raised above the original
		{100, " same ", "same", 100},
	}

	for _, tt := range tests {
		if got := adjustConfidence(tt.confidence, tt.resolved, tt.claimed); got != tt.want {
			t.Errorf("adjustConfidence(%d, %q, %q) = %d, want %d", tt.confidence, tt.resolved, tt.claimed, got, tt.want)
		}
	}
}

func TestReconcile_PreservesOrder(t *testing.T) {
	canonical := "The quick brown fox jumps over the lazy dog"
	flags := []model.FlagCandidate{
		flag("lazy dog", 80),
		flag("Entire text", 70),
		flag("quick", 60),
	}

	results := New().Reconcile(canonical, flags)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := range flags {
		if results[i].ClaimedText != flags[i].ClaimedText {
			t.Errorf("result %d out of order: %q", i, results[i].ClaimedText)
		}
	}
}

func TestReconcileConcurrent_MatchesSequential(t *testing.T) {
	canonical := "Moreover, the committee carefully reviewed every proposal before the final vote took place in March. The Quick Brown Fox was not involved."
	var flags []model.FlagCandidate
	for i := 0; i < 40; i++ {
		switch i % 4 {
		case 0:
			flags = append(flags, flag("final vote", 80))
		case 1:
			flags = append(flags, flag("quick brown fox", 75))
		case 2:
			flags = append(flags, flag("committee reviewed every suggestion", 70))
		default:
			flags = append(flags, flag("Entire text", 65))
		}
	}

	want := New().Reconcile(canonical, flags)
	got := New(WithWorkers(8)).ReconcileConcurrent(context.Background(), canonical, flags)

	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d differs: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReconcileConcurrent_CancelledContextStillResolves(t *testing.T) {
	canonical := "The quick brown fox jumps over the lazy dog"
	flags := []model.FlagCandidate{flag("quick brown fox", 80), flag("lazy dog", 80), flag("over", 80)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := New(WithWorkers(2)).ReconcileConcurrent(ctx, canonical, flags)
	if len(results) != len(flags) {
		t.Fatalf("expected %d results, got %d", len(flags), len(results))
	}
	for i, r := range results {
		assertValidSpan(t, canonical, r)
		if r.ClaimedText != flags[i].ClaimedText {
			t.Errorf("result %d out of order", i)
		}
	}
}

// exhaustivePrefixSearch is the literal O(n*m^2) search the prefix tier must agree with
func exhaustivePrefixSearch(text, claim string) (int, int) {
	lt, lc := []rune(strings.ToLower(text)), []rune(strings.ToLower(claim))
	n, m := len(lt), len(lc)
	minLen := minMatchLength(m)
	bestStart, bestLen := -1, 0
	for i := 0; i < n; i++ {
		for j := minLen; j <= m && i+j <= n; j++ {
			if string(lt[i:i+j]) == string(lc[:j]) && j > bestLen {
				bestStart, bestLen = i, j
			}
		}
	}
	return bestStart, bestLen
}

func TestMatchLongestPrefix_AgreesWithExhaustiveSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abAB c")

	randomText := func(n int) string {
		out := make([]rune, n)
		for i := range out {
			out[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(out)
	}

	for iter := 0; iter < 300; iter++ {
		text := randomText(5 + rng.Intn(60))
		claim := randomText(1 + rng.Intn(25))

		sp, ok := matchLongestPrefix(newDocument(text), newDocument(claim))
		wantStart, wantLen := exhaustivePrefixSearch(text, claim)

		if !ok {
			if wantStart >= 0 && wantLen > 0 {
				t.Fatalf("text %q claim %q: expected match at %d len %d, got none", text, claim, wantStart, wantLen)
			}
			continue
		}
		if sp.start != wantStart || sp.end-sp.start != wantLen {
			t.Fatalf("text %q claim %q: got [%d,+%d), want [%d,+%d)", text, claim, sp.start, sp.end-sp.start, wantStart, wantLen)
		}
	}
}

func TestReconcile_OffsetInvariantHoldsForArbitraryInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"the", "Quick", "brown", "fox", "über", "naïve", "<b>", "&amp;", "pattern", "a", "de", "ça", "日本"}

	phrase := func(n int) string {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = words[rng.Intn(len(words))]
		}
		return strings.Join(parts, " ")
	}

	r := New()
	for iter := 0; iter < 200; iter++ {
		canonical := sanitize.Sanitize(phrase(5 + rng.Intn(40)))
		res := r.ReconcileFlag(canonical, flag(phrase(1+rng.Intn(8)), 40+rng.Intn(61)))

		assertValidSpan(t, canonical, res)
		if res.AdjustedConfidence > res.Confidence {
			t.Fatalf("adjusted confidence %d exceeds original %d", res.AdjustedConfidence, res.Confidence)
		}
		if res.Confidence >= ConfidenceFloor && res.AdjustedConfidence < ConfidenceFloor {
			t.Fatalf("adjusted confidence %d below floor", res.AdjustedConfidence)
		}
		if res.MatchStrategy == model.StrategyExact && res.AdjustedConfidence != res.Confidence {
			t.Fatalf("exact match must keep confidence")
		}
	}
}
