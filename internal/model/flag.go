package model

import "strings"

// FlagKind categorizes a detected writing pattern
type FlagKind string

const (
	KindRepetitiveStructure   FlagKind = "repetitive_structure"    // Same sentence shape repeated
	KindBuzzwordHeavy         FlagKind = "buzzword_heavy"          // Dense marketing vocabulary
	KindFormulaicTransition   FlagKind = "formulaic_transition"    // "Furthermore", "In conclusion", ...
	KindHedgingLanguage       FlagKind = "hedging_language"        // Excessive qualifiers
	KindUniformSentenceLength FlagKind = "uniform_sentence_length" // Low burstiness
	KindGenericPhrasing       FlagKind = "generic_phrasing"        // Empty, interchangeable statements
	KindExcessiveFormality    FlagKind = "excessive_formality"     // Register too stiff for context
	KindLackOfPersonalVoice   FlagKind = "lack_of_personal_voice"  // No opinion, anecdote or idiom
	KindOther                 FlagKind = "other"
)

var knownKinds = map[FlagKind]bool{
	KindRepetitiveStructure:   true,
	KindBuzzwordHeavy:         true,
	KindFormulaicTransition:   true,
	KindHedgingLanguage:       true,
	KindUniformSentenceLength: true,
	KindGenericPhrasing:       true,
	KindExcessiveFormality:    true,
	KindLackOfPersonalVoice:   true,
	KindOther:                 true,
}

// ParseFlagKind normalizes a kind reported upstream. Unknown kinds map to KindOther.
func ParseFlagKind(s string) FlagKind {
	k := FlagKind(strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))))
	if knownKinds[k] {
		return k
	}
	return KindOther
}

// Severity is an ordered rating: low < medium < high < critical
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the position of the severity in its ordering (0 for unknown)
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Less reports whether s orders before other
func (s Severity) Less(other Severity) bool {
	return s.Rank() < other.Rank()
}

// ParseSeverity normalizes a severity string. Unknown values map to medium.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Rank() == 0 {
		return SeverityMedium
	}
	return sev
}

// MatchStrategy records which cascade tier located a flag
type MatchStrategy string

const (
	StrategyExact           MatchStrategy = "exact"
	StrategyCaseInsensitive MatchStrategy = "case-insensitive"
	StrategyFuzzyWord       MatchStrategy = "fuzzy-word-overlap"
	StrategyLongestCommon   MatchStrategy = "longest-common-substring"
	StrategyFallback        MatchStrategy = "fallback"
)

// FlagCandidate is one detection result as reported by the upstream model.
// Claimed offsets are untrusted and never used for locating the span.
type FlagCandidate struct {
	Kind              FlagKind `json:"type" yaml:"type"`
	Severity          Severity `json:"severity" yaml:"severity"`
	ClaimedText       string   `json:"text" yaml:"text"`
	ClaimedStartIndex int      `json:"startIndex" yaml:"startIndex"`
	ClaimedEndIndex   int      `json:"endIndex" yaml:"endIndex"`
	Confidence        int      `json:"confidence" yaml:"confidence"` // 0-100
	Explanation       string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Suggestion        string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// ResolvedFlag is a FlagCandidate with its span located in the canonical text.
// Offsets are byte offsets into the canonical text: 0 <= start <= end <= len.
type ResolvedFlag struct {
	FlagCandidate `yaml:",inline"`

	ResolvedStartIndex int           `json:"resolvedStartIndex" yaml:"resolvedStartIndex"`
	ResolvedEndIndex   int           `json:"resolvedEndIndex" yaml:"resolvedEndIndex"`
	ResolvedText       string        `json:"resolvedText" yaml:"resolvedText"`
	MatchStrategy      MatchStrategy `json:"matchStrategy" yaml:"matchStrategy"`
	AdjustedConfidence int           `json:"adjustedConfidence" yaml:"adjustedConfidence"`

	// DocumentWide marks flags describing the whole text rather than a span.
	// Their ResolvedText is the "Entire text" sentinel, not a slice of the canonical text.
	DocumentWide bool `json:"documentWide,omitempty" yaml:"documentWide,omitempty"`
}

// Located reports whether a cascade tier other than fallback found the span
func (f ResolvedFlag) Located() bool {
	return !f.DocumentWide && f.MatchStrategy != StrategyFallback
}
