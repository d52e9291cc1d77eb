// Package reconcile locates approximately quoted flag text inside canonical
// text. Each flag runs through a cascade of matching tiers and always
// resolves to some span.
package reconcile

import (
	"strings"

	"github.com/ppiankov/flagspan/internal/logger"
	"github.com/ppiankov/flagspan/internal/model"
	"github.com/ppiankov/flagspan/internal/sanitize"
)

// Matching constants. These are part of the output contract; changing any of
// them changes which span is reported.
const (
	EntireTextSentinel = "Entire text"
	EntireTextRatio    = 0.8  // Claims longer than this share of the text are document-wide
	WindowRadius       = 50   // Runes of context on each side of the fuzzy anchor word
	FuzzyThreshold     = 0.6  // Share of distinctive words that must appear in the window
	MinWordLength      = 3    // Shorter words are not distinctive
	MinMatchCap        = 20   // Upper bound on the minimum prefix match length
	MinMatchRatio      = 0.3  // Minimum prefix match as a share of the claim length
	ConfidencePenalty  = 20   // Subtracted from confidence on inexact matches
	ConfidenceFloor    = 50   // Penalized confidence never drops below this
)

// Reconciler resolves flag candidates against canonical text. It holds no
// per-call state and is safe for concurrent use.
type Reconciler struct {
	workers int
	log     logger.Logger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithWorkers sets how many flags ReconcileConcurrent resolves in parallel
func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger attaches a logger for per-flag debug output
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a reconciler
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		workers: 1,
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile resolves every flag against canonical, preserving input order
func (r *Reconciler) Reconcile(canonical string, flags []model.FlagCandidate) []model.ResolvedFlag {
	doc := newDocument(canonical)
	resolved := make([]model.ResolvedFlag, len(flags))
	for i, flag := range flags {
		resolved[i] = r.resolve(doc, flag)
	}
	return resolved
}

// ReconcileFlag resolves a single flag against canonical
func (r *Reconciler) ReconcileFlag(canonical string, flag model.FlagCandidate) model.ResolvedFlag {
	return r.resolve(newDocument(canonical), flag)
}

// span is a rune range inside the document
type span struct {
	start, end int
}

func (r *Reconciler) resolve(doc *document, flag model.FlagCandidate) model.ResolvedFlag {
	claimed := sanitize.Sanitize(flag.ClaimedText)
	claim := newDocument(claimed)

	if isDocumentWide(flag.ClaimedText, claim.runeLen(), doc.runeLen()) {
		r.log.Debug("flag is document-wide",
			logger.String("kind", string(flag.Kind)),
			logger.Int("claimed_length", claim.runeLen()))
		return documentWide(doc, flag)
	}

	strategy := model.StrategyFallback
	var bs, be int
	var text string

	if start := strings.Index(doc.text, claimed); start >= 0 {
		strategy = model.StrategyExact
		bs, be, text = start, start+len(claimed), claimed
	} else {
		var sp span
		var ok bool
		if sp, ok = matchCaseInsensitive(doc, claim); ok {
			strategy = model.StrategyCaseInsensitive
		} else if sp, ok = matchFuzzyWords(doc, claim); ok {
			strategy = model.StrategyFuzzyWord
		} else if sp, ok = matchLongestPrefix(doc, claim); ok {
			strategy = model.StrategyLongestCommon
		} else {
			sp = span{start: 0, end: min(claim.runeLen(), doc.runeLen())}
		}
		bs, be, text = doc.span(sp.start, sp.end)
	}

	adjusted := adjustConfidence(flag.Confidence, text, claimed)

	r.log.Debug("flag reconciled",
		logger.String("kind", string(flag.Kind)),
		logger.String("strategy", string(strategy)),
		logger.Int("start", bs),
		logger.Int("end", be),
		logger.Int("confidence", adjusted))

	return model.ResolvedFlag{
		FlagCandidate:      flag,
		ResolvedStartIndex: bs,
		ResolvedEndIndex:   be,
		ResolvedText:       text,
		MatchStrategy:      strategy,
		AdjustedConfidence: adjusted,
	}
}

// isDocumentWide reports whether a claim describes the whole text rather than a span.
// Marker words are checked on the raw claim; the length threshold uses the
// sanitized claim so markup and entities do not inflate it.
func isDocumentWide(raw string, claimedRunes, textRunes int) bool {
	if raw == EntireTextSentinel || strings.Contains(raw, "...") {
		return true
	}

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "throughout") || strings.Contains(lower, "pattern") {
		return true
	}

	return float64(claimedRunes) > EntireTextRatio*float64(textRunes)
}

func documentWide(doc *document, flag model.FlagCandidate) model.ResolvedFlag {
	return model.ResolvedFlag{
		FlagCandidate:      flag,
		ResolvedStartIndex: 0,
		ResolvedEndIndex:   len(doc.text),
		ResolvedText:       EntireTextSentinel,
		MatchStrategy:      model.StrategyFallback,
		AdjustedConfidence: flag.Confidence,
		DocumentWide:       true,
	}
}

// adjustConfidence penalizes matches whose text differs from the claim.
// The comparison is case-sensitive, so case-insensitive matches are always penalized.
func adjustConfidence(confidence int, resolvedText, claimed string) int {
	if resolvedText == claimed || sanitize.Sanitize(resolvedText) == claimed {
		return confidence
	}

	adjusted := max(ConfidenceFloor, confidence-ConfidencePenalty)
	return min(adjusted, confidence)
}
