package score

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/ppiankov/flagspan/internal/model"
)

// severityWeights are the index points a flag of each severity contributes at 100% confidence
var severityWeights = map[model.Severity]float64{
	model.SeverityLow:      5,
	model.SeverityMedium:   10,
	model.SeverityHigh:     20,
	model.SeverityCritical: 30,
}

// Scorer calculates the machine-likeness index and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate scores resolved flags against the canonical text they address
func (s *Scorer) Calculate(canonical string, flags []model.ResolvedFlag) model.Score {
	textLen := utf8.RuneCountInString(canonical)

	signals := []model.Signal{
		s.flagDensity(textLen, flags),
		s.spanCoverage(canonical, textLen, flags),
		s.matchQuality(flags),
		s.severityMix(flags),
	}
	if signal, ok := s.documentWide(flags); ok {
		signals = append(signals, signal)
	}

	index := s.index(flags)

	return model.Score{
		Index:      index,
		Confidence: s.determineConfidence(flags),
		Signals:    signals,
	}
}

// index sums severity weight scaled by adjusted confidence, capped at 100
func (s *Scorer) index(flags []model.ResolvedFlag) int {
	var total float64
	for _, f := range flags {
		weight, ok := severityWeights[f.Severity]
		if !ok {
			weight = severityWeights[model.SeverityMedium]
		}
		total += weight * float64(f.AdjustedConfidence) / 100
	}
	return int(math.Min(math.Round(total), 100))
}

// flagDensity reports flags per 1000 characters
func (s *Scorer) flagDensity(textLen int, flags []model.ResolvedFlag) model.Signal {
	if textLen == 0 {
		return model.Signal{
			Type:        model.SignalFlagDensity,
			Severity:    model.SignalInfo,
			Description: "Empty text",
			Data:        map[string]interface{}{"flags": len(flags), "characters": 0},
		}
	}

	density := float64(len(flags)) / float64(textLen) * 1000

	severity := model.SignalInfo
	if density > 5 {
		severity = model.SignalCritical
	} else if density > 2 {
		severity = model.SignalWarning
	}

	return model.Signal{
		Type:        model.SignalFlagDensity,
		Severity:    severity,
		Description: fmt.Sprintf("%d flags in %d characters (%.2f per 1000)", len(flags), textLen, density),
		Data: map[string]interface{}{
			"flags":      len(flags),
			"characters": textLen,
			"density":    density,
			"formula":    "flags / characters * 1000",
		},
	}
}

// spanCoverage reports the share of the text covered by located spans, overlaps merged
func (s *Scorer) spanCoverage(canonical string, textLen int, flags []model.ResolvedFlag) model.Signal {
	covered := 0
	for _, span := range mergeSpans(flags) {
		covered += utf8.RuneCountInString(canonical[span[0]:span[1]])
	}

	ratio := 0.0
	if textLen > 0 {
		ratio = float64(covered) / float64(textLen)
	}

	severity := model.SignalInfo
	if ratio > 0.5 {
		severity = model.SignalCritical
	} else if ratio > 0.2 {
		severity = model.SignalWarning
	}

	return model.Signal{
		Type:        model.SignalSpanCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Flagged spans cover %.0f%% of the text", ratio*100),
		Data: map[string]interface{}{
			"covered_characters": covered,
			"characters":         textLen,
			"ratio":              ratio,
			"formula":            "merged located span characters / characters",
		},
	}
}

// matchQuality reports how reliably flag quotes were found in the text
func (s *Scorer) matchQuality(flags []model.ResolvedFlag) model.Signal {
	counts := make(map[model.MatchStrategy]int)
	spans := 0
	for _, f := range flags {
		if f.DocumentWide {
			continue
		}
		counts[f.MatchStrategy]++
		spans++
	}

	if spans == 0 {
		return model.Signal{
			Type:        model.SignalMatchQuality,
			Severity:    model.SignalInfo,
			Description: "No span flags to locate",
			Data:        map[string]interface{}{"spans": 0},
		}
	}

	inexact := spans - counts[model.StrategyExact]
	inexactRatio := float64(inexact) / float64(spans)
	fallbackRatio := float64(counts[model.StrategyFallback]) / float64(spans)

	severity := model.SignalInfo
	if fallbackRatio > 0.5 {
		severity = model.SignalCritical
	} else if inexactRatio > 0.5 {
		severity = model.SignalWarning
	}

	data := map[string]interface{}{
		"spans":          spans,
		"inexact":        inexact,
		"inexact_ratio":  inexactRatio,
		"fallback_ratio": fallbackRatio,
		"formula":        "non-exact spans / spans",
	}
	for strategy, n := range counts {
		data[string(strategy)] = n
	}

	return model.Signal{
		Type:        model.SignalMatchQuality,
		Severity:    severity,
		Description: fmt.Sprintf("%d/%d quotes located exactly, %d by fallback", counts[model.StrategyExact], spans, counts[model.StrategyFallback]),
		Data:        data,
	}
}

// severityMix reports the distribution of flag severities
func (s *Scorer) severityMix(flags []model.ResolvedFlag) model.Signal {
	counts := map[model.Severity]int{}
	var highest model.Severity
	for _, f := range flags {
		counts[f.Severity]++
		if highest.Less(f.Severity) {
			highest = f.Severity
		}
	}

	severity := model.SignalInfo
	switch highest {
	case model.SeverityCritical:
		severity = model.SignalCritical
	case model.SeverityHigh:
		severity = model.SignalWarning
	}

	return model.Signal{
		Type:     model.SignalSeverityMix,
		Severity: severity,
		Description: fmt.Sprintf("Severities: %d critical, %d high, %d medium, %d low",
			counts[model.SeverityCritical], counts[model.SeverityHigh], counts[model.SeverityMedium], counts[model.SeverityLow]),
		Data: map[string]interface{}{
			"critical": counts[model.SeverityCritical],
			"high":     counts[model.SeverityHigh],
			"medium":   counts[model.SeverityMedium],
			"low":      counts[model.SeverityLow],
			"highest":  string(highest),
		},
	}
}

// documentWide reports patterns describing the whole text; ok is false when there are none
func (s *Scorer) documentWide(flags []model.ResolvedFlag) (model.Signal, bool) {
	var kinds []string
	for _, f := range flags {
		if f.DocumentWide {
			kinds = append(kinds, string(f.Kind))
		}
	}
	if len(kinds) == 0 {
		return model.Signal{}, false
	}

	return model.Signal{
		Type:        model.SignalDocumentWide,
		Severity:    model.SignalWarning,
		Description: fmt.Sprintf("%d patterns span the whole document", len(kinds)),
		Data: map[string]interface{}{
			"count": len(kinds),
			"kinds": kinds,
		},
	}, true
}

// determineConfidence rates how much the index can be trusted
func (s *Scorer) determineConfidence(flags []model.ResolvedFlag) string {
	if len(flags) == 0 {
		return "low"
	}

	located := 0
	for _, f := range flags {
		if f.DocumentWide || f.MatchStrategy != model.StrategyFallback {
			located++
		}
	}
	ratio := float64(located) / float64(len(flags))

	if ratio < 0.5 {
		return "low"
	}
	if len(flags) >= 3 && ratio >= 0.8 {
		return "high"
	}
	return "medium"
}

// mergeSpans returns the located byte spans sorted and with overlaps merged
func mergeSpans(flags []model.ResolvedFlag) [][2]int {
	var spans [][2]int
	for _, f := range flags {
		if !f.Located() || f.ResolvedEndIndex <= f.ResolvedStartIndex {
			continue
		}
		spans = append(spans, [2]int{f.ResolvedStartIndex, f.ResolvedEndIndex})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })

	var merged [][2]int
	for _, span := range spans {
		if n := len(merged); n > 0 && span[0] <= merged[n-1][1] {
			merged[n-1][1] = max(merged[n-1][1], span[1])
			continue
		}
		merged = append(merged, span)
	}
	return merged
}
