package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/flagspan/internal/model"
)

const (
	// MaxFlags is the number of flags the prompt asks for at most
	MaxFlags = 8

	// MaxQuoteLength bounds quoted passages, in characters
	MaxQuoteLength = 100
)

// BuildPrompt constructs the default detection prompt for a canonical text
func BuildPrompt(canonical string) string {
	kinds := []string{
		string(model.KindRepetitiveStructure),
		string(model.KindBuzzwordHeavy),
		string(model.KindFormulaicTransition),
		string(model.KindHedgingLanguage),
		string(model.KindUniformSentenceLength),
		string(model.KindGenericPhrasing),
		string(model.KindExcessiveFormality),
		string(model.KindLackOfPersonalVoice),
	}

	return fmt.Sprintf(`Analyze the text below for signs that it was machine-generated.

RULES:
1. Report at most %d flags.
2. "text" MUST be copied verbatim from the input, at most %d characters.
3. For patterns spanning the whole document use "Entire text" as "text".
4. "type" is one of: %s.
5. "severity" is one of: low, medium, high, critical.
6. "confidence" and "ai_probability" are integers from 0 to 100.

Respond with a single JSON object and nothing else:
{"ai_probability": 0, "flags": [{"type": "", "severity": "", "text": "", "startIndex": 0, "endIndex": 0, "confidence": 0, "explanation": "", "suggestion": ""}]}

TEXT:
%s`, MaxFlags, MaxQuoteLength, strings.Join(kinds, ", "), canonical)
}

type rawDetection struct {
	AIProbability float64   `json:"ai_probability"`
	Flags         []rawFlag `json:"flags"`
}

type rawFlag struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Text        string  `json:"text"`
	StartIndex  int     `json:"startIndex"`
	EndIndex    int     `json:"endIndex"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	Suggestion  string  `json:"suggestion"`
}

// ParseDetection extracts the detection object from raw model output.
// Code fences and prose around the object are ignored.
func ParseDetection(raw string) (*DetectResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, ErrNoDetection
	}

	var det rawDetection
	if err := json.Unmarshal([]byte(raw[start:end+1]), &det); err != nil {
		return nil, fmt.Errorf("decode detection: %w", err)
	}

	resp := &DetectResponse{
		AIProbability: clampPercent(det.AIProbability),
		Flags:         make([]model.FlagCandidate, 0, len(det.Flags)),
	}
	for _, f := range det.Flags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		resp.Flags = append(resp.Flags, model.FlagCandidate{
			Kind:              model.ParseFlagKind(f.Type),
			Severity:          model.ParseSeverity(f.Severity),
			ClaimedText:       f.Text,
			ClaimedStartIndex: f.StartIndex,
			ClaimedEndIndex:   f.EndIndex,
			Confidence:        clampPercent(f.Confidence),
			Explanation:       f.Explanation,
			Suggestion:        f.Suggestion,
		})
	}

	return resp, nil
}

func clampPercent(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v + 0.5)
	}
}
