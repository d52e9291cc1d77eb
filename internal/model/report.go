package model

import "time"

// Report is the complete result of analysing one document
type Report struct {
	Source     string    `json:"source"`      // File path, URL or "stdin"
	AnalyzedAt time.Time `json:"analyzed_at"` // When the analysis ran

	// Canonical is the sanitized text all flag offsets address
	Canonical string `json:"canonical"`

	Flags []ResolvedFlag `json:"flags"`
	Score Score          `json:"score"`

	Detection *DetectionMeta `json:"detection,omitempty"` // Present when flags came from a model
}

// DetectionMeta describes the upstream model call that produced the flags
type DetectionMeta struct {
	Provider      string `json:"provider"`
	Model         string `json:"model,omitempty"`
	AIProbability int    `json:"ai_probability"` // 0-100 as reported by the model
	TokensUsed    int    `json:"tokens_used,omitempty"`
	Cached        bool   `json:"cached"`
}

// Score represents the transparent scoring breakdown
type Score struct {
	Index      int      `json:"index"`      // Machine-likeness index (0-100, higher = more flagged)
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Signals    []Signal `json:"signals"`    // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalFlagDensity  SignalType = "flag_density"  // Flags per 1000 characters
	SignalSpanCoverage SignalType = "span_coverage" // Share of text covered by located spans
	SignalMatchQuality SignalType = "match_quality" // Share of spans located inexactly
	SignalSeverityMix  SignalType = "severity_mix"  // Distribution of flag severities
	SignalDocumentWide SignalType = "document_wide" // Patterns spanning the whole text
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SignalInfo     SignalSeverity = "info"
	SignalWarning  SignalSeverity = "warning"
	SignalCritical SignalSeverity = "critical"
)
