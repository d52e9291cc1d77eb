package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/flagspan/internal/llm"
	"github.com/ppiankov/flagspan/internal/model"
)

type mockDetector struct {
	resp *llm.DetectResponse
	err  error
	got  string
}

func (m *mockDetector) Detect(ctx context.Context, req llm.DetectRequest) (*llm.DetectResponse, error) {
	m.got = req.Text
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockDetector) ProviderName() string {
	return "mock"
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.HTTP.RespectRobots = false
	cfg.Cache.Enabled = false
	cfg.Output.Color = false
	return cfg
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(testConfig(), opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestAnalyze_GivenFlags(t *testing.T) {
	p := newTestPipeline(t)

	report, err := p.Analyze(context.Background(), Input{
		Source: "inline",
		Text:   "<p>The quick brown fox</p> jumps.",
		Flags: []model.FlagCandidate{
			{Kind: model.KindGenericPhrasing, Severity: model.SeverityMedium, ClaimedText: "quick brown", Confidence: 80},
		},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.Canonical != "The quick brown fox jumps." {
		t.Errorf("Unexpected canonical text %q", report.Canonical)
	}
	if report.Detection != nil {
		t.Error("Expected no detection metadata for given flags")
	}
	if len(report.Flags) != 1 {
		t.Fatalf("Expected 1 flag, got %d", len(report.Flags))
	}

	f := report.Flags[0]
	if f.MatchStrategy != model.StrategyExact || f.ResolvedStartIndex != 4 || f.ResolvedEndIndex != 15 {
		t.Errorf("Unexpected resolution: %+v", f)
	}
	if report.Canonical[f.ResolvedStartIndex:f.ResolvedEndIndex] != f.ResolvedText {
		t.Error("Resolved text must be the canonical slice")
	}

	// medium weight 10 at 80% confidence
	if report.Score.Index != 8 {
		t.Errorf("Expected index 8, got %d", report.Score.Index)
	}
}

func TestAnalyze_EmptyFlagsSkipDetection(t *testing.T) {
	p := newTestPipeline(t)

	report, err := p.Analyze(context.Background(), Input{Source: "x", Text: "text", Flags: []model.FlagCandidate{}})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(report.Flags) != 0 || report.Score.Index != 0 {
		t.Errorf("Expected an empty report, got %+v", report)
	}
}

func TestAnalyze_NoDetector(t *testing.T) {
	p := newTestPipeline(t)
	if p.DetectionEnabled() {
		t.Fatal("Expected detection to be disabled without a provider")
	}

	_, err := p.Analyze(context.Background(), Input{Source: "x", Text: "text"})
	if !errors.Is(err, ErrNoDetector) {
		t.Fatalf("Expected ErrNoDetector, got %v", err)
	}
}

func TestAnalyze_DetectsFlags(t *testing.T) {
	detector := &mockDetector{resp: &llm.DetectResponse{
		AIProbability: 81,
		Model:         "mock-1",
		TokensUsed:    42,
		Flags: []model.FlagCandidate{
			{Kind: model.KindFormulaicTransition, Severity: model.SeverityHigh, ClaimedText: "IN CONCLUSION", Confidence: 90},
			{Kind: model.KindUniformSentenceLength, Severity: model.SeverityLow, ClaimedText: "Entire text", Confidence: 60},
		},
	}}
	p := newTestPipeline(t, WithDetector(detector))

	report, err := p.Analyze(context.Background(), Input{
		Source: "doc",
		Text:   "In conclusion, &amp; overall, it works.",
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if detector.got != "In conclusion, & overall, it works." {
		t.Errorf("Detector should see the canonical text, got %q", detector.got)
	}

	meta := report.Detection
	if meta == nil || meta.Provider != "mock" || meta.Model != "mock-1" || meta.AIProbability != 81 || meta.TokensUsed != 42 {
		t.Fatalf("Unexpected detection metadata: %+v", meta)
	}

	if report.Flags[0].MatchStrategy != model.StrategyCaseInsensitive || report.Flags[0].ResolvedText != "In conclusion" {
		t.Errorf("Unexpected first flag: %+v", report.Flags[0])
	}
	if report.Flags[0].AdjustedConfidence != 70 {
		t.Errorf("Expected penalized confidence 70, got %d", report.Flags[0].AdjustedConfidence)
	}
	if !report.Flags[1].DocumentWide {
		t.Error("Expected second flag to be document wide")
	}
}

func TestAnalyze_DetectorError(t *testing.T) {
	detector := &mockDetector{err: llm.ErrEmptyResponse}
	p := newTestPipeline(t, WithDetector(detector))

	_, err := p.Analyze(context.Background(), Input{Source: "doc", Text: "text"})
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("Expected wrapped ErrEmptyResponse, got %v", err)
	}
}

func TestNew_ProviderFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3.1"

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !p.DetectionEnabled() {
		t.Error("Expected detection to be enabled for a configured provider")
	}

	cfg.LLM.Provider = "bogus"
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestLoadSource_Stdin(t *testing.T) {
	p := newTestPipeline(t, WithStdin(strings.NewReader("Text from <b>stdin</b>.")))

	src, err := p.LoadSource(context.Background(), StdinRef)
	if err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}
	if src.Name != "stdin" {
		t.Errorf("Expected name stdin, got %q", src.Name)
	}
	// Inline markup is left for the sanitizer
	if src.Text != "Text from <b>stdin</b>." {
		t.Errorf("Unexpected text %q", src.Text)
	}
}

func TestLoadSource_HTMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	page := "<html><head><title>Essay</title><script>x()</script></head><body><p>Paragraph one.</p><p>Paragraph two.</p></body></html>"
	if err := os.WriteFile(path, []byte(page), 0644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t)
	src, err := p.LoadSource(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}
	if src.Title != "Essay" {
		t.Errorf("Expected title Essay, got %q", src.Title)
	}
	if src.Text != "Paragraph one.\nParagraph two." {
		t.Errorf("Unexpected text %q", src.Text)
	}
}

func TestLoadSource_MissingFile(t *testing.T) {
	p := newTestPipeline(t)
	if _, err := p.LoadSource(context.Background(), filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestAnalyzeSource_URL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body><nav>Menu</nav><p>Moreover, synergy drives value.</p></body></html>")
	}))
	defer server.Close()

	detector := &mockDetector{resp: &llm.DetectResponse{
		Flags: []model.FlagCandidate{
			{Kind: model.KindBuzzwordHeavy, Severity: model.SeverityMedium, ClaimedText: "synergy drives value", Confidence: 75},
		},
	}}
	p := newTestPipeline(t, WithDetector(detector))

	report, err := p.AnalyzeSource(context.Background(), server.URL+"/essay")
	if err != nil {
		t.Fatalf("AnalyzeSource failed: %v", err)
	}

	if report.Canonical != "Moreover, synergy drives value." {
		t.Errorf("Unexpected canonical text %q", report.Canonical)
	}
	if report.Source != server.URL+"/essay" {
		t.Errorf("Unexpected source %q", report.Source)
	}
	if report.Flags[0].MatchStrategy != model.StrategyExact {
		t.Errorf("Expected exact match, got %s", report.Flags[0].MatchStrategy)
	}
}
