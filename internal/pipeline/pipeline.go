// Package pipeline runs one document through loading, sanitizing, detection,
// span reconciliation and scoring, and renders the resulting report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/flagspan/internal/cache"
	"github.com/ppiankov/flagspan/internal/llm"
	"github.com/ppiankov/flagspan/internal/logger"
	"github.com/ppiankov/flagspan/internal/model"
	"github.com/ppiankov/flagspan/internal/reconcile"
	"github.com/ppiankov/flagspan/internal/sanitize"
	"github.com/ppiankov/flagspan/internal/score"
	"github.com/ppiankov/flagspan/internal/worker"
)

// ErrNoDetector is returned when a document has no flags and no provider is configured
var ErrNoDetector = errors.New("no flags given and no LLM provider configured")

// Detector produces flag candidates for a canonical text. *llm.Client implements it.
type Detector interface {
	Detect(ctx context.Context, req llm.DetectRequest) (*llm.DetectResponse, error)
	ProviderName() string
}

// Pipeline orchestrates the complete analysis
type Pipeline struct {
	config     *model.Config
	fetcher    *Fetcher
	detector   Detector // nil when detection is disabled
	reconciler *reconcile.Reconciler
	scorer     *score.Scorer
	renderer   *Renderer
	log        logger.Logger
	stdin      io.Reader
	now        func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithDetector overrides the detector built from configuration
func WithDetector(d Detector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithStdin sets the reader used for the "-" source
func WithStdin(r io.Reader) Option {
	return func(p *Pipeline) { p.stdin = r }
}

// Input is one document to analyse.
// A nil Flags slice asks the detector; an empty non-nil slice means "no flags".
type Input struct {
	Source string
	Text   string
	Flags  []model.FlagCandidate
}

// New creates a pipeline from configuration. A configured provider is wrapped
// in an llm.Client with the shared rate limiter and, if enabled, the response cache.
func New(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		config: cfg,
		fetcher: NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
			cfg.HTTP.RespectRobots, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy),
		scorer:   score.NewScorer(),
		renderer: NewRenderer(cfg.Output.ExcerptRadius, cfg.Output.Color),
		log:      logger.NewNop(),
		stdin:    os.Stdin,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.reconciler = reconcile.New(
		reconcile.WithWorkers(cfg.Concurrency.ReconcileWorkers),
		reconcile.WithLogger(p.log),
	)

	if p.detector == nil {
		detector, err := newDetector(cfg, p.log)
		if err != nil {
			return nil, err
		}
		if detector != nil {
			p.detector = detector
		}
	}

	return p, nil
}

// newDetector builds the llm client; (nil, nil) when no provider is configured
func newDetector(cfg *model.Config, log logger.Logger) (*llm.Client, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	opts := []llm.ClientOption{
		llm.WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)),
		llm.WithRetry(cfg.LLM.MaxRetries, 0),
		llm.WithCooldown(cfg.RateLimiting.Cooldown),
		llm.WithClientLogger(log.With(logger.String("provider", provider.Name()))),
	}
	if cfg.Cache.Enabled {
		store := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		opts = append(opts, llm.WithCache(store, cfg.Cache.DiskTTL))
	}

	return llm.NewClient(provider, opts...), nil
}

// DetectionEnabled reports whether documents without flags can be analysed
func (p *Pipeline) DetectionEnabled() bool {
	return p.detector != nil
}

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Analyze sanitizes the text, obtains flags, locates them and scores the result
func (p *Pipeline) Analyze(ctx context.Context, in Input) (*model.Report, error) {
	start := p.now()
	canonical := sanitize.Sanitize(in.Text)

	report := &model.Report{
		Source:     in.Source,
		AnalyzedAt: start.UTC(),
		Canonical:  canonical,
	}

	flags := in.Flags
	if flags == nil {
		if p.detector == nil {
			return nil, ErrNoDetector
		}
		resp, err := p.detector.Detect(ctx, llm.DetectRequest{Text: canonical})
		if err != nil {
			return nil, fmt.Errorf("detect: %w", err)
		}
		flags = resp.Flags
		report.Detection = &model.DetectionMeta{
			Provider:      p.detector.ProviderName(),
			Model:         resp.Model,
			AIProbability: resp.AIProbability,
			TokensUsed:    resp.TokensUsed,
			Cached:        resp.Cached,
		}
	}

	report.Flags = p.reconciler.ReconcileConcurrent(ctx, canonical, flags)
	report.Score = p.scorer.Calculate(canonical, report.Flags)

	p.log.Info("Analyzed document",
		logger.String("source", in.Source),
		logger.Int("flags", len(report.Flags)),
		logger.Int("index", report.Score.Index),
		logger.Duration("elapsed", p.now().Sub(start)),
	)

	return report, nil
}

// AnalyzeSource loads a source reference and analyses it with detected flags
func (p *Pipeline) AnalyzeSource(ctx context.Context, ref string) (*model.Report, error) {
	src, err := p.LoadSource(ctx, ref)
	if err != nil {
		return nil, err
	}
	return p.Analyze(ctx, Input{Source: src.Name, Text: src.Text})
}

// RenderReport renders the report to the requested outputs and prints a summary to w
func (p *Pipeline) RenderReport(w io.Writer, report *model.Report, jsonPath string, mdPath string, verbose bool) error {
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose && jsonPath != StdoutPath {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose && mdPath != StdoutPath {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	if w != nil {
		p.renderer.RenderSummary(w, report)
	}

	return nil
}
