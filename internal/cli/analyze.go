package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/flagspan/internal/model"
	"github.com/ppiankov/flagspan/internal/pipeline"
)

var (
	outJSON     string
	outMD       string
	flagsFile   string
	timeout     time.Duration
	userAgent   string
	maxBytes    int64
	noCache     bool
	noRobots    bool
	httpProxy   string
	httpsProxy  string
	llmProvider string
	llmModel    string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url|->",
	Short: "Detect and locate machine-writing flags in one document",
	Long: `Analyze loads a document, sanitizes it and obtains flags:
- from a flags file when --flags is given
- otherwise from the configured language model

Every flag is then pinned to a span of the sanitized text and the document
is scored. A colored summary is printed; --json and --md write full reports.

Example:
  flagspan analyze essay.txt --llm-provider openai --llm-model gpt-4o-mini
  flagspan analyze https://example.com/post --json report.json --md report.md
  flagspan analyze essay.txt --flags flags.json --json -`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (- for stdout)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (- for stdout)")
	analyzeCmd.Flags().StringVar(&flagsFile, "flags", "", "flags file (JSON or YAML); skips model detection")

	addSourceFlags(analyzeCmd)
	addLLMFlags(analyzeCmd)
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall analysis timeout")
}

// addSourceFlags registers the HTTP flags shared by analyze and batch
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&userAgent, "ua", "", "HTTP User-Agent for URL sources")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 0, "max response bytes to read")
	cmd.Flags().BoolVar(&noRobots, "no-robots", false, "ignore robots.txt for URL sources")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

// addLLMFlags registers the detection flags shared by analyze and batch
func addLLMFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the detection response cache")
}

// applyFlags overrides config values with flags set on the command line
func applyFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("ua") {
		cfg.HTTP.UserAgent = userAgent
	}
	if flags.Changed("max-bytes") {
		cfg.HTTP.MaxBodyBytes = maxBytes
	}
	if noRobots {
		cfg.HTTP.RespectRobots = false
	}
	if flags.Changed("http-proxy") {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if flags.Changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
	if flags.Changed("llm-provider") {
		cfg.LLM.Provider = llmProvider
	}
	if flags.Changed("llm-model") {
		cfg.LLM.Model = llmModel
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
}

// newPipeline loads configuration, applies command flags and builds the pipeline
func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, *model.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	applyFlags(cmd, cfg)

	resolveProviderEnv(cfg)

	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	p, err := pipeline.New(cfg, pipeline.WithLogger(log), pipeline.WithStdin(cmd.InOrStdin()))
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, err
	}

	return p, cfg, func() { _ = log.Sync() }, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ref := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	p, cfg, done, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer done()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", ref)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Detection: %s\n", detectionLabel(cfg, flagsFile))
		fmt.Fprintln(os.Stderr)
	}

	var report *model.Report
	if flagsFile != "" {
		flags, err := pipeline.LoadFlags(flagsFile)
		if err != nil {
			return err
		}
		src, err := p.LoadSource(ctx, ref)
		if err != nil {
			return err
		}
		report, err = p.Analyze(ctx, pipeline.Input{Source: src.Name, Text: src.Text, Flags: flags})
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
	} else {
		if !p.DetectionEnabled() {
			return fmt.Errorf("%w: set llm.provider, pass --llm-provider or give --flags", pipeline.ErrNoDetector)
		}
		report, err = p.AnalyzeSource(ctx, ref)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "✓ Resolved %d flags\n", len(report.Flags))
		fmt.Fprintf(os.Stderr, "✓ Calculated index: %d/100\n", report.Score.Index)
		fmt.Fprintln(os.Stderr)
	}

	// Keep stdout clean when a report is written there
	var summary io.Writer = cmd.OutOrStdout()
	if outJSON == pipeline.StdoutPath || outMD == pipeline.StdoutPath {
		summary = cmd.ErrOrStderr()
	}

	if err := p.RenderReport(summary, report, outJSON, outMD, cfg.Output.Verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	return nil
}

func detectionLabel(cfg *model.Config, flagsPath string) string {
	switch {
	case flagsPath != "":
		return "flags file " + flagsPath
	case cfg.LLM.Provider == "":
		return "disabled"
	case cfg.Cache.Enabled:
		return fmt.Sprintf("%s/%s (cached)", cfg.LLM.Provider, cfg.LLM.Model)
	default:
		return fmt.Sprintf("%s/%s", cfg.LLM.Provider, cfg.LLM.Model)
	}
}
