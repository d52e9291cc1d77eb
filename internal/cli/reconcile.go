package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/flagspan/internal/model"
	"github.com/ppiankov/flagspan/internal/pipeline"
	"github.com/ppiankov/flagspan/internal/reconcile"
	"github.com/ppiankov/flagspan/internal/sanitize"
)

var (
	reconcileText  string
	reconcileFlags string
	reconcileOut   string
)

// reconcileOutput is the JSON written by the reconcile command
type reconcileOutput struct {
	Canonical string               `json:"canonical"`
	Flags     []model.ResolvedFlag `json:"flags"`
}

// reconcileCmd locates existing flag candidates in a text
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Locate flag candidates in a text without calling a model",
	Long: `Reconcile sanitizes the text, then resolves each flag's claimed passage
to exact byte offsets of the sanitized text. The flags file is JSON or YAML:
either a list of flags or an object with a "flags" list.

Example:
  flagspan reconcile --text essay.txt --flags flags.json
  flagspan reconcile --text - --flags flags.yaml --out resolved.json`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileText, "text", "", "text file (- for stdin)")
	reconcileCmd.Flags().StringVar(&reconcileFlags, "flags", "", "flags file (JSON or YAML)")
	reconcileCmd.Flags().StringVar(&reconcileOut, "out", pipeline.StdoutPath, "output JSON path")
	_ = reconcileCmd.MarkFlagRequired("text")
	_ = reconcileCmd.MarkFlagRequired("flags")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	raw, err := readInput(cmd, reconcileText)
	if err != nil {
		return err
	}
	flags, err := pipeline.LoadFlags(reconcileFlags)
	if err != nil {
		return err
	}

	canonical := sanitize.Sanitize(raw)
	r := reconcile.New(
		reconcile.WithWorkers(cfg.Concurrency.ReconcileWorkers),
		reconcile.WithLogger(log),
	)

	out := reconcileOutput{
		Canonical: canonical,
		Flags:     r.ReconcileConcurrent(context.Background(), canonical, flags),
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	data = append(data, '\n')

	if reconcileOut == pipeline.StdoutPath {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(reconcileOut, data, 0644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if cfg.Output.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Resolved %d flags: %s\n", len(out.Flags), reconcileOut)
	}
	return nil
}
