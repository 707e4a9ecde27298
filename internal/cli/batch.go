package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	errmgr "github.com/debabrota1604/pdfTranslator/internal/errors"
	"github.com/debabrota1604/pdfTranslator/internal/logger"
	"github.com/debabrota1604/pdfTranslator/internal/pipeline"
	"github.com/debabrota1604/pdfTranslator/internal/results"
	"github.com/debabrota1604/pdfTranslator/internal/translator"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// Batch modes.
const (
	modeExtract = "extract"
	modeMerge   = "merge"
	modeFull    = "full"
)

var batchCmd = &cobra.Command{
	Use:   "batch [inputs...]",
	Short: "Process many PDFs concurrently",
	Long: `batch runs extract, merge, or extract + translate + merge ("full") over
every input. Directories are searched for *.pdf files. Each document gets
its own worker slot and deadline; a failing document is recorded in the
failure ledger and never stops the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		list, _ := cmd.Flags().GetString("inputs-from")
		retryFailed, _ := cmd.Flags().GetBool("retry-failed")
		verify, _ := cmd.Flags().GetBool("verify")
		if cmd.Flags().Changed("workers") {
			workers, _ := cmd.Flags().GetInt("workers")
			if err := cfgManager.Set("batch.workers", workers); err != nil {
				return err
			}
			cfg = cfgManager.GetConfig()
		}

		ledger, err := errmgr.NewErrorManager(stateDir(""))
		if err != nil {
			return err
		}
		inputs, err := collectInputs(args, list)
		if err != nil {
			return err
		}
		if retryFailed {
			inputs = append(inputs, ledger.Retryable()...)
		}
		inputs = dedupe(inputs)
		if len(inputs) == 0 {
			return types.NewAppError(types.ErrInvalidInput, "no input documents", nil)
		}

		step, err := batchStep(cmd, mode, verify)
		if err != nil {
			return err
		}
		rm, err := resultManager()
		if err != nil {
			return err
		}

		reports := pipeline.RunBatch(cmd.Context(), inputs, pipeline.BatchOptions{
			Workers: cfg.Batch.Workers,
			Timeout: time.Duration(cfg.Batch.DocumentTimeoutSec) * time.Second,
			OnDone: func(r pipeline.DocumentReport) {
				recordDocument(ledger, rm, mode, r)
			},
		}, step)

		failed := 0
		for _, r := range reports {
			if r.Failed() {
				failed++
			}
		}
		if err := printResult(cmd, reports, func(w io.Writer) { writeBatchSummary(w, reports) }); err != nil {
			return err
		}
		if failed > 0 {
			return types.NewAppErrorWithDetails(types.ErrPipeline, "some documents failed",
				fmt.Sprintf("%d of %d, see `pdft failures list`", failed, len(reports)), nil)
		}
		return nil
	},
}

// batchStep returns the per-document work for mode.
func batchStep(cmd *cobra.Command, mode string, verify bool) (pipeline.Step, error) {
	p, err := newPipeline(cmd)
	if err != nil {
		return nil, err
	}
	switch mode {
	case modeExtract:
		return func(ctx context.Context, input string, r *pipeline.DocumentReport) error {
			res, err := p.Extract(ctx, input)
			if err != nil {
				return pipeline.AtStage(pipeline.StageExtract, err)
			}
			r.Output = res.Layout
			r.Blocks = res.Blocks
			return nil
		}, nil
	case modeMerge:
		return func(ctx context.Context, input string, r *pipeline.DocumentReport) error {
			return mergeInto(ctx, p, input, "", verify, r)
		}, nil
	case modeFull:
		// One translator for the whole batch; the prompt carries no block count.
		tr, err := newTranslator(cmd.Context(), p, "")
		if err != nil {
			return nil, err
		}
		return fullStep(p, tr, verify), nil
	}
	return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown batch mode", mode, nil)
}

func fullStep(p pipeline.Pipeline, tr *translator.BatchTranslator, verify bool) pipeline.Step {
	return func(ctx context.Context, input string, r *pipeline.DocumentReport) error {
		if _, err := p.Extract(ctx, input); err != nil {
			return pipeline.AtStage(pipeline.StageExtract, err)
		}
		rep, err := runTranslate(ctx, tr, input, nil)
		if err != nil {
			return err
		}
		r.Warnings = append(r.Warnings, rep.Warnings...)
		return mergeInto(ctx, p, input, rep.Translated, verify, r)
	}
}

func mergeInto(ctx context.Context, p pipeline.Pipeline, input, translated string, verify bool, r *pipeline.DocumentReport) error {
	res, err := runMerge(ctx, p, input, "", translated, "", verify)
	if res != nil {
		r.Output = res.Output
		r.Blocks = res.BlocksProcessed
		r.Warnings = append(r.Warnings, res.Warnings...)
	}
	return err
}

// recordDocument updates the failure ledger and writes a run record for r.
func recordDocument(ledger *errmgr.ErrorManager, rm *results.ResultManager, mode string, r pipeline.DocumentReport) {
	rec, err := rm.Start("batch:"+mode, r.Input, cfg.Pipeline)
	if err != nil {
		logger.Warn("failed to start run record", logger.String("input", r.Input), logger.Err(err))
	}
	rec.Output = r.Output
	rec.Blocks = r.Blocks
	rec.Warnings = r.Warnings
	if err := rm.Finish(rec, r.Err); err != nil {
		logger.Warn("failed to save run record", logger.String("input", r.Input), logger.Err(err))
	}

	if r.Failed() {
		if _, known := ledger.GetError(r.Input); known {
			if err := ledger.IncrementRetry(r.Input); err != nil {
				logger.Warn("failed to update failure ledger", logger.Err(err))
			}
		}
		if _, err := ledger.RecordError(r.Input, rec.ID, errmgr.ErrorStage(r.Stage), r.Error); err != nil {
			logger.Warn("failed to update failure ledger", logger.Err(err))
		}
		return
	}
	if err := ledger.RemoveError(r.Input); err != nil {
		logger.Warn("failed to update failure ledger", logger.Err(err))
	}
}

// collectInputs expands directories to the PDFs they contain and appends
// the paths listed in the file list, one per line.
func collectInputs(args []string, list string) ([]string, error) {
	var inputs []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "input not found", arg, err)
		}
		if !st.IsDir() {
			inputs = append(inputs, arg)
			continue
		}
		found, err := findPDFs(arg)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, found...)
	}
	if list == "" {
		return inputs, nil
	}
	f, err := os.Open(list)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "input list not found", list, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			inputs = append(inputs, line)
		}
	}
	return inputs, sc.Err()
}

// findPDFs lists the source PDFs of dir, skipping outputs of earlier merges.
func findPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		if strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), "_translated") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func writeBatchSummary(w io.Writer, reports []pipeline.DocumentReport) {
	ok := 0
	for _, r := range reports {
		if r.Failed() {
			fmt.Fprintf(w, "FAIL %s [%s] %s\n", r.Input, errmgr.GetStageDisplayName(errmgr.ErrorStage(r.Stage)), r.Error)
			continue
		}
		ok++
		fmt.Fprintf(w, "ok   %s -> %s (%d blocks, %s)\n", r.Input, r.Output, r.Blocks, r.Duration.Round(time.Millisecond))
		printWarnings(w, r.Warnings)
	}
	fmt.Fprintf(w, "%d of %d documents succeeded\n", ok, len(reports))
}

func init() {
	f := batchCmd.Flags()
	f.StringP("mode", "m", modeExtract, "extract, merge or full")
	f.IntP("workers", "w", 0, "documents processed at once (overrides batch.workers)")
	f.String("inputs-from", "", "file listing one input per line")
	f.Bool("retry-failed", false, "also process the retryable documents in the failure ledger")
	f.Bool("verify", false, "check page count and page sizes of every output")
	addFormatFlag(batchCmd)
	RootCmd.AddCommand(batchCmd)
}
