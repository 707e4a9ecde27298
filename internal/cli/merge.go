package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/pipeline"
	"github.com/debabrota1604/pdfTranslator/internal/results"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <input.pdf>",
	Short: "Rebuild the PDF with translated text",
	Long: `merge reads the translated file (tagged text, XLIFF, Moses target or a
_translations.json table) and the layout written by extract, and writes the
translated PDF. Blocks without a translation keep their original text.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		translated, _ := cmd.Flags().GetString("translated")
		layout, _ := cmd.Flags().GetString("layout")
		output, _ := cmd.Flags().GetString("output")
		verify, _ := cmd.Flags().GetBool("verify")

		var res *pipeline.MergeResult
		err = recordRun("merge", args[0], func(rec *results.RunRecord) error {
			res, err = runMerge(cmd.Context(), p, args[0], output, translated, layout, verify)
			if res != nil {
				rec.Output = res.Output
				rec.Blocks = res.BlocksProcessed
				rec.Warnings = res.Warnings
			}
			return err
		})
		if err != nil {
			return err
		}
		return printResult(cmd, res, func(w io.Writer) {
			fmt.Fprintf(w, "wrote %s: %d blocks, %d translated\n", res.Output, res.BlocksProcessed, res.Translated)
			printWarnings(w, res.Warnings)
		})
	},
}

// runMerge merges one document. Empty translated and layout paths fall back
// to the files extract wrote next to input. A failed verification is
// returned tagged with the verify stage together with the merge result.
func runMerge(ctx context.Context, p pipeline.Pipeline, input, output, translated, layout string, verify bool) (*pipeline.MergeResult, error) {
	if translated == "" {
		translated = pipeline.TranslatedPath(pipeline.PipelineType(cfg.Pipeline), input)
	}
	if layout == "" {
		layout = pipeline.DerivePaths(input).Layout
	}
	res, err := p.Merge(ctx, input, output, translated, layout)
	if err != nil {
		return nil, pipeline.AtStage(pipeline.StageMerge, err)
	}
	if !verify {
		return res, nil
	}
	vr, err := pdf.NewContentValidator().ValidateContent(input, res.Output)
	if err != nil {
		return res, pipeline.AtStage(pipeline.StageVerify, err)
	}
	res.Warnings = append(res.Warnings, vr.Warnings...)
	if !vr.OK() {
		return res, pipeline.AtStage(pipeline.StageVerify, types.NewAppErrorWithDetails(types.ErrPipeline,
			"output does not match source pages", fmt.Sprintf("%d source pages, %d output pages", vr.SourcePages, vr.OutputPages), nil))
	}
	return res, nil
}

func init() {
	f := mergeCmd.Flags()
	f.StringP("translated", "t", "", "translated file (default derived from the input and pipeline)")
	f.String("layout", "", "layout file (default <input>_layout.json)")
	f.StringP("output", "o", "", "output PDF (default <input>_translated.pdf)")
	f.Bool("verify", false, "check page count and page sizes of the output")
	addFormatFlag(mergeCmd)
	RootCmd.AddCommand(mergeCmd)
}
