package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <source.pdf> <translated.pdf>",
	Short: "Compare page count and page sizes of a rebuilt PDF with its source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := pdf.NewContentValidator().ValidateContent(args[0], args[1])
		if err != nil {
			return err
		}
		if err := printResult(cmd, res, func(w io.Writer) { writeValidation(w, res) }); err != nil {
			return err
		}
		if !res.OK() {
			return types.NewAppError(types.ErrPipeline, "translated PDF does not match its source", nil)
		}
		return nil
	},
}

func writeValidation(w io.Writer, res *pdf.ValidationResult) {
	fmt.Fprintf(w, "pages: %d source, %d output\n", res.SourcePages, res.OutputPages)
	for _, p := range res.Pages {
		mark := "ok"
		if !p.DimensionsMatch {
			mark = "SIZE MISMATCH"
		}
		fmt.Fprintf(w, "  page %d: %.1fx%.1f -> %.1fx%.1f, blocks %d -> %d  %s\n",
			p.PageNumber, p.SourceWidth, p.SourceHeight, p.OutputWidth, p.OutputHeight,
			p.SourceBlocks, p.OutputBlocks, mark)
	}
	printWarnings(w, res.Warnings)
}

func init() {
	addFormatFlag(verifyCmd)
	RootCmd.AddCommand(verifyCmd)
}
