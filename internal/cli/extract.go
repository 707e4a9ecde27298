package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/debabrota1604/pdfTranslator/internal/pipeline"
	"github.com/debabrota1604/pdfTranslator/internal/results"
)

var extractCmd = &cobra.Command{
	Use:   "extract <input.pdf>",
	Short: "Extract text blocks into a layout file and a translate file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		var res *pipeline.ExtractResult
		err = recordRun("extract", args[0], func(rec *results.RunRecord) error {
			res, err = p.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec.Output = res.Layout
			rec.Pages = res.Pages
			rec.Blocks = res.Blocks
			return nil
		})
		if err != nil {
			return err
		}
		return printResult(cmd, res, func(w io.Writer) {
			fmt.Fprintf(w, "%s: %d pages, %d blocks\n", p.Name(), res.Pages, res.Blocks)
			fmt.Fprintf(w, "  layout:     %s\n", res.Layout)
			fmt.Fprintf(w, "  translate:  %s\n", res.Translate)
			fmt.Fprintf(w, "  translated: %s\n", res.Template)
			keys := make([]string, 0, len(res.ExtraFiles))
			for k := range res.ExtraFiles {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "  %s: %s\n", k, res.ExtraFiles[k])
			}
		})
	},
}

func init() {
	addFormatFlag(extractCmd)
	RootCmd.AddCommand(extractCmd)
}
