package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/debabrota1604/pdfTranslator/internal/pdf"
)

var infoCmd = &cobra.Command{
	Use:   "info <input.pdf>",
	Short: "Show page count, page sizes and whether the PDF has text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := pdf.NewPDFParser().GetPDFInfo(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, info, func(w io.Writer) {
			fmt.Fprintf(w, "%s (%d bytes)\n", info.FileName, info.FileSize)
			fmt.Fprintf(w, "  pages: %d\n", info.PageCount)
			fmt.Fprintf(w, "  text:  %t\n", info.IsTextPDF)
			for _, pg := range info.Pages {
				fmt.Fprintf(w, "  page %d: %.1f x %.1f", pg.PageNumber, pg.Width, pg.Height)
				if pg.Rotation != 0 {
					fmt.Fprintf(w, " rotated %d", pg.Rotation)
				}
				fmt.Fprintln(w)
			}
		})
	},
}

func init() {
	addFormatFlag(infoCmd)
	RootCmd.AddCommand(infoCmd)
}
