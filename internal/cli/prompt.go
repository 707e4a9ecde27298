package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/pipeline"
)

var promptCmd = &cobra.Command{
	Use:   "prompt [input.pdf]",
	Short: "Print LLM instructions for the translate file",
	Long: `prompt prints the instructions to paste into an LLM together with the
translate file. With an input whose layout exists, the block count is
included so the model knows how many blocks to return.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		blocks := 0
		if len(args) == 1 {
			layout, err := pdf.LoadLayout(pipeline.DerivePaths(args[0]).Layout)
			if err != nil {
				return err
			}
			blocks = len(layout.BlockOrder)
		}
		text, err := p.Prompt(blocks)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(promptCmd)
}
