package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	errmgr "github.com/debabrota1604/pdfTranslator/internal/errors"
	"github.com/debabrota1604/pdfTranslator/internal/results"
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Inspect the failure ledger of batch runs",
}

var failuresListCmd = &cobra.Command{
	Use:   "list",
	Short: "List failed documents, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := errmgr.NewErrorManager(stateDir(""))
		if err != nil {
			return err
		}
		records := ledger.ListErrors()
		return printResult(cmd, records, func(w io.Writer) {
			if len(records) == 0 {
				fmt.Fprintln(w, "no failures")
				return
			}
			for _, r := range records {
				retry := "retryable"
				if !r.CanRetry {
					retry = "not retryable"
				}
				fmt.Fprintf(w, "%s  %s  [%s, %s, %d retries]\n  %s\n",
					r.Timestamp.Format("2006-01-02 15:04:05"), r.Input,
					errmgr.GetStageDisplayName(r.Stage), retry, r.RetryCount, r.ErrorMsg)
			}
		})
	},
}

var failuresClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the failure ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := errmgr.NewErrorManager(stateDir(""))
		if err != nil {
			return err
		}
		return ledger.ClearAll()
	},
}

var failuresExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write failed inputs one per line, for batch --inputs-from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := errmgr.NewErrorManager(stateDir(""))
		if err != nil {
			return err
		}
		return ledger.ExportInputs(args[0])
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run records",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := resultManager()
		if err != nil {
			return err
		}
		records, err := rm.List()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}
		return printResult(cmd, records, func(w io.Writer) {
			for _, r := range records {
				fmt.Fprintf(w, "%s  %-9s %-14s %s", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.Command, r.Input)
				if r.Error != "" {
					fmt.Fprintf(w, "  (%s)", r.Error)
				}
				fmt.Fprintln(w)
			}
		})
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := resultManager()
		if err != nil {
			return err
		}
		rec, err := rm.Load(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, rec, func(w io.Writer) {
			fmt.Fprintf(w, "id:       %s\ncommand:  %s\ninput:    %s\nstatus:   %s\n", rec.ID, rec.Command, rec.Input, rec.Status)
			if rec.Output != "" {
				fmt.Fprintf(w, "output:   %s\n", rec.Output)
			}
			fmt.Fprintf(w, "blocks:   %d\nduration: %s\n", rec.Blocks, rec.Duration)
			if rec.Error != "" {
				fmt.Fprintf(w, "error:    %s\n", rec.Error)
			}
			printWarnings(w, rec.Warnings)
		})
	},
}

var runsLastCmd = &cobra.Command{
	Use:   "last <file>",
	Short: "Show the newest successful run on a file with the same content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := resultManager()
		if err != nil {
			return err
		}
		hash, err := results.CalculateFileHash(args[0])
		if err != nil {
			return err
		}
		command, _ := cmd.Flags().GetString("command")
		rec, err := rm.FindByHash(command, hash)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no successful %s run for %s", command, args[0])
		}
		return printResult(cmd, rec, func(w io.Writer) {
			fmt.Fprintf(w, "%s  %s  %s -> %s\n", rec.ID, rec.StartedAt.Local().Format("2006-01-02 15:04:05"), rec.Input, rec.Output)
		})
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete run records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := resultManager()
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := rm.Delete(id); err != nil {
				return err
			}
		}
		return nil
	},
}

var runsExportCmd = &cobra.Command{
	Use:   "export <file.yaml>",
	Short: "Write every run record to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := resultManager()
		if err != nil {
			return err
		}
		return rm.ExportYAML(args[0])
	},
}

func init() {
	addFormatFlag(failuresListCmd)
	failuresCmd.AddCommand(failuresListCmd, failuresClearCmd, failuresExportCmd)

	runsListCmd.Flags().IntP("limit", "n", 20, "show at most n runs, 0 for all")
	addFormatFlag(runsListCmd)
	addFormatFlag(runsShowCmd)
	runsLastCmd.Flags().String("command", "merge", "command the run was made by")
	addFormatFlag(runsLastCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsLastCmd, runsDeleteCmd, runsExportCmd)

	RootCmd.AddCommand(failuresCmd, runsCmd)
}
