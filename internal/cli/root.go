// Package cli holds the pdft commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/debabrota1604/pdfTranslator/internal/config"
	"github.com/debabrota1604/pdfTranslator/internal/logger"
	"github.com/debabrota1604/pdfTranslator/internal/pipeline"
	"github.com/debabrota1604/pdfTranslator/internal/results"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// state shared by every command, set up in PersistentPreRunE
var (
	cfgManager *config.ConfigManager
	cfg        *types.Config
)

var RootCmd = &cobra.Command{
	Use:   "pdft",
	Short: "Layout-preserving PDF translation",
	Long: `pdft extracts the text blocks of a PDF into a file a translator or an LLM
can work on, then merges the translations back into the original pages,
fitting each translation into the box its source text occupied.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flags first so config loading is logged, then again with the
		// config's log section for whatever the flags left unset.
		if err := setupLogging(cmd, types.LogConfig{}); err != nil {
			return err
		}
		if err := loadConfig(cmd); err != nil {
			return err
		}
		return setupLogging(cmd, cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

func init() {
	ll := os.Getenv("PDFT_LOG_LEVEL")
	if ll == "" {
		ll = "info"
	}
	pf := RootCmd.PersistentFlags()
	pf.String("config", "", "config file (default ./pdft.yaml or $HOME/.pdft/pdft.yaml)")
	pf.String("log-level", ll, "debug, info, warn or error")
	pf.String("log-file", "", "write the log to this file as well")
	pf.StringP("pipeline", "p", "", "direct, xliff or moses (overrides the config)")
	pf.StringP("lang", "l", "", "target language (overrides the config)")
}

// setupLogging initializes the global logger. Flags set on the command
// line win over lc. Without a log file, entries always go to stderr.
func setupLogging(cmd *cobra.Command, lc types.LogConfig) error {
	name, _ := cmd.Flags().GetString("log-level")
	if !cmd.Flags().Changed("log-level") && lc.Level != "" && os.Getenv("PDFT_LOG_LEVEL") == "" {
		name = lc.Level
	}
	level, ok := logger.ParseLevel(name)
	if !ok {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown log level", name, nil)
	}
	file, _ := cmd.Flags().GetString("log-file")
	if !cmd.Flags().Changed("log-file") && lc.File != "" {
		file = lc.File
	}
	return logger.Init(&logger.Config{
		LogFilePath:   file,
		MaxFileSize:   10 * 1024 * 1024,
		MaxBackups:    5,
		Level:         level,
		Format:        lc.Format,
		EnableConsole: lc.Console || file == "",
		Console:       cmd.ErrOrStderr(),
	})
}

// loadConfig reads the config file and environment, then applies the
// command-line overrides, which take precedence.
func loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	m, err := config.NewConfigManager(path)
	if err != nil {
		return err
	}
	overrides := map[string]string{
		"pipeline": "pipeline",
		"lang":     "target_language",
	}
	for flag, key := range overrides {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		value, _ := cmd.Flags().GetString(flag)
		if err := m.Set(key, value); err != nil {
			return err
		}
	}
	if err := m.Validate(); err != nil {
		return err
	}
	cfgManager = m
	cfg = m.GetConfig()
	return nil
}

// newPipeline builds the configured pipeline and prints startup warnings.
func newPipeline(cmd *cobra.Command) (pipeline.Pipeline, error) {
	opts, warnings := pipeline.OptionsFromConfig(cfg)
	for _, w := range warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
	return pipeline.New(cfg.Pipeline, opts)
}

// stateDir returns the directory for run records and the failure ledger.
func stateDir(sub string) string {
	if cfg == nil || cfg.Batch.StateDir == "" {
		return ""
	}
	return filepath.Join(cfg.Batch.StateDir, sub)
}

func resultManager() (*results.ResultManager, error) {
	return results.NewResultManager(stateDir("runs"))
}

// recordRun wraps fn in a run record. A record that cannot be written is
// logged and does not fail the command.
func recordRun(command, input string, fn func(rec *results.RunRecord) error) error {
	rm, err := resultManager()
	if err != nil {
		logger.Warn("run records unavailable", logger.Err(err))
		return fn(&results.RunRecord{Command: command, Input: input})
	}
	rec, err := rm.Start(command, input, cfg.Pipeline)
	if err != nil {
		logger.Warn("failed to start run record", logger.Err(err))
	}
	runErr := fn(rec)
	if err := rm.Finish(rec, runErr); err != nil {
		logger.Warn("failed to save run record", logger.String("id", rec.ID), logger.Err(err))
	}
	return runErr
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format: text, json or yaml")
}

// printResult writes v as json or yaml, or calls text for the text format.
func printResult(cmd *cobra.Command, v interface{}, text func(w io.Writer)) error {
	format, _ := cmd.Flags().GetString("format")
	w := cmd.OutOrStdout()
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	case "", "text":
		text(w)
		return nil
	}
	return types.NewAppErrorWithDetails(types.ErrInvalidInput, "unknown output format", format, nil)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintln(w, "  warning:", warning)
	}
}
