package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/debabrota1604/pdfTranslator/internal/exchange"
	"github.com/debabrota1604/pdfTranslator/internal/logger"
	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/pipeline"
	"github.com/debabrota1604/pdfTranslator/internal/results"
	"github.com/debabrota1604/pdfTranslator/internal/translator"
)

// translateReport is what translate prints.
type translateReport struct {
	Translated string   `json:"translated" yaml:"translated"`
	Blocks     int      `json:"blocks" yaml:"blocks"`
	FromCache  int      `json:"from_cache" yaml:"from_cache"`
	Missing    []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Warnings   []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

var translateCmd = &cobra.Command{
	Use:   "translate <input.pdf>",
	Short: "Translate the extracted blocks with an OpenAI-compatible model",
	Long: `translate sends the blocks of an extracted document to the configured LLM
and writes the tagged translated file merge reads. Translations are cached
next to the layout so repeated runs only send new text.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		var (
			tr  *translator.BatchTranslator
			rep *translateReport
		)
		err = recordRun("translate", args[0], func(rec *results.RunRecord) error {
			tr, err = newTranslator(cmd.Context(), p, args[0])
			if err != nil {
				return err
			}
			rep, err = runTranslate(cmd.Context(), tr, args[0], func(done, total int) {
				logger.Debug("translation progress", logger.Int("done", done), logger.Int("total", total))
			})
			if rep != nil {
				rec.Output = rep.Translated
				rec.Blocks = rep.Blocks
				rec.Warnings = rep.Warnings
			}
			return err
		})
		if err != nil {
			return err
		}
		return printResult(cmd, rep, func(w io.Writer) {
			fmt.Fprintf(w, "wrote %s: %d blocks, %d from cache\n", rep.Translated, rep.Blocks, rep.FromCache)
			printWarnings(w, rep.Warnings)
			if cfg.Pipeline != string(pipeline.TypeDirect) {
				fmt.Fprintf(w, "merge with: pdft merge -p %s -t %s %s\n", cfg.Pipeline, rep.Translated, args[0])
			}
		})
	},
}

// newTranslator builds the LLM translator. The pipeline prompt becomes the
// system prompt; input, when its layout exists, supplies the block count.
func newTranslator(ctx context.Context, p pipeline.Pipeline, input string) (*translator.BatchTranslator, error) {
	blocks := 0
	if input != "" {
		if layout, err := pdf.LoadLayout(pipeline.DerivePaths(input).Layout); err == nil {
			blocks = len(layout.BlockOrder)
		}
	}
	prompt, err := p.Prompt(blocks)
	if err != nil {
		return nil, err
	}
	return translator.NewBatchTranslator(ctx, translator.FromLLMConfig(cfg.LLM, prompt))
}

// runTranslate translates the layout of input and writes the tagged
// translated file. Blocks the model never returned are left out of the
// file, so merge keeps their original text.
func runTranslate(ctx context.Context, tr *translator.BatchTranslator, input string, progress translator.ProgressCallback) (*translateReport, error) {
	paths := pipeline.DerivePaths(input)
	layout, err := pdf.LoadLayout(paths.Layout)
	if err != nil {
		return nil, pipeline.AtStage(pipeline.StageTranslate, err)
	}

	lang := layout.TargetLanguage
	if lang == "" {
		lang = cfg.TargetLanguage
	}
	cache := pdf.NewTranslationCache(pdf.CachePathFor(input), lang)
	if err := cache.Load(); err != nil {
		logger.Warn("ignoring unreadable translation cache", logger.Err(err))
	}

	res, err := tr.Translate(ctx, translator.UnitsFromLayout(layout), cache, progress)
	if err != nil {
		return nil, pipeline.AtStage(pipeline.StageTranslate, err)
	}
	if err := cache.Save(); err != nil {
		logger.Warn("failed to save translation cache", logger.Err(err))
	}

	encoding := layout.Encoding
	if encoding == "" {
		encoding = cfg.Exchange.Encoding
	}
	content := exchange.Render(layout.BlockOrder, res.Translations)
	if err := exchange.WriteTextFile(paths.Translated, content, encoding); err != nil {
		return nil, pipeline.AtStage(pipeline.StageTranslate, err)
	}
	return &translateReport{
		Translated: paths.Translated,
		Blocks:     len(layout.BlockOrder),
		FromCache:  res.FromCache,
		Missing:    res.Missing,
		Warnings:   res.Warnings,
	}, nil
}

func init() {
	addFormatFlag(translateCmd)
	RootCmd.AddCommand(translateCmd)
}
