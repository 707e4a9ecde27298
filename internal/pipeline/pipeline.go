// Package pipeline wires extraction, the exchange formats and the rebuild
// into the two-phase extract / merge workflow.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/debabrota1604/pdfTranslator/internal/exchange"
	"github.com/debabrota1604/pdfTranslator/internal/logger"
	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// PipelineType names a pipeline.
type PipelineType string

const (
	TypeDirect PipelineType = "direct"
	TypeXLIFF  PipelineType = "xliff"
	TypeMoses  PipelineType = "moses"
)

// Types lists every pipeline in display order.
func Types() []PipelineType {
	return []PipelineType{TypeDirect, TypeXLIFF, TypeMoses}
}

// Paths are the intermediate files of one input document.
type Paths struct {
	Layout       string `json:"layout" yaml:"layout"`
	Translate    string `json:"translate" yaml:"translate"`
	Translated   string `json:"translated" yaml:"translated"`
	Translations string `json:"translations" yaml:"translations"`
}

// DerivePaths places the intermediate files next to input. The input's
// extension is kept: doc.pdf gives doc.pdf_layout.json.
func DerivePaths(input string) Paths {
	return Paths{
		Layout:       input + "_layout.json",
		Translate:    input + "_translate.txt",
		Translated:   input + "_translated.txt",
		Translations: input + "_translations.json",
	}
}

// TranslatedPath is the file merge reads by default for a pipeline.
func TranslatedPath(t PipelineType, input string) string {
	switch t {
	case TypeXLIFF:
		_, translated := XLIFFPaths(input)
		return translated
	case TypeMoses:
		_, tgt, _ := MosesPaths(input)
		return tgt
	}
	return DerivePaths(input).Translated
}

// InputForTranslated maps a translated file back to its source document
// and pipeline. It reports false for files that are not translated files.
func InputForTranslated(path string) (string, PipelineType, bool) {
	suffixes := []struct {
		suffix string
		t      PipelineType
	}{
		{"_translated.txt", TypeDirect},
		{"_translated.xlf", TypeXLIFF},
		{"_translated.tgt", TypeMoses},
	}
	for _, s := range suffixes {
		if strings.HasSuffix(path, s.suffix) {
			return strings.TrimSuffix(path, s.suffix), s.t, true
		}
	}
	return "", "", false
}

// DefaultOutputPath is where merge writes when no output is given.
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_translated" + ext
}

// ExtractResult lists the files written by Extract.
type ExtractResult struct {
	Layout     string            `json:"layout" yaml:"layout"`
	Translate  string            `json:"translate" yaml:"translate"`
	Template   string            `json:"template" yaml:"template"`
	ExtraFiles map[string]string `json:"extra_files,omitempty" yaml:"extra_files,omitempty"`
	Pages      int               `json:"pages" yaml:"pages"`
	Blocks     int               `json:"blocks" yaml:"blocks"`
}

// MergeResult summarizes a merge.
type MergeResult struct {
	Output          string             `json:"output" yaml:"output"`
	BlocksProcessed int                `json:"blocks_processed" yaml:"blocks_processed"`
	Translated      int                `json:"translated" yaml:"translated"`
	Warnings        []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Rebuild         *pdf.RebuildResult `json:"-" yaml:"-"`
}

// Pipeline is one way of getting text to a translator and back.
type Pipeline interface {
	Name() string
	Description() string
	// Extract writes the layout and the translator-facing files for input.
	Extract(ctx context.Context, input string) (*ExtractResult, error)
	// Merge reads translated, maps it onto layout and rebuilds input into output.
	Merge(ctx context.Context, input, output, translated, layout string) (*MergeResult, error)
	// Prompt returns the LLM instructions for a file with blockCount blocks.
	Prompt(blockCount int) (string, error)
}

// Options configure every pipeline.
type Options struct {
	TargetLanguage string
	SourceLanguage string
	Encoding       string
	XLIFFVersion   string
	PromptTemplate string
	Render         pdf.RenderOptions
	ObjectStreams  bool
}

// OptionsFromConfig builds pipeline options. Problems that only degrade
// output, such as a missing Unicode font, come back as warnings.
func OptionsFromConfig(cfg *types.Config) (Options, []string) {
	render, warnings := RenderOptionsFromConfig(cfg.Render)
	return Options{
		TargetLanguage: cfg.TargetLanguage,
		SourceLanguage: cfg.Exchange.SourceLanguage,
		Encoding:       cfg.Exchange.Encoding,
		XLIFFVersion:   cfg.Exchange.XLIFFVersion,
		PromptTemplate: cfg.Exchange.PromptTemplate,
		Render:         render,
		ObjectStreams:  cfg.Render.ObjectStreams,
	}, warnings
}

// New returns the pipeline called name.
func New(name string, opts Options) (Pipeline, error) {
	b := base{opts: opts}
	switch PipelineType(strings.ToLower(strings.TrimSpace(name))) {
	case TypeDirect, "":
		return &directPipeline{base: b}, nil
	case TypeXLIFF:
		return &xliffPipeline{base: b}, nil
	case TypeMoses:
		return &mosesPipeline{base: b}, nil
	}
	return nil, types.NewAppErrorWithDetails(types.ErrPipeline, "unknown pipeline", name, nil)
}

// base holds what every pipeline shares: extraction, the tagged file for
// LLM use, and the rebuild.
type base struct {
	opts Options
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return pdf.NewPDFError(pdf.ErrCancelled, "operation cancelled", err)
	}
	return nil
}

// extract runs the extractor, records the exchange order and writes the
// tagged translate file. The layout is saved last so a failure leaves no
// half-written layout behind.
func (b *base) extract(ctx context.Context, input, pipeline string) (*pdf.Document, Paths, error) {
	if err := cancelled(ctx); err != nil {
		return nil, Paths{}, err
	}
	paths := DerivePaths(input)
	doc, err := pdf.NewPDFParser().Extract(input)
	if err != nil {
		return nil, paths, err
	}
	doc.Pipeline = pipeline
	doc.TargetLanguage = b.opts.TargetLanguage
	doc.Encoding = b.encoding()

	content, order := exchange.Serialize(doc)
	doc.BlockOrder = order
	if err := exchange.WriteTextFile(paths.Translate, content, doc.Encoding); err != nil {
		return nil, paths, types.NewAppError(types.ErrPipeline, "failed to write translate file", err)
	}
	if err := pdf.SaveLayout(doc, paths.Layout); err != nil {
		return nil, paths, err
	}
	logger.Info("extracted layout",
		logger.String("input", input),
		logger.String("pipeline", pipeline),
		logger.Int("pages", len(doc.Pages)),
		logger.Int("blocks", len(order)))
	return doc, paths, nil
}

func (b *base) encoding() string {
	if b.opts.Encoding == "" {
		return "utf-8"
	}
	return b.opts.Encoding
}

// layoutEncoding prefers the encoding recorded at extraction time.
func (b *base) layoutEncoding(layout *pdf.Document) string {
	if layout.Encoding != "" {
		return layout.Encoding
	}
	return b.encoding()
}

func (b *base) extractResult(doc *pdf.Document, layout, translate, template string) *ExtractResult {
	return &ExtractResult{
		Layout:     layout,
		Translate:  translate,
		Template:   template,
		ExtraFiles: map[string]string{},
		Pages:      len(doc.Pages),
		Blocks:     len(doc.BlockOrder),
	}
}

func (b *base) loadLayout(ctx context.Context, layoutPath string) (*pdf.Document, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	return pdf.LoadLayout(layoutPath)
}

// parseTagged reads a tagged translated file.
func (b *base) parseTagged(path string, layout *pdf.Document) (*exchange.Result, error) {
	content, err := exchange.ReadTextFile(path, b.layoutEncoding(layout))
	if err != nil {
		return nil, err
	}
	return exchange.Parse(content, layout.BlockOrder), nil
}

// parseSideFile reads a block_id -> text JSON table.
func (b *base) parseSideFile(path string, layout *pdf.Document) (*exchange.Result, error) {
	table, err := exchange.LoadTranslations(path)
	if err != nil {
		return nil, err
	}
	res := &exchange.Result{Translations: table}
	res.FilterKnown(layout.BlockOrder)
	return res, nil
}

// rebuild writes the translations side file and rebuilds the document.
func (b *base) rebuild(ctx context.Context, input, output string, layout *pdf.Document, parsed *exchange.Result) (*MergeResult, error) {
	input = sourceOf(input, layout)
	if output == "" {
		output = DefaultOutputPath(input)
	}
	warnings := parsed.Warnings()
	if missing := parsed.Missing(layout.BlockOrder); len(missing) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d of %d blocks have no translation and keep their original text",
			len(missing), len(layout.BlockOrder)))
	}

	if err := exchange.SaveTranslations(parsed.Translations, DerivePaths(input).Translations); err != nil {
		return nil, err
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	rebuilder := pdf.NewPDFRebuilder(b.opts.Render)
	rebuilder.SetObjectStreams(b.opts.ObjectStreams)
	rr, err := rebuilder.Rebuild(input, layout, parsed.Translations, output)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, rr.Warnings...)
	logger.Info("merged translations",
		logger.String("output", output),
		logger.Int("blocks", rr.BlocksProcessed),
		logger.Int("translated", len(parsed.Translations)),
		logger.Int("warnings", len(warnings)))
	return &MergeResult{
		Output:          output,
		BlocksProcessed: rr.BlocksProcessed,
		Translated:      len(parsed.Translations),
		Warnings:        warnings,
		Rebuild:         rr,
	}, nil
}

func (b *base) prompt(template string, blockCount int) (string, error) {
	var (
		p   string
		err error
	)
	if b.opts.PromptTemplate != "" {
		p, err = exchange.LoadPrompt(b.opts.PromptTemplate, b.opts.TargetLanguage)
		if err != nil {
			return "", err
		}
	} else {
		p = exchange.RenderPrompt(template, b.opts.TargetLanguage)
	}
	if blockCount > 0 {
		p += fmt.Sprintf("\n- The file has %d blocks; return every one of them", blockCount)
	}
	return p, nil
}

// sourceOf falls back to the source recorded in the layout.
func sourceOf(input string, layout *pdf.Document) string {
	if input == "" {
		return layout.SourceFile
	}
	return input
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
