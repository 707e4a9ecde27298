package pipeline

import (
	"context"
	"os"

	"github.com/debabrota1604/pdfTranslator/internal/exchange"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// xliffPipeline writes XLIFF for CAT tools. The tagged file is written too so
// the same document can go through an LLM.
type xliffPipeline struct {
	base
}

// XLIFFPaths returns the source and translated XLIFF files of input.
func XLIFFPaths(input string) (source, translated string) {
	return input + "_translate.xlf", input + "_translated.xlf"
}

func (p *xliffPipeline) Name() string { return "XLIFF Format" }

func (p *xliffPipeline) Description() string {
	return "XLIFF 1.2 or 2.0 for professional CAT tools (Trados, memoQ, OmegaT)"
}

func (p *xliffPipeline) Extract(ctx context.Context, input string) (*ExtractResult, error) {
	doc, paths, err := p.extract(ctx, input, string(TypeXLIFF))
	if err != nil {
		return nil, err
	}
	data, err := exchange.MarshalXLIFF(doc, exchange.XLIFFOptions{
		Version:        p.opts.XLIFFVersion,
		SourceLanguage: p.opts.SourceLanguage,
		TargetLanguage: p.opts.TargetLanguage,
	})
	if err != nil {
		return nil, err
	}
	source, translated := XLIFFPaths(input)
	for _, path := range []string{source, translated} {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrPipeline, "failed to write XLIFF", path, err)
		}
	}
	res := p.extractResult(doc, paths.Layout, source, translated)
	res.ExtraFiles["tagged"] = paths.Translate
	return res, nil
}

// Merge reads .xlf/.xliff files as XLIFF, .json as a side file and anything
// else as the tagged format.
func (p *xliffPipeline) Merge(ctx context.Context, input, output, translated, layoutPath string) (*MergeResult, error) {
	layout, err := p.loadLayout(ctx, layoutPath)
	if err != nil {
		return nil, err
	}
	var parsed *exchange.Result
	switch {
	case hasExt(translated, ".xlf", ".xliff"):
		data, readErr := os.ReadFile(translated)
		if readErr != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "translated XLIFF not readable", translated, readErr)
		}
		parsed, err = exchange.ParseXLIFF(data)
		if err == nil {
			parsed.FilterKnown(layout.BlockOrder)
		}
	case hasExt(translated, ".json"):
		parsed, err = p.parseSideFile(translated, layout)
	default:
		parsed, err = p.parseTagged(translated, layout)
	}
	if err != nil {
		return nil, err
	}
	return p.rebuild(ctx, input, output, layout, parsed)
}

func (p *xliffPipeline) Prompt(blockCount int) (string, error) {
	return p.prompt(exchange.DefaultPromptTemplate, blockCount)
}
