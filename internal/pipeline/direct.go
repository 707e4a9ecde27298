package pipeline

import (
	"context"

	"github.com/debabrota1604/pdfTranslator/internal/exchange"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// directPipeline exchanges the tagged <i>text</i> file and rebuilds the PDF
// in place of its original text.
type directPipeline struct {
	base
}

func (p *directPipeline) Name() string { return "Direct PDF" }

func (p *directPipeline) Description() string {
	return "Tagged text file for LLMs or editors, merged straight back into the PDF"
}

func (p *directPipeline) Extract(ctx context.Context, input string) (*ExtractResult, error) {
	doc, paths, err := p.extract(ctx, input, string(TypeDirect))
	if err != nil {
		return nil, err
	}
	if err := exchange.WriteTextFile(paths.Translated, exchange.Template(len(doc.BlockOrder)), doc.Encoding); err != nil {
		return nil, types.NewAppError(types.ErrPipeline, "failed to write template", err)
	}
	return p.extractResult(doc, paths.Layout, paths.Translate, paths.Translated), nil
}

// Merge accepts the tagged file or a _translations.json side file.
func (p *directPipeline) Merge(ctx context.Context, input, output, translated, layoutPath string) (*MergeResult, error) {
	layout, err := p.loadLayout(ctx, layoutPath)
	if err != nil {
		return nil, err
	}
	var parsed *exchange.Result
	if hasExt(translated, ".json") {
		parsed, err = p.parseSideFile(translated, layout)
	} else {
		parsed, err = p.parseTagged(translated, layout)
	}
	if err != nil {
		return nil, err
	}
	return p.rebuild(ctx, input, output, layout, parsed)
}

func (p *directPipeline) Prompt(blockCount int) (string, error) {
	return p.prompt(exchange.DefaultPromptTemplate, blockCount)
}
