package pipeline

import (
	"context"
	"os"

	"github.com/debabrota1604/pdfTranslator/internal/exchange"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// MosesPromptTemplate asks for a line-aligned translation.
const MosesPromptTemplate = `Translate to {target_language}. Rules:
- One segment per line; keep the number and order of lines
- Translate every line, add nothing else
- Keep <br> markers exactly as-is, they are line breaks`

// mosesPipeline writes line-aligned parallel text.
type mosesPipeline struct {
	base
}

// MosesPaths returns the source, target and mapping files of input.
func MosesPaths(input string) (src, tgt, mapping string) {
	return input + "_translate.src", input + "_translated.tgt", input + "_mapping.json"
}

func (p *mosesPipeline) Name() string { return "Moses Parallel Text" }

func (p *mosesPipeline) Description() string {
	return "Line-aligned .src/.tgt files with <br> line breaks and a segment mapping"
}

// Extract writes the source side and a target side pre-filled with the
// source text, so untranslated lines keep their original wording.
func (p *mosesPipeline) Extract(ctx context.Context, input string) (*ExtractResult, error) {
	doc, paths, err := p.extract(ctx, input, string(TypeMoses))
	if err != nil {
		return nil, err
	}
	content, mapping := exchange.SerializeMoses(doc)
	src, tgt, mapPath := MosesPaths(input)
	for _, path := range []string{src, tgt} {
		if err := exchange.WriteTextFile(path, content, doc.Encoding); err != nil {
			return nil, types.NewAppError(types.ErrPipeline, "failed to write Moses file", err)
		}
	}
	if err := exchange.SaveMosesMapping(mapping, mapPath); err != nil {
		return nil, err
	}
	res := p.extractResult(doc, paths.Layout, src, tgt)
	res.ExtraFiles["mapping"] = mapPath
	res.ExtraFiles["tagged"] = paths.Translate
	return res, nil
}

// Merge reads .tgt/.src files as Moses lines, .json as a side file and
// anything else as the tagged format. Without a mapping file line i belongs
// to the i-th entry of the block order.
func (p *mosesPipeline) Merge(ctx context.Context, input, output, translated, layoutPath string) (*MergeResult, error) {
	layout, err := p.loadLayout(ctx, layoutPath)
	if err != nil {
		return nil, err
	}
	input = sourceOf(input, layout)
	var parsed *exchange.Result
	switch {
	case hasExt(translated, ".tgt", ".src"):
		parsed, err = p.parseMoses(input, translated, layout.BlockOrder, p.layoutEncoding(layout))
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

func (p *mosesPipeline) parseMoses(input, translated string, order []string, enc string) (*exchange.Result, error) {
	_, _, mapPath := MosesPaths(input)
	mapping := exchange.MappingFromOrder(order)
	if _, err := os.Stat(mapPath); err == nil {
		if mapping, err = exchange.LoadMosesMapping(mapPath); err != nil {
			return nil, err
		}
	}
	content, err := exchange.ReadTextFile(translated, enc)
	if err != nil {
		return nil, err
	}
	return exchange.ParseMoses(content, mapping), nil
}

func (p *mosesPipeline) Prompt(blockCount int) (string, error) {
	return p.prompt(MosesPromptTemplate, blockCount)
}
