package pdf

import (
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
)

// DimensionTolerance is the largest page size difference, in points, that
// still counts as unchanged.
const DimensionTolerance = 1.0

// PageComparison compares one page of the source and the rebuilt document.
type PageComparison struct {
	PageNumber      int     `json:"page_number" yaml:"page_number"`
	SourceWidth     float64 `json:"source_width" yaml:"source_width"`
	SourceHeight    float64 `json:"source_height" yaml:"source_height"`
	OutputWidth     float64 `json:"output_width" yaml:"output_width"`
	OutputHeight    float64 `json:"output_height" yaml:"output_height"`
	SourceBlocks    int     `json:"source_blocks" yaml:"source_blocks"`
	OutputBlocks    int     `json:"output_blocks" yaml:"output_blocks"`
	DimensionsMatch bool    `json:"dimensions_match" yaml:"dimensions_match"`
}

// ValidationResult is the outcome of comparing a rebuilt document with its
// source.
type ValidationResult struct {
	SourcePages    int              `json:"source_pages" yaml:"source_pages"`
	OutputPages    int              `json:"output_pages" yaml:"output_pages"`
	PageCountMatch bool             `json:"page_count_match" yaml:"page_count_match"`
	Pages          []PageComparison `json:"pages" yaml:"pages"`
	Warnings       []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// OK reports whether page count and every page size match.
func (r *ValidationResult) OK() bool {
	if !r.PageCountMatch {
		return false
	}
	for _, p := range r.Pages {
		if !p.DimensionsMatch {
			return false
		}
	}
	return true
}

// ContentValidator checks that a rebuilt document kept the structure of its
// source.
type ContentValidator struct {
	parser *PDFParser
	conf   *model.Configuration
}

// NewContentValidator creates a validator.
func NewContentValidator() *ContentValidator {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &ContentValidator{parser: NewPDFParser(), conf: conf}
}

// ValidateContent compares page count, page dimensions and re-extracted block
// counts of source and output. Block count differences are reported as
// warnings only, since translated text may wrap differently.
func (v *ContentValidator) ValidateContent(sourcePath, outputPath string) (*ValidationResult, error) {
	logger.Info("validating rebuilt PDF",
		logger.String("source", sourcePath),
		logger.String("output", outputPath))

	if err := api.ValidateFile(outputPath, v.conf); err != nil {
		return nil, NewPDFErrorWithDetails(ErrPDFInvalid, "output PDF failed validation", outputPath, err)
	}

	srcDims, err := pageDims(sourcePath)
	if err != nil {
		return nil, err
	}
	outDims, err := pageDims(outputPath)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		SourcePages:    len(srcDims),
		OutputPages:    len(outDims),
		PageCountMatch: len(srcDims) == len(outDims),
	}
	if !result.PageCountMatch {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("page count changed: %d -> %d", len(srcDims), len(outDims)))
	}

	srcDoc, err := v.parser.Extract(sourcePath)
	if err != nil {
		return nil, err
	}
	outDoc, err := v.parser.Extract(outputPath)
	if err != nil {
		return nil, err
	}

	n := min(len(srcDims), len(outDims))
	for i := 0; i < n; i++ {
		pc := PageComparison{
			PageNumber:   i + 1,
			SourceWidth:  srcDims[i][0],
			SourceHeight: srcDims[i][1],
			OutputWidth:  outDims[i][0],
			OutputHeight: outDims[i][1],
			SourceBlocks: blocksOnPage(srcDoc, i+1),
			OutputBlocks: blocksOnPage(outDoc, i+1),
		}
		pc.DimensionsMatch = math.Abs(pc.SourceWidth-pc.OutputWidth) <= DimensionTolerance &&
			math.Abs(pc.SourceHeight-pc.OutputHeight) <= DimensionTolerance
		if !pc.DimensionsMatch {
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d size changed: %.1fx%.1f -> %.1fx%.1f",
				pc.PageNumber, pc.SourceWidth, pc.SourceHeight, pc.OutputWidth, pc.OutputHeight))
		}
		if pc.OutputBlocks < pc.SourceBlocks {
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d has fewer text blocks: %d -> %d",
				pc.PageNumber, pc.SourceBlocks, pc.OutputBlocks))
		}
		result.Pages = append(result.Pages, pc)
	}

	if !result.OK() {
		logger.Warn("rebuilt PDF differs from source",
			logger.String("output", outputPath),
			logger.Int("warnings", len(result.Warnings)))
	}
	return result, nil
}

func pageDims(path string) ([][2]float64, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrPDFInvalid, "cannot count pages", path, err)
	}
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrPDFInvalid, "cannot read page dimensions", path, err)
	}
	if len(dims) != count {
		logger.Warn("page dimension count differs from page count",
			logger.String("path", path), logger.Int("pages", count), logger.Int("dims", len(dims)))
	}
	out := make([][2]float64, len(dims))
	for i, d := range dims {
		out[i] = [2]float64{d.Width, d.Height}
	}
	return out, nil
}

func blocksOnPage(doc *Document, pageNumber int) int {
	for _, p := range doc.Pages {
		if p.PageNumber == pageNumber {
			return len(p.Blocks)
		}
	}
	return 0
}
