package pdf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
)

// RebuildState is a stage of one rebuild.
type RebuildState string

const (
	StateOpened     RebuildState = "OPENED"
	StateProcessing RebuildState = "PROCESSING"
	StateDone       RebuildState = "DONE"
	StateSaved      RebuildState = "SAVED"
	StateClosed     RebuildState = "CLOSED"
)

var rebuildTransitions = map[RebuildState][]RebuildState{
	StateOpened:     {StateProcessing, StateSaved},
	StateProcessing: {StateDone},
	StateDone:       {StateProcessing, StateSaved},
	StateSaved:      {StateClosed},
}

type rebuildSession struct {
	state   RebuildState
	history []RebuildState
}

func newRebuildSession() *rebuildSession {
	return &rebuildSession{state: StateOpened, history: []RebuildState{StateOpened}}
}

// advance moves to the next state. Any state may close; other moves must
// follow the transition table.
func (s *rebuildSession) advance(to RebuildState) error {
	allowed := to == StateClosed && s.state != StateClosed
	for _, next := range rebuildTransitions[s.state] {
		if next == to {
			allowed = true
		}
	}
	if !allowed {
		return NewPDFErrorWithDetails(ErrGenerateFailed, "invalid rebuild state transition",
			fmt.Sprintf("%s -> %s", s.state, to), nil)
	}
	s.state = to
	s.history = append(s.history, to)
	return nil
}

// RebuildResult summarizes a rebuild.
type RebuildResult struct {
	Output          string         `json:"output"`
	Pages           int            `json:"pages"`
	BlocksProcessed int            `json:"blocks_processed"`
	FallbackTexts   int            `json:"fallback_texts"`
	Placements      []Placement    `json:"placements"`
	Warnings        []string       `json:"warnings"`
	States          []RebuildState `json:"states"`
}

// Degraded returns the placements that were not placed as requested.
func (r *RebuildResult) Degraded() []Placement {
	var out []Placement
	for _, p := range r.Placements {
		if p.Degraded() {
			out = append(out, p)
		}
	}
	return out
}

func (r *RebuildResult) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	logger.Warn(msg)
}

// PDFRebuilder writes translated text into a copy of the source document.
type PDFRebuilder struct {
	opts          RenderOptions
	objectStreams bool
}

// NewPDFRebuilder creates a rebuilder. A zero Fitter takes the default floor
// and step.
func NewPDFRebuilder(opts RenderOptions) *PDFRebuilder {
	if opts.Fitter.MinSize <= 0 || opts.Fitter.Step <= 0 {
		opts.Fitter = NewFontFitter(opts.Fitter.MinSize, opts.Fitter.Step)
	}
	if opts.Method == "" {
		opts.Method = MethodLineByLine
	}
	if opts.FitMode == "" {
		opts.FitMode = FitModeMetrics
	}
	return &PDFRebuilder{opts: opts}
}

// SetObjectStreams enables object and xref streams in the output. They make
// files smaller but some readers cannot open them.
func (r *PDFRebuilder) SetObjectStreams(on bool) {
	r.objectStreams = on
}

// Rebuild places translations for every block of layout into a copy of
// source written to output. Blocks without a translation keep their
// original text. The source file is never modified.
func (r *PDFRebuilder) Rebuild(source string, layout *Document, translations map[string]string, output string) (*RebuildResult, error) {
	if layout == nil {
		return nil, NewPDFError(ErrLayoutInvalid, "layout is required", nil)
	}
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewPDFErrorWithDetails(ErrPDFNotFound, "source PDF not found", source, err)
		}
		return nil, NewPDFErrorWithDetails(ErrPDFInvalid, "cannot access source PDF", source, err)
	}
	if samePath(source, output) {
		return nil, NewPDFErrorWithDetails(ErrGenerateFailed, "output would overwrite the source", output, nil)
	}

	ctx, err := r.readContext(source)
	if err != nil {
		return nil, err
	}
	f, reader, err := openPDF(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	session := newRebuildSession()
	result := &RebuildResult{Output: output, Pages: ctx.PageCount}
	defer func() {
		_ = session.advance(StateClosed)
		result.States = session.history
	}()

	logger.Info("rebuilding PDF",
		logger.String("source", filepath.Base(source)),
		logger.String("output", filepath.Base(output)),
		logger.Int("pages", ctx.PageCount))

	fonts := newDocumentFonts()
	for _, page := range layout.Pages {
		if page.PageNumber < 1 || page.PageNumber > ctx.PageCount {
			result.warnf("layout page %d does not exist in %s", page.PageNumber, filepath.Base(source))
			continue
		}
		if err := session.advance(StateProcessing); err != nil {
			return nil, err
		}
		if err := r.rebuildPage(ctx, reader, page, translations, fonts, result); err != nil {
			return nil, err
		}
		if err := session.advance(StateDone); err != nil {
			return nil, err
		}
	}

	if err := fonts.finalize(ctx); err != nil {
		return nil, err
	}
	if err := api.OptimizeContext(ctx); err != nil {
		result.warnf("optimization skipped: %v", err)
	}
	if err := writeContextAtomic(ctx, output); err != nil {
		return nil, err
	}
	if err := session.advance(StateSaved); err != nil {
		return nil, err
	}

	logger.Info("rebuild complete",
		logger.String("output", output),
		logger.Int("blocks", result.BlocksProcessed),
		logger.Int("degraded", len(result.Degraded())))
	return result, nil
}

func (r *PDFRebuilder) readContext(source string) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = r.objectStreams
	conf.WriteXRefStream = r.objectStreams

	file, err := os.Open(source)
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrPDFInvalid, "cannot open source PDF", source, err)
	}
	defer file.Close()

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") || strings.Contains(strings.ToLower(err.Error()), "password") {
			return nil, NewPDFErrorWithDetails(ErrPDFEncrypted, "PDF is encrypted", source, err)
		}
		return nil, NewPDFErrorWithDetails(ErrPDFInvalid, "cannot read source PDF", source, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, NewPDFErrorWithDetails(ErrPDFInvalid, "source PDF failed validation", source, err)
	}
	return ctx, nil
}

func (r *PDFRebuilder) rebuildPage(ctx *model.Context, reader *lpdf.Reader, page Page, translations map[string]string,
	fonts *documentFonts, result *RebuildResult) (err error) {
	defer func() {
		var perr error
		recoverPanic(&perr)
		if perr != nil {
			err = NewPDFErrorWithPage(ErrPDFCorrupted, "cannot read page", page.PageNumber, perr)
		}
	}()

	pg := reader.Page(page.PageNumber)
	box, _ := pageGeometry(pg)
	comp, err := newCompositor(ctx, page.PageNumber, box, pageFontResolver(pg), r.opts, fonts)
	if err != nil {
		return err
	}

	for _, block := range page.Blocks {
		text, ok := translations[block.BlockID]
		if !ok || isBlank(text) {
			text = block.Text
			result.FallbackTexts++
		}
		result.record(comp.Place(block, text))
	}
	return comp.Apply()
}

// record adds a placement and a warning for each way it degraded.
func (r *RebuildResult) record(p Placement) {
	r.Placements = append(r.Placements, p)
	r.BlocksProcessed++
	switch {
	case p.Skipped:
		r.warnf("block %s skipped: %s", p.BlockID, p.Err)
	case p.ClampedToFloor:
		r.warnf("block %s clamped to %.1fpt and still overflows", p.BlockID, p.FontSize)
	}
	if p.FallbackUsed {
		r.warnf("block %s drawn with the fallback font", p.BlockID)
	}
	if p.LinesDropped > 0 {
		r.warnf("block %s: %d line(s) dropped", p.BlockID, p.LinesDropped)
	}
	if p.LinesTruncated > 0 {
		r.warnf("block %s: %d line(s) truncated", p.BlockID, p.LinesTruncated)
	}
	if p.MissingGlyphs > 0 {
		r.warnf("block %s: %d missing glyph(s)", p.BlockID, p.MissingGlyphs)
	}
}

// writeContextAtomic writes to a temporary file next to output and renames
// it into place.
func writeContextAtomic(ctx *model.Context, output string) error {
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return NewPDFErrorWithDetails(ErrGenerateFailed, "cannot create output directory", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".pdft-*.pdf")
	if err != nil {
		return NewPDFErrorWithDetails(ErrGenerateFailed, "cannot create temporary file", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := api.WriteContext(ctx, tmp); err != nil {
		tmp.Close()
		return NewPDFErrorWithDetails(ErrGenerateFailed, "cannot write PDF", output, err)
	}
	if err := tmp.Close(); err != nil {
		return NewPDFErrorWithDetails(ErrGenerateFailed, "cannot write PDF", output, err)
	}
	if err := os.Rename(tmpName, output); err != nil {
		return NewPDFErrorWithDetails(ErrGenerateFailed, "cannot move PDF into place", output, err)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
