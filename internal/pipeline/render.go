package pipeline

import (
	"fmt"
	"sync"

	"github.com/debabrota1604/pdfTranslator/internal/logger"
	"github.com/debabrota1604/pdfTranslator/internal/pdf"
	"github.com/debabrota1604/pdfTranslator/internal/types"
)

// loaded Unicode fonts are read-only and shared by every document
var (
	fontMu    sync.Mutex
	fontCache = map[string]*pdf.UnicodeFont{}
)

func loadUnicodeFont(path string) (*pdf.UnicodeFont, error) {
	fontMu.Lock()
	defer fontMu.Unlock()
	if uf, ok := fontCache[path]; ok {
		return uf, nil
	}
	uf, err := pdf.LoadUnicodeFont(path)
	if err != nil {
		return nil, err
	}
	fontCache[path] = uf
	return uf, nil
}

// RenderOptionsFromConfig turns the render section of the config into
// rebuild options. A missing or unreadable Unicode font is a warning: non
// Latin text then goes through the builtin fonts.
func RenderOptionsFromConfig(rc types.RenderConfig) (pdf.RenderOptions, []string) {
	var warnings []string
	opts := pdf.RenderOptions{
		Method:       rc.Method,
		FitMode:      rc.FitMode,
		Fitter:       pdf.NewFontFitter(rc.MinFontSize, rc.FontStep),
		FallbackFont: rc.FallbackFont,
	}

	if rc.OverlayColor != "" {
		if c, ok := pdf.ParseColor(rc.OverlayColor); ok {
			opts.OverlayColor = &c
		} else {
			warnings = append(warnings, fmt.Sprintf("overlay color %q is not #rrggbb; overlay disabled", rc.OverlayColor))
		}
	}

	path := pdf.LocateUnicodeFont(rc.UnicodeFontPath, pdf.DefaultUnicodeFontPaths)
	if path == "" {
		warnings = append(warnings, "no Unicode font found; non-Latin text will use builtin fonts and may lose glyphs")
	} else if uf, err := loadUnicodeFont(path); err != nil {
		warnings = append(warnings, fmt.Sprintf("unicode font %s could not be loaded: %v", path, err))
	} else {
		opts.Unicode = uf
		logger.Debug("unicode font loaded", logger.String("path", path), logger.String("name", uf.Name))
	}

	for _, w := range warnings {
		logger.Warn(w)
	}
	return opts, warnings
}
