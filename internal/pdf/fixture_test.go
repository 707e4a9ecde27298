package pdf

import (
	"testing"

	"github.com/debabrota1604/pdfTranslator/internal/pdf/pdftest"
)

type fixturePage = pdftest.Page

func letterPage(content string) fixturePage {
	return pdftest.Letter(content)
}

// writeFixturePDF writes a generated PDF into the test's temp dir.
func writeFixturePDF(t *testing.T, name string, pages ...fixturePage) string {
	t.Helper()
	return pdftest.Write(t, t.TempDir(), name, pages...)
}

func showText(x, y, size float64, text string) string {
	return pdftest.ShowText(x, y, size, text)
}
