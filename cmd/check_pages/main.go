// Command check_pages compares a translated PDF with its source: page count,
// page sizes and the number of text blocks on each page.
//
// Usage:
//
//	go run ./cmd/check_pages <original.pdf> <translated.pdf>
package main

import (
	"fmt"
	"os"

	"github.com/debabrota1604/pdfTranslator/internal/pdf"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: check_pages <original.pdf> <translated.pdf>")
		fmt.Println()
		fmt.Println("Checks that the translated PDF kept the structure of the original:")
		fmt.Println("  - Page counts must match")
		fmt.Println("  - Page sizes must match within 1pt")
		fmt.Println("  - Text block counts per page are reported; differences are warnings")
		os.Exit(1)
	}

	originalPath := os.Args[1]
	translatedPath := os.Args[2]

	for _, p := range []string{originalPath, translatedPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			fmt.Printf("Error: PDF not found: %s\n", p)
			os.Exit(1)
		}
	}

	fmt.Printf("Validating page structure...\n")
	fmt.Printf("  Original:   %s\n", originalPath)
	fmt.Printf("  Translated: %s\n\n", translatedPath)

	result, err := pdf.NewContentValidator().ValidateContent(originalPath, translatedPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Pages: %d -> %d\n", result.SourcePages, result.OutputPages)
	for _, p := range result.Pages {
		status := "OK"
		if !p.DimensionsMatch {
			status = "SIZE MISMATCH"
		}
		fmt.Printf("  %3d  %7.1f x %-7.1f -> %7.1f x %-7.1f  blocks %3d -> %-3d  %s\n",
			p.PageNumber, p.SourceWidth, p.SourceHeight, p.OutputWidth, p.OutputHeight,
			p.SourceBlocks, p.OutputBlocks, status)
	}
	for _, w := range result.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	if !result.OK() {
		os.Exit(2)
	}
	fmt.Println("\nStructure preserved.")
}
