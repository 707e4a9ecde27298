package pdf

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// BlockID formats the identifier of the ordinal-th block (0-based) on a page.
func BlockID(page, ordinal int) string {
	return fmt.Sprintf("page%d_b%d", page, ordinal)
}

// SortBlocks orders blocks top to bottom, then left to right, and reassigns
// ids. Coordinates are compared after rounding to 3 decimals so float jitter
// between runs cannot reorder blocks that share a visual position.
func SortBlocks(page int, blocks []TextBlock) []TextBlock {
	sorted := make([]TextBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		yi, yj := round3(sorted[i].BBox.Y0), round3(sorted[j].BBox.Y0)
		if yi != yj {
			return yi < yj
		}
		return round3(sorted[i].BBox.X0) < round3(sorted[j].BBox.X0)
	})
	for i := range sorted {
		sorted[i].BlockID = BlockID(page, i)
		sorted[i].PageNumber = page
	}
	return sorted
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
