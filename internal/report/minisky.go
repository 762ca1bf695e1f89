package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/litescript/ls-skyfield/internal/raster"
)

// WriteMiniSky renders a cols×rows cell grid as plain text inside a frame.
func WriteMiniSky(w io.Writer, cells []raster.Cell, cols, rows int) error {
	if cols <= 0 || rows <= 0 || len(cells) < cols*rows {
		return fmt.Errorf("mini sky: %d cells for a %dx%d grid", len(cells), cols, rows)
	}

	var b strings.Builder
	b.WriteString("┌" + strings.Repeat("─", cols) + "┐\n")
	for y := 0; y < rows; y++ {
		b.WriteString("│")
		for _, c := range cells[y*cols : (y+1)*cols] {
			b.WriteRune(c.Glyph())
		}
		b.WriteString("│\n")
	}
	b.WriteString("└" + strings.Repeat("─", cols) + "┘\n")

	_, err := io.WriteString(w, b.String())
	return err
}
