package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-skyfield/internal/raster"
)

// cellSource supplies the downsampled sky. *sky.Engine implements it.
type cellSource interface {
	Cells(cols, rows int) []raster.Cell
}

// SkyViewModel presents the engine's last frame as styled terminal cells.
type SkyViewModel struct {
	source cellSource
	width  int
	height int
}

// NewSkyViewModel creates a new sky view model.
func NewSkyViewModel(source cellSource) SkyViewModel {
	return SkyViewModel{source: source}
}

// SetSize updates the view dimensions.
func (m SkyViewModel) SetSize(width, height int) SkyViewModel {
	m.width = width
	m.height = height
	return m
}

// View renders the sky view.
func (m SkyViewModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	return m.renderSkyCanvas(m.source.Cells(m.width, m.height), m.width, m.height)
}

// renderSkyCanvas draws cells row by row. A missing frame renders blank.
func (m SkyViewModel) renderSkyCanvas(cells []raster.Cell, width, height int) string {
	blankRow := strings.Repeat(" ", width)

	var b strings.Builder
	for y := 0; y < height; y++ {
		if len(cells) < width*height {
			b.WriteString(blankRow)
		} else {
			writeRow(&b, cells[y*width:(y+1)*width])
		}
		if y < height-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// writeRow styles runs of equal colour together to keep escape output small.
func writeRow(b *strings.Builder, row []raster.Cell) {
	var run strings.Builder
	var runColor string

	flush := func() {
		if run.Len() == 0 {
			return
		}
		if runColor == "" {
			b.WriteString(run.String())
		} else {
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(runColor))
			b.WriteString(style.Render(run.String()))
		}
		run.Reset()
	}

	for _, c := range row {
		glyph, color := cellGlyph(c)
		if color != runColor {
			flush()
			runColor = color
		}
		run.WriteRune(glyph)
	}
	flush()
}

// cellGlyph chooses a glyph and colour for a cell. Blank cells carry no
// colour so they merge into one unstyled run.
func cellGlyph(c raster.Cell) (rune, string) {
	g := c.Glyph()
	if g == ' ' {
		return ' ', ""
	}
	return g, c.Hex()
}
