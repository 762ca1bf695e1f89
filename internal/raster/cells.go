package raster

import "github.com/lucasb-eyer/go-colorful"

// Cell is one terminal cell's worth of downsampled pixels.
type Cell struct {
	Color     colorful.Color // brightest pixel in the block
	Intensity float64        // brightness of that pixel, 0..1
}

// Shade thresholds, dimmest first.
var shades = []struct {
	min   float64
	glyph rune
}{
	{0.85, '✶'},
	{0.65, '✦'},
	{0.40, '•'},
	{0.20, '∙'},
	{0.06, '·'},
}

// Glyph picks a rune whose visual weight matches the cell intensity.
func (c Cell) Glyph() rune {
	for _, s := range shades {
		if c.Intensity >= s.min {
			return s.glyph
		}
	}
	return ' '
}

// Visible reports whether the cell renders as anything but blank.
func (c Cell) Visible() bool {
	return c.Glyph() != ' '
}

// Display returns the cell colour rescaled for a terminal foreground: the
// brightest channel maps to displayFloor at zero intensity and 1 at full.
func (c Cell) Display() colorful.Color {
	if c.Intensity <= 0 {
		return c.Color.Clamped()
	}
	k := (displayFloor + (1-displayFloor)*c.Intensity) / c.Intensity
	return colorful.Color{R: c.Color.R * k, G: c.Color.G * k, B: c.Color.B * k}.Clamped()
}

const displayFloor = 0.45

// Hex returns the display colour of the cell.
func (c Cell) Hex() string {
	return c.Display().Hex()
}

// Cells downsamples the canvas into a cols×rows grid, row-major.
// Each cell keeps the brightest pixel of the block it covers.
func (c *Canvas) Cells(cols, rows int) []Cell {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	out := make([]Cell, cols*rows)
	if c.width == 0 || c.height == 0 {
		return out
	}

	for cy := 0; cy < rows; cy++ {
		py0, py1 := span(cy, rows, c.height)
		for cx := 0; cx < cols; cx++ {
			px0, px1 := span(cx, cols, c.width)

			var best Cell
			for y := py0; y < py1; y++ {
				row := c.pix[y*c.width : (y+1)*c.width]
				for x := px0; x < px1; x++ {
					p := row[x]
					lum := max(p.R, p.G, p.B)
					if lum > best.Intensity {
						best = Cell{Color: p, Intensity: lum}
					}
				}
			}
			out[cy*cols+cx] = best
		}
	}
	return out
}

// span maps cell index i of n onto a pixel range of a size-length axis.
func span(i, n, size int) (int, int) {
	lo := i * size / n
	hi := (i + 1) * size / n
	if hi <= lo {
		hi = lo + 1
	}
	if hi > size {
		hi = size
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
