// Package raster provides an in-memory RGB drawing surface with canvas-style
// composition. The surface is downsampled to terminal cells for display.
package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// MaxPixels bounds the backing buffer. Larger requests fail with ErrUnsupported.
const MaxPixels = 4096 * 4096

// ErrUnsupported is returned when a surface cannot be created at the requested size.
var ErrUnsupported = errors.New("raster: unsupported surface size")

// Composite selects how drawn pixels combine with the existing buffer.
type Composite int

const (
	CompositeSourceOver Composite = iota // normal alpha blending
	CompositeLighter                     // additive, saturating at 1
	CompositeScreen                      // 1-(1-dst)(1-src)
)

func (c Composite) String() string {
	switch c {
	case CompositeSourceOver:
		return "source-over"
	case CompositeLighter:
		return "lighter"
	case CompositeScreen:
		return "screen"
	default:
		return "unknown"
	}
}

// Canvas is an RGB raster on a black background. Pixel values are stored
// premultiplied against black, so a pixel's brightness is its max channel.
type Canvas struct {
	width     int
	height    int
	pix       []colorful.Color
	composite Composite
}

// NewCanvas creates a canvas with the given pixel dimensions.
func NewCanvas(width, height int) (*Canvas, error) {
	c := &Canvas{}
	if err := c.Resize(width, height); err != nil {
		return nil, err
	}
	return c, nil
}

// Resize changes the backing buffer dimensions and clears it.
func (c *Canvas) Resize(width, height int) error {
	if width < 0 || height < 0 || width*height > MaxPixels {
		return fmt.Errorf("%w: %dx%d", ErrUnsupported, width, height)
	}

	n := width * height
	if cap(c.pix) >= n {
		c.pix = c.pix[:n]
	} else {
		c.pix = make([]colorful.Color, n)
	}
	c.width = width
	c.height = height
	c.Clear()
	return nil
}

// Size returns the pixel dimensions.
func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// Clear resets every pixel to black.
func (c *Canvas) Clear() {
	for i := range c.pix {
		c.pix[i] = colorful.Color{}
	}
}

// SetComposite sets the composition mode for subsequent draw calls.
func (c *Canvas) SetComposite(op Composite) {
	c.composite = op
}

// At returns the pixel at (x, y), or black when out of range.
func (c *Canvas) At(x, y int) colorful.Color {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return colorful.Color{}
	}
	return c.pix[y*c.width+x]
}

// FillCircle draws an anti-aliased filled circle centred on (cx, cy).
func (c *Canvas) FillCircle(cx, cy, r float64, col colorful.Color, alpha float64) {
	if r <= 0 || alpha <= 0 || c.width == 0 || c.height == 0 {
		return
	}

	x0, y0, x1, y1 := c.clip(cx-r-1, cy-r-1, cx+r+1, cy+r+1)
	for y := y0; y < y1; y++ {
		py := float64(y) + 0.5
		for x := x0; x < x1; x++ {
			px := float64(x) + 0.5
			d := math.Hypot(px-cx, py-cy)
			cov := clamp01(r + 0.5 - d)
			if cov > 0 {
				c.blend(x, y, col, alpha*cov)
			}
		}
	}
}

// StrokeGradient draws a line from (x0, y0) to (x1, y1). Colour and alpha
// follow g, with offset 0 at the start point and 1 at the end point.
func (c *Canvas) StrokeGradient(x0, y0, x1, y1, width float64, g Gradient) {
	if width <= 0 || len(g) == 0 || c.width == 0 || c.height == 0 {
		return
	}

	half := width / 2
	dx, dy := x1-x0, y1-y0
	lenSq := dx*dx + dy*dy

	bx0, by0, bx1, by1 := c.clip(
		math.Min(x0, x1)-half-1, math.Min(y0, y1)-half-1,
		math.Max(x0, x1)+half+1, math.Max(y0, y1)+half+1,
	)
	for y := by0; y < by1; y++ {
		py := float64(y) + 0.5
		for x := bx0; x < bx1; x++ {
			px := float64(x) + 0.5

			// Project the pixel centre onto the segment
			t := 0.0
			if lenSq > 0 {
				t = clamp01(((px-x0)*dx + (py-y0)*dy) / lenSq)
			}
			d := math.Hypot(px-(x0+dx*t), py-(y0+dy*t))
			cov := clamp01(half + 0.5 - d)
			if cov <= 0 {
				continue
			}

			col, a := g.At(t)
			if a > 0 {
				c.blend(x, y, col, a*cov)
			}
		}
	}
}

// clip converts a float bounding box to integer pixel bounds inside the canvas.
func (c *Canvas) clip(fx0, fy0, fx1, fy1 float64) (int, int, int, int) {
	x0 := clampInt(int(math.Floor(fx0)), 0, c.width)
	y0 := clampInt(int(math.Floor(fy0)), 0, c.height)
	x1 := clampInt(int(math.Ceil(fx1)), 0, c.width)
	y1 := clampInt(int(math.Ceil(fy1)), 0, c.height)
	return x0, y0, x1, y1
}

func (c *Canvas) blend(x, y int, src colorful.Color, alpha float64) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height || alpha <= 0 {
		return
	}
	if alpha > 1 {
		alpha = 1
	}

	i := y*c.width + x
	dst := c.pix[i]
	switch c.composite {
	case CompositeLighter:
		dst.R = math.Min(1, dst.R+src.R*alpha)
		dst.G = math.Min(1, dst.G+src.G*alpha)
		dst.B = math.Min(1, dst.B+src.B*alpha)
	case CompositeScreen:
		dst.R = 1 - (1-dst.R)*(1-src.R*alpha)
		dst.G = 1 - (1-dst.G)*(1-src.G*alpha)
		dst.B = 1 - (1-dst.B)*(1-src.B*alpha)
	default:
		dst = dst.BlendRgb(src, alpha)
	}
	c.pix[i] = dst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
