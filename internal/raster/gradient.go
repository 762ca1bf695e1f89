package raster

import "github.com/lucasb-eyer/go-colorful"

// GradientStop is one colour stop of a linear gradient.
type GradientStop struct {
	Offset float64 // 0..1 along the stroke
	Color  colorful.Color
	Alpha  float64
}

// Gradient is a list of stops ordered by ascending Offset.
type Gradient []GradientStop

// At samples the gradient at offset t. Colours are interpolated in RGB,
// alpha linearly. Offsets outside the stop range take the nearest stop.
func (g Gradient) At(t float64) (colorful.Color, float64) {
	if len(g) == 0 {
		return colorful.Color{}, 0
	}
	if t <= g[0].Offset {
		return g[0].Color, g[0].Alpha
	}

	for i := 1; i < len(g); i++ {
		prev, next := g[i-1], g[i]
		if t > next.Offset {
			continue
		}
		span := next.Offset - prev.Offset
		if span <= 0 {
			return next.Color, next.Alpha
		}
		f := (t - prev.Offset) / span
		return prev.Color.BlendRgb(next.Color, f), prev.Alpha + (next.Alpha-prev.Alpha)*f
	}

	last := g[len(g)-1]
	return last.Color, last.Alpha
}

// Scale returns a copy of g with every stop's alpha multiplied by a.
func (g Gradient) Scale(a float64) Gradient {
	out := make(Gradient, len(g))
	for i, s := range g {
		s.Alpha *= a
		out[i] = s
	}
	return out
}
