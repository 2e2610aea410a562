package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// SpectrumOptions controls single-trace spectrum rendering.
type SpectrumOptions struct {
	Height   int          // Plot height in pixels, minimum 100
	Bounds   *PowerBounds // nil derives bounds from the trace
	Annotate bool

	MinHz float64
	MaxHz float64
}

var (
	spectrumBackground = color.RGBA{R: 10, G: 10, B: 30, A: 0xff}
	spectrumGrid       = color.RGBA{R: 50, G: 50, B: 70, A: 0xff}
	spectrumTrace      = color.RGBA{R: 80, G: 220, B: 120, A: 0xff}
)

// RenderSpectrum plots one power trace, one column per bin.
func RenderSpectrum(power []float64, opts SpectrumOptions) (*image.RGBA, error) {
	if len(power) == 0 {
		return nil, fmt.Errorf("no bins to render")
	}

	height := opts.Height
	if height < 100 {
		height = 400
	}

	bounds := opts.Bounds
	if bounds == nil {
		b := ComputeBounds([]Row{{Power: power}})
		bounds = &b
	}

	img := image.NewRGBA(image.Rect(0, 0, len(power), height))
	for y := 0; y < height; y++ {
		for x := 0; x < len(power); x++ {
			img.Set(x, y, spectrumBackground)
		}
	}

	// Horizontal grid line every 10 dB
	for db := math.Ceil(bounds.Min/10) * 10; db <= bounds.Max; db += 10 {
		y := powerToY(db, *bounds, height)
		for x := 0; x < len(power); x++ {
			img.Set(x, y, spectrumGrid)
		}
	}

	prevY := powerToY(power[0], *bounds, height)
	for x, p := range power {
		y := powerToY(p, *bounds, height)
		drawVerticalRun(img, x, prevY, y, spectrumTrace)
		prevY = y
	}

	if opts.Annotate {
		annotator, err := NewAnnotator()
		if err != nil {
			return nil, err
		}
		if err = annotator.FrequencyScale(img, opts.MinHz, opts.MaxHz); err != nil {
			return nil, err
		}
	}

	return img, nil
}

// powerToY maps a dB value to a pixel row, clamped to the plot, with the
// strongest signal at the top.
func powerToY(p float64, bounds PowerBounds, height int) int {
	span := bounds.Max - bounds.Min
	norm := (p - bounds.Min) / span
	y := int(math.Round(float64(height-1) * (1 - norm)))
	if y < 0 {
		return 0
	}
	if y >= height {
		return height - 1
	}
	return y
}

// drawVerticalRun connects consecutive trace points with a solid column so
// steep transitions stay visually contiguous.
func drawVerticalRun(img *image.RGBA, x, y0, y1 int, c color.Color) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		img.Set(x, y, c)
	}
}
