package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
)

// WaterfallOptions controls waterfall rendering.
type WaterfallOptions struct {
	Theme    ColorTheme
	Bounds   *PowerBounds // nil derives bounds from the data
	RowScale int          // Vertical pixels per row, minimum 1
	Annotate bool         // Draw frequency and time scales

	// Frequency extent of the rows, used by annotation only.
	MinHz float64
	MaxHz float64
}

// RenderWaterfall rasterizes spectrum rows, oldest at the top, one column
// per bin. All rows must have the same bin count.
func RenderWaterfall(rows []Row, opts WaterfallOptions) (*image.RGBA, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to render")
	}

	width := len(rows[0].Power)
	if width == 0 {
		return nil, fmt.Errorf("rows have no bins")
	}
	for i, row := range rows {
		if len(row.Power) != width {
			return nil, fmt.Errorf("row %d has %d bins, expected %d", i, len(row.Power), width)
		}
	}

	rowScale := opts.RowScale
	if rowScale < 1 {
		rowScale = 1
	}

	bounds := opts.Bounds
	if bounds == nil {
		b := ComputeBounds(rows)
		bounds = &b
	}
	mapper := NewColorMapper(opts.Theme, *bounds)

	img := image.NewRGBA(image.Rect(0, 0, width, len(rows)*rowScale))
	for y, row := range rows {
		for x := 0; x < width; x++ {
			c := mapper.Color(&row.Power[x])
			for dy := 0; dy < rowScale; dy++ {
				img.Set(x, y*rowScale+dy, c)
			}
		}
	}

	if opts.Annotate {
		annotator, err := NewAnnotator()
		if err != nil {
			return nil, err
		}
		if err = annotator.FrequencyScale(img, opts.MinHz, opts.MaxHz); err != nil {
			return nil, err
		}
		if err = annotator.TimeScale(img, rows[0].Timestamp, rows[len(rows)-1].Timestamp); err != nil {
			return nil, err
		}
	}

	return img, nil
}

// WritePNG encodes an image as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}
