package render

import (
	"fmt"
	"image"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	fontDPI     = 72
	fontSize    = 13
	xLabelEvery = 200 // px between frequency labels
	yLabelEvery = 80  // px between time labels
	tickLength  = 18
)

// Annotator draws frequency and time scales onto rendered images.
type Annotator struct {
	context *freetype.Context
}

func NewAnnotator() (*Annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(fontDPI)
	context.SetFont(parsedFont)
	context.SetFontSize(fontSize)
	context.SetSrc(image.White)
	context.SetHinting(font.HintingFull)

	return &Annotator{context: context}, nil
}

// FrequencyScale draws tick marks and SI-formatted frequency labels along
// the top edge, spanning minHz to maxHz across the image width.
func (a *Annotator) FrequencyScale(img *image.RGBA, minHz, maxHz float64) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	width := img.Bounds().Dx()
	count := width / xLabelEvery
	if count < 1 {
		count = 1
	}
	hzPerLabel := (maxHz - minHz) / float64(count)
	pxPerLabel := width / count

	for si := 0; si < count; si++ {
		hz := minHz + float64(si)*hzPerLabel
		px := si * pxPerLabel

		fract, suffix := humanize.ComputeSI(hz)
		label := fmt.Sprintf("%0.2f %sHz", fract, suffix)

		for i := 0; i < tickLength; i++ {
			img.Set(px, i, image.White)
		}

		pt := freetype.Pt(px+4, fontSize+2)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

// TimeScale draws timestamps down the left edge, interpolating between the
// first and last row times across the image height.
func (a *Annotator) TimeScale(img *image.RGBA, start, end time.Time) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	height := img.Bounds().Dy()
	count := height / yLabelEvery
	if count < 1 {
		count = 1
	}
	secsPerLabel := (end.Unix() - start.Unix()) / int64(count)
	pxPerLabel := height / count

	for si := 0; si < count; si++ {
		px := si * pxPerLabel

		point := start.Add(time.Duration(secsPerLabel*int64(si)) * time.Second)
		label := point.Format("15:04:05")

		for i := 0; i < tickLength*3; i++ {
			img.Set(i, px, image.White)
		}

		pt := freetype.Pt(3, px+fontSize+3)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}
