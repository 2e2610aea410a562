package render

import (
	"image/color"
	"math"
)

// ColorTheme selects one of the predefined power-to-color schemes.
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white
	DefaultTheme   ColorTheme = "default"   // Enhanced multi-stage mapping

	colorMapSize = 256
)

// NoDataColor fills pixels for which no reading exists.
var NoDataColor = color.Black

// ColorMapper maps power readings in dB onto a pre-computed color table
// spanning the given bounds. Values outside the bounds clamp to the table
// ends.
type ColorMapper struct {
	colorMap      []color.Color
	boundsMin     float64
	powerPerIndex float64
}

// NewColorMapper builds the lookup table for a theme and power range.
func NewColorMapper(theme ColorTheme, bounds PowerBounds) *ColorMapper {
	cm := ColorMapper{
		colorMap:      make([]color.Color, colorMapSize),
		boundsMin:     bounds.Min,
		powerPerIndex: (bounds.Max - bounds.Min) / float64(colorMapSize-1),
	}

	themeFn := themeFunc(theme)
	for i := range cm.colorMap {
		cm.colorMap[i] = themeFn(float64(i) / float64(colorMapSize-1))
	}
	return &cm
}

// Color returns the mapped color for a power value. A nil power marks a
// lost reading and maps to NoDataColor.
func (cm *ColorMapper) Color(power *float64) color.Color {
	if power == nil {
		return NoDataColor
	}

	index := int((*power - cm.boundsMin) / cm.powerPerIndex)
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= len(cm.colorMap) {
		return cm.colorMap[len(cm.colorMap)-1]
	}
	return cm.colorMap[index]
}

// HSV is a color in hue/saturation/value space.
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts to RGB color space.
func (hsv HSV) RGB() color.Color {
	h := hsv.H
	s := hsv.S
	v := hsv.V

	if s <= 0.0 {
		rgb := uint8(v * 255)
		return color.RGBA{R: rgb, G: rgb, B: rgb, A: 0xff}
	}

	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

func themeFunc(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ClassicTheme:
		return func(power float64) color.Color {
			return HSV{
				H: 240 - (power * 240),
				S: 0.9 + (power * 0.1),
				V: math.Pow(power, 0.7),
			}.RGB()
		}

	case GrayscaleTheme:
		return func(power float64) color.Color {
			v := uint8(math.Pow(power, 0.7) * 255)
			return color.RGBA{R: v, G: v, B: v, A: 0xff}
		}

	case ThermalTheme:
		return func(power float64) color.Color {
			switch {
			case power < 0.33:
				return color.RGBA{R: uint8(power * 3 * 255), A: 0xff}
			case power < 0.66:
				return color.RGBA{R: 255, G: uint8((power - 0.33) * 3 * 255), A: 0xff}
			default:
				return color.RGBA{R: 255, G: 255, B: uint8((power - 0.66) * 3 * 255), A: 0xff}
			}
		}

	case MarineTheme:
		return func(power float64) color.Color {
			return HSV{
				H: 240 - (power * 60),
				S: 1.0 - (power * 0.8),
				V: 0.3 + (math.Pow(power, 0.6) * 0.7),
			}.RGB()
		}

	default:
		return func(power float64) color.Color {
			power = math.Max(0, math.Min(1, power))
			enhanced := math.Pow(power, 0.7)

			switch {
			case power < 0.25:
				return HSV{H: 240, S: 1.0, V: enhanced * 4}.RGB()
			case power < 0.5:
				return HSV{H: 240 - ((power - 0.25) * 240), S: 1.0, V: enhanced * 1.5}.RGB()
			case power < 0.75:
				p := (power - 0.5) * 4
				return HSV{H: 180 - (p * 120), S: 1.0, V: math.Min(1.0, enhanced*1.5)}.RGB()
			default:
				p := (power - 0.75) * 4
				return HSV{H: 60 - (p * 60), S: 1.0, V: 1.0}.RGB()
			}
		}
	}
}
