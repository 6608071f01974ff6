package models

import "math"

// Position places a field as a percentage of the rendered surface.
// (0,0) is the top-left corner and (100,100) the bottom-right.
type Position struct {
	X float64 `json:"x" validate:"gte=0,lte=100"`
	Y float64 `json:"y" validate:"gte=0,lte=100"`
}

// ToPixel maps the position onto a surface of the given size.
// No rounding happens here; callers round once when they draw.
func (p Position) ToPixel(surfaceWidth, surfaceHeight float64) (float64, float64) {
	return surfaceWidth * p.X / 100, surfaceHeight * p.Y / 100
}

// PositionFromPixel is the inverse of ToPixel for the same surface size
func PositionFromPixel(px, py, surfaceWidth, surfaceHeight float64) Position {
	var p Position
	if surfaceWidth > 0 {
		p.X = px * 100 / surfaceWidth
	}
	if surfaceHeight > 0 {
		p.Y = py * 100 / surfaceHeight
	}
	return p
}

// Clamp keeps both axes inside [0,100]
func (p Position) Clamp() Position {
	return Position{X: clampPercent(p.X), Y: clampPercent(p.Y)}
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// FontScale converts design pixels into surface pixels.
// A zero reference width means the design was calibrated on the surface itself.
func FontScale(referenceWidth, surfaceWidth float64) float64 {
	if referenceWidth <= 0 || surfaceWidth <= 0 {
		return 1
	}
	return surfaceWidth / referenceWidth
}

// ScaledFontSize returns the font size in surface pixels
func ScaledFontSize(designSize, referenceWidth, surfaceWidth float64) float64 {
	return designSize * FontScale(referenceWidth, surfaceWidth)
}
