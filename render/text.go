package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"certistage/models"
	"certistage/utils"
)

// TextPlacement is a fully resolved text draw: what, where and how big
type TextPlacement struct {
	FieldID   string
	Text      string
	Style     FontStyle
	SizePx    float64
	Color     color.NRGBA
	Alignment models.Alignment
	// AnchorX/AnchorY is the field position on the surface in pixels
	AnchorX float64
	AnchorY float64
	// DotX/DotY is the baseline origin handed to the rasterizer
	DotX  float64
	DotY  float64
	Width float64
}

// CenterX returns the horizontal middle of the laid-out run
func (p TextPlacement) CenterX() float64 {
	return p.DotX + p.Width/2
}

// layoutText resolves the name field and custom fields in draw order.
// Fields with an empty value produce no placement at all.
func (e *Engine) layoutText(req models.RenderRequest, surfaceW, surfaceH int) ([]TextPlacement, []font.Face, error) {
	t := req.Template
	w, h := float64(surfaceW), float64(surfaceH)

	var placements []TextPlacement
	var faces []font.Face

	add := func(field models.TextField, value string, align models.Alignment) error {
		if strings.TrimSpace(value) == "" {
			return nil
		}
		style := FontStyle{Family: field.FontFamily, Bold: field.Bold, Italic: field.Italic}
		size := models.ScaledFontSize(field.FontSize, t.ReferenceWidth, w)
		face, err := e.fonts.Face(style, size)
		if err != nil {
			return err
		}
		col, err := parseHexColor(field.Color)
		if err != nil {
			return err
		}
		ax, ay := field.Position.Clamp().ToPixel(w, h)
		width := fixedToFloat(font.MeasureString(face, value))
		m := face.Metrics()
		ascent, descent := fixedToFloat(m.Ascent), fixedToFloat(m.Descent)

		dotX := ax
		switch align {
		case models.AlignCenter:
			dotX = ax - width/2
		case models.AlignRight:
			dotX = ax - width
		}
		// Vertical centre of the ascent+descent box sits on the anchor.
		dotY := ay + (ascent-descent)/2

		placements = append(placements, TextPlacement{
			FieldID:   field.ID,
			Text:      value,
			Style:     style,
			SizePx:    size,
			Color:     col,
			Alignment: align,
			AnchorX:   ax,
			AnchorY:   ay,
			DotX:      dotX,
			DotY:      dotY,
			Width:     width,
		})
		faces = append(faces, face)
		return nil
	}

	if nf := t.NameField; nf != nil && nf.Enabled {
		name := utils.ApplyTextCase(req.Recipient.Name, string(nf.TextCase))
		if err := add(*nf, name, t.EffectiveAlignment()); err != nil {
			return nil, nil, err
		}
	}

	for _, cf := range t.CustomFields {
		if err := add(cf, cf.Variable.RecipientValue(req.Recipient), models.AlignCenter); err != nil {
			return nil, nil, err
		}
	}

	return placements, faces, nil
}

// drawText rasterizes one placement onto dst
func drawText(dst draw.Image, face font.Face, p TextPlacement) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(p.Color),
		Face: face,
		Dot: fixed.Point26_6{
			X: floatToFixed(p.DotX),
			Y: floatToFixed(p.DotY),
		},
	}
	d.DrawString(p.Text)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

// parseHexColor accepts #RGB and #RRGGBB; empty means black
func parseHexColor(s string) (color.NRGBA, error) {
	black := color.NRGBA{A: 0xff}
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 0:
		return black, nil
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return black, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return black, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
