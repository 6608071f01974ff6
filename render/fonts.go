package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"certistage/models"
)

// FontStyle identifies one face of the palette
type FontStyle struct {
	Family models.FontFamily
	Bold   bool
	Italic bool
}

// PostScriptName returns the base-14 name of the style, e.g. "Times-BoldItalic"
func (s FontStyle) PostScriptName() string {
	switch s.Family {
	case models.FontTimes:
		switch {
		case s.Bold && s.Italic:
			return "Times-BoldItalic"
		case s.Bold:
			return "Times-Bold"
		case s.Italic:
			return "Times-Italic"
		}
		return "Times-Roman"
	case models.FontCourier:
		return "Courier" + obliqueSuffix(s)
	default:
		return "Helvetica" + obliqueSuffix(s)
	}
}

func obliqueSuffix(s FontStyle) string {
	switch {
	case s.Bold && s.Italic:
		return "-BoldOblique"
	case s.Bold:
		return "-Bold"
	case s.Italic:
		return "-Oblique"
	}
	return ""
}

// builtinFonts maps the palette onto the embedded Go fonts.
// Go sans stands in for Helvetica, Go medium for Times and Go mono for Courier.
var builtinFonts = map[string][]byte{
	"Helvetica":             goregular.TTF,
	"Helvetica-Bold":        gobold.TTF,
	"Helvetica-Oblique":     goitalic.TTF,
	"Helvetica-BoldOblique": gobolditalic.TTF,
	"Times-Roman":           gomedium.TTF,
	"Times-Bold":            gobold.TTF,
	"Times-Italic":          gomediumitalic.TTF,
	"Times-BoldItalic":      gobolditalic.TTF,
	"Courier":               gomono.TTF,
	"Courier-Bold":          gomonobold.TTF,
	"Courier-Oblique":       gomonoitalic.TTF,
	"Courier-BoldOblique":   gomonobolditalic.TTF,
}

// FontBook parses each palette font once. Faces are created per render
// because opentype faces are not safe for concurrent use.
type FontBook struct {
	mu     sync.Mutex
	dir    string
	parsed map[string]*opentype.Font
}

// NewFontBook returns a palette backed by the embedded fonts. When dir is set,
// a file named <PostScriptName>.ttf or .otf in it overrides the embedded face.
func NewFontBook(dir string) *FontBook {
	return &FontBook{dir: dir, parsed: make(map[string]*opentype.Font)}
}

// Font returns the parsed font for a style
func (b *FontBook) Font(style FontStyle) (*opentype.Font, error) {
	name := style.PostScriptName()

	b.mu.Lock()
	defer b.mu.Unlock()

	if f, ok := b.parsed[name]; ok {
		return f, nil
	}

	data, err := b.fontData(name)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", name, err)
	}
	b.parsed[name] = f
	return f, nil
}

func (b *FontBook) fontData(name string) ([]byte, error) {
	if b.dir != "" {
		for _, ext := range []string{".ttf", ".otf"} {
			data, err := os.ReadFile(filepath.Join(b.dir, name+ext))
			if err == nil {
				return data, nil
			}
		}
	}
	data, ok := builtinFonts[name]
	if !ok {
		return nil, fmt.Errorf("font %s is not in the palette", name)
	}
	return data, nil
}

// Face returns a new face of the style at sizePx surface pixels
func (b *FontBook) Face(style FontStyle, sizePx float64) (font.Face, error) {
	f, err := b.Font(style)
	if err != nil {
		return nil, err
	}
	// At 72 DPI one point is one pixel, so Size is the pixel size directly.
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s face: %w", style.PostScriptName(), err)
	}
	return face, nil
}
