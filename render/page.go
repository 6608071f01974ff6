package render

// LongEdgeMM is the physical length of the longer page side (A4 long edge)
const LongEdgeMM = 297.0

const mmPerInch = 25.4

// PageSize is a PDF page proportional to the raster it carries
type PageSize struct {
	WidthMM   float64
	HeightMM  float64
	Landscape bool
}

// PageFor picks orientation from the raster aspect ratio and scales the
// short edge so the raster fills the page exactly
func PageFor(pixelWidth, pixelHeight int) PageSize {
	if pixelWidth <= 0 || pixelHeight <= 0 {
		return PageSize{WidthMM: LongEdgeMM, HeightMM: LongEdgeMM * 210 / 297, Landscape: true}
	}
	w, h := float64(pixelWidth), float64(pixelHeight)
	if w >= h {
		return PageSize{WidthMM: LongEdgeMM, HeightMM: LongEdgeMM * h / w, Landscape: true}
	}
	return PageSize{WidthMM: LongEdgeMM * w / h, HeightMM: LongEdgeMM}
}

// WidthIn returns the width in inches
func (p PageSize) WidthIn() float64 {
	return p.WidthMM / mmPerInch
}

// HeightIn returns the height in inches
func (p PageSize) HeightIn() float64 {
	return p.HeightMM / mmPerInch
}
