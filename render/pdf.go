package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// Raster is an encoded JPEG ready to be wrapped into a page
type Raster struct {
	JPEG   []byte
	Width  int
	Height int
	Title  string
}

// PDFWriter wraps a raster into a single-page PDF that it fills exactly
type PDFWriter interface {
	WritePDF(ctx context.Context, raster Raster, page PageSize) ([]byte, error)
}

// documentDate is stamped as creation and modification date so that the same
// raster always yields the same bytes
var documentDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const rasterImageName = "raster"

// NativePDFWriter builds the page with fpdf, placing the JPEG over the whole
// page. Output depends only on its inputs.
type NativePDFWriter struct {
	Producer string
}

// Ensure NativePDFWriter implements PDFWriter
var _ PDFWriter = (*NativePDFWriter)(nil)

// WritePDF implements PDFWriter
func (w *NativePDFWriter) WritePDF(ctx context.Context, raster Raster, page PageSize) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raster.JPEG) == 0 || raster.Width <= 0 || raster.Height <= 0 {
		return nil, fmt.Errorf("empty raster")
	}

	producer := w.Producer
	if producer == "" {
		producer = "certistage"
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: page.WidthMM, Ht: page.HeightMM},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(documentDate)
	pdf.SetModificationDate(documentDate)
	pdf.SetProducer(producer, true)
	if raster.Title != "" {
		pdf.SetTitle(raster.Title, true)
	}
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(rasterImageName, opts, bytes.NewReader(raster.JPEG))
	pdf.ImageOptions(rasterImageName, 0, 0, page.WidthMM, page.HeightMM, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
