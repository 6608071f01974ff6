package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromePDFWriter prints the raster through headless Chrome. It is an
// alternative to NativePDFWriter for deployments that already ship Chromium.
type ChromePDFWriter struct {
	ChromePath string
	Timeout    time.Duration
}

// Ensure ChromePDFWriter implements PDFWriter
var _ PDFWriter = (*ChromePDFWriter)(nil)

// DetectChromePath detects the path to Chrome/Chromium executable
// Checks CHROME_PATH env var first, then common installation paths
func DetectChromePath() string {
	if chromePath := os.Getenv("CHROME_PATH"); chromePath != "" {
		if _, err := os.Stat(chromePath); err == nil {
			return chromePath
		}
	}

	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// pageHTML lays the raster over the whole page with no margins
func pageHTML(raster Raster, p PageSize) string {
	src := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raster.JPEG)
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title><style>
@page { size: %.2fmm %.2fmm; margin: 0; }
html, body { margin: 0; padding: 0; width: %.2fmm; height: %.2fmm; overflow: hidden; }
img { display: block; width: %.2fmm; height: %.2fmm; }
</style></head><body><img src="%s"></body></html>`,
		html.EscapeString(raster.Title), p.WidthMM, p.HeightMM, p.WidthMM, p.HeightMM, p.WidthMM, p.HeightMM, src)
}

// WritePDF implements PDFWriter
func (w *ChromePDFWriter) WritePDF(ctx context.Context, raster Raster, p PageSize) ([]byte, error) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox, // Required for running in Docker/containers
		chromedp.Flag("enable-print-preview", true),
	)
	chromePath := w.ChromePath
	if chromePath == "" {
		chromePath = DetectChromePath()
	}
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromedpCtx, chromedpCancel := chromedp.NewContext(allocCtx)
	defer chromedpCancel()

	doc := pageHTML(raster, p)
	var pdfBuf []byte

	err := chromedp.Run(chromedpCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.WaitReady("img"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(p.WidthIn()).
				WithPaperHeight(p.HeightIn()).
				WithLandscape(false).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return pdfBuf, nil
}
