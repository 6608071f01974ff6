package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"certistage/models"
	"certistage/utils"
)

// RasterQuality is the fixed JPEG quality of the page raster
const RasterQuality = 95

// Document is a rendered certificate ready to be served
type Document struct {
	Filename string
	Bytes    []byte
	Page     PageSize
	Width    int
	Height   int
}

// Engine composes certificates. The editor preview, the public preview and the
// download all go through Compose so they cannot drift apart.
type Engine struct {
	assets AssetLoader
	fonts  *FontBook
	pdf    PDFWriter
	log    logrus.FieldLogger
}

// Option configures an Engine
type Option func(*Engine)

// WithFontBook overrides the embedded font palette
func WithFontBook(fonts *FontBook) Option {
	return func(e *Engine) { e.fonts = fonts }
}

// WithPDFWriter overrides the native PDF writer
func WithPDFWriter(w PDFWriter) Option {
	return func(e *Engine) { e.pdf = w }
}

// WithLogger sets the logger used for non-fatal render problems
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates a rendering engine reading images through assets
func NewEngine(assets AssetLoader, opts ...Option) *Engine {
	e := &Engine{
		assets: assets,
		fonts:  NewFontBook(""),
		pdf:    &NativePDFWriter{},
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compose draws background, name field, custom fields and signatures in that
// order onto a surface at the background's native size
func (e *Engine) Compose(ctx context.Context, req models.RenderRequest) (*image.NRGBA, error) {
	const op = "compose certificate"
	t := req.Template

	if !t.HasBackground() {
		return nil, models.RenderFailure(op, models.CodeTemplateUnavailable, fmt.Errorf("template has no background"))
	}
	bg, err := e.assets.Load(ctx, t.BackgroundImage)
	if err != nil {
		return nil, models.RenderFailure(op, models.CodeTemplateUnavailable, fmt.Errorf("failed to load background: %w", err))
	}

	surface := imaging.Clone(bg)
	w, h := surface.Bounds().Dx(), surface.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, models.RenderFailure(op, models.CodeTemplateUnavailable, fmt.Errorf("background is empty"))
	}

	if err := ctx.Err(); err != nil {
		return nil, models.RenderFailure(op, "", err)
	}

	placements, faces, err := e.layoutText(req, w, h)
	if err != nil {
		return nil, models.RenderFailure(op, "", fmt.Errorf("failed to lay out text: %w", err))
	}
	for i, p := range placements {
		drawText(surface, faces[i], p)
		faces[i].Close()
	}

	for _, sig := range t.Signatures {
		if err := ctx.Err(); err != nil {
			return nil, models.RenderFailure(op, "", err)
		}
		surface = e.drawSignature(ctx, surface, sig, req.Recipient.ID)
	}

	return surface, nil
}

// drawSignature overlays one signature. A signature that cannot be loaded is
// logged and skipped.
func (e *Engine) drawSignature(ctx context.Context, surface *image.NRGBA, sig models.ImageField, recipientID string) *image.NRGBA {
	img, err := e.assets.Load(ctx, sig.Image)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"signature_id": sig.ID,
			"recipient_id": recipientID,
		}).WithError(err).Warn("⚠️  Skipping signature that failed to load")
		return surface
	}

	w, h := float64(surface.Bounds().Dx()), float64(surface.Bounds().Dy())
	width := int(math.Round(sig.Width * w / 100))
	if width < 1 {
		return surface
	}
	scaled := imaging.Resize(img, width, 0, imaging.Lanczos)

	cx, cy := sig.Position.Clamp().ToPixel(w, h)
	at := image.Pt(
		int(math.Round(cx-float64(scaled.Bounds().Dx())/2)),
		int(math.Round(cy-float64(scaled.Bounds().Dy())/2)),
	)
	return imaging.Overlay(surface, scaled, at, 1.0)
}

// Layout returns the text placements Compose would draw on a surface of the given size
func (e *Engine) Layout(req models.RenderRequest, surfaceW, surfaceH int) ([]TextPlacement, error) {
	placements, faces, err := e.layoutText(req, surfaceW, surfaceH)
	for _, f := range faces {
		f.Close()
	}
	return placements, err
}

// EncodeRaster encodes the surface at the fixed print quality
func (e *Engine) EncodeRaster(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(RasterQuality)); err != nil {
		return nil, models.RenderFailure("encode raster", "", fmt.Errorf("failed to encode JPEG: %w", err))
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes a preview layer losslessly
func (e *Engine) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, models.RenderFailure("encode preview", "", fmt.Errorf("failed to encode PNG: %w", err))
	}
	return buf.Bytes(), nil
}

// RenderPreview composes the certificate and returns it as PNG
func (e *Engine) RenderPreview(ctx context.Context, req models.RenderRequest) ([]byte, error) {
	img, err := e.Compose(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.EncodePNG(img)
}

// RenderPDF composes the certificate and wraps it into a single-page PDF
func (e *Engine) RenderPDF(ctx context.Context, req models.RenderRequest) (*Document, error) {
	img, err := e.Compose(ctx, req)
	if err != nil {
		return nil, err
	}
	jpg, err := e.EncodeRaster(img)
	if err != nil {
		return nil, err
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	page := PageFor(w, h)
	data, err := e.pdf.WritePDF(ctx, Raster{JPEG: jpg, Width: w, Height: h, Title: req.Template.Name}, page)
	if err != nil {
		return nil, models.RenderFailure("write pdf", "", err)
	}

	e.log.WithFields(logrus.Fields{
		"recipient_id": req.Recipient.ID,
		"type_id":      req.Template.TypeID,
		"bytes":        len(data),
	}).Debug("✓ Certificate rendered")

	return &Document{
		Filename: utils.CertificateFilename(req.Template.Name, req.Recipient.CertificateID),
		Bytes:    data,
		Page:     page,
		Width:    w,
		Height:   h,
	}, nil
}
