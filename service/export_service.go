package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"certistage/models"
	"certistage/render"
	"certistage/repository"
	"certistage/utils"
)

// ExportResult summarises a bulk export
type ExportResult struct {
	Filename string `json:"filename"`
	Files    int    `json:"files"`
}

// ExportService renders every certificate of a type into one zip archive.
// Exports are an operator tool and never touch download counters.
type ExportService struct {
	recipients repository.RecipientStore
	templates  repository.TemplateStore
	renderer   Renderer
	workers    int
}

// Ensure ExportService implements ExportServiceInterface
var _ ExportServiceInterface = (*ExportService)(nil)

// NewExportService creates a new ExportService rendering with up to workers goroutines
func NewExportService(recipients repository.RecipientStore, templates repository.TemplateStore, renderer Renderer, workers int) *ExportService {
	if workers < 1 {
		workers = 1
	}
	return &ExportService{
		recipients: recipients,
		templates:  templates,
		renderer:   renderer,
		workers:    workers,
	}
}

// ArchiveName is the download name of a type's export
func ArchiveName(t models.CertificateTemplate) string {
	name := utils.SanitizeFilenamePart(t.Name)
	if name == "" {
		name = "certificates"
	}
	return name + ".zip"
}

// Export writes the zip to w. Entries follow the recipient list order whatever
// order the workers finish in. The first render failure aborts the export.
func (s *ExportService) Export(ctx context.Context, sess models.Session, typeID string, w io.Writer) (ExportResult, error) {
	t, err := s.templates.GetTemplate(ctx, sess.EventID, typeID)
	if err != nil {
		return ExportResult{}, storeError("get template", err)
	}
	if !t.HasBackground() {
		return ExportResult{}, models.NotFound("export certificates", models.CodeTemplateUnavailable, "template has no background")
	}
	list, err := s.recipients.ListRecipients(ctx, sess.EventID, typeID)
	if err != nil {
		return ExportResult{}, storeError("list recipients", err)
	}

	started := time.Now()
	docs := make([]*render.Document, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, r := range list {
		req := models.NewRenderRequest(t, r)
		g.Go(func() error {
			doc, err := s.renderer.RenderPDF(gctx, req)
			if err != nil {
				return fmt.Errorf("failed to render %s: %w", req.Recipient.CertificateID, err)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if models.KindOf(err) == models.KindUnknown {
			return ExportResult{}, models.RenderFailure("export certificates", "", err)
		}
		return ExportResult{}, err
	}

	zw := zip.NewWriter(w)
	for _, doc := range docs {
		// PDFs carry JPEG data already, deflating them gains nothing
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     doc.Filename,
			Method:   zip.Store,
			Modified: t.UpdatedAt,
		})
		if err != nil {
			return ExportResult{}, fmt.Errorf("failed to add %s to archive: %w", doc.Filename, err)
		}
		if _, err := entry.Write(doc.Bytes); err != nil {
			return ExportResult{}, fmt.Errorf("failed to write %s to archive: %w", doc.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return ExportResult{}, fmt.Errorf("failed to finish archive: %w", err)
	}

	sessionLog(sess).WithField("type_id", typeID).Infof("📦 Exported %d certificates in %s", len(docs), time.Since(started).Round(time.Millisecond))
	return ExportResult{Filename: ArchiveName(t), Files: len(docs)}, nil
}
