package service

import (
	"context"

	"certistage/models"
	"certistage/repository"
)

// TemplateService handles admin template reads, patches and previews
type TemplateService struct {
	templates  repository.TemplateStore
	recipients repository.RecipientStore
	renderer   Renderer
}

// Ensure TemplateService implements TemplateServiceInterface
var _ TemplateServiceInterface = (*TemplateService)(nil)

// NewTemplateService creates a new TemplateService
func NewTemplateService(templates repository.TemplateStore, recipients repository.RecipientStore, renderer Renderer) *TemplateService {
	return &TemplateService{
		templates:  templates,
		recipients: recipients,
		renderer:   renderer,
	}
}

// ListTypes returns the certificate types of the session's event
func (s *TemplateService) ListTypes(ctx context.Context, sess models.Session) ([]models.CertificateType, error) {
	types, err := s.templates.ListTypes(ctx, sess.EventID)
	if err != nil {
		return nil, storeError("list types", err)
	}
	return types, nil
}

// Get returns the persisted template of a certificate type
func (s *TemplateService) Get(ctx context.Context, sess models.Session, typeID string) (models.CertificateTemplate, error) {
	t, err := s.templates.GetTemplate(ctx, sess.EventID, typeID)
	if err != nil {
		return models.CertificateTemplate{}, storeError("get template", err)
	}
	return t, nil
}

// Patch validates the merged result before handing the patch to the store
func (s *TemplateService) Patch(ctx context.Context, sess models.Session, typeID string, patch models.TemplatePatch) (models.CertificateTemplate, error) {
	if patch.IsEmpty() {
		return models.CertificateTemplate{}, models.Invalid("patch template", "patch is empty")
	}

	current, err := s.Get(ctx, sess, typeID)
	if err != nil {
		return models.CertificateTemplate{}, err
	}
	if err := models.ValidateTemplate(patch.Apply(current)); err != nil {
		return models.CertificateTemplate{}, err
	}

	saved, err := s.templates.PatchTemplate(ctx, sess.EventID, typeID, patch)
	if err != nil {
		return models.CertificateTemplate{}, storeError("patch template", err)
	}

	sessionLog(sess).WithField("type_id", typeID).Infof("💾 Template saved (version %d)", saved.Version)
	return saved, nil
}

// Preview renders the persisted template for one recipient of the type, or
// for the sample recipient when recipientID is empty
func (s *TemplateService) Preview(ctx context.Context, sess models.Session, typeID, recipientID string) ([]byte, error) {
	t, err := s.Get(ctx, sess, typeID)
	if err != nil {
		return nil, err
	}

	recipient := models.SampleRecipient()
	if recipientID != "" {
		r, err := s.recipients.GetByID(ctx, recipientID)
		if err != nil {
			return nil, storeError("get recipient", err)
		}
		if r.EventID != sess.EventID || r.TypeID != typeID {
			return nil, models.NotFound("preview template", models.CodeRecipientNotFound, "recipient not found")
		}
		recipient = r
	}

	return s.renderer.RenderPreview(ctx, models.NewRenderRequest(t, recipient))
}
