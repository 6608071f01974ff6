package service

import (
	"context"

	"certistage/models"
)

// TemplateServiceInterface defines the contract for admin template operations
type TemplateServiceInterface interface {
	ListTypes(ctx context.Context, sess models.Session) ([]models.CertificateType, error)
	Get(ctx context.Context, sess models.Session, typeID string) (models.CertificateTemplate, error)
	Patch(ctx context.Context, sess models.Session, typeID string, patch models.TemplatePatch) (models.CertificateTemplate, error)
	Preview(ctx context.Context, sess models.Session, typeID, recipientID string) ([]byte, error)
}
