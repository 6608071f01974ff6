package repository

import (
	"context"
	"time"

	"certistage/models"
)

// TemplateStore persists one template per certificate type. Patches are
// shallow-merged per top-level field.
type TemplateStore interface {
	GetTemplate(ctx context.Context, eventID, typeID string) (models.CertificateTemplate, error)
	PatchTemplate(ctx context.Context, eventID, typeID string, patch models.TemplatePatch) (models.CertificateTemplate, error)
	ListTypes(ctx context.Context, eventID string) ([]models.CertificateType, error)
}

// RecipientStore is the recipient directory
type RecipientStore interface {
	ListRecipients(ctx context.Context, eventID, typeID string) ([]models.Recipient, error)
	// AddRecipients admits recipients in order until the event holds limit
	// recipients. A negative limit means unlimited. Certificate ids already
	// present in the type are counted as duplicates and never consume quota.
	AddRecipients(ctx context.Context, eventID, typeID string, recipients []models.Recipient, limit int) (models.AddResult, error)
	// RecordDownload atomically bumps the download counter of one recipient.
	// A non-negative limit refuses the bump with QuotaExceeded once the counter
	// has reached it; -1 means unlimited.
	RecordDownload(ctx context.Context, recipientID string, at time.Time, limit int) (models.Recipient, error)
	// FindCandidates matches a normalised key across every type of the event
	FindCandidates(ctx context.Context, eventID string, key models.SearchField, value string) ([]models.Recipient, error)
	GetByCertificateID(ctx context.Context, eventID, typeID, certificateID string) (models.Recipient, error)
	GetByID(ctx context.Context, recipientID string) (models.Recipient, error)
	Delete(ctx context.Context, recipientID string) error
	CountByEvent(ctx context.Context, eventID string) (int, error)
}

// EventStore reads events, which are owned by admin CRUD
type EventStore interface {
	GetEvent(ctx context.Context, eventID string) (models.Event, error)
}

// Ensure the implementations satisfy the stores
var (
	_ TemplateStore  = (*TemplateRepository)(nil)
	_ RecipientStore = (*RecipientRepository)(nil)
	_ EventStore     = (*EventRepository)(nil)
	_ TemplateStore  = (*MemoryStore)(nil)
	_ RecipientStore = (*MemoryStore)(nil)
	_ EventStore     = (*MemoryStore)(nil)
)
