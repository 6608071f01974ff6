package service

import (
	"context"
	"io"

	"certistage/models"
)

// RecipientServiceInterface defines the contract for recipient admission
type RecipientServiceInterface interface {
	List(ctx context.Context, sess models.Session, typeID string) ([]models.Recipient, error)
	AddRecipient(ctx context.Context, sess models.Session, typeID string, r models.Recipient) (models.Recipient, error)
	ImportRecipients(ctx context.Context, sess models.Session, typeID string, rows []models.Recipient) (models.AddResult, error)
	ImportCSV(ctx context.Context, sess models.Session, typeID string, r io.Reader) (models.AddResult, error)
	Delete(ctx context.Context, sess models.Session, recipientID string) error
	Usage(ctx context.Context, sess models.Session) (models.PlanUsage, error)
}
