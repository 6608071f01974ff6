package service

import (
	"context"

	"certistage/models"
	"certistage/render"
)

// DeliveryServiceInterface defines the contract for public certificate delivery
type DeliveryServiceInterface interface {
	Verify(ctx context.Context, sess models.Session, contact, typeID string) (*VerifyResult, error)
	DirectLink(ctx context.Context, sess models.Session, certificateID string) (*VerifyResult, error)
	Preview(ctx context.Context, sess models.Session, token string) ([]byte, error)
	Download(ctx context.Context, sess models.Session, token string) (*render.Document, error)
}
