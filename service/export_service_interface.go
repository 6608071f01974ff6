package service

import (
	"context"
	"io"

	"certistage/models"
)

// ExportServiceInterface defines the contract for bulk certificate export
type ExportServiceInterface interface {
	Export(ctx context.Context, sess models.Session, typeID string, w io.Writer) (ExportResult, error)
}
