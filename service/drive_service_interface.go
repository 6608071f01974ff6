package service

import (
	"context"

	"certistage/models"
)

// DriveServiceInterface defines the contract for Google Drive operations
type DriveServiceInterface interface {
	ListImages(ctx context.Context, folderID string) ([]models.Asset, error)
	DownloadImage(ctx context.Context, fileID string) ([]byte, error)
}
