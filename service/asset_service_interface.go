package service

import (
	"context"

	"certistage/models"
)

// AssetServiceInterface defines the contract for the admin asset picker
type AssetServiceInterface interface {
	ListAssets(ctx context.Context, folderID string) ([]models.Asset, error)
	Thumbnail(ctx context.Context, ref, size string) ([]byte, error)
	Prefetch(ctx context.Context, folderID string) (PrefetchResult, error)
}
