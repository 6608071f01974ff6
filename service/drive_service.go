package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"certistage/config"
	"certistage/models"
)

// DriveRefPrefix marks asset references stored in Google Drive
const DriveRefPrefix = "drive:"

// maxDriveImageBytes bounds a single download
const maxDriveImageBytes = 32 << 20

// DriveService handles Google Drive API operations
type DriveService struct {
	client *drive.Service
}

// Ensure DriveService implements DriveServiceInterface
var _ DriveServiceInterface = (*DriveService)(nil)

// NewDriveService creates a new DriveService instance
// credentialsPath should be the path to the Service Account JSON file
func NewDriveService(ctx context.Context, credentialsPath string) (*DriveService, error) {
	driveService, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &DriveService{
		client: driveService,
	}, nil
}

var imageMimeTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
}

// ListImages lists the image files of a Drive folder as template assets
func (ds *DriveService) ListImages(ctx context.Context, folderID string) ([]models.Asset, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false", strings.ReplaceAll(folderID, "'", "\\'"))

	var allFiles []*drive.File
	pageToken := ""
	for {
		call := ds.client.Files.List().
			Context(ctx).
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType)").
			OrderBy("name")

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		r, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}

		allFiles = append(allFiles, r.Files...)
		pageToken = r.NextPageToken

		if pageToken == "" {
			break
		}
	}

	assets := make([]models.Asset, 0, len(allFiles))
	for _, file := range allFiles {
		if !imageMimeTypes[strings.ToLower(file.MimeType)] {
			continue
		}
		assets = append(assets, models.Asset{
			ID:       file.Id,
			Name:     file.Name,
			MimeType: file.MimeType,
			Ref:      DriveRefPrefix + file.Id,
		})
	}

	config.Log.WithField("folder_id", folderID).Infof("📦 Found %d images in Drive folder", len(assets))
	return assets, nil
}

// DownloadImage fetches the raw bytes of a Drive file
func (ds *DriveService) DownloadImage(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := ds.client.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDriveImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	if len(data) > maxDriveImageBytes {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fileID, maxDriveImageBytes)
	}
	return data, nil
}
