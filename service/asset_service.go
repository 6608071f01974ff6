package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"

	"certistage/config"
	"certistage/models"
	"certistage/render"
)

const (
	maxRemoteImageBytes = 32 << 20
	maxDecodedImages    = 32
	assetFetchTimeout   = 30 * time.Second
)

// AssetService resolves template image references. Supported forms are
// "drive:<fileId>", "http(s)://...", "data:image/...;base64,..." and "file:<path>".
// Remote bytes are cached on disk and decoded images in memory; concurrent
// loads of one reference share a single fetch.
type AssetService struct {
	drive    DriveServiceInterface
	http     *http.Client
	cacheDir string
	baseDir  string

	group   singleflight.Group
	mu      sync.Mutex
	decoded map[string]image.Image
}

// Ensure AssetService implements render.AssetLoader and AssetServiceInterface
var (
	_ render.AssetLoader    = (*AssetService)(nil)
	_ AssetServiceInterface = (*AssetService)(nil)
)

// NewAssetService creates an asset resolver. drive may be nil when Drive is not configured;
// file: references resolve relative to baseDir.
func NewAssetService(drive DriveServiceInterface, cacheDir, baseDir string) *AssetService {
	return &AssetService{
		drive:    drive,
		http:     &http.Client{Timeout: assetFetchTimeout},
		cacheDir: cacheDir,
		baseDir:  baseDir,
		decoded:  make(map[string]image.Image),
	}
}

func cacheKey(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])
}

// Load implements render.AssetLoader
func (s *AssetService) Load(ctx context.Context, ref string) (image.Image, error) {
	key := cacheKey(ref)

	s.mu.Lock()
	if img, ok := s.decoded[key]; ok {
		s.mu.Unlock()
		return img, nil
	}
	s.mu.Unlock()

	ch := s.group.DoChan(key, func() (interface{}, error) {
		// The fetch outlives a single caller so the others still get it.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), assetFetchTimeout)
		defer cancel()

		data, err := s.Bytes(fetchCtx, ref)
		if err != nil {
			return nil, err
		}
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		s.remember(key, img)
		return img, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	}
}

func (s *AssetService) remember(key string, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.decoded) >= maxDecodedImages {
		for k := range s.decoded {
			delete(s.decoded, k)
			break
		}
	}
	s.decoded[key] = img
}

// Bytes returns the raw bytes behind a reference
func (s *AssetService) Bytes(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURI(ref)
	case strings.HasPrefix(ref, "file:"):
		return s.readFile(strings.TrimPrefix(ref, "file:"))
	case strings.HasPrefix(ref, DriveRefPrefix):
		if s.drive == nil {
			return nil, fmt.Errorf("drive assets are not configured")
		}
		fileID := strings.TrimPrefix(ref, DriveRefPrefix)
		return s.cached(ref, func() ([]byte, error) { return s.drive.DownloadImage(ctx, fileID) })
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return s.cached(ref, func() ([]byte, error) { return s.fetchURL(ctx, ref) })
	default:
		return nil, fmt.Errorf("unsupported asset reference %q", truncateRef(ref))
	}
}

// cached serves remote bytes from the disk cache, filling it on a miss
func (s *AssetService) cached(ref string, fetch func() ([]byte, error)) ([]byte, error) {
	if s.cacheDir == "" {
		return fetch()
	}
	path := filepath.Join(s.cacheDir, cacheKey(ref)+".bin")
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	data, err := fetch()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		config.Log.WithError(err).Warn("⚠️  Asset cache directory unavailable")
		return data, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		config.Log.WithError(err).Warn("⚠️  Failed to write asset cache")
		return data, nil
	}
	config.Log.WithField("ref", truncateRef(ref)).Debug("✓ Asset cached")
	return data, nil
}

func (s *AssetService) readFile(p string) ([]byte, error) {
	if !filepath.IsAbs(p) && s.baseDir != "" {
		p = filepath.Join(s.baseDir, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset file: %w", err)
	}
	return data, nil
}

func (s *AssetService) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch asset: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	if len(data) > maxRemoteImageBytes {
		return nil, fmt.Errorf("asset exceeds %d bytes", maxRemoteImageBytes)
	}
	return data, nil
}

// decodeDataURI accepts base64 image data URIs only
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") || !strings.HasPrefix(header, "image/") {
		return nil, fmt.Errorf("unsupported data URI")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return data, nil
}

func truncateRef(ref string) string {
	if len(ref) > 64 {
		return ref[:64] + "..."
	}
	return ref
}

// Thumbnail returns a downsized JPEG of an asset for the picker
func (s *AssetService) Thumbnail(ctx context.Context, ref, size string) ([]byte, error) {
	img, err := s.Load(ctx, ref)
	if err != nil {
		return nil, models.NotFound("asset thumbnail", "", err.Error())
	}
	return OptimizeImage(img, size)
}

// ListAssets lists the images of a Drive folder
func (s *AssetService) ListAssets(ctx context.Context, folderID string) ([]models.Asset, error) {
	if s.drive == nil {
		return nil, models.Invalid("list assets", "drive assets are not configured")
	}
	if strings.TrimSpace(folderID) == "" {
		return nil, models.Invalid("list assets", "folderId is required")
	}
	assets, err := s.drive.ListImages(ctx, folderID)
	if err != nil {
		return nil, models.PersistenceFailure("list assets", err)
	}
	return assets, nil
}
