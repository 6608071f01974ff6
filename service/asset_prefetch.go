package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"certistage/config"
	"certistage/models"
)

// PrefetchResult reports one cache warm-up run over a Drive folder
type PrefetchResult struct {
	Total      int      `json:"total"`
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

// isCached reports whether ref already has bytes in the disk cache
func (s *AssetService) isCached(ref string) bool {
	if s.cacheDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(s.cacheDir, cacheKey(ref)+".bin"))
	return err == nil
}

// Prefetch downloads every image of a Drive folder into the disk cache so the
// first renders of an event do not wait on Drive. Files already cached are
// skipped; per-file failures are collected and do not stop the run.
func (s *AssetService) Prefetch(ctx context.Context, folderID string) (PrefetchResult, error) {
	const op = "prefetch assets"
	if s.cacheDir == "" {
		return PrefetchResult{}, models.Invalid(op, "asset cache directory is not configured")
	}
	assets, err := s.ListAssets(ctx, folderID)
	if err != nil {
		return PrefetchResult{}, err
	}

	log := config.Log.WithFields(logrus.Fields{"folder_id": folderID, "cache_dir": s.cacheDir})
	log.Infof("📥 Prefetching %d assets", len(assets))

	res := PrefetchResult{Total: len(assets)}
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if s.isCached(a.Ref) {
			res.Skipped++
			continue
		}

		data, err := s.Bytes(ctx, a.Ref)
		if err != nil {
			msg := fmt.Sprintf("failed to download %s (%s): %v", a.Name, strings.TrimPrefix(a.Ref, DriveRefPrefix), err)
			log.Warn("❌ " + msg)
			res.Errors = append(res.Errors, msg)
			continue
		}
		if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
			_ = os.Remove(filepath.Join(s.cacheDir, cacheKey(a.Ref)+".bin"))
			msg := fmt.Sprintf("%s is not a readable image: %v", a.Name, err)
			log.Warn("❌ " + msg)
			res.Errors = append(res.Errors, msg)
			continue
		}
		res.Downloaded++
	}

	log.Infof("🎉 Prefetch completed: %d downloaded, %d skipped, %d failed out of %d", res.Downloaded, res.Skipped, len(res.Errors), res.Total)
	return res, nil
}
