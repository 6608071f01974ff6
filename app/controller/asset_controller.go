package controller

import (
	"net/http"

	"certistage/service"
)

// AssetController handles the admin image picker
type AssetController struct {
	assets service.AssetServiceInterface
}

// NewAssetController creates a new AssetController
func NewAssetController(assets service.AssetServiceInterface) *AssetController {
	return &AssetController{assets: assets}
}

// ListAssets handles GET /admin/assets?folderId=
func (c *AssetController) ListAssets(w http.ResponseWriter, r *http.Request) {
	folderID := r.URL.Query().Get("folderId")
	if folderID == "" {
		writeBadRequest(w, r, "folderId query parameter is required")
		return
	}
	assets, err := c.assets.ListAssets(r.Context(), folderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"assets": assets, "total": len(assets)})
}

// Thumbnail handles GET /admin/assets/thumbnail?ref=&size=thumb|medium
func (c *AssetController) Thumbnail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := q.Get("ref")
	if ref == "" {
		writeBadRequest(w, r, "ref query parameter is required")
		return
	}
	size := q.Get("size")
	if size == "" {
		size = service.SizeThumb
	}
	data, err := c.assets.Thumbnail(r.Context(), ref, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Prefetch handles POST /admin/assets/prefetch?folderId=
// It warms the asset cache with every image of a Drive folder.
func (c *AssetController) Prefetch(w http.ResponseWriter, r *http.Request) {
	folderID := r.URL.Query().Get("folderId")
	if folderID == "" {
		writeBadRequest(w, r, "folderId query parameter is required")
		return
	}
	res, err := c.assets.Prefetch(r.Context(), folderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
