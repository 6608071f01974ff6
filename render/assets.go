package render

import (
	"context"
	"fmt"
	"image"
)

// AssetLoader resolves an opaque image reference into a decoded image
type AssetLoader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// AssetLoaderFunc adapts a function to AssetLoader
type AssetLoaderFunc func(ctx context.Context, ref string) (image.Image, error)

// Load implements AssetLoader
func (f AssetLoaderFunc) Load(ctx context.Context, ref string) (image.Image, error) {
	return f(ctx, ref)
}

// MapLoader serves images from memory. Used by the CLI and tests.
type MapLoader map[string]image.Image

// Load implements AssetLoader
func (m MapLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("asset %q not found", ref)
	}
	return img, nil
}
