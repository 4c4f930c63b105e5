// Package storage persists uploaded recipe images on the local filesystem
// or in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/skrskr/recipe-app-api/pkg/recipeapi/config"
)

// RecipeImageDir is the key prefix for recipe images.
const RecipeImageDir = "uploads/recipe"

// Storage saves and removes objects addressed by a slash-separated key.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the address clients use to fetch key.
	URL(key string) string
	// Backend names the implementation, e.g. "local" or "s3".
	Backend() string
}

var newUUID = uuid.NewString

// RecipeImagePath returns a fresh storage key for an uploaded image,
// keeping the extension of the client's filename.
func RecipeImagePath(filename string) string {
	name := newUUID()
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if i := strings.LastIndex(base, "."); i >= 0 && i < len(base)-1 {
		name += base[i:]
	}
	return path.Join(RecipeImageDir, name)
}

// New returns the backend selected by cfg.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.MediaRoot, cfg.MediaURL), nil
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
