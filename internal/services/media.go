package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/boogle-events/apiserver/internal/idgen"
)

// MaxImageBytes caps uploaded images.
const MaxImageBytes = 3 << 20

// Media folders.
const (
	FolderEvents  = "events"
	FolderAvatars = "avatars"
)

var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// MediaStorage is the object store images are hosted on.
type MediaStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	KeyFromURL(rawURL string) (string, bool)
}

// Upload is an image received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// MediaService validates images and hosts them on object storage.
type MediaService struct {
	storage MediaStorage
}

// NewMediaService constructs a MediaService. A nil storage disables uploads.
func NewMediaService(storage MediaStorage) *MediaService {
	return &MediaService{storage: storage}
}

// UploadImage validates upload and stores it under folder, returning its
// public URL.
func (s *MediaService) UploadImage(ctx context.Context, folder string, upload Upload) (string, error) {
	if s == nil || s.storage == nil {
		return "", fmt.Errorf("%w: image uploads are not enabled", ErrValidation)
	}
	if len(upload.Data) == 0 {
		return "", fmt.Errorf("%w: image file is empty", ErrValidation)
	}
	if len(upload.Data) > MaxImageBytes {
		return "", fmt.Errorf("%w: image must be at most 3MB", ErrValidation)
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	want, ok := allowedImageTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: only .jpg, .jpeg and .png images are allowed", ErrValidation)
	}
	if detected := http.DetectContentType(upload.Data); detected != want {
		return "", fmt.Errorf("%w: file content does not match %s", ErrValidation, ext)
	}

	id, err := idgen.New(idgen.PrefixImage)
	if err != nil {
		return "", err
	}
	key := folder + "/" + id + ext
	if err := s.storage.Put(ctx, key, bytes.NewReader(upload.Data), int64(len(upload.Data)), want); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return s.storage.URL(key), nil
}

// Discard removes a previously uploaded image. URLs not hosted here are
// ignored and failures are only logged.
func (s *MediaService) Discard(ctx context.Context, rawURL string) {
	if s == nil || s.storage == nil || rawURL == "" {
		return
	}
	key, ok := s.storage.KeyFromURL(rawURL)
	if !ok {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to delete image", "key", key, "error", err)
	}
}
