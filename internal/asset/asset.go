// Package asset stores small binary objects such as workspace logos.
package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/nebari-dev/tenancy/internal/models"
	"github.com/nebari-dev/tenancy/internal/repository"
)

// ErrNotFound is returned for unknown asset ids.
var ErrNotFound = repository.ErrNotFound

// allowedContentTypes lists the image formats accepted for upload.
var allowedContentTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/svg+xml",
	"image/x-icon",
	"image/webp",
}

// FilePart is one uploaded file.
type FilePart struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// SizeError reports an upload over its size constraint.
type SizeError struct {
	Limit int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("file exceeds the maximum allowed size of %s", formatBytes(e.Limit))
}

// ContentTypeError reports an upload whose content is not an accepted image.
type ContentTypeError struct {
	ContentType string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("unsupported content type %q", e.ContentType)
}

// BlobStore holds asset bytes. Put may record where it placed the bytes on
// the asset before the row is written.
type BlobStore interface {
	Put(ctx context.Context, a *models.Asset, data []byte) error
	Get(ctx context.Context, a *models.Asset) ([]byte, error)
	Delete(ctx context.Context, a *models.Asset) error
}

// Service uploads and removes assets.
type Service struct {
	repo  *repository.AssetRepository
	store BlobStore
}

// NewService creates an asset service.
func NewService(repo *repository.AssetRepository, store BlobStore) *Service {
	return &Service{repo: repo, store: store}
}

// Upload reads part, checks it against maxKB and the accepted image types and
// persists it.
func (s *Service) Upload(ctx context.Context, part FilePart, maxKB int) (*models.Asset, error) {
	if part.Content == nil {
		return nil, fmt.Errorf("upload %q: empty file part", part.Filename)
	}

	limit := int64(maxKB) * 1024
	data, err := io.ReadAll(io.LimitReader(part.Content, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", part.Filename, err)
	}
	if int64(len(data)) > limit {
		return nil, &SizeError{Limit: limit}
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedContentTypes...) {
		return nil, &ContentTypeError{ContentType: mtype.String()}
	}

	a := &models.Asset{
		ID:          uuid.New(),
		ContentType: mtype.String(),
		Size:        int64(len(data)),
	}
	if err := s.store.Put(ctx, a, data); err != nil {
		return nil, fmt.Errorf("store asset: %w", err)
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if delErr := s.store.Delete(ctx, a); delErr != nil {
			slog.Warn("Failed to clean up blob after asset insert failed", "asset_id", a.ID, "error", delErr)
		}
		return nil, fmt.Errorf("create asset: %w", err)
	}

	slog.Debug("Asset uploaded", "asset_id", a.ID, "content_type", a.ContentType, "size", a.Size)
	return a, nil
}

// Get returns the asset and its bytes.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Asset, []byte, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Get(ctx, a)
	if err != nil {
		return nil, nil, fmt.Errorf("read asset %s: %w", id, err)
	}
	return a, data, nil
}

// Remove deletes the asset bytes and row.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, a); err != nil {
		return fmt.Errorf("delete blob for asset %s: %w", id, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return nil
}

// DatabaseStore keeps asset bytes on the asset row itself.
type DatabaseStore struct{}

func (DatabaseStore) Put(_ context.Context, a *models.Asset, data []byte) error {
	a.Data = bytes.Clone(data)
	return nil
}

func (DatabaseStore) Get(_ context.Context, a *models.Asset) ([]byte, error) {
	return a.Data, nil
}

// Delete is a no-op; the bytes go with the row.
func (DatabaseStore) Delete(context.Context, *models.Asset) error {
	return nil
}

// formatBytes converts bytes to human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}
