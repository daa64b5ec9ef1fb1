package images

import (
	"context"
	"io"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-gallery/storage"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

const (
	// MaxUploadSize caps uploads at 5 MiB
	MaxUploadSize = 5 << 20

	DefaultPageSize = 5
	MaxPageSize     = 100
)

// sentinel errors surfaced by the service, mapped to HTTP statuses at the
// boundary
var (
	ErrImageNotFound = errors.New("image not found", errors.CategoryNotFound).
		WithTextCode("IMAGE_NOT_FOUND").
		WithCode(errors.CodeNotFound)

	ErrNotImageOwner = errors.New("you are not allowed to delete this image", errors.CategoryAuthz).
		WithTextCode("IMAGE_NOT_OWNER").
		WithCode(errors.CodeForbidden)

	ErrFileTooLarge = errors.New("image exceeds the maximum allowed size", errors.CategoryBadInput).
		WithTextCode("IMAGE_TOO_LARGE").
		WithCode(errors.CodeBadRequest)

	ErrNotAnImage = errors.New("uploaded file must be an image", errors.CategoryBadInput).
		WithTextCode("IMAGE_BAD_TYPE").
		WithCode(errors.CodeBadRequest)
)

// UploadRequest carries one multipart upload through the service
type UploadRequest struct {
	Body        io.Reader
	Size        int64
	ContentType string
	UploadedBy  uuid.UUID
}

// ListResult is a page of images plus the pagination bookkeeping
// the client needs to walk the gallery.
type ListResult struct {
	Images       []*Image `json:"images"`
	CurrentPage  int      `json:"current_page"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// Logger is a leveled structured logger
type Logger interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Service coordinates blob storage and the metadata store
type Service struct {
	repo   Images
	blobs  storage.BlobStore
	logger Logger
}

type ServiceOption func(*Service)

func WithServiceLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(repo Images, blobs storage.BlobStore, opts ...ServiceOption) *Service {
	s := &Service{
		repo:   repo,
		blobs:  blobs,
		logger: noopLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Upload validates the file, pushes the bytes to blob storage, then records
// the metadata. A failed metadata insert leaves an orphaned blob behind;
// we log it and surface the insert error.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Image, error) {
	if req.Body == nil || req.Size == 0 {
		return nil, errors.New("no image file provided", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	if req.Size > MaxUploadSize {
		return nil, ErrFileTooLarge
	}

	if !strings.HasPrefix(req.ContentType, "image/") {
		return nil, ErrNotAnImage
	}

	key := storage.RandomStorageKey()

	result, err := s.blobs.Upload(ctx, key, io.LimitReader(req.Body, MaxUploadSize), req.ContentType)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to store image")
	}

	record, err := s.repo.Create(ctx, &Image{
		URL:        result.URL,
		PublicID:   result.PublicID,
		UploadedBy: req.UploadedBy,
	})

	if err != nil {
		s.logger.Error("image metadata insert failed, orphaned blob", "public_id", result.PublicID, "error", err)
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to save image record")
	}

	s.logger.Info("image uploaded", "id", record.ID, "public_id", record.PublicID)

	return record, nil
}

// List returns one page of images with totals
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	opts = normalizeListOptions(opts)

	records, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to list images")
	}

	if records == nil {
		records = []*Image{}
	}

	totalPages := total / opts.Limit
	if total%opts.Limit != 0 {
		totalPages++
	}

	return &ListResult{
		Images:       records,
		CurrentPage:  opts.Page,
		TotalPages:   totalPages,
		TotalResults: total,
	}, nil
}

// Delete removes the blob and then the metadata row. Only the user that
// uploaded an image may delete it.
func (s *Service) Delete(ctx context.Context, id, requestedBy uuid.UUID) error {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrImageNotFound
		}
		return errors.Wrap(err, errors.CategoryOperation, "failed to load image")
	}

	if record.UploadedBy != requestedBy {
		return ErrNotImageOwner
	}

	if err := s.blobs.Delete(ctx, record.PublicID); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to delete stored image")
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrImageNotFound
		}
		return errors.Wrap(err, errors.CategoryOperation, "failed to delete image record")
	}

	s.logger.Info("image deleted", "id", record.ID, "public_id", record.PublicID)

	return nil
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
