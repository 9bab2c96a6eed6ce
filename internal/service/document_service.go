package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/proyecty/proyecty-backend/internal/repository/storage"
)

const (
	MaxDocumentSize = 10 * 1024 * 1024 // 10MB
	MinPhotoWidth   = 50
	MinPhotoHeight  = 50
	ThumbnailWidth  = 200
	DisplayWidth    = 1200
	JPEGQuality     = 85

	PresignExpiry = 15 * time.Minute
)

var (
	ErrDocumentTooLarge     = errors.New("file too large. Maximum size is 10MB")
	ErrInvalidFormat        = errors.New("invalid format. Supported: JPEG, PNG, WebP, PDF")
	ErrPhotoTooSmall        = errors.New("image too small. Minimum 50x50 pixels")
	ErrInvalidImageData     = errors.New("invalid image data")
	ErrStorageNotConfigured = errors.New("document storage not configured")
)

// receiptExtensions maps the upload extensions the console accepts for
// payment receipts to their content types. Receipts may be scans or PDFs.
var receiptExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// photoExtensions covers property photos, which must be decodable images.
var photoExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// PhotoMetadata contains object paths for each stored photo variant.
type PhotoMetadata struct {
	ID           string `json:"id"`
	ThumbnailURL string `json:"thumbnailUrl"`
	DisplayURL   string `json:"displayUrl"`
	OriginalURL  string `json:"originalUrl"`
}

// DocumentService handles receipt and property-photo uploads: validation,
// image processing, storage, and linking the stored object back to the
// owning transaction or property.
type DocumentService struct {
	storage         storage.DocumentRepository
	transactionRepo domain.TransactionRepository
	propertyRepo    domain.PropertyRepository
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(storage storage.DocumentRepository, transactionRepo domain.TransactionRepository, propertyRepo domain.PropertyRepository) *DocumentService {
	return &DocumentService{
		storage:         storage,
		transactionRepo: transactionRepo,
		propertyRepo:    propertyRepo,
	}
}

// IsEnabled indicates whether uploads are supported (storage configured).
func (s *DocumentService) IsEnabled() bool {
	return s != nil && s.storage != nil
}

// AttachReceipt stores a receipt for a ledger entry and records its object
// path on the transaction. Receipts are stored as-is, without processing.
func (s *DocumentService) AttachReceipt(ctx context.Context, transactionID uuid.UUID, data []byte, filename string) (*domain.Transaction, error) {
	if !s.IsEnabled() {
		return nil, ErrStorageNotConfigured
	}
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := receiptExtensions[ext]
	if !ok {
		return nil, ErrInvalidFormat
	}

	transaction, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	objectPath := fmt.Sprintf("receipts/%s/%s%s", transaction.LoanID, uuid.New(), ext)
	path, err := s.storage.Upload(ctx, objectPath, bytes.NewReader(data), contentType, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to upload receipt: %w", err)
	}

	updated, err := s.transactionRepo.UpdateReceiptURL(ctx, transactionID, path)
	if err != nil {
		// The object is orphaned if the link fails; best-effort cleanup.
		_ = s.storage.Delete(ctx, path)
		return nil, err
	}
	return updated, nil
}

// AddPropertyPhoto validates, resizes, and stores a property photo in three
// variants, then appends the display path to the property's photo list.
func (s *DocumentService) AddPropertyPhoto(ctx context.Context, propertyID uuid.UUID, data []byte, filename string) (*PhotoMetadata, error) {
	if !s.IsEnabled() {
		return nil, ErrStorageNotConfigured
	}

	img, err := s.validateAndDecode(data, filename)
	if err != nil {
		return nil, err
	}

	if _, err := s.propertyRepo.GetByID(ctx, propertyID); err != nil {
		return nil, err
	}

	photoID := uuid.New().String()

	variants := []struct {
		name     string
		maxWidth int
	}{
		{"thumb", ThumbnailWidth},
		{"display", DisplayWidth},
		{"original", 0}, // 0 means keep original size
	}

	paths := make(map[string]string)
	for _, variant := range variants {
		var processed image.Image
		if variant.maxWidth > 0 && img.Bounds().Dx() > variant.maxWidth {
			processed = imaging.Resize(img, variant.maxWidth, 0, imaging.Lanczos)
		} else {
			processed = img
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}

		objectPath := fmt.Sprintf("properties/%s/%s_%s.jpg", propertyID, photoID, variant.name)
		path, err := s.storage.Upload(ctx, objectPath, bytes.NewReader(buf.Bytes()), "image/jpeg", int64(buf.Len()))
		if err != nil {
			s.cleanupVariants(ctx, paths)
			return nil, fmt.Errorf("failed to upload %s variant: %w", variant.name, err)
		}
		paths[variant.name] = path
	}

	if _, err := s.propertyRepo.AddPhoto(ctx, propertyID, paths["display"]); err != nil {
		s.cleanupVariants(ctx, paths)
		return nil, err
	}

	return &PhotoMetadata{
		ID:           photoID,
		ThumbnailURL: paths["thumb"],
		DisplayURL:   paths["display"],
		OriginalURL:  paths["original"],
	}, nil
}

// PresignURL exposes a stored object through a short-lived GET URL.
func (s *DocumentService) PresignURL(ctx context.Context, objectPath string) (string, error) {
	if !s.IsEnabled() {
		return "", ErrStorageNotConfigured
	}
	return s.storage.GeneratePresignedURL(ctx, objectPath, PresignExpiry)
}

func (s *DocumentService) validateAndDecode(data []byte, filename string) (image.Image, error) {
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := photoExtensions[ext]; !ok {
		return nil, ErrInvalidFormat
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImageData
	}

	bounds := img.Bounds()
	if bounds.Dx() < MinPhotoWidth || bounds.Dy() < MinPhotoHeight {
		return nil, ErrPhotoTooSmall
	}

	return img, nil
}

func (s *DocumentService) cleanupVariants(ctx context.Context, paths map[string]string) {
	for _, path := range paths {
		_ = s.storage.Delete(ctx, path)
	}
}
