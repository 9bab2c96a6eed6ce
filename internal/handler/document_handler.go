package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/proyecty/proyecty-backend/internal/service"
	"github.com/rs/zerolog/log"
)

// DocumentHandler handles receipt and property-photo uploads
type DocumentHandler struct {
	documentService *service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// PhotoUploadResponse represents the stored photo variants
type PhotoUploadResponse struct {
	ID           string `json:"id"`
	ThumbnailURL string `json:"thumbnailUrl"`
	DisplayURL   string `json:"displayUrl"`
	OriginalURL  string `json:"originalUrl"`
}

// PresignedURLResponse carries a short-lived download URL for a stored object
type PresignedURLResponse struct {
	URL string `json:"url"`
}

// UploadReceipt handles POST /api/v1/transactions/:id/receipt
// Attaches a payment receipt (scan or PDF) to a ledger entry.
func (h *DocumentHandler) UploadReceipt(c echo.Context) error {
	if h.documentService == nil || !h.documentService.IsEnabled() {
		return NewServiceUnavailableError(c, "Document uploads are disabled (storage not configured)")
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "No file provided", []ValidationError{
			{Field: "file", Message: "File is required"},
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return NewInternalError(c, "Failed to process file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return NewInternalError(c, "Failed to read file")
	}

	transaction, err := h.documentService.AttachReceipt(c.Request().Context(), transactionID, data, file.Filename)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTransactionNotFound):
			return NewNotFoundError(c, "Transaction not found")
		case errors.Is(err, service.ErrDocumentTooLarge):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "file", Message: "File too large. Maximum size is 10MB"},
			})
		case errors.Is(err, service.ErrInvalidFormat):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "file", Message: "Invalid format. Supported: JPEG, PNG, WebP, PDF"},
			})
		default:
			log.Error().Err(err).Str("transaction_id", transactionID.String()).Msg("Failed to attach receipt")
			return NewInternalError(c, "Failed to attach receipt")
		}
	}

	log.Info().
		Str("transaction_id", transaction.ID.String()).
		Str("receipt_url", stringValue(transaction.ReceiptURL)).
		Msg("Receipt attached")

	return c.JSON(http.StatusCreated, toTransactionResponse(transaction))
}

// UploadPropertyPhoto handles POST /api/v1/properties/:id/photos
// Processes the photo into thumbnail, display, and original variants.
func (h *DocumentHandler) UploadPropertyPhoto(c echo.Context) error {
	if h.documentService == nil || !h.documentService.IsEnabled() {
		return NewServiceUnavailableError(c, "Document uploads are disabled (storage not configured)")
	}

	propertyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid property ID", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "No file provided", []ValidationError{
			{Field: "file", Message: "File is required"},
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return NewInternalError(c, "Failed to process file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return NewInternalError(c, "Failed to read file")
	}

	metadata, err := h.documentService.AddPropertyPhoto(c.Request().Context(), propertyID, data, file.Filename)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPropertyNotFound):
			return NewNotFoundError(c, "Property not found")
		case errors.Is(err, service.ErrDocumentTooLarge):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "file", Message: "File too large. Maximum size is 10MB"},
			})
		case errors.Is(err, service.ErrInvalidFormat):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "file", Message: "Invalid format. Supported: JPEG, PNG, WebP"},
			})
		case errors.Is(err, service.ErrPhotoTooSmall):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "file", Message: "Image too small. Minimum 50x50 pixels"},
			})
		case errors.Is(err, service.ErrInvalidImageData):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "file", Message: "Invalid image data"},
			})
		default:
			log.Error().Err(err).Str("property_id", propertyID.String()).Msg("Failed to upload property photo")
			return NewInternalError(c, "Failed to upload photo")
		}
	}

	log.Info().
		Str("property_id", propertyID.String()).
		Str("photo_id", metadata.ID).
		Msg("Property photo uploaded")

	return c.JSON(http.StatusCreated, PhotoUploadResponse{
		ID:           metadata.ID,
		ThumbnailURL: metadata.ThumbnailURL,
		DisplayURL:   metadata.DisplayURL,
		OriginalURL:  metadata.OriginalURL,
	})
}

// GetDocumentURL handles GET /api/v1/documents/url
// Exchanges a stored object path for a short-lived presigned download URL.
func (h *DocumentHandler) GetDocumentURL(c echo.Context) error {
	if h.documentService == nil || !h.documentService.IsEnabled() {
		return NewServiceUnavailableError(c, "Document downloads are disabled (storage not configured)")
	}

	objectPath := c.QueryParam("path")
	if objectPath == "" {
		return NewValidationError(c, "Object path required", []ValidationError{
			{Field: "path", Message: "Path is required"},
		})
	}

	url, err := h.documentService.PresignURL(c.Request().Context(), objectPath)
	if err != nil {
		log.Error().Err(err).Str("path", objectPath).Msg("Failed to presign document URL")
		return NewInternalError(c, "Failed to generate download URL")
	}

	return c.JSON(http.StatusOK, PresignedURLResponse{URL: url})
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
