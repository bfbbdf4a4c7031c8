package uploads

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aicv-backend/internal/shared/server/middleware"
	"aicv-backend/internal/shared/server/respond"
	"aicv-backend/internal/shared/storage/object"
	"aicv-backend/internal/shared/telemetry"
)

const (
	maxUploadBytes    = 10 << 20
	multipartOverhead = 1 << 20
	keyPrefix         = "uploads/"
)

type Handler struct {
	Store object.ObjectStore

	newID func() string
}

func NewHandler(store object.ObjectStore) *Handler {
	return &Handler{Store: store, newID: uuid.NewString}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/pic", h.upload)
}

type uploadResponse struct {
	object.Object
	PageCount int `json:"pageCount,omitempty"`
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+multipartOverhead)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "file exceeds 10MB", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "image file is required", nil)
		return
	}
	if fileHeader.Size > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "file exceeds 10MB", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	if len(data) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is empty", nil)
		return
	}
	if len(data) > maxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "file exceeds 10MB", nil)
		return
	}

	contentType := detectContentType(data, fileHeader.Header.Get("Content-Type"))
	if !allowed(contentType) {
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media_type", ErrUnsupportedType.Error(), nil)
		return
	}

	var pages int
	if contentType == mimePDF {
		pages, err = pdfPageCount(data)
		if err != nil {
			respond.Fail(c, http.StatusBadRequest, "invalid_pdf", "PDF could not be read", err)
			return
		}
	}

	key := keyPrefix + h.newID() + "." + extensionFor(fileHeader.Filename, contentType)
	obj, err := h.Store.Put(c.Request.Context(), key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		respond.Fail(c, http.StatusInternalServerError, "upload_failed", "file upload is unavailable", err)
		return
	}

	telemetry.Info("uploads.stored", map[string]any{
		"user_id":    middleware.UserIDFromContext(c),
		"request_id": middleware.RequestIDFromContext(c),
		"key":        obj.Key,
		"size":       obj.Size,
		"mime_type":  contentType,
	})
	respond.OK(c, uploadResponse{Object: obj, PageCount: pages})
}
