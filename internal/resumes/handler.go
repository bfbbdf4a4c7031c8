package resumes

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"aicv-backend/internal/shared/server/middleware"
	"aicv-backend/internal/shared/server/respond"
)

const maxDocumentSize = 2 << 20 // 2MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches resume routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/resumes", h.list)
	rg.POST("/resumes", h.create)
	rg.GET("/resumes/:id", h.get)
	rg.PATCH("/resumes/:id", h.update)
	rg.PUT("/resumes/:id", h.update)
	rg.DELETE("/resumes/:id", h.delete)
	rg.POST("/resumes/:id/recycle", h.recycle)
	rg.POST("/resumes/:id/restore", h.restore)

	rg.GET("/resumes/:id/meta_data", h.content)
	rg.POST("/resumes/:id/meta_data", h.putContent)
	rg.DELETE("/resumes/:id/meta_data", h.deleteContent)
	rg.GET("/resumes/:id/chat", h.chat)
	rg.POST("/resumes/:id/chat", h.putChat)
}

func callerFrom(c *gin.Context) Caller {
	return Caller{
		UserID:    middleware.UserIDFromContext(c),
		Token:     middleware.TokenFromContext(c),
		RequestID: middleware.RequestIDFromContext(c),
	}
}

func (h *Handler) list(c *gin.Context) {
	trashed := false
	if v := strings.TrimSpace(c.Query("trash")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "trash must be a boolean", nil)
			return
		}
		trashed = parsed
	}

	items, err := h.Svc.List(c.Request.Context(), callerFrom(c), trashed)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]resumeResponse, 0, len(items))
	for _, r := range items {
		out = append(out, toResponse(r))
	}
	respond.OK(c, out)
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}

	res, err := h.Svc.Create(c.Request.Context(), callerFrom(c), CreateInput{
		Name:           req.Name,
		TemplateType:   req.TemplateType,
		Color:          req.Color,
		AcceptLanguage: c.GetHeader("Accept-Language"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, toResponse(res))
}

func (h *Handler) get(c *gin.Context) {
	res, err := h.Svc.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(res))
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Ownership outranks a malformed body.
		if authErr := h.Svc.Authorize(c.Request.Context(), callerFrom(c), c.Param("id")); authErr != nil {
			writeError(c, authErr)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	res, err := h.Svc.Update(c.Request.Context(), callerFrom(c), c.Param("id"), UpdateFields{
		Name:         req.Name,
		TemplateType: req.TemplateType,
		Color:        req.Color,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(res))
}

func (h *Handler) recycle(c *gin.Context) {
	res, err := h.Svc.Recycle(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(res))
}

func (h *Handler) restore(c *gin.Context) {
	res, err := h.Svc.Restore(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(res))
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Svc.Delete(c.Request.Context(), callerFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"resumeId": id, "deleted": true})
}

func (h *Handler) content(c *gin.Context) {
	doc, err := h.Svc.Content(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, doc)
}

func (h *Handler) putContent(c *gin.Context) {
	body, ok := readDocument(c)
	if !ok {
		return
	}
	doc, err := h.Svc.PutContent(c.Request.Context(), callerFrom(c), c.Param("id"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, doc)
}

func (h *Handler) deleteContent(c *gin.Context) {
	id := c.Param("id")
	if err := h.Svc.DeleteContent(c.Request.Context(), callerFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"resumeId": id, "deleted": true})
}

func (h *Handler) chat(c *gin.Context) {
	doc, err := h.Svc.Chat(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, doc)
}

func (h *Handler) putChat(c *gin.Context) {
	body, ok := readDocument(c)
	if !ok {
		return
	}
	doc, err := h.Svc.PutChat(c.Request.Context(), callerFrom(c), c.Param("id"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, doc)
}

func readDocument(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentSize)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "document exceeds size limit", nil)
			return nil, false
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read body", nil)
		return nil, false
	}
	return body, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "resume belongs to another user", nil)
	case errors.Is(err, ErrPartialWrite):
		respond.Fail(c, http.StatusInternalServerError, "partial_write", "resume change was partially applied", err)
	case errors.Is(err, ErrCorruptedRecord):
		respond.Fail(c, http.StatusInternalServerError, "corrupted_record", "resume record is unreadable", err)
	default:
		respond.Fail(c, http.StatusInternalServerError, "store_error", "resume store unavailable", err)
	}
}
