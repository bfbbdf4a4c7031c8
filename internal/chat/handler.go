package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aicv-backend/internal/shared/server/respond"
)

// Completer forwards completion requests.
type Completer interface {
	Complete(ctx context.Context, in Request) (Response, error)
}

type Handler struct {
	Proxy Completer
}

func NewHandler(proxy Completer) *Handler {
	return &Handler{Proxy: proxy}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat/completions", h.completions)
}

func (h *Handler) completions(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	resp, err := h.Proxy.Complete(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidMessages):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Fail(c, http.StatusBadGateway, "upstream_error", "chat provider request failed", err)
		}
		return
	}
	c.Data(resp.Status, resp.ContentType, resp.Body)
}
