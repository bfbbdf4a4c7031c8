package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aicv-backend/internal/shared/server/middleware"
	"aicv-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Tokens issued before profiles were recorded still identify the caller.
			respond.OK(c, gin.H{"userId": userID, "contact": middleware.ContactFromContext(c)})
			return
		}
		respond.Fail(c, http.StatusInternalServerError, "internal_error", "failed to load user", err)
		return
	}
	respond.OK(c, user)
}
