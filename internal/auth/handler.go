package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aicv-backend/internal/shared/server/respond"
)

// Handler exposes the login endpoints.
type Handler struct {
	Captcha *CaptchaService
	Google  *GoogleService
}

func NewHandler(captcha *CaptchaService, google *GoogleService) *Handler {
	return &Handler{Captcha: captcha, Google: google}
}

// RegisterRoutes attaches auth routes. They must be reachable without a token.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/captcha/send", h.sendCaptcha)
	rg.POST("/auth/captcha/login", h.captchaLogin)
	if h.Google != nil {
		rg.POST("/auth/google", h.googleIDToken)
		rg.GET("/auth/google/start", h.googleStart)
		rg.GET("/auth/google/callback", h.googleCallback)
	}
}

type contactRequest struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Captcha string `json:"captcha"`
}

type userPayload struct {
	UserID  string `json:"user_id"`
	Contact string `json:"contact,omitempty"`
	Type    string `json:"type"`
}

func (h *Handler) sendCaptcha(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, err := h.Captcha.Send(c.Request.Context(), req.Email, req.Phone)
	if err != nil {
		writeAuthError(c, err, "captcha_send_failed", "failed to send captcha")
		return
	}
	body := gin.H{"message": "captcha sent", "contact": res.Contact, "type": string(res.Type)}
	if res.Code != "" {
		body["captcha"] = res.Code
	}
	respond.OK(c, body)
}

func (h *Handler) captchaLogin(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, err := h.Captcha.Login(c.Request.Context(), req.Email, req.Phone, req.Captcha)
	if err != nil {
		writeAuthError(c, err, "login_failed", "login failed")
		return
	}
	respond.OK(c, gin.H{
		"token": res.Token,
		"user":  userPayload{UserID: res.UserID, Contact: res.Contact, Type: string(res.Type)},
	})
}

func (h *Handler) googleIDToken(c *gin.Context) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "idToken is required", nil)
		return
	}
	res, ident, err := h.Google.LoginWithIDToken(c.Request.Context(), req.IDToken)
	if err != nil {
		writeAuthError(c, err, "login_failed", "login failed")
		return
	}
	respond.OK(c, gin.H{
		"token": res.Token,
		"user": gin.H{
			"user_id":  res.UserID,
			"contact":  res.Contact,
			"provider": "google",
			"name":     ident.Name,
			"picture":  ident.Picture,
		},
	})
}

func (h *Handler) googleStart(c *gin.Context) {
	target, err := h.Google.StartURL(c.Request.Context())
	if err != nil {
		writeAuthError(c, err, "internal_error", "failed to start google login")
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) googleCallback(c *gin.Context) {
	target, err := h.Google.Callback(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		writeAuthError(c, err, "auth_failed", "google login failed")
		return
	}
	c.Redirect(http.StatusFound, target)
}

func writeAuthError(c *gin.Context, err error, fallbackCode, fallbackMessage string) {
	switch {
	case errors.Is(err, ErrContactRequired), errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidPhone), errors.Is(err, ErrCaptchaRequired):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrCaptchaExpired):
		respond.Error(c, http.StatusUnauthorized, "captcha_expired", "captcha expired, request a new one", nil)
	case errors.Is(err, ErrCaptchaInvalid):
		respond.Error(c, http.StatusUnauthorized, "captcha_invalid", "captcha is incorrect", nil)
	case errors.Is(err, ErrInvalidIDToken):
		respond.Fail(c, http.StatusUnauthorized, "invalid_id_token", "invalid google credential", err)
	case errors.Is(err, ErrInvalidState):
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, ErrGoogleNotConfigured):
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Google auth not configured", nil)
	default:
		respond.Fail(c, http.StatusInternalServerError, fallbackCode, fallbackMessage, err)
	}
}
