package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aicv-backend/internal/auth"
	"aicv-backend/internal/chat"
	"aicv-backend/internal/resumes"
	"aicv-backend/internal/services/health"
	"aicv-backend/internal/shared/config"
	"aicv-backend/internal/shared/metrics"
	"aicv-backend/internal/shared/server/middleware"
	"aicv-backend/internal/shared/server/respond"
	"aicv-backend/internal/uploads"
	"aicv-backend/internal/users"
)

const apiPrefix = "/api/v1"

// RouterDeps lists everything the HTTP surface needs. Nil handlers are skipped.
type RouterDeps struct {
	Config        config.Config
	Verifier      middleware.TokenVerifier
	Health        *health.Service
	AuthHandler   *auth.Handler
	UserHandler   *users.Handler
	ResumeHandler *resumes.Handler
	ChatHandler   *chat.Handler
	UploadHandler *uploads.Handler
	// FilesDir is served under /files when the local object store is active.
	FilesDir string
	// RateLimiter may be shared across routers; nil builds a fresh one.
	RateLimiter *middleware.RateLimiter
}

// DefaultRateLimits are the per-principal token buckets by route group.
var DefaultRateLimits = map[string]middleware.RateLimitRule{
	"DEFAULT": {Rate: 10, Burst: 30},
	"CAPTCHA": {Rate: 1.0 / 60, Burst: 1},
	"LLM":     {Rate: 0.5, Burst: 5},
	"UPLOAD":  {Rate: 1, Burst: 5},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.ErrorDetails(!deps.Config.IsProduction()),
	)

	r.GET("/metrics", metrics.Handler())
	if deps.FilesDir != "" {
		r.Static("/files", deps.FilesDir)
	}

	api := r.Group(apiPrefix)
	api.Use(
		middleware.Auth(deps.Verifier, apiPrefix+"/auth/", apiPrefix+"/health"),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    DefaultRateLimits,
			GroupFor: rateLimitGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	api.GET("/health", healthHandler(deps.Health))
	if deps.AuthHandler != nil {
		deps.AuthHandler.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.ResumeHandler != nil {
		deps.ResumeHandler.RegisterRoutes(api)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterRoutes(api)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})
	return r
}

func rateLimitGroup(c *gin.Context) string {
	path := c.Request.URL.Path
	switch {
	case path == apiPrefix+"/auth/captcha/send":
		return "CAPTCHA"
	case strings.HasPrefix(path, apiPrefix+"/chat/"):
		return "LLM"
	case path == apiPrefix+"/pic":
		return "UPLOAD"
	default:
		return "DEFAULT"
	}
}

func healthHandler(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		ok, checks := svc.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, gin.H{"ok": ok, "checks": checks})
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":9000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
