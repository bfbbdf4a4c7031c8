package middleware

import (
	"github.com/gin-gonic/gin"

	"aicv-backend/internal/shared/server/respond"
)

// ErrorDetails controls whether error responses may include internal causes.
func ErrorDetails(expose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(respond.ExposeDetailsKey, expose)
		c.Next()
	}
}
