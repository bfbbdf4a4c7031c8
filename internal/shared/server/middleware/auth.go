package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aicv-backend/internal/shared/auth"
	"aicv-backend/internal/shared/server/respond"
)

const (
	userIDKey      = "userId"
	userContactKey = "userContact"
	authTokenKey   = "authToken"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth requires a valid bearer token on every route except those under the
// public path prefixes, and stores the caller identity in context.
func Auth(verifier TokenVerifier, publicPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		path := c.Request.URL.Path
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(authTokenKey, token)
		if claims.Contact != "" {
			c.Set(userContactKey, claims.Contact)
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	return stringFromContext(c, userIDKey)
}

// ContactFromContext fetches the login contact (email or phone) of the caller.
func ContactFromContext(c *gin.Context) string {
	return stringFromContext(c, userContactKey)
}

// TokenFromContext fetches the raw bearer token the caller authenticated with.
func TokenFromContext(c *gin.Context) string {
	return stringFromContext(c, authTokenKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
