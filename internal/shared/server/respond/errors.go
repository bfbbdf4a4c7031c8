package respond

import (
	"github.com/gin-gonic/gin"

	"aicv-backend/internal/shared/telemetry"
)

// ExposeDetailsKey marks a request whose error responses may carry internal detail.
const ExposeDetailsKey = "exposeErrorDetails"

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if resumeID := c.Param("id"); resumeID != "" {
		fields["resume_id"] = resumeID
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Fail sends a standardized error response and attaches the cause only when
// the request allows internal detail.
func Fail(c *gin.Context, status int, code, message string, cause error) {
	if cause != nil {
		telemetry.Error("http.error.cause", map[string]any{
			"request_id": c.GetString("requestId"),
			"code":       code,
			"error":      cause.Error(),
		})
	}
	var details interface{}
	if cause != nil && c.GetBool(ExposeDetailsKey) {
		details = gin.H{"cause": cause.Error()}
	}
	Error(c, status, code, message, details)
}
