// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	xerrors "blog-session/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response is the envelope for messages and errors. Resources are written
// bare with Data so clients can decode them directly.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Data writes v as the whole body.
func Data(c *gin.Context, status int, v interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, v)
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	// Abort before writing so later handlers never run.
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// FromError maps a sentinel from xerrors onto a status code.
func FromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		NotFound(c, "resource not found")
	case errors.Is(err, xerrors.ErrConflict):
		Error(c, http.StatusConflict, "resource already exists", err)
	case errors.Is(err, xerrors.ErrInvalidInput):
		ValidationError(c, "invalid input", err)
	case errors.Is(err, xerrors.ErrUnauthorized):
		Unauthorized(c, "unauthorized")
	case errors.Is(err, xerrors.ErrForbidden):
		Forbidden(c, "forbidden")
	default:
		Error(c, http.StatusInternalServerError, "internal server error", nil)
	}
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// StaleToken tells the client its access token expired and may be refreshed.
func StaleToken(c *gin.Context) {
	Error(c, xerrors.StatusStaleToken, "access token expired", nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}
