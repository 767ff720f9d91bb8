package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"campusfind/internal/app/apperr"
)

// respondError translates an application error into the HTTP surface. The
// coded message is safe to show; anything uncoded stays a generic 500.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	status := statusForCode(appErr.Code)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "path", c.FullPath(), "code", appErr.Code, "error", err)
	}
	c.JSON(status, gin.H{"error": appErr.Message, "code": string(appErr.Code)})
}

func statusForCode(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeAlreadyExists:
		return http.StatusConflict
	case apperr.CodeFailedPrecondition:
		return http.StatusConflict
	case apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
