package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	jww "github.com/spf13/jwalterweatherman"
)

// statusFor maps core errors to a status code and a message that is safe to
// show to the client. Details of unexpected errors stay in the logs.
func statusFor(err error) (int, string) {
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Reason
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized - Invalid Token"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrUpload):
		return http.StatusBadGateway, "Image upload failed"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func writeError(c *gin.Context, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		jww.ERROR.Printf("[HTTP] Error in %s: %v", op, err)
	} else {
		jww.DEBUG.Printf("[HTTP] %s rejected: %v", op, err)
	}
	c.JSON(status, gin.H{"message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": msg})
}
