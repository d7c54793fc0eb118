package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/iamasit07/chat-app/backend/pkg/auth"
	"github.com/iamasit07/chat-app/backend/pkg/httputil"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

// Verifier validates a session token. The websocket handshake uses the
// same implementation.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*auth.Claims, error)
}

// AuthMiddleware rejects requests without a valid session token and stores
// the caller's id and claims on the gin context.
func AuthMiddleware(verifier Verifier, cookie httputil.CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := httputil.GetTokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - No Token provided"})
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			httputil.ClearAuthCookie(c.Writer, cookie)
			msg := "Unauthorized - Invalid Token"
			if errors.Is(err, domain.ErrExpired) {
				msg = "Unauthorized - Token expired"
			}
			jww.DEBUG.Printf("[AUTH] Rejected request to %s: %v", c.FullPath(), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// UserID returns the authenticated caller set by AuthMiddleware.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func Claims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
